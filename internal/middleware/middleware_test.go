package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/rewear-be/internal/auth"
	"github.com/hongminglow/rewear-be/internal/models"
	"github.com/hongminglow/rewear-be/internal/session"
	"github.com/hongminglow/rewear-be/internal/storage/memory"
)

const testCookie = "rewear_session"

type authFixture struct {
	tokens   *auth.TokenManager
	denylist *session.MemoryDenylist
	store    *memory.Store
	authn    *Authenticator
}

func newAuthFixture() authFixture {
	f := authFixture{
		tokens:   auth.NewTokenManager("secret", "rewear-test", time.Hour),
		denylist: session.NewMemoryDenylist(),
		store:    memory.New(),
	}
	f.authn = NewAuthenticator(f.tokens, f.denylist, f.store, testCookie)
	return f
}

func (f authFixture) user(t *testing.T, email, role string) (models.User, string) {
	t.Helper()
	u, err := f.store.CreateUser(context.Background(), models.User{Email: email, Role: role, PasswordHash: "x"})
	require.NoError(t, err)
	token, _, err := f.tokens.Generate(u)
	require.NoError(t, err)
	return u, token
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuth(t *testing.T) {
	f := newAuthFixture()
	_, token := f.user(t, "a@example.com", models.RoleUser)
	h := f.authn.Middleware(f.authn.RequireAuth(okHandler))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authentication required")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	assert.Equal(t, http.StatusOK, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, serve(h, req).Code)
}

func TestRevokedTokenIsAnonymous(t *testing.T) {
	f := newAuthFixture()
	_, token := f.user(t, "a@example.com", models.RoleUser)
	claims, err := f.tokens.Parse(token)
	require.NoError(t, err)
	require.NoError(t, f.denylist.Revoke(context.Background(), claims.ID, time.Hour))

	h := f.authn.Middleware(f.authn.RequireAuth(okHandler))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, serve(h, req).Code)
}

func TestRequireAdmin(t *testing.T) {
	f := newAuthFixture()
	_, userToken := f.user(t, "u@example.com", models.RoleUser)
	admin, adminToken := f.user(t, "admin@example.com", models.RoleAdmin)

	var seen models.User
	h := f.authn.Middleware(f.authn.RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusUnauthorized, serve(h, httptest.NewRequest(http.MethodGet, "/", nil)).Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec := serve(h, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Admin access required")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	assert.Equal(t, http.StatusOK, serve(h, req).Code)
	assert.Equal(t, admin.ID, seen.ID)
}

func TestMiddlewareRefreshesNearExpiry(t *testing.T) {
	f := newAuthFixture()
	_, token := f.user(t, "a@example.com", models.RoleUser)
	h := f.authn.Middleware(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Empty(t, serve(h, req).Header().Get(RefreshedTokenHeader))

	f.authn.now = func() time.Time { return time.Now().Add(50 * time.Minute) }
	rec := serve(h, req)
	refreshed := rec.Header().Get(RefreshedTokenHeader)
	require.NotEmpty(t, refreshed)
	assert.NotEqual(t, token, refreshed)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), testCookie+"="+refreshed)
}

func TestRevokeDenylistsSession(t *testing.T) {
	f := newAuthFixture()
	_, token := f.user(t, "a@example.com", models.RoleUser)

	h := f.authn.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, f.authn.Revoke(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	serve(h, req)

	claims, err := f.tokens.Parse(token)
	require.NoError(t, err)
	revoked, err := f.denylist.IsRevoked(context.Background(), claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.NoError(t, f.authn.Revoke(context.Background()))
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://rewear.example"}, http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://REWEAR.example")
	rec := serve(h, req)
	assert.Equal(t, "https://REWEAR.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, RefreshedTokenHeader, rec.Header().Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.Empty(t, serve(h, req).Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	assert.Equal(t, http.StatusNoContent, serve(h, req).Code)
}

func TestCORSWildcardWithoutCredentials(t *testing.T) {
	h := CORS([]string{"*"}, http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := serve(h, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(1, 2, nil)
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("1.2.3.4"))
	assert.False(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("5.6.7.8"))

	now = now.Add(limiterIdleTimeout + time.Minute)
	assert.True(t, l.Allow("9.9.9.9"))
	assert.Equal(t, 1, l.size())

	h := NewRateLimiter(1, 1, nil).Middleware(http.HandlerFunc(okHandler))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, serve(h, req).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, req).Code)

	assert.True(t, NewRateLimiter(0, 0, nil).Allow("x"))
}

func TestRateLimiterIgnoresSpoofedForwardedFor(t *testing.T) {
	h := NewRateLimiter(1, 1, nil).Middleware(http.HandlerFunc(okHandler))

	blocked := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		if serve(h, req).Code == http.StatusTooManyRequests {
			blocked++
		}
	}
	assert.Equal(t, 19, blocked)
}

func TestClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.168.1.10 ", ""})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:5000"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	assert.Equal(t, "203.0.113.7", proxies.ClientIP(req))
	assert.Equal(t, "203.0.113.7", TrustedProxies(nil).ClientIP(req))

	req.RemoteAddr = "10.1.2.3:5000"
	req.Header.Set("X-Forwarded-For", "1.1.1.1, 198.51.100.1, 192.168.1.10")
	assert.Equal(t, "198.51.100.1", proxies.ClientIP(req))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.1.2.3", proxies.ClientIP(req))

	_, err = ParseTrustedProxies([]string{"not-an-ip"})
	assert.Error(t, err)
}

func TestLoggingCapturesStatus(t *testing.T) {
	h := Logging(nil, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestEndSessionRevokesRefreshedToken(t *testing.T) {
	f := newAuthFixture()
	_, token := f.user(t, "a@example.com", models.RoleUser)
	f.authn.now = func() time.Time { return time.Now().Add(50 * time.Minute) }

	var refreshed string
	h := f.authn.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshed = w.Header().Get(RefreshedTokenHeader)
		require.NoError(t, f.authn.EndSession(w, r))
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := serve(h, req)

	assert.Empty(t, rec.Header().Get(RefreshedTokenHeader))
	require.NotEmpty(t, refreshed)
	for _, raw := range []string{token, refreshed} {
		claims, err := f.tokens.Parse(raw)
		require.NoError(t, err)
		revoked, err := f.denylist.IsRevoked(context.Background(), claims.ID)
		require.NoError(t, err)
		assert.True(t, revoked)
	}
}
