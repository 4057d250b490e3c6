package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hongminglow/rewear-be/internal/auth"
	"github.com/hongminglow/rewear-be/internal/http/respond"
	"github.com/hongminglow/rewear-be/internal/models"
	"github.com/hongminglow/rewear-be/internal/session"
	"github.com/hongminglow/rewear-be/internal/storage"
)

// RefreshedTokenHeader carries a replacement token when the presented one is close to expiry.
const RefreshedTokenHeader = "X-Refreshed-Token"

type contextKey int

const (
	claimsKey contextKey = iota
	refreshedKey
	userKey
)

// Authenticator resolves the session token on each request and guards routes.
type Authenticator struct {
	tokens   *auth.TokenManager
	denylist session.Denylist
	users    storage.UserStore
	cookie   string
	now      func() time.Time
}

// NewAuthenticator builds an Authenticator that reads tokens from the bearer
// header or the named cookie.
func NewAuthenticator(tokens *auth.TokenManager, denylist session.Denylist, users storage.UserStore, cookieName string) *Authenticator {
	return &Authenticator{
		tokens:   tokens,
		denylist: denylist,
		users:    users,
		cookie:   cookieName,
		now:      time.Now,
	}
}

// ClaimsFrom returns the verified claims attached by Middleware.
func ClaimsFrom(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(auth.Claims)
	return claims, ok
}

// UserFrom returns the user loaded by RequireAdmin.
func UserFrom(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey).(models.User)
	return user, ok
}

// Middleware attaches claims for valid, unrevoked tokens. Requests without a
// usable token pass through anonymously; route guards decide what to do.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := a.tokenFrom(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := a.tokens.Parse(raw)
		if err != nil {
			log.WithError(err).Debug("ignoring invalid session token")
			next.ServeHTTP(w, r)
			return
		}
		revoked, err := a.denylist.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			log.WithError(err).Error("check token denylist failed")
			respond.Error(w, http.StatusInternalServerError, "failed to verify session")
			return
		}
		if revoked {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		if claims.Remaining(a.now()) < a.tokens.TTL()/4 {
			if fresh, ok := a.refresh(w, r, claims); ok {
				ctx = context.WithValue(ctx, refreshedKey, fresh)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) refresh(w http.ResponseWriter, r *http.Request, claims auth.Claims) (auth.Claims, bool) {
	token, fresh, err := a.tokens.Generate(models.User{ID: claims.UserID(), Email: claims.Email, Role: claims.Role})
	if err != nil {
		log.WithError(err).Warn("refresh session token failed")
		return auth.Claims{}, false
	}
	w.Header().Set(RefreshedTokenHeader, token)
	a.SetCookie(w, r, token, fresh.ExpiresAt.Time)
	return fresh, true
}

// RequireAuth answers 401 unless Middleware attached a session.
func (a *Authenticator) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFrom(r.Context()); !ok {
			respond.Unauthorized(w)
			return
		}
		next(w, r)
	}
}

// RequireAdmin loads the session user and answers 403 unless they hold the
// admin role. The role is read from storage, not from the token.
func (a *Authenticator) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return a.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFrom(r.Context())
		user, err := a.users.FindUserByID(r.Context(), claims.UserID())
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				respond.Unauthorized(w)
				return
			}
			log.WithError(err).WithField("user_id", claims.UserID()).Error("load admin user failed")
			respond.Error(w, http.StatusInternalServerError, "failed to load user")
			return
		}
		if !user.IsAdmin() {
			respond.Forbidden(w)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// Revoke denylists the session in ctx, and any token minted for it by this
// request's refresh, until they expire. It is a no-op for anonymous requests.
func (a *Authenticator) Revoke(ctx context.Context) error {
	claims, ok := ClaimsFrom(ctx)
	if !ok {
		return nil
	}
	if err := a.revoke(ctx, claims); err != nil {
		return err
	}
	if fresh, ok := ctx.Value(refreshedKey).(auth.Claims); ok {
		return a.revoke(ctx, fresh)
	}
	return nil
}

func (a *Authenticator) revoke(ctx context.Context, claims auth.Claims) error {
	ttl := claims.Remaining(a.now())
	if ttl <= 0 {
		return nil
	}
	return a.denylist.Revoke(ctx, claims.ID, ttl)
}

// EndSession revokes the request's session and replaces any refreshed token
// or cookie already queued on w with an expired cookie.
func (a *Authenticator) EndSession(w http.ResponseWriter, r *http.Request) error {
	if err := a.Revoke(r.Context()); err != nil {
		return err
	}
	w.Header().Del(RefreshedTokenHeader)
	w.Header().Del("Set-Cookie")
	a.ClearCookie(w, r)
	return nil
}

// SetCookie stores token in the session cookie.
func (a *Authenticator) SetCookie(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (a *Authenticator) ClearCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *Authenticator) tokenFrom(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(a.cookie); err == nil {
		return c.Value
	}
	return ""
}
