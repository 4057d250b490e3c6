package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hongminglow/rewear-be/internal/auth"
	"github.com/hongminglow/rewear-be/internal/events"
	"github.com/hongminglow/rewear-be/internal/marketplace"
	"github.com/hongminglow/rewear-be/internal/middleware"
	"github.com/hongminglow/rewear-be/internal/models"
	"github.com/hongminglow/rewear-be/internal/notify"
	"github.com/hongminglow/rewear-be/internal/session"
	"github.com/hongminglow/rewear-be/internal/storage/memory"
)

const testCookie = "rewear_session"

type fakeMedia struct {
	keys []string
	body []byte
}

func (f *fakeMedia) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.keys = append(f.keys, key)
	f.body = data
	return "https://cdn.test/item-images/" + key, nil
}

type recordingNotifier struct {
	notices []notify.ItemStatusNotice
}

func (n *recordingNotifier) NotifyItemStatus(_ context.Context, notice notify.ItemStatusNotice) error {
	n.notices = append(n.notices, notice)
	return nil
}

type api struct {
	t        *testing.T
	store    *memory.Store
	tokens   *auth.TokenManager
	media    *fakeMedia
	notifier *recordingNotifier
	handler  http.Handler
}

func newAPI(t *testing.T) *api {
	t.Helper()
	a := &api{
		t:        t,
		store:    memory.New(),
		tokens:   auth.NewTokenManager("test-secret", "rewear-test", time.Hour),
		media:    &fakeMedia{},
		notifier: &recordingNotifier{},
	}
	authn := middleware.NewAuthenticator(a.tokens, session.NewMemoryDenylist(), a.store, testCookie)
	svc := marketplace.New(a.store, a.notifier, events.NopPublisher{})

	mux := http.NewServeMux()
	NewHealthHandler(time.Now()).Register(mux)
	NewAuthHandler(a.store, a.tokens, authn, 100).Register(mux)
	NewItemHandler(a.store, a.media, authn, 1<<20).Register(mux)
	NewSwapHandler(svc, a.store, authn).Register(mux)
	NewAdminHandler(svc, a.store, authn).Register(mux)
	NewNotificationHandler(svc, authn).Register(mux)
	a.handler = authn.Middleware(mux)
	return a
}

// user creates an account directly in the store and returns a bearer token for it.
func (a *api) user(email, role string, points int64) (models.User, string) {
	a.t.Helper()
	name := "Tester"
	u, err := a.store.CreateUser(context.Background(), models.User{Email: email, FullName: &name, Role: role, Points: points, PasswordHash: "x"})
	require.NoError(a.t, err)
	token, _, err := a.tokens.Generate(u)
	require.NoError(a.t, err)
	return u, token
}

func (a *api) item(owner models.User, status models.ItemStatus, points int64) models.Item {
	a.t.Helper()
	it, err := a.store.CreateItem(context.Background(), models.Item{
		UserID: owner.ID, Title: "Wool Coat", Category: "outerwear", Size: "L",
		Condition: models.ConditionLikeNew, PointsValue: points, Status: status, IsAvailable: true,
	})
	require.NoError(a.t, err)
	return it
}

func (a *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

type envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}
