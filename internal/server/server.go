package server

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hongminglow/rewear-be/internal/auth"
	"github.com/hongminglow/rewear-be/internal/config"
	"github.com/hongminglow/rewear-be/internal/events"
	"github.com/hongminglow/rewear-be/internal/http/handlers"
	"github.com/hongminglow/rewear-be/internal/marketplace"
	"github.com/hongminglow/rewear-be/internal/media"
	"github.com/hongminglow/rewear-be/internal/middleware"
	"github.com/hongminglow/rewear-be/internal/notify"
	"github.com/hongminglow/rewear-be/internal/session"
	"github.com/hongminglow/rewear-be/internal/storage"
)

// Deps are the collaborators chosen at startup.
type Deps struct {
	Store     storage.Store
	Denylist  session.Denylist
	Notifier  notify.Notifier
	Publisher events.Publisher
	Media     media.Store
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) *Server {
	return &Server{inner: &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           Handler(cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}}
}

// Handler builds the full middleware chain around the API routes.
func Handler(cfg config.Config, deps Deps) http.Handler {
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL())
	authn := middleware.NewAuthenticator(tokens, deps.Denylist, deps.Store, cfg.SessionCookie)
	svc := marketplace.New(deps.Store, deps.Notifier, deps.Publisher)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(time.Now()).Register(mux)
	handlers.NewAuthHandler(deps.Store, tokens, authn, cfg.StartingPoints).Register(mux)
	handlers.NewItemHandler(deps.Store, deps.Media, authn, cfg.MaxUploadBytes()).Register(mux)
	handlers.NewSwapHandler(svc, deps.Store, authn).Register(mux)
	handlers.NewAdminHandler(svc, deps.Store, authn).Register(mux)
	handlers.NewNotificationHandler(svc, authn).Register(mux)

	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.WithError(err).Warn("ignoring TRUSTED_PROXIES")
		proxies = nil
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, proxies)
	return middleware.CORS(cfg.CORSOrigins,
		middleware.Logging(proxies,
			limiter.Middleware(
				authn.Middleware(mux))))
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
