package handlers

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/hongminglow/rewear-be/internal/auth"
	"github.com/hongminglow/rewear-be/internal/http/respond"
	"github.com/hongminglow/rewear-be/internal/middleware"
	"github.com/hongminglow/rewear-be/internal/models"
	"github.com/hongminglow/rewear-be/internal/models/dto"
	"github.com/hongminglow/rewear-be/internal/storage"
)

const minPasswordLength = 8

// AuthHandler owns account and session endpoints.
type AuthHandler struct {
	store          storage.UserStore
	tokens         *auth.TokenManager
	authn          *middleware.Authenticator
	startingPoints int64
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(store storage.UserStore, tokens *auth.TokenManager, authn *middleware.Authenticator, startingPoints int64) *AuthHandler {
	return &AuthHandler{store: store, tokens: tokens, authn: authn, startingPoints: startingPoints}
}

// Register attaches auth routes to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", h.handleRegister)
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("GET /api/auth/me", h.authn.RequireAuth(h.handleMe))
	mux.HandleFunc("POST /api/auth/signout", h.handleSignout)
	mux.HandleFunc("DELETE /api/auth/delete-account", h.authn.RequireAuth(h.handleDeleteAccount))
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email := strings.TrimSpace(req.Email)
	if err := validateCredentials(email, req.Password); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.WithError(err).Error("hash password failed")
		respond.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := models.User{
		Email:        email,
		Role:         models.RoleUser,
		Points:       h.startingPoints,
		PasswordHash: passwordHash,
	}
	if name := strings.TrimSpace(req.FullName); name != "" {
		user.FullName = &name
	}
	created, err := h.store.CreateUser(r.Context(), user)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			respond.Error(w, http.StatusConflict, "user already exists")
			return
		}
		log.WithError(err).WithField("email", email).Error("create user failed")
		respond.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	log.WithField("user_id", created.ID).Info("user registered")
	respond.JSON(w, http.StatusCreated, "User created successfully", created)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		respond.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}
	user, err := h.store.FindUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.WithError(err).WithField("email", email).Error("login: fetch user failed")
		respond.Error(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respond.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, claims, err := h.tokens.Generate(user)
	if err != nil {
		log.WithError(err).Error("generate token failed")
		respond.Error(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	h.authn.SetCookie(w, r, token, claims.ExpiresAt.Time)
	respond.JSON(w, http.StatusOK, "login successful", dto.LoginResponse{Token: token, User: user})
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())
	user, err := h.store.FindUserByID(r.Context(), claims.UserID())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "user not found")
			return
		}
		writeStoreError(w, err, "failed to fetch user", log.Fields{"user_id": claims.UserID()})
		return
	}
	respond.JSON(w, http.StatusOK, "ok", user)
}

func (h *AuthHandler) handleSignout(w http.ResponseWriter, r *http.Request) {
	if err := h.authn.EndSession(w, r); err != nil {
		log.WithError(err).Error("revoke session failed")
		respond.Error(w, http.StatusInternalServerError, "failed to sign out")
		return
	}
	respond.JSON(w, http.StatusOK, "Signed out successfully", nil)
}

func (h *AuthHandler) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())
	fields := log.Fields{"user_id": claims.UserID()}
	if err := h.store.DeleteUser(r.Context(), claims.UserID()); err != nil {
		writeStoreError(w, err, "failed to delete account", fields)
		return
	}
	if err := h.authn.EndSession(w, r); err != nil {
		log.WithError(err).WithFields(fields).Warn("revoke deleted account session failed")
		w.Header().Del(middleware.RefreshedTokenHeader)
		h.authn.ClearCookie(w, r)
	}
	log.WithFields(fields).Info("account deleted")
	respond.JSON(w, http.StatusOK, "Account deleted", dto.DeleteAccountResponse{Success: true})
}

func validateCredentials(email, password string) error {
	if email == "" || !strings.Contains(email, "@") {
		return errors.New("a valid email is required")
	}
	if utf8.RuneCountInString(password) < minPasswordLength || !utf8.ValidString(password) {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
