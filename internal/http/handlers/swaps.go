package handlers

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/hongminglow/rewear-be/internal/http/respond"
	"github.com/hongminglow/rewear-be/internal/marketplace"
	"github.com/hongminglow/rewear-be/internal/middleware"
	"github.com/hongminglow/rewear-be/internal/models/dto"
	"github.com/hongminglow/rewear-be/internal/storage"
)

// SwapHandler exposes swap requests and their lifecycle.
type SwapHandler struct {
	svc   *marketplace.Service
	store storage.Store
	authn *middleware.Authenticator
}

func NewSwapHandler(svc *marketplace.Service, store storage.Store, authn *middleware.Authenticator) *SwapHandler {
	return &SwapHandler{svc: svc, store: store, authn: authn}
}

func (h *SwapHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/swaps", h.authn.RequireAuth(h.handleCreate))
	mux.HandleFunc("GET /api/swaps", h.authn.RequireAuth(h.handleList))
	mux.HandleFunc("PATCH /api/swaps/{id}", h.authn.RequireAuth(h.handleAction))
}

func (h *SwapHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())
	var req dto.CreateSwapRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	requester, err := h.store.FindUserByID(r.Context(), claims.UserID())
	if err != nil {
		writeStoreError(w, err, "failed to fetch user", log.Fields{"user_id": claims.UserID()})
		return
	}
	swap, err := h.svc.RequestSwap(r.Context(), requester, marketplace.SwapRequest{
		ItemID:        req.ItemID,
		OfferedItemID: req.OfferedItemID,
		PointsOffered: req.PointsOffered,
		Message:       req.Message,
	})
	if err != nil {
		writeStoreError(w, err, "failed to create swap", log.Fields{"user_id": requester.ID, "item_id": req.ItemID})
		return
	}
	respond.JSON(w, http.StatusCreated, "Swap requested", swap)
}

func (h *SwapHandler) handleList(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())
	swaps, err := h.store.ListSwapsForUser(r.Context(), claims.UserID())
	if err != nil {
		writeStoreError(w, err, "failed to fetch swaps", log.Fields{"user_id": claims.UserID()})
		return
	}
	respond.JSON(w, http.StatusOK, "ok", swaps)
}

func (h *SwapHandler) handleAction(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())
	var req dto.SwapActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Action == "" {
		respond.Error(w, http.StatusBadRequest, "action is required")
		return
	}
	actor, err := h.store.FindUserByID(r.Context(), claims.UserID())
	if err != nil {
		writeStoreError(w, err, "failed to fetch user", log.Fields{"user_id": claims.UserID()})
		return
	}
	swap, err := h.svc.RespondToSwap(r.Context(), actor, r.PathValue("id"), req.Action)
	if err != nil {
		writeStoreError(w, err, "failed to update swap", log.Fields{"swap_id": r.PathValue("id"), "action": req.Action})
		return
	}
	respond.JSON(w, http.StatusOK, "Swap updated", swap)
}
