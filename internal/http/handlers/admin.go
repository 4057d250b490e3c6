package handlers

import (
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/hongminglow/rewear-be/internal/http/respond"
	"github.com/hongminglow/rewear-be/internal/marketplace"
	"github.com/hongminglow/rewear-be/internal/middleware"
	"github.com/hongminglow/rewear-be/internal/models"
	"github.com/hongminglow/rewear-be/internal/models/dto"
	"github.com/hongminglow/rewear-be/internal/storage"
)

// AdminHandler serves moderation and user management. Every route requires
// the admin role.
type AdminHandler struct {
	svc   *marketplace.Service
	store storage.Store
	authn *middleware.Authenticator
}

func NewAdminHandler(svc *marketplace.Service, store storage.Store, authn *middleware.Authenticator) *AdminHandler {
	return &AdminHandler{svc: svc, store: store, authn: authn}
}

func (h *AdminHandler) Register(mux *http.ServeMux) {
	admin := h.authn.RequireAdmin
	mux.HandleFunc("GET /api/admin/items", admin(h.handleListItems))
	mux.HandleFunc("PATCH /api/admin/items", admin(h.handleReviewItem))
	mux.HandleFunc("DELETE /api/admin/items", admin(h.handleDeleteItem))
	mux.HandleFunc("GET /api/admin/users", admin(h.handleListUsers))
	mux.HandleFunc("PATCH /api/admin/users", admin(h.handleUpdateRole))
	mux.HandleFunc("DELETE /api/admin/users", admin(h.handleDeleteUser))
	mux.HandleFunc("POST /api/admin/points", admin(h.handleAdjustPoints))
}

func (h *AdminHandler) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListItems(r.Context(), storage.ItemFilter{Status: models.ItemPending})
	if err != nil {
		writeStoreError(w, err, "failed to fetch items", nil)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", items)
}

func (h *AdminHandler) handleReviewItem(w http.ResponseWriter, r *http.Request) {
	var req dto.ItemStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ItemID) == "" || req.Status == "" {
		respond.Error(w, http.StatusBadRequest, "itemId and status are required")
		return
	}
	fields := adminFields(r, log.Fields{"item_id": req.ItemID, "status": req.Status})
	item, err := h.svc.ReviewItem(r.Context(), req.ItemID, models.ItemStatus(req.Status))
	if err != nil {
		writeStoreError(w, err, "failed to update item", fields)
		return
	}
	log.WithFields(fields).Info("item reviewed")
	respond.JSON(w, http.StatusOK, "Item updated", item)
}

func (h *AdminHandler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("itemId"))
	if id == "" {
		respond.Error(w, http.StatusBadRequest, "itemId is required")
		return
	}
	fields := adminFields(r, log.Fields{"item_id": id})
	if err := h.store.DeleteItem(r.Context(), id); err != nil {
		writeStoreError(w, err, "failed to delete item", fields)
		return
	}
	log.WithFields(fields).Info("item deleted by admin")
	respond.JSON(w, http.StatusOK, "Item deleted", nil)
}

func (h *AdminHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeStoreError(w, err, "failed to fetch users", nil)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", users)
}

func (h *AdminHandler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req dto.UserRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" || req.Role == "" {
		respond.Error(w, http.StatusBadRequest, "userId and role are required")
		return
	}
	if !models.ValidRole(req.Role) {
		respond.Error(w, http.StatusBadRequest, "role must be user or admin")
		return
	}
	fields := adminFields(r, log.Fields{"user_id": req.UserID, "role": req.Role})
	user, err := h.store.UpdateUserRole(r.Context(), req.UserID, req.Role)
	if err != nil {
		writeStoreError(w, err, "failed to update user", fields)
		return
	}
	log.WithFields(fields).Info("user role changed")
	respond.JSON(w, http.StatusOK, "User updated", user)
}

func (h *AdminHandler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("userId"))
	if id == "" {
		respond.Error(w, http.StatusBadRequest, "userId is required")
		return
	}
	fields := adminFields(r, log.Fields{"user_id": id})
	if err := h.store.DeleteUser(r.Context(), id); err != nil {
		writeStoreError(w, err, "failed to delete user", fields)
		return
	}
	log.WithFields(fields).Info("user deleted by admin")
	respond.JSON(w, http.StatusOK, "User deleted", nil)
}

func (h *AdminHandler) handleAdjustPoints(w http.ResponseWriter, r *http.Request) {
	var req dto.PointsAdjustmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" || req.Amount == 0 {
		respond.Error(w, http.StatusBadRequest, "userId and a non-zero amount are required")
		return
	}
	user, err := h.svc.AdjustPoints(r.Context(), req.UserID, req.Amount, strings.TrimSpace(req.Description))
	if err != nil {
		writeStoreError(w, err, "failed to adjust points", adminFields(r, log.Fields{"user_id": req.UserID}))
		return
	}
	respond.JSON(w, http.StatusOK, "Points updated", user)
}

// adminFields tags an audit log entry with the acting admin.
func adminFields(r *http.Request, fields log.Fields) log.Fields {
	if admin, ok := middleware.UserFrom(r.Context()); ok {
		fields["admin_id"] = admin.ID
	}
	return fields
}
