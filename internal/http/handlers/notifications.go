package handlers

import (
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/hongminglow/rewear-be/internal/http/respond"
	"github.com/hongminglow/rewear-be/internal/marketplace"
	"github.com/hongminglow/rewear-be/internal/middleware"
	"github.com/hongminglow/rewear-be/internal/models/dto"
)

// NotificationHandler lets admins resend item status e-mails.
type NotificationHandler struct {
	svc   *marketplace.Service
	authn *middleware.Authenticator
}

func NewNotificationHandler(svc *marketplace.Service, authn *middleware.Authenticator) *NotificationHandler {
	return &NotificationHandler{svc: svc, authn: authn}
}

func (h *NotificationHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/notifications/item-status", h.authn.RequireAdmin(h.handleItemStatus))
}

func (h *NotificationHandler) handleItemStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.ItemStatusNotificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.ItemID) == "" ||
		strings.TrimSpace(req.Status) == "" || strings.TrimSpace(req.ItemTitle) == "" {
		respond.Error(w, http.StatusBadRequest, "userId, itemId, status and itemTitle are required")
		return
	}
	sent, err := h.svc.NotifyItemStatus(r.Context(), req.UserID, req.ItemID, req.Status, req.ItemTitle)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"user_id": req.UserID, "item_id": req.ItemID}).Error("send item status email failed")
		respond.Error(w, http.StatusInternalServerError, "failed to send notification")
		return
	}
	if !sent {
		respond.JSON(w, http.StatusOK, "User not found or no email", dto.NotificationResult{Sent: false})
		return
	}
	respond.JSON(w, http.StatusOK, "Notification sent", dto.NotificationResult{Sent: true})
}
