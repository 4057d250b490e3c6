package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/hongminglow/rewear-be/internal/http/respond"
	"github.com/hongminglow/rewear-be/internal/media"
	"github.com/hongminglow/rewear-be/internal/middleware"
	"github.com/hongminglow/rewear-be/internal/models"
	"github.com/hongminglow/rewear-be/internal/models/dto"
	"github.com/hongminglow/rewear-be/internal/storage"
)

const (
	defaultPointsValue    = 10
	maxImagesPerItem      = 10
	dashboardTransactions = 5
)

// ItemHandler serves listings, uploads and the owner's dashboard.
type ItemHandler struct {
	store     storage.Store
	media     media.Store
	authn     *middleware.Authenticator
	maxUpload int64
}

// NewItemHandler constructs the handler. maxUpload bounds image size in bytes.
func NewItemHandler(store storage.Store, images media.Store, authn *middleware.Authenticator, maxUpload int64) *ItemHandler {
	return &ItemHandler{store: store, media: images, authn: authn, maxUpload: maxUpload}
}

// Register attaches item routes to the mux.
func (h *ItemHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/items", h.handleList)
	mux.HandleFunc("POST /api/items", h.authn.RequireAuth(h.handleCreate))
	mux.HandleFunc("GET /api/items/{id}", h.handleGet)
	mux.HandleFunc("POST /api/items/images", h.authn.RequireAuth(h.handleUpload))
	mux.HandleFunc("GET /api/dashboard", h.authn.RequireAuth(h.handleDashboard))
	mux.HandleFunc("GET /api/points/transactions", h.authn.RequireAuth(h.handleTransactions))
}

func (h *ItemHandler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "limit must be a number")
		return
	}
	items, err := h.store.ListItems(r.Context(), storage.ItemFilter{
		Status:        models.ItemApproved,
		AvailableOnly: true,
		Limit:         limit,
	})
	if err != nil {
		writeStoreError(w, err, "failed to fetch items", nil)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", items)
}

func (h *ItemHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())
	var req dto.CreateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := newItem(claims.UserID(), req)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.store.CreateItem(r.Context(), item)
	if err != nil {
		writeStoreError(w, err, "failed to create item", log.Fields{"user_id": claims.UserID()})
		return
	}
	log.WithFields(log.Fields{"item_id": created.ID, "user_id": created.UserID}).Info("item submitted for review")
	respond.JSON(w, http.StatusCreated, "Item created", created)
}

func (h *ItemHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	item, err := h.store.FindItem(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err, "failed to fetch item", log.Fields{"item_id": r.PathValue("id")})
		return
	}
	var viewer *models.User
	if claims, ok := middleware.ClaimsFrom(r.Context()); ok {
		if u, err := h.store.FindUserByID(r.Context(), claims.UserID()); err == nil {
			viewer = &u
		}
	}
	if !item.VisibleTo(viewer) {
		respond.Error(w, http.StatusNotFound, "not found")
		return
	}
	respond.JSON(w, http.StatusOK, "ok", item)
}

func (h *ItemHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())
	// Leave room for multipart framing around the file itself.
	limit := h.maxUpload + 64<<10
	if r.ContentLength > limit {
		respond.Error(w, http.StatusRequestEntityTooLarge, "image is too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, http.StatusRequestEntityTooLarge, "image is too large")
			return
		}
		respond.Error(w, http.StatusBadRequest, "multipart field \"image\" is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		respond.Error(w, http.StatusRequestEntityTooLarge, "image is too large")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !media.IsImage(contentType) {
		respond.Error(w, http.StatusBadRequest, "only image uploads are allowed")
		return
	}

	key := media.ObjectKey(claims.UserID(), contentType)
	url, err := h.media.Put(r.Context(), key, contentType, file, header.Size)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"user_id": claims.UserID(), "key": key}).Error("store image failed")
		respond.Error(w, http.StatusInternalServerError, "failed to upload image")
		return
	}
	respond.JSON(w, http.StatusCreated, "Image uploaded", dto.UploadImageResponse{URL: url})
}

func (h *ItemHandler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())
	ctx := r.Context()
	fields := log.Fields{"user_id": claims.UserID()}

	user, err := h.store.FindUserByID(ctx, claims.UserID())
	if err != nil {
		writeStoreError(w, err, "failed to fetch user", fields)
		return
	}
	items, err := h.store.ListItems(ctx, storage.ItemFilter{UserID: user.ID})
	if err != nil {
		writeStoreError(w, err, "failed to fetch items", fields)
		return
	}
	swaps, err := h.store.ListSwapsForUser(ctx, user.ID)
	if err != nil {
		writeStoreError(w, err, "failed to fetch swaps", fields)
		return
	}
	txs, err := h.store.ListTransactions(ctx, user.ID, dashboardTransactions)
	if err != nil {
		writeStoreError(w, err, "failed to fetch transactions", fields)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", dto.Dashboard{User: user, Items: items, Swaps: swaps, Transactions: txs})
}

func (h *ItemHandler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())
	limit, ok := queryLimit(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "limit must be a number")
		return
	}
	txs, err := h.store.ListTransactions(r.Context(), claims.UserID(), limit)
	if err != nil {
		writeStoreError(w, err, "failed to fetch transactions", log.Fields{"user_id": claims.UserID()})
		return
	}
	respond.JSON(w, http.StatusOK, "ok", txs)
}

func newItem(ownerID string, req dto.CreateItemRequest) (models.Item, error) {
	item := models.Item{
		UserID:      ownerID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Type:        strings.TrimSpace(req.Type),
		Size:        strings.TrimSpace(req.Size),
		Condition:   req.Condition,
		Tags:        normalizeTags(req.Tags),
		Images:      req.Images,
		PointsValue: defaultPointsValue,
		Status:      models.ItemPending,
		IsAvailable: true,
	}
	if req.PointsValue != nil {
		item.PointsValue = *req.PointsValue
	}
	switch {
	case item.Title == "":
		return models.Item{}, errors.New("title is required")
	case item.Category == "":
		return models.Item{}, errors.New("category is required")
	case item.Size == "":
		return models.Item{}, errors.New("size is required")
	case !item.Condition.Valid():
		return models.Item{}, fmt.Errorf("condition %q is not valid", item.Condition)
	case item.PointsValue < 0:
		return models.Item{}, errors.New("points_value cannot be negative")
	case len(item.Images) > maxImagesPerItem:
		return models.Item{}, fmt.Errorf("at most %d images are allowed", maxImagesPerItem)
	}
	if item.Images == nil {
		item.Images = []string{}
	}
	return item, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
