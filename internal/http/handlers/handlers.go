// Package handlers implements the JSON HTTP API on top of the storage and
// marketplace layers.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/hongminglow/rewear-be/internal/http/respond"
	"github.com/hongminglow/rewear-be/internal/marketplace"
	"github.com/hongminglow/rewear-be/internal/storage"
)

const maxJSONBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}

// queryLimit parses ?limit=. Absent or non-positive means no limit.
func queryLimit(r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	if n < 0 {
		n = 0
	}
	return n, true
}

// writeStoreError maps storage and service errors to a response. fallback is
// the message used for unexpected failures, which are also logged.
func writeStoreError(w http.ResponseWriter, err error, fallback string, fields log.Fields) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrInvalidInput):
		respond.Error(w, http.StatusBadRequest, trimSentinel(err, storage.ErrInvalidInput))
	case errors.Is(err, storage.ErrAlreadyExists):
		respond.Error(w, http.StatusConflict, "already exists")
	case errors.Is(err, storage.ErrInsufficientPoints):
		respond.Error(w, http.StatusConflict, "insufficient points")
	case errors.Is(err, storage.ErrConflict):
		respond.Error(w, http.StatusConflict, trimSentinel(err, storage.ErrConflict))
	case errors.Is(err, marketplace.ErrForbidden):
		respond.Error(w, http.StatusForbidden, "not allowed to modify this swap")
	default:
		log.WithError(err).WithFields(fields).Error(fallback)
		respond.Error(w, http.StatusInternalServerError, fallback)
	}
}

// trimSentinel turns "invalid input: title is required" into "title is required".
func trimSentinel(err, sentinel error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return rest
	}
	return msg
}
