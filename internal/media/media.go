// Package media stores uploaded item images and hands back their public URLs.
package media

import (
	"context"
	"io"
	"mime"
	"strings"

	"github.com/google/uuid"
)

// Store persists an object and returns the URL it can be fetched from.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

var imageExtensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/avif":    ".avif",
	"image/heic":    ".heic",
	"image/svg+xml": ".svg",
}

// ObjectKey places an upload in the owner's folder under a random name. The
// extension comes from the validated content type, never the client filename.
func ObjectKey(userID, contentType string) string {
	return userID + "/" + uuid.NewString() + extensionFor(contentType)
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	if ext, ok := imageExtensions[mediaType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// IsImage reports whether contentType names an image media type.
func IsImage(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.HasPrefix(mediaType, "image/")
}
