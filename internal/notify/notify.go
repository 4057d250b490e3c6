// Package notify tells item owners about moderation decisions.
package notify

import (
	"context"
	"fmt"

	"github.com/hongminglow/rewear-be/internal/models"
)

// ItemStatusNotice is one moderation e-mail.
type ItemStatusNotice struct {
	To        string
	Name      string
	ItemID    string
	ItemTitle string
	Status    string
}

// Notifier delivers item status notices.
type Notifier interface {
	NotifyItemStatus(ctx context.Context, notice ItemStatusNotice) error
}

// ComposeItemStatus returns the subject and plain-text body for a status change.
func ComposeItemStatus(title, status string) (subject, body string) {
	subject = fmt.Sprintf("Your ReWear item \"%s\" has been %s", title, status)
	switch models.ItemStatus(status) {
	case models.ItemApproved:
		body = fmt.Sprintf("Great news! Your item \"%s\" has been approved and is now live on ReWear. You've earned points for this listing!", title)
	case models.ItemRejected:
		body = fmt.Sprintf("Important update: Your item \"%s\" was rejected. Please review our guidelines or contact support for more details.", title)
	default:
		body = fmt.Sprintf("Your item \"%s\" status has changed to %s.", title, status)
	}
	return subject, body
}
