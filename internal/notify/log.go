package notify

import (
	"context"

	log "github.com/sirupsen/logrus"
)

var _ Notifier = LogNotifier{}

// LogNotifier writes notices to the log instead of sending them. Used when no mail provider is configured.
type LogNotifier struct{}

// NotifyItemStatus logs the composed message.
func (LogNotifier) NotifyItemStatus(_ context.Context, notice ItemStatusNotice) error {
	subject, body := ComposeItemStatus(notice.ItemTitle, notice.Status)
	log.WithFields(log.Fields{
		"to":      notice.To,
		"item_id": notice.ItemID,
		"subject": subject,
		"body":    body,
	}).Info("item status notification")
	return nil
}
