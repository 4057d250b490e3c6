package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	log "github.com/sirupsen/logrus"
)

var _ Notifier = (*SendGrid)(nil)

type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGrid delivers notices through the SendGrid v3 mail API.
type SendGrid struct {
	client mailSender
	from   *mail.Email
}

// NewSendGrid creates a notifier that sends from the given address.
func NewSendGrid(apiKey, senderEmail, senderName string) *SendGrid {
	return &SendGrid{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(senderName, senderEmail),
	}
}

// NotifyItemStatus sends the composed message to the item owner.
func (s *SendGrid) NotifyItemStatus(ctx context.Context, notice ItemStatusNotice) error {
	subject, body := ComposeItemStatus(notice.ItemTitle, notice.Status)
	to := mail.NewEmail(notice.Name, notice.To)
	htmlBody := fmt.Sprintf("<p>%s</p>", html.EscapeString(body))

	message := mail.NewSingleEmail(s.from, subject, to, body, htmlBody)
	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send item status email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("send item status email: sendgrid returned %d", resp.StatusCode)
	}
	log.WithFields(log.Fields{
		"item_id": notice.ItemID,
		"status":  resp.StatusCode,
	}).Debug("item status email accepted")
	return nil
}
