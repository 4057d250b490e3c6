// Package marketplace holds the rules that span more than one storage call:
// moderation with point awards, swap negotiation and owner notifications.
package marketplace

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/hongminglow/rewear-be/internal/events"
	"github.com/hongminglow/rewear-be/internal/notify"
	"github.com/hongminglow/rewear-be/internal/storage"
)

// ErrForbidden indicates the caller is not a party allowed to perform the action.
var ErrForbidden = errors.New("forbidden")

// Service coordinates storage, notifications and event publishing.
type Service struct {
	store    storage.Store
	notifier notify.Notifier
	events   events.Publisher
}

// New builds a Service. A nil notifier or publisher disables that fan-out.
func New(store storage.Store, notifier notify.Notifier, publisher events.Publisher) *Service {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{store: store, notifier: notifier, events: publisher}
}

// publish sends an event; failures are logged because the storage change already happened.
func (s *Service) publish(ctx context.Context, subject string, payload any) {
	if err := s.events.Publish(ctx, subject, payload); err != nil {
		log.WithError(err).WithField("subject", subject).Warn("publish event failed")
	}
}
