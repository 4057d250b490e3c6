// Package events publishes marketplace domain events for other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	SubjectItemStatusChanged = "rewear.items.status_changed"
	SubjectSwapStatusChanged = "rewear.swaps.status_changed"
)

const sourceService = "rewear-be"

// Publisher sends a payload on a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close()
}

// Envelope wraps every published payload.
type Envelope struct {
	EventID       string          `json:"event_id"`
	Subject       string          `json:"subject"`
	OccurredAt    time.Time       `json:"occurred_at"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// ItemStatusChanged is published after a moderation decision.
type ItemStatusChanged struct {
	ItemID   string `json:"item_id"`
	OwnerID  string `json:"owner_id"`
	Title    string `json:"title"`
	Previous string `json:"previous_status"`
	Status   string `json:"status"`
}

// SwapStatusChanged is published after a swap transition.
type SwapStatusChanged struct {
	SwapID      string `json:"swap_id"`
	RequesterID string `json:"requester_id"`
	OwnerID     string `json:"owner_id"`
	Status      string `json:"status"`
}

func encode(subject string, payload any, now time.Time) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	data, err := json.Marshal(Envelope{
		EventID:       uuid.NewString(),
		Subject:       subject,
		OccurredAt:    now.UTC(),
		SourceService: sourceService,
		Payload:       body,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal event envelope: %w", err)
	}
	return data, nil
}

var _ Publisher = NopPublisher{}

// NopPublisher drops every event. Used when NATS_URL is unset.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

func (NopPublisher) Close() {}
