package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/hongminglow/rewear-be/internal/events"
	"github.com/hongminglow/rewear-be/internal/models"
	"github.com/hongminglow/rewear-be/internal/storage"
)

const (
	ActionAccept   = "accept"
	ActionReject   = "reject"
	ActionComplete = "complete"
)

// SwapRequest is what a user offers for another user's item.
type SwapRequest struct {
	ItemID        string
	OfferedItemID *string
	PointsOffered int64
	Message       *string
}

// RequestSwap validates and records a pending swap from requester.
func (s *Service) RequestSwap(ctx context.Context, requester models.User, req SwapRequest) (models.Swap, error) {
	if strings.TrimSpace(req.ItemID) == "" {
		return models.Swap{}, fmt.Errorf("%w: item_id is required", storage.ErrInvalidInput)
	}
	if req.PointsOffered < 0 {
		return models.Swap{}, fmt.Errorf("%w: points_offered cannot be negative", storage.ErrInvalidInput)
	}
	if req.OfferedItemID != nil && strings.TrimSpace(*req.OfferedItemID) == "" {
		req.OfferedItemID = nil
	}

	item, err := s.store.FindItem(ctx, req.ItemID)
	if err != nil {
		return models.Swap{}, err
	}
	if item.UserID == requester.ID {
		return models.Swap{}, fmt.Errorf("%w: cannot request your own item", storage.ErrInvalidInput)
	}
	if item.Status != models.ItemApproved {
		return models.Swap{}, storage.ErrNotFound
	}
	if !item.IsAvailable {
		return models.Swap{}, fmt.Errorf("%w: item is no longer available", storage.ErrConflict)
	}

	proposal := models.Swap{
		RequesterID:   requester.ID,
		OwnerID:       item.UserID,
		ItemID:        item.ID,
		OfferedItemID: req.OfferedItemID,
		PointsOffered: req.PointsOffered,
		Message:       req.Message,
	}
	if proposal.IsRedemption() {
		if proposal.PointsOffered < item.PointsValue {
			return models.Swap{}, fmt.Errorf("%w: redeeming this item needs %d points", storage.ErrInvalidInput, item.PointsValue)
		}
	} else {
		offered, err := s.store.FindItem(ctx, *req.OfferedItemID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return models.Swap{}, fmt.Errorf("%w: offered item not found", storage.ErrInvalidInput)
			}
			return models.Swap{}, err
		}
		if offered.UserID != requester.ID {
			return models.Swap{}, fmt.Errorf("%w: offered item belongs to someone else", storage.ErrInvalidInput)
		}
		if !offered.Listed() {
			return models.Swap{}, fmt.Errorf("%w: offered item must be approved and available", storage.ErrInvalidInput)
		}
	}

	if req.PointsOffered > 0 {
		current, err := s.store.FindUserByID(ctx, requester.ID)
		if err != nil {
			return models.Swap{}, err
		}
		if current.Points < req.PointsOffered {
			return models.Swap{}, storage.ErrInsufficientPoints
		}
	}

	swap, err := s.store.CreateSwap(ctx, proposal)
	if err != nil {
		return models.Swap{}, err
	}
	s.publishSwap(ctx, swap)
	return swap, nil
}

// RespondToSwap applies action on behalf of actor. Only the owner may accept
// or reject; either party may mark an accepted swap complete.
func (s *Service) RespondToSwap(ctx context.Context, actor models.User, swapID, action string) (models.Swap, error) {
	swap, err := s.store.FindSwap(ctx, swapID)
	if err != nil {
		return models.Swap{}, err
	}

	var updated models.Swap
	switch action {
	case ActionAccept, ActionReject:
		if actor.ID != swap.OwnerID {
			return models.Swap{}, ErrForbidden
		}
		if action == ActionAccept {
			updated, err = s.store.AcceptSwap(ctx, swapID)
		} else {
			updated, err = s.store.RejectSwap(ctx, swapID)
		}
	case ActionComplete:
		if !swap.Involves(actor.ID) {
			return models.Swap{}, ErrForbidden
		}
		updated, err = s.store.CompleteSwap(ctx, swapID)
	default:
		return models.Swap{}, fmt.Errorf("%w: unknown action %q", storage.ErrInvalidInput, action)
	}
	if err != nil {
		return models.Swap{}, err
	}

	log.WithFields(log.Fields{"swap_id": swapID, "status": updated.Status, "actor_id": actor.ID}).Info("swap updated")
	s.publishSwap(ctx, updated)
	return updated, nil
}

func (s *Service) publishSwap(ctx context.Context, swap models.Swap) {
	s.publish(ctx, events.SubjectSwapStatusChanged, events.SwapStatusChanged{
		SwapID:      swap.ID,
		RequesterID: swap.RequesterID,
		OwnerID:     swap.OwnerID,
		Status:      string(swap.Status),
	})
}
