package marketplace

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/hongminglow/rewear-be/internal/events"
	"github.com/hongminglow/rewear-be/internal/models"
	"github.com/hongminglow/rewear-be/internal/notify"
	"github.com/hongminglow/rewear-be/internal/storage"
)

// ReviewItem applies an admin moderation decision.
//
// The owner earns the item's points only on the transition into approved.
// Ledger and notification failures are logged; the status change stands.
func (s *Service) ReviewItem(ctx context.Context, itemID string, status models.ItemStatus) (models.Item, error) {
	if !status.Moderatable() {
		return models.Item{}, fmt.Errorf("%w: status %q cannot be set by moderation", storage.ErrInvalidInput, status)
	}

	change, err := s.store.UpdateItemStatus(ctx, itemID, status)
	if err != nil {
		return models.Item{}, err
	}
	item := change.Item
	if change.Previous == status {
		return item, nil
	}

	fields := log.Fields{"item_id": item.ID, "owner_id": item.UserID, "status": status}
	if change.FirstApproval && item.PointsValue > 0 {
		_, err := s.store.UpdateUserPoints(ctx, storage.PointsChange{
			UserID:      item.UserID,
			Amount:      item.PointsValue,
			Type:        models.TransactionEarned,
			Description: "Item approved: " + item.Title,
		})
		if err != nil {
			log.WithError(err).WithFields(fields).Error("award approval points failed")
		}
	}

	if status == models.ItemApproved || status == models.ItemRejected {
		if _, err := s.notifyOwner(ctx, item.UserID, item.ID, string(status), item.Title); err != nil {
			log.WithError(err).WithFields(fields).Error("item status notification failed")
		}
	}

	s.publish(ctx, events.SubjectItemStatusChanged, events.ItemStatusChanged{
		ItemID:   item.ID,
		OwnerID:  item.UserID,
		Title:    item.Title,
		Previous: string(change.Previous),
		Status:   string(status),
	})
	log.WithFields(fields).Info("item moderated")
	return item, nil
}

// NotifyItemStatus sends a status e-mail to the owner. It reports false
// without error when the user is unknown or has no e-mail address.
func (s *Service) NotifyItemStatus(ctx context.Context, userID, itemID, status, title string) (bool, error) {
	return s.notifyOwner(ctx, userID, itemID, status, title)
}

func (s *Service) notifyOwner(ctx context.Context, userID, itemID, status, title string) (bool, error) {
	owner, err := s.store.FindUserByID(ctx, userID)
	if err != nil || owner.Email == "" {
		log.WithFields(log.Fields{"user_id": userID, "item_id": itemID}).Warn("user not found or has no email for notification")
		return false, nil
	}
	name := ""
	if owner.FullName != nil {
		name = *owner.FullName
	}
	err = s.notifier.NotifyItemStatus(ctx, notify.ItemStatusNotice{
		To:        owner.Email,
		Name:      name,
		ItemID:    itemID,
		ItemTitle: title,
		Status:    status,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// AdjustPoints records an admin correction to a user's balance.
func (s *Service) AdjustPoints(ctx context.Context, userID string, amount int64, description string) (models.User, error) {
	if description == "" {
		description = "Admin adjustment"
	}
	user, err := s.store.UpdateUserPoints(ctx, storage.PointsChange{
		UserID:      userID,
		Amount:      amount,
		Type:        models.TransactionAdminAdjustment,
		Description: description,
	})
	if err != nil {
		return models.User{}, err
	}
	log.WithFields(log.Fields{"user_id": userID, "amount": amount}).Info("points adjusted by admin")
	return user, nil
}
