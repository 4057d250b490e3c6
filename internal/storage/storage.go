package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/hongminglow/rewear-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// ErrInsufficientPoints indicates a spend would take a balance below zero.
var ErrInsufficientPoints = errors.New("insufficient points")

// ErrInvalidInput indicates a request the store refuses to apply.
var ErrInvalidInput = errors.New("invalid input")

// ErrConflict indicates the record is not in a state that allows the change.
var ErrConflict = errors.New("state conflict")

// UserStore captures persistence operations on user profiles.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindUserByID(ctx context.Context, id string) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUserRole(ctx context.Context, id, role string) (models.User, error)
	// DeleteUser removes the user together with their items, swaps and ledger.
	DeleteUser(ctx context.Context, id string) error
}

// ItemFilter narrows ListItems. Zero values mean "any".
type ItemFilter struct {
	Status        models.ItemStatus
	AvailableOnly bool
	UserID        string
	Limit         int
}

// ItemStatusChange is the outcome of a moderation update.
type ItemStatusChange struct {
	Item     models.Item
	Previous models.ItemStatus
	// FirstApproval is set only the first time an item ever becomes approved.
	FirstApproval bool
}

// ItemStore captures persistence operations on listings.
type ItemStore interface {
	CreateItem(ctx context.Context, item models.Item) (models.Item, error)
	FindItem(ctx context.Context, id string) (models.Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]models.Item, error)
	UpdateItemStatus(ctx context.Context, id string, status models.ItemStatus) (ItemStatusChange, error)
	DeleteItem(ctx context.Context, id string) error
}

// SwapStore captures persistence operations on swap requests.
//
// AcceptSwap runs in a single transaction: both items are reserved and the
// offered points move from requester to owner through the ledger rule.
// Transition methods return ErrConflict when the swap is not in the
// required source state.
type SwapStore interface {
	CreateSwap(ctx context.Context, swap models.Swap) (models.Swap, error)
	FindSwap(ctx context.Context, id string) (models.Swap, error)
	ListSwapsForUser(ctx context.Context, userID string) ([]models.Swap, error)
	AcceptSwap(ctx context.Context, id string) (models.Swap, error)
	RejectSwap(ctx context.Context, id string) (models.Swap, error)
	CompleteSwap(ctx context.Context, id string) (models.Swap, error)
}

// PointsChange describes one ledger mutation.
type PointsChange struct {
	UserID        string
	Amount        int64
	Type          models.TransactionType
	Description   string
	RelatedSwapID *string
}

// Validate checks the sign rules for each transaction type.
func (c PointsChange) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if c.Amount == 0 {
		return fmt.Errorf("%w: amount must be non-zero", ErrInvalidInput)
	}
	switch c.Type {
	case models.TransactionEarned:
		if c.Amount < 0 {
			return fmt.Errorf("%w: earned amount must be positive", ErrInvalidInput)
		}
	case models.TransactionSpent:
		if c.Amount > 0 {
			return fmt.Errorf("%w: spent amount must be negative", ErrInvalidInput)
		}
	case models.TransactionAdminAdjustment:
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidInput, c.Type)
	}
	return nil
}

// Apply returns the balance after the change, enforcing the no-overdraft rule on spends.
func (c PointsChange) Apply(current int64) (int64, error) {
	next := current + c.Amount
	if next < 0 && c.Type == models.TransactionSpent {
		return current, ErrInsufficientPoints
	}
	return next, nil
}

// LedgerStore captures the points balance and its append-only log.
type LedgerStore interface {
	// UpdateUserPoints applies change to the user's balance and appends a
	// ledger entry in the same transaction.
	UpdateUserPoints(ctx context.Context, change PointsChange) (models.User, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]models.PointsTransaction, error)
}

// Store is the full persistence surface the server is wired against.
type Store interface {
	UserStore
	ItemStore
	SwapStore
	LedgerStore
	Close()
}
