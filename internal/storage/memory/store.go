// Package memory keeps every record in process memory. It backs the handler
// tests and STORAGE_DRIVER=memory for local demos.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hongminglow/rewear-be/internal/models"
	"github.com/hongminglow/rewear-be/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type userRow struct {
	models.User
	seq int64
}

type itemRow struct {
	models.Item
	seq             int64
	approvalAwarded bool
}

type swapRow struct {
	models.Swap
	seq int64
}

type txRow struct {
	models.PointsTransaction
	seq int64
}

// Store is a mutex-guarded in-memory implementation of storage.Store.
type Store struct {
	mu    sync.Mutex
	seq   int64
	now   func() time.Time
	users map[string]*userRow
	items map[string]*itemRow
	swaps map[string]*swapRow
	txs   []*txRow
}

// New returns an empty store.
func New() *Store {
	return &Store{
		now:   time.Now,
		users: make(map[string]*userRow),
		items: make(map[string]*itemRow),
		swaps: make(map[string]*swapRow),
	}
}

// Close is a no-op.
func (s *Store) Close() {}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

// CreateUser inserts a new user, enforcing email uniqueness.
func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return models.User{}, storage.ErrAlreadyExists
		}
	}
	now := s.now()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = &userRow{User: user, seq: s.next()}
	return user, nil
}

// FindUserByID fetches a user by id.
func (s *Store) FindUserByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return row.User, nil
}

// FindUserByEmail fetches a user by email, case-insensitively.
func (s *Store) FindUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.users {
		if strings.EqualFold(row.Email, email) {
			return row.User, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

// ListUsers returns every user, newest first.
func (s *Store) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]*userRow, 0, len(s.users))
	for _, row := range s.users {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	out := make([]models.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.User)
	}
	return out, nil
}

// UpdateUserRole sets the role of an existing user.
func (s *Store) UpdateUserRole(_ context.Context, id, role string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	row.Role = role
	row.UpdatedAt = s.now()
	return row.User, nil
}

// DeleteUser removes the user and cascades to their items, swaps and ledger entries.
func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	for itemID, item := range s.items {
		if item.UserID == id {
			s.deleteItemLocked(itemID)
		}
	}
	for swapID, swap := range s.swaps {
		if swap.Involves(id) {
			delete(s.swaps, swapID)
		}
	}
	kept := s.txs[:0]
	for _, tx := range s.txs {
		if tx.UserID != id {
			kept = append(kept, tx)
		}
	}
	s.txs = kept
	return nil
}

// CreateItem inserts a listing.
func (s *Store) CreateItem(_ context.Context, item models.Item) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[item.UserID]; !ok {
		return models.Item{}, fmt.Errorf("%w: unknown owner %s", storage.ErrInvalidInput, item.UserID)
	}
	now := s.now()
	item.ID = uuid.NewString()
	item.CreatedAt, item.UpdatedAt = now, now
	item.Tags = cloneStrings(item.Tags)
	item.Images = cloneStrings(item.Images)
	item.User = nil
	s.items[item.ID] = &itemRow{Item: item, seq: s.next(), approvalAwarded: item.Status == models.ItemApproved}
	return s.withOwner(item), nil
}

// FindItem fetches a listing with its owner summary.
func (s *Store) FindItem(_ context.Context, id string) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.items[id]
	if !ok {
		return models.Item{}, storage.ErrNotFound
	}
	return s.withOwner(row.Item), nil
}

// ListItems returns listings matching filter, newest first.
func (s *Store) ListItems(_ context.Context, filter storage.ItemFilter) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]*itemRow, 0, len(s.items))
	for _, row := range s.items {
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		if filter.AvailableOnly && !row.IsAvailable {
			continue
		}
		if filter.UserID != "" && row.UserID != filter.UserID {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	if filter.Limit > 0 && len(rows) > filter.Limit {
		rows = rows[:filter.Limit]
	}
	out := make([]models.Item, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.withOwner(row.Item))
	}
	return out, nil
}

// UpdateItemStatus sets the moderation status and reports the previous one.
func (s *Store) UpdateItemStatus(_ context.Context, id string, status models.ItemStatus) (storage.ItemStatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.items[id]
	if !ok {
		return storage.ItemStatusChange{}, storage.ErrNotFound
	}
	change := storage.ItemStatusChange{
		Previous:      row.Status,
		FirstApproval: status == models.ItemApproved && !row.approvalAwarded,
	}
	if status == models.ItemApproved {
		row.approvalAwarded = true
	}
	row.Status = status
	row.UpdatedAt = s.now()
	change.Item = s.withOwner(row.Item)
	return change, nil
}

// DeleteItem removes a listing and the swaps that request it.
func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return storage.ErrNotFound
	}
	s.deleteItemLocked(id)
	return nil
}

func (s *Store) deleteItemLocked(id string) {
	delete(s.items, id)
	for swapID, swap := range s.swaps {
		if swap.ItemID == id {
			delete(s.swaps, swapID)
			continue
		}
		if swap.OfferedItemID != nil && *swap.OfferedItemID == id {
			swap.OfferedItemID = nil
		}
	}
}

// CreateSwap inserts a pending swap request.
func (s *Store) CreateSwap(_ context.Context, swap models.Swap) (models.Swap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[swap.ItemID]; !ok {
		return models.Swap{}, storage.ErrNotFound
	}
	now := s.now()
	swap.ID = uuid.NewString()
	swap.Status = models.SwapPending
	swap.CreatedAt, swap.UpdatedAt = now, now
	s.swaps[swap.ID] = &swapRow{Swap: stripSwapJoins(swap), seq: s.next()}
	return s.withSwapJoins(swap), nil
}

// FindSwap fetches one swap with joined summaries.
func (s *Store) FindSwap(_ context.Context, id string) (models.Swap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.swaps[id]
	if !ok {
		return models.Swap{}, storage.ErrNotFound
	}
	return s.withSwapJoins(row.Swap), nil
}

// ListSwapsForUser returns swaps where userID is either party, newest first.
func (s *Store) ListSwapsForUser(_ context.Context, userID string) ([]models.Swap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]*swapRow, 0)
	for _, row := range s.swaps {
		if row.Involves(userID) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	out := make([]models.Swap, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.withSwapJoins(row.Swap))
	}
	return out, nil
}

// AcceptSwap reserves both items and moves the offered points. Nothing is
// written unless every step succeeds.
func (s *Store) AcceptSwap(_ context.Context, id string) (models.Swap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.swaps[id]
	if !ok {
		return models.Swap{}, storage.ErrNotFound
	}
	if row.Status != models.SwapPending {
		return models.Swap{}, fmt.Errorf("%w: swap is %s", storage.ErrConflict, row.Status)
	}

	items := []*itemRow{s.items[row.ItemID]}
	if row.OfferedItemID != nil {
		items = append(items, s.items[*row.OfferedItemID])
	}
	for _, item := range items {
		if item == nil || !item.Listed() {
			return models.Swap{}, fmt.Errorf("%w: item no longer available", storage.ErrConflict)
		}
	}

	var debit, credit storage.PointsChange
	var requester, owner *userRow
	if row.PointsOffered > 0 {
		requester, owner = s.users[row.RequesterID], s.users[row.OwnerID]
		if requester == nil || owner == nil {
			return models.Swap{}, storage.ErrNotFound
		}
		swapID := row.ID
		debit = storage.PointsChange{
			UserID: requester.ID, Amount: -row.PointsOffered, Type: models.TransactionSpent,
			Description: "Swap accepted", RelatedSwapID: &swapID,
		}
		credit = storage.PointsChange{
			UserID: owner.ID, Amount: row.PointsOffered, Type: models.TransactionEarned,
			Description: "Swap accepted", RelatedSwapID: &swapID,
		}
		if _, err := debit.Apply(requester.Points); err != nil {
			return models.Swap{}, err
		}
	}

	now := s.now()
	if requester != nil {
		s.applyLocked(requester, debit, now)
		s.applyLocked(owner, credit, now)
	}
	for _, item := range items {
		item.IsAvailable = false
		item.UpdatedAt = now
	}
	row.Status = models.SwapAccepted
	row.UpdatedAt = now
	return s.withSwapJoins(row.Swap), nil
}

// RejectSwap declines a pending swap.
func (s *Store) RejectSwap(_ context.Context, id string) (models.Swap, error) {
	return s.transition(id, models.SwapPending, models.SwapRejected, nil)
}

// CompleteSwap marks an accepted swap done and both items swapped.
func (s *Store) CompleteSwap(_ context.Context, id string) (models.Swap, error) {
	return s.transition(id, models.SwapAccepted, models.SwapCompleted, func(row *swapRow, now time.Time) {
		ids := []string{row.ItemID}
		if row.OfferedItemID != nil {
			ids = append(ids, *row.OfferedItemID)
		}
		for _, itemID := range ids {
			if item, ok := s.items[itemID]; ok {
				item.Status = models.ItemSwapped
				item.IsAvailable = false
				item.UpdatedAt = now
			}
		}
	})
}

func (s *Store) transition(id string, from, to models.SwapStatus, apply func(*swapRow, time.Time)) (models.Swap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.swaps[id]
	if !ok {
		return models.Swap{}, storage.ErrNotFound
	}
	if row.Status != from {
		return models.Swap{}, fmt.Errorf("%w: swap is %s", storage.ErrConflict, row.Status)
	}
	now := s.now()
	if apply != nil {
		apply(row, now)
	}
	row.Status = to
	row.UpdatedAt = now
	return s.withSwapJoins(row.Swap), nil
}

// UpdateUserPoints applies change and appends the ledger entry.
func (s *Store) UpdateUserPoints(_ context.Context, change storage.PointsChange) (models.User, error) {
	if err := change.Validate(); err != nil {
		return models.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.users[change.UserID]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	if _, err := change.Apply(row.Points); err != nil {
		return models.User{}, err
	}
	s.applyLocked(row, change, s.now())
	return row.User, nil
}

func (s *Store) applyLocked(row *userRow, change storage.PointsChange, now time.Time) {
	row.Points += change.Amount
	row.UpdatedAt = now
	tx := models.PointsTransaction{
		ID:            uuid.NewString(),
		UserID:        row.ID,
		Amount:        change.Amount,
		Type:          change.Type,
		RelatedSwapID: change.RelatedSwapID,
		CreatedAt:     now,
	}
	if change.Description != "" {
		desc := change.Description
		tx.Description = &desc
	}
	s.txs = append(s.txs, &txRow{PointsTransaction: tx, seq: s.next()})
}

// ListTransactions returns the user's ledger, newest first.
func (s *Store) ListTransactions(_ context.Context, userID string, limit int) ([]models.PointsTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PointsTransaction, 0)
	for i := len(s.txs) - 1; i >= 0; i-- {
		if s.txs[i].UserID != userID {
			continue
		}
		out = append(out, s.txs[i].PointsTransaction)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) withOwner(item models.Item) models.Item {
	item.Tags = cloneStrings(item.Tags)
	item.Images = cloneStrings(item.Images)
	if owner, ok := s.users[item.UserID]; ok {
		item.User = owner.Summary()
	}
	return item
}

func (s *Store) withSwapJoins(swap models.Swap) models.Swap {
	if item, ok := s.items[swap.ItemID]; ok {
		swap.Item = &models.ItemSummary{ID: item.ID, Title: item.Title, Images: cloneStrings(item.Images)}
	}
	if swap.OfferedItemID != nil {
		if item, ok := s.items[*swap.OfferedItemID]; ok {
			swap.OfferedItem = &models.ItemSummary{ID: item.ID, Title: item.Title, Images: cloneStrings(item.Images)}
		}
	}
	if user, ok := s.users[swap.RequesterID]; ok {
		swap.Requester = user.Summary()
	}
	if user, ok := s.users[swap.OwnerID]; ok {
		swap.Owner = user.Summary()
	}
	return swap
}

func stripSwapJoins(swap models.Swap) models.Swap {
	swap.Item, swap.OfferedItem, swap.Requester, swap.Owner = nil, nil, nil, nil
	return swap
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
