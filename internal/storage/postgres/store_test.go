package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/hongminglow/rewear-be/internal/models"
	"github.com/hongminglow/rewear-be/internal/storage"
)

// newTestStore starts a disposable Postgres container and returns a migrated store.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("RUN_DB_INTEGRATION") != "true" {
		t.Skip("set RUN_DB_INTEGRATION=true to run postgres store tests")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("rewear_test"),
		tcpostgres.WithUsername("test_user"),
		tcpostgres.WithPassword("test_password"),
		tcpostgres.BasicWaitStrategies(),
		testcontainers.WithLabels(map[string]string{"test": "rewear-store", "test-name": t.Name()}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewStore(ctx, url)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func createUser(t *testing.T, s *Store, email string, points int64) models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), models.User{Email: email, Points: points, PasswordHash: "hash"})
	require.NoError(t, err)
	return u
}

func createItem(t *testing.T, s *Store, owner models.User, title string, status models.ItemStatus) models.Item {
	t.Helper()
	item, err := s.CreateItem(context.Background(), models.Item{
		UserID: owner.ID, Title: title, Category: "outerwear", Size: "L",
		Condition: models.ConditionLikeNew, PointsValue: 40, Status: status, IsAvailable: true,
	})
	require.NoError(t, err)
	return item
}

func TestStoreUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u := createUser(t, s, "Ada@Example.com", 100)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, models.RoleUser, u.Role)

	_, err := s.CreateUser(ctx, models.User{Email: "ada@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	found, err := s.FindUserByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = s.FindUserByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	admin, err := s.UpdateUserRole(ctx, u.ID, models.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())
}

func TestStoreLedger(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createUser(t, s, "ledger@example.com", 100)

	updated, err := s.UpdateUserPoints(ctx, storage.PointsChange{
		UserID: u.ID, Amount: 40, Type: models.TransactionEarned, Description: "Item approved: Parka",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(140), updated.Points)

	_, err = s.UpdateUserPoints(ctx, storage.PointsChange{UserID: u.ID, Amount: -500, Type: models.TransactionSpent})
	assert.ErrorIs(t, err, storage.ErrInsufficientPoints)

	txs, err := s.ListTransactions(ctx, u.ID, 5)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TransactionEarned, txs[0].Type)

	fresh, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(140), fresh.Points)
}

func TestStoreItemsAndSwaps(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := createUser(t, s, "owner@example.com", 0)
	requester := createUser(t, s, "req@example.com", 100)

	item := createItem(t, s, owner, "Parka", models.ItemPending)
	change, err := s.UpdateItemStatus(ctx, item.ID, models.ItemApproved)
	require.NoError(t, err)
	assert.Equal(t, models.ItemPending, change.Previous)
	assert.Equal(t, models.ItemApproved, change.Item.Status)
	assert.True(t, change.FirstApproval)

	_, err = s.UpdateItemStatus(ctx, item.ID, models.ItemRejected)
	require.NoError(t, err)
	change, err = s.UpdateItemStatus(ctx, item.ID, models.ItemApproved)
	require.NoError(t, err)
	assert.False(t, change.FirstApproval)

	listed, err := s.ListItems(ctx, storage.ItemFilter{Status: models.ItemApproved, AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].User)
	assert.Equal(t, "owner@example.com", listed[0].User.Email)

	swap, err := s.CreateSwap(ctx, models.Swap{RequesterID: requester.ID, OwnerID: owner.ID, ItemID: item.ID, PointsOffered: 40})
	require.NoError(t, err)
	assert.Equal(t, models.SwapPending, swap.Status)

	accepted, err := s.AcceptSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SwapAccepted, accepted.Status)

	r, _ := s.FindUserByID(ctx, requester.ID)
	o, _ := s.FindUserByID(ctx, owner.ID)
	assert.Equal(t, int64(60), r.Points)
	assert.Equal(t, int64(40), o.Points)

	_, err = s.RejectSwap(ctx, swap.ID)
	assert.ErrorIs(t, err, storage.ErrConflict)

	completed, err := s.CompleteSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SwapCompleted, completed.Status)

	swapped, err := s.FindItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemSwapped, swapped.Status)

	require.NoError(t, s.DeleteUser(ctx, owner.ID))
	_, err = s.FindItem(ctx, item.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	swaps, err := s.ListSwapsForUser(ctx, requester.ID)
	require.NoError(t, err)
	assert.Empty(t, swaps)
}

func TestStoreAcceptSwapRollsBackOnInsufficientPoints(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := createUser(t, s, "owner@example.com", 0)
	requester := createUser(t, s, "poor@example.com", 5)
	item := createItem(t, s, owner, "Scarf", models.ItemApproved)

	swap, err := s.CreateSwap(ctx, models.Swap{RequesterID: requester.ID, OwnerID: owner.ID, ItemID: item.ID, PointsOffered: 40})
	require.NoError(t, err)

	_, err = s.AcceptSwap(ctx, swap.ID)
	assert.ErrorIs(t, err, storage.ErrInsufficientPoints)

	still, err := s.FindSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SwapPending, still.Status)
	it, err := s.FindItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, it.IsAvailable)
}
