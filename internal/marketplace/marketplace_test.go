package marketplace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/rewear-be/internal/events"
	"github.com/hongminglow/rewear-be/internal/models"
	"github.com/hongminglow/rewear-be/internal/notify"
	"github.com/hongminglow/rewear-be/internal/storage"
	"github.com/hongminglow/rewear-be/internal/storage/memory"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyItemStatus(ctx context.Context, notice notify.ItemStatusNotice) error {
	return m.Called(ctx, notice).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, payload any) error {
	return m.Called(ctx, subject, payload).Error(0)
}

func (m *mockPublisher) Close() {}

type fixture struct {
	store     *memory.Store
	notifier  *mockNotifier
	publisher *mockPublisher
	svc       *Service
}

func newFixture() fixture {
	f := fixture{store: memory.New(), notifier: new(mockNotifier), publisher: new(mockPublisher)}
	f.svc = New(f.store, f.notifier, f.publisher)
	return f
}

func (f fixture) user(t *testing.T, email string, points int64) models.User {
	t.Helper()
	name := "Test " + email
	u, err := f.store.CreateUser(context.Background(), models.User{Email: email, FullName: &name, Points: points, Role: models.RoleUser, PasswordHash: "x"})
	require.NoError(t, err)
	return u
}

func (f fixture) item(t *testing.T, owner models.User, status models.ItemStatus, points int64) models.Item {
	t.Helper()
	it, err := f.store.CreateItem(context.Background(), models.Item{
		UserID: owner.ID, Title: "Denim Jacket", Category: "outerwear", Size: "M",
		Condition: models.ConditionGood, PointsValue: points, Status: status, IsAvailable: true,
	})
	require.NoError(t, err)
	return it
}

func TestReviewItemAwardsPointsOnceOnApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	owner := f.user(t, "owner@example.com", 100)
	it := f.item(t, owner, models.ItemPending, 25)

	f.notifier.On("NotifyItemStatus", ctx, mock.MatchedBy(func(n notify.ItemStatusNotice) bool {
		return n.To == "owner@example.com" && n.Status == "approved" && n.ItemTitle == "Denim Jacket"
	})).Return(nil).Once()
	f.publisher.On("Publish", ctx, events.SubjectItemStatusChanged, mock.Anything).Return(nil).Once()

	got, err := f.svc.ReviewItem(ctx, it.ID, models.ItemApproved)
	require.NoError(t, err)
	assert.Equal(t, models.ItemApproved, got.Status)

	// Re-approving is a no-op.
	_, err = f.svc.ReviewItem(ctx, it.ID, models.ItemApproved)
	require.NoError(t, err)

	u, err := f.store.FindUserByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(125), u.Points)

	txs, err := f.store.ListTransactions(ctx, owner.ID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TransactionEarned, txs[0].Type)
	assert.Equal(t, "Item approved: Denim Jacket", *txs[0].Description)

	f.notifier.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestReviewItemRejectionNotifiesWithoutPoints(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	owner := f.user(t, "owner@example.com", 100)
	it := f.item(t, owner, models.ItemPending, 25)

	f.notifier.On("NotifyItemStatus", ctx, mock.Anything).Return(errors.New("smtp down")).Once()
	f.publisher.On("Publish", ctx, events.SubjectItemStatusChanged, mock.Anything).Return(errors.New("nats down")).Once()

	got, err := f.svc.ReviewItem(ctx, it.ID, models.ItemRejected)
	require.NoError(t, err)
	assert.Equal(t, models.ItemRejected, got.Status)

	u, err := f.store.FindUserByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), u.Points)
}

func TestReviewItemRejectsUnknownStatus(t *testing.T) {
	f := newFixture()
	_, err := f.svc.ReviewItem(context.Background(), "whatever", models.ItemSwapped)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestNotifyItemStatusUnknownUser(t *testing.T) {
	f := newFixture()
	sent, err := f.svc.NotifyItemStatus(context.Background(), "missing", "i1", "approved", "Scarf")
	require.NoError(t, err)
	assert.False(t, sent)
	f.notifier.AssertNotCalled(t, "NotifyItemStatus", mock.Anything, mock.Anything)
}

func TestAdjustPointsAllowsNegative(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	u := f.user(t, "a@example.com", 10)

	got, err := f.svc.AdjustPoints(ctx, u.ID, -30, "")
	require.NoError(t, err)
	assert.Equal(t, int64(-20), got.Points)

	txs, err := f.store.ListTransactions(ctx, u.ID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TransactionAdminAdjustment, txs[0].Type)
}

func TestRequestSwapValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	owner := f.user(t, "owner@example.com", 0)
	requester := f.user(t, "req@example.com", 5)
	listed := f.item(t, owner, models.ItemApproved, 20)
	pending := f.item(t, owner, models.ItemPending, 20)

	_, err := f.svc.RequestSwap(ctx, owner, SwapRequest{ItemID: listed.ID, PointsOffered: 20})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = f.svc.RequestSwap(ctx, requester, SwapRequest{ItemID: pending.ID, PointsOffered: 20})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = f.svc.RequestSwap(ctx, requester, SwapRequest{ItemID: listed.ID, PointsOffered: 10})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = f.svc.RequestSwap(ctx, requester, SwapRequest{ItemID: listed.ID, PointsOffered: 20})
	assert.ErrorIs(t, err, storage.ErrInsufficientPoints)

	foreign := f.item(t, owner, models.ItemApproved, 5)
	_, err = f.svc.RequestSwap(ctx, requester, SwapRequest{ItemID: listed.ID, OfferedItemID: &foreign.ID})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestSwapLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	owner := f.user(t, "owner@example.com", 0)
	requester := f.user(t, "req@example.com", 50)
	stranger := f.user(t, "x@example.com", 0)
	listed := f.item(t, owner, models.ItemApproved, 20)

	f.publisher.On("Publish", ctx, events.SubjectSwapStatusChanged, mock.Anything).Return(nil)

	swap, err := f.svc.RequestSwap(ctx, requester, SwapRequest{ItemID: listed.ID, PointsOffered: 20})
	require.NoError(t, err)
	assert.Equal(t, models.SwapPending, swap.Status)

	_, err = f.svc.RespondToSwap(ctx, requester, swap.ID, ActionAccept)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.RespondToSwap(ctx, owner, swap.ID, "maybe")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	accepted, err := f.svc.RespondToSwap(ctx, owner, swap.ID, ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, models.SwapAccepted, accepted.Status)

	r, err := f.store.FindUserByID(ctx, requester.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), r.Points)
	o, err := f.store.FindUserByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), o.Points)

	_, err = f.svc.RespondToSwap(ctx, stranger, swap.ID, ActionComplete)
	assert.ErrorIs(t, err, ErrForbidden)

	done, err := f.svc.RespondToSwap(ctx, requester, swap.ID, ActionComplete)
	require.NoError(t, err)
	assert.Equal(t, models.SwapCompleted, done.Status)

	it, err := f.store.FindItem(ctx, listed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemSwapped, it.Status)
}

func TestReviewItemReapprovalDoesNotAwardAgain(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	owner := f.user(t, "owner@example.com", 100)
	it := f.item(t, owner, models.ItemPending, 25)

	f.notifier.On("NotifyItemStatus", ctx, mock.Anything).Return(nil)
	f.publisher.On("Publish", ctx, events.SubjectItemStatusChanged, mock.Anything).Return(nil)

	for _, status := range []models.ItemStatus{
		models.ItemApproved, models.ItemRejected, models.ItemApproved, models.ItemRejected, models.ItemApproved,
	} {
		_, err := f.svc.ReviewItem(ctx, it.ID, status)
		require.NoError(t, err)
	}

	u, err := f.store.FindUserByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(125), u.Points)

	txs, err := f.store.ListTransactions(ctx, owner.ID, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
	f.notifier.AssertNumberOfCalls(t, "NotifyItemStatus", 5)
}
