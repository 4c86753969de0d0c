package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/clubbot/core/access"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) ListExpired(ctx context.Context, now time.Time) ([]int64, error) {
	args := m.Called(ctx, now)
	if users, ok := args.Get(0).([]int64); ok {
		return users, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLedger) DeleteExpired(ctx context.Context, userID int64, now time.Time) (bool, error) {
	args := m.Called(ctx, userID, now)
	return args.Bool(0), args.Error(1)
}

type mockAccess struct {
	mock.Mock
}

func (m *mockAccess) Revoke(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SubscriptionActive(ctx context.Context, userID int64, planTag string, until time.Time) {
	m.Called(ctx, userID, planTag, until)
}

func (m *mockNotifier) SubscriptionExpired(ctx context.Context, userID int64) {
	m.Called(ctx, userID)
}

func (m *mockNotifier) PaymentRejected(ctx context.Context, userID int64) {
	m.Called(ctx, userID)
}

func (m *mockNotifier) AdminNewSubscription(ctx context.Context, userID int64, username, planTag string, amount int64, until time.Time) {
	m.Called(ctx, userID, username, planTag, amount, until)
}

func (m *mockNotifier) AdminReview(ctx context.Context, pendingID, userID int64, username, planTag string, amount int64) {
	m.Called(ctx, pendingID, userID, username, planTag, amount)
}

func (m *mockNotifier) AdminAlert(ctx context.Context, text string) {
	m.Called(ctx, text)
}

type fixture struct {
	store    *mockLedger
	access   *mockAccess
	notifier *mockNotifier
	sweeper  *Sweeper
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    &mockLedger{},
		access:   &mockAccess{},
		notifier: &mockNotifier{},
		now:      time.Date(2025, 4, 1, 3, 0, 0, 0, time.UTC),
	}
	f.sweeper = New(f.store, f.access, f.notifier, time.Hour)
	return f
}

func TestRunOnceEmpty(t *testing.T) {
	f := newFixture(t)
	f.store.On("ListExpired", mock.Anything, f.now).Return([]int64{}, nil)

	removed, failed, err := f.sweeper.RunOnce(context.Background(), f.now)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Zero(t, failed)

	f.access.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything)
}

func TestRunOnceRemovesExpiredMember(t *testing.T) {
	f := newFixture(t)
	f.store.On("ListExpired", mock.Anything, f.now).Return([]int64{42}, nil)
	f.access.On("Revoke", mock.Anything, int64(42)).Return(nil)
	f.store.On("DeleteExpired", mock.Anything, int64(42), f.now).Return(true, nil)
	f.notifier.On("SubscriptionExpired", mock.Anything, int64(42)).Return()

	removed, failed, err := f.sweeper.RunOnce(context.Background(), f.now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Zero(t, failed)

	f.store.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestRunOnceRevokeFailureKeepsRecord(t *testing.T) {
	f := newFixture(t)
	f.store.On("ListExpired", mock.Anything, f.now).Return([]int64{42}, nil)
	f.access.On("Revoke", mock.Anything, int64(42)).Return(errors.New("telegram: 500"))

	removed, failed, err := f.sweeper.RunOnce(context.Background(), f.now)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Equal(t, 1, failed)

	// The record survives so the next pass retries the removal.
	f.store.AssertNotCalled(t, "DeleteExpired", mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "SubscriptionExpired", mock.Anything, mock.Anything)
}

func TestRunOncePermissionDeniedAlertsAdmin(t *testing.T) {
	f := newFixture(t)
	denied := &access.Error{Kind: access.KindPermissionDenied, Op: "revoke", UserID: 42,
		Err: errors.New("not enough rights")}

	f.store.On("ListExpired", mock.Anything, f.now).Return([]int64{42}, nil)
	f.access.On("Revoke", mock.Anything, int64(42)).Return(denied)
	f.notifier.On("AdminAlert", mock.Anything, mock.Anything).Return()

	_, failed, err := f.sweeper.RunOnce(context.Background(), f.now)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	f.notifier.AssertExpectations(t)
}

func TestRunOnceOneFailureDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	f.store.On("ListExpired", mock.Anything, f.now).Return([]int64{1, 2, 3}, nil)

	f.access.On("Revoke", mock.Anything, int64(1)).Return(nil)
	f.access.On("Revoke", mock.Anything, int64(2)).Return(errors.New("timeout"))
	f.access.On("Revoke", mock.Anything, int64(3)).Return(nil)

	f.store.On("DeleteExpired", mock.Anything, int64(1), f.now).Return(true, nil)
	f.store.On("DeleteExpired", mock.Anything, int64(3), f.now).Return(true, nil)
	f.notifier.On("SubscriptionExpired", mock.Anything, int64(1)).Return()
	f.notifier.On("SubscriptionExpired", mock.Anything, int64(3)).Return()

	removed, failed, err := f.sweeper.RunOnce(context.Background(), f.now)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, failed)

	f.store.AssertExpectations(t)
	f.access.AssertExpectations(t)
}

func TestRunOnceRenewalRaceKeepsRow(t *testing.T) {
	f := newFixture(t)
	f.store.On("ListExpired", mock.Anything, f.now).Return([]int64{42}, nil)
	f.access.On("Revoke", mock.Anything, int64(42)).Return(nil)
	// Renewal landed between the scan and the delete.
	f.store.On("DeleteExpired", mock.Anything, int64(42), f.now).Return(false, nil)
	f.notifier.On("AdminAlert", mock.Anything, mock.Anything).Return()

	removed, failed, err := f.sweeper.RunOnce(context.Background(), f.now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Zero(t, failed)

	f.notifier.AssertNotCalled(t, "SubscriptionExpired", mock.Anything, mock.Anything)
	f.notifier.AssertExpectations(t)
}

func TestRunOnceDeleteFailureAlertsAdmin(t *testing.T) {
	f := newFixture(t)
	f.store.On("ListExpired", mock.Anything, f.now).Return([]int64{42}, nil)
	f.access.On("Revoke", mock.Anything, int64(42)).Return(nil)
	f.store.On("DeleteExpired", mock.Anything, int64(42), f.now).
		Return(false, errors.New("connection reset"))
	f.notifier.On("AdminAlert", mock.Anything, mock.Anything).Return()

	removed, failed, err := f.sweeper.RunOnce(context.Background(), f.now)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Equal(t, 1, failed)
	f.notifier.AssertExpectations(t)
}

func TestRunOnceListFailure(t *testing.T) {
	f := newFixture(t)
	f.store.On("ListExpired", mock.Anything, f.now).Return(nil, errors.New("db down"))

	_, _, err := f.sweeper.RunOnce(context.Background(), f.now)
	assert.Error(t, err)
	f.access.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything)
}
