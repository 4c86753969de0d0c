package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/clubbot/core/config"
	"github.com/m3rciful/clubbot/core/ledger"
	"github.com/m3rciful/clubbot/core/plan"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) UpsertMembership(ctx context.Context, mm ledger.Membership) error {
	args := m.Called(ctx, mm)
	return args.Error(0)
}

func (m *mockLedger) CreatePending(ctx context.Context, userID int64, planTag string, amount int64) (int64, error) {
	args := m.Called(ctx, userID, planTag, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLedger) LatestPending(ctx context.Context, userID int64) (*ledger.PendingPayment, error) {
	args := m.Called(ctx, userID)
	if p, ok := args.Get(0).(*ledger.PendingPayment); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLedger) GetPending(ctx context.Context, id int64) (*ledger.PendingPayment, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(*ledger.PendingPayment); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLedger) MarkProofSubmitted(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockLedger) SetPendingStatus(ctx context.Context, id int64, status string) (bool, error) {
	args := m.Called(ctx, id, status)
	return args.Bool(0), args.Error(1)
}

type mockAccess struct {
	mock.Mock
}

func (m *mockAccess) Grant(ctx context.Context, userID int64) error {
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

func testPlans() *plan.Table {
	return plan.FromConfig(coreconfig.PlansConfig{
		Default: "month",
		Tiers: map[string]coreconfig.PlanConfig{
			"month": {Days: 30, Amount: 555},
			"year":  {Days: 365, Amount: 6130},
		},
	})
}

type fixture struct {
	store    *mockLedger
	access   *mockAccess
	notifier *mockNotifier
	svc      *Service
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    &mockLedger{},
		access:   &mockAccess{},
		notifier: &mockNotifier{},
		now:      time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC),
	}
	f.svc = New(f.store, testPlans(), f.access, f.notifier)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestParseReference(t *testing.T) {
	ref, err := ParseReference("subscription_month_12345")
	require.NoError(t, err)
	assert.Equal(t, "month", ref.PlanTag)
	assert.Equal(t, int64(12345), ref.UserID)

	// Plan tags may contain underscores.
	ref, err = ParseReference("subscription_three_months_77")
	require.NoError(t, err)
	assert.Equal(t, "three_months", ref.PlanTag)
	assert.Equal(t, int64(77), ref.UserID)
}

func TestParseReferenceMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"subscription",
		"subscription_month",
		"payment_month_123",
		"subscription_month_abc",
		"subscription_month_-5",
		"subscription_month_0",
	} {
		_, err := ParseReference(raw)
		assert.ErrorIs(t, err, ErrBadReference, "raw %q", raw)
	}
}

func TestBuildReferenceRoundTrip(t *testing.T) {
	ref, err := ParseReference(BuildReference("year", 42))
	require.NoError(t, err)
	assert.Equal(t, "year", ref.PlanTag)
	assert.Equal(t, int64(42), ref.UserID)
}

func TestConfirmGatewayBadReferenceWritesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ConfirmGateway(context.Background(), "subscription_month", Profile{UserID: 42})
	assert.ErrorIs(t, err, ErrBadReference)

	f.store.AssertNotCalled(t, "UpsertMembership", mock.Anything, mock.Anything)
	f.access.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything)
}

func TestConfirmGatewayHappyPath(t *testing.T) {
	f := newFixture(t)
	wantEnd := f.now.Add(30 * 24 * time.Hour)

	f.store.On("UpsertMembership", mock.Anything, mock.MatchedBy(func(m ledger.Membership) bool {
		return m.UserID == 42 &&
			m.Username == "alice" &&
			m.SubscriptionEnd.Valid &&
			m.SubscriptionEnd.Time.Equal(wantEnd)
	})).Return(nil)
	f.access.On("Grant", mock.Anything, int64(42)).Return(nil)
	f.notifier.On("SubscriptionActive", mock.Anything, int64(42), "month", wantEnd).Return()
	f.notifier.On("AdminNewSubscription", mock.Anything, int64(42), "alice", "month", int64(555), wantEnd).Return()

	res, err := f.svc.ConfirmGateway(context.Background(),
		"subscription_month_42", Profile{UserID: 42, Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "month", res.Plan.Tag)
	assert.Equal(t, wantEnd, res.End)

	f.store.AssertExpectations(t)
	f.access.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestConfirmGatewayUnknownPlanUsesDefault(t *testing.T) {
	f := newFixture(t)
	wantEnd := f.now.Add(30 * 24 * time.Hour)

	f.store.On("UpsertMembership", mock.Anything, mock.Anything).Return(nil)
	f.access.On("Grant", mock.Anything, int64(42)).Return(nil)
	f.notifier.On("SubscriptionActive", mock.Anything, int64(42), "month", wantEnd).Return()
	f.notifier.On("AdminNewSubscription", mock.Anything, int64(42), "", "month", int64(555), wantEnd).Return()

	res, err := f.svc.ConfirmGateway(context.Background(),
		"subscription_lifetime_42", Profile{UserID: 42})
	require.NoError(t, err)
	assert.Equal(t, "month", res.Plan.Tag)
}

func TestConfirmGatewayLedgerFailureBlocksGrant(t *testing.T) {
	f := newFixture(t)

	f.store.On("UpsertMembership", mock.Anything, mock.Anything).
		Return(errors.New("connection refused"))

	_, err := f.svc.ConfirmGateway(context.Background(),
		"subscription_month_42", Profile{UserID: 42})
	require.Error(t, err)

	f.access.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything)
}

func TestConfirmGatewayGrantFailureAlertsAdmin(t *testing.T) {
	f := newFixture(t)

	f.store.On("UpsertMembership", mock.Anything, mock.Anything).Return(nil)
	f.access.On("Grant", mock.Anything, int64(42)).Return(errors.New("not enough rights"))
	f.notifier.On("AdminAlert", mock.Anything, mock.Anything).Return()

	_, err := f.svc.ConfirmGateway(context.Background(),
		"subscription_month_42", Profile{UserID: 42})
	require.Error(t, err)

	// Membership stays recorded; only the user-facing notices are skipped.
	f.store.AssertExpectations(t)
	f.notifier.AssertCalled(t, "AdminAlert", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "SubscriptionActive",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStartPending(t *testing.T) {
	f := newFixture(t)

	f.store.On("CreatePending", mock.Anything, int64(42), "year", int64(6130)).
		Return(int64(7), nil)

	id, p, err := f.svc.StartPending(context.Background(), 42, "year")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, "year", p.Tag)
}

func TestSubmitProofNoPending(t *testing.T) {
	f := newFixture(t)

	f.store.On("LatestPending", mock.Anything, int64(42)).
		Return(nil, ledger.ErrNoPending)

	_, err := f.svc.SubmitProof(context.Background(), Profile{UserID: 42})
	assert.ErrorIs(t, err, ledger.ErrNoPending)

	f.store.AssertNotCalled(t, "MarkProofSubmitted", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "AdminReview",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitProofForwardsToAdmin(t *testing.T) {
	f := newFixture(t)
	pending := &ledger.PendingPayment{ID: 7, UserID: 42, Plan: "month", Amount: 555}

	f.store.On("LatestPending", mock.Anything, int64(42)).Return(pending, nil)
	f.store.On("MarkProofSubmitted", mock.Anything, int64(7)).Return(nil)
	f.notifier.On("AdminReview", mock.Anything, int64(7), int64(42), "alice", "month", int64(555)).Return()

	got, err := f.svc.SubmitProof(context.Background(), Profile{UserID: 42, Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, pending, got)

	f.notifier.AssertExpectations(t)
}

func TestDecideApproveActivatesSubscription(t *testing.T) {
	f := newFixture(t)
	wantEnd := f.now.Add(365 * 24 * time.Hour)
	pending := &ledger.PendingPayment{ID: 7, UserID: 42, Plan: "year", Amount: 6130}

	f.store.On("GetPending", mock.Anything, int64(7)).Return(pending, nil)
	f.store.On("SetPendingStatus", mock.Anything, int64(7), ledger.StatusConfirmed).Return(true, nil)
	f.store.On("UpsertMembership", mock.Anything, mock.Anything).Return(nil)
	f.access.On("Grant", mock.Anything, int64(42)).Return(nil)
	f.notifier.On("SubscriptionActive", mock.Anything, int64(42), "year", wantEnd).Return()
	f.notifier.On("AdminNewSubscription", mock.Anything, int64(42), "", "year", int64(6130), wantEnd).Return()

	res, err := f.svc.Decide(context.Background(), 7, true)
	require.NoError(t, err)
	assert.Equal(t, wantEnd, res.End)

	f.store.AssertExpectations(t)
	f.access.AssertExpectations(t)
}

func TestDecideRejectNotifiesUserOnly(t *testing.T) {
	f := newFixture(t)
	pending := &ledger.PendingPayment{ID: 7, UserID: 42, Plan: "month", Amount: 555}

	f.store.On("GetPending", mock.Anything, int64(7)).Return(pending, nil)
	f.store.On("SetPendingStatus", mock.Anything, int64(7), ledger.StatusRejected).Return(true, nil)
	f.notifier.On("PaymentRejected", mock.Anything, int64(42)).Return()

	_, err := f.svc.Decide(context.Background(), 7, false)
	require.NoError(t, err)

	f.store.AssertNotCalled(t, "UpsertMembership", mock.Anything, mock.Anything)
	f.access.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything)
	f.notifier.AssertExpectations(t)
}

func TestDecideTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	pending := &ledger.PendingPayment{ID: 7, UserID: 42, Plan: "month", Amount: 555}

	f.store.On("GetPending", mock.Anything, int64(7)).Return(pending, nil)
	f.store.On("SetPendingStatus", mock.Anything, int64(7), ledger.StatusConfirmed).Return(false, nil)

	_, err := f.svc.Decide(context.Background(), 7, true)
	assert.ErrorIs(t, err, ErrAlreadyDecided)

	f.store.AssertNotCalled(t, "UpsertMembership", mock.Anything, mock.Anything)
	f.access.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything)
}
