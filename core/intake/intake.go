// Package intake turns payment events into ledger writes and channel access.
// Two entry paths converge here: gateway callbacks carrying a payment
// reference, and manual bank-transfer proofs decided by the admin.
package intake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/clubbot/core/ledger"
	"github.com/m3rciful/clubbot/core/logger"
	"github.com/m3rciful/clubbot/core/metrics"
	"github.com/m3rciful/clubbot/core/notify"
	"github.com/m3rciful/clubbot/core/plan"
)

// ReferencePrefix starts every payment reference issued with an invoice.
const ReferencePrefix = "subscription"

// ErrBadReference marks a payment reference that cannot be parsed.
// No state is written when a reference is rejected.
var ErrBadReference = errors.New("intake: malformed payment reference")

// ErrAlreadyDecided marks a pending payment that was already confirmed or
// rejected. Decisions are final; a repeat decision is a no-op.
var ErrAlreadyDecided = errors.New("intake: payment already decided")

// Ledger is the persistence surface the intake service writes through.
type Ledger interface {
	UpsertMembership(ctx context.Context, m ledger.Membership) error
	CreatePending(ctx context.Context, userID int64, planTag string, amount int64) (int64, error)
	LatestPending(ctx context.Context, userID int64) (*ledger.PendingPayment, error)
	GetPending(ctx context.Context, id int64) (*ledger.PendingPayment, error)
	MarkProofSubmitted(ctx context.Context, id int64) error
	SetPendingStatus(ctx context.Context, id int64, status string) (bool, error)
}

// Access grants channel membership.
type Access interface {
	Grant(ctx context.Context, userID int64) error
}

// Profile carries the payer identity captured from the update.
type Profile struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
}

// Reference is a parsed payment reference.
type Reference struct {
	PlanTag string
	UserID  int64
}

// ParseReference decodes a "subscription_<plan>_<user_id>" payload.
// Plan tags may themselves contain underscores; the last token is always
// the user id.
func ParseReference(raw string) (Reference, error) {
	parts := strings.Split(raw, "_")
	if len(parts) < 3 || parts[0] != ReferencePrefix {
		return Reference{}, fmt.Errorf("%w: %q", ErrBadReference, raw)
	}
	userID, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil || userID <= 0 {
		return Reference{}, fmt.Errorf("%w: bad user id in %q", ErrBadReference, raw)
	}
	return Reference{
		PlanTag: strings.Join(parts[1:len(parts)-1], "_"),
		UserID:  userID,
	}, nil
}

// BuildReference encodes the payload attached to an invoice.
func BuildReference(planTag string, userID int64) string {
	return fmt.Sprintf("%s_%s_%d", ReferencePrefix, planTag, userID)
}

// Service coordinates payment confirmation.
type Service struct {
	store    Ledger
	plans    *plan.Table
	access   Access
	notifier notify.Notifier
	now      func() time.Time
}

// New builds an intake service.
func New(store Ledger, plans *plan.Table, access Access, notifier notify.Notifier) *Service {
	return &Service{
		store:    store,
		plans:    plans,
		access:   access,
		notifier: notifier,
		now:      time.Now,
	}
}

// Result reports a processed confirmation.
type Result struct {
	Plan plan.Plan
	End  time.Time
}

// ConfirmGateway processes a successful gateway payment. The reference is
// parsed, the membership is recorded first, then access is granted and
// notices go out. A grant failure after the ledger write is surfaced to the
// admin so the user can be admitted manually.
func (s *Service) ConfirmGateway(ctx context.Context, rawRef string, profile Profile) (Result, error) {
	ref, err := ParseReference(rawRef)
	if err != nil {
		logger.Warn(ctx, logger.Intake, "intake.bad_reference",
			slog.String("reference", rawRef),
		)
		return Result{}, err
	}
	if profile.UserID == 0 {
		profile.UserID = ref.UserID
	}

	res, err := s.activate(ctx, ref.PlanTag, profile, "gateway")
	if err != nil {
		return res, err
	}

	metrics.PaymentsConfirmed.WithLabelValues("gateway").Inc()
	return res, nil
}

// activate records the membership, grants access and sends notices.
// The ledger write always precedes the grant so a crash or API failure in
// between leaves a paid-but-ungranted record rather than granted-but-unpaid.
func (s *Service) activate(ctx context.Context, planTag string, profile Profile, source string) (Result, error) {
	p := s.plans.Resolve(planTag)
	now := s.now()
	end := now.Add(time.Duration(p.Days) * 24 * time.Hour)

	m := ledger.Membership{
		UserID:          profile.UserID,
		Username:        profile.Username,
		FirstName:       profile.FirstName,
		LastName:        profile.LastName,
		SubscriptionEnd: sql.NullTime{Time: end, Valid: true},
		JoinedDate:      now,
	}
	if err := s.store.UpsertMembership(ctx, m); err != nil {
		return Result{}, fmt.Errorf("intake: record membership: %w", err)
	}

	logger.Info(ctx, logger.Intake, "intake.membership_recorded",
		slog.Int64("user_id", profile.UserID),
		slog.String("plan", p.Tag),
		slog.String("source", source),
		slog.Time("subscription_end", end),
	)

	if err := s.access.Grant(ctx, profile.UserID); err != nil {
		s.notifier.AdminAlert(ctx, fmt.Sprintf(
			"Оплата пользователя %d записана, но открыть доступ не удалось: %v. Добавьте вручную.",
			profile.UserID, err,
		))
		return Result{Plan: p, End: end}, fmt.Errorf("intake: grant access: %w", err)
	}
	metrics.Grants.Inc()

	s.notifier.SubscriptionActive(ctx, profile.UserID, p.Tag, end)
	s.notifier.AdminNewSubscription(ctx, profile.UserID, profile.Username, p.Tag, p.Amount, end)

	return Result{Plan: p, End: end}, nil
}

// StartPending opens a pending payment record for a manual bank transfer.
func (s *Service) StartPending(ctx context.Context, userID int64, planTag string) (int64, plan.Plan, error) {
	p := s.plans.Resolve(planTag)
	id, err := s.store.CreatePending(ctx, userID, p.Tag, p.Amount)
	if err != nil {
		return 0, plan.Plan{}, fmt.Errorf("intake: open pending payment: %w", err)
	}
	metrics.PendingCreated.Inc()
	logger.Info(ctx, logger.Intake, "intake.pending_opened",
		slog.Int64("pending_id", id),
		slog.Int64("user_id", userID),
		slog.String("plan", p.Tag),
	)
	return id, p, nil
}

// SubmitProof attaches a payment proof to the user's latest open pending
// record and forwards it to the admin for review. ledger.ErrNoPending is
// returned when the user has nothing awaiting proof.
func (s *Service) SubmitProof(ctx context.Context, profile Profile) (*ledger.PendingPayment, error) {
	pending, err := s.store.LatestPending(ctx, profile.UserID)
	if err != nil {
		if errors.Is(err, ledger.ErrNoPending) {
			return nil, err
		}
		return nil, fmt.Errorf("intake: find pending payment: %w", err)
	}
	if err := s.store.MarkProofSubmitted(ctx, pending.ID); err != nil {
		return nil, fmt.Errorf("intake: mark proof submitted: %w", err)
	}

	s.notifier.AdminReview(ctx, pending.ID, profile.UserID, profile.Username, pending.Plan, pending.Amount)
	logger.Info(ctx, logger.Intake, "intake.proof_submitted",
		slog.Int64("pending_id", pending.ID),
		slog.Int64("user_id", profile.UserID),
	)
	return pending, nil
}

// Decide finalizes a pending payment. Approval activates the subscription on
// the pending record's plan; rejection notifies the user. A record that was
// already decided yields ErrAlreadyDecided and no further writes.
func (s *Service) Decide(ctx context.Context, pendingID int64, approve bool) (Result, error) {
	pending, err := s.store.GetPending(ctx, pendingID)
	if err != nil {
		return Result{}, fmt.Errorf("intake: load pending payment: %w", err)
	}

	status := ledger.StatusRejected
	if approve {
		status = ledger.StatusConfirmed
	}
	changed, err := s.store.SetPendingStatus(ctx, pendingID, status)
	if err != nil {
		return Result{}, fmt.Errorf("intake: set pending status: %w", err)
	}
	if !changed {
		return Result{}, fmt.Errorf("%w: id %d", ErrAlreadyDecided, pendingID)
	}

	if !approve {
		metrics.PaymentsRejected.Inc()
		s.notifier.PaymentRejected(ctx, pending.UserID)
		logger.Info(ctx, logger.Intake, "intake.payment_rejected",
			slog.Int64("pending_id", pendingID),
			slog.Int64("user_id", pending.UserID),
		)
		return Result{}, nil
	}

	res, err := s.activate(ctx, pending.Plan, Profile{UserID: pending.UserID}, "manual")
	if err != nil {
		return res, err
	}
	metrics.PaymentsConfirmed.WithLabelValues("manual").Inc()
	return res, nil
}
