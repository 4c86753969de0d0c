// Package ledger owns the durable membership and pending-payment records.
// All mutations go through Store; other components only consume derived
// facts (user ids, expiry timestamps) handed to them.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/clubbot/core/logger"
)

// ErrNoPending is returned when a user has no open pending payment.
var ErrNoPending = errors.New("ledger: no pending payment")

// ErrNotFound is returned for id-keyed lookups that match nothing.
var ErrNotFound = errors.New("ledger: not found")

// Store provides serialized access to the subscription tables.
type Store struct {
	db *sqlx.DB
}

// New wraps an open database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// UpsertMembership writes the membership row for m.UserID, replacing any
// prior record. joined_date is preserved across overwrites.
func (s *Store) UpsertMembership(ctx context.Context, m Membership) error {
	const op = "ledger.UpsertMembership"

	query := `INSERT INTO memberships (user_id, username, first_name, last_name, subscription_end)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (user_id) DO UPDATE SET
	              username = EXCLUDED.username,
	              first_name = EXCLUDED.first_name,
	              last_name = EXCLUDED.last_name,
	              subscription_end = EXCLUDED.subscription_end`
	_, err := s.db.ExecContext(ctx, query,
		m.UserID, m.Username, m.FirstName, m.LastName, m.SubscriptionEnd)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Ledger.Debug("membership upserted",
		slog.String("event", "ledger.upsert"),
		slog.Int64("user_id", m.UserID),
		slog.Time("subscription_end", m.SubscriptionEnd.Time),
	)
	return nil
}

// GetMembership returns the subscription expiry for userID. The second
// return value reports presence: a missing row or a NULL expiry is
// "never subscribed", not an error. Storage failures are errors.
func (s *Store) GetMembership(ctx context.Context, userID int64) (time.Time, bool, error) {
	const op = "ledger.GetMembership"

	var end sql.NullTime
	err := s.db.GetContext(ctx, &end,
		`SELECT subscription_end FROM memberships WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s: %w", op, err)
	}
	if !end.Valid {
		return time.Time{}, false, nil
	}
	return end.Time, true, nil
}

// ListExpired returns the users whose subscription ended before now.
func (s *Store) ListExpired(ctx context.Context, now time.Time) ([]int64, error) {
	const op = "ledger.ListExpired"

	var users []int64
	err := s.db.SelectContext(ctx, &users,
		`SELECT user_id FROM memberships WHERE subscription_end IS NOT NULL AND subscription_end < $1`, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// DeleteExpired removes the membership row for userID only if it is still
// expired at now. The expiry condition is re-verified inside the statement,
// so a renewal committed between a sweep scan and this delete keeps the row.
// Returns whether a row was actually deleted.
func (s *Store) DeleteExpired(ctx context.Context, userID int64, now time.Time) (bool, error) {
	const op = "ledger.DeleteExpired"

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE user_id = $1 AND subscription_end IS NOT NULL AND subscription_end < $2`,
		userID, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// CreatePending opens a manual payment claim for userID and returns its id.
func (s *Store) CreatePending(ctx context.Context, userID int64, planTag string, amount int64) (int64, error) {
	const op = "ledger.CreatePending"

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO pending_payments (user_id, plan, amount) VALUES ($1, $2, $3) RETURNING id`,
		userID, planTag, amount).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	logger.Ledger.Debug("pending created",
		slog.String("event", "ledger.pending.create"),
		slog.Int64("pending_id", id),
		slog.Int64("user_id", userID),
		slog.String("plan", planTag),
	)
	return id, nil
}

// LatestPending returns the most recent still-pending claim for userID,
// or ErrNoPending when no open claim exists.
func (s *Store) LatestPending(ctx context.Context, userID int64) (*PendingPayment, error) {
	const op = "ledger.LatestPending"

	var p PendingPayment
	err := s.db.GetContext(ctx, &p,
		`SELECT id, user_id, plan, amount, proof_submitted, status, created_at
		 FROM pending_payments
		 WHERE user_id = $1 AND status = $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`, userID, StatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoPending
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// GetPending returns the claim with the given id.
func (s *Store) GetPending(ctx context.Context, id int64) (*PendingPayment, error) {
	const op = "ledger.GetPending"

	var p PendingPayment
	err := s.db.GetContext(ctx, &p,
		`SELECT id, user_id, plan, amount, proof_submitted, status, created_at
		 FROM pending_payments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// MarkProofSubmitted flags the claim as having a proof artifact attached.
// Only open claims can be flagged.
func (s *Store) MarkProofSubmitted(ctx context.Context, id int64) error {
	const op = "ledger.MarkProofSubmitted"

	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_payments SET proof_submitted = true WHERE id = $1 AND status = $2`,
		id, StatusPending)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPendingStatus moves an open claim to confirmed or rejected. The guard
// on the current status keeps transitions monotonic: a claim decided once
// is never re-decided, and the second caller learns that via false.
func (s *Store) SetPendingStatus(ctx context.Context, id int64, status string) (bool, error) {
	const op = "ledger.SetPendingStatus"

	if status != StatusConfirmed && status != StatusRejected {
		return false, fmt.Errorf("%s: invalid target status %q", op, status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_payments SET status = $1 WHERE id = $2 AND status = $3`,
		status, id, StatusPending)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if n > 0 {
		logger.Ledger.Info("pending decided",
			slog.String("event", "ledger.pending.decide"),
			slog.Int64("pending_id", id),
			slog.String("status", status),
		)
	}
	return n > 0, nil
}
