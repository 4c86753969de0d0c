// Package sweep reconciles channel access against the ledger: members whose
// subscription expired are removed from the channel and their record cleared.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/clubbot/core/access"
	"github.com/m3rciful/clubbot/core/logger"
	"github.com/m3rciful/clubbot/core/metrics"
	"github.com/m3rciful/clubbot/core/notify"
)

// Ledger is the persistence surface the sweeper reads and prunes.
type Ledger interface {
	ListExpired(ctx context.Context, now time.Time) ([]int64, error)
	DeleteExpired(ctx context.Context, userID int64, now time.Time) (bool, error)
}

// Access revokes channel membership.
type Access interface {
	Revoke(ctx context.Context, userID int64) error
}

// Sweeper periodically removes expired members.
type Sweeper struct {
	store    Ledger
	access   Access
	notifier notify.Notifier
	interval time.Duration
	now      func() time.Time
}

// New builds a sweeper. interval must be positive.
func New(store Ledger, acc Access, notifier notify.Notifier, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		access:   acc,
		notifier: notifier,
		interval: interval,
		now:      time.Now,
	}
}

// Run executes one pass immediately and then one per interval until ctx is
// done. A failed pass is logged and the loop keeps going.
func (s *Sweeper) Run(ctx context.Context) {
	logger.Sweep.Info("sweeper started",
		slog.String("event", "sweep.start"),
		slog.Duration("interval", s.interval),
	)

	s.runPass(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Sweep.Info("sweeper stopped", slog.String("event", "sweep.stop"))
			return
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

func (s *Sweeper) runPass(ctx context.Context) {
	start := s.now()
	removed, failed, err := s.RunOnce(ctx, start)
	if err != nil {
		logger.Error(ctx, logger.Sweep, "sweep.pass_failed",
			slog.String("err", err.Error()),
		)
		s.notifier.AdminAlert(ctx, fmt.Sprintf("Сверка подписок не выполнена: %v", err))
		return
	}
	logger.Sweep.Info("sweep pass complete",
		slog.String("event", "sweep.pass"),
		slog.Int("removed", removed),
		slog.Int("failed", failed),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
}

// RunOnce performs a single reconciliation pass at the given instant.
// For each expired member access is revoked first and only then the record
// deleted; the delete re-verifies expiry, so a renewal that lands between
// the scan and the delete wins. One member's failure never blocks the rest.
func (s *Sweeper) RunOnce(ctx context.Context, now time.Time) (removed, failed int, err error) {
	users, err := s.store.ListExpired(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("sweep: list expired: %w", err)
	}
	if len(users) == 0 {
		metrics.SweepRuns.Inc()
		return 0, 0, nil
	}

	for _, userID := range users {
		if ctx.Err() != nil {
			return removed, failed, ctx.Err()
		}
		if s.removeOne(ctx, userID, now) {
			removed++
		} else {
			failed++
			metrics.SweepErrors.Inc()
		}
	}

	metrics.SweepRuns.Inc()
	return removed, failed, nil
}

func (s *Sweeper) removeOne(ctx context.Context, userID int64, now time.Time) bool {
	if err := s.access.Revoke(ctx, userID); err != nil {
		logger.Warn(ctx, logger.Sweep, "sweep.revoke_failed",
			slog.Int64("user_id", userID),
			slog.String("kind", access.KindOf(err).String()),
			slog.String("err", err.Error()),
		)
		if access.KindOf(err) == access.KindPermissionDenied {
			s.notifier.AdminAlert(ctx, fmt.Sprintf(
				"Не удалось закрыть доступ пользователю %d: у бота нет прав в канале.", userID))
		}
		return false
	}
	metrics.Revokes.Inc()

	deleted, err := s.store.DeleteExpired(ctx, userID, now)
	if err != nil {
		logger.Error(ctx, logger.Sweep, "sweep.delete_failed",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		s.notifier.AdminAlert(ctx, fmt.Sprintf(
			"Пользователь %d исключён из канала, но запись не удалена: %v. Требуется сверка.",
			userID, err))
		return false
	}
	if !deleted {
		// Renewal landed after the scan: the row is no longer expired,
		// so it stays. The admin is told so access can be restored.
		s.notifier.AdminAlert(ctx, fmt.Sprintf(
			"Пользователь %d продлил подписку во время сверки и был исключён. Верните доступ вручную.",
			userID))
		logger.Sweep.Info("expiry superseded by renewal",
			slog.String("event", "sweep.renewal_race"),
			slog.Int64("user_id", userID),
		)
		return true
	}

	s.notifier.SubscriptionExpired(ctx, userID)
	logger.Sweep.Info("expired member removed",
		slog.String("event", "sweep.removed"),
		slog.Int64("user_id", userID),
	)
	return true
}
