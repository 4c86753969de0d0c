// Package metrics exposes Prometheus counters for the subscription lifecycle.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/clubbot/core/logger"
)

var (
	// PaymentsConfirmed counts confirmed payments by source (gateway, manual).
	PaymentsConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clubbot_payments_confirmed_total",
		Help: "Confirmed payments by source.",
	}, []string{"source"})

	// PaymentsRejected counts manual payments declined by the admin.
	PaymentsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubbot_payments_rejected_total",
		Help: "Manual payments rejected by the admin.",
	})

	// PendingCreated counts pending payment records opened.
	PendingCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubbot_pending_created_total",
		Help: "Pending payment records created.",
	})

	// Grants counts successful channel access grants.
	Grants = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubbot_access_grants_total",
		Help: "Successful channel access grants.",
	})

	// Revokes counts successful channel access revocations.
	Revokes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubbot_access_revokes_total",
		Help: "Successful channel access revocations.",
	})

	// SweepRuns counts completed reconciliation sweep passes.
	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubbot_sweep_runs_total",
		Help: "Completed reconciliation sweep passes.",
	})

	// SweepErrors counts per-user failures during sweep passes.
	SweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubbot_sweep_errors_total",
		Help: "Per-user failures during sweep passes.",
	})
)

// Serve runs an HTTP listener with /metrics until ctx is done.
// A blank address disables the listener.
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("metrics listener started",
			slog.String("event", "metrics.listen"),
			slog.String("addr", addr),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
