package service

import (
	"context"
	"log/slog"
	"time"
)

// Runner drives the periodic reconciliation: both sweeps and the override
// recovery.
type Runner struct {
	svc       *Service
	overrides *OverrideScheduler
	interval  time.Duration
	horizon   time.Duration
}

func NewRunner(svc *Service, overrides *OverrideScheduler, interval, horizon time.Duration) *Runner {
	return &Runner{svc: svc, overrides: overrides, interval: interval, horizon: horizon}
}

// Run ticks immediately and then every interval until ctx is done. A zero
// interval disables the loop.
func (r *Runner) Run(ctx context.Context) {
	if r.interval <= 0 {
		slog.Info("reconcile runner disabled")
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	slog.Info("reconcile runner started", "interval", r.interval, "horizon", r.horizon)
	r.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("reconcile runner stopped")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one reconciliation pass. Errors are logged so a failing phase
// does not block the others.
func (r *Runner) Tick(ctx context.Context) {
	grace, err := r.svc.AdvanceToGrace(ctx, r.horizon)
	if err != nil {
		slog.Error("grace sweep failed", "error", err)
	}

	inactive, err := r.svc.AdvanceToInactive(ctx)
	if err != nil {
		slog.Error("inactive sweep failed", "error", err)
	}

	restored := 0
	if r.overrides != nil {
		restored, err = r.overrides.Recover(ctx)
		if err != nil {
			slog.Error("override recovery failed", "error", err)
		}
	}

	slog.Debug("reconcile tick",
		"grace", len(grace),
		"inactive", len(inactive),
		"overrides_restored", restored,
	)
}
