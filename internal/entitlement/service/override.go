package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillqa17/vpn-api/internal/entitlement"
	"github.com/kirillqa17/vpn-api/internal/metrics"
	"github.com/kirillqa17/vpn-api/pkg/apperrors"
)

const (
	DefaultOverrideDelay = 30 * time.Minute
	restoreTimeout       = 30 * time.Second
)

// OverrideScheduler zeroes an account's device limit for a fixed delay so the
// user can re-register devices. Pending restorations are stored, so a restart
// only delays them until Recover runs.
type OverrideScheduler struct {
	repo  entitlement.Repository
	prov  Provisioner
	delay time.Duration
	now   func() time.Time

	mu      sync.Mutex
	timers  map[int64]*time.Timer
	stopped bool
}

func NewOverrideScheduler(repo entitlement.Repository, prov Provisioner, delay time.Duration, now func() time.Time) *OverrideScheduler {
	if delay <= 0 {
		delay = DefaultOverrideDelay
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &OverrideScheduler{
		repo:   repo,
		prov:   prov,
		delay:  delay,
		now:    now,
		timers: make(map[int64]*time.Timer),
	}
}

func (o *OverrideScheduler) DisableLimitTemporarily(ctx context.Context, accountID int64) (*entitlement.Override, error) {
	var override *entitlement.Override
	err := o.repo.WithTx(ctx, func(tx entitlement.Repository) error {
		e, err := tx.GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		override = &entitlement.Override{
			AccountID:     accountID,
			OriginalLimit: e.DeviceLimit,
			RestoreAt:     o.now().Add(o.delay),
		}
		if err := tx.CreateOverride(ctx, override); err != nil {
			return err
		}

		if err := o.prov.SetDeviceLimit(ctx, e.AccessKey, 0); err != nil {
			return upstream(err, "zero device limit")
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Ensure(err, "disable device limit")
	}

	o.arm(override)
	slog.Info("device limit disabled",
		"account_id", accountID,
		"original_limit", override.OriginalLimit,
		"restore_at", override.RestoreAt,
	)
	return override, nil
}

// Restore pushes the captured limit back and drops the pending record. On
// failure the record stays for the next Recover.
func (o *OverrideScheduler) Restore(ctx context.Context, accountID int64) error {
	err := o.repo.WithTx(ctx, func(tx entitlement.Repository) error {
		override, err := tx.GetOverride(ctx, accountID)
		if err != nil {
			return err
		}
		e, err := tx.Get(ctx, accountID)
		if err != nil {
			return err
		}
		if err := o.prov.SetDeviceLimit(ctx, e.AccessKey, override.OriginalLimit); err != nil {
			return upstream(err, "restore device limit")
		}
		return tx.DeleteOverride(ctx, accountID)
	})

	metrics.OverrideRestoresTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return apperrors.Ensure(err, "restore device limit")
	}
	slog.Info("device limit restored", "account_id", accountID)
	return nil
}

// Recover restores overdue records now and arms timers for the rest. It
// returns how many records were restored.
func (o *OverrideScheduler) Recover(ctx context.Context) (int, error) {
	pending, err := o.repo.ListOverrides(ctx)
	if err != nil {
		return 0, apperrors.Ensure(err, "list overrides")
	}

	now := o.now()
	restored := 0
	for _, override := range pending {
		if override.RestoreAt.After(now) {
			o.arm(override)
			continue
		}
		if err := o.Restore(ctx, override.AccountID); err != nil {
			slog.Error("overdue device limit restore failed", "account_id", override.AccountID, "error", err)
			continue
		}
		restored++
	}
	return restored, nil
}

// Stop cancels armed timers. Stored records are left for the next start.
func (o *OverrideScheduler) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopped = true
	for id, t := range o.timers {
		t.Stop()
		delete(o.timers, id)
	}
}

// Pending returns the number of armed timers.
func (o *OverrideScheduler) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.timers)
}

func (o *OverrideScheduler) arm(override *entitlement.Override) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return
	}
	if _, ok := o.timers[override.AccountID]; ok {
		return
	}

	accountID := override.AccountID
	o.timers[accountID] = time.AfterFunc(override.RestoreAt.Sub(o.now()), func() {
		o.mu.Lock()
		delete(o.timers, accountID)
		o.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
		defer cancel()
		if err := o.Restore(ctx, accountID); err != nil {
			slog.Error("scheduled device limit restore failed", "account_id", accountID, "error", err)
		}
	})
}
