package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillqa17/vpn-api/internal/entitlement"
	"github.com/kirillqa17/vpn-api/internal/metrics"
	"github.com/kirillqa17/vpn-api/pkg/apperrors"
)

// DueForRenewal lists auto-renewing entitlements ending within horizon whose
// last attempt is older than the cooldown. It does not mutate anything.
func (s *Service) DueForRenewal(ctx context.Context, horizon time.Duration) ([]*entitlement.Entitlement, error) {
	if horizon <= 0 {
		return nil, ErrInvalidHorizon
	}

	now := s.now()
	list, err := s.repo.ListDueForRenewal(ctx, now, now.Add(horizon), now.Add(-s.opts.RenewCooldown))
	if err != nil {
		return nil, apperrors.Ensure(err, "list due for renewal")
	}
	return list, nil
}

// RecordAttempt stores the outcome of an external charge attempt.
func (s *Service) RecordAttempt(ctx context.Context, accountID int64, success bool) (*entitlement.Entitlement, error) {
	var (
		updated *entitlement.Entitlement
		tripped bool
	)
	err := s.repo.WithTx(ctx, func(tx entitlement.Repository) error {
		e, err := tx.GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		tripped = entitlement.ApplyRenewalAttempt(e, success, s.now(), s.opts.MaxRenewFailures)
		if err := tx.SaveAutoRenew(ctx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, apperrors.Ensure(err, "record renewal attempt")
	}

	result := "success"
	if !success {
		result = "failure"
	}
	metrics.AutoRenewAttemptsTotal.WithLabelValues(result).Inc()
	if tripped {
		slog.Warn("auto-renew disabled after consecutive failures",
			"account_id", accountID,
			"fail_count", updated.AutoRenewFailCount,
		)
	}
	return updated, nil
}

// ToggleAutoRenew enables or disables renewal. Enabling needs a payment
// method on file plus an explicit plan and duration, and clears the failure
// counter.
func (s *Service) ToggleAutoRenew(ctx context.Context, accountID int64, enable bool, plan *entitlement.Plan, duration *int) (*entitlement.Entitlement, error) {
	if enable {
		if plan == nil {
			return nil, ErrPlanRequired
		}
		if !plan.Valid() {
			return nil, ErrUnknownPlan
		}
		if duration == nil || *duration <= 0 {
			return nil, ErrDurationRequired
		}
	}

	var updated *entitlement.Entitlement
	err := s.repo.WithTx(ctx, func(tx entitlement.Repository) error {
		e, err := tx.GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		if enable {
			if e.PaymentMethodID == nil {
				return ErrNoPaymentMethod
			}
			p, d := *plan, *duration
			e.AutoRenew = true
			e.AutoRenewPlan = &p
			e.AutoRenewDuration = &d
			e.AutoRenewFailCount = 0
		} else {
			e.AutoRenew = false
		}

		if err := tx.SaveAutoRenew(ctx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, apperrors.Ensure(err, "toggle auto-renew")
	}
	return updated, nil
}

// SetPaymentMethod stores the saved payment method id. A nil id clears it
// and turns auto-renew off.
func (s *Service) SetPaymentMethod(ctx context.Context, accountID int64, methodID *string) (*entitlement.Entitlement, error) {
	if methodID != nil && strings.TrimSpace(*methodID) == "" {
		return nil, ErrEmptyPaymentToken
	}

	var updated *entitlement.Entitlement
	err := s.repo.WithTx(ctx, func(tx entitlement.Repository) error {
		e, err := tx.GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		if methodID == nil {
			e.PaymentMethodID = nil
			e.AutoRenew = false
		} else {
			id := strings.TrimSpace(*methodID)
			e.PaymentMethodID = &id
		}

		if err := tx.SaveAutoRenew(ctx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, apperrors.Ensure(err, "set payment method")
	}
	return updated, nil
}
