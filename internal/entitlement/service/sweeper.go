package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillqa17/vpn-api/internal/entitlement"
	"github.com/kirillqa17/vpn-api/internal/metrics"
	"github.com/kirillqa17/vpn-api/pkg/apperrors"
)

// AdvanceToGrace moves ACTIVE entitlements ending within horizon to GRACE and
// returns the ids that this call moved. Accounts already claimed by a
// concurrent sweep are skipped by the status guard.
func (s *Service) AdvanceToGrace(ctx context.Context, horizon time.Duration) ([]int64, error) {
	if horizon <= 0 {
		return nil, ErrInvalidHorizon
	}

	now := s.now()
	var moved []int64
	err := s.repo.WithTx(ctx, func(tx entitlement.Repository) error {
		expiring, err := tx.ListExpiring(ctx, now, now.Add(horizon))
		if err != nil {
			return err
		}
		moved, err = tx.TransitionStatus(ctx, accountIDs(expiring), entitlement.StatusActive, entitlement.StatusGrace)
		return err
	})
	if err != nil {
		return nil, apperrors.Ensure(err, "advance to grace")
	}

	metrics.SweepAffectedTotal.WithLabelValues("grace").Add(float64(len(moved)))
	if len(moved) > 0 {
		slog.Info("entitlements entered grace", "count", len(moved), "horizon", horizon)
	}
	return moved, nil
}

// AdvanceToInactive revokes every lapsed GRACE entitlement and marks it
// INACTIVE. One failed revocation aborts the whole batch.
func (s *Service) AdvanceToInactive(ctx context.Context) ([]int64, error) {
	now := s.now()
	var moved []int64
	err := s.repo.WithTx(ctx, func(tx entitlement.Repository) error {
		lapsed, err := tx.ListLapsed(ctx, now)
		if err != nil {
			return err
		}
		for _, e := range lapsed {
			if err := s.revoke(ctx, e); err != nil {
				return apperrors.Upstream(err, fmt.Sprintf("revoke account %d", e.AccountID))
			}
		}
		moved, err = tx.TransitionStatus(ctx, accountIDs(lapsed), entitlement.StatusGrace, entitlement.StatusInactive)
		return err
	})
	if err != nil {
		slog.Error("inactive sweep rolled back", "error", err)
		return nil, apperrors.Ensure(err, "advance to inactive")
	}

	metrics.SweepAffectedTotal.WithLabelValues("inactive").Add(float64(len(moved)))
	if len(moved) > 0 {
		slog.Info("entitlements deactivated", "count", len(moved))
	}
	return moved, nil
}

func accountIDs(list []*entitlement.Entitlement) []int64 {
	ids := make([]int64, 0, len(list))
	for _, e := range list {
		ids = append(ids, e.AccountID)
	}
	return ids
}
