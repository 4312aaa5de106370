package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kirillqa17/vpn-api/internal/entitlement"
	"github.com/kirillqa17/vpn-api/internal/metrics"
	"github.com/kirillqa17/vpn-api/internal/provisioning"
	"github.com/kirillqa17/vpn-api/pkg/apperrors"
)

const (
	DefaultRenewCooldown    = 12 * time.Hour
	DefaultMaxRenewFailures = 3
)

var (
	ErrInvalidDays       = apperrors.Validation("days must be positive")
	ErrUnknownPlan       = apperrors.Validation("unknown plan")
	ErrInvalidHorizon    = apperrors.Validation("horizon must be positive")
	ErrPlanRequired      = apperrors.Validation("plan is required to enable auto-renew")
	ErrDurationRequired  = apperrors.Validation("positive duration is required to enable auto-renew")
	ErrNoPaymentMethod   = apperrors.Validation("no payment method on file")
	ErrEmptyPaymentToken = apperrors.Validation("payment method id must not be empty")
)

// Provisioner is the remote access panel.
type Provisioner interface {
	Create(ctx context.Context, accountID int64, limits entitlement.Limits) (string, error)
	Update(ctx context.Context, key string, status provisioning.RemoteStatus, limits entitlement.Limits, expireAt time.Time) error
	SetDeviceLimit(ctx context.Context, key string, limit int) error
	Revoke(ctx context.Context, key string) error
}

type Options struct {
	RenewCooldown    time.Duration
	MaxRenewFailures int
	Now              func() time.Time
}

func (o Options) withDefaults() Options {
	if o.RenewCooldown <= 0 {
		o.RenewCooldown = DefaultRenewCooldown
	}
	if o.MaxRenewFailures <= 0 {
		o.MaxRenewFailures = DefaultMaxRenewFailures
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// Service owns every entitlement transition. Remote calls happen inside the
// local transaction so a failed call leaves no local change behind.
type Service struct {
	repo entitlement.Repository
	prov Provisioner
	opts Options
}

func NewService(repo entitlement.Repository, prov Provisioner, opts Options) *Service {
	return &Service{repo: repo, prov: prov, opts: opts.withDefaults()}
}

func (s *Service) now() time.Time {
	return s.opts.Now()
}

// Register creates the remote account and the local INACTIVE entitlement.
func (s *Service) Register(ctx context.Context, accountID int64, plan entitlement.Plan) (*entitlement.Entitlement, error) {
	if plan == "" {
		plan = entitlement.PlanFree
	}
	if _, ok := plan.Limits(); !ok {
		return nil, ErrUnknownPlan
	}

	var created *entitlement.Entitlement
	err := s.repo.WithTx(ctx, func(tx entitlement.Repository) error {
		if err := tx.LockAccount(ctx, accountID); err != nil {
			return err
		}
		_, err := tx.GetForUpdate(ctx, accountID)
		if err == nil {
			return entitlement.ErrAlreadyExists
		}
		if !errors.Is(err, entitlement.ErrNotFound) {
			return err
		}

		base := entitlement.BaseLimits()
		key, err := s.prov.Create(ctx, accountID, base)
		if err != nil {
			return upstream(err, "create remote account")
		}

		created = &entitlement.Entitlement{
			AccountID:       accountID,
			AccessKey:       key,
			SubscriptionEnd: s.now(),
			Status:          entitlement.StatusInactive,
			Plan:            plan,
			DeviceLimit:     base.DeviceLimit,
		}
		return tx.Create(ctx, created)
	})

	s.observe("register", accountID, err)
	if err != nil {
		return nil, apperrors.Ensure(err, "register entitlement")
	}
	return created, nil
}

// Extend activates the entitlement for days more on plan.
func (s *Service) Extend(ctx context.Context, accountID int64, days int, plan entitlement.Plan) (*entitlement.Entitlement, error) {
	if days <= 0 {
		return nil, ErrInvalidDays
	}
	limits, ok := plan.Limits()
	if !ok {
		return nil, ErrUnknownPlan
	}

	var extended *entitlement.Entitlement
	err := s.repo.WithTx(ctx, func(tx entitlement.Repository) error {
		e, err := tx.GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		// While an override is pending the remote limit stays at zero and
		// the restore pushes the new plan's limit.
		pushed := limits
		switch _, err := tx.GetOverride(ctx, accountID); {
		case err == nil:
			if err := tx.SetOverrideLimit(ctx, accountID, limits.DeviceLimit); err != nil {
				return err
			}
			pushed.DeviceLimit = 0
		case !errors.Is(err, entitlement.ErrNoOverride):
			return err
		}

		newEnd := entitlement.ExtensionEnd(e, plan, days, s.now())
		if err := s.prov.Update(ctx, e.AccessKey, provisioning.StatusActive, pushed, newEnd); err != nil {
			return upstream(err, "activate remote account")
		}

		e.SubscriptionEnd = newEnd
		e.Status = entitlement.StatusActive
		e.Plan = plan
		e.DeviceLimit = limits.DeviceLimit
		if err := tx.SaveExtension(ctx, e); err != nil {
			return err
		}
		extended = e
		return nil
	})

	s.observe("extend", accountID, err)
	if err != nil {
		return nil, apperrors.Ensure(err, "extend entitlement")
	}
	slog.Info("entitlement extended",
		"account_id", accountID,
		"plan", plan,
		"days", days,
		"subscription_end", extended.SubscriptionEnd,
	)
	return extended, nil
}

func (s *Service) ToggleTrialFlag(ctx context.Context, accountID int64, used bool) error {
	return s.setFlag(ctx, accountID, entitlement.FlagTrialUsed, used)
}

func (s *Service) ToggleReferralBonusFlag(ctx context.Context, accountID int64, used bool) error {
	return s.setFlag(ctx, accountID, entitlement.FlagRefBonusUsed, used)
}

func (s *Service) SetPro(ctx context.Context, accountID int64, pro bool) error {
	return s.setFlag(ctx, accountID, entitlement.FlagPro, pro)
}

func (s *Service) setFlag(ctx context.Context, accountID int64, flag entitlement.Flag, value bool) error {
	if err := s.repo.SetFlag(ctx, accountID, flag, value); err != nil {
		return apperrors.Ensure(err, "set "+string(flag))
	}
	return nil
}

func (s *Service) Get(ctx context.Context, accountID int64) (*entitlement.Entitlement, error) {
	e, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return nil, apperrors.Ensure(err, "get entitlement")
	}
	return e, nil
}

func (s *Service) List(ctx context.Context) ([]*entitlement.Entitlement, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Ensure(err, "list entitlements")
	}
	return list, nil
}

// revoke disables remote access. It must run before the local status change
// is committed.
func (s *Service) revoke(ctx context.Context, e *entitlement.Entitlement) error {
	if err := s.prov.Revoke(ctx, e.AccessKey); err != nil {
		return upstream(err, "revoke remote access")
	}
	return nil
}

func (s *Service) observe(op string, accountID int64, err error) {
	metrics.EntitlementTransitionsTotal.WithLabelValues(op, metrics.Result(err)).Inc()
	if err != nil && apperrors.KindOf(err) != apperrors.KindNotFound {
		slog.Warn("entitlement transition failed", "operation", op, "account_id", accountID, "error", err)
	}
}

func upstream(err error, message string) error {
	if apperrors.KindOf(err) == apperrors.KindUpstream {
		return err
	}
	return apperrors.Upstream(err, message)
}
