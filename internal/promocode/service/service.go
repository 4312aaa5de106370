package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kirillqa17/vpn-api/internal/entitlement"
	"github.com/kirillqa17/vpn-api/internal/metrics"
	"github.com/kirillqa17/vpn-api/internal/promocode"
	"github.com/kirillqa17/vpn-api/pkg/apperrors"
)

var (
	ErrEmptyCode       = apperrors.Validation("promo code must not be empty")
	ErrInvalidDiscount = apperrors.Validation("discount percent must be in (0, 100]")
	ErrInvalidMaxUses  = apperrors.Validation("max uses must be positive")
	ErrUnknownTariff   = apperrors.Validation("unknown tariff")

	hundred = decimal.NewFromInt(100)
)

type Service struct {
	Repo promocode.Repository
}

func NewService(repo promocode.Repository) *Service {
	return &Service{Repo: repo}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normalizeTariff(tariff string) (string, error) {
	if strings.TrimSpace(tariff) == "" {
		return "", nil
	}
	plan, ok := entitlement.ParsePlan(tariff)
	if !ok {
		return "", ErrUnknownTariff
	}
	return string(plan), nil
}

func (s *Service) Create(ctx context.Context, code string, discount decimal.Decimal, tariffs []string, maxUses int) (*promocode.PromoCode, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, ErrEmptyCode
	}
	if !discount.IsPositive() || discount.GreaterThan(hundred) {
		return nil, ErrInvalidDiscount
	}
	if maxUses <= 0 {
		return nil, ErrInvalidMaxUses
	}

	applicable := make([]string, 0, len(tariffs))
	for _, t := range tariffs {
		plan, err := normalizeTariff(t)
		if err != nil || plan == "" {
			return nil, ErrUnknownTariff
		}
		applicable = append(applicable, plan)
	}

	p := &promocode.PromoCode{
		Code:              code,
		DiscountPercent:   discount.Round(2),
		ApplicableTariffs: applicable,
		MaxUses:           maxUses,
	}
	if err := s.Repo.Create(ctx, p); err != nil {
		return nil, apperrors.Ensure(err, "create promo code")
	}

	slog.Info("promo code created", "code", code, "discount_percent", p.DiscountPercent.String(), "max_uses", maxUses)
	return p, nil
}

func (s *Service) List(ctx context.Context) ([]*promocode.PromoCode, error) {
	list, err := s.Repo.List(ctx)
	if err != nil {
		return nil, apperrors.Ensure(err, "list promo codes")
	}
	return list, nil
}

func (s *Service) Deactivate(ctx context.Context, code string) error {
	if err := s.Repo.Deactivate(ctx, normalizeCode(code)); err != nil {
		return apperrors.Ensure(err, "deactivate promo code")
	}
	return nil
}

// Validate checks the code for tariff and account without redeeming it. The
// checks run in a fixed order and the first failure is the reason.
func (s *Service) Validate(ctx context.Context, code, tariff string, accountID int64) (*promocode.ValidationResult, error) {
	plan := strings.ToLower(strings.TrimSpace(tariff))

	p, err := s.Repo.Get(ctx, normalizeCode(code))
	if errors.Is(err, promocode.ErrNotFound) {
		return &promocode.ValidationResult{Reason: promocode.ReasonNotFound, ApplicableTariffs: []string{}}, nil
	}
	if err != nil {
		return nil, apperrors.Ensure(err, "validate promo code")
	}

	result := &promocode.ValidationResult{
		DiscountPercent:   p.DiscountPercent,
		ApplicableTariffs: []string(p.ApplicableTariffs),
	}
	if result.ApplicableTariffs == nil {
		result.ApplicableTariffs = []string{}
	}

	switch {
	case !p.IsActive:
		result.Reason = promocode.ReasonInactive
	case p.Exhausted():
		result.Reason = promocode.ReasonExhausted
	case !p.AppliesTo(plan):
		result.Reason = promocode.ReasonNotApplicable
	default:
		used, err := s.Repo.HasUsage(ctx, p.Code, accountID)
		if err != nil {
			return nil, apperrors.Ensure(err, "validate promo code")
		}
		if used {
			result.Reason = promocode.ReasonAlreadyUsed
		} else {
			result.Valid = true
		}
	}
	return result, nil
}

// Use redeems the code for the account: one usage row and one counted use,
// or neither.
func (s *Service) Use(ctx context.Context, code string, accountID int64) (*promocode.PromoCode, error) {
	code = normalizeCode(code)

	var redeemed *promocode.PromoCode
	err := s.Repo.WithTx(ctx, func(tx promocode.Repository) error {
		p, err := tx.Get(ctx, code)
		if err != nil {
			return err
		}
		if !p.IsActive {
			return promocode.ErrNotFound
		}

		if err := tx.RecordUsage(ctx, code, accountID); err != nil {
			return err
		}
		uses, err := tx.IncrementUses(ctx, code)
		if err != nil {
			return err
		}

		p.CurrentUses = uses
		redeemed = p
		return nil
	})

	metrics.PromoRedemptionsTotal.WithLabelValues(redemptionResult(err)).Inc()
	if err != nil {
		return nil, apperrors.Ensure(err, "use promo code")
	}
	slog.Info("promo code redeemed", "code", code, "account_id", accountID)
	return redeemed, nil
}

func redemptionResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, promocode.ErrAlreadyUsed):
		return string(promocode.ReasonAlreadyUsed)
	case errors.Is(err, promocode.ErrExhausted):
		return string(promocode.ReasonExhausted)
	case errors.Is(err, promocode.ErrNotFound):
		return string(promocode.ReasonNotFound)
	default:
		return "error"
	}
}
