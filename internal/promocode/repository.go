package promocode

import (
	"context"

	"github.com/kirillqa17/vpn-api/pkg/apperrors"
)

var (
	ErrNotFound    = apperrors.NotFound("promo code not found")
	ErrCodeExists  = apperrors.Conflict("promo code already exists")
	ErrAlreadyUsed = apperrors.Conflict(string(ReasonAlreadyUsed))
	ErrExhausted   = apperrors.Conflict(string(ReasonExhausted))
)

// Repository stores codes and their usage ledger. RecordUsage returns
// ErrAlreadyUsed for a repeated (code, account) pair; IncrementUses returns
// ErrExhausted when the code has no uses left, otherwise the new count.
type Repository interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error

	Create(ctx context.Context, p *PromoCode) error
	Get(ctx context.Context, code string) (*PromoCode, error)
	List(ctx context.Context) ([]*PromoCode, error)
	Deactivate(ctx context.Context, code string) error

	HasUsage(ctx context.Context, code string, accountID int64) (bool, error)
	RecordUsage(ctx context.Context, code string, accountID int64) error
	IncrementUses(ctx context.Context, code string) (int, error)
}
