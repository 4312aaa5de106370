package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kirillqa17/vpn-api/internal/promocode"
	"github.com/kirillqa17/vpn-api/pkg/db"
)

const (
	promoColumns = `code, discount_percent, applicable_tariffs, max_uses, current_uses, is_active, created_at`

	usageConstraint = "promo_usages_code_account_key"
)

type PostgresPromoCodeRepository struct {
	db *sqlx.DB
	q  sqlx.ExtContext
	tx *sqlx.Tx
}

func NewPostgresPromoCodeRepository(database *sqlx.DB) *PostgresPromoCodeRepository {
	return &PostgresPromoCodeRepository{db: database, q: database}
}

func (r *PostgresPromoCodeRepository) WithTx(ctx context.Context, fn func(tx promocode.Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return fn(&PostgresPromoCodeRepository{db: r.db, q: tx, tx: tx})
	})
}

func (r *PostgresPromoCodeRepository) Create(ctx context.Context, p *promocode.PromoCode) error {
	query := `
		INSERT INTO promo_codes (code, discount_percent, applicable_tariffs, max_uses)
		VALUES ($1, $2, $3, $4)
		RETURNING current_uses, is_active, created_at`

	err := r.q.QueryRowxContext(ctx, query, p.Code, p.DiscountPercent, p.ApplicableTariffs, p.MaxUses).
		Scan(&p.CurrentUses, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return promocode.ErrCodeExists
		}
		return fmt.Errorf("insert promo code %s: %w", p.Code, err)
	}
	return nil
}

func (r *PostgresPromoCodeRepository) Get(ctx context.Context, code string) (*promocode.PromoCode, error) {
	p := &promocode.PromoCode{}
	err := sqlx.GetContext(ctx, r.q, p, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, promocode.ErrNotFound
		}
		return nil, fmt.Errorf("get promo code %s: %w", code, err)
	}
	return p, nil
}

func (r *PostgresPromoCodeRepository) List(ctx context.Context) ([]*promocode.PromoCode, error) {
	list := []*promocode.PromoCode{}
	err := sqlx.SelectContext(ctx, r.q, &list, `SELECT `+promoColumns+` FROM promo_codes ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list promo codes: %w", err)
	}
	return list, nil
}

func (r *PostgresPromoCodeRepository) Deactivate(ctx context.Context, code string) error {
	res, err := r.q.ExecContext(ctx, `UPDATE promo_codes SET is_active = FALSE WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("deactivate promo code %s: %w", code, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return promocode.ErrNotFound
	}
	return nil
}

func (r *PostgresPromoCodeRepository) HasUsage(ctx context.Context, code string, accountID int64) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.q, &exists,
		`SELECT EXISTS(SELECT 1 FROM promo_usages WHERE code = $1 AND account_id = $2)`, code, accountID)
	if err != nil {
		return false, fmt.Errorf("check promo usage %s/%d: %w", code, accountID, err)
	}
	return exists, nil
}

// RecordUsage relies on the (code, account_id) unique constraint, so two
// concurrent redemptions by one account cannot both insert.
func (r *PostgresPromoCodeRepository) RecordUsage(ctx context.Context, code string, accountID int64) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO promo_usages (code, account_id) VALUES ($1, $2)`, code, accountID)
	if err != nil {
		if db.IsUniqueViolation(err, usageConstraint) {
			return promocode.ErrAlreadyUsed
		}
		return fmt.Errorf("record promo usage %s/%d: %w", code, accountID, err)
	}
	return nil
}

// IncrementUses bumps the counter only while the code is active and has
// uses left, and returns the committed count.
func (r *PostgresPromoCodeRepository) IncrementUses(ctx context.Context, code string) (int, error) {
	var uses int
	err := r.q.QueryRowxContext(ctx, `
		UPDATE promo_codes SET current_uses = current_uses + 1
		WHERE code = $1 AND is_active AND current_uses < max_uses
		RETURNING current_uses`, code).Scan(&uses)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, promocode.ErrExhausted
		}
		return 0, fmt.Errorf("increment promo uses %s: %w", code, err)
	}
	return uses, nil
}
