package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kirillqa17/vpn-api/internal/entitlement"
	"github.com/kirillqa17/vpn-api/pkg/db"
)

const entitlementColumns = `account_id, access_key, subscription_end, status, plan, device_limit,
	referral_id, referrals, is_used_trial, is_used_ref_bonus, payed_refs, is_pro,
	auto_renew, payment_method_id, auto_renew_plan, auto_renew_duration,
	auto_renew_last_attempt, auto_renew_fail_count, created_at`

const overrideColumns = `account_id, original_limit, restore_at, created_at`

var flagColumns = map[entitlement.Flag]string{
	entitlement.FlagTrialUsed:    "is_used_trial",
	entitlement.FlagRefBonusUsed: "is_used_ref_bonus",
	entitlement.FlagPro:          "is_pro",
}

type PostgresRepository struct {
	db *sqlx.DB
	q  sqlx.ExtContext
	tx *sqlx.Tx
}

func NewPostgresRepository(database *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: database, q: database}
}

func (r *PostgresRepository) WithTx(ctx context.Context, fn func(tx entitlement.Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return fn(&PostgresRepository{db: r.db, q: tx, tx: tx})
	})
}

func (r *PostgresRepository) Get(ctx context.Context, accountID int64) (*entitlement.Entitlement, error) {
	return r.get(ctx, `SELECT `+entitlementColumns+` FROM entitlements WHERE account_id = $1`, accountID)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, accountID int64) (*entitlement.Entitlement, error) {
	return r.get(ctx, `SELECT `+entitlementColumns+` FROM entitlements WHERE account_id = $1 FOR UPDATE`, accountID)
}

func (r *PostgresRepository) LockAccount(ctx context.Context, accountID int64) error {
	if _, err := r.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, accountID); err != nil {
		return fmt.Errorf("lock account %d: %w", accountID, err)
	}
	return nil
}

func (r *PostgresRepository) get(ctx context.Context, query string, accountID int64) (*entitlement.Entitlement, error) {
	e := &entitlement.Entitlement{}
	if err := sqlx.GetContext(ctx, r.q, e, query, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entitlement.ErrNotFound
		}
		return nil, fmt.Errorf("get entitlement %d: %w", accountID, err)
	}
	return e, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*entitlement.Entitlement, error) {
	return r.selectEntitlements(ctx, `SELECT `+entitlementColumns+` FROM entitlements ORDER BY created_at DESC`)
}

func (r *PostgresRepository) Create(ctx context.Context, e *entitlement.Entitlement) error {
	query := `
		INSERT INTO entitlements (account_id, access_key, subscription_end, status, plan, device_limit)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING referrals, created_at`

	err := r.q.QueryRowxContext(ctx, query,
		e.AccountID, e.AccessKey, e.SubscriptionEnd, e.Status, e.Plan, e.DeviceLimit,
	).Scan(&e.Referrals, &e.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return entitlement.ErrAlreadyExists
		}
		return fmt.Errorf("insert entitlement %d: %w", e.AccountID, err)
	}
	return nil
}

func (r *PostgresRepository) SaveExtension(ctx context.Context, e *entitlement.Entitlement) error {
	query := `
		UPDATE entitlements
		SET subscription_end = $2, status = $3, plan = $4, device_limit = $5
		WHERE account_id = $1`

	res, err := r.q.ExecContext(ctx, query, e.AccountID, e.SubscriptionEnd, e.Status, e.Plan, e.DeviceLimit)
	if err != nil {
		return fmt.Errorf("save extension %d: %w", e.AccountID, err)
	}
	return expectRow(res, entitlement.ErrNotFound)
}

func (r *PostgresRepository) SetFlag(ctx context.Context, accountID int64, flag entitlement.Flag, value bool) error {
	column, ok := flagColumns[flag]
	if !ok {
		return fmt.Errorf("unknown flag %q", flag)
	}

	res, err := r.q.ExecContext(ctx, `UPDATE entitlements SET `+column+` = $2 WHERE account_id = $1`, accountID, value)
	if err != nil {
		return fmt.Errorf("set %s for %d: %w", column, accountID, err)
	}
	return expectRow(res, entitlement.ErrNotFound)
}

func (r *PostgresRepository) ListExpiring(ctx context.Context, from, until time.Time) ([]*entitlement.Entitlement, error) {
	query := `SELECT ` + entitlementColumns + ` FROM entitlements
		WHERE status = $1 AND subscription_end >= $2 AND subscription_end < $3
		ORDER BY account_id`
	return r.selectEntitlements(ctx, query, entitlement.StatusActive, from, until)
}

func (r *PostgresRepository) ListLapsed(ctx context.Context, before time.Time) ([]*entitlement.Entitlement, error) {
	query := `SELECT ` + entitlementColumns + ` FROM entitlements
		WHERE status = $1 AND subscription_end < $2
		ORDER BY account_id`
	return r.selectEntitlements(ctx, query, entitlement.StatusGrace, before)
}

// TransitionStatus moves the given accounts from one status to another and
// returns the ids that were still in the source status.
func (r *PostgresRepository) TransitionStatus(ctx context.Context, accountIDs []int64, from, to entitlement.Status) ([]int64, error) {
	ids := []int64{}
	if len(accountIDs) == 0 {
		return ids, nil
	}

	query := `
		UPDATE entitlements SET status = $1
		WHERE account_id = ANY($2) AND status = $3
		RETURNING account_id`

	if err := sqlx.SelectContext(ctx, r.q, &ids, query, to, pq.Array(accountIDs), from); err != nil {
		return nil, fmt.Errorf("transition %s -> %s: %w", from, to, err)
	}
	return ids, nil
}

func (r *PostgresRepository) ListDueForRenewal(ctx context.Context, from, until, attemptedBefore time.Time) ([]*entitlement.Entitlement, error) {
	query := `SELECT ` + entitlementColumns + ` FROM entitlements
		WHERE auto_renew = TRUE
		  AND payment_method_id IS NOT NULL
		  AND status IN ($1, $2)
		  AND subscription_end >= $3 AND subscription_end < $4
		  AND (auto_renew_last_attempt IS NULL OR auto_renew_last_attempt <= $5)
		ORDER BY subscription_end`
	return r.selectEntitlements(ctx, query,
		entitlement.StatusActive, entitlement.StatusGrace, from, until, attemptedBefore)
}

func (r *PostgresRepository) SaveAutoRenew(ctx context.Context, e *entitlement.Entitlement) error {
	query := `
		UPDATE entitlements
		SET auto_renew = $2,
		    payment_method_id = $3,
		    auto_renew_plan = $4,
		    auto_renew_duration = $5,
		    auto_renew_last_attempt = $6,
		    auto_renew_fail_count = $7
		WHERE account_id = $1`

	res, err := r.q.ExecContext(ctx, query,
		e.AccountID, e.AutoRenew, e.PaymentMethodID, e.AutoRenewPlan,
		e.AutoRenewDuration, e.AutoRenewLastAttempt, e.AutoRenewFailCount,
	)
	if err != nil {
		return fmt.Errorf("save auto-renew %d: %w", e.AccountID, err)
	}
	return expectRow(res, entitlement.ErrNotFound)
}

// SetReferrer sets the parent of childID once; a second writer loses.
func (r *PostgresRepository) SetReferrer(ctx context.Context, childID, parentID int64) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE entitlements SET referral_id = $2 WHERE account_id = $1 AND referral_id IS NULL`,
		childID, parentID)
	if err != nil {
		return fmt.Errorf("set referrer of %d: %w", childID, err)
	}
	return expectRow(res, entitlement.ErrAlreadyReferred)
}

func (r *PostgresRepository) AppendReferral(ctx context.Context, parentID, childID int64) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE entitlements SET referrals = array_append(referrals, $2)
		 WHERE account_id = $1 AND NOT ($2 = ANY(referrals))`,
		parentID, childID)
	if err != nil {
		return fmt.Errorf("append referral %d -> %d: %w", parentID, childID, err)
	}
	return expectRow(res, entitlement.ErrDuplicateEdge)
}

func (r *PostgresRepository) IncrementPayedRefs(ctx context.Context, accountID int64) (int, error) {
	var count int
	err := r.q.QueryRowxContext(ctx,
		`UPDATE entitlements SET payed_refs = payed_refs + 1 WHERE account_id = $1 RETURNING payed_refs`,
		accountID).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, entitlement.ErrNotFound
		}
		return 0, fmt.Errorf("increment payed refs %d: %w", accountID, err)
	}
	return count, nil
}

func (r *PostgresRepository) CreateOverride(ctx context.Context, o *entitlement.Override) error {
	query := `
		INSERT INTO entitlement_overrides (account_id, original_limit, restore_at)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	err := r.q.QueryRowxContext(ctx, query, o.AccountID, o.OriginalLimit, o.RestoreAt).Scan(&o.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return entitlement.ErrOverridePending
		}
		return fmt.Errorf("insert override %d: %w", o.AccountID, err)
	}
	return nil
}

func (r *PostgresRepository) GetOverride(ctx context.Context, accountID int64) (*entitlement.Override, error) {
	o := &entitlement.Override{}
	err := sqlx.GetContext(ctx, r.q, o,
		`SELECT `+overrideColumns+` FROM entitlement_overrides WHERE account_id = $1`, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entitlement.ErrNoOverride
		}
		return nil, fmt.Errorf("get override %d: %w", accountID, err)
	}
	return o, nil
}

func (r *PostgresRepository) SetOverrideLimit(ctx context.Context, accountID int64, limit int) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE entitlement_overrides SET original_limit = $2 WHERE account_id = $1`, accountID, limit)
	if err != nil {
		return fmt.Errorf("update override %d: %w", accountID, err)
	}
	return expectRow(res, entitlement.ErrNoOverride)
}

func (r *PostgresRepository) DeleteOverride(ctx context.Context, accountID int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM entitlement_overrides WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("delete override %d: %w", accountID, err)
	}
	return expectRow(res, entitlement.ErrNoOverride)
}

func (r *PostgresRepository) ListOverrides(ctx context.Context) ([]*entitlement.Override, error) {
	overrides := []*entitlement.Override{}
	err := sqlx.SelectContext(ctx, r.q, &overrides,
		`SELECT `+overrideColumns+` FROM entitlement_overrides ORDER BY restore_at`)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	return overrides, nil
}

func (r *PostgresRepository) selectEntitlements(ctx context.Context, query string, args ...any) ([]*entitlement.Entitlement, error) {
	list := []*entitlement.Entitlement{}
	if err := sqlx.SelectContext(ctx, r.q, &list, query, args...); err != nil {
		return nil, fmt.Errorf("select entitlements: %w", err)
	}
	return list, nil
}

func expectRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}
