package entitlement

import (
	"context"
	"time"

	"github.com/kirillqa17/vpn-api/pkg/apperrors"
)

var (
	ErrNotFound        = apperrors.NotFound("entitlement not found")
	ErrAlreadyExists   = apperrors.Conflict("entitlement already exists")
	ErrAlreadyReferred = apperrors.Conflict("account already invited")
	ErrDuplicateEdge   = apperrors.Conflict("referral already recorded")
	ErrOverridePending = apperrors.Conflict("limit override already pending")
	ErrNoOverride      = apperrors.NotFound("no pending limit override")
)

// Flag names a boolean column toggled without a remote call.
type Flag string

const (
	FlagTrialUsed    Flag = "is_used_trial"
	FlagRefBonusUsed Flag = "is_used_ref_bonus"
	FlagPro          Flag = "is_pro"
)

// Repository persists entitlements, overrides and the referral columns.
// Methods called on the repository passed to WithTx run in that transaction;
// GetForUpdate and LockAccount only lock inside one.
type Repository interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error

	Get(ctx context.Context, accountID int64) (*Entitlement, error)
	GetForUpdate(ctx context.Context, accountID int64) (*Entitlement, error)
	// LockAccount serializes transactions on an account id that may not
	// have a row yet.
	LockAccount(ctx context.Context, accountID int64) error
	List(ctx context.Context) ([]*Entitlement, error)
	Create(ctx context.Context, e *Entitlement) error
	SaveExtension(ctx context.Context, e *Entitlement) error
	SetFlag(ctx context.Context, accountID int64, flag Flag, value bool) error

	// Sweeper
	ListExpiring(ctx context.Context, from, until time.Time) ([]*Entitlement, error)
	ListLapsed(ctx context.Context, before time.Time) ([]*Entitlement, error)
	TransitionStatus(ctx context.Context, accountIDs []int64, from, to Status) ([]int64, error)

	// Auto-renewal
	ListDueForRenewal(ctx context.Context, from, until, attemptedBefore time.Time) ([]*Entitlement, error)
	SaveAutoRenew(ctx context.Context, e *Entitlement) error

	// Referral forest
	SetReferrer(ctx context.Context, childID, parentID int64) error
	AppendReferral(ctx context.Context, parentID, childID int64) error
	IncrementPayedRefs(ctx context.Context, accountID int64) (int, error)

	// Limit overrides
	CreateOverride(ctx context.Context, o *Override) error
	GetOverride(ctx context.Context, accountID int64) (*Override, error)
	SetOverrideLimit(ctx context.Context, accountID int64, limit int) error
	DeleteOverride(ctx context.Context, accountID int64) error
	ListOverrides(ctx context.Context) ([]*Override, error)
}
