package entitlement

import (
	"slices"
	"time"

	"github.com/lib/pq"
)

type Status int

const (
	StatusInactive Status = 0
	StatusActive   Status = 1
	StatusGrace    Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "INACTIVE"
	case StatusActive:
		return "ACTIVE"
	case StatusGrace:
		return "GRACE"
	default:
		return "UNKNOWN"
	}
}

// Entitlement is the persisted access grant of one account.
type Entitlement struct {
	AccountID       int64         `db:"account_id" json:"account_id"`
	AccessKey       string        `db:"access_key" json:"access_key"`
	SubscriptionEnd time.Time     `db:"subscription_end" json:"subscription_end"`
	Status          Status        `db:"status" json:"status"`
	Plan            Plan          `db:"plan" json:"plan"`
	DeviceLimit     int           `db:"device_limit" json:"device_limit"`
	ReferralID      *int64        `db:"referral_id" json:"referral_id,omitempty"`
	Referrals       pq.Int64Array `db:"referrals" json:"referrals"`
	IsUsedTrial     bool          `db:"is_used_trial" json:"is_used_trial"`
	IsUsedRefBonus  bool          `db:"is_used_ref_bonus" json:"is_used_ref_bonus"`
	PayedRefs       int           `db:"payed_refs" json:"payed_refs"`
	IsPro           bool          `db:"is_pro" json:"is_pro"`

	AutoRenew            bool       `db:"auto_renew" json:"auto_renew"`
	PaymentMethodID      *string    `db:"payment_method_id" json:"payment_method_id,omitempty"`
	AutoRenewPlan        *Plan      `db:"auto_renew_plan" json:"auto_renew_plan,omitempty"`
	AutoRenewDuration    *int       `db:"auto_renew_duration" json:"auto_renew_duration,omitempty"`
	AutoRenewLastAttempt *time.Time `db:"auto_renew_last_attempt" json:"auto_renew_last_attempt,omitempty"`
	AutoRenewFailCount   int        `db:"auto_renew_fail_count" json:"auto_renew_fail_count"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// HasReferral reports whether child is already among the account's referrals.
func (e *Entitlement) HasReferral(child int64) bool {
	return slices.Contains(e.Referrals, child)
}

// Override is a pending restoration of a temporarily zeroed device limit.
type Override struct {
	AccountID     int64     `db:"account_id" json:"account_id"`
	OriginalLimit int       `db:"original_limit" json:"original_limit"`
	RestoreAt     time.Time `db:"restore_at" json:"restore_at"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
