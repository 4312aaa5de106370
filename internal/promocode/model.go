package promocode

import (
	"slices"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type PromoCode struct {
	Code              string          `db:"code" json:"code"`
	DiscountPercent   decimal.Decimal `db:"discount_percent" json:"discount_percent"`
	ApplicableTariffs pq.StringArray  `db:"applicable_tariffs" json:"applicable_tariffs"`
	MaxUses           int             `db:"max_uses" json:"max_uses"`
	CurrentUses       int             `db:"current_uses" json:"current_uses"`
	IsActive          bool            `db:"is_active" json:"is_active"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// Exhausted reports whether every use has been redeemed.
func (p *PromoCode) Exhausted() bool {
	return p.CurrentUses >= p.MaxUses
}

// AppliesTo reports whether the code covers tariff. An empty tariff list
// covers every plan, and an empty tariff skips the check.
func (p *PromoCode) AppliesTo(tariff string) bool {
	if tariff == "" || len(p.ApplicableTariffs) == 0 {
		return true
	}
	return slices.Contains(p.ApplicableTariffs, tariff)
}

type Usage struct {
	ID        int64     `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	AccountID int64     `db:"account_id" json:"account_id"`
	UsedAt    time.Time `db:"used_at" json:"used_at"`
}

// Reason explains why a code is not valid for a request.
type Reason string

const (
	ReasonNotFound      Reason = "not_found"
	ReasonInactive      Reason = "inactive"
	ReasonExhausted     Reason = "exhausted"
	ReasonNotApplicable Reason = "not_applicable"
	ReasonAlreadyUsed   Reason = "already_used"
)

type ValidationResult struct {
	Valid             bool            `json:"valid"`
	Reason            Reason          `json:"reason,omitempty"`
	DiscountPercent   decimal.Decimal `json:"discount_percent"`
	ApplicableTariffs []string        `json:"applicable_tariffs"`
}
