package referral

// Tree is one account's position in the referral forest.
type Tree struct {
	AccountID  int64   `json:"account_id"`
	ReferrerID *int64  `json:"referrer_id,omitempty"`
	Referrals  []int64 `json:"referrals"`
	PayedRefs  int     `json:"payed_refs"`
}
