package entitlement

import "time"

const day = 24 * time.Hour

// Days converts a whole number of days into a duration.
func Days(n int) time.Duration {
	return time.Duration(n) * day
}

// PlanChanged reports whether extending with plan counts as a plan switch.
// Switching to a promotional plan never does.
func PlanChanged(stored, plan Plan) bool {
	return stored != plan && !plan.IsPromotional()
}

// ExtensionEnd computes the new subscription end of an extension. A plan
// switch restarts from now; otherwise the remaining time is kept.
func ExtensionEnd(e *Entitlement, plan Plan, days int, now time.Time) time.Time {
	start := now
	if !PlanChanged(e.Plan, plan) && e.SubscriptionEnd.After(now) {
		start = e.SubscriptionEnd
	}
	return start.Add(Days(days))
}

// inWindow reports t ∈ [now, now+horizon).
func inWindow(t, now time.Time, horizon time.Duration) bool {
	return !t.Before(now) && t.Before(now.Add(horizon))
}

// EntersGrace reports whether the grace sweep should claim e.
func EntersGrace(e *Entitlement, now time.Time, horizon time.Duration) bool {
	return e.Status == StatusActive && inWindow(e.SubscriptionEnd, now, horizon)
}

// Lapsed reports whether the inactive sweep should claim e.
func Lapsed(e *Entitlement, now time.Time) bool {
	return e.Status == StatusGrace && e.SubscriptionEnd.Before(now)
}

// DueForRenewal is the auto-renewal selection predicate.
func DueForRenewal(e *Entitlement, now time.Time, horizon, cooldown time.Duration) bool {
	if !e.AutoRenew || e.PaymentMethodID == nil {
		return false
	}
	if e.Status != StatusActive && e.Status != StatusGrace {
		return false
	}
	if !inWindow(e.SubscriptionEnd, now, horizon) {
		return false
	}
	return e.AutoRenewLastAttempt == nil || now.Sub(*e.AutoRenewLastAttempt) >= cooldown
}

// ApplyRenewalAttempt records the outcome of a charge attempt on e and
// reports whether the failure threshold disabled auto-renewal.
func ApplyRenewalAttempt(e *Entitlement, success bool, now time.Time, maxFailures int) bool {
	at := now
	e.AutoRenewLastAttempt = &at
	if success {
		e.AutoRenewFailCount = 0
		return false
	}
	e.AutoRenewFailCount++
	if e.AutoRenewFailCount >= maxFailures && e.AutoRenew {
		e.AutoRenew = false
		return true
	}
	return false
}
