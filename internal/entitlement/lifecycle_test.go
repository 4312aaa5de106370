package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestExtensionEnd(t *testing.T) {
	tests := []struct {
		name   string
		stored Plan
		end    time.Time
		plan   Plan
		days   int
		want   time.Time
	}{
		{"same plan keeps remaining time", PlanBase, now.Add(Days(5)), PlanBase, 30, now.Add(Days(35))},
		{"same plan after expiry starts now", PlanBase, now.Add(-Days(5)), PlanBase, 30, now.Add(Days(30))},
		{"plan change restarts from now", PlanBase, now.Add(Days(5)), PlanFamily, 30, now.Add(Days(30))},
		{"switch to trial keeps remaining time", PlanBase, now.Add(Days(5)), PlanTrial, 3, now.Add(Days(8))},
		{"switch to free keeps remaining time", PlanFamily, now.Add(Days(2)), PlanFree, 1, now.Add(Days(3))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Entitlement{Plan: tt.stored, SubscriptionEnd: tt.end}
			assert.Equal(t, tt.want, ExtensionEnd(e, tt.plan, tt.days, now))
		})
	}
}

func TestExtensionNeverShrinksSamePlan(t *testing.T) {
	for _, offset := range []time.Duration{-Days(10), 0, time.Hour, Days(100)} {
		e := &Entitlement{Plan: PlanBase, SubscriptionEnd: now.Add(offset)}
		end := ExtensionEnd(e, PlanBase, 1, now)
		assert.False(t, end.Before(e.SubscriptionEnd), "offset %s", offset)
	}
}

func TestEntersGrace(t *testing.T) {
	horizon := Days(1)

	assert.True(t, EntersGrace(&Entitlement{Status: StatusActive, SubscriptionEnd: now}, now, horizon))
	assert.True(t, EntersGrace(&Entitlement{Status: StatusActive, SubscriptionEnd: now.Add(23 * time.Hour)}, now, horizon))
	assert.False(t, EntersGrace(&Entitlement{Status: StatusActive, SubscriptionEnd: now.Add(horizon)}, now, horizon))
	assert.False(t, EntersGrace(&Entitlement{Status: StatusActive, SubscriptionEnd: now.Add(-time.Second)}, now, horizon))
	assert.False(t, EntersGrace(&Entitlement{Status: StatusGrace, SubscriptionEnd: now.Add(time.Hour)}, now, horizon))
}

func TestLapsed(t *testing.T) {
	assert.True(t, Lapsed(&Entitlement{Status: StatusGrace, SubscriptionEnd: now.Add(-time.Second)}, now))
	assert.False(t, Lapsed(&Entitlement{Status: StatusGrace, SubscriptionEnd: now}, now))
	assert.False(t, Lapsed(&Entitlement{Status: StatusActive, SubscriptionEnd: now.Add(-Days(3))}, now))
}

func TestDueForRenewal(t *testing.T) {
	method := "pm_1"
	recent := now.Add(-11 * time.Hour)
	old := now.Add(-12 * time.Hour)

	base := func() *Entitlement {
		return &Entitlement{
			Status:          StatusActive,
			SubscriptionEnd: now.Add(10 * time.Hour),
			AutoRenew:       true,
			PaymentMethodID: &method,
		}
	}

	e := base()
	assert.True(t, DueForRenewal(e, now, Days(1), 12*time.Hour))

	e = base()
	e.Status = StatusGrace
	assert.True(t, DueForRenewal(e, now, Days(1), 12*time.Hour))

	e = base()
	e.AutoRenewLastAttempt = &recent
	assert.False(t, DueForRenewal(e, now, Days(1), 12*time.Hour), "inside cooldown")

	e = base()
	e.AutoRenewLastAttempt = &old
	assert.True(t, DueForRenewal(e, now, Days(1), 12*time.Hour), "cooldown elapsed exactly")

	e = base()
	e.PaymentMethodID = nil
	assert.False(t, DueForRenewal(e, now, Days(1), 12*time.Hour))

	e = base()
	e.AutoRenew = false
	assert.False(t, DueForRenewal(e, now, Days(1), 12*time.Hour))

	e = base()
	e.Status = StatusInactive
	assert.False(t, DueForRenewal(e, now, Days(1), 12*time.Hour))

	e = base()
	e.SubscriptionEnd = now.Add(Days(2))
	assert.False(t, DueForRenewal(e, now, Days(1), 12*time.Hour))
}

func TestApplyRenewalAttemptCircuitBreaker(t *testing.T) {
	e := &Entitlement{AutoRenew: true}

	assert.False(t, ApplyRenewalAttempt(e, false, now, 3))
	assert.False(t, ApplyRenewalAttempt(e, false, now, 3))
	assert.Equal(t, 2, e.AutoRenewFailCount)
	assert.True(t, e.AutoRenew)

	assert.True(t, ApplyRenewalAttempt(e, false, now, 3))
	assert.Equal(t, 3, e.AutoRenewFailCount)
	assert.False(t, e.AutoRenew)
	assert.Equal(t, now, *e.AutoRenewLastAttempt)
}

func TestApplyRenewalAttemptSuccessResets(t *testing.T) {
	e := &Entitlement{AutoRenew: true}

	ApplyRenewalAttempt(e, false, now, 3)
	ApplyRenewalAttempt(e, false, now, 3)
	ApplyRenewalAttempt(e, true, now.Add(time.Hour), 3)
	assert.Equal(t, 0, e.AutoRenewFailCount)

	ApplyRenewalAttempt(e, false, now, 3)
	ApplyRenewalAttempt(e, false, now, 3)
	assert.True(t, e.AutoRenew)
}
