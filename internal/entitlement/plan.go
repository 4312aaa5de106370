package entitlement

import "strings"

// Plan is a subscription tier tag. The set of plans is closed; anything not
// listed in planTable is rejected.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanTrial    Plan = "trial"
	PlanBase     Plan = "base"
	PlanFamily   Plan = "family"
	PlanBSBase   Plan = "bsbase"
	PlanBSFamily Plan = "bsfamily"
)

// Squad roles. The provisioning client maps them to panel squad UUIDs.
const (
	SquadMain   = "main"
	SquadBypass = "bypass"
)

const gib = int64(1) << 30

// Limits are the remote limits derived from a plan.
type Limits struct {
	DeviceLimit       int
	TrafficLimitBytes int64 // 0 means unlimited
	Squads            []string
	Tag               string
}

var planTable = map[Plan]Limits{
	PlanFree:     {DeviceLimit: 1, TrafficLimitBytes: 10 * gib, Squads: []string{SquadMain}, Tag: "FREE"},
	PlanTrial:    {DeviceLimit: 3, TrafficLimitBytes: 50 * gib, Squads: []string{SquadMain}, Tag: "TRIAL"},
	PlanBase:     {DeviceLimit: 3, Squads: []string{SquadMain}, Tag: "BASE"},
	PlanFamily:   {DeviceLimit: 8, Squads: []string{SquadMain}, Tag: "FAMILY"},
	PlanBSBase:   {DeviceLimit: 3, Squads: []string{SquadMain, SquadBypass}, Tag: "BSBASE"},
	PlanBSFamily: {DeviceLimit: 8, Squads: []string{SquadMain, SquadBypass}, Tag: "BSFAMILY"},
}

// ParsePlan normalises a tag and reports whether it names a known plan.
func ParsePlan(tag string) (Plan, bool) {
	p := Plan(strings.ToLower(strings.TrimSpace(tag)))
	return p, p.Valid()
}

func (p Plan) Valid() bool {
	_, ok := planTable[p]
	return ok
}

// Limits returns a copy of the plan's limits.
func (p Plan) Limits() (Limits, bool) {
	l, ok := planTable[p]
	if !ok {
		return Limits{}, false
	}
	l.Squads = append([]string(nil), l.Squads...)
	return l, true
}

// IsPromotional reports plans that never reset the effective start of an
// extension when switched to.
func (p Plan) IsPromotional() bool {
	return p == PlanTrial || p == PlanFree
}

// BaseLimits are used when the remote account is first created.
func BaseLimits() Limits {
	l, _ := PlanFree.Limits()
	return l
}

// Plans lists every known plan.
func Plans() []Plan {
	return []Plan{PlanFree, PlanTrial, PlanBase, PlanFamily, PlanBSBase, PlanBSFamily}
}
