package billing

import "github.com/rosevale/habitloop/internal/model"

// Limits are the per-plan feature caps.
type Limits struct {
	MaxHabits       int
	MaxGroupMembers int
}

var planLimits = map[string]Limits{
	model.PlanFree:    {MaxHabits: 5, MaxGroupMembers: 2},
	model.PlanPremium: {MaxHabits: 100, MaxGroupMembers: 20},
}

// LimitsFor returns the limits for a plan, defaulting to free.
func LimitsFor(plan string) Limits {
	if l, ok := planLimits[plan]; ok {
		return l
	}
	return planLimits[model.PlanFree]
}
