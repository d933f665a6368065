package wizard

import (
	"strconv"

	"onboard/internal/types"
)

// SeedParams carries the entry-URL parameters read once at session start.
// They are never reparsed after the first step, so a resumed session cannot
// have its captured affiliate code or plan selection clobbered.
type SeedParams struct {
	// Plan is a numeric selector ("1"-"4") or a plan-key string. Anything
	// else is ignored and the default initial plan stands.
	Plan string
	// AffiliateCode is an untrusted referral code. It is captured verbatim;
	// unknown codes resolve to standard pricing downstream.
	AffiliateCode string
}

// NewState builds the initial wizard state for a fresh session, applying the
// entry-URL seed to the default record.
func NewState(seed SeedParams) State {
	s := NewDefaultState()

	if plan, ok := parsePlanParam(seed.Plan); ok {
		s.Record.InitialPlan = plan
	}
	if seed.AffiliateCode != "" {
		code := seed.AffiliateCode
		s.Record.AffiliateCode = &code
	}

	return s
}

// parsePlanParam resolves the plan entry-URL parameter: a 1-based tier index
// or a plan-key string.
func parsePlanParam(raw string) (types.PlanKey, bool) {
	if raw == "" {
		return "", false
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if n >= 1 && n <= len(types.AllPlanKeys) {
			return types.AllPlanKeys[n-1], true
		}
		return "", false
	}
	key := types.PlanKey(raw)
	if types.IsValidPlanKey(key) {
		return key, true
	}
	return "", false
}
