package billing

import "onboard/internal/types"

// Fixed add-on fees in whole AUD.
const (
	// AssistedSetupFee is the one-time fee for each assisted-setup choice
	// on paid-addon tiers.
	AssistedSetupFee = 100
	// HostingSetupFee is the one-time local-hosting setup fee.
	HostingSetupFee = 1000
	// HostingMonthly is the recurring local-hosting surcharge under monthly billing.
	HostingMonthly = 50
	// HostingYearlyTotal is the recurring local-hosting surcharge under yearly
	// billing. Deliberately less than HostingMonthly x 12: it mirrors the plan
	// catalog's two-months-free yearly pattern.
	HostingYearlyTotal = 500
)

// paidAddonTiers lists the plan tiers on which assisted setup carries a fee.
// On every other tier the same assistance is included free. Membership is
// assigned by plan identity, not inferred from price: a new tier must be
// added here explicitly.
var paidAddonTiers = map[types.PlanKey]bool{
	types.PlanEssentials:  true,
	types.PlanSupportPlus: true,
}

// IsPaidAddon reports whether assisted setup is chargeable on the given tier.
func IsPaidAddon(plan types.PlanKey) bool {
	return paidAddonTiers[plan]
}

// Calculator computes recurring and one-time totals from collected answers.
type Calculator struct {
	resolver *Resolver
}

// NewCalculator creates a Calculator over the given pricing resolver.
func NewCalculator(resolver *Resolver) *Calculator {
	return &Calculator{resolver: resolver}
}

// Calculate derives the cost breakdown for the record's active plan, billing
// frequency, and add-on choices.
//
// An inquire plan (nil effective price) contributes 0 to the displayed totals;
// the caller is responsible for routing such records to the inquiry flow
// instead of checkout. Missing or unset fields contribute nothing.
func (c *Calculator) Calculate(record *types.AnswerRecord) types.CostBreakdown {
	active := record.ActivePlan()
	aff := record.AffiliateCodeValue()

	var planMonthly int
	if record.Billing == types.BillingYearly {
		if p := c.resolver.EffectiveYearlyMonthly(active, aff); p != nil {
			planMonthly = *p
		}
	} else {
		if p := c.resolver.EffectivePrice(active, aff); p != nil {
			planMonthly = *p
		}
	}

	var oneTime, addOnMonthly int

	if IsPaidAddon(active) {
		for _, choice := range []*types.SetupChoice{record.CredentialSetup, record.AIAgentSetup, record.WorkflowSetup} {
			if choice != nil && *choice == types.SetupAssisted {
				oneTime += AssistedSetupFee
			}
		}
	}

	if record.LocalHosting != nil && *record.LocalHosting {
		oneTime += HostingSetupFee
		if record.Billing == types.BillingYearly {
			addOnMonthly += ceilDiv(HostingYearlyTotal, 12)
		} else {
			addOnMonthly += HostingMonthly
		}
	}

	// Website hosting is informational only and never contributes to totals.

	return types.CostBreakdown{
		PlanMonthly:  planMonthly,
		AddOnMonthly: addOnMonthly,
		MonthlyTotal: planMonthly + addOnMonthly,
		OneTimeTotal: oneTime,
	}
}
