// Package billing provides the plan catalog, affiliate pricing overrides,
// plan recommendation, and cost calculation for the onboarding wizard.
package billing

import "onboard/internal/types"

// Catalog is the authoritative table of plan tiers.
// This is the single source of truth for standard pricing and features.
type Catalog interface {
	// Get returns the plan info for the given key. Unknown keys return the
	// Pro tier so pricing display never breaks on a malformed entry URL.
	Get(key types.PlanKey) types.PlanInfo

	// All returns every plan in ascending tier order.
	All() []types.PlanInfo
}

// staticCatalog is a compile-time catalog backed by an in-memory map.
// It implements Catalog and is the standard implementation for production use.
type staticCatalog struct {
	plans map[types.PlanKey]types.PlanInfo
}

// planDefaults defines the four plan tiers. Prices are whole AUD per month;
// YearlyPrice is the per-month display price under yearly billing, derived
// from the yearly total of monthly x 10 (two months free), rounded up.
var planDefaults = map[types.PlanKey]types.PlanInfo{
	types.PlanEssentials: {
		Key:         types.PlanEssentials,
		Name:        "Essentials",
		Price:       75,
		YearlyPrice: 63,
		Color:       "#0f1128",
		Features: []string{
			"Fully managed infrastructure",
			"Automated backups",
			"Maintenance & Reliability",
			"Managed environment",
		},
	},
	types.PlanSupportPlus: {
		Key:         types.PlanSupportPlus,
		Name:        "Support Plus",
		Price:       175,
		YearlyPrice: 146,
		Color:       "#0f1128",
		Features: []string{
			"Everything in Essentials",
			"AI-powered support",
			"Ticketed troubleshooting",
			"Workflow design help",
		},
	},
	types.PlanPro: {
		Key:         types.PlanPro,
		Name:        "Automations Pro",
		Price:       375,
		YearlyPrice: 313,
		Color:       "#e9484d",
		Features: []string{
			"Everything in Support Plus",
			"1 Built Workflow / Mo",
			"We monitor everything 24/7",
			"Performance reports",
		},
	},
	types.PlanEmbedded: {
		Key:         types.PlanEmbedded,
		Name:        "Embedded Team",
		Price:       3500,
		YearlyPrice: 2917,
		Color:       "#ef9563",
		Features: []string{
			"Dedicated Architect",
			"Continuous Optimisation",
			"Advanced AI features",
			"No per-workflow costs",
		},
	},
}

// fallbackPlan is cached to avoid map lookups on the unknown-key path.
var fallbackPlan = planDefaults[types.PlanPro]

// NewStaticCatalog returns a Catalog backed by the hardcoded plan table.
// No database or external service is required.
func NewStaticCatalog() Catalog {
	// Copy the defaults into a new map so callers cannot mutate the package-level variable.
	m := make(map[types.PlanKey]types.PlanInfo, len(planDefaults))
	for k, v := range planDefaults {
		m[k] = v
	}
	return &staticCatalog{plans: m}
}

// Get returns the plan info for the given key, falling back to Pro for
// unknown keys.
func (c *staticCatalog) Get(key types.PlanKey) types.PlanInfo {
	if p, ok := c.plans[key]; ok {
		return p
	}
	return fallbackPlan
}

// All returns every plan in ascending tier order.
func (c *staticCatalog) All() []types.PlanInfo {
	out := make([]types.PlanInfo, 0, len(types.AllPlanKeys))
	for _, k := range types.AllPlanKeys {
		out = append(out, c.plans[k])
	}
	return out
}
