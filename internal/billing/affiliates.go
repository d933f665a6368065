package billing

import (
	"strings"

	"onboard/internal/types"
)

// AffiliatePricing is a per-plan price override for one affiliate.
// A nil price marks an "inquire" plan: no fixed price, and checkout must
// route to the lead-capture flow instead of card payment.
type AffiliatePricing struct {
	// Price is the overridden monthly price in whole AUD, or nil for inquire.
	Price *int `json:"price"`
	// YearlyTotal is the overridden yearly total, or nil for inquire.
	YearlyTotal *int `json:"yearly_total"`
}

// AffiliateConfig describes one referral partner.
type AffiliateConfig struct {
	Code string `json:"code"`
	Name string `json:"name"`
	// ReferrerID is the remote contact ID recorded as the referrer.
	// It is never written through the generic create/update payloads;
	// relationship fields must be set separately on the remote side.
	ReferrerID int `json:"referrer_id"`
	// Plans holds the partial per-plan overrides. Plans not listed use
	// standard catalog pricing.
	Plans map[types.PlanKey]AffiliatePricing `json:"plans"`
}

// Registry resolves affiliate codes to their pricing configuration.
// Codes arrive from untrusted URL parameters: unknown codes must resolve as
// "no override", never as an error.
type Registry interface {
	// Lookup returns the affiliate config for the given code.
	// Matching is case-insensitive; ok is false for unknown or empty codes.
	Lookup(code string) (AffiliateConfig, bool)
}

func intPtr(v int) *int { return &v }

// affiliateDefaults is the static affiliate table.
var affiliateDefaults = map[string]AffiliateConfig{
	"bb": {
		Code:       "bb",
		Name:       "Business Blueprint",
		ReferrerID: 6934,
		Plans: map[types.PlanKey]AffiliatePricing{
			types.PlanEssentials:  {Price: intPtr(50), YearlyTotal: intPtr(500)},
			types.PlanSupportPlus: {Price: intPtr(150), YearlyTotal: intPtr(1500)},
			types.PlanPro:         {Price: intPtr(350), YearlyTotal: intPtr(3500)},
			types.PlanEmbedded:    {Price: nil, YearlyTotal: nil},
		},
	},
}

// staticRegistry is a compile-time affiliate registry backed by an in-memory map.
type staticRegistry struct {
	affiliates map[string]AffiliateConfig
}

// NewStaticRegistry returns a Registry backed by the hardcoded affiliate table.
func NewStaticRegistry() Registry {
	m := make(map[string]AffiliateConfig, len(affiliateDefaults))
	for k, v := range affiliateDefaults {
		m[k] = v
	}
	return &staticRegistry{affiliates: m}
}

// Lookup returns the affiliate config for code, matching case-insensitively.
func (r *staticRegistry) Lookup(code string) (AffiliateConfig, bool) {
	if code == "" {
		return AffiliateConfig{}, false
	}
	cfg, ok := r.affiliates[strings.ToLower(code)]
	return cfg, ok
}
