package billing

import "onboard/internal/types"

// Resolver derives effective prices from the plan catalog and the affiliate
// registry. Precedence is always: affiliate override if one exists for the
// plan, else standard catalog pricing. A nil result signals an inquire plan.
type Resolver struct {
	catalog    Catalog
	affiliates Registry
}

// NewResolver creates a Resolver over the given catalog and affiliate registry.
func NewResolver(catalog Catalog, affiliates Registry) *Resolver {
	return &Resolver{catalog: catalog, affiliates: affiliates}
}

// override returns the per-plan pricing override for (plan, code), if any.
func (r *Resolver) override(plan types.PlanKey, affiliateCode string) (AffiliatePricing, bool) {
	cfg, ok := r.affiliates.Lookup(affiliateCode)
	if !ok {
		return AffiliatePricing{}, false
	}
	p, ok := cfg.Plans[plan]
	return p, ok
}

// EffectivePrice returns the effective monthly price for the plan, or nil for
// inquire plans. Unknown affiliate codes fall through to standard pricing.
func (r *Resolver) EffectivePrice(plan types.PlanKey, affiliateCode string) *int {
	if o, ok := r.override(plan, affiliateCode); ok {
		return o.Price
	}
	p := r.catalog.Get(plan).Price
	return &p
}

// EffectiveYearlyTotal returns the effective yearly total (standard pricing
// follows the monthly x 10 pattern), or nil for inquire plans.
func (r *Resolver) EffectiveYearlyTotal(plan types.PlanKey, affiliateCode string) *int {
	if o, ok := r.override(plan, affiliateCode); ok {
		return o.YearlyTotal
	}
	t := r.catalog.Get(plan).Price * 10
	return &t
}

// EffectiveYearlyMonthly returns the per-month display price under yearly
// billing: ceil(yearly total / 12). Nil propagates for inquire plans.
func (r *Resolver) EffectiveYearlyMonthly(plan types.PlanKey, affiliateCode string) *int {
	total := r.EffectiveYearlyTotal(plan, affiliateCode)
	if total == nil {
		return nil
	}
	m := ceilDiv(*total, 12)
	return &m
}

// StandardPrice returns the catalog monthly price, ignoring any affiliate
// override. Used for strikethrough display next to a discounted price.
func (r *Resolver) StandardPrice(plan types.PlanKey) int {
	return r.catalog.Get(plan).Price
}

// StandardYearlyTotal returns the catalog yearly total, ignoring overrides.
func (r *Resolver) StandardYearlyTotal(plan types.PlanKey) int {
	return r.catalog.Get(plan).Price * 10
}

// HasDiscount reports whether the affiliate gives a real discount on the plan:
// an override exists, is not inquire, and is strictly below the standard price.
// Always false when IsInquire is true.
func (r *Resolver) HasDiscount(plan types.PlanKey, affiliateCode string) bool {
	o, ok := r.override(plan, affiliateCode)
	if !ok || o.Price == nil {
		return false
	}
	return *o.Price < r.catalog.Get(plan).Price
}

// IsInquire reports whether (plan, affiliate) has no fixed price and must
// route to the lead-capture flow instead of card payment.
func (r *Resolver) IsInquire(plan types.PlanKey, affiliateCode string) bool {
	o, ok := r.override(plan, affiliateCode)
	return ok && o.Price == nil
}

// ceilDiv returns ceil(a/b) for positive b.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
