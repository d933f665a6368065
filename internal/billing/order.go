package billing

import (
	"fmt"

	"onboard/internal/types"
)

// OrderLine is one human-readable line item in the checkout summary.
type OrderLine struct {
	Label     string `json:"label"`
	Amount    int    `json:"amount"`
	Recurring bool   `json:"recurring"`
	// Period is "month" or "year" for recurring lines, empty otherwise.
	Period string `json:"period,omitempty"`
	// Included marks assistance that is free on the active tier. Included
	// lines carry a zero amount but must still render rather than silently
	// vanish.
	Included bool `json:"included,omitempty"`
}

// CheckoutTotals summarizes what the customer pays now and ongoing.
type CheckoutTotals struct {
	// DueToday is the first period of every subscription plus all one-time fees.
	DueToday int `json:"due_today"`
	// Recurring is the ongoing subscription amount per Period.
	Recurring int    `json:"recurring"`
	Period    string `json:"period"`
}

// BuildOrderLines produces the checkout summary line items for the record,
// pricing the plan through the resolver so affiliate overrides apply.
// Inquire plans yield a zero-amount plan line; callers route those records to
// the inquiry flow before any of this is shown as a payable order.
func (c *Calculator) BuildOrderLines(record *types.AnswerRecord) []OrderLine {
	active := record.ActivePlan()
	aff := record.AffiliateCodeValue()
	plan := c.resolver.catalog.Get(active)
	yearly := record.Billing == types.BillingYearly

	var lines []OrderLine

	var planAmount int
	period := "month"
	if yearly {
		period = "year"
		if t := c.resolver.EffectiveYearlyTotal(active, aff); t != nil {
			planAmount = *t
		}
	} else {
		if p := c.resolver.EffectivePrice(active, aff); p != nil {
			planAmount = *p
		}
	}
	lines = append(lines, OrderLine{
		Label:     fmt.Sprintf("%s Plan", plan.Name),
		Amount:    planAmount,
		Recurring: true,
		Period:    period,
	})

	paid := IsPaidAddon(active)
	setups := []struct {
		label  string
		choice *types.SetupChoice
	}{
		{"Credential Setup", record.CredentialSetup},
		{"AI Agent Setup", record.AIAgentSetup},
		{"Workflow Setup", record.WorkflowSetup},
	}
	for _, s := range setups {
		if s.choice == nil || *s.choice != types.SetupAssisted {
			continue
		}
		if paid {
			lines = append(lines, OrderLine{Label: s.label, Amount: AssistedSetupFee})
		} else {
			lines = append(lines, OrderLine{Label: s.label, Included: true})
		}
	}

	if record.LocalHosting != nil && *record.LocalHosting {
		lines = append(lines, OrderLine{Label: "Local Hosting Setup", Amount: HostingSetupFee})
		if yearly {
			lines = append(lines, OrderLine{Label: "Local Hosting", Amount: HostingYearlyTotal, Recurring: true, Period: "year"})
		} else {
			lines = append(lines, OrderLine{Label: "Local Hosting", Amount: HostingMonthly, Recurring: true, Period: "month"})
		}
	}

	return lines
}

// Totals computes the checkout totals from the record's order lines.
func (c *Calculator) Totals(record *types.AnswerRecord) CheckoutTotals {
	lines := c.BuildOrderLines(record)

	var dueToday, recurring int
	for _, l := range lines {
		dueToday += l.Amount
		if l.Recurring {
			recurring += l.Amount
		}
	}

	period := "month"
	if record.Billing == types.BillingYearly {
		period = "year"
	}

	return CheckoutTotals{DueToday: dueToday, Recurring: recurring, Period: period}
}
