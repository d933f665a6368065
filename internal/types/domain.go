package types

import (
	"reflect"
	"time"
)

// AnswerRecord is the single mutable aggregate holding everything collected
// during onboarding. It is created once per session from DefaultAnswerRecord,
// mutated exclusively through the wizard reducer's merge-style update, and
// mirrored opportunistically to the remote persistence service.
//
// Nullable fields are pointers; "not yet answered" is nil, never a zero value.
type AnswerRecord struct {
	// Business discovery
	WebsiteURL         string           `json:"website_url"`
	Slug               string           `json:"slug"`
	SlugAvailable      SlugAvailability `json:"slug_available"`
	LogoURL            *string          `json:"logo_url"`
	ColorPrimary       string           `json:"color1"`
	ColorSecondary     string           `json:"color2"`
	CompanyTradingName string           `json:"company_trading_name"`
	CompanyLegalName   string           `json:"company_legal_name"`
	Email              string           `json:"email"`
	SMSNumber          string           `json:"sms_number"`
	ContactFirstName   string           `json:"contact_first_name"`
	ContactLastName    string           `json:"contact_last_name"`
	Country            string           `json:"country"`
	WebsiteFetched     bool             `json:"website_fetched"`

	// Package fit
	InitialPlan     PlanKey         `json:"initial_plan"`
	TechnicalLevel  *TechLevel      `json:"technical_level"`
	WorkflowVolume  *WorkflowVolume `json:"workflow_volume"`
	RecommendedPlan *PlanKey        `json:"recommended_plan"`
	FinalPlan       *PlanKey        `json:"final_plan"`

	// Add-ons
	Billing                BillingFrequency `json:"billing"`
	CredentialSetup        *SetupChoice     `json:"credential_setup"`
	HasOpenRouter          *bool            `json:"has_openrouter"`
	OpenRouterSetupClicked bool             `json:"openrouter_setup_clicked"`
	AIAgentSetup           *SetupChoice     `json:"ai_agent_setup"`
	WorkflowSetup          *SetupChoice     `json:"workflow_setup"`
	LocalHosting           *bool            `json:"local_hosting"`
	WebsiteHosting         *bool            `json:"website_hosting"`
	DetectedCMS            *string          `json:"detected_cms"`

	// Business profile
	BusinessSummary string    `json:"business_summary"`
	TeamSize        *TeamSize `json:"team_size"`
	Roles           []string  `json:"roles"`
	AutomationAreas []string  `json:"automation_areas"`

	// Payment / session meta
	BillingEmail  string         `json:"billing_email"`
	PaymentStatus *PaymentStatus `json:"payment_status"`
	TransactionID *string        `json:"transaction_id"`
	PaymentError  *string        `json:"payment_error"`
	RecordID      *string        `json:"record_id"`
	CompletedAt   *time.Time     `json:"completed_at"`

	// Captured once from the entry URL on first load; never changed after.
	AffiliateCode *string `json:"affiliate_code"`
}

// DefaultAnswerRecord returns the seeded record used at session start and
// restored by an explicit reset.
func DefaultAnswerRecord() AnswerRecord {
	return AnswerRecord{
		SlugAvailable:  SlugUnknown,
		ColorPrimary:   "#e9484d",
		ColorSecondary: "#0f1128",
		Country:        "Australia",
		InitialPlan:    PlanPro,
		Billing:        BillingMonthly,
	}
}

// ActivePlan resolves the plan key actually used for all pricing and display:
// the user's explicit choice, else the derived recommendation, else the plan
// the session was seeded with. First non-nil wins.
func (r *AnswerRecord) ActivePlan() PlanKey {
	if r.FinalPlan != nil {
		return *r.FinalPlan
	}
	if r.RecommendedPlan != nil {
		return *r.RecommendedPlan
	}
	return r.InitialPlan
}

// NeedsBooking reports whether any assisted-setup choice requires a kickoff
// session to be booked after onboarding completes.
func (r *AnswerRecord) NeedsBooking() bool {
	assisted := func(c *SetupChoice) bool { return c != nil && *c == SetupAssisted }
	return assisted(r.CredentialSetup) || assisted(r.AIAgentSetup) || assisted(r.WorkflowSetup)
}

// AffiliateCodeValue returns the affiliate code or "" when none was captured.
func (r *AnswerRecord) AffiliateCodeValue() string {
	if r.AffiliateCode == nil {
		return ""
	}
	return *r.AffiliateCode
}

// AnswerPatch is a partial AnswerRecord for merge-style updates. A nil field
// means "leave unchanged". The affiliate code and all derived fields
// (recommended plan, record ID, payment outcome) are deliberately absent:
// they are owned by the reducer and the orchestrators, not by user input.
type AnswerPatch struct {
	WebsiteURL         *string           `json:"website_url,omitempty"`
	Slug               *string           `json:"slug,omitempty"`
	SlugAvailable      *SlugAvailability `json:"slug_available,omitempty"`
	LogoURL            *string           `json:"logo_url,omitempty"`
	ColorPrimary       *string           `json:"color1,omitempty"`
	ColorSecondary     *string           `json:"color2,omitempty"`
	CompanyTradingName *string           `json:"company_trading_name,omitempty"`
	CompanyLegalName   *string           `json:"company_legal_name,omitempty"`
	Email              *string           `json:"email,omitempty"`
	SMSNumber          *string           `json:"sms_number,omitempty"`
	ContactFirstName   *string           `json:"contact_first_name,omitempty"`
	ContactLastName    *string           `json:"contact_last_name,omitempty"`
	Country            *string           `json:"country,omitempty"`
	WebsiteFetched     *bool             `json:"website_fetched,omitempty"`

	TechnicalLevel *TechLevel      `json:"technical_level,omitempty"`
	WorkflowVolume *WorkflowVolume `json:"workflow_volume,omitempty"`
	FinalPlan      *PlanKey        `json:"final_plan,omitempty"`

	Billing                *BillingFrequency `json:"billing,omitempty"`
	CredentialSetup        *SetupChoice      `json:"credential_setup,omitempty"`
	HasOpenRouter          *bool             `json:"has_openrouter,omitempty"`
	OpenRouterSetupClicked *bool             `json:"openrouter_setup_clicked,omitempty"`
	AIAgentSetup           *SetupChoice      `json:"ai_agent_setup,omitempty"`
	WorkflowSetup          *SetupChoice      `json:"workflow_setup,omitempty"`
	LocalHosting           *bool             `json:"local_hosting,omitempty"`
	WebsiteHosting         *bool             `json:"website_hosting,omitempty"`
	DetectedCMS            *string           `json:"detected_cms,omitempty"`

	BusinessSummary *string   `json:"business_summary,omitempty"`
	TeamSize        *TeamSize `json:"team_size,omitempty"`
	Roles           []string  `json:"roles,omitempty"`
	AutomationAreas []string  `json:"automation_areas,omitempty"`

	BillingEmail *string `json:"billing_email,omitempty"`
}

// IsEmpty reports whether the patch carries no changes at all.
func (p *AnswerPatch) IsEmpty() bool {
	return reflect.DeepEqual(*p, AnswerPatch{})
}

// PlanInfo describes one immutable catalog plan tier.
type PlanInfo struct {
	Key PlanKey `json:"key"`
	// Name is the customer-facing display name.
	Name string `json:"name"`
	// Price is the standard monthly price in whole AUD.
	Price int `json:"price"`
	// YearlyPrice is the per-month display price under yearly billing,
	// derived from the yearly total (monthly x 10, i.e. two months free).
	YearlyPrice int      `json:"yearly_price"`
	Color       string   `json:"color"`
	Features    []string `json:"features"`
}

// CostBreakdown is the Cost Calculator output. All amounts are whole AUD.
// MonthlyTotal is always PlanMonthly + AddOnMonthly.
type CostBreakdown struct {
	PlanMonthly  int `json:"plan_monthly"`
	AddOnMonthly int `json:"addon_monthly"`
	MonthlyTotal int `json:"monthly_total"`
	OneTimeTotal int `json:"one_time_total"`
}

// CardDetails carries raw card input for the payment gateway. The sensitive
// fields use SecretString so they can never leak through logs or response
// serialization; gateways Unmask them at the wire boundary only.
type CardDetails struct {
	Number      SecretString `json:"ccnumber" validate:"required"`
	Code        SecretString `json:"code" validate:"required"`
	ExpireMonth int          `json:"expire_month" validate:"required,min=1,max=12"`
	ExpireYear  int          `json:"expire_year" validate:"required,min=2024"`
}

// PaymentResult is the typed outcome of a charge attempt. A declined or
// failed charge is an expected result, not an error condition that should
// propagate into the wizard state machine.
type PaymentResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	Error         string `json:"error,omitempty"`
}
