// Package wizard implements the onboarding step state machine: step
// sequencing with conditional skips, the merge-style answer update with
// reactive plan recommendation, checkpoint classification for autosave, and
// the terminal-step view resolution.
//
// Every transition is a pure in-memory function from state to state. No
// transition can fail: out-of-range steps clamp, and all side effects
// (persistence, payment) belong to orchestrators layered on top.
package wizard

import (
	"onboard/internal/billing"
	"onboard/internal/types"
)

// Step indices for the fixed 16-step flow. Only the steps the machine or the
// autosave checkpoints reason about are named.
const (
	StepWelcome         = 1
	StepBusinessDetails = 2
	StepSubdomain       = 3
	StepTechLevel       = 4
	StepWorkflowVolume  = 5
	StepPlanRecommend   = 6
	StepCredentialSetup = 7
	StepOpenRouter      = 8
	StepAIAgents        = 9
	StepWorkflowSetup   = 10
	StepLocalHosting    = 11
	StepWebsiteHosting  = 12
	StepSummary         = 13
	StepBusinessProfile = 14
	StepAutomationAreas = 15
	StepConfirmation    = 16

	// TotalSteps is the terminal step index.
	TotalSteps = StepConfirmation
)

// State is the full wizard state: the current step index and the accumulated
// answer record. Values are passed and returned by value; transitions never
// mutate their input.
type State struct {
	Step   int                `json:"step"`
	Record types.AnswerRecord `json:"record"`
}

// NewDefaultState returns the state a brand-new session starts from, before
// any entry-URL seeding.
func NewDefaultState() State {
	return State{Step: StepWelcome, Record: types.DefaultAnswerRecord()}
}

// websiteHostingReachable reports whether the website-hosting offer step is
// part of the flow for this record. The offer only makes sense when the
// scraper detected WordPress on the customer's site.
func websiteHostingReachable(record *types.AnswerRecord) bool {
	return record.DetectedCMS != nil && *record.DetectedCMS == types.CMSWordPress
}

// Advance moves one step forward, clamping at the terminal step and skipping
// the website-hosting step when it is unreachable.
func Advance(s State) State {
	next := s.Step + 1
	if next == StepWebsiteHosting && !websiteHostingReachable(&s.Record) {
		next++
	}
	if next > TotalSteps {
		next = TotalSteps
	}
	s.Step = next
	return s
}

// Retreat moves one step back, clamping at the first step and mirroring the
// same website-hosting skip so the user can never land on an unreachable step.
func Retreat(s State) State {
	prev := s.Step - 1
	if prev == StepWebsiteHosting && !websiteHostingReachable(&s.Record) {
		prev--
	}
	if prev < StepWelcome {
		prev = StepWelcome
	}
	s.Step = prev
	return s
}

// Update merges the patch into the record and re-derives the recommended plan.
// It never touches the step index.
func Update(s State, patch types.AnswerPatch) State {
	s.Record = mergePatch(s.Record, patch)
	s.Record = DeriveRecommendation(s.Record)
	return s
}

// Reset restores the seeded default record and the first step. Callers must
// gate this behind explicit user confirmation: it is destructive and
// irreversible.
func Reset() State {
	return NewDefaultState()
}

// DeriveRecommendation recomputes the recommended plan whenever both of its
// inputs are present, and backfills the final plan only when the user has not
// picked one. It is idempotent and never regresses an explicit final-plan
// choice.
func DeriveRecommendation(record types.AnswerRecord) types.AnswerRecord {
	if record.TechnicalLevel == nil || record.WorkflowVolume == nil {
		return record
	}
	rec := billing.Recommend(*record.TechnicalLevel, *record.WorkflowVolume)
	record.RecommendedPlan = &rec
	if record.FinalPlan == nil {
		record.FinalPlan = &rec
	}
	return record
}

// mergePatch applies every non-nil patch field onto a copy of the record.
func mergePatch(record types.AnswerRecord, p types.AnswerPatch) types.AnswerRecord {
	if p.WebsiteURL != nil {
		record.WebsiteURL = *p.WebsiteURL
	}
	if p.Slug != nil {
		if *p.Slug != record.Slug {
			// A new candidate invalidates any previous availability result.
			record.SlugAvailable = types.SlugUnknown
		}
		record.Slug = *p.Slug
	}
	if p.SlugAvailable != nil {
		record.SlugAvailable = *p.SlugAvailable
	}
	if p.LogoURL != nil {
		record.LogoURL = p.LogoURL
	}
	if p.ColorPrimary != nil {
		record.ColorPrimary = *p.ColorPrimary
	}
	if p.ColorSecondary != nil {
		record.ColorSecondary = *p.ColorSecondary
	}
	if p.CompanyTradingName != nil {
		record.CompanyTradingName = *p.CompanyTradingName
	}
	if p.CompanyLegalName != nil {
		record.CompanyLegalName = *p.CompanyLegalName
	}
	if p.Email != nil {
		record.Email = *p.Email
	}
	if p.SMSNumber != nil {
		record.SMSNumber = *p.SMSNumber
	}
	if p.ContactFirstName != nil {
		record.ContactFirstName = *p.ContactFirstName
	}
	if p.ContactLastName != nil {
		record.ContactLastName = *p.ContactLastName
	}
	if p.Country != nil {
		record.Country = *p.Country
	}
	if p.WebsiteFetched != nil {
		record.WebsiteFetched = *p.WebsiteFetched
	}
	if p.TechnicalLevel != nil {
		record.TechnicalLevel = p.TechnicalLevel
	}
	if p.WorkflowVolume != nil {
		record.WorkflowVolume = p.WorkflowVolume
	}
	if p.FinalPlan != nil {
		record.FinalPlan = p.FinalPlan
	}
	if p.Billing != nil {
		record.Billing = *p.Billing
	}
	if p.CredentialSetup != nil {
		record.CredentialSetup = p.CredentialSetup
	}
	if p.HasOpenRouter != nil {
		record.HasOpenRouter = p.HasOpenRouter
	}
	if p.OpenRouterSetupClicked != nil {
		record.OpenRouterSetupClicked = *p.OpenRouterSetupClicked
	}
	if p.AIAgentSetup != nil {
		record.AIAgentSetup = p.AIAgentSetup
	}
	if p.WorkflowSetup != nil {
		record.WorkflowSetup = p.WorkflowSetup
	}
	if p.LocalHosting != nil {
		record.LocalHosting = p.LocalHosting
	}
	if p.WebsiteHosting != nil {
		record.WebsiteHosting = p.WebsiteHosting
	}
	if p.DetectedCMS != nil {
		record.DetectedCMS = p.DetectedCMS
	}
	if p.BusinessSummary != nil {
		record.BusinessSummary = *p.BusinessSummary
	}
	if p.TeamSize != nil {
		record.TeamSize = p.TeamSize
	}
	if p.Roles != nil {
		record.Roles = append([]string(nil), p.Roles...)
	}
	if p.AutomationAreas != nil {
		record.AutomationAreas = append([]string(nil), p.AutomationAreas...)
	}
	if p.BillingEmail != nil {
		record.BillingEmail = *p.BillingEmail
	}
	return record
}
