package types

// PlanKey identifies a pricing plan tier. Tiers are listed in ascending
// capability/price order.
type PlanKey string

const (
	PlanEssentials  PlanKey = "essentials"
	PlanSupportPlus PlanKey = "support-plus"
	PlanPro         PlanKey = "pro"
	PlanEmbedded    PlanKey = "embedded"
)

// AllPlanKeys lists every valid plan key in ascending tier order.
// The order matters: the numeric entry-URL plan selector (1-4) indexes into it.
var AllPlanKeys = []PlanKey{PlanEssentials, PlanSupportPlus, PlanPro, PlanEmbedded}

// IsValidPlanKey reports whether k names a known plan tier.
func IsValidPlanKey(k PlanKey) bool {
	for _, p := range AllPlanKeys {
		if p == k {
			return true
		}
	}
	return false
}

// TechLevel captures how much hands-on help the customer wants.
type TechLevel string

const (
	TechSelfSufficient TechLevel = "self-sufficient"
	TechSomeHelp       TechLevel = "some-help"
	TechFullService    TechLevel = "full-service"
)

// AllTechLevels lists every valid technical comfort level.
var AllTechLevels = []TechLevel{TechSelfSufficient, TechSomeHelp, TechFullService}

// WorkflowVolume captures the expected automation workload.
type WorkflowVolume string

const (
	VolumeStarter    WorkflowVolume = "starter"
	VolumeGrowing    WorkflowVolume = "growing"
	VolumeFullEngine WorkflowVolume = "full-engine"
	VolumeUnsure     WorkflowVolume = "unsure"
)

// AllWorkflowVolumes lists every valid workflow volume.
var AllWorkflowVolumes = []WorkflowVolume{VolumeStarter, VolumeGrowing, VolumeFullEngine, VolumeUnsure}

// SetupChoice is a per-add-on decision between doing setup yourself
// or paying for assisted setup.
type SetupChoice string

const (
	SetupSelf     SetupChoice = "self"
	SetupAssisted SetupChoice = "assisted"
)

// TeamSize buckets the customer's team headcount.
type TeamSize string

const (
	TeamSolo        TeamSize = "solo"
	TeamTwoToFive   TeamSize = "2-5"
	TeamSixToTwenty TeamSize = "6-20"
	TeamTwentyPlus  TeamSize = "20+"
)

// BillingFrequency selects the recurring billing cadence.
type BillingFrequency string

const (
	BillingMonthly BillingFrequency = "monthly"
	BillingYearly  BillingFrequency = "yearly"
)

// PaymentStatus tracks the outcome of the checkout charge attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// SlugAvailability is the tri-state result of a subdomain availability check.
// Unknown means no check has completed for the current candidate yet.
type SlugAvailability string

const (
	SlugUnknown   SlugAvailability = "unknown"
	SlugAvailable SlugAvailability = "available"
	SlugTaken     SlugAvailability = "taken"
)

// CheckoutViewKind identifies which of the three mutually exclusive terminal
// sub-views the final step renders. It is derived purely from the record,
// never stored as additional step-machine state.
type CheckoutViewKind string

const (
	ViewConfirmation CheckoutViewKind = "confirmation"
	ViewInquiry      CheckoutViewKind = "inquiry"
	ViewPayment      CheckoutViewKind = "payment"
)

// CMSWordPress is the detected-CMS sentinel that makes the website-hosting
// offer step reachable. Any other value (or none) skips the step.
const CMSWordPress = "WordPress"
