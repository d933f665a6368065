package wizard

import (
	"onboard/internal/billing"
	"onboard/internal/types"
)

// CheckoutView resolves which of the three mutually exclusive sub-views the
// terminal step renders. This is a presentation branch derived purely from
// the record; it is not additional step-machine state.
//
//   - A completed payment (or submitted inquiry) shows the confirmation view.
//   - An inquire plan/affiliate combination shows the lead-capture inquiry
//     form, never the card form, regardless of billing frequency.
//   - Everything else shows the standard checkout form.
func CheckoutView(resolver *billing.Resolver, record *types.AnswerRecord) types.CheckoutViewKind {
	if record.PaymentStatus != nil && *record.PaymentStatus == types.PaymentCompleted {
		return types.ViewConfirmation
	}
	if record.CompletedAt != nil {
		return types.ViewConfirmation
	}
	if resolver.IsInquire(record.ActivePlan(), record.AffiliateCodeValue()) {
		return types.ViewInquiry
	}
	return types.ViewPayment
}
