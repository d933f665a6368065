package external

import (
	"context"

	"onboard/internal/types"
)

// PersistenceService mirrors wizard answers to the remote contact store.
// Every write is comprehensive: the full record is sent each time so a missed
// earlier save never loses data. Implementations must treat all operations as
// best-effort from the caller's perspective; the wizard never blocks on them.
type PersistenceService interface {
	// CreateRecord creates the remote contact and returns its server-assigned ID.
	// If the contact already exists (duplicate email), implementations should
	// resolve and return the existing ID instead of failing.
	CreateRecord(ctx context.Context, record *types.AnswerRecord) (string, error)

	// UpdateRecord resends the full record to the contact identified by recordID.
	// It must never change the completion status; only MarkComplete does that.
	UpdateRecord(ctx context.Context, recordID string, record *types.AnswerRecord) error

	// MarkComplete performs the final comprehensive write plus the completion
	// fields: status, needs-booking flag, and completion timestamp.
	MarkComplete(ctx context.Context, recordID string, record *types.AnswerRecord) error

	// CheckSlugAvailable reports whether the subdomain slug is unclaimed.
	CheckSlugAvailable(ctx context.Context, slug string) (bool, error)
}

// PaymentGateway charges the card for the order derived from the record.
// A declined card is a successful call with Success=false; errors are reserved
// for transport and configuration failures.
type PaymentGateway interface {
	Charge(ctx context.Context, card types.CardDetails, record *types.AnswerRecord) (types.PaymentResult, error)
}

// Provisioner creates the customer's workspace (subdomain, branding, initial
// user) after payment succeeds.
type Provisioner interface {
	Provision(ctx context.Context, record *types.AnswerRecord) error
}
