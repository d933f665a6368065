package external

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"onboard/internal/types"
)

// Stub implementations let the application boot in local/test mode without
// real upstream credentials. They log all actions and return predictable,
// safe defaults.

// StubPersistence implements PersistenceService in memory. Record IDs are
// sequential so autosave behavior is observable in local logs.
type StubPersistence struct {
	logger *slog.Logger

	mu      sync.Mutex
	nextID  int64
	records map[string]types.AnswerRecord

	// TakenSlugs lists slugs that report unavailable, for exercising the
	// availability flow locally.
	TakenSlugs map[string]bool
}

// NewStubPersistence creates a StubPersistence.
func NewStubPersistence(logger *slog.Logger) *StubPersistence {
	return &StubPersistence{
		logger:     logger,
		nextID:     1000,
		records:    map[string]types.AnswerRecord{},
		TakenSlugs: map[string]bool{},
	}
}

func (s *StubPersistence) CreateRecord(ctx context.Context, record *types.AnswerRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("%d", s.nextID)
	s.records[id] = *record
	s.logger.InfoContext(ctx, "stub: record created", "record_id", id)
	return id, nil
}

func (s *StubPersistence) UpdateRecord(ctx context.Context, recordID string, record *types.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordID] = *record
	s.logger.InfoContext(ctx, "stub: record updated", "record_id", recordID)
	return nil
}

func (s *StubPersistence) MarkComplete(ctx context.Context, recordID string, record *types.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordID] = *record
	s.logger.InfoContext(ctx, "stub: record marked complete",
		"record_id", recordID,
		"needs_booking", record.NeedsBooking(),
	)
	return nil
}

func (s *StubPersistence) CheckSlugAvailable(ctx context.Context, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	taken := s.TakenSlugs[slug]
	s.logger.InfoContext(ctx, "stub: slug checked", "slug", slug, "taken", taken)
	return !taken, nil
}

// StubPaymentGateway approves every charge with a deterministic transaction
// ID. Set Decline to exercise the failure path.
type StubPaymentGateway struct {
	logger  *slog.Logger
	counter atomic.Int64

	// Decline, when non-empty, makes every charge come back declined with
	// this message.
	Decline string
}

// NewStubPaymentGateway creates a StubPaymentGateway.
func NewStubPaymentGateway(logger *slog.Logger) *StubPaymentGateway {
	return &StubPaymentGateway{logger: logger}
}

func (s *StubPaymentGateway) Charge(ctx context.Context, card types.CardDetails, record *types.AnswerRecord) (types.PaymentResult, error) {
	if s.Decline != "" {
		s.logger.InfoContext(ctx, "stub: charge declined")
		return types.PaymentResult{Success: false, Error: s.Decline}, nil
	}
	n := s.counter.Add(1)
	txID := fmt.Sprintf("txn_stub_%06d", n)
	s.logger.InfoContext(ctx, "stub: charge approved",
		"transaction_id", txID,
		"plan", record.ActivePlan(),
	)
	return types.PaymentResult{Success: true, TransactionID: txID}, nil
}

// StubProvisioner logs the provisioning request and succeeds.
type StubProvisioner struct {
	logger *slog.Logger
}

// NewStubProvisioner creates a StubProvisioner.
func NewStubProvisioner(logger *slog.Logger) *StubProvisioner {
	return &StubProvisioner{logger: logger}
}

func (s *StubProvisioner) Provision(ctx context.Context, record *types.AnswerRecord) error {
	s.logger.InfoContext(ctx, "stub: workspace provisioned",
		"subdomain", record.Slug,
		"plan", record.ActivePlan(),
	)
	return nil
}
