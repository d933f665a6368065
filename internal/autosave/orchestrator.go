// Package autosave mirrors wizard progress to the remote contact store in the
// background. Saves happen at a handful of step-transition checkpoints; each
// save sends the full record, so losing one checkpoint never loses data.
// Autosave is strictly best-effort: the wizard keeps moving whether or not
// the remote store is reachable.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"onboard/internal/external"
	"onboard/internal/session"
	"onboard/internal/types"
	"onboard/internal/wizard"
)

// saveTimeout bounds a single background save. Saves run detached from the
// originating request, so they need their own deadline.
const saveTimeout = 15 * time.Second

// Orchestrator watches step transitions and runs checkpoint saves in tracked
// goroutines. It owns the only writes to AnswerRecord.RecordID.
type Orchestrator struct {
	persistence external.PersistenceService
	sessions    *session.Manager
	logger      *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(persistence external.PersistenceService, sessions *session.Manager, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		persistence: persistence,
		sessions:    sessions,
		logger:      logger,
	}
}

// Dispatch classifies the transition from prev to next and, when it is a
// checkpoint, spawns a background save of the given record snapshot. It never
// blocks on the remote store and never returns remote errors: checkpoint
// failures are logged and swallowed.
//
// Saves never touch the completion status; only MarkComplete does that.
func (o *Orchestrator) Dispatch(ctx context.Context, sessionID string, prev, next int, record types.AnswerRecord) {
	cp := wizard.CheckpointFor(prev, next)
	if cp == wizard.CheckpointNone {
		return
	}

	// A create checkpoint on a session that already has a record (the user
	// went back past it and came forward again) degrades to an update.
	if cp == wizard.CheckpointCreate && record.RecordID != nil {
		cp = wizard.CheckpointUpdate
	}
	// An update without a record means the create checkpoint failed earlier.
	// Skip: the next successful create resends everything anyway.
	if cp == wizard.CheckpointUpdate && record.RecordID == nil {
		o.logger.WarnContext(ctx, "skipping update checkpoint, no record yet",
			"session_id", sessionID,
			"prev", prev,
			"next", next,
		)
		return
	}

	if !o.track() {
		return
	}

	// Detach from the request context but keep its values (request ID) for
	// log correlation.
	bg := context.WithoutCancel(ctx)

	go func() {
		defer o.wg.Done()
		saveCtx, cancel := context.WithTimeout(bg, saveTimeout)
		defer cancel()

		switch cp {
		case wizard.CheckpointCreate:
			o.runCreate(saveCtx, sessionID, record)
		case wizard.CheckpointUpdate:
			o.runUpdate(saveCtx, sessionID, record)
		}
	}()
}

// DispatchComplete spawns the final background save marking the record
// complete. Called after a successful payment; the customer is already on the
// confirmation screen, so failures are logged and swallowed here too.
func (o *Orchestrator) DispatchComplete(ctx context.Context, sessionID string, record types.AnswerRecord) {
	if record.RecordID == nil {
		o.logger.WarnContext(ctx, "cannot mark complete, no record", "session_id", sessionID)
		return
	}
	if !o.track() {
		return
	}

	bg := context.WithoutCancel(ctx)
	recordID := *record.RecordID

	go func() {
		defer o.wg.Done()
		saveCtx, cancel := context.WithTimeout(bg, saveTimeout)
		defer cancel()

		if err := o.persistence.MarkComplete(saveCtx, recordID, &record); err != nil {
			o.logger.ErrorContext(saveCtx, "mark complete failed",
				"session_id", sessionID,
				"record_id", recordID,
				"error", err,
			)
			return
		}
		o.logger.InfoContext(saveCtx, "record marked complete",
			"session_id", sessionID,
			"record_id", recordID,
			"needs_booking", record.NeedsBooking(),
		)
	}()
}

// track registers a new in-flight save unless the orchestrator is closed.
func (o *Orchestrator) track() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	o.wg.Add(1)
	return true
}

// runCreate creates the remote record and merges the assigned ID back into
// the session. The merge keeps whatever state the session has moved to since
// the snapshot; only the missing RecordID is filled in.
func (o *Orchestrator) runCreate(ctx context.Context, sessionID string, record types.AnswerRecord) {
	id, err := o.persistence.CreateRecord(ctx, &record)
	if err != nil {
		o.logger.ErrorContext(ctx, "create checkpoint failed",
			"session_id", sessionID,
			"error", err,
		)
		return
	}

	_, err = o.sessions.Mutate(ctx, sessionID, func(st wizard.State) (wizard.State, error) {
		if st.Record.RecordID == nil {
			st.Record.RecordID = &id
		}
		return st, nil
	})
	if err != nil {
		// The remote record exists but the session does not know its ID.
		// A later create checkpoint will dedupe by email and recover it.
		o.logger.ErrorContext(ctx, "failed to store record id on session",
			"session_id", sessionID,
			"record_id", id,
			"error", err,
		)
		return
	}

	o.logger.InfoContext(ctx, "record created",
		"session_id", sessionID,
		"record_id", id,
	)
}

// runUpdate resends the full record snapshot.
func (o *Orchestrator) runUpdate(ctx context.Context, sessionID string, record types.AnswerRecord) {
	if err := o.persistence.UpdateRecord(ctx, *record.RecordID, &record); err != nil {
		o.logger.ErrorContext(ctx, "update checkpoint failed",
			"session_id", sessionID,
			"record_id", *record.RecordID,
			"error", err,
		)
		return
	}
	o.logger.DebugContext(ctx, "record updated",
		"session_id", sessionID,
		"record_id", *record.RecordID,
	)
}

// Close stops accepting new dispatches and waits for in-flight saves, giving
// up when ctx expires.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
