package autosave

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"onboard/internal/session"
	"onboard/internal/types"
	"onboard/internal/wizard"
)

// fakePersistence records calls and returns scripted results.
type fakePersistence struct {
	mu sync.Mutex

	createID  string
	createErr error
	updateErr error

	creates   []types.AnswerRecord
	updates   []string
	completes []string
}

func (f *fakePersistence) CreateRecord(ctx context.Context, record *types.AnswerRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, *record)
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.createID, nil
}

func (f *fakePersistence) UpdateRecord(ctx context.Context, recordID string, record *types.AnswerRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, recordID)
	return f.updateErr
}

func (f *fakePersistence) MarkComplete(ctx context.Context, recordID string, record *types.AnswerRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes = append(f.completes, recordID)
	return nil
}

func (f *fakePersistence) CheckSlugAvailable(ctx context.Context, slug string) (bool, error) {
	return true, nil
}

func (f *fakePersistence) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates)
}

func (f *fakePersistence) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestOrchestrator(t *testing.T, fake *fakePersistence) (*Orchestrator, *session.Manager) {
	t.Helper()
	mgr := session.NewManager(session.NewMemoryStore())
	o := NewOrchestrator(fake, mgr, quietLogger())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		o.Close(ctx)
	})
	return o, mgr
}

func seedSession(t *testing.T, mgr *session.Manager, id string) wizard.State {
	t.Helper()
	st := wizard.NewDefaultState()
	if err := mgr.Create(context.Background(), id, st); err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	return st
}

func drain(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := o.Close(ctx); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
}

func TestDispatch_CreateCheckpointStoresRecordID(t *testing.T) {
	fake := &fakePersistence{createID: "6001"}
	o, mgr := newTestOrchestrator(t, fake)
	st := seedSession(t, mgr, "sess-1")

	st.Record.Email = "jo@example.com"
	o.Dispatch(context.Background(), "sess-1", wizard.StepBusinessDetails, wizard.StepSubdomain, st.Record)
	drain(t, o)

	if fake.createCount() != 1 {
		t.Fatalf("expected 1 create, got %d", fake.createCount())
	}
	got, err := mgr.Get(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("failed to load session: %v", err)
	}
	if got.Record.RecordID == nil || *got.Record.RecordID != "6001" {
		t.Errorf("expected record id 6001 merged into session, got %v", got.Record.RecordID)
	}
}

func TestDispatch_CreateDoesNotOverwriteExistingID(t *testing.T) {
	fake := &fakePersistence{createID: "7777"}
	o, mgr := newTestOrchestrator(t, fake)
	st := seedSession(t, mgr, "sess-1")

	// Another save wins the race and stores an ID first.
	existing := "6001"
	if _, err := mgr.Mutate(context.Background(), "sess-1", func(s wizard.State) (wizard.State, error) {
		s.Record.RecordID = &existing
		return s, nil
	}); err != nil {
		t.Fatalf("failed to set existing id: %v", err)
	}

	o.Dispatch(context.Background(), "sess-1", wizard.StepBusinessDetails, wizard.StepSubdomain, st.Record)
	drain(t, o)

	got, _ := mgr.Get(context.Background(), "sess-1")
	if got.Record.RecordID == nil || *got.Record.RecordID != "6001" {
		t.Errorf("existing record id should win, got %v", got.Record.RecordID)
	}
}

func TestDispatch_CreateWithExistingRecordDegradesToUpdate(t *testing.T) {
	fake := &fakePersistence{}
	o, mgr := newTestOrchestrator(t, fake)
	st := seedSession(t, mgr, "sess-1")

	id := "6001"
	st.Record.RecordID = &id
	o.Dispatch(context.Background(), "sess-1", wizard.StepBusinessDetails, wizard.StepSubdomain, st.Record)
	drain(t, o)

	if fake.createCount() != 0 {
		t.Errorf("expected no create when a record already exists, got %d", fake.createCount())
	}
	if fake.updateCount() != 1 {
		t.Errorf("expected 1 update, got %d", fake.updateCount())
	}
}

func TestDispatch_UpdateCheckpoint(t *testing.T) {
	fake := &fakePersistence{}
	o, mgr := newTestOrchestrator(t, fake)
	st := seedSession(t, mgr, "sess-1")

	id := "6001"
	st.Record.RecordID = &id
	o.Dispatch(context.Background(), "sess-1", wizard.StepPlanRecommend, wizard.StepCredentialSetup, st.Record)
	drain(t, o)

	if fake.updateCount() != 1 {
		t.Fatalf("expected 1 update, got %d", fake.updateCount())
	}
	if fake.updates[0] != "6001" {
		t.Errorf("update targeted wrong record: %s", fake.updates[0])
	}
}

func TestDispatch_UpdateWithoutRecordIsSkipped(t *testing.T) {
	fake := &fakePersistence{}
	o, mgr := newTestOrchestrator(t, fake)
	st := seedSession(t, mgr, "sess-1")

	o.Dispatch(context.Background(), "sess-1", wizard.StepPlanRecommend, wizard.StepCredentialSetup, st.Record)
	drain(t, o)

	if fake.updateCount() != 0 || fake.createCount() != 0 {
		t.Error("update without a record id should be skipped entirely")
	}
}

func TestDispatch_NonCheckpointTransitionsDoNothing(t *testing.T) {
	fake := &fakePersistence{}
	o, mgr := newTestOrchestrator(t, fake)
	st := seedSession(t, mgr, "sess-1")

	id := "6001"
	st.Record.RecordID = &id

	// Silent forward step and a retreat across a checkpoint boundary.
	o.Dispatch(context.Background(), "sess-1", wizard.StepWelcome, wizard.StepBusinessDetails, st.Record)
	o.Dispatch(context.Background(), "sess-1", wizard.StepCredentialSetup, wizard.StepPlanRecommend, st.Record)
	drain(t, o)

	if fake.createCount() != 0 || fake.updateCount() != 0 {
		t.Error("non-checkpoint transitions must not save")
	}
}

func TestDispatch_FailureIsSwallowed(t *testing.T) {
	fake := &fakePersistence{createErr: errors.New("store down")}
	o, mgr := newTestOrchestrator(t, fake)
	st := seedSession(t, mgr, "sess-1")

	// Must not panic or block; the session stays without a record ID.
	o.Dispatch(context.Background(), "sess-1", wizard.StepBusinessDetails, wizard.StepSubdomain, st.Record)
	drain(t, o)

	got, _ := mgr.Get(context.Background(), "sess-1")
	if got.Record.RecordID != nil {
		t.Error("failed create must not set a record id")
	}
}

func TestDispatch_CancelledRequestContextDoesNotCancelSave(t *testing.T) {
	fake := &fakePersistence{createID: "6001"}
	o, mgr := newTestOrchestrator(t, fake)
	st := seedSession(t, mgr, "sess-1")

	ctx, cancel := context.WithCancel(context.Background())
	o.Dispatch(ctx, "sess-1", wizard.StepBusinessDetails, wizard.StepSubdomain, st.Record)
	cancel()
	drain(t, o)

	if fake.createCount() != 1 {
		t.Errorf("save should run despite request cancellation, got %d creates", fake.createCount())
	}
}

func TestDispatchComplete(t *testing.T) {
	fake := &fakePersistence{}
	o, mgr := newTestOrchestrator(t, fake)
	st := seedSession(t, mgr, "sess-1")

	id := "6001"
	st.Record.RecordID = &id
	o.DispatchComplete(context.Background(), "sess-1", st.Record)
	drain(t, o)

	if len(fake.completes) != 1 || fake.completes[0] != "6001" {
		t.Errorf("expected one completion for 6001, got %v", fake.completes)
	}
}

func TestClose_RefusesNewDispatches(t *testing.T) {
	fake := &fakePersistence{createID: "6001"}
	mgr := session.NewManager(session.NewMemoryStore())
	o := NewOrchestrator(fake, mgr, quietLogger())
	st := seedSession(t, mgr, "sess-1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := o.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	o.Dispatch(context.Background(), "sess-1", wizard.StepBusinessDetails, wizard.StepSubdomain, st.Record)
	time.Sleep(50 * time.Millisecond)

	if fake.createCount() != 0 {
		t.Error("dispatch after close should be a no-op")
	}
}
