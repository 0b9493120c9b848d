package saga

import (
	"context"
	"sync"
	"testing"

	"github.com/draftea/saga-engine/shared/events"
	"github.com/draftea/saga-engine/shared/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// callRecorder collects execute/compensate invocations across steps so tests
// can assert ordering
type callRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *callRecorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *callRecorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.calls...)
}

func recordingStep(name string, rec *callRecorder) Step {
	return NewStep(name,
		func(ctx context.Context, sc *Context) error {
			rec.record("execute:" + name)
			return nil
		},
		WithCompensation(func(ctx context.Context, sc *Context) error {
			rec.record("compensate:" + name)
			return nil
		}),
	)
}

// fakePublisher captures lifecycle event types in publish order
type fakePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *fakePublisher) Publish(ctx context.Context, evts ...*events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, evt := range evts {
		p.topics = append(p.topics, evt.EventType)
	}
	return nil
}

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts}
}

func TestNewOrchestrator_Validation(t *testing.T) {
	store := NewMemoryStateStore()
	step := recordingStep("a", &callRecorder{})

	tests := []struct {
		name        string
		sagaName    string
		steps       []Step
		store       StateStore
		expectedErr error
	}{
		{
			name:        "no steps",
			sagaName:    "test",
			steps:       nil,
			store:       store,
			expectedErr: ErrNoSteps,
		},
		{
			name:        "nil state store",
			sagaName:    "test",
			steps:       []Step{step},
			store:       nil,
			expectedErr: ErrNilStateStore,
		},
		{
			name:        "duplicate step names",
			sagaName:    "test",
			steps:       []Step{step, recordingStep("a", &callRecorder{})},
			store:       store,
			expectedErr: ErrDuplicateStep,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrchestrator(tt.sagaName, tt.steps, tt.store)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}

	_, err := NewOrchestrator("", []Step{step}, store)
	assert.Error(t, err)
}

func TestOrchestrator_Run_CompletesAllSteps(t *testing.T) {
	rec := &callRecorder{}
	store := NewMemoryStateStore()
	publisher := &fakePublisher{}

	orch, err := NewOrchestrator("order_fulfillment",
		[]Step{recordingStep("a", rec), recordingStep("b", rec), recordingStep("c", rec)},
		store,
		WithRetryPolicy(fastRetry(1)),
		WithPublisher(publisher),
	)
	require.NoError(t, err)

	sc := NewContext()
	result, err := orch.Run(context.Background(), sc)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.NoError(t, result.Err)
	assert.Empty(t, result.CompensationErrors)
	assert.Equal(t, []string{"execute:a", "execute:b", "execute:c"}, rec.Calls())

	record, err := store.Get(context.Background(), sc.SagaID())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, record.Status)
	assert.Equal(t, []string{"a", "b", "c"}, record.CompletedSteps)

	assert.Equal(t, []string{events.SagaStartedEvent, events.SagaCompletedEvent}, publisher.topics)
}

func TestOrchestrator_Run_CompensatesInReverseOrder(t *testing.T) {
	rec := &callRecorder{}
	store := NewMemoryStateStore()
	publisher := &fakePublisher{}

	failing := NewStep("c",
		func(ctx context.Context, sc *Context) error {
			rec.record("execute:c")
			return errors.New("charge declined")
		},
		WithCompensation(func(ctx context.Context, sc *Context) error {
			rec.record("compensate:c")
			return nil
		}),
	)

	orch, err := NewOrchestrator("payment",
		[]Step{recordingStep("a", rec), recordingStep("b", rec), failing},
		store,
		WithRetryPolicy(fastRetry(2)),
		WithPublisher(publisher),
	)
	require.NoError(t, err)

	sc := NewContext()
	result, err := orch.Run(context.Background(), sc)
	require.NoError(t, err)

	assert.Equal(t, StatusCompensated, result.Status)
	require.Error(t, result.Err)

	var stepErr *StepError
	require.ErrorAs(t, result.Err, &stepErr)
	assert.Equal(t, "c", stepErr.StepName)
	assert.Equal(t, 2, stepErr.Attempts)

	// The failed step itself is never compensated, only the completed ones,
	// in reverse completion order.
	assert.Equal(t, []string{
		"execute:a", "execute:b",
		"execute:c", "execute:c",
		"compensate:b", "compensate:a",
	}, rec.Calls())

	record, err := store.Get(context.Background(), sc.SagaID())
	require.NoError(t, err)
	assert.Equal(t, StatusCompensated, record.Status)
	assert.Empty(t, record.CompletedSteps)
	require.NotNil(t, record.Error)
	assert.Contains(t, *record.Error, "charge declined")

	assert.Equal(t, []string{events.SagaStartedEvent, events.SagaCompensatedEvent}, publisher.topics)
}

func TestOrchestrator_Run_FirstStepFails_NothingToCompensate(t *testing.T) {
	rec := &callRecorder{}
	store := NewMemoryStateStore()

	failing := NewStep("a",
		func(ctx context.Context, sc *Context) error {
			rec.record("execute:a")
			return errors.New("boom")
		},
		WithCompensation(func(ctx context.Context, sc *Context) error {
			rec.record("compensate:a")
			return nil
		}),
	)

	orch, err := NewOrchestrator("payment",
		[]Step{failing, recordingStep("b", rec)},
		store,
		WithRetryPolicy(fastRetry(1)),
	)
	require.NoError(t, err)

	result, err := orch.Run(context.Background(), NewContext())
	require.NoError(t, err)

	assert.Equal(t, StatusCompensated, result.Status)
	assert.Equal(t, []string{"execute:a"}, rec.Calls())
}

func TestOrchestrator_Run_CompensationFailureContinuesRollback(t *testing.T) {
	rec := &callRecorder{}
	store := NewMemoryStateStore()

	brokenComp := NewStep("a",
		func(ctx context.Context, sc *Context) error {
			rec.record("execute:a")
			return nil
		},
		WithCompensation(func(ctx context.Context, sc *Context) error {
			rec.record("compensate:a")
			return errors.New("credit rejected")
		}),
	)
	failing := NewStep("c",
		func(ctx context.Context, sc *Context) error {
			rec.record("execute:c")
			return errors.New("boom")
		},
	)

	orch, err := NewOrchestrator("payment",
		[]Step{brokenComp, recordingStep("b", rec), failing},
		store,
		WithRetryPolicy(fastRetry(1)),
	)
	require.NoError(t, err)

	sc := NewContext()
	result, err := orch.Run(context.Background(), sc)
	require.NoError(t, err)

	// A failed compensation does not stop the rollback of the remaining
	// steps, but it escalates the terminal status to failed.
	assert.Equal(t, StatusFailed, result.Status)
	require.Len(t, result.CompensationErrors, 1)
	assert.Equal(t, "a", result.CompensationErrors[0].StepName)
	assert.Equal(t, []string{
		"execute:a", "execute:b", "execute:c",
		"compensate:b", "compensate:a",
	}, rec.Calls())

	record, err := store.Get(context.Background(), sc.SagaID())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, record.Status)
	// The un-rolled-back step stays on the record for the operator.
	assert.Equal(t, []string{"a"}, record.CompletedSteps)
}

func TestOrchestrator_Run_RetriesTransientFailures(t *testing.T) {
	rec := &callRecorder{}
	store := NewMemoryStateStore()

	attempts := 0
	flaky := NewStep("a", func(ctx context.Context, sc *Context) error {
		attempts++
		rec.record("execute:a")
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	orch, err := NewOrchestrator("payment", []Step{flaky}, store,
		WithRetryPolicy(fastRetry(3)))
	require.NoError(t, err)

	result, err := orch.Run(context.Background(), NewContext())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 3, attempts)
}

func TestOrchestrator_Run_SkipsStepWhenPredicateSaysSo(t *testing.T) {
	rec := &callRecorder{}
	store := NewMemoryStateStore()

	skipped := NewStep("b",
		func(ctx context.Context, sc *Context) error {
			rec.record("execute:b")
			return nil
		},
		WithCompensation(func(ctx context.Context, sc *Context) error {
			rec.record("compensate:b")
			return nil
		}),
		WithSkipPredicate(func(sc *Context) bool {
			skip, _ := sc.Get("skip_b")
			flag, ok := skip.(bool)
			return ok && flag
		}),
	)
	failing := NewStep("c", func(ctx context.Context, sc *Context) error {
		rec.record("execute:c")
		return errors.New("boom")
	})

	orch, err := NewOrchestrator("payment",
		[]Step{recordingStep("a", rec), skipped, failing},
		store,
		WithRetryPolicy(fastRetry(1)),
	)
	require.NoError(t, err)

	sc := NewContext()
	sc.Set("skip_b", true)
	result, err := orch.Run(context.Background(), sc)
	require.NoError(t, err)

	// Skipped steps are neither executed nor compensated.
	assert.Equal(t, StatusCompensated, result.Status)
	assert.Equal(t, []string{"execute:a", "execute:c", "compensate:a"}, rec.Calls())
}

func TestOrchestrator_Run_ContextFlowsBetweenSteps(t *testing.T) {
	store := NewMemoryStateStore()

	producer := NewStep("produce", func(ctx context.Context, sc *Context) error {
		sc.Set("reservation_id", "res-123")
		return nil
	})
	var seen string
	consumer := NewStep("consume", func(ctx context.Context, sc *Context) error {
		seen, _ = sc.GetString("reservation_id")
		return nil
	})

	orch, err := NewOrchestrator("payment", []Step{producer, consumer}, store,
		WithRetryPolicy(fastRetry(1)))
	require.NoError(t, err)

	result, err := orch.Run(context.Background(), NewContext())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "res-123", seen)
}

func TestOrchestrator_Resume_ContinuesForwardExecution(t *testing.T) {
	rec := &callRecorder{}
	store := NewMemoryStateStore()

	orch, err := NewOrchestrator("payment",
		[]Step{recordingStep("a", rec), recordingStep("b", rec), recordingStep("c", rec)},
		store,
		WithRetryPolicy(fastRetry(1)),
	)
	require.NoError(t, err)

	// Simulate a crash after step a completed: the record says in_progress
	// with a in completed_steps.
	sc := NewContext()
	sc.Set("amount", int64(500))
	_, err = store.Create(context.Background(), "payment", sc)
	require.NoError(t, err)
	snapshot, err := sc.Snapshot()
	require.NoError(t, err)
	require.NoError(t, store.Update(context.Background(), sc.SagaID(), Update{
		Status:         StatusInProgress,
		Context:        snapshot,
		CompletedSteps: []string{"a"},
	}))

	result, err := orch.Resume(context.Background(), sc.SagaID())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, []string{"execute:b", "execute:c"}, rec.Calls())

	record, err := store.Get(context.Background(), sc.SagaID())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, record.CompletedSteps)
}

func TestOrchestrator_Resume_ContinuesCompensation(t *testing.T) {
	rec := &callRecorder{}
	store := NewMemoryStateStore()

	orch, err := NewOrchestrator("payment",
		[]Step{recordingStep("a", rec), recordingStep("b", rec), recordingStep("c", rec)},
		store,
		WithRetryPolicy(fastRetry(1)),
	)
	require.NoError(t, err)

	// Simulate a crash mid-rollback: c was already unwound, a and b remain.
	sc := NewContext()
	_, err = store.Create(context.Background(), "payment", sc)
	require.NoError(t, err)
	snapshot, err := sc.Snapshot()
	require.NoError(t, err)
	errMsg := "charge declined"
	require.NoError(t, store.Update(context.Background(), sc.SagaID(), Update{
		Status:         StatusCompensating,
		Context:        snapshot,
		CompletedSteps: []string{"a", "b"},
		Error:          &errMsg,
	}))

	result, err := orch.Resume(context.Background(), sc.SagaID())
	require.NoError(t, err)

	assert.Equal(t, StatusCompensated, result.Status)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "charge declined")
	assert.Equal(t, []string{"compensate:b", "compensate:a"}, rec.Calls())
}

func TestOrchestrator_Resume_RetriesFailedCompensation(t *testing.T) {
	rec := &callRecorder{}
	store := NewMemoryStateStore()

	compAttempts := 0
	flakyComp := NewStep("b",
		func(ctx context.Context, sc *Context) error {
			rec.record("execute:b")
			return nil
		},
		WithCompensation(func(ctx context.Context, sc *Context) error {
			compAttempts++
			rec.record("compensate:b")
			if compAttempts == 1 {
				return errors.New("wallet service unavailable")
			}
			return nil
		}),
	)
	failing := NewStep("c", func(ctx context.Context, sc *Context) error {
		rec.record("execute:c")
		return errors.New("charge declined")
	})

	orch, err := NewOrchestrator("payment",
		[]Step{recordingStep("a", rec), flakyComp, failing},
		store,
		WithRetryPolicy(fastRetry(1)),
	)
	require.NoError(t, err)

	sc := NewContext()
	result, err := orch.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, result.Status)

	// b's compensation failed, so b is still recorded as owing compensation;
	// a was unwound and is gone.
	record, err := store.Get(context.Background(), sc.SagaID())
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, record.CompletedSteps)

	// A crash before the terminal write would have left the record
	// compensating with that same step list. Resuming it once the outage is
	// over re-attempts b and nothing else.
	require.NoError(t, store.Update(context.Background(), sc.SagaID(), Update{
		Status:         StatusCompensating,
		Context:        record.Context,
		CompletedSteps: record.CompletedSteps,
		Error:          record.Error,
	}))

	resumed, err := orch.Resume(context.Background(), sc.SagaID())
	require.NoError(t, err)

	assert.Equal(t, StatusCompensated, resumed.Status)
	assert.Empty(t, resumed.CompensationErrors)
	assert.Equal(t, 2, compAttempts)
	assert.Equal(t, []string{
		"execute:a", "execute:b", "execute:c",
		"compensate:b", "compensate:a",
		"compensate:b",
	}, rec.Calls())

	record, err = store.Get(context.Background(), sc.SagaID())
	require.NoError(t, err)
	assert.Equal(t, StatusCompensated, record.Status)
	assert.Empty(t, record.CompletedSteps)
}

func TestOrchestrator_Resume_TerminalSagaReturnsRecordedOutcome(t *testing.T) {
	rec := &callRecorder{}
	store := NewMemoryStateStore()

	orch, err := NewOrchestrator("payment",
		[]Step{recordingStep("a", rec)},
		store,
		WithRetryPolicy(fastRetry(1)),
	)
	require.NoError(t, err)

	sc := NewContext()
	result, err := orch.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.Status)

	callsBefore := len(rec.Calls())
	resumed, err := orch.Resume(context.Background(), sc.SagaID())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, resumed.Status)
	assert.Len(t, rec.Calls(), callsBefore)
}

func TestOrchestrator_Resume_RejectsWrongSagaType(t *testing.T) {
	store := NewMemoryStateStore()

	orch, err := NewOrchestrator("payment",
		[]Step{recordingStep("a", &callRecorder{})},
		store,
		WithRetryPolicy(fastRetry(1)),
	)
	require.NoError(t, err)

	sc := NewContext()
	_, err = store.Create(context.Background(), "refund", sc)
	require.NoError(t, err)

	_, err = orch.Resume(context.Background(), sc.SagaID())
	assert.Error(t, err)
}

func TestOrchestrator_Resume_UnknownSaga(t *testing.T) {
	store := NewMemoryStateStore()

	orch, err := NewOrchestrator("payment",
		[]Step{recordingStep("a", &callRecorder{})},
		store,
	)
	require.NoError(t, err)

	_, err = orch.Resume(context.Background(), models.GenerateUUID())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSagaNotFound)
}

func TestOrchestrator_Resume_UnknownCompletedStepSurfacesError(t *testing.T) {
	store := NewMemoryStateStore()

	orch, err := NewOrchestrator("payment",
		[]Step{recordingStep("a", &callRecorder{})},
		store,
		WithRetryPolicy(fastRetry(1)),
	)
	require.NoError(t, err)

	// A record written by an older saga definition names a step this
	// orchestrator no longer has.
	sc := NewContext()
	_, err = store.Create(context.Background(), "payment", sc)
	require.NoError(t, err)
	snapshot, err := sc.Snapshot()
	require.NoError(t, err)
	errMsg := "boom"
	require.NoError(t, store.Update(context.Background(), sc.SagaID(), Update{
		Status:         StatusCompensating,
		Context:        snapshot,
		CompletedSteps: []string{"a", "legacy_step"},
		Error:          &errMsg,
	}))

	result, err := orch.Resume(context.Background(), sc.SagaID())
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	require.Len(t, result.CompensationErrors, 1)
	assert.Equal(t, "legacy_step", result.CompensationErrors[0].StepName)
}

// failingStore wraps a StateStore and fails writes on demand
type failingStore struct {
	StateStore
	failUpdates bool
}

func (s *failingStore) Update(ctx context.Context, sagaID models.ID, update Update) error {
	if s.failUpdates {
		return errors.New("connection refused")
	}
	return s.StateStore.Update(ctx, sagaID, update)
}

func TestOrchestrator_Run_StateStoreFailureIsFatal(t *testing.T) {
	rec := &callRecorder{}
	store := &failingStore{StateStore: NewMemoryStateStore(), failUpdates: true}

	orch, err := NewOrchestrator("payment",
		[]Step{recordingStep("a", rec)},
		store,
		WithRetryPolicy(fastRetry(1)),
	)
	require.NoError(t, err)

	result, err := orch.Run(context.Background(), NewContext())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Empty(t, rec.Calls())
}
