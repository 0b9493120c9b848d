package saga

import (
	"context"
	"time"

	"github.com/draftea/saga-engine/shared/events"
	"github.com/draftea/saga-engine/shared/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MetricsRecorder receives execution metrics from the orchestrator.
// telemetry.SagaMetrics satisfies it; a nil recorder disables recording.
type MetricsRecorder interface {
	SagaFinished(ctx context.Context, sagaType string, status Status, duration time.Duration)
	StepExecuted(ctx context.Context, sagaType, step string, success bool, duration time.Duration)
	CompensationExecuted(ctx context.Context, sagaType, step string, success bool)
}

// Orchestrator drives one saga type: a fixed, ordered list of steps executed
// sequentially, each wrapped in the retry policy, with progress persisted to
// the state store after every transition. On the first unrecoverable step
// failure it compensates every completed step in reverse completion order.
//
// An orchestrator is safe to share between goroutines running independent
// saga instances: all per-run state lives in the Context and StateRecord.
type Orchestrator struct {
	name      string
	steps     []Step
	stepIndex map[string]Step
	store     StateStore
	retry     RetryPolicy
	logger    *zap.Logger
	publisher events.Publisher
	metrics   MetricsRecorder
	timeout   time.Duration
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithRetryPolicy overrides the default retry policy for forward actions
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(o *Orchestrator) {
		o.retry = policy
	}
}

// WithLogger sets the logger. The orchestrator never logs through package
// globals; pass the capability explicitly.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithPublisher enables best-effort lifecycle event publishing
// (saga.started, saga.completed, saga.compensated, saga.failed)
func WithPublisher(publisher events.Publisher) Option {
	return func(o *Orchestrator) {
		o.publisher = publisher
	}
}

// WithMetrics enables execution metrics recording
func WithMetrics(metrics MetricsRecorder) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

// WithTimeout bounds the wall-clock budget of the forward phase of one run.
// When the budget expires, the attempt in flight fails at its next context
// check and compensation begins. Compensation is never cut off by the budget.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = timeout
	}
}

// NewOrchestrator builds an orchestrator for the named saga type over the
// given ordered steps
func NewOrchestrator(name string, steps []Step, store StateStore, opts ...Option) (*Orchestrator, error) {
	if name == "" {
		return nil, errors.New("saga name is required")
	}
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	if store == nil {
		return nil, ErrNilStateStore
	}

	stepIndex := make(map[string]Step, len(steps))
	for _, step := range steps {
		if step.Name() == "" {
			return nil, errors.New("step name is required")
		}
		if _, exists := stepIndex[step.Name()]; exists {
			return nil, errors.Wrapf(ErrDuplicateStep, "step %q", step.Name())
		}
		stepIndex[step.Name()] = step
	}

	o := &Orchestrator{
		name:      name,
		steps:     steps,
		stepIndex: stepIndex,
		store:     store,
		retry:     DefaultRetryPolicy(),
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// Name returns the saga type this orchestrator drives
func (o *Orchestrator) Name() string {
	return o.name
}

// Run executes the saga for the given context. It always returns a Result
// with a terminal status; the error return is reserved for infrastructure
// failures (state store unreachable, context not serializable) after which
// no durable progress can be guaranteed.
func (o *Orchestrator) Run(ctx context.Context, sc *Context) (*Result, error) {
	if _, err := o.store.Create(ctx, o.name, sc); err != nil {
		return nil, errors.Wrap(err, "failed to create saga record")
	}

	o.logger.Info("saga started",
		zap.String("saga", o.name),
		zap.String("saga_id", sc.SagaID().String()),
		zap.String("correlation_id", sc.CorrelationID().String()),
	)
	o.publish(ctx, sc, events.SagaStartedEvent, nil, nil)

	return o.runForward(ctx, sc, nil)
}

// Resume continues a saga found in the state store after a crash. It
// restores the context from the persisted snapshot and picks up where the
// record left off: forward execution for pending and in-progress sagas,
// compensation of the not-yet-unwound tail for compensating ones. Terminal
// sagas return their recorded outcome without executing anything.
func (o *Orchestrator) Resume(ctx context.Context, sagaID models.ID) (*Result, error) {
	record, err := o.store.Get(ctx, sagaID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load saga record")
	}
	if record.SagaType != o.name {
		return nil, errors.Errorf("saga %s has type %q, orchestrator drives %q", sagaID, record.SagaType, o.name)
	}

	sc, err := RestoreContext(record.Context)
	if err != nil {
		return nil, errors.Wrap(err, "failed to restore saga context")
	}

	if record.Status.IsTerminal() {
		result := &Result{
			SagaID:  sagaID,
			Status:  record.Status,
			Context: sc,
		}
		if record.Error != nil {
			result.Err = errors.New(*record.Error)
		}
		return result, nil
	}

	o.logger.Info("resuming saga",
		zap.String("saga", o.name),
		zap.String("saga_id", sagaID.String()),
		zap.String("status", string(record.Status)),
		zap.Strings("completed_steps", record.CompletedSteps),
	)

	if record.Status == StatusCompensating {
		var causalErr error
		if record.Error != nil {
			causalErr = errors.New(*record.Error)
		}
		return o.compensate(ctx, sc, record.CompletedSteps, causalErr)
	}

	return o.runForward(ctx, sc, record.CompletedSteps)
}

// runForward drives the forward phase starting after the already-completed
// steps, then hands off to compensation on the first exhausted failure.
func (o *Orchestrator) runForward(ctx context.Context, sc *Context, completed []string) (*Result, error) {
	start := time.Now()

	forwardCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		forwardCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	completedSet := make(map[string]struct{}, len(completed))
	for _, name := range completed {
		completedSet[name] = struct{}{}
	}

	if err := o.persist(ctx, sc, Update{
		Status:         StatusInProgress,
		CompletedSteps: completed,
	}); err != nil {
		return nil, err
	}

	for _, step := range o.steps {
		if _, done := completedSet[step.Name()]; done {
			continue
		}

		if skippable, ok := step.(Skippable); ok && skippable.ShouldSkip(sc) {
			o.logger.Debug("step skipped",
				zap.String("saga", o.name),
				zap.String("saga_id", sc.SagaID().String()),
				zap.String("step", step.Name()),
			)
			continue
		}

		current := step.Name()
		if err := o.persist(ctx, sc, Update{
			Status:         StatusInProgress,
			CompletedSteps: completed,
			CurrentStep:    &current,
		}); err != nil {
			return nil, err
		}

		stepStart := time.Now()
		attempts := 0
		err := o.retry.Execute(forwardCtx, func(attemptCtx context.Context) error {
			attempts++
			return step.Execute(attemptCtx, sc)
		})
		if o.metrics != nil {
			o.metrics.StepExecuted(ctx, o.name, step.Name(), err == nil, time.Since(stepStart))
		}

		if err != nil {
			stepErr := &StepError{StepName: step.Name(), Attempts: attempts, Err: err}
			o.logger.Error("step failed, compensating",
				zap.String("saga", o.name),
				zap.String("saga_id", sc.SagaID().String()),
				zap.String("step", step.Name()),
				zap.Int("attempts", attempts),
				zap.Error(err),
			)

			result, compErr := o.compensate(ctx, sc, completed, stepErr)
			if compErr != nil {
				return nil, compErr
			}
			if o.metrics != nil {
				o.metrics.SagaFinished(ctx, o.name, result.Status, time.Since(start))
			}
			return result, nil
		}

		completed = append(completed, step.Name())
		if err := o.persist(ctx, sc, Update{
			Status:         StatusInProgress,
			CompletedSteps: completed,
		}); err != nil {
			return nil, err
		}

		o.logger.Debug("step completed",
			zap.String("saga", o.name),
			zap.String("saga_id", sc.SagaID().String()),
			zap.String("step", step.Name()),
			zap.Int("attempts", attempts),
		)
	}

	if err := o.persist(ctx, sc, Update{
		Status:         StatusCompleted,
		CompletedSteps: completed,
	}); err != nil {
		return nil, err
	}

	o.logger.Info("saga completed",
		zap.String("saga", o.name),
		zap.String("saga_id", sc.SagaID().String()),
		zap.Duration("duration", time.Since(start)),
	)
	o.publish(ctx, sc, events.SagaCompletedEvent, completed, nil)
	if o.metrics != nil {
		o.metrics.SagaFinished(ctx, o.name, StatusCompleted, time.Since(start))
	}

	return &Result{
		SagaID:  sc.SagaID(),
		Status:  StatusCompleted,
		Context: sc,
	}, nil
}

// compensate unwinds the completed steps in reverse completion order. A
// failed compensation is recorded and escalates the final status to failed,
// but never blocks rollback of the remaining steps. The persisted
// completed_steps shrink only as steps are successfully unwound; a step
// whose compensation failed stays in the list, so a crash mid-rollback
// resumes with exactly the steps still owing compensation and re-attempts
// the failed ones (compensations are idempotent).
//
// Compensation runs detached from the caller's cancellation: once rollback
// begins it must reach a terminal state even if the caller gave up.
func (o *Orchestrator) compensate(ctx context.Context, sc *Context, completed []string, causalErr error) (*Result, error) {
	compCtx := context.WithoutCancel(ctx)

	var errMsg *string
	if causalErr != nil {
		msg := causalErr.Error()
		errMsg = &msg
	}

	if err := o.persist(compCtx, sc, Update{
		Status:         StatusCompensating,
		CompletedSteps: completed,
		Error:          errMsg,
	}); err != nil {
		return nil, err
	}

	var compensationErrors []CompensationError
	// Steps whose compensation failed, in completion order. They stay in
	// every persisted step list so a resumed rollback re-attempts them.
	var failed []string
	for i := len(completed) - 1; i >= 0; i-- {
		name := completed[i]
		current := name

		if err := o.persist(compCtx, sc, Update{
			Status:         StatusCompensating,
			CompletedSteps: append(append([]string{}, completed[:i+1]...), failed...),
			CurrentStep:    &current,
			Error:          errMsg,
		}); err != nil {
			return nil, err
		}

		var compErr error
		step, ok := o.stepIndex[name]
		if !ok {
			// Recorded by an older saga definition. Nothing we can run;
			// surface it for manual intervention.
			compErr = errors.Errorf("step %q is not part of saga %q", name, o.name)
		} else {
			compErr = step.Compensate(compCtx, sc)
		}

		if compErr != nil {
			compensationErrors = append(compensationErrors, CompensationError{StepName: name, Err: compErr})
			failed = append([]string{name}, failed...)
			o.logger.Error("compensation failed, manual intervention required",
				zap.String("saga", o.name),
				zap.String("saga_id", sc.SagaID().String()),
				zap.String("step", name),
				zap.Error(compErr),
			)
		}

		if o.metrics != nil {
			o.metrics.CompensationExecuted(compCtx, o.name, name, compErr == nil)
		}

		if err := o.persist(compCtx, sc, Update{
			Status:         StatusCompensating,
			CompletedSteps: append(append([]string{}, completed[:i]...), failed...),
			Error:          errMsg,
		}); err != nil {
			return nil, err
		}
	}

	status := StatusCompensated
	eventType := events.SagaCompensatedEvent
	if len(compensationErrors) > 0 {
		status = StatusFailed
		eventType = events.SagaFailedEvent
	}

	// A failed record keeps the un-rolled-back steps for the operator.
	if err := o.persist(compCtx, sc, Update{
		Status:         status,
		CompletedSteps: failed,
		Error:          errMsg,
	}); err != nil {
		return nil, err
	}

	o.logger.Info("saga rolled back",
		zap.String("saga", o.name),
		zap.String("saga_id", sc.SagaID().String()),
		zap.String("status", string(status)),
		zap.Int("failed_compensations", len(compensationErrors)),
	)
	o.publish(compCtx, sc, eventType, nil, causalErr)

	return &Result{
		SagaID:             sc.SagaID(),
		Status:             status,
		Context:            sc,
		Err:                causalErr,
		CompensationErrors: compensationErrors,
	}, nil
}

// persist snapshots the context and writes one state transition. Failures
// here are fatal to the run: continuing without durable state would break
// the crash-recovery contract.
func (o *Orchestrator) persist(ctx context.Context, sc *Context, update Update) error {
	snapshot, err := sc.Snapshot()
	if err != nil {
		return errors.Wrap(err, "failed to snapshot context")
	}
	update.Context = snapshot

	if update.CompletedSteps == nil {
		update.CompletedSteps = []string{}
	}

	if err := o.store.Update(ctx, sc.SagaID(), update); err != nil {
		return errors.Wrap(err, "failed to persist saga state")
	}

	return nil
}

// publish emits a lifecycle event. Publishing is best effort: a broker
// outage must not change the outcome of a saga.
func (o *Orchestrator) publish(ctx context.Context, sc *Context, eventType string, completed []string, causalErr error) {
	if o.publisher == nil {
		return
	}

	data := map[string]interface{}{
		"saga_id":   sc.SagaID().String(),
		"saga_type": o.name,
	}
	if len(completed) > 0 {
		data["completed_steps"] = completed
	}
	if causalErr != nil {
		data["error"] = causalErr.Error()
	}

	event := events.NewEvent(sc.SagaID(), eventType, data).
		WithCorrelationID(sc.CorrelationID())

	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.Warn("failed to publish saga lifecycle event",
			zap.String("saga", o.name),
			zap.String("saga_id", sc.SagaID().String()),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
