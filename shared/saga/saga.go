package saga

import (
	"context"

	"github.com/draftea/saga-engine/shared/models"
)

// Status represents the status of a saga instance
type Status string

const (
	StatusPending      Status = "pending"
	StatusInProgress   Status = "in_progress"
	StatusCompleted    Status = "completed"
	StatusCompensating Status = "compensating"
	StatusCompensated  Status = "compensated"
	StatusFailed       Status = "failed"
)

// IsTerminal reports whether the saga reached a final state
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCompensated || s == StatusFailed
}

// IsActive reports whether the saga still has pending side effects
// and requires resumption after a crash
func (s Status) IsActive() bool {
	return s == StatusInProgress || s == StatusCompensating
}

// Step is a named unit of work with a forward action and a compensating
// action. Both actions must be idempotent: retries and resumed-after-crash
// runs may invoke them more than once. Steps hold no per-run state; all
// instance-specific data lives in the Context.
type Step interface {
	Name() string
	Execute(ctx context.Context, sc *Context) error
	Compensate(ctx context.Context, sc *Context) error
}

// Skippable is optionally implemented by steps that can be omitted for a
// given context. Skipped steps are never executed and never compensated.
type Skippable interface {
	ShouldSkip(sc *Context) bool
}

// ActionFunc is a forward or compensating step action
type ActionFunc func(ctx context.Context, sc *Context) error

// PredicateFunc decides whether a step should be skipped
type PredicateFunc func(sc *Context) bool

type funcStep struct {
	name       string
	execute    ActionFunc
	compensate ActionFunc
	skip       PredicateFunc
}

// StepOption configures a step built with NewStep
type StepOption func(*funcStep)

// WithCompensation sets the compensating action for the step
func WithCompensation(fn ActionFunc) StepOption {
	return func(s *funcStep) {
		s.compensate = fn
	}
}

// WithSkipPredicate sets the skip predicate for the step
func WithSkipPredicate(fn PredicateFunc) StepOption {
	return func(s *funcStep) {
		s.skip = fn
	}
}

// NewStep builds a step from a forward action. A step always carries a
// compensating action: when WithCompensation is not supplied the
// compensation is an explicit no-op.
func NewStep(name string, execute ActionFunc, opts ...StepOption) Step {
	s := &funcStep{
		name:    name,
		execute: execute,
		compensate: func(ctx context.Context, sc *Context) error {
			return nil
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *funcStep) Name() string {
	return s.name
}

func (s *funcStep) Execute(ctx context.Context, sc *Context) error {
	return s.execute(ctx, sc)
}

func (s *funcStep) Compensate(ctx context.Context, sc *Context) error {
	return s.compensate(ctx, sc)
}

func (s *funcStep) ShouldSkip(sc *Context) bool {
	if s.skip == nil {
		return false
	}
	return s.skip(sc)
}

// Result is the outcome of one saga run. Status is always terminal. Err
// carries the step error that triggered compensation (nil when the saga
// completed). CompensationErrors lists every compensation that failed and
// requires manual intervention.
type Result struct {
	SagaID             models.ID
	Status             Status
	Context            *Context
	Err                error
	CompensationErrors []CompensationError
}
