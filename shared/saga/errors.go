package saga

import (
	"errors"
	"fmt"
)

var (
	ErrNoSteps       = errors.New("saga requires at least one step")
	ErrNilStateStore = errors.New("state store is required")
	ErrDuplicateStep = errors.New("step names must be unique")
	ErrSagaNotFound  = errors.New("saga not found")
)

// StepError is the unrecoverable forward failure that triggered
// compensation, recorded after the retry policy was exhausted.
type StepError struct {
	StepName string
	Attempts int
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed after %d attempt(s): %v", e.StepName, e.Attempts, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// CompensationError records a compensating action that failed and
// requires manual intervention. It never blocks remaining compensations.
type CompensationError struct {
	StepName string
	Err      error
}

func (e CompensationError) Error() string {
	return fmt.Sprintf("compensation for step %q failed: %v", e.StepName, e.Err)
}

func (e CompensationError) Unwrap() error {
	return e.Err
}
