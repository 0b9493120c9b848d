package saga

import (
	"context"
	"encoding/json"
	"time"

	"github.com/draftea/saga-engine/shared/models"
)

// StateRecord is the persisted state of one saga instance. CompletedSteps is
// append-only during the forward phase and is the authoritative source for
// what must be compensated; during compensation a step is removed once its
// compensation succeeds, so a resumed run never re-compensates an unwound
// step but always re-attempts a failed compensation.
type StateRecord struct {
	SagaID         models.ID       `json:"saga_id"`
	SagaType       string          `json:"saga_type"`
	Status         Status          `json:"status"`
	Context        json.RawMessage `json:"context"`
	CurrentStep    *string         `json:"current_step,omitempty"`
	CompletedSteps []string        `json:"completed_steps"`
	Error          *string         `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Update carries one state transition. Every field is written as-is; the
// orchestrator always supplies the full picture, never a partial diff.
type Update struct {
	Status         Status
	Context        json.RawMessage
	CompletedSteps []string
	CurrentStep    *string
	Error          *string
}

// StateStore persists saga state. Every write must be durable before the
// orchestrator proceeds, so a crash between steps leaves a record accurately
// reflecting what has and has not been compensated. A store failure is fatal
// to the current run. One orchestrator instance owns one in-flight saga, so
// stores need not arbitrate concurrent writers for the same saga ID.
type StateStore interface {
	// Create persists a new record with status pending and returns its ID
	Create(ctx context.Context, sagaType string, sc *Context) (models.ID, error)

	// Update persists a state transition for the given saga
	Update(ctx context.Context, sagaID models.ID, update Update) error

	// Get retrieves the record for the given saga, or ErrSagaNotFound
	Get(ctx context.Context, sagaID models.ID) (*StateRecord, error)

	// ListByStatus retrieves all records in any of the given statuses,
	// used by the startup recovery sweep
	ListByStatus(ctx context.Context, statuses ...Status) ([]*StateRecord, error)
}
