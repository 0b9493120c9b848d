package application

import (
	"context"
	"encoding/json"
	"time"

	"github.com/draftea/saga-engine/shared/models"
	"github.com/draftea/saga-engine/shared/saga"
	"github.com/pkg/errors"
)

// GetSagaQuery represents the query to retrieve a saga
type GetSagaQuery struct {
	SagaID string `json:"saga_id"`
}

// GetSagaResponse represents a saga's persisted state
type GetSagaResponse struct {
	SagaID         string          `json:"saga_id"`
	SagaType       string          `json:"saga_type"`
	Status         string          `json:"status"`
	Context        json.RawMessage `json:"context"`
	CurrentStep    *string         `json:"current_step,omitempty"`
	CompletedSteps []string        `json:"completed_steps"`
	Error          *string         `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// GetSaga reads saga state from the state store
type GetSaga struct {
	store saga.StateStore
}

// NewGetSaga creates a new GetSaga use case
func NewGetSaga(store saga.StateStore) *GetSaga {
	return &GetSaga{store: store}
}

// Execute retrieves the persisted state of one saga
func (uc *GetSaga) Execute(ctx context.Context, query *GetSagaQuery) (*GetSagaResponse, error) {
	sagaID, err := models.NewID(query.SagaID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid saga ID")
	}

	record, err := uc.store.Get(ctx, sagaID)
	if err != nil {
		return nil, err
	}

	return &GetSagaResponse{
		SagaID:         record.SagaID.String(),
		SagaType:       record.SagaType,
		Status:         string(record.Status),
		Context:        record.Context,
		CurrentStep:    record.CurrentStep,
		CompletedSteps: record.CompletedSteps,
		Error:          record.Error,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}, nil
}
