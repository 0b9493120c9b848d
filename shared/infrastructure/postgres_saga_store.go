package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/draftea/saga-engine/shared/models"
	"github.com/draftea/saga-engine/shared/saga"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// PostgresStateStore implements saga.StateStore using PostgreSQL. Every
// transition is written synchronously; the orchestrator relies on the write
// being durable before it executes the next step.
//
// Schema (see migrations/001_saga_state.sql):
//
//	CREATE TABLE saga_state (
//	    saga_id         UUID PRIMARY KEY,
//	    saga_type       TEXT NOT NULL,
//	    status          TEXT NOT NULL,
//	    context         JSONB NOT NULL,
//	    current_step    TEXT,
//	    completed_steps JSONB NOT NULL,
//	    error           TEXT,
//	    created_at      TIMESTAMPTZ NOT NULL,
//	    updated_at      TIMESTAMPTZ NOT NULL
//	);
type PostgresStateStore struct {
	db *sqlx.DB
}

// NewPostgresStateStore creates a new PostgresStateStore
func NewPostgresStateStore(db *sqlx.DB) *PostgresStateStore {
	return &PostgresStateStore{db: db}
}

// postgresSagaState represents saga state in the database
type postgresSagaState struct {
	SagaID         string         `db:"saga_id"`
	SagaType       string         `db:"saga_type"`
	Status         string         `db:"status"`
	Context        []byte         `db:"context"`
	CurrentStep    sql.NullString `db:"current_step"`
	CompletedSteps []byte         `db:"completed_steps"`
	Error          sql.NullString `db:"error"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

// Create persists a new pending record keyed by the context's saga ID
func (s *PostgresStateStore) Create(ctx context.Context, sagaType string, sc *saga.Context) (models.ID, error) {
	snapshot, err := sc.Snapshot()
	if err != nil {
		return "", errors.Wrap(err, "failed to snapshot context")
	}

	now := time.Now()
	query := `
		INSERT INTO saga_state (
			saga_id, saga_type, status, context, completed_steps,
			created_at, updated_at
		) VALUES (
			:saga_id, :saga_type, :status, :context, :completed_steps,
			:created_at, :updated_at
		)`

	_, err = s.db.NamedExecContext(ctx, query, &postgresSagaState{
		SagaID:         sc.SagaID().String(),
		SagaType:       sagaType,
		Status:         string(saga.StatusPending),
		Context:        snapshot,
		CompletedSteps: []byte("[]"),
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to insert saga state")
	}

	return sc.SagaID(), nil
}

// Update persists a state transition
func (s *PostgresStateStore) Update(ctx context.Context, sagaID models.ID, update saga.Update) error {
	completedSteps, err := json.Marshal(update.CompletedSteps)
	if err != nil {
		return errors.Wrap(err, "failed to marshal completed steps")
	}

	query := `
		UPDATE saga_state
		SET status = :status, context = :context, current_step = :current_step,
		    completed_steps = :completed_steps, error = :error, updated_at = :updated_at
		WHERE saga_id = :saga_id`

	result, err := s.db.NamedExecContext(ctx, query, &postgresSagaState{
		SagaID:         sagaID.String(),
		Status:         string(update.Status),
		Context:        update.Context,
		CurrentStep:    toNullString(update.CurrentStep),
		CompletedSteps: completedSteps,
		Error:          toNullString(update.Error),
		UpdatedAt:      time.Now(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to update saga state")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if rows == 0 {
		return saga.ErrSagaNotFound
	}

	return nil
}

// Get retrieves the record for the given saga
func (s *PostgresStateStore) Get(ctx context.Context, sagaID models.ID) (*saga.StateRecord, error) {
	query := `
		SELECT saga_id, saga_type, status, context, current_step,
		       completed_steps, error, created_at, updated_at
		FROM saga_state
		WHERE saga_id = $1`

	var row postgresSagaState
	err := s.db.GetContext(ctx, &row, query, sagaID.String())
	if err == sql.ErrNoRows {
		return nil, saga.ErrSagaNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get saga state")
	}

	return s.toDomain(&row)
}

// ListByStatus retrieves all records in any of the given statuses
func (s *PostgresStateStore) ListByStatus(ctx context.Context, statuses ...saga.Status) ([]*saga.StateRecord, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	values := make([]string, len(statuses))
	for i, status := range statuses {
		values[i] = string(status)
	}

	query := `
		SELECT saga_id, saga_type, status, context, current_step,
		       completed_steps, error, created_at, updated_at
		FROM saga_state
		WHERE status = ANY($1)
		ORDER BY created_at ASC`

	var rows []postgresSagaState
	if err := s.db.SelectContext(ctx, &rows, query, pq.Array(values)); err != nil {
		return nil, errors.Wrap(err, "failed to list saga state")
	}

	records := make([]*saga.StateRecord, len(rows))
	for i := range rows {
		record, err := s.toDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		records[i] = record
	}

	return records, nil
}

// toDomain converts a database row to a state record
func (s *PostgresStateStore) toDomain(row *postgresSagaState) (*saga.StateRecord, error) {
	sagaID, err := models.NewID(row.SagaID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid saga ID")
	}

	var completedSteps []string
	if err := json.Unmarshal(row.CompletedSteps, &completedSteps); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal completed steps")
	}
	if completedSteps == nil {
		completedSteps = []string{}
	}

	record := &saga.StateRecord{
		SagaID:         sagaID,
		SagaType:       row.SagaType,
		Status:         saga.Status(row.Status),
		Context:        row.Context,
		CompletedSteps: completedSteps,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if row.CurrentStep.Valid {
		step := row.CurrentStep.String
		record.CurrentStep = &step
	}
	if row.Error.Valid {
		msg := row.Error.String
		record.Error = &msg
	}

	return record, nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
