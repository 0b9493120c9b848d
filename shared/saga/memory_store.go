package saga

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/draftea/saga-engine/shared/models"
	"github.com/pkg/errors"
)

// MemoryStateStore keeps saga state in memory. It is meant for tests and
// local runs; production deployments use the Postgres-backed store from
// shared/infrastructure.
type MemoryStateStore struct {
	mu      sync.RWMutex
	records map[models.ID]*StateRecord
}

// NewMemoryStateStore creates an empty in-memory state store
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		records: make(map[models.ID]*StateRecord),
	}
}

// Create persists a new pending record keyed by the context's saga ID
func (s *MemoryStateStore) Create(ctx context.Context, sagaType string, sc *Context) (models.ID, error) {
	snapshot, err := sc.Snapshot()
	if err != nil {
		return "", errors.Wrap(err, "failed to snapshot context")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[sc.SagaID()]; exists {
		return "", errors.Errorf("saga %s already exists", sc.SagaID())
	}

	now := time.Now()
	s.records[sc.SagaID()] = &StateRecord{
		SagaID:         sc.SagaID(),
		SagaType:       sagaType,
		Status:         StatusPending,
		Context:        snapshot,
		CompletedSteps: []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	return sc.SagaID(), nil
}

// Update persists a state transition
func (s *MemoryStateStore) Update(ctx context.Context, sagaID models.ID, update Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[sagaID]
	if !ok {
		return ErrSagaNotFound
	}

	record.Status = update.Status
	record.Context = update.Context
	record.CompletedSteps = append([]string{}, update.CompletedSteps...)
	record.CurrentStep = update.CurrentStep
	record.Error = update.Error
	record.UpdatedAt = time.Now()

	return nil
}

// Get retrieves a copy of the record for the given saga
func (s *MemoryStateStore) Get(ctx context.Context, sagaID models.ID) (*StateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[sagaID]
	if !ok {
		return nil, ErrSagaNotFound
	}

	return cloneRecord(record), nil
}

// ListByStatus retrieves copies of all records in any of the given statuses
func (s *MemoryStateStore) ListByStatus(ctx context.Context, statuses ...Status) ([]*StateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*StateRecord
	for _, record := range s.records {
		for _, status := range statuses {
			if record.Status == status {
				records = append(records, cloneRecord(record))
				break
			}
		}
	}

	return records, nil
}

func cloneRecord(record *StateRecord) *StateRecord {
	clone := *record
	clone.Context = append(json.RawMessage{}, record.Context...)
	clone.CompletedSteps = append([]string{}, record.CompletedSteps...)
	if record.CurrentStep != nil {
		step := *record.CurrentStep
		clone.CurrentStep = &step
	}
	if record.Error != nil {
		msg := *record.Error
		clone.Error = &msg
	}
	return &clone
}
