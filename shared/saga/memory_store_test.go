package saga

import (
	"context"
	"testing"

	"github.com/draftea/saga-engine/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStateStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStateStore()
	sc := NewContext()
	sc.Set("amount", int64(100))

	id, err := store.Create(context.Background(), "payment", sc)
	require.NoError(t, err)
	assert.Equal(t, sc.SagaID(), id)

	record, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "payment", record.SagaType)
	assert.Equal(t, StatusPending, record.Status)
	assert.Empty(t, record.CompletedSteps)
	assert.False(t, record.CreatedAt.IsZero())

	// Creating the same saga twice is a caller bug.
	_, err = store.Create(context.Background(), "payment", sc)
	assert.Error(t, err)
}

func TestMemoryStateStore_Update(t *testing.T) {
	store := NewMemoryStateStore()
	sc := NewContext()

	_, err := store.Create(context.Background(), "payment", sc)
	require.NoError(t, err)

	snapshot, err := sc.Snapshot()
	require.NoError(t, err)
	current := "charge_gateway"
	err = store.Update(context.Background(), sc.SagaID(), Update{
		Status:         StatusInProgress,
		Context:        snapshot,
		CompletedSteps: []string{"reserve_funds"},
		CurrentStep:    &current,
	})
	require.NoError(t, err)

	record, err := store.Get(context.Background(), sc.SagaID())
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, record.Status)
	assert.Equal(t, []string{"reserve_funds"}, record.CompletedSteps)
	require.NotNil(t, record.CurrentStep)
	assert.Equal(t, "charge_gateway", *record.CurrentStep)

	err = store.Update(context.Background(), models.GenerateUUID(), Update{Status: StatusFailed})
	assert.ErrorIs(t, err, ErrSagaNotFound)
}

func TestMemoryStateStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStateStore()
	sc := NewContext()

	_, err := store.Create(context.Background(), "payment", sc)
	require.NoError(t, err)

	first, err := store.Get(context.Background(), sc.SagaID())
	require.NoError(t, err)
	first.CompletedSteps = append(first.CompletedSteps, "tampered")
	first.Status = StatusFailed

	second, err := store.Get(context.Background(), sc.SagaID())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, second.Status)
	assert.Empty(t, second.CompletedSteps)
}

func TestMemoryStateStore_ListByStatus(t *testing.T) {
	store := NewMemoryStateStore()

	mkSaga := func(status Status) models.ID {
		sc := NewContext()
		_, err := store.Create(context.Background(), "payment", sc)
		require.NoError(t, err)
		snapshot, err := sc.Snapshot()
		require.NoError(t, err)
		require.NoError(t, store.Update(context.Background(), sc.SagaID(), Update{
			Status:  status,
			Context: snapshot,
		}))
		return sc.SagaID()
	}

	inProgress := mkSaga(StatusInProgress)
	compensating := mkSaga(StatusCompensating)
	mkSaga(StatusCompleted)

	records, err := store.ListByStatus(context.Background(), StatusInProgress, StatusCompensating)
	require.NoError(t, err)
	require.Len(t, records, 2)

	ids := map[models.ID]bool{}
	for _, record := range records {
		ids[record.SagaID] = true
	}
	assert.True(t, ids[inProgress])
	assert.True(t, ids[compensating])

	records, err = store.ListByStatus(context.Background(), StatusFailed)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMemoryStateStore_GetUnknownSaga(t *testing.T) {
	store := NewMemoryStateStore()
	_, err := store.Get(context.Background(), models.GenerateUUID())
	assert.ErrorIs(t, err, ErrSagaNotFound)
}
