package events

import (
	"encoding/json"
	"testing"

	"github.com/draftea/saga-engine/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic_Matches(t *testing.T) {
	tests := []struct {
		topic   string
		pattern string
		matches bool
	}{
		{"saga.completed", "saga.completed", true},
		{"saga.completed", "saga.*", true},
		{"saga.completed", "*.completed", true},
		{"saga.completed", "#", true},
		{"payment.refund.initiated", "payment.*", false},
		{"payment.refund.initiated", "payment.*.initiated", true},
		{"saga.completed", "saga.failed", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic+" vs "+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.matches, Topic(tt.topic).Matches(Topic(tt.pattern)))
		})
	}
}

func TestNewTopic_RejectsEmpty(t *testing.T) {
	_, err := NewTopic("")
	assert.ErrorIs(t, err, ErrInvalidTopic)
}

func TestEvent_PayloadRoundTrip(t *testing.T) {
	type payload struct {
		PaymentID string `json:"payment_id"`
		Amount    int64  `json:"amount"`
	}

	event := NewEvent(models.GenerateUUID(), SagaCompletedEvent, payload{
		PaymentID: "p-1",
		Amount:    5000,
	}).WithCorrelationID(models.GenerateUUID()).
		WithMetadata("source", "orchestrator")

	raw, err := event.ToJSON()
	require.NoError(t, err)

	decoded, err := FromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, SagaCompletedEvent, decoded.EventType)
	assert.Equal(t, event.CorrelationID, decoded.CorrelationID)

	var got payload
	require.NoError(t, decoded.UnmarshalPayload(&got))
	assert.Equal(t, "p-1", got.PaymentID)
	assert.Equal(t, int64(5000), got.Amount)
}

func TestEvent_MarshalPayload_RawBytes(t *testing.T) {
	event := NewEvent(models.GenerateUUID(), SagaFailedEvent, json.RawMessage(`{"reason":"boom"}`))

	raw, err := event.MarshalPayload()
	require.NoError(t, err)
	assert.JSONEq(t, `{"reason":"boom"}`, string(raw))
}
