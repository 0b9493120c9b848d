package saga

import (
	"bytes"
	"encoding/json"

	"github.com/draftea/saga-engine/shared/models"
	"github.com/pkg/errors"
)

var (
	ErrCorruptSnapshot = errors.New("corrupt context snapshot")
)

// Context is the mutable, serializable state bag threaded through all steps
// of one saga run. Forward actions write results into it so later steps can
// consume them; compensation reads whatever the last successful forward step
// left behind and must not write. Payload keys keep insertion order, so a
// snapshot restores to an identical context.
//
// A Context belongs to a single saga instance and is never shared between
// concurrently running sagas, so access is not synchronized.
type Context struct {
	sagaID        models.ID
	correlationID models.ID
	keys          []string
	values        map[string]interface{}
}

// NewContext creates a context with a generated saga ID
func NewContext() *Context {
	return &Context{
		sagaID: models.GenerateUUID(),
		values: make(map[string]interface{}),
	}
}

// WithCorrelationID sets the caller-supplied correlation ID used for
// tracing across collaborators
func (c *Context) WithCorrelationID(id models.ID) *Context {
	c.correlationID = id
	return c
}

// SagaID returns the unique ID of the saga instance
func (c *Context) SagaID() models.ID {
	return c.sagaID
}

// CorrelationID returns the caller-supplied correlation ID
func (c *Context) CorrelationID() models.ID {
	return c.correlationID
}

// Get returns the value stored under key
func (c *Context) Get(key string) (interface{}, bool) {
	v, ok := c.values[key]
	return v, ok
}

// GetString returns the value under key when it is a string
func (c *Context) GetString(key string) (string, bool) {
	v, ok := c.values[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set stores a value under key. A new key is appended to the ordering;
// writing an existing key overwrites the value in place.
func (c *Context) Set(key string, value interface{}) {
	if _, exists := c.values[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

// Keys returns the payload keys in insertion order
func (c *Context) Keys() []string {
	keys := make([]string, len(c.keys))
	copy(keys, c.keys)
	return keys
}

type snapshotEnvelope struct {
	SagaID        string          `json:"saga_id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Snapshot serializes the context, preserving payload key order. A snapshot
// that cannot be produced is a fatal engine error: a corrupt context cannot
// safely continue.
func (c *Context) Snapshot() (json.RawMessage, error) {
	var payload bytes.Buffer
	payload.WriteByte('{')
	for i, key := range c.keys {
		if i > 0 {
			payload.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal context key %q", key)
		}
		v, err := json.Marshal(c.values[key])
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal context value for key %q", key)
		}
		payload.Write(k)
		payload.WriteByte(':')
		payload.Write(v)
	}
	payload.WriteByte('}')

	snapshot, err := json.Marshal(snapshotEnvelope{
		SagaID:        c.sagaID.String(),
		CorrelationID: c.correlationID.String(),
		Payload:       payload.Bytes(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal context snapshot")
	}

	return snapshot, nil
}

// RestoreContext rebuilds a context from a snapshot, preserving payload key
// order. Values round-trip through JSON, so numbers come back as json.Number
// and nested objects as map[string]interface{}.
func RestoreContext(snapshot json.RawMessage) (*Context, error) {
	var envelope snapshotEnvelope
	if err := json.Unmarshal(snapshot, &envelope); err != nil {
		return nil, errors.Wrap(ErrCorruptSnapshot, err.Error())
	}

	sagaID, err := models.NewID(envelope.SagaID)
	if err != nil {
		return nil, errors.Wrap(ErrCorruptSnapshot, "invalid saga ID")
	}

	c := &Context{
		sagaID: sagaID,
		values: make(map[string]interface{}),
	}
	if envelope.CorrelationID != "" {
		c.correlationID = models.ID(envelope.CorrelationID)
	}

	dec := json.NewDecoder(bytes.NewReader(envelope.Payload))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(ErrCorruptSnapshot, err.Error())
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.Wrap(ErrCorruptSnapshot, "payload is not a JSON object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(ErrCorruptSnapshot, err.Error())
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, errors.Wrap(ErrCorruptSnapshot, "payload key is not a string")
		}

		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return nil, errors.Wrap(ErrCorruptSnapshot, err.Error())
		}
		c.Set(key, value)
	}

	return c, nil
}
