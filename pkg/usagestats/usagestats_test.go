package usagestats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	events []Event
}

func (s *captureSink) Submit(event Event) error {
	s.events = append(s.events, event)
	return nil
}

func TestHandlerEmitStampsIdentity(t *testing.T) {
	sink := &captureSink{}
	h := NewHandler("ctx-123", "https://stats.example.com/v1", sink)

	h.Emit(EventAddDatasource, map[string]interface{}{"kind": "filesystem"})

	require.Len(t, sink.events, 1)
	event := sink.events[0]
	assert.Equal(t, EventAddDatasource, event.Type)
	assert.Equal(t, "ctx-123", event.ContextID)
	assert.Equal(t, "filesystem", event.Payload["kind"])
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Time.IsZero())
}

func TestNilHandlerEmitIsSafe(t *testing.T) {
	var h *Handler
	assert.NotPanics(t, func() { h.Emit(EventContextInit, nil) })
}

func TestNilSinkDefaultsToDrop(t *testing.T) {
	h := NewHandler("ctx", "", nil)
	assert.NotPanics(t, func() { h.Emit(EventContextInit, nil) })
}
