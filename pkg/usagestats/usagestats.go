// Package usagestats implements the anonymous usage statistics handler owned
// by the runtime context. Events carry the stable context id and an event
// payload; transmission is delegated to a pluggable Sink, and the default
// sink drops events, so nothing leaves the process unless the embedding
// application wires in a transport.
package usagestats

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verityhq/verity/pkg/logger"
	"github.com/verityhq/verity/pkg/metrics"
)

// Event types emitted by the runtime context.
const (
	EventContextInit      = "data_context.__init__"
	EventAddDatasource    = "data_context.add_datasource"
	EventDeleteDatasource = "data_context.delete_datasource"
	EventBuildStore       = "data_context.build_store"
)

// Event is a single usage statistics record.
type Event struct {
	ID        string                 `json:"event_id"`
	Type      string                 `json:"event"`
	ContextID string                 `json:"data_context_id"`
	Time      time.Time              `json:"event_time"`
	Payload   map[string]interface{} `json:"event_payload,omitempty"`
}

// Sink receives events for transmission or storage. Submit failures are
// logged and never surfaced to the operation that emitted the event.
type Sink interface {
	Submit(event Event) error
}

// DropSink discards every event. It is the default sink.
type DropSink struct{}

// Submit discards the event.
func (DropSink) Submit(Event) error { return nil }

// Handler tags events with the context identity and hands them to the sink.
type Handler struct {
	contextID string
	url       string
	sink      Sink
	logger    *zap.Logger
}

// NewHandler creates a handler for the given context identity and endpoint
// URL. A nil sink defaults to DropSink.
func NewHandler(contextID, url string, sink Sink) *Handler {
	if sink == nil {
		sink = DropSink{}
	}
	return &Handler{
		contextID: contextID,
		url:       url,
		sink:      sink,
		logger: logger.Get().With(
			zap.String("component", "usage_statistics"),
			zap.String("data_context_id", contextID)),
	}
}

// ContextID returns the context identity the handler stamps onto events.
func (h *Handler) ContextID() string { return h.contextID }

// URL returns the configured statistics endpoint.
func (h *Handler) URL() string { return h.url }

// Emit records an event and hands it to the sink. Safe to call on a nil
// handler, which is how a disabled usage statistics subsystem is represented.
func (h *Handler) Emit(eventType string, payload map[string]interface{}) {
	if h == nil {
		return
	}

	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ContextID: h.contextID,
		Time:      time.Now().UTC(),
		Payload:   payload,
	}
	metrics.UsageEventsEmitted.WithLabelValues(eventType).Inc()

	if err := h.sink.Submit(event); err != nil {
		h.logger.Warn("failed to submit usage statistics event",
			zap.String("event", eventType), zap.Error(err))
	}
}
