package events

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Aincrad-Flux/TWIN/internal/metrics"
	"github.com/Aincrad-Flux/TWIN/internal/model"
)

// Handler acts on one decoded event. A returned error surfaces as a 500 to Jira.
type Handler func(ctx context.Context, ev Event) error

// Dispatcher holds the eventType -> handler table. It keeps no per-call state.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType]Handler
	log      zerolog.Logger
}

func NewDispatcher(log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[EventType]Handler),
		log:      log,
	}
}

// Register sets the handler for t, replacing any previous one.
func (d *Dispatcher) Register(t EventType, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = h
}

// Registered returns the event types that have a handler, sorted.
func (d *Dispatcher) Registered() []EventType {
	d.mu.RLock()
	defer d.mu.RUnlock()
	types := make([]EventType, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Dispatch invokes the handler registered for webhookEvent. Types without a
// handler are logged at debug level and return nil. A registered type without
// a dedicated variant receives an OtherEvent.
func (d *Dispatcher) Dispatch(ctx context.Context, webhookEvent string, payload *model.JiraPayload) error {
	t := Normalize(webhookEvent)
	label := metricLabel(t)

	d.mu.RLock()
	h, registered := d.handlers[t]
	d.mu.RUnlock()

	if !registered {
		metrics.EventsDispatched.WithLabelValues(label, "ignored").Inc()
		d.log.Debug().Str("event_type", string(t)).Msg("no handler for event type")
		return nil
	}

	ev, ok := Decode(t, payload)
	if !ok {
		ev = OtherEvent{Name: t, Payload: payload}
	}

	if err := h(ctx, ev); err != nil {
		metrics.EventsDispatched.WithLabelValues(label, "failed").Inc()
		return fmt.Errorf("handle %s: %w", t, err)
	}
	metrics.EventsDispatched.WithLabelValues(label, "handled").Inc()
	return nil
}

// metricLabel keeps arbitrary event names out of the label set.
func metricLabel(t EventType) string {
	if _, ok := decoders[t]; ok {
		return string(t)
	}
	return "other"
}
