package workers

import (
	"context"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain/event"
)

// EventFanout broadcasts relay telemetry events to in-process sinks.
//
// Delivery is best effort with no ordering or durability guarantees;
// this is observability plumbing, never part of the relay semantics.
// A failing sink is logged and skipped so the others still see the
// event.
type EventFanout struct {
	Log       *slog.Logger
	Telemetry chan event.DomainEvent
	sinks     []contract.EventSink
}

func NewEventFanout(log *slog.Logger, telemetry chan event.DomainEvent) *EventFanout {
	return &EventFanout{Log: log, Telemetry: telemetry}
}

func (w *EventFanout) Add(sinks ...contract.EventSink) *EventFanout {
	w.sinks = append(w.sinks, sinks...)
	return w
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.Telemetry:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.Log.Debug("Context done, stopping telemetry fanout")
			return nil
		}
	}
}

// Fanout delivers one event to every sink.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.sinks {
		if err := sink.Consume(ctx, evt); err != nil {
			w.Log.Warn("Telemetry sink failed", "event", evt.Name(), "error", err)
		}
	}
}
