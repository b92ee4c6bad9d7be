// Package sink holds the telemetry consumers fed by the event fanout.
package sink

import (
	"context"
	"log/slog"

	"chat-relay/domain/event"
)

// LogSink writes every relay event to the structured log.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

// Consume implements the EventSink interface.
func (s *LogSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.SessionOpened:
		s.log.Info("Session opened", "session", evt.SessionID, "remote", evt.RemoteAddr)
	case event.SessionClosed:
		s.log.Info("Session closed", "session", evt.SessionID, "nick", evt.Nick, "reason", evt.Reason)
	case event.NickChanged:
		s.log.Info("Nick changed", "session", evt.SessionID, "from", evt.From, "to", evt.To)
	case event.ChannelJoined:
		s.log.Info("Channel joined", "nick", evt.Nick, "channel", evt.Channel)
	case event.ChannelParted:
		s.log.Info("Channel parted", "nick", evt.Nick, "channel", evt.Channel, "reason", evt.Reason)
	case event.MessageRelayed:
		s.log.Debug("Message relayed", "from", evt.From, "target", evt.Target, "censored", evt.Censored)
	case event.KeepaliveTimeout:
		s.log.Warn("Keepalive timeout", "nick", evt.Nick)
	default:
		s.log.Debug("Relay event", "name", e.Name())
	}
	return nil
}
