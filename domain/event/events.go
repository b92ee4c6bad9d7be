// Package event defines the domain events the relay core emits for
// telemetry sinks. Events are best-effort observability signals, never
// part of the wire protocol.
package event

import "time"

type DomainEvent interface {
	Name() string
	OccurredAt() time.Time
}

type SessionOpened struct {
	SessionID  string
	RemoteAddr string
	At         time.Time
}

func (e SessionOpened) Name() string          { return "SessionOpened" }
func (e SessionOpened) OccurredAt() time.Time { return e.At }

type SessionClosed struct {
	SessionID string
	Nick      string
	Reason    string
	At        time.Time
}

func (e SessionClosed) Name() string          { return "SessionClosed" }
func (e SessionClosed) OccurredAt() time.Time { return e.At }

type NickChanged struct {
	SessionID string
	From      string
	To        string
	At        time.Time
}

func (e NickChanged) Name() string          { return "NickChanged" }
func (e NickChanged) OccurredAt() time.Time { return e.At }

type ChannelJoined struct {
	Nick    string
	Channel string
	At      time.Time
}

func (e ChannelJoined) Name() string          { return "ChannelJoined" }
func (e ChannelJoined) OccurredAt() time.Time { return e.At }

type ChannelParted struct {
	Nick    string
	Channel string
	Reason  string
	At      time.Time
}

func (e ChannelParted) Name() string          { return "ChannelParted" }
func (e ChannelParted) OccurredAt() time.Time { return e.At }

type MessageRelayed struct {
	From     string
	Target   string
	Censored bool
	At       time.Time
}

func (e MessageRelayed) Name() string          { return "MessageRelayed" }
func (e MessageRelayed) OccurredAt() time.Time { return e.At }

type KeepaliveTimeout struct {
	Nick string
	At   time.Time
}

func (e KeepaliveTimeout) Name() string          { return "KeepaliveTimeout" }
func (e KeepaliveTimeout) OccurredAt() time.Time { return e.At }
