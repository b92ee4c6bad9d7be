// Package observability aggregates relay activity counters for logs
// and the debug endpoint. Counters are atomic so reader/writer
// goroutines can report without touching the relay engine.
package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// RelayStats is one snapshot of the relay's activity.
type RelayStats struct {
	UptimeSeconds     int64  `json:"uptime_seconds"`
	Participants      int    `json:"participants"`
	Channels          int    `json:"channels"`
	ConnectionsOpened uint64 `json:"connections_opened"`
	ConnectionsClosed uint64 `json:"connections_closed"`
	CommandsHandled   uint64 `json:"commands_handled"`
	UnknownCommands   uint64 `json:"unknown_commands"`
	NumericsSent      uint64 `json:"numerics_sent"`
	MessagesRelayed   uint64 `json:"messages_relayed"`
	MessagesCensored  uint64 `json:"messages_censored"`
	NickChanges       uint64 `json:"nick_changes"`
	ChannelJoins      uint64 `json:"channel_joins"`
	ChannelParts      uint64 `json:"channel_parts"`
	KeepaliveTimeouts uint64 `json:"keepalive_timeouts"`
	AllocMemMb        uint64 `json:"alloc_mem_mb"`
	NumGC             uint32 `json:"num_gc"`
}

// Monitoring collects relay telemetry in real time.
type Monitoring struct {
	log       *slog.Logger
	startedAt time.Time

	connectionsOpened uint64
	connectionsClosed uint64
	commandsHandled   uint64
	unknownCommands   uint64
	numericsSent      uint64
	messagesRelayed   uint64
	messagesCensored  uint64
	nickChanges       uint64
	channelJoins      uint64
	channelParts      uint64
	keepaliveTimeouts uint64

	mu           sync.RWMutex
	participants int
	channels     int
}

func NewMonitoring(log *slog.Logger) *Monitoring {
	return &Monitoring{log: log, startedAt: time.Now()}
}

func (m *Monitoring) IncrConnectionsOpened() { atomic.AddUint64(&m.connectionsOpened, 1) }
func (m *Monitoring) IncrConnectionsClosed() { atomic.AddUint64(&m.connectionsClosed, 1) }
func (m *Monitoring) IncrCommandsHandled()   { atomic.AddUint64(&m.commandsHandled, 1) }
func (m *Monitoring) IncrUnknownCommands()   { atomic.AddUint64(&m.unknownCommands, 1) }
func (m *Monitoring) IncrNumericsSent()      { atomic.AddUint64(&m.numericsSent, 1) }
func (m *Monitoring) IncrMessagesRelayed()   { atomic.AddUint64(&m.messagesRelayed, 1) }
func (m *Monitoring) IncrMessagesCensored()  { atomic.AddUint64(&m.messagesCensored, 1) }
func (m *Monitoring) IncrNickChanges()       { atomic.AddUint64(&m.nickChanges, 1) }
func (m *Monitoring) IncrChannelJoins()      { atomic.AddUint64(&m.channelJoins, 1) }
func (m *Monitoring) IncrChannelParts()      { atomic.AddUint64(&m.channelParts, 1) }
func (m *Monitoring) IncrKeepaliveTimeouts() { atomic.AddUint64(&m.keepaliveTimeouts, 1) }

// SetPopulation records the current participant and channel gauges.
// Called by the relay engine after every registry mutation.
func (m *Monitoring) SetPopulation(participants, channels int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants = participants
	m.channels = channels
}

// Snapshot assembles the current stats, including Go memory figures.
func (m *Monitoring) Snapshot() RelayStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.mu.RLock()
	participants, channels := m.participants, m.channels
	m.mu.RUnlock()

	return RelayStats{
		UptimeSeconds:     int64(time.Since(m.startedAt).Seconds()),
		Participants:      participants,
		Channels:          channels,
		ConnectionsOpened: atomic.LoadUint64(&m.connectionsOpened),
		ConnectionsClosed: atomic.LoadUint64(&m.connectionsClosed),
		CommandsHandled:   atomic.LoadUint64(&m.commandsHandled),
		UnknownCommands:   atomic.LoadUint64(&m.unknownCommands),
		NumericsSent:      atomic.LoadUint64(&m.numericsSent),
		MessagesRelayed:   atomic.LoadUint64(&m.messagesRelayed),
		MessagesCensored:  atomic.LoadUint64(&m.messagesCensored),
		NickChanges:       atomic.LoadUint64(&m.nickChanges),
		ChannelJoins:      atomic.LoadUint64(&m.channelJoins),
		ChannelParts:      atomic.LoadUint64(&m.channelParts),
		KeepaliveTimeouts: atomic.LoadUint64(&m.keepaliveTimeouts),
		AllocMemMb:        mem.Alloc / 1024 / 1024,
		NumGC:             mem.NumGC,
	}
}
