// Package runtime hosts the relay core: the registries, the
// per-connection sessions and the engine goroutine that owns them.
package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/samber/lo"

	"chat-relay/domain/event"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/protocol"
)

const serverVersion = "0.1"

// Options tune the relay core. Zero values fall back to defaults.
type Options struct {
	ServerName  string
	NetworkName string

	// Motd lines, already wrapped by the caller. Empty means 422.
	Motd []string

	// PingInterval is both the silence threshold before a keepalive
	// challenge and the grace period before a missed challenge kills
	// the connection. The sweep runs at half this interval.
	PingInterval time.Duration

	WriteTimeout time.Duration
	EventBuffer  int
	OutboxSize   int

	// Moderator censors relayed message text when non-nil.
	Moderator *moderation.Moderator
}

func (o Options) withDefaults() Options {
	if o.ServerName == "" {
		o.ServerName = "relay"
	}
	if o.NetworkName == "" {
		o.NetworkName = "relaynet"
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 30 * time.Second
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 256
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 64
	}
	return o
}

// Engine events. Readers, the acceptor and the sweep ticker all funnel
// into one channel, so handlers run strictly one at a time with
// exclusive access to both registries.
type accepted struct {
	conn net.Conn
}

type inbound struct {
	s    *Session
	line string
}

type hangup struct {
	s   *Session
	err error
}

// Engine is the single-goroutine scheduler of the relay: it drains the
// event channel, drives the protocol state machine and keeps the
// registries consistent. It implements contract.Worker.
type Engine struct {
	log      *slog.Logger
	opts     Options
	registry *Registry
	monitor  *observability.Monitoring

	events    chan any
	live      map[*Session]struct{}
	telemetry chan<- event.DomainEvent

	stopped  chan struct{}
	stopOnce sync.Once
	draining bool
}

func NewEngine(log *slog.Logger, opts Options, monitor *observability.Monitoring, telemetry chan<- event.DomainEvent) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		log:       log,
		opts:      opts,
		registry:  NewRegistry(),
		monitor:   monitor,
		events:    make(chan any, opts.EventBuffer),
		live:      make(map[*Session]struct{}),
		telemetry: telemetry,
		stopped:   make(chan struct{}),
	}
}

// Run drains events until the context is cancelled and every session
// has been unwound. Returning nil tells the supervisor not to restart.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.opts.PingInterval / 2)
	defer ticker.Stop()

	done := ctx.Done()
	for {
		select {
		case <-done:
			e.beginShutdown()
			done = nil
			if len(e.live) == 0 {
				return nil
			}
		case ev := <-e.events:
			e.handleEvent(ev)
			if done == nil && len(e.live) == 0 {
				return nil
			}
		case now := <-ticker.C:
			e.sweep(now)
		}
	}
}

// markStopped releases reader goroutines still trying to deliver
// events. Called by the server once supervision has finished.
func (e *Engine) markStopped() {
	e.stopOnce.Do(func() { close(e.stopped) })
}

func (e *Engine) handleEvent(ev any) {
	switch ev := ev.(type) {
	case accepted:
		e.attach(ev.conn)
	case inbound:
		if _, ok := e.live[ev.s]; !ok || ev.s.closing {
			return
		}
		e.handleLine(ev.s, ev.line)
	case hangup:
		if _, ok := e.live[ev.s]; !ok {
			return
		}
		e.disconnect(ev.s, "Connection closed", true)
	}
}

// attach turns an accepted connection into an Unregistered session.
func (e *Engine) attach(conn net.Conn) {
	if e.draining {
		_ = conn.Close()
		return
	}
	s := newSession(conn, e.opts.OutboxSize)
	e.registry.Bind(s)
	e.live[s] = struct{}{}
	go s.writeLoop(e.opts.WriteTimeout)
	go s.readLoop(e)

	e.monitor.IncrConnectionsOpened()
	e.publishPopulation()
	e.emit(event.SessionOpened{SessionID: s.ID, RemoteAddr: conn.RemoteAddr().String(), At: time.Now()})
	e.log.Debug("Connection accepted", "session", s.ID, "remote", conn.RemoteAddr().String())
}

func (e *Engine) handleLine(s *Session, line string) {
	cmd, ok := protocol.Parse(line)
	if !ok {
		// Blank or unparsable: skipped, never disconnects the client.
		return
	}
	e.log.Debug("<--", "session", s.ID, "line", line)
	e.monitor.IncrCommandsHandled()
	e.dispatch(s, cmd)
}

// disconnect unwinds a session from both registries and notifies every
// participant sharing a channel with it, each exactly once. The unwind
// completes before any other pending event is handled.
func (e *Engine) disconnect(s *Session, reason string, notify bool) {
	if s.closing {
		return
	}
	s.closing = true
	delete(e.live, s)

	neighbors := e.interested(s, false)
	e.registry.Remove(s)

	if notify {
		line := fmt.Sprintf(":%s QUIT :%s", s.Hostmask(), reason)
		for _, n := range neighbors {
			n.Send(line)
		}
	}

	s.Close()
	e.monitor.IncrConnectionsClosed()
	e.publishPopulation()
	e.emit(event.SessionClosed{SessionID: s.ID, Nick: s.Nick, Reason: reason, At: time.Now()})
	e.log.Info("User disconnected", "mask", s.Hostmask(), "reason", reason)
}

// sweep is the periodic liveness pass: challenge the silent, drop the
// unresponsive. Timed-out participants get the same cleanup path as
// transport errors, with the notice broadcast once per neighbor.
func (e *Engine) sweep(now time.Time) {
	for s := range e.live {
		if s.AwaitingPong && now.Sub(s.PingSentAt) >= e.opts.PingInterval {
			e.monitor.IncrKeepaliveTimeouts()
			e.emit(event.KeepaliveTimeout{Nick: s.Nick, At: now})
			e.disconnect(s, "Ping timeout", true)
			continue
		}
		if !s.AwaitingPong && now.Sub(s.LastSeen) >= e.opts.PingInterval {
			s.Send(fmt.Sprintf("PING :%s", e.opts.ServerName))
			s.AwaitingPong = true
			s.PingSentAt = now
		}
	}
}

// beginShutdown closes every connection with a server-initiated notice.
// Idempotent; remaining hangup events finish the unwind.
func (e *Engine) beginShutdown() {
	if e.draining {
		return
	}
	e.draining = true
	notice := fmt.Sprintf("ERROR :Closing link: %s (Server shutting down)%s", e.opts.ServerName, protocol.Terminator)
	for s := range e.live {
		_ = s.conn.SetWriteDeadline(time.Now().Add(e.opts.WriteTimeout))
		_, _ = io.WriteString(s.conn, notice)
		e.disconnect(s, "Server shutting down", false)
	}
}

// interested collects the distinct sessions sharing at least one
// channel with s, in deterministic first-seen order.
func (e *Engine) interested(s *Session, includeSelf bool) []*Session {
	var all []*Session
	if includeSelf {
		all = append(all, s)
	}
	for _, name := range s.Channels {
		if ch, ok := e.registry.Channel(name); ok {
			all = append(all, e.registry.MembersOf(ch)...)
		}
	}
	return lo.Filter(lo.Uniq(all), func(m *Session, _ int) bool {
		return includeSelf || m != s
	})
}

func (e *Engine) publishPopulation() {
	e.monitor.SetPopulation(e.registry.CountParticipants(), e.registry.CountChannels())
}

func (e *Engine) emit(ev event.DomainEvent) {
	if e.telemetry == nil {
		return
	}
	select {
	case e.telemetry <- ev:
	default:
		e.log.Debug("Telemetry event lost", "event", ev.Name())
	}
}
