package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"chat-relay/runtime/workers"
)

// Server owns the TCP listener and supervises the relay workers: the
// acceptor, the engine and the telemetry fanout.
type Server struct {
	log       *slog.Logger
	addr      string
	engine    *Engine
	fanout    *workers.EventFanout
	telemetry chan event.DomainEvent

	mu    sync.Mutex
	ln    net.Listener
	ready chan struct{}

	quit     chan struct{}
	quitOnce sync.Once
}

func NewServer(log *slog.Logger, addr string, opts Options, monitor *observability.Monitoring, sinks ...contract.EventSink) *Server {
	telemetry := make(chan event.DomainEvent, 256)
	return &Server{
		log:       log,
		addr:      addr,
		engine:    NewEngine(log, opts, monitor, telemetry),
		fanout:    workers.NewEventFanout(log, telemetry).Add(sinks...),
		telemetry: telemetry,
		ready:     make(chan struct{}),
		quit:      make(chan struct{}),
	}
}

// Run listens, then blocks until the context is canceled or Shutdown is
// called, and every connection has been unwound.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("relay listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	close(s.ready)
	s.log.Info("Relay listening", "addr", ln.Addr().String())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-runCtx.Done():
		case <-s.quit:
		}
		cancel()
		_ = ln.Close()
	}()

	sup := workers.NewSupervisor(s.log)
	sup.Add(s.engine, &acceptor{log: s.log, ln: ln, engine: s.engine}, s.fanout)
	sup.Run(runCtx)

	s.engine.markStopped()
	s.log.Info("Relay stopped")
	return nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr reports the bound address; nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops the relay. Idempotent and safe from any goroutine.
func (s *Server) Shutdown() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// acceptor feeds accepted connections to the engine. It finishes for
// good when the listener closes; transient accept errors only pause it.
type acceptor struct {
	log    *slog.Logger
	ln     net.Listener
	engine *Engine
}

func (a *acceptor) Run(ctx context.Context) error {
	for {
		conn, err := a.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			a.log.Warn("Accept failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		select {
		case a.engine.events <- accepted{conn: conn}:
		case <-a.engine.stopped:
			_ = conn.Close()
			return nil
		case <-ctx.Done():
			_ = conn.Close()
			return nil
		}
	}
}
