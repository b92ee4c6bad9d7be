package runtime

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-relay/domain"
	"chat-relay/protocol"
)

// Session is one live connection: the participant's protocol state plus
// the reader/writer goroutines moving its bytes. All protocol decisions
// happen on the engine goroutine; the loops here only shuttle lines.
type Session struct {
	ID string
	*domain.Participant

	conn      net.Conn
	outbox    chan string
	quit      chan struct{}
	closeOnce sync.Once

	// closing is engine-owned: set when the session entered the
	// Closing state and must not receive further protocol handling.
	closing bool
}

func newSession(conn net.Conn, outboxSize int) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Participant: domain.NewParticipant(remoteHost(conn)),
		conn:        conn,
		outbox:      make(chan string, outboxSize),
		quit:        make(chan struct{}),
	}
}

// Send enqueues one outbound line (terminator excluded). A full outbox
// means the peer stopped reading; the connection is closed rather than
// blocking the engine on a slow consumer.
func (s *Session) Send(line string) {
	select {
	case s.outbox <- line:
	case <-s.quit:
	default:
		s.Close()
	}
}

// Close shuts the connection down. Idempotent; the reader loop notices
// and delivers the final hangup event to the engine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		_ = s.conn.Close()
	})
}

// readLoop feeds complete lines to the engine in arrival order and
// finishes with exactly one hangup event. Guarded sends keep the loop
// from leaking if the engine already stopped.
func (s *Session) readLoop(e *Engine) {
	sc := protocol.NewLineScanner(s.conn)
	for {
		line, err := sc.ReadLine()
		if err != nil {
			select {
			case e.events <- hangup{s: s, err: err}:
			case <-e.stopped:
			}
			return
		}
		select {
		case e.events <- inbound{s: s, line: line}:
		case <-e.stopped:
			return
		case <-s.quit:
			// Connection condemned; drain silently until read fails.
		}
	}
}

// writeLoop drains the outbox under a write deadline. Any write failure
// closes the connection; cleanup happens through the reader's hangup.
func (s *Session) writeLoop(timeout time.Duration) {
	for {
		select {
		case line := <-s.outbox:
			_ = s.conn.SetWriteDeadline(time.Now().Add(timeout))
			if _, err := io.WriteString(s.conn, line+protocol.Terminator); err != nil {
				s.Close()
				return
			}
		case <-s.quit:
			return
		}
	}
}

func remoteHost(conn net.Conn) string {
	addr := conn.RemoteAddr()
	if addr == nil {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr.String()); err == nil {
		return host
	}
	return addr.String()
}
