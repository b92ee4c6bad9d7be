package e2e

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"

	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/sink"
)

type BaseRelaySuite struct {
	suite.Suite
	Config Config

	addr   string
	cancel context.CancelFunc
	done   chan error
}

// SetupSuite loads the environment configuration and, unless an
// external relay address is given, boots one in-process.
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.RelayAddr != "" {
		s.addr = s.Config.RelayAddr
		return
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := runtime.NewServer(
		logger,
		"127.0.0.1:0",
		runtime.Options{ServerName: "relay", NetworkName: "relaynet", Motd: []string{"e2e relay"}},
		observability.NewMonitoring(logger),
		sink.NewLogSink(logger),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() { s.done <- server.Run(ctx) }()

	select {
	case <-server.Ready():
	case <-time.After(5 * time.Second):
		s.FailNow("relay did not start listening in time")
	}
	s.addr = server.Addr().String()
}

func (s *BaseRelaySuite) TearDownSuite() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	select {
	case err := <-s.done:
		s.Require().NoError(err)
	case <-time.After(5 * time.Second):
		s.FailNow("relay did not shut down in time")
	}
}

// Step prints a colorized header for the scenario step in logs
func (s *BaseRelaySuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Client is one raw TCP chat client speaking the line protocol.
type Client struct {
	t       *testing.T
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration
}

func (s *BaseRelaySuite) Dial() *Client {
	conn, err := net.Dial("tcp", s.addr)
	s.Require().NoError(err, "Failed to connect to relay at "+s.addr)
	s.T().Cleanup(func() { _ = conn.Close() })
	return &Client{t: s.T(), conn: conn, r: bufio.NewReader(conn), timeout: s.Config.Timeout}
}

func (c *Client) Sendf(format string, args ...any) {
	c.t.Helper()
	_, err := fmt.Fprintf(c.conn, format+"\r\n", args...)
	if err != nil {
		c.t.Fatalf("send failed: %v", err)
	}
}

// ReadLine returns the next line from the relay, terminator stripped.
func (c *Client) ReadLine() string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	line, err := c.r.ReadString('\n')
	if err != nil {
		c.t.Fatalf("read failed: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

// WaitFor reads lines until one contains sub, failing on timeout.
func (c *Client) WaitFor(sub string) string {
	c.t.Helper()
	deadline := time.Now().Add(c.timeout)
	for time.Now().Before(deadline) {
		line := c.ReadLine()
		c.t.Logf("<-- %s", line)
		if strings.Contains(line, sub) {
			return line
		}
	}
	c.t.Fatalf("never received a line containing %q", sub)
	return ""
}

// Register runs the NICK/USER handshake and waits for the welcome.
func (c *Client) Register(nick string) {
	c.t.Helper()
	c.Sendf("NICK %s", nick)
	c.Sendf("USER %s 0 * :%s", nick, nick)
	c.WaitFor(" 001 ")
}
