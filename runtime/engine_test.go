package runtime

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/protocol"
)

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.ServerName == "" {
		opts.ServerName = "relay"
	}
	if opts.NetworkName == "" {
		opts.NetworkName = "relaynet"
	}
	return NewEngine(log, opts, observability.NewMonitoring(log), nil)
}

// connect binds a session without starting the IO loops so tests can
// inspect the outbox directly.
func connect(t *testing.T, e *Engine) *Session {
	t.Helper()
	s := testSession(t)
	e.registry.Bind(s)
	e.live[s] = struct{}{}
	return s
}

func say(t *testing.T, e *Engine, s *Session, line string) {
	t.Helper()
	cmd, ok := protocol.Parse(line)
	require.True(t, ok, "line %q did not parse", line)
	e.dispatch(s, cmd)
}

func drain(s *Session) []string {
	var out []string
	for {
		select {
		case line := <-s.outbox:
			out = append(out, line)
		default:
			return out
		}
	}
}

func register(t *testing.T, e *Engine, s *Session, nick string) {
	t.Helper()
	say(t, e, s, "NICK "+nick)
	say(t, e, s, fmt.Sprintf("USER %s 0 * :%s", nick, nick))
	drain(s)
}

func anyContains(lines []string, sub string) bool {
	for _, l := range lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

func countContains(lines []string, sub string) int {
	n := 0
	for _, l := range lines {
		if strings.Contains(l, sub) {
			n++
		}
	}
	return n
}

func TestEngine_Commands_Before_Registration_Get_451(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{})
	s := connect(t, e)

	// JOIN before NICK and USER
	say(t, e, s, "JOIN #go")
	lines := drain(s)
	req.Len(lines, 1)
	req.Contains(lines[0], " 451 ")
	req.Contains(lines[0], "You have not registered")

	// PING is part of the pre-registration allowance
	say(t, e, s, "PING :abc")
	lines = drain(s)
	req.Len(lines, 1)
	req.Equal(":relay PONG relay :abc", lines[0])
}

func TestEngine_Registration_Sends_Welcome_Burst_Then_Motd(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{Motd: []string{"hello there"}})
	s := connect(t, e)

	say(t, e, s, "NICK alice")
	req.Empty(drain(s))

	say(t, e, s, "USER alice 0 * :Alice A")
	lines := drain(s)

	for i, code := range []string{"001", "002", "003", "004", "005"} {
		req.Contains(lines[i], fmt.Sprintf(":relay %s alice ", code))
	}
	req.Contains(lines[0], "Welcome, alice!alice@")
	req.Contains(lines[4], "NETWORK=relaynet")
	req.Contains(lines[5], " 375 ")
	req.Contains(lines[5], ":- hello there")
	req.Contains(lines[6], " 376 ")
	req.True(s.Registered)
}

func TestEngine_Registration_Without_Motd_Sends_422(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{})
	s := connect(t, e)

	say(t, e, s, "NICK alice")
	say(t, e, s, "USER alice 0 * :Alice")
	lines := drain(s)
	req.True(anyContains(lines, " 422 "))
	req.True(anyContains(lines, "MOTD File is missing"))
}

func TestEngine_Nick_Collision_And_Erroneous_Nick(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{})
	alice := connect(t, e)
	register(t, e, alice, "alice")

	// A second session claiming the same nick, in another case
	bob := connect(t, e)
	say(t, e, bob, "NICK ALICE")
	lines := drain(bob)
	req.Len(lines, 1)
	req.Contains(lines[0], " 433 ")
	req.Contains(lines[0], "Nickname already in use")

	say(t, e, bob, "NICK 9bob")
	lines = drain(bob)
	req.Contains(lines[0], " 432 ")
	req.Contains(lines[0], "Erroneous nickname")

	// The session still holds its placeholder, so a valid NICK works
	say(t, e, bob, "NICK bob")
	say(t, e, bob, "USER bob 0 * :Bob")
	req.True(anyContains(drain(bob), " 001 "))
}

func TestEngine_Nick_Change_Notifies_Channel_Peers_Once(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{})
	alice, bob := connect(t, e), connect(t, e)
	register(t, e, alice, "alice")
	register(t, e, bob, "bob")

	// Sharing two channels must not double the notification
	say(t, e, alice, "JOIN #go,#rust")
	say(t, e, bob, "JOIN #go,#rust")
	drain(alice)
	drain(bob)

	oldMask := alice.Hostmask()
	say(t, e, alice, "NICK alicia")

	line := fmt.Sprintf(":%s NICK alicia", oldMask)
	req.Equal(1, countContains(drain(bob), line))
	req.Equal(1, countContains(drain(alice), line))
	req.Equal("alicia", alice.Nick)
}

func TestEngine_Join_Broadcasts_And_Lists_Names_In_Join_Order(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{})
	alice, bob := connect(t, e), connect(t, e)
	register(t, e, alice, "alice")
	register(t, e, bob, "bob")

	say(t, e, alice, "JOIN #go")
	lines := drain(alice)
	req.Contains(lines[0], fmt.Sprintf(":%s JOIN #go", alice.Hostmask()))
	req.True(anyContains(lines, " 331 "))
	req.True(anyContains(lines, "= #go :alice"))
	req.True(anyContains(lines, " 366 "))

	say(t, e, bob, "JOIN #GO")
	req.True(anyContains(drain(alice), fmt.Sprintf(":%s JOIN #go", bob.Hostmask())))
	req.True(anyContains(drain(bob), "= #go :alice bob"))

	// Re-joining repeats the topic and names, but never the broadcast
	say(t, e, bob, "JOIN #go")
	lines = drain(bob)
	req.False(anyContains(lines, "JOIN #go"))
	req.True(anyContains(lines, "= #go :alice bob"))
	req.Empty(drain(alice))
}

func TestEngine_Join_Rejects_Bad_Channel_Names(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{})
	alice := connect(t, e)
	register(t, e, alice, "alice")

	say(t, e, alice, "JOIN go")
	lines := drain(alice)
	req.Len(lines, 1)
	req.Contains(lines[0], " 479 ")
	req.Contains(lines[0], "go :Bad channel name")
}

func TestEngine_Part_Notifies_Members_And_Handles_Errors(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{})
	alice, bob := connect(t, e), connect(t, e)
	register(t, e, alice, "alice")
	register(t, e, bob, "bob")
	say(t, e, alice, "JOIN #go")
	say(t, e, bob, "JOIN #go")
	drain(alice)
	drain(bob)

	say(t, e, alice, "PART #go :bye now")
	partLine := fmt.Sprintf(":%s PART #go :bye now", alice.Hostmask())
	req.True(anyContains(drain(alice), partLine))
	req.True(anyContains(drain(bob), partLine))

	// Parting again: no longer a member, but the channel still exists
	say(t, e, alice, "PART #go")
	lines := drain(alice)
	req.Contains(lines[0], " 403 ")
	req.Contains(lines[0], "You're not on that channel")

	// A channel nobody created
	say(t, e, alice, "PART #nope")
	lines = drain(alice)
	req.Contains(lines[0], " 403 ")
	req.Contains(lines[0], "#nope :No such channel")
}

func TestEngine_Privmsg_Relays_To_Everyone_But_The_Sender(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{})
	alice, bob, carol := connect(t, e), connect(t, e), connect(t, e)
	register(t, e, alice, "alice")
	register(t, e, bob, "bob")
	register(t, e, carol, "carol")
	say(t, e, alice, "JOIN #go")
	say(t, e, bob, "JOIN #go")
	drain(alice)
	drain(bob)

	say(t, e, alice, "PRIVMSG #go :hello all")
	msg := fmt.Sprintf(":%s PRIVMSG #go :hello all", alice.Hostmask())
	req.Empty(drain(alice))
	req.Equal([]string{msg}, drain(bob))
	req.Empty(drain(carol))

	// Direct message to a nick
	say(t, e, alice, "PRIVMSG carol :psst")
	req.Equal([]string{fmt.Sprintf(":%s PRIVMSG carol :psst", alice.Hostmask())}, drain(carol))
}

func TestEngine_Privmsg_Ghost_Target_Gets_401(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{})
	alice, bob := connect(t, e), connect(t, e)
	register(t, e, alice, "alice")
	register(t, e, bob, "bob")
	say(t, e, bob, "JOIN #go")
	drain(bob)

	say(t, e, alice, "PRIVMSG nobody :hello?")
	lines := drain(alice)
	req.Contains(lines[0], " 401 ")
	req.Contains(lines[0], "nobody :No such nick/channel")

	say(t, e, alice, "PRIVMSG #void :hello?")
	lines = drain(alice)
	req.Contains(lines[0], " 401 ")

	// Existing channel the sender never joined: dropped silently
	say(t, e, alice, "PRIVMSG #go :sneaky")
	req.Empty(drain(alice))
	req.Empty(drain(bob))
}

func TestEngine_Privmsg_Is_Censored_When_Moderation_Is_On(t *testing.T) {
	req := require.New(t)
	moderator, err := moderation.NewModerator([]string{"badword"}, '*')
	req.NoError(err)
	e := newTestEngine(t, Options{Moderator: moderator})
	alice, bob := connect(t, e), connect(t, e)
	register(t, e, alice, "alice")
	register(t, e, bob, "bob")
	say(t, e, alice, "JOIN #go")
	say(t, e, bob, "JOIN #go")
	drain(alice)
	drain(bob)

	say(t, e, alice, "PRIVMSG #go :what a badword here")
	lines := drain(bob)
	req.Len(lines, 1)
	req.NotContains(lines[0], "badword")
	req.Contains(lines[0], "*******")
}

func TestEngine_Topic_Get_Set_And_Broadcast(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{})
	alice, bob := connect(t, e), connect(t, e)
	register(t, e, alice, "alice")
	register(t, e, bob, "bob")
	say(t, e, alice, "JOIN #go")
	say(t, e, bob, "JOIN #go")
	drain(alice)
	drain(bob)

	say(t, e, alice, "TOPIC #go")
	req.True(anyContains(drain(alice), " 331 "))

	say(t, e, alice, "TOPIC #go :all about go")
	topicLine := fmt.Sprintf(":%s TOPIC #go :all about go", alice.Hostmask())
	req.True(anyContains(drain(alice), topicLine))
	req.True(anyContains(drain(bob), topicLine))

	say(t, e, bob, "TOPIC #go")
	lines := drain(bob)
	req.Contains(lines[0], " 332 ")
	req.Contains(lines[0], "#go :all about go")

	// Outsiders cannot read or write the topic
	carol := connect(t, e)
	register(t, e, carol, "carol")
	say(t, e, carol, "TOPIC #go")
	req.True(anyContains(drain(carol), "You're not on that channel"))
}

func TestEngine_List_Shows_Channels_In_Creation_Order(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{})
	alice := connect(t, e)
	register(t, e, alice, "alice")
	say(t, e, alice, "JOIN #zeta,#alpha")
	say(t, e, alice, "TOPIC #alpha :first letters")
	drain(alice)

	say(t, e, alice, "LIST")
	lines := drain(alice)
	req.Contains(lines[0], " 321 ")
	req.Contains(lines[1], "#zeta 1 :")
	req.Contains(lines[2], "#alpha 1 :first letters")
	req.Contains(lines[3], " 323 ")
}

func TestEngine_Whois_Known_And_Unknown(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{})
	alice, bob := connect(t, e), connect(t, e)
	register(t, e, alice, "alice")
	register(t, e, bob, "bob")

	say(t, e, alice, "WHOIS bob")
	lines := drain(alice)
	req.Contains(lines[0], " 311 ")
	req.Contains(lines[0], "bob bob")
	req.Contains(lines[1], " 312 ")
	req.Contains(lines[2], " 318 ")

	say(t, e, alice, "WHOIS ghost")
	lines = drain(alice)
	req.Contains(lines[0], " 401 ")
	req.Contains(lines[1], " 318 ")
}

func TestEngine_Who_Lists_Channel_Members(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{})
	alice, bob := connect(t, e), connect(t, e)
	register(t, e, alice, "alice")
	register(t, e, bob, "bob")
	say(t, e, alice, "JOIN #go")
	say(t, e, bob, "JOIN #go")
	drain(alice)
	drain(bob)

	say(t, e, alice, "WHO #go")
	lines := drain(alice)
	req.Len(lines, 3)
	req.Contains(lines[0], " 352 ")
	req.Contains(lines[0], "alice")
	req.Contains(lines[1], "bob")
	req.Contains(lines[2], " 315 ")
}

func TestEngine_Mode_Reports_Static_Channel_Modes(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{})
	alice := connect(t, e)
	register(t, e, alice, "alice")
	say(t, e, alice, "JOIN #go")
	drain(alice)

	say(t, e, alice, "MODE #go")
	lines := drain(alice)
	req.Len(lines, 1)
	req.Contains(lines[0], " 324 ")
	req.Contains(lines[0], "#go +nt")

	// User modes are accepted silently
	say(t, e, alice, "MODE alice +i")
	req.Empty(drain(alice))
}

func TestEngine_Cap_LS_Is_Acknowledged(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{})
	s := connect(t, e)

	say(t, e, s, "CAP LS 302")
	req.Equal([]string{"CAP * ACK"}, drain(s))

	say(t, e, s, "CAP END")
	req.Empty(drain(s))
}

func TestEngine_Unknown_Command_Gets_421(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{})
	alice := connect(t, e)
	register(t, e, alice, "alice")

	say(t, e, alice, "FROBNICATE now")
	lines := drain(alice)
	req.Len(lines, 1)
	req.Contains(lines[0], " 421 ")
	req.Contains(lines[0], "FROBNICATE :Unknown command")
}

func TestEngine_Quit_Notifies_Shared_Channel_Peers_Once(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{})
	alice, bob, carol := connect(t, e), connect(t, e), connect(t, e)
	register(t, e, alice, "alice")
	register(t, e, bob, "bob")
	register(t, e, carol, "carol")
	say(t, e, alice, "JOIN #go,#rust")
	say(t, e, bob, "JOIN #go,#rust")
	drain(alice)
	drain(bob)

	mask := alice.Hostmask()
	say(t, e, alice, "QUIT :gone fishing")

	quitLine := fmt.Sprintf(":%s QUIT :Quit: gone fishing", mask)
	req.Equal(1, countContains(drain(bob), quitLine))
	req.Empty(drain(carol))
	// Only alice is gone; bob and carol keep their registry slots
	req.Equal(2, e.registry.CountParticipants())
	_, ok := e.registry.Lookup("alice")
	req.False(ok)
	_, ok = e.registry.Lookup("carol")
	req.True(ok)
}

func TestEngine_Sweep_Challenges_Then_Disconnects(t *testing.T) {
	req := require.New(t)
	e := newTestEngine(t, Options{PingInterval: time.Minute})
	alice, bob := connect(t, e), connect(t, e)
	register(t, e, alice, "alice")
	register(t, e, bob, "bob")
	say(t, e, alice, "JOIN #go")
	say(t, e, bob, "JOIN #go")
	drain(alice)
	drain(bob)

	// Silence beyond the interval earns a PING challenge
	now := time.Now()
	alice.LastSeen = now.Add(-61 * time.Second)
	e.sweep(now)
	req.Equal([]string{"PING :relay"}, drain(alice))
	req.True(alice.AwaitingPong)

	// A PONG clears the challenge
	say(t, e, alice, "PONG :relay")
	req.False(alice.AwaitingPong)

	// An unanswered challenge disconnects and tells the peers
	alice.LastSeen = now.Add(-61 * time.Second)
	e.sweep(now)
	drain(alice)
	e.sweep(now.Add(time.Minute))
	req.Equal(1, countContains(drain(bob), fmt.Sprintf(":%s QUIT :Ping timeout", alice.Hostmask())))
	_, ok := e.registry.Lookup("alice")
	req.False(ok)
}
