package runtime

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/protocol"
)

// preRegistration lists the verbs a connection may use before NICK and
// USER have both been accepted. Everything else earns a 451.
var preRegistration = map[string]struct{}{
	"CAP": {}, "NICK": {}, "USER": {}, "PING": {}, "PONG": {}, "QUIT": {},
}

func (e *Engine) dispatch(s *Session, cmd protocol.Command) {
	s.LastSeen = time.Now()

	if _, allowed := preRegistration[cmd.Verb]; !allowed && !s.Registered {
		e.numeric(s, protocol.NotRegistered, ":You have not registered")
		return
	}

	switch cmd.Verb {
	case "CAP":
		e.handleCap(s, cmd)
	case "NICK":
		e.handleNick(s, cmd)
	case "USER":
		e.handleUser(s, cmd)
	case "PING":
		e.handlePing(s, cmd)
	case "PONG":
		e.handlePong(s)
	case "MOTD":
		e.sendMotd(s)
	case "JOIN":
		e.handleJoin(s, cmd)
	case "PART":
		e.handlePart(s, cmd)
	case "QUIT":
		e.handleQuit(s, cmd)
	case "PRIVMSG":
		e.handlePrivmsg(s, cmd)
	case "TOPIC":
		e.handleTopic(s, cmd)
	case "LIST":
		e.handleList(s)
	case "WHO":
		e.handleWho(s, cmd)
	case "WHOIS":
		e.handleWhois(s, cmd)
	case "MODE":
		e.handleMode(s, cmd)
	default:
		e.monitor.IncrUnknownCommands()
		e.numeric(s, protocol.UnknownCommand, fmt.Sprintf("%s :Unknown command", cmd.Verb))
	}
}

// numeric sends one numeric reply addressed to the session's current
// nick, placeholder included for unregistered connections.
func (e *Engine) numeric(s *Session, n protocol.Numeric, text string) {
	s.Send(n.Reply(e.opts.ServerName, s.Nick, text))
	e.monitor.IncrNumericsSent()
}

func (e *Engine) handleCap(s *Session, cmd protocol.Command) {
	// No capabilities are negotiated; LS gets a bare acknowledgement so
	// eager clients proceed to registration.
	if len(cmd.Params) > 0 && cmd.Params[0] == "LS" {
		s.Send("CAP * ACK")
	}
}

func (e *Engine) handleNick(s *Session, cmd protocol.Command) {
	if len(cmd.Params) == 0 {
		return
	}
	nick := cmd.Params[0]
	oldMask := s.Hostmask()

	if err := e.registry.Rename(s, nick); err != nil {
		if IsErroneousNickname(err) {
			e.numeric(s, protocol.ErroneousNickname, fmt.Sprintf("%s :Erroneous nickname", nick))
		} else {
			e.numeric(s, protocol.NicknameInUse, ":Nickname already in use")
		}
		return
	}

	if s.NickSet {
		line := fmt.Sprintf(":%s NICK %s", oldMask, nick)
		for _, r := range e.interested(s, true) {
			r.Send(line)
		}
		e.monitor.IncrNickChanges()
		e.emit(event.NickChanged{SessionID: s.ID, From: strings.SplitN(oldMask, "!", 2)[0], To: nick, At: time.Now()})
	}
	s.NickSet = true
	e.maybeWelcome(s)
}

func (e *Engine) handleUser(s *Session, cmd protocol.Command) {
	if len(cmd.Params) == 0 {
		return
	}
	s.User = cmd.Params[0]
	if cmd.HasText && cmd.Text != "" {
		s.RealName = cmd.Text
	}
	s.UserSet = true
	e.maybeWelcome(s)
}

// maybeWelcome completes registration once both halves of the identity
// are in, sending the welcome burst followed by the MOTD.
func (e *Engine) maybeWelcome(s *Session) {
	if s.Registered || !s.NickSet || !s.UserSet {
		return
	}
	s.Registered = true

	e.numeric(s, protocol.Welcome, fmt.Sprintf(":Welcome, %s", s.Hostmask()))
	e.numeric(s, protocol.YourHost, fmt.Sprintf(":Your host is %s, running version %s", e.opts.ServerName, serverVersion))
	e.numeric(s, protocol.Created, ":This server was created today")
	e.numeric(s, protocol.MyInfo, fmt.Sprintf("%s %s", e.opts.ServerName, serverVersion))
	e.numeric(s, protocol.ISupport, fmt.Sprintf("NETWORK=%s :are supported by this server", e.opts.NetworkName))
	e.sendMotd(s)

	e.log.Info("New user registered", "mask", s.Hostmask(), "session", s.ID)
}

func (e *Engine) sendMotd(s *Session) {
	if len(e.opts.Motd) == 0 {
		e.numeric(s, protocol.NoMotd, ":MOTD File is missing")
		return
	}
	for i, line := range e.opts.Motd {
		code := protocol.Motd
		if i == 0 {
			code = protocol.MotdStart
		}
		e.numeric(s, code, fmt.Sprintf(":- %s", line))
	}
	e.numeric(s, protocol.EndOfMotd, ":-")
}

func (e *Engine) handlePing(s *Session, cmd protocol.Command) {
	token := strings.Join(cmd.Params, " ")
	if cmd.HasText {
		token = cmd.Text
	}
	if token == "" {
		return
	}
	s.Send(fmt.Sprintf(":%s PONG %s :%s", e.opts.ServerName, e.opts.ServerName, token))
}

func (e *Engine) handlePong(s *Session) {
	s.AwaitingPong = false
}

func (e *Engine) handleJoin(s *Session, cmd protocol.Command) {
	if len(cmd.Params) == 0 {
		return
	}
	for _, name := range strings.Split(cmd.Params[0], ",") {
		if name == "" {
			continue
		}
		e.joinOne(s, name)
	}
}

func (e *Engine) joinOne(s *Session, name string) {
	ch, already, err := e.registry.Join(s, name)
	if err != nil {
		e.numeric(s, protocol.BadChannelName, fmt.Sprintf("%s :Bad channel name", name))
		return
	}
	if !already {
		line := fmt.Sprintf(":%s JOIN %s", s.Hostmask(), ch.Name)
		for _, m := range e.registry.MembersOf(ch) {
			m.Send(line)
		}
		e.monitor.IncrChannelJoins()
		e.publishPopulation()
		e.emit(event.ChannelJoined{Nick: s.Nick, Channel: ch.Name, At: time.Now()})
	}

	e.sendTopic(s, ch)
	nicks := lo.Map(e.registry.MembersOf(ch), func(m *Session, _ int) string { return m.Nick })
	e.numeric(s, protocol.NameReply, fmt.Sprintf("= %s :%s", ch.Name, strings.Join(nicks, " ")))
	e.numeric(s, protocol.EndOfNames, fmt.Sprintf("%s :End of /NAMES list", ch.Name))
}

func (e *Engine) sendTopic(s *Session, ch *domain.Channel) {
	if ch.Topic == "" {
		e.numeric(s, protocol.NoTopicSet, fmt.Sprintf("%s :No topic is set", ch.Name))
		return
	}
	e.numeric(s, protocol.Topic, fmt.Sprintf("%s :%s", ch.Name, ch.Topic))
}

func (e *Engine) handlePart(s *Session, cmd protocol.Command) {
	if len(cmd.Params) == 0 {
		return
	}
	for _, name := range strings.Split(cmd.Params[0], ",") {
		if name == "" {
			continue
		}
		e.partOne(s, name, cmd)
	}
}

func (e *Engine) partOne(s *Session, name string, cmd protocol.Command) {
	ch, ok := e.registry.Channel(name)
	if !ok {
		e.numeric(s, protocol.NoSuchChannel, fmt.Sprintf("%s :No such channel", name))
		return
	}
	if err := e.registry.Leave(s, name); err != nil {
		e.numeric(s, protocol.NoSuchChannel, fmt.Sprintf("%s :You're not on that channel", name))
		return
	}

	line := fmt.Sprintf(":%s PART %s", s.Hostmask(), ch.Name)
	if cmd.HasText && cmd.Text != "" {
		line = fmt.Sprintf("%s :%s", line, cmd.Text)
	}
	s.Send(line)
	for _, m := range e.registry.MembersOf(ch) {
		m.Send(line)
	}

	e.monitor.IncrChannelParts()
	e.publishPopulation()
	e.emit(event.ChannelParted{Nick: s.Nick, Channel: ch.Name, Reason: cmd.Text, At: time.Now()})
}

func (e *Engine) handleQuit(s *Session, cmd protocol.Command) {
	reason := ""
	if cmd.HasText {
		reason = cmd.Text
	}
	e.disconnect(s, fmt.Sprintf("Quit: %s", reason), true)
}

func (e *Engine) handlePrivmsg(s *Session, cmd protocol.Command) {
	if len(cmd.Params) == 0 || !cmd.HasText {
		return
	}

	text := cmd.Text
	censored := false
	if e.opts.Moderator != nil {
		if clean, found := e.opts.Moderator.Censor(text); found {
			text = clean
			censored = true
			e.monitor.IncrMessagesCensored()
		}
	}

	for _, target := range strings.Split(cmd.Params[0], ",") {
		if target == "" {
			continue
		}
		if isChannelName(target) {
			e.relayToChannel(s, target, text, censored)
		} else {
			e.relayToNick(s, target, text, censored)
		}
	}
}

func (e *Engine) relayToChannel(s *Session, target, text string, censored bool) {
	ch, ok := e.registry.Channel(target)
	if !ok {
		e.numeric(s, protocol.NoSuchNick, fmt.Sprintf("%s :No such nick/channel", target))
		return
	}
	// Messages to a channel the sender never joined vanish silently.
	if !ch.Has(s.Nick) {
		return
	}
	line := fmt.Sprintf(":%s PRIVMSG %s :%s", s.Hostmask(), ch.Name, text)
	for _, m := range e.registry.MembersOf(ch) {
		if m != s {
			m.Send(line)
		}
	}
	e.monitor.IncrMessagesRelayed()
	e.emit(event.MessageRelayed{From: s.Nick, Target: ch.Name, Censored: censored, At: time.Now()})
}

func (e *Engine) relayToNick(s *Session, target, text string, censored bool) {
	peer, ok := e.registry.Lookup(target)
	if !ok {
		e.numeric(s, protocol.NoSuchNick, fmt.Sprintf("%s :No such nick/channel", target))
		return
	}
	peer.Send(fmt.Sprintf(":%s PRIVMSG %s :%s", s.Hostmask(), peer.Nick, text))
	e.monitor.IncrMessagesRelayed()
	e.emit(event.MessageRelayed{From: s.Nick, Target: peer.Nick, Censored: censored, At: time.Now()})
}

func (e *Engine) handleTopic(s *Session, cmd protocol.Command) {
	if len(cmd.Params) == 0 {
		return
	}
	name := cmd.Params[0]
	ch, ok := e.registry.Channel(name)
	if !ok {
		e.numeric(s, protocol.NoSuchChannel, fmt.Sprintf("%s :No such channel", name))
		return
	}
	if !ch.Has(s.Nick) {
		e.numeric(s, protocol.NoSuchChannel, fmt.Sprintf("%s :You're not on that channel", name))
		return
	}

	if !cmd.HasText {
		e.sendTopic(s, ch)
		return
	}
	ch.Topic = cmd.Text
	line := fmt.Sprintf(":%s TOPIC %s :%s", s.Hostmask(), ch.Name, cmd.Text)
	for _, m := range e.registry.MembersOf(ch) {
		m.Send(line)
	}
}

func (e *Engine) handleList(s *Session) {
	e.numeric(s, protocol.ListStart, "Channel :Users  Name")
	for _, ch := range e.registry.Channels() {
		e.numeric(s, protocol.List, fmt.Sprintf("%s %d :%s", ch.Name, ch.Len(), ch.Topic))
	}
	e.numeric(s, protocol.ListEnd, "End of /LIST")
}

func (e *Engine) handleWho(s *Session, cmd protocol.Command) {
	if len(cmd.Params) == 0 {
		return
	}
	target := cmd.Params[0]

	if isChannelName(target) {
		if ch, ok := e.registry.Channel(target); ok {
			for _, m := range e.registry.MembersOf(ch) {
				e.numeric(s, protocol.WhoReply, whoLine(ch.Name, m, e.opts.ServerName))
			}
		}
	} else if peer, ok := e.registry.Lookup(target); ok {
		origin := "*"
		if len(peer.Channels) > 0 {
			origin = peer.Channels[0]
		}
		e.numeric(s, protocol.WhoReply, whoLine(origin, peer, e.opts.ServerName))
	}
	e.numeric(s, protocol.EndOfWho, fmt.Sprintf("%s :End of /WHO list", target))
}

func whoLine(origin string, m *Session, server string) string {
	return fmt.Sprintf("%s %s %s %s %s H :0 %s", origin, m.User, m.Host, server, m.Nick, realName(m))
}

func (e *Engine) handleWhois(s *Session, cmd protocol.Command) {
	if len(cmd.Params) == 0 {
		return
	}
	target := cmd.Params[0]
	peer, ok := e.registry.Lookup(target)
	if !ok {
		e.numeric(s, protocol.NoSuchNick, fmt.Sprintf("%s :No such nick/channel", target))
		e.numeric(s, protocol.EndOfWhois, fmt.Sprintf("%s :End of /WHOIS list", target))
		return
	}
	e.numeric(s, protocol.WhoisUser, fmt.Sprintf("%s %s %s * :%s", peer.Nick, peer.User, peer.Host, realName(peer)))
	e.numeric(s, protocol.WhoisServer, fmt.Sprintf("%s %s :%s", peer.Nick, e.opts.ServerName, e.opts.NetworkName))
	e.numeric(s, protocol.EndOfWhois, fmt.Sprintf("%s :End of /WHOIS list", peer.Nick))
}

func (e *Engine) handleMode(s *Session, cmd protocol.Command) {
	if len(cmd.Params) == 0 {
		return
	}
	target := cmd.Params[0]
	if !isChannelName(target) {
		return
	}
	if ch, ok := e.registry.Channel(target); ok {
		e.numeric(s, protocol.ChannelModeIs, fmt.Sprintf("%s +nt", ch.Name))
	}
}

func isChannelName(name string) bool {
	return strings.HasPrefix(name, "#") || strings.HasPrefix(name, "&")
}

func realName(s *Session) string {
	if s.RealName == "" {
		return "User"
	}
	return s.RealName
}
