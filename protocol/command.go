// Package protocol implements the line-oriented wire format of the
// relay: framing, command parsing and numeric reply codes.
package protocol

import "strings"

// Terminator ends every wire line.
const Terminator = "\r\n"

// Command is one parsed protocol line: an optional source prefix, an
// upper-cased verb, middle parameters, and an optional trailing
// parameter that may contain spaces. HasText distinguishes an absent
// trailing parameter from an empty one (TOPIC relies on that).
type Command struct {
	Source  string
	Verb    string
	Params  []string
	Text    string
	HasText bool
}

// Parse tokenizes one decoded line (terminator stripped). It returns
// false for input that holds no command at all (blank or only a source
// prefix); callers skip those lines without treating them as errors.
// Unknown verbs are not rejected here.
func Parse(line string) (Command, bool) {
	rest := strings.TrimLeft(strings.TrimRight(line, "\r\n"), " \t")
	if rest == "" {
		return Command{}, false
	}

	var cmd Command
	if rest[0] == ':' {
		// Source prefix: clients are not expected to send one, but it
		// is parsed and kept so relayed lines round-trip.
		sp := strings.IndexByte(rest, ' ')
		if sp < 0 {
			return Command{}, false
		}
		cmd.Source = rest[1:sp]
		rest = strings.TrimLeft(rest[sp+1:], " ")
	}

	for rest != "" {
		if cmd.Verb != "" && rest[0] == ':' {
			cmd.Text = rest[1:]
			cmd.HasText = true
			break
		}
		tok := rest
		if sp := strings.IndexByte(rest, ' '); sp >= 0 {
			tok = rest[:sp]
			rest = strings.TrimLeft(rest[sp+1:], " ")
		} else {
			rest = ""
		}
		if cmd.Verb == "" {
			cmd.Verb = strings.ToUpper(tok)
		} else {
			cmd.Params = append(cmd.Params, tok)
		}
	}

	if cmd.Verb == "" {
		return Command{}, false
	}
	return cmd, true
}

// String serializes the command back to its wire shape, without the
// terminator. The trailing-parameter boundary is preserved: a command
// parsed with a trailing parameter serializes with one.
func (c Command) String() string {
	var b strings.Builder
	if c.Source != "" {
		b.WriteByte(':')
		b.WriteString(c.Source)
		b.WriteByte(' ')
	}
	b.WriteString(c.Verb)
	for _, p := range c.Params {
		b.WriteByte(' ')
		b.WriteString(p)
	}
	if c.HasText {
		b.WriteString(" :")
		b.WriteString(c.Text)
	}
	return b.String()
}
