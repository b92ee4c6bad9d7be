package domain

import (
	"regexp"
	"strings"
)

// Wire grammars for names. Nicknames are 1-30 characters, start with a
// letter or one of the IRC special characters, and never with a digit.
// Channel names start with '#' or '&' and exclude whitespace, commas
// and control characters.
var (
	nicknameRe = regexp.MustCompile("^[a-zA-Z\\[\\]\\\\`_^{|}][a-zA-Z0-9\\[\\]\\\\`_^{|}\\-]{0,29}$")
	channelRe  = regexp.MustCompile(`^[#&][^\s,\x00-\x1f]{1,49}$`)
)

func IsValidNickname(nick string) bool {
	return nicknameRe.MatchString(nick)
}

func IsValidChannel(channel string) bool {
	return channelRe.MatchString(channel)
}

// Normalize folds a nickname or channel name to its registry key.
// Name comparisons are case-insensitive everywhere in the relay.
func Normalize(name string) string {
	return strings.ToLower(name)
}
