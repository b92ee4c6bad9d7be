package domain

import (
	"fmt"
	"math/rand"
)

const placeholderLen = 7

func randomID() string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, placeholderLen)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

// Hostmask builds the source prefix a participant appears under on the
// wire, e.g. "alice!alice@host.example".
func Hostmask(nick, user, host string) string {
	return fmt.Sprintf("%s!%s@%s", nick, user, host)
}
