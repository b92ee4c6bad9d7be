package internal

import (
	"os"
	"strings"
)

const motdWidth = 70

// LoadMotd reads the message of the day and wraps it to fit classic
// client widths. A missing path or unreadable file yields no MOTD, not
// an error; the relay answers 422 in that case.
func LoadMotd(path string) []string {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var out []string
	for _, line := range strings.Split(strings.TrimRight(string(raw), "\n"), "\n") {
		out = append(out, WrapLine(line, motdWidth)...)
	}
	return out
}

// WrapLine greedily wraps one line on word boundaries. Words longer
// than the width stay unbroken on their own line.
func WrapLine(line string, width int) []string {
	words := strings.Fields(line)
	if len(words) == 0 {
		return []string{""}
	}
	var out []string
	current := words[0]
	for _, w := range words[1:] {
		if len(current)+1+len(w) > width {
			out = append(out, current)
			current = w
			continue
		}
		current += " " + w
	}
	return append(out, current)
}

// LoadWords reads the moderation word list, one word per line. Blank
// lines and #-comments are skipped.
func LoadWords(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var words []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return words, nil
}
