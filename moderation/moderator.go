// Package moderation filters censored words out of relayed message
// text. The match is resilient to leet-speak substitutions and to IRC
// formatting codes spliced into a word.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"

	"chat-relay/errors"
)

type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
}

type textMapping struct {
	normalized []rune
	origIdx    []int
}

// NewModerator builds the Aho-Corasick automaton over the normalized
// word list.
func NewModerator(censoredWords []string, censoredChar rune) (*Moderator, error) {
	if len(censoredWords) == 0 {
		return nil, errors.ErrEmptyWords
	}
	patterns := make([][]rune, len(censoredWords))
	for i, word := range censoredWords {
		patterns[i] = normalizeRunes([]rune(stripFormatting(word)))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, censoredChar: censoredChar}, nil
}

// Censor stars out every censored word found in text, preserving the
// original spacing and formatting bytes around the match. The second
// return reports whether anything was replaced.
func (m *Moderator) Censor(text string) (string, bool) {
	mapping := m.normalize(text)
	if len(mapping.normalized) == 0 {
		return text, false
	}

	origRunes := []rune(text)
	spans := m.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return text, false
	}

	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)
		if normStart < 0 || normEnd > len(mapping.origIdx) {
			continue
		}
		origStart := mapping.origIdx[normStart]
		origEnd := mapping.origIdx[normEnd-1] + 1
		for i := origStart; i < origEnd; i++ {
			origRunes[i] = m.censoredChar
		}
	}

	return string(origRunes), true
}

// normalize lowers the text into a searchable rune stream and keeps a
// map back to original rune positions.
func (m *Moderator) normalize(input string) textMapping {
	origRunes := []rune(input)
	norm := make([]rune, 0, len(origRunes))
	origIdx := make([]int, 0, len(origRunes))

	skipColor := 0
	for i, r := range origRunes {
		if skipColor > 0 && (unicode.IsDigit(r) || r == ',') {
			skipColor--
			continue
		}
		skipColor = 0
		if r == colorCode {
			// Color code may carry up to "NN,NN" after it.
			skipColor = 5
			continue
		}
		if isFormatting(r) {
			continue
		}
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	return textMapping{normalized: norm, origIdx: origIdx}
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// IRC formatting control codes.
const (
	boldCode      = '\x02'
	colorCode     = '\x03'
	resetCode     = '\x0f'
	reverseCode   = '\x16'
	italicCode    = '\x1d'
	underlineCode = '\x1f'
)

func isFormatting(r rune) bool {
	switch r {
	case boldCode, colorCode, resetCode, reverseCode, italicCode, underlineCode:
		return true
	}
	return false
}

func stripFormatting(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if !isFormatting(r) {
			out = append(out, r)
		}
	}
	return string(out)
}

// simplifyRune maps common leet-speak characters back to their standard
// alphabet counterparts.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

// isNoise identifies characters ignored during pattern matching.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
