package story

import (
	"strings"
	"unicode"
)

// SplitSentences breaks prose into sentences. A run of terminators ends a
// sentence unless it is followed by whitespace and then a lowercase letter or
// an opening double quote, or by a non-space character (decimals, initials).
// Closing quotes directly after the terminators stay with the sentence. A
// trailing fragment without a terminator becomes the final sentence.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	emit := func(segment []rune) {
		if trimmed := strings.TrimSpace(string(segment)); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		end := i + 1
		for end < len(runes) && isTerminator(runes[end]) {
			end++
		}
		for end < len(runes) && isClosingQuote(runes[end]) {
			end++
		}
		i = end - 1
		if continuesSentence(runes, end) {
			continue
		}
		emit(runes[start:end])
		start = end
	}
	if start < len(runes) {
		emit(runes[start:])
	}
	return out
}

func continuesSentence(runes []rune, pos int) bool {
	if pos >= len(runes) {
		return false
	}
	if !unicode.IsSpace(runes[pos]) {
		return true
	}
	j := pos
	for j < len(runes) && unicode.IsSpace(runes[j]) {
		j++
	}
	if j >= len(runes) {
		return false
	}
	next := runes[j]
	return unicode.IsLower(next) || next == '"' || next == '“'
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '।':
		return true
	default:
		return false
	}
}

func isClosingQuote(r rune) bool {
	switch r {
	case '"', '”', '\'', '’', ')':
		return true
	default:
		return false
	}
}
