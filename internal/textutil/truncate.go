package textutil

import (
	"strings"

	"github.com/rivo/uniseg"
)

// Truncate shortens s to at most n user-perceived characters, appending
// "..." when it cuts. Grapheme clusters are never split, which keeps
// Devanagari conjuncts readable.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 {
		return ""
	}
	if uniseg.GraphemeClusterCount(s) <= n {
		return s
	}
	var b strings.Builder
	state := -1
	rest := s
	for count := 0; count < n && rest != ""; count++ {
		var cluster string
		cluster, rest, _, state = uniseg.StepString(rest, state)
		b.WriteString(cluster)
	}
	return strings.TrimRight(b.String(), " ") + "..."
}

// Width returns the monospace display width of s.
func Width(s string) int {
	return uniseg.StringWidth(s)
}
