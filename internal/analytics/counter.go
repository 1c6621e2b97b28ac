package analytics

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// counter is an insertion-ordered tally. Ranking is a stable sort, so equal
// counts keep the order in which their keys were first seen.
type counter struct {
	order  []string
	counts map[string]int
	total  int
}

type tally struct {
	key   string
	count int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
	c.total++
}

// ranked returns tallies by descending count, truncated to limit when
// limit > 0.
func (c *counter) ranked(limit int) []tally {
	out := make([]tally, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, tally{key: k, count: c.counts[k]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].count > out[j].count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// groupKey is the case- and whitespace-insensitive grouping key.
func groupKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// capitalize upper-cases the first letter for display.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
