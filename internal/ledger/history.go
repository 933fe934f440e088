package ledger

import (
	"strconv"
	"strings"
)

// History returns the lines between the 1-based inclusive bounds and the
// 0-based offset of the first returned line. Nil bounds mean "from the start"
// and "to the end". Invalid or inverted ranges yield an empty slice at offset 0.
func (l *Ledger) History(from, to *int) ([]string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if from == nil && to == nil {
		return cloneLines(l.history), 0
	}

	n := len(l.history)
	start := 0
	if from != nil {
		start = *from - 1
	}
	end := n
	if to != nil {
		end = *to
	}

	if start < 0 || (start >= n && n > 0) {
		return []string{}, 0
	}
	if end > n {
		end = n
	}
	if start >= end {
		return []string{}, 0
	}
	return cloneLines(l.history[start:end]), start
}

func cloneLines(lines []string) []string {
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}

// ParseBound turns a raw history bound into a *int. Blank input is "no bound";
// anything non-numeric is reported as invalid so callers can drop the filter.
func ParseBound(raw string) (*int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, false
	}
	return &n, true
}

// ParseRange parses both bounds. If either is non-numeric the whole filter is
// dropped and valid is false: the caller shows everything with a warning.
func ParseRange(rawFrom, rawTo string) (from, to *int, valid bool) {
	from, okFrom := ParseBound(rawFrom)
	to, okTo := ParseBound(rawTo)
	if !okFrom || !okTo {
		return nil, nil, false
	}
	return from, to, true
}
