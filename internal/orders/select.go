package orders

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// LatestPerOrder keeps the newest event of every order.
// The result follows the order in which each order id was first seen,
// so newest-first input yields the most recently touched orders first.
func LatestPerOrder(events []Event) []Event {
	index := make(map[string]int, len(events))
	out := make([]Event, 0, len(events))
	for _, e := range events {
		i, seen := index[e.OrderID]
		if !seen {
			index[e.OrderID] = len(out)
			out = append(out, e)
			continue
		}
		if e.CreatedAt.After(out[i].CreatedAt) {
			out[i] = e
		}
	}
	return out
}

// FirstPerOrder keeps the first event encountered for every order.
func FirstPerOrder(events []Event) []Event {
	seen := make(map[string]struct{}, len(events))
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if _, ok := seen[e.OrderID]; ok {
			continue
		}
		seen[e.OrderID] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Completed returns events whose status is Completed, one per order.
func Completed(events []Event) []Event {
	var done []Event
	for _, e := range events {
		if e.Data.Status == StatusCompleted {
			done = append(done, e)
		}
	}
	return FirstPerOrder(done)
}

// CompletedOrders counts distinct orders with a Completed event.
func CompletedOrders(events []Event) int {
	return len(Completed(events))
}

// NormalizeStatusQuery trims whitespace and one pair of surrounding quotes.
// A lone quote character is an empty query.
func NormalizeStatusQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == `"` || q == "'" {
		return ""
	}
	if len(q) >= 2 {
		first, last := q[0], q[len(q)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			q = strings.TrimSpace(q[1 : len(q)-1])
		}
	}
	return q
}

// MatchStatus returns events whose status contains query, ignoring case.
func MatchStatus(events []Event, query string) []Event {
	q := strings.ToLower(NormalizeStatusQuery(query))
	if q == "" {
		return nil
	}
	var out []Event
	for _, e := range events {
		if strings.Contains(strings.ToLower(e.Data.Status), q) {
			out = append(out, e)
		}
	}
	return out
}

// InLocation returns a copy of events with CreatedAt in loc.
func InLocation(events []Event, loc *time.Location) []Event {
	out := make([]Event, len(events))
	for i, e := range events {
		e.CreatedAt = e.CreatedAt.In(loc)
		out[i] = e
	}
	return out
}

// OfType returns events of the given type, preserving order.
func OfType(events []Event, t EventType) []Event {
	var out []Event
	for _, e := range events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// TypeCount is the number of events of one type.
type TypeCount struct {
	Type  EventType
	Count int
}

// CountByType tallies events per type, most frequent first, ties by name.
func CountByType(events []Event) []TypeCount {
	counts := make(map[EventType]int)
	for _, e := range events {
		counts[e.Type]++
	}
	out := make([]TypeCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, TypeCount{Type: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// Truncate shortens s to n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
