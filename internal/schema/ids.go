package schema

import (
	"fmt"
	"strconv"
)

// NumericID returns the integer ordering key of a chapter id, if the id is
// a plain non-negative decimal number.
func NumericID(id string) (int, bool) {
	if id == "" {
		return 0, false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0, false
	}
	return n, true
}

// NextChapterID returns max(numeric ids) + 1, zero-padded to two digits.
// Non-numeric ids are ignored for the max but never cause a failure; taken
// reports ids that must not be reused (for example orphaned files on disk).
func NextChapterID(order []string, taken func(string) bool) string {
	highest := 0
	for _, id := range order {
		if n, ok := NumericID(id); ok && n > highest {
			highest = n
		}
	}
	inOrder := make(map[string]struct{}, len(order))
	for _, id := range order {
		inOrder[id] = struct{}{}
	}
	for n := highest + 1; ; n++ {
		id := fmt.Sprintf("%02d", n)
		if _, dup := inOrder[id]; dup {
			continue
		}
		if taken != nil && taken(id) {
			continue
		}
		return id
	}
}
