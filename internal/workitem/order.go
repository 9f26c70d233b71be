package workitem

import (
	"slices"
	"strings"
)

// Compare is the canonical ordering: status priority ascending, then
// lastModified descending, then slug ascending. It returns a negative
// number when a sorts before b.
func Compare(a, b WorkItem) int {
	if pa, pb := Priority(a.Kind, a.Status), Priority(b.Kind, b.Status); pa != pb {
		if pa < pb {
			return -1
		}
		return 1
	}
	if !a.LastModified.Equal(b.LastModified) {
		if a.LastModified.After(b.LastModified) {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Slug, b.Slug)
}

// Sort orders items in place using Compare. The comparator is a total order
// for distinct slugs, so the result does not depend on input order.
func Sort(items []WorkItem) {
	slices.SortFunc(items, Compare)
}

// Sorted returns a sorted copy of items.
func Sorted(items []WorkItem) []WorkItem {
	out := slices.Clone(items)
	Sort(out)
	return out
}
