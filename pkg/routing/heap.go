package routing

import "math"

// MinHeap is the search frontier: a binary heap of (state, priority) entries.
// Equal priorities pop in ascending state order so searches over the same
// graph always settle nodes, and therefore break ties, identically.
type MinHeap struct {
	items []PQItem
}

// PQItem is a frontier entry.
type PQItem struct {
	State    uint32
	Priority float64
}

func (a PQItem) before(b PQItem) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.State < b.State
}

func (h *MinHeap) Len() int { return len(h.items) }

// Push adds state. Stale duplicates are left in place and skipped by the caller.
func (h *MinHeap) Push(state uint32, priority float64) {
	h.items = append(h.items, PQItem{State: state, Priority: priority})
	for i := len(h.items) - 1; i > 0; {
		up := (i - 1) / 2
		if !h.items[i].before(h.items[up]) {
			break
		}
		h.items[i], h.items[up] = h.items[up], h.items[i]
		i = up
	}
}

// Pop removes and returns the first entry. The heap must not be empty.
func (h *MinHeap) Pop() PQItem {
	top := h.items[0]
	last := len(h.items) - 1
	h.items[0] = h.items[last]
	h.items = h.items[:last]

	for i := 0; ; {
		first := i
		for _, c := range [2]int{2*i + 1, 2*i + 2} {
			if c < last && h.items[c].before(h.items[first]) {
				first = c
			}
		}
		if first == i {
			break
		}
		h.items[i], h.items[first] = h.items[first], h.items[i]
		i = first
	}
	return top
}

// PeekPriority returns the smallest priority, or +Inf when empty.
func (h *MinHeap) PeekPriority() float64 {
	if len(h.items) == 0 {
		return math.Inf(1)
	}
	return h.items[0].Priority
}
