package calendar

import (
	"slices"

	"cmscal/internal/model"
)

// SortMode selects how two events are compared.
type SortMode string

const (
	// SortLegacy compares the left event's start+time with the right event's
	// start+endTime. This reproduces the ordering users already see and is
	// kept until product confirms the symmetric order.
	SortLegacy SortMode = "legacy"
	// SortSymmetric compares each event's own start+time.
	SortSymmetric SortMode = "symmetric"
)

// ParseSortMode maps a config value to a SortMode, defaulting to legacy.
func ParseSortMode(s string) SortMode {
	if SortMode(s) == SortSymmetric {
		return SortSymmetric
	}
	return SortLegacy
}

// Sort returns a stably sorted copy of events in ascending chronological
// order. Events with equal instants keep their input order.
func Sort(events []model.Event, mode SortMode) []model.Event {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b model.Event) int {
		right := b.Time
		if mode != SortSymmetric {
			right = b.EndTime
		}
		return At(a.Start, a.Time).Compare(At(b.Start, right))
	})
	return out
}
