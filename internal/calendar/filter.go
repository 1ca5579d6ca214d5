package calendar

import (
	"time"

	"cmscal/internal/model"
)

// AllCategories is the sentinel category that clears the filter.
const AllCategories = "all"

// Filter returns the events of master whose category equals category, in
// master order, as fresh copies with Active cleared.
func Filter(master []model.Event, category string) []model.Event {
	out := make([]model.Event, 0, len(master))
	for _, ev := range master {
		if ev.Category != category {
			continue
		}
		ev.Active = false
		out = append(out, ev)
	}
	return out
}

// Upcoming keeps the events that start today or later, preserving order.
func Upcoming(events []model.Event, today time.Time) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if OnOrAfter(ev.Start, today) {
			out = append(out, ev)
		}
	}
	return out
}

func copyEvents(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	for i, ev := range events {
		ev.Active = false
		out[i] = ev
	}
	return out
}
