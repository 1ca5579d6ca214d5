// Package calendar turns backend records into display-ready events and
// holds the view state (category filter, selected event, panel) that the
// rendering layer drives through callbacks.
package calendar

import (
	"fmt"
	"time"

	appLog "cmscal/internal/log"
	"cmscal/internal/model"
)

// Swatch is one entry of the resolved colour set handed to the renderer.
type Swatch struct {
	Name   string `json:"name"`
	Colour string `json:"colour"`
	Class  string `json:"class"`
}

// Palette lists category colours in backend order together with the CSS
// class assigned to each position.
func Palette(categories []model.RawCategory) []Swatch {
	out := make([]Swatch, 0, len(categories))
	for i, c := range categories {
		out = append(out, Swatch{
			Name:   c.Name,
			Colour: c.Colour,
			Class:  colorClass(i),
		})
	}
	return out
}

func colorClass(i int) string {
	return fmt.Sprintf("highlighted%d", i)
}

// Normalize maps raw records to events, resolving each event's colour by
// exact category name. It always builds a fresh list; callers run it only
// once both inputs are present.
//
// Records whose start date is missing or unreadable are skipped and logged.
// Every other malformed field resolves to "absent".
func Normalize(events []model.RawEvent, categories []model.RawCategory, loc *time.Location) []model.Event {
	if loc == nil {
		loc = time.Local
	}

	index := make(map[string]int, len(categories))
	for i, c := range categories {
		// First category with a given name wins.
		if _, dup := index[c.Name]; !dup {
			index[c.Name] = i
		}
	}

	out := make([]model.Event, 0, len(events))
	for _, raw := range events {
		start, err := ParseDate(raw.ACF.DateFrom, loc)
		if err != nil {
			appLog.Warn("skipping event without usable start date", "id", raw.ID, "date_from", raw.ACF.DateFrom)
			continue
		}

		ev := model.Event{
			ID:          raw.ID,
			Name:        raw.ACF.Title,
			Start:       start,
			Time:        raw.ACF.Time,
			EndTime:     raw.ACF.TimeEnd,
			Image:       raw.ACF.ImageURL,
			Description: raw.ACF.Description,
			Category:    raw.ACF.Category,
		}
		if end, err := ParseDate(raw.ACF.DateTo, loc); err == nil {
			ev.End = end
		}

		if ev.Category != "" {
			if i, ok := index[ev.Category]; ok {
				ev.ColorName = categories[i].Colour
				ev.Color = categories[i].Colour
				ev.ColorClass = colorClass(i)
			}
		}

		out = append(out, ev)
	}
	return out
}
