// Package ics exports calendar events as an iCalendar feed.
package ics

import (
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"cmscal/internal/calendar"
	"cmscal/internal/model"
)

const ProductID = "-//cmscal//Events//EN"

// propertyAltDesc carries the original rich-text description for clients
// that render HTML.
const propertyAltDesc ical.ComponentProperty = "X-ALT-DESC"

// defaultDuration is used for timed events without an end time.
const defaultDuration = time.Hour

// UID is the stable iCalendar UID for an event.
func UID(id int) string {
	return strconv.Itoa(id) + "@cmscal"
}

// Export serializes events as a VCALENDAR. Events without a time are
// all-day and span through their end date when one is given. Timed events
// end at the end time (on the end date if present) or one hour later.
func Export(events []model.Event, name string, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, ev := range events {
		ve := cal.AddEvent(UID(ev.ID))
		ve.SetDtStampTime(stamp)
		ve.SetSummary(ev.Name)
		if ev.Description != "" {
			ve.SetDescription(plainText(ev.Description))
			if hasMarkup(ev.Description) {
				ve.SetProperty(propertyAltDesc, ev.Description, ical.WithFmtType("text/html"))
			}
		}
		if ev.Category != "" {
			ve.AddCategory(ev.Category)
		}
		if ev.Color != "" {
			ve.SetColor(ev.Color)
		}
		if ev.Image != "" {
			ve.AddAttachment(ev.Image)
		}

		if _, _, ok := calendar.ParseClock(ev.Time); !ok {
			last := ev.Start
			if ev.HasEnd() && ev.End.After(last) {
				last = ev.End
			}
			ve.SetAllDayStartAt(ev.Start)
			// DTEND is exclusive for all-day events.
			ve.SetAllDayEndAt(last.AddDate(0, 0, 1))
			continue
		}

		start := calendar.At(ev.Start, ev.Time)
		end := start.Add(defaultDuration)
		if _, _, ok := calendar.ParseClock(ev.EndTime); ok {
			endDay := ev.Start
			if ev.HasEnd() {
				endDay = ev.End
			}
			if e := calendar.At(endDay, ev.EndTime); e.After(start) {
				end = e
			}
		}
		ve.SetStartAt(start)
		ve.SetEndAt(end)
	}

	return cal.Serialize()
}
