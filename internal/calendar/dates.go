package calendar

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Date layouts the backend's date picker is known to emit.
var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	"02/01/2006",
}

// ParseDate parses a backend date string as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized date " + strconv.Quote(s))
}

// ParseClock reads a time-of-day such as "19:00", "7:00 pm", "7.30pm" or
// "7pm" and returns hour and minute.
func ParseClock(s string) (hour, minute int, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, 0, false
	}

	meridiem := ""
	for _, suffix := range []string{"am", "pm", "a.m.", "p.m."} {
		if strings.HasSuffix(s, suffix) {
			meridiem = suffix[:1]
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}

	hs, ms, found := strings.Cut(strings.ReplaceAll(s, ".", ":"), ":")
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, false
	}
	m := 0
	if found {
		if len(ms) > 2 {
			ms = ms[:2]
		}
		if m, err = strconv.Atoi(ms); err != nil {
			return 0, 0, false
		}
	}

	switch meridiem {
	case "a":
		if h == 12 {
			h = 0
		}
	case "p":
		if h < 12 {
			h += 12
		}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// At composes a date with a clock string; a missing or unreadable clock
// means midnight.
func At(date time.Time, clock string) time.Time {
	h, m, ok := ParseClock(clock)
	if !ok {
		h, m = 0, 0
	}
	return time.Date(date.Year(), date.Month(), date.Day(), h, m, 0, 0, date.Location())
}

// DayOf truncates t to midnight in its own location.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// OnOrAfter reports whether date falls on today's calendar day or later.
func OnOrAfter(date, today time.Time) bool {
	today = today.In(date.Location())
	return !DayOf(date).Before(DayOf(today))
}

// FormatDate renders a date for display, e.g. "Wednesday 10 January 2024".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Monday 2 January 2006")
}
