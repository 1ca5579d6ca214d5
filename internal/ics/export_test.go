package ics

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"cmscal/internal/model"
)

func TestExportRoundTrip(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	events := []model.Event{
		{ID: 1, Name: "Gala", Start: day(10), Time: "7:00 pm", EndTime: "11:00 pm", Category: "Gala", Color: "#f00"},
		{ID: 2, Name: "Conference", Start: day(12), End: day(13), Description: "Two days"},
		{ID: 3, Name: "Drinks", Start: day(15), Time: "18:00"},
	}

	out := Export(events, "Events", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar: %v\n%s", err, out)
	}
	got := cal.Events()
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	if got[0].Id() != "1@cmscal" {
		t.Errorf("uid = %q", got[0].Id())
	}
	if p := got[0].GetProperty(ical.ComponentPropertySummary); p == nil || p.Value != "Gala" {
		t.Errorf("summary = %+v", p)
	}
	if p := got[0].GetProperty(ical.ComponentPropertyCategories); p == nil || p.Value != "Gala" {
		t.Errorf("categories = %+v", p)
	}

	if !strings.Contains(out, "DTSTART:20240110T190000Z") || !strings.Contains(out, "DTEND:20240110T230000Z") {
		t.Errorf("timed event range missing:\n%s", out)
	}
	if !strings.Contains(out, "DTSTART;VALUE=DATE:20240112") || !strings.Contains(out, "DTEND;VALUE=DATE:20240114") {
		t.Errorf("all-day range missing:\n%s", out)
	}
	if !strings.Contains(out, "DTEND:20240115T190000Z") {
		t.Errorf("default one hour duration missing:\n%s", out)
	}
}

func TestExportRichTextDescription(t *testing.T) {
	events := []model.Event{
		{ID: 1, Name: "Gala", Start: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Description: "<p>Black tie &amp; dinner</p>"},
		{ID: 2, Name: "Talk", Start: time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), Description: "Plain words"},
	}
	out := Export(events, "", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar: %v\n%s", err, out)
	}
	got := cal.Events()

	if p := got[0].GetProperty(ical.ComponentPropertyDescription); p == nil || p.Value != "Black tie & dinner" {
		t.Errorf("description = %+v", p)
	}
	alt := got[0].GetProperty(propertyAltDesc)
	if alt == nil || alt.Value != "<p>Black tie &amp; dinner</p>" {
		t.Fatalf("alt description = %+v", alt)
	}
	if ft := alt.ICalParameters[string(ical.ParameterFmttype)]; len(ft) != 1 || ft[0] != "text/html" {
		t.Errorf("FMTTYPE = %v", ft)
	}

	if p := got[1].GetProperty(ical.ComponentPropertyDescription); p == nil || p.Value != "Plain words" {
		t.Errorf("plain description = %+v", p)
	}
	if got[1].GetProperty(propertyAltDesc) != nil {
		t.Error("plain description should not carry X-ALT-DESC")
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Plain", "Plain"},
		{"<p>One</p><p>Two</p>", "One\nTwo"},
		{"Line<br>break", "Line\nbreak"},
		{"<strong>Bold</strong>   text &eacute;", "Bold text é"},
		{"<style>p{color:red}</style><p>Body</p>", "Body"},
		{"<ul><li>a</li><li>b</li></ul>", "a\nb"},
	}
	for _, tt := range tests {
		if got := plainText(tt.in); got != tt.want {
			t.Errorf("plainText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
