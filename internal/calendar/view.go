package calendar

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	appLog "cmscal/internal/log"
	"cmscal/internal/model"
)

// Status is the loading state of the view.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Source names one of the two backend lists.
type Source string

const (
	SourceEvents     Source = "events"
	SourceCategories Source = "categories"
)

// View holds the derived event lists and the user-facing state: category
// filter, selected event and panel visibility. Selection and panel
// visibility are independent; "panel open, nothing selected" is the
// timeline view.
//
// A View is single-owner and not safe for concurrent use.
type View struct {
	loc  *time.Location
	mode SortMode

	rawEvents      []model.RawEvent
	rawCategories  []model.RawCategory
	haveEvents     bool
	haveCategories bool
	fetchErrs      map[Source]error

	palette []Swatch
	master  []model.Event
	visible []model.Event

	filter    string
	selected  *model.Event
	panelOpen bool
}

// NewView returns an empty view in the loading state.
func NewView(loc *time.Location, mode SortMode) *View {
	if loc == nil {
		loc = time.Local
	}
	return &View{
		loc:       loc,
		mode:      mode,
		fetchErrs: make(map[Source]error),
	}
}

// Location is the zone dates are interpreted in.
func (v *View) Location() *time.Location {
	return v.loc
}

// SetEvents replaces the raw event list and recomputes when possible.
func (v *View) SetEvents(raw []model.RawEvent) {
	v.rawEvents = slices.Clone(raw)
	v.haveEvents = true
	delete(v.fetchErrs, SourceEvents)
	v.rebuild()
}

// SetCategories replaces the raw category list and recomputes when possible.
func (v *View) SetCategories(raw []model.RawCategory) {
	v.rawCategories = slices.Clone(raw)
	v.haveCategories = true
	delete(v.fetchErrs, SourceCategories)
	v.rebuild()
}

// SetFetchError records a failed fetch. Data from earlier successful
// fetches is kept.
func (v *View) SetFetchError(src Source, err error) {
	if err == nil {
		return
	}
	v.fetchErrs[src] = err
}

// Status reports ready once a master list exists, failed if a fetch has
// failed before that, loading otherwise.
func (v *View) Status() Status {
	switch {
	case v.master != nil:
		return StatusReady
	case len(v.fetchErrs) > 0:
		return StatusFailed
	default:
		return StatusLoading
	}
}

// Err joins the outstanding fetch errors, or returns nil.
func (v *View) Err() error {
	var errs []error
	for _, src := range []Source{SourceEvents, SourceCategories} {
		if err, ok := v.fetchErrs[src]; ok {
			errs = append(errs, fmt.Errorf("%s: %w", src, err))
		}
	}
	return errors.Join(errs...)
}

// rebuild recomputes master and visible from scratch. Nothing happens until
// both raw lists are present.
func (v *View) rebuild() {
	if !v.haveEvents || !v.haveCategories {
		return
	}

	v.palette = Palette(v.rawCategories)
	v.master = Sort(Normalize(v.rawEvents, v.rawCategories, v.loc), v.mode)
	v.visible = copyEvents(v.master)
	if v.filter != "" {
		v.applyFilter()
	}

	// Keep a selection that survives the rebuild.
	if v.selected != nil {
		id := v.selected.ID
		v.selected = nil
		v.markActive(id)
	}

	appLog.Debug("calendar rebuilt", "events", len(v.master), "visible", len(v.visible), "filter", v.filter)
}

func (v *View) applyFilter() {
	if v.master == nil {
		return
	}
	v.visible = Filter(v.master, v.filter)
}

// SelectCategory handles a category click. "all" clears the filter and the
// selection and opens the timeline; any other name filters the visible list
// and opens the panel.
func (v *View) SelectCategory(name string) {
	if name == "" {
		return
	}
	if name == AllCategories {
		v.filter = ""
		v.visible = copyEvents(v.master)
		v.selected = nil
		v.panelOpen = true
		return
	}
	v.filter = name
	v.panelOpen = true
	v.applyFilter()
}

// SelectEvent shows one event in detail. id is compared with the event ID
// in its decimal form; an id not present in the visible list leaves no
// event selected.
func (v *View) SelectEvent(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		n = -1
	}
	v.selected = nil
	v.markActive(n)
	v.panelOpen = true
}

// markActive sets Active on the visible event with the given ID and clears
// it everywhere else.
func (v *View) markActive(id int) {
	for i := range v.visible {
		v.visible[i].Active = v.visible[i].ID == id
		if v.visible[i].Active {
			sel := v.visible[i]
			v.selected = &sel
		}
	}
}

// Back leaves the detail view. The panel stays as it is.
func (v *View) Back() {
	v.selected = nil
	for i := range v.visible {
		v.visible[i].Active = false
	}
}

// ViewAll opens the panel without touching the selection.
func (v *View) ViewAll() {
	v.panelOpen = true
}

// CloseOnOutsideInteraction closes the panel; selection and filter stay.
func (v *View) CloseOnOutsideInteraction() {
	v.panelOpen = false
}

// Master returns a copy of the full sorted list, or nil while loading.
func (v *View) Master() []model.Event {
	if v.master == nil {
		return nil
	}
	return copyEvents(v.master)
}

// Visible returns a copy of the visible list including Active flags.
func (v *View) Visible() []model.Event {
	return slices.Clone(v.visible)
}

// Filter returns the current category filter, "" for none.
func (v *View) Filter() string {
	return v.filter
}

// Selected returns the event shown in detail, if any.
func (v *View) Selected() (model.Event, bool) {
	if v.selected == nil {
		return model.Event{}, false
	}
	return *v.selected, true
}

// PanelOpen reports whether the side panel is shown.
func (v *View) PanelOpen() bool {
	return v.panelOpen
}

// Palette returns the resolved colour set.
func (v *View) Palette() []Swatch {
	return slices.Clone(v.palette)
}

// TimelineEntry is one row of the panel's timeline.
type TimelineEntry struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Date   string `json:"date"`
	Time   string `json:"time,omitempty"`
	Colour string `json:"colour,omitempty"`
}

// Detail is the panel body for a single selected event.
type Detail struct {
	ID          int    `json:"id"`
	Image       string `json:"image,omitempty"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	DateEnd     string `json:"date_end,omitempty"`
	Time        string `json:"time,omitempty"`
	TimeEnd     string `json:"time_end,omitempty"`
	Colour      string `json:"colour,omitempty"`
	Description string `json:"description,omitempty"`
}

// Panel is what the side panel renders: a detail when an event is
// selected, otherwise the timeline of upcoming visible events.
type Panel struct {
	Open     bool            `json:"open"`
	Detail   *Detail         `json:"detail,omitempty"`
	Timeline []TimelineEntry `json:"timeline,omitempty"`
}

// Panel builds the panel body relative to today.
func (v *View) Panel(today time.Time) Panel {
	p := Panel{Open: v.panelOpen}
	if ev, ok := v.Selected(); ok {
		d := &Detail{
			ID:          ev.ID,
			Image:       ev.Image,
			Title:       ev.Name,
			Date:        FormatDate(ev.Start),
			Time:        ev.Time,
			TimeEnd:     ev.EndTime,
			Colour:      ev.Color,
			Description: ev.Description,
		}
		if ev.HasEnd() {
			d.DateEnd = FormatDate(ev.End)
		}
		p.Detail = d
		return p
	}

	upcoming := Upcoming(v.visible, today)
	p.Timeline = make([]TimelineEntry, 0, len(upcoming))
	for _, ev := range upcoming {
		p.Timeline = append(p.Timeline, TimelineEntry{
			ID:     ev.ID,
			Title:  ev.Name,
			Date:   FormatDate(ev.Start),
			Time:   ev.Time,
			Colour: ev.Color,
		})
	}
	return p
}
