package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// RawEvent is an event record as delivered by the content backend, before
// normalization. Custom fields live under "acf".
type RawEvent struct {
	ID  int         `json:"id"`
	ACF RawEventACF `json:"acf"`
}

// RawEventACF holds the custom fields of an event record. The backend emits
// false, null or "" for empty fields; all optional fields decode leniently.
type RawEventACF struct {
	Title       string
	DateFrom    string
	DateTo      string
	Time        string
	TimeEnd     string
	ImageURL    string
	Description string
	// Category is the name of the first category reference, if any.
	Category string
}

// RawCategory is a category record carrying a colour token.
type RawCategory struct {
	ID     int
	Name   string
	Colour string
}

// Event is the display-ready entity produced by normalization.
// Optional values are empty strings / zero times when absent.
type Event struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end,omitzero"`
	Time        string    `json:"time,omitempty"`
	EndTime     string    `json:"end_time,omitempty"`
	Image       string    `json:"image,omitempty"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	ColorName   string    `json:"color_name,omitempty"`
	Color       string    `json:"color,omitempty"`
	ColorClass  string    `json:"color_class,omitempty"`

	// Active marks the event currently shown in the detail view.
	Active bool `json:"active"`
}

// HasEnd reports whether an end date was supplied.
func (e Event) HasEnd() bool {
	return !e.End.IsZero()
}

func (a *RawEventACF) UnmarshalJSON(data []byte) error {
	// "acf": false on records without custom fields.
	if isEmptyJSON(data) || data[0] != '{' {
		*a = RawEventACF{}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*a = RawEventACF{}
		return nil
	}

	a.Title = lenientString(raw["title"])
	a.DateFrom = lenientString(raw["date_from"])
	a.DateTo = lenientString(raw["date_to"])
	a.Time = lenientString(raw["time"])
	a.TimeEnd = lenientString(raw["time_end"])
	a.Description = lenientString(raw["description"])
	a.ImageURL = imageURL(raw["image"])
	a.Category = firstCategoryName(raw["category"])
	return nil
}

func (c *RawCategory) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = RawCategory{}
	if id, err := strconv.Atoi(lenientString(raw["id"])); err == nil {
		c.ID = id
	}
	c.Name = lenientString(raw["name"])

	if acf := raw["acf"]; len(acf) > 0 && acf[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(acf, &fields); err == nil {
			c.Colour = lenientString(fields["colour"])
			if c.Colour == "" {
				c.Colour = lenientString(fields["color"])
			}
		}
	}
	if c.Colour == "" {
		c.Colour = lenientString(raw["colour"])
	}
	if c.Colour == "" {
		c.Colour = lenientString(raw["color"])
	}
	return nil
}

func (c RawCategory) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID     int    `json:"id"`
		Name   string `json:"name"`
		Colour string `json:"colour"`
	}{c.ID, c.Name, c.Colour})
}

func isEmptyJSON(data []byte) bool {
	d := bytes.TrimSpace(data)
	return len(d) == 0 || bytes.Equal(d, []byte("null")) || bytes.Equal(d, []byte("false"))
}

// lenientString returns strings as-is, numbers in their literal form and
// anything else (false, null, objects) as "".
func lenientString(data json.RawMessage) string {
	if isEmptyJSON(data) {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return n.String()
	}
	return ""
}

// imageURL accepts {"url": "..."} or a bare URL string.
func imageURL(data json.RawMessage) string {
	if isEmptyJSON(data) {
		return ""
	}
	var obj struct {
		URL json.RawMessage `json:"url"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return lenientString(obj.URL)
	}
	return lenientString(data)
}

// firstCategoryName accepts [{"name": "..."}], {"name": "..."} or a bare
// string and returns the first name.
func firstCategoryName(data json.RawMessage) string {
	if isEmptyJSON(data) {
		return ""
	}
	type ref struct {
		Name json.RawMessage `json:"name"`
	}
	var list []ref
	if err := json.Unmarshal(data, &list); err == nil {
		if len(list) == 0 {
			return ""
		}
		return lenientString(list[0].Name)
	}
	var one ref
	if err := json.Unmarshal(data, &one); err == nil {
		return lenientString(one.Name)
	}
	return lenientString(data)
}
