// Package printdoc builds the printable list of upcoming events and drives
// the one-shot print interaction on an output surface.
package printdoc

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"cmscal/internal/calendar"
	"cmscal/internal/model"
)

// NoEventsMessage is written when nothing upcoming is visible.
const NoEventsMessage = "No upcoming events available."

// Options customise the generated document.
type Options struct {
	Title      string
	Heading    string
	CloseDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = "Calendar All Events Print"
	}
	if o.Heading == "" {
		o.Heading = "All Calendar Events"
	}
	if o.CloseDelay <= 0 {
		o.CloseDelay = 500 * time.Millisecond
	}
	return o
}

type docEvent struct {
	Name        string
	Start       string
	End         string
	Time        string
	EndTime     string
	Description template.HTML
}

type docData struct {
	Title        string
	Heading      string
	Events       []docEvent
	Empty        string
	CloseDelayMs int64
}

var docTemplate = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
      body {
        font-family: Arial, sans-serif;
        padding: 20px;
        margin: 0;
      }
      h1 {
        text-align: center;
        margin-bottom: 30px;
      }
      .event {
        margin: 20px 0;
        border-bottom: 1px solid #cccccc;
        padding-bottom: 10px;
      }
      .event-title {
        font-weight: bold;
        font-size: 20px;
      }
      .event-date {
        font-size: 15px;
        color: #555;
      }
      .event-description {
        color: #555;
      }
      @media print {
        body {
          width: 100%;
          margin: 0;
          padding: 15px;
        }
      }
    </style>
  </head>
  <body>
    <h1>{{.Heading}}</h1>
{{- range .Events}}
    <div class="event">
      <div class="event-title">{{.Name}}</div>
      <div class="event-date">
        <span>{{.Start}}</span>{{if .End}} - {{.End}}{{end}}{{if .Time}} | {{.Time}}{{end}}{{if .EndTime}} - {{.EndTime}}{{end}}
      </div>
{{- if .Description}}
      <div class="event-description">{{.Description}}</div>
{{- end}}
    </div>
{{- else}}
    <p>{{.Empty}}</p>
{{- end}}
    <script>
      window.onload = function() {
        window.print();
        setTimeout(function() {
          window.close();
        }, {{.CloseDelayMs}});
      }
    </script>
  </body>
</html>
`))

// Build renders the print document for the events of visible that start on
// or after today's date, in their existing order. Absent fields are left
// out of the output. Descriptions come from the backend's rich-text field
// and are emitted as HTML; every other value is escaped.
func Build(visible []model.Event, today time.Time, opts Options) ([]byte, error) {
	opts = opts.withDefaults()
	upcoming := calendar.Upcoming(visible, today)

	data := docData{
		Title:        opts.Title,
		Heading:      opts.Heading,
		Events:       make([]docEvent, 0, len(upcoming)),
		Empty:        NoEventsMessage,
		CloseDelayMs: opts.CloseDelay.Milliseconds(),
	}
	for _, ev := range upcoming {
		de := docEvent{
			Name:        ev.Name,
			Start:       calendar.FormatDate(ev.Start),
			Time:        ev.Time,
			EndTime:     ev.EndTime,
			Description: template.HTML(ev.Description),
		}
		if ev.HasEnd() {
			de.End = calendar.FormatDate(ev.End)
		}
		data.Events = append(data.Events, de)
	}

	var buf bytes.Buffer
	if err := docTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("printdoc: render: %w", err)
	}
	return buf.Bytes(), nil
}
