// Package refresh loads the event and category lists into the shared view,
// on demand and on a cron schedule.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"cmscal/internal/calendar"
	appLog "cmscal/internal/log"
	"cmscal/internal/model"
)

// Source is the backend the lists come from.
type Source interface {
	Events(ctx context.Context) ([]model.RawEvent, error)
	Categories(ctx context.Context) ([]model.RawCategory, error)
}

// Runner fetches both lists and applies them to a shared view.
type Runner struct {
	src   Source
	state *calendar.Shared
}

// NewRunner returns a Runner feeding state from src.
func NewRunner(src Source, state *calendar.Shared) *Runner {
	return &Runner{src: src, state: state}
}

// Refresh issues both fetches concurrently. Each result is applied as soon
// as it arrives, in whatever order; a failure is logged and recorded on the
// view without blocking the other list. Results that land after ctx is
// done are dropped. Refresh returns once both fetches have finished.
func (r *Runner) Refresh(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		events, err := r.src.Events(ctx)
		r.apply(ctx, calendar.SourceEvents, err, func(v *calendar.View) { v.SetEvents(events) })
	}()

	go func() {
		defer wg.Done()
		categories, err := r.src.Categories(ctx)
		r.apply(ctx, calendar.SourceCategories, err, func(v *calendar.View) { v.SetCategories(categories) })
	}()

	wg.Wait()
}

func (r *Runner) apply(ctx context.Context, src calendar.Source, err error, set func(v *calendar.View)) {
	if ctx.Err() != nil {
		appLog.Debug("discarding late fetch result", "source", string(src))
		return
	}
	if err != nil {
		appLog.Error("fetch failed", err, "source", string(src))
		r.state.Update(func(v *calendar.View) { v.SetFetchError(src, err) })
		return
	}
	r.state.Update(set)
}

// Schedule runs Refresh on the cron spec until ctx is cancelled. An empty
// spec disables scheduling.
func (r *Runner) Schedule(ctx context.Context, spec string, loc *time.Location) error {
	if spec == "" {
		appLog.Info("scheduled refresh disabled")
		return nil
	}
	if loc == nil {
		loc = time.Local
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, func() { r.Refresh(ctx) }); err != nil {
		return fmt.Errorf("refresh: invalid cron spec %q: %w", spec, err)
	}
	c.Start()
	appLog.Info("scheduled refresh started", "spec", spec, "timezone", loc.String())

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("scheduled refresh stopped")
	}()
	return nil
}
