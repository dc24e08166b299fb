// Package filter selects the events that get posted.
package filter

import (
	"log/slog"
	"slices"
	"time"

	"events_bot/internal/model"
)

// WindowDays is the number of whole days ahead of the reference time that
// are still considered upcoming.
const WindowDays = 7

const day = 24 * time.Hour

// Upcoming returns the events whose start lies within the posting window of
// ref, ordered by start time. Events with equal start times keep their input
// order.
//
// The window is measured in whole days, truncated towards negative infinity:
// an event 7 days and 23 hours away is still included, an event one hour in
// the past is not.
func Upcoming(events []model.Event, ref time.Time, log *slog.Logger) []model.FilteredEvent {
	ref = ref.UTC()
	var out []model.FilteredEvent
	for i, ev := range events {
		if ev.StartDateTimeUTC == "" {
			continue
		}
		start, err := time.Parse(model.StartLayout, ev.StartDateTimeUTC)
		if err != nil {
			log.Warn("skip event with invalid start time",
				"index", i, "event", ev.EventName, "start", ev.StartDateTimeUTC, "error", err)
			continue
		}
		if d := DaysUntil(ref, start); d < 0 || d > WindowDays {
			continue
		}
		out = append(out, model.FilteredEvent{Event: ev, Start: start})
	}

	slices.SortStableFunc(out, func(a, b model.FilteredEvent) int {
		return a.Start.Compare(b.Start)
	})
	return out
}

// DaysUntil returns the number of whole days from ref to t, rounded down.
func DaysUntil(ref, t time.Time) int {
	delta := t.Sub(ref)
	days := delta / day
	if delta%day < 0 {
		days--
	}
	return int(days)
}
