package service

import (
	"sort"
	"time"

	"scheduleai/internal/model"
)

// DefaultUpcomingLimit is how many projected events the upcoming list shows.
const DefaultUpcomingLimit = 3

// ProjectWeek maps template events onto the next seven calendar days
// starting at now's date. Each weekday is visited exactly once, so a template
// event yields at most one occurrence. Occurrences starting at or before now
// are dropped. The result is sorted by start; ties keep template order.
func ProjectWeek(events []model.ScheduleEvent, now time.Time) []model.ScheduleEvent {
	loc := now.Location()
	var out []model.ScheduleEvent
	for d := 0; d < 7; d++ {
		target := now.AddDate(0, 0, d)
		year, month, day := target.Date()
		for _, ev := range events {
			if ev.Start.Weekday() != target.Weekday() {
				continue
			}
			hour, minute, second := ev.Start.Clock()
			start := time.Date(year, month, day, hour, minute, second, 0, loc)
			if !start.After(now) {
				continue
			}
			projected := ev
			projected.Start = start
			projected.End = start.Add(ev.Duration())
			out = append(out, projected)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// Upcoming returns the first limit projected events. A non-positive limit
// means DefaultUpcomingLimit.
func Upcoming(events []model.ScheduleEvent, now time.Time, limit int) []model.ScheduleEvent {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	projected := ProjectWeek(events, now)
	if len(projected) > limit {
		projected = projected[:limit]
	}
	return projected
}
