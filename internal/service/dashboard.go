package service

import (
	"math"
	"sort"
	"time"

	"scheduleai/internal/model"
)

// UncategorizedKey groups events without a category in the distribution.
const UncategorizedKey = "default"

// DaySummary describes one day of a routine.
type DaySummary struct {
	Count      int
	FirstStart time.Time
	LastEnd    time.Time
}

// CategoryHours is one slice of the weekly distribution.
type CategoryHours struct {
	Category string
	Hours    float64
}

// Dashboard is everything the overview screen shows.
type Dashboard struct {
	RoutineName  string
	HasRoutine   bool
	Today        []model.ScheduleEvent
	Summary      DaySummary
	Distribution []CategoryHours
	Upcoming     []model.ScheduleEvent
}

// TodayAgenda returns the template events that fall on now's weekday, moved
// to today's date and ordered by start time.
func TodayAgenda(events []model.ScheduleEvent, now time.Time) []model.ScheduleEvent {
	year, month, day := now.Date()
	var today []model.ScheduleEvent
	for _, ev := range events {
		if ev.Start.Weekday() != now.Weekday() {
			continue
		}
		h, m, s := ev.Start.Clock()
		moved := ev
		moved.Start = time.Date(year, month, day, h, m, s, 0, now.Location())
		moved.End = moved.Start.Add(ev.Duration())
		today = append(today, moved)
	}
	sort.SliceStable(today, func(i, j int) bool {
		return today[i].Start.Before(today[j].Start)
	})
	return today
}

// SummarizeDay counts events and finds the earliest start and latest end.
func SummarizeDay(events []model.ScheduleEvent) DaySummary {
	var s DaySummary
	for i, ev := range events {
		if i == 0 || ev.Start.Before(s.FirstStart) {
			s.FirstStart = ev.Start
		}
		if i == 0 || ev.End.After(s.LastEnd) {
			s.LastEnd = ev.End
		}
	}
	s.Count = len(events)
	return s
}

// WeeklyDistribution sums template hours per category, rounded to 0.1 h.
// Empty slices are dropped; the rest is sorted by hours, largest first.
func WeeklyDistribution(events []model.ScheduleEvent) []CategoryHours {
	totals := make(map[string]float64)
	for _, ev := range events {
		key := string(ev.Category)
		if key == "" {
			key = UncategorizedKey
		}
		totals[key] += ev.Duration().Hours()
	}

	out := make([]CategoryHours, 0, len(totals))
	for cat, hours := range totals {
		rounded := math.Round(hours*10) / 10
		if rounded <= 0 {
			continue
		}
		out = append(out, CategoryHours{Category: cat, Hours: rounded})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hours != out[j].Hours {
			return out[i].Hours > out[j].Hours
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// BuildDashboard derives the overview from the active routine. A nil routine
// yields an empty dashboard.
func BuildDashboard(active *model.Routine, now time.Time, upcomingLimit int) Dashboard {
	if active == nil {
		return Dashboard{}
	}
	today := TodayAgenda(active.Events, now)
	return Dashboard{
		RoutineName:  active.Name,
		HasRoutine:   true,
		Today:        today,
		Summary:      SummarizeDay(today),
		Distribution: WeeklyDistribution(active.Events),
		Upcoming:     Upcoming(active.Events, now, upcomingLimit),
	}
}
