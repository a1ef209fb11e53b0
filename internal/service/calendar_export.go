package service

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"scheduleai/internal/model"
)

const calendarProductID = "-//ScheduleAI//Routine Export//EN"

// ExportRoutine renders routine as an iCalendar document. Each template event
// becomes a weekly recurring VEVENT anchored on its next occurrence after
// now; an event already started this week is anchored one week later.
func ExportRoutine(w io.Writer, routine model.Routine, now time.Time) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetXWRCalName(routine.Name)

	for i, ev := range routine.Events {
		start := nextWeeklyStart(ev.Start, now)
		rule, err := WeeklyRuleString(model.ISOWeekday(start.Weekday()))
		if err != nil {
			return fmt.Errorf("event %q: %w", ev.Title, err)
		}

		vevent := cal.AddEvent(exportUID(routine, i))
		vevent.SetDtStampTime(now)
		vevent.SetStartAt(start)
		vevent.SetEndAt(start.Add(ev.Duration()))
		vevent.SetSummary(ev.Title)
		if ev.Category != "" {
			vevent.AddProperty(ical.ComponentPropertyCategories, string(ev.Category))
		}
		vevent.AddProperty(ical.ComponentPropertyRrule, rule)
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	return nil
}

// nextWeeklyStart is the first instant after now with template's weekday and
// clock time.
func nextWeeklyStart(template, now time.Time) time.Time {
	year, month, day := now.Date()
	h, m, s := template.Clock()
	offset := (int(template.Weekday()) - int(now.Weekday()) + 7) % 7
	start := time.Date(year, month, day+offset, h, m, s, 0, now.Location())
	if !start.After(now) {
		start = start.AddDate(0, 0, 7)
	}
	return start
}

func exportUID(routine model.Routine, index int) string {
	if routine.ID != nil {
		return fmt.Sprintf("routine-%d-event-%d@scheduleai", *routine.ID, index)
	}
	return fmt.Sprintf("draft-event-%d@scheduleai", index)
}
