package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"scheduleai/internal/model"
)

var isoWeekdays = map[int]rrule.Weekday{
	1: rrule.MO,
	2: rrule.TU,
	3: rrule.WE,
	4: rrule.TH,
	5: rrule.FR,
	6: rrule.SA,
	7: rrule.SU,
}

// WeeklyRule builds FREQ=WEEKLY;BYDAY=... for the given ISO weekdays.
func WeeklyRule(days []int, dtstart time.Time) (*rrule.RRule, error) {
	if len(days) == 0 {
		return nil, fmt.Errorf("weekly rule needs at least one weekday")
	}
	byDay := make([]rrule.Weekday, 0, len(days))
	for _, d := range days {
		wd, ok := isoWeekdays[d]
		if !ok {
			return nil, fmt.Errorf("weekday %d out of range 1-7", d)
		}
		byDay = append(byDay, wd)
	}
	return rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: byDay,
		Dtstart:   dtstart,
	})
}

// WeeklyRuleString renders the RRULE value without DTSTART.
func WeeklyRuleString(days ...int) (string, error) {
	r, err := WeeklyRule(days, time.Time{})
	if err != nil {
		return "", err
	}
	return r.OrigOptions.RRuleString(), nil
}

// NextOccurrences lists the days in [now, now+horizon) on which a recurrent
// activity falls, as midnights in now's location. One-off activities have
// none.
func NextOccurrences(a model.Activity, now time.Time, horizon time.Duration) ([]time.Time, error) {
	if !a.IsRecurrent || len(a.RecurrentDays) == 0 {
		return nil, nil
	}
	year, month, day := now.Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	r, err := WeeklyRule(a.RecurrentDays, midnight)
	if err != nil {
		return nil, fmt.Errorf("activity %q: %w", a.Name, err)
	}
	return r.Between(midnight, now.Add(horizon), true), nil
}

// DaysLabel renders ISO weekdays as "Mon, Wed".
func DaysLabel(days []int) string {
	if len(days) == 0 {
		return "-"
	}
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, model.WeekdayShort(d))
	}
	return strings.Join(names, ", ")
}
