package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Priority is the backend priority code of an activity.
type Priority string

const (
	PriorityHigh   Priority = "alta"
	PriorityMedium Priority = "media"
	PriorityLow    Priority = "baja"
)

var priorityAliases = map[string]Priority{
	"high":   PriorityHigh,
	"medium": PriorityMedium,
	"low":    PriorityLow,
}

// ParsePriority resolves a wire code or an English alias.
func ParsePriority(raw string) (Priority, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	switch Priority(key) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(key), true
	}
	p, ok := priorityAliases[key]
	return p, ok
}

func (p Priority) Label() string {
	switch p {
	case PriorityHigh:
		return "🔴 high"
	case PriorityMedium:
		return "🟡 medium"
	case PriorityLow:
		return "🟢 low"
	default:
		return string(p)
	}
}

// Activity is a user-defined task the schedule is built from.
type Activity struct {
	ID            int      `json:"id,omitempty"`
	Name          string   `json:"name"`
	Duration      int      `json:"duration"`
	Priority      Priority `json:"priority"`
	Category      Category `json:"category"`
	IsRecurrent   bool     `json:"is_recurrent"`
	RecurrentDays []int    `json:"recurrent_days"`
}

// Normalize trims the name and keeps RecurrentDays consistent with
// IsRecurrent: cleared when not recurrent, sorted and deduplicated otherwise.
func (a *Activity) Normalize() {
	a.Name = strings.TrimSpace(a.Name)
	if !a.IsRecurrent {
		a.RecurrentDays = nil
		return
	}
	seen := make(map[int]bool, len(a.RecurrentDays))
	days := make([]int, 0, len(a.RecurrentDays))
	for _, d := range a.RecurrentDays {
		if seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	sort.Ints(days)
	a.RecurrentDays = days
}

// Validate checks the fields the backend requires.
func (a Activity) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if a.Duration <= 0 {
		return fmt.Errorf("duration must be a positive number of minutes")
	}
	switch a.Priority {
	case PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return fmt.Errorf("unknown priority %q", a.Priority)
	}
	if !a.Category.Valid() {
		return fmt.Errorf("unknown category %q", a.Category)
	}
	if a.IsRecurrent && len(a.RecurrentDays) == 0 {
		return fmt.Errorf("recurrent activity needs at least one weekday")
	}
	if !a.IsRecurrent && len(a.RecurrentDays) > 0 {
		return fmt.Errorf("recurrent days set on a one-off activity")
	}
	for _, d := range a.RecurrentDays {
		if d < 1 || d > 7 {
			return fmt.Errorf("weekday %d out of range 1-7", d)
		}
	}
	return nil
}

// DurationLabel renders the duration as HH:MM.
func (a Activity) DurationLabel() string {
	return fmt.Sprintf("%02d:%02d", a.Duration/60, a.Duration%60)
}

// ISOWeekday converts a time.Weekday to 1=Monday ... 7=Sunday.
func ISOWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

// FromISOWeekday is the inverse of ISOWeekday.
func FromISOWeekday(n int) time.Weekday {
	return time.Weekday(n % 7)
}

var weekdayNames = map[string]int{
	"mon": 1, "monday": 1, "lun": 1, "lunes": 1,
	"tue": 2, "tuesday": 2, "mar": 2, "martes": 2,
	"wed": 3, "wednesday": 3, "mie": 3, "miercoles": 3, "miércoles": 3,
	"thu": 4, "thursday": 4, "jue": 4, "jueves": 4,
	"fri": 5, "friday": 5, "vie": 5, "viernes": 5,
	"sat": 6, "saturday": 6, "sab": 6, "sabado": 6, "sábado": 6,
	"sun": 7, "sunday": 7, "dom": 7, "domingo": 7,
}

// ParseWeekday accepts 1-7 or an English/Spanish day name.
func ParseWeekday(raw string) (int, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if len(key) == 1 && key[0] >= '1' && key[0] <= '7' {
		return int(key[0] - '0'), true
	}
	n, ok := weekdayNames[key]
	return n, ok
}

// WeekdayShort returns a three-letter label for an ISO weekday.
func WeekdayShort(n int) string {
	if n < 1 || n > 7 {
		return "?"
	}
	return FromISOWeekday(n).String()[:3]
}
