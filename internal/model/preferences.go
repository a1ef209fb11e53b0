package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Preferences shape schedule generation. They live in the local store, one
// row per chat user, and are sent as-is to the generation endpoint.
type Preferences struct {
	ID                uint                     `gorm:"primaryKey" json:"-" yaml:"-"`
	TelegramID        int64                    `gorm:"uniqueIndex" json:"-" yaml:"-"`
	StartHour         int                      `json:"startHour" yaml:"start_hour"`
	EndHour           int                      `json:"endHour" yaml:"end_hour"`
	PeakStartHour     int                      `json:"peakStartHour" yaml:"peak_start_hour"`
	PeakEndHour       int                      `json:"peakEndHour" yaml:"peak_end_hour"`
	Archetype         string                   `json:"archetype" yaml:"archetype"`
	FocusBlockMinutes int                      `json:"focusBlockMinutes" yaml:"focus_block_minutes"`
	SchedulingStyle   string                   `json:"schedulingStyle" yaml:"scheduling_style"`
	NoMeetingDays     datatypes.JSONSlice[int] `json:"noMeetingDays" yaml:"no_meeting_days"`
	CreatedAt         time.Time                `json:"-" yaml:"-"`
	UpdatedAt         time.Time                `json:"-" yaml:"-"`
}

// DefaultPreferences mirrors the defaults of the original web client.
func DefaultPreferences() Preferences {
	return Preferences{
		StartHour:         8,
		EndHour:           22,
		PeakStartHour:     9,
		PeakEndHour:       12,
		Archetype:         "balanced",
		FocusBlockMinutes: 50,
		SchedulingStyle:   "balanced",
		NoMeetingDays:     datatypes.JSONSlice[int]{},
	}
}

// Validate checks hour windows and weekday numbers.
func (p Preferences) Validate() error {
	if p.StartHour < 0 || p.StartHour > 23 {
		return fmt.Errorf("start_hour must be between 0 and 23")
	}
	if p.EndHour < 1 || p.EndHour > 24 {
		return fmt.Errorf("end_hour must be between 1 and 24")
	}
	if p.StartHour >= p.EndHour {
		return fmt.Errorf("start_hour must be before end_hour")
	}
	if p.PeakStartHour != 0 || p.PeakEndHour != 0 {
		if p.PeakStartHour < p.StartHour || p.PeakEndHour > p.EndHour || p.PeakStartHour >= p.PeakEndHour {
			return fmt.Errorf("peak hours must lie inside the day window")
		}
	}
	if p.FocusBlockMinutes < 0 {
		return fmt.Errorf("focus_block_minutes cannot be negative")
	}
	for _, d := range p.NoMeetingDays {
		if d < 1 || d > 7 {
			return fmt.Errorf("no_meeting_days: weekday %d out of range 1-7", d)
		}
	}
	return nil
}

// CachedRoutine is the local copy of a routine last read from or written to
// the backend. Events hold the wire JSON.
type CachedRoutine struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"index:idx_user_routine,unique"`
	RoutineID  int   `gorm:"index:idx_user_routine,unique"`
	Name       string
	IsActive   bool
	Events     datatypes.JSON
	FetchedAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
