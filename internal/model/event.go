package model

import "time"

// ScheduleEvent is a concrete calendar block. ID is client-side only and is
// never sent to the backend.
type ScheduleEvent struct {
	ID       string
	Title    string
	Start    time.Time
	End      time.Time
	Category Category
	AllDay   bool
}

// Color derives the display color from the category.
func (e ScheduleEvent) Color() string {
	return ColorFor(string(e.Category))
}

func (e ScheduleEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Routine is a named weekly template of events. ID is nil until the routine
// has been saved on the backend.
type Routine struct {
	ID       *int
	Name     string
	Events   []ScheduleEvent
	IsActive bool
}

// Persisted reports whether the routine has a server identifier.
func (r Routine) Persisted() bool {
	return r.ID != nil
}
