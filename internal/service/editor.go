package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"scheduleai/internal/model"
)

// RoutineStore persists a routine on the backend. *api.Client implements it.
type RoutineStore interface {
	CreateRoutine(ctx context.Context, name string, events []model.ScheduleEvent) (model.Routine, error)
	UpdateRoutine(ctx context.Context, id int, name string, events []model.ScheduleEvent) (model.Routine, error)
}

// DropPayload is what gets dropped on the calendar: an activity, optionally
// carrying an identifier picked by the caller.
type DropPayload struct {
	ID       string
	Title    string
	Duration time.Duration
	Category model.Category
}

// PayloadFromActivity builds a drop payload from a saved activity.
func PayloadFromActivity(a model.Activity) DropPayload {
	return DropPayload{
		Title:    a.Name,
		Duration: time.Duration(a.Duration) * time.Minute,
		Category: a.Category,
	}
}

// EventPatch holds the fields to overwrite on an event. Nil fields are kept.
type EventPatch struct {
	Title    *string
	Start    *time.Time
	End      *time.Time
	Category *model.Category
}

// Ticket identifies one routine load request.
type Ticket uint64

// Editor is the working copy of one routine. It is not safe for concurrent
// use; callers serialize access per user.
type Editor struct {
	routineID *int
	name      string
	active    bool
	events    []model.ScheduleEvent
	dirty     bool
	loadedAt  time.Time
	seq       Ticket
	open      bool

	newID func() string
}

func NewEditor() *Editor {
	return &Editor{newID: uuid.NewString}
}

// Load replaces the working set with routine, discarding unsaved edits.
// Events without an ID get "<loadedAt unix ms>-<index>".
func (e *Editor) Load(routine model.Routine, loadedAt time.Time) {
	e.seq++
	e.open = true
	e.routineID = nil
	if routine.ID != nil {
		id := *routine.ID
		e.routineID = &id
	}
	e.name = routine.Name
	e.active = routine.IsActive
	e.loadedAt = loadedAt
	e.dirty = false

	e.events = make([]model.ScheduleEvent, len(routine.Events))
	copy(e.events, routine.Events)
	for i := range e.events {
		if e.events[i].ID == "" {
			e.events[i].ID = fmt.Sprintf("%d-%d", loadedAt.UnixMilli(), i)
		}
		e.events[i].Category = canonicalCategory(e.events[i].Category)
	}
}

// NewDraft starts an unsaved, empty routine.
func (e *Editor) NewDraft(name string, now time.Time) {
	e.Load(model.Routine{Name: name}, now)
}

// Begin issues a ticket for a load that completes later.
func (e *Editor) Begin() Ticket {
	e.seq++
	return e.seq
}

// LoadIfCurrent loads routine only if no other load started after ticket.
func (e *Editor) LoadIfCurrent(ticket Ticket, routine model.Routine, loadedAt time.Time) error {
	if ticket != e.seq {
		return ErrStaleLoad
	}
	e.Load(routine, loadedAt)
	return nil
}

// Open reports whether a routine or draft is loaded.
func (e *Editor) Open() bool { return e.open }

func (e *Editor) Dirty() bool { return e.dirty }

func (e *Editor) LoadedAt() time.Time { return e.loadedAt }

func (e *Editor) Name() string { return e.name }

// Rename changes the routine name used by the next Persist.
func (e *Editor) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("name", "routine name is required")
	}
	if name != e.name {
		e.name = name
		e.dirty = true
	}
	return nil
}

// Routine returns a copy of the working state.
func (e *Editor) Routine() model.Routine {
	r := model.Routine{Name: e.name, IsActive: e.active, Events: e.Events()}
	if e.routineID != nil {
		id := *e.routineID
		r.ID = &id
	}
	return r
}

// Events returns a copy of the working set in insertion order.
func (e *Editor) Events() []model.ScheduleEvent {
	out := make([]model.ScheduleEvent, len(e.events))
	copy(out, e.events)
	return out
}

// SortedEvents returns the working set ordered by start time.
func (e *Editor) SortedEvents() []model.ScheduleEvent {
	out := e.Events()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// ReceiveExternalDrop adds an event built from payload at dropStart. A zero
// dropEnd means dropStart plus the payload duration. It returns the new
// event's ID.
func (e *Editor) ReceiveExternalDrop(payload DropPayload, dropStart, dropEnd time.Time) (string, error) {
	title := strings.TrimSpace(payload.Title)
	if title == "" {
		return "", invalid("title", "activity name is required")
	}
	if dropEnd.IsZero() {
		dropEnd = dropStart.Add(payload.Duration)
	}
	if !dropEnd.After(dropStart) {
		return "", ErrInvalidTiming
	}
	id := payload.ID
	if id == "" {
		id = e.newID()
	}
	if e.indexOf(id) >= 0 {
		return "", fmt.Errorf("%w: %s", ErrDuplicateEvent, id)
	}

	e.events = append(e.events, model.ScheduleEvent{
		ID:       id,
		Title:    title,
		Start:    dropStart,
		End:      dropEnd,
		Category: canonicalCategory(payload.Category),
	})
	e.open = true
	e.dirty = true
	return id, nil
}

// ApplySuggested appends generated events with fresh IDs. Events that do not
// end after they start are skipped. It returns how many were added.
func (e *Editor) ApplySuggested(events []model.ScheduleEvent) int {
	added := 0
	for _, ev := range events {
		if !ev.End.After(ev.Start) {
			continue
		}
		ev.ID = e.newID()
		ev.AllDay = false
		ev.Category = canonicalCategory(ev.Category)
		e.events = append(e.events, ev)
		added++
	}
	if added > 0 {
		e.open = true
		e.dirty = true
	}
	return added
}

// ChangeEventTiming moves or resizes an event. The number of events never
// changes.
func (e *Editor) ChangeEventTiming(id string, start, end time.Time) error {
	i := e.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	if !end.After(start) {
		return ErrInvalidTiming
	}
	e.events[i].Start = start
	e.events[i].End = end
	e.dirty = true
	return nil
}

// UpdateEventFields merges the non-nil fields of patch into the event.
func (e *Editor) UpdateEventFields(id string, patch EventPatch) error {
	i := e.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	ev := e.events[i]
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return invalid("title", "event title is required")
		}
		ev.Title = title
	}
	if patch.Start != nil {
		ev.Start = *patch.Start
	}
	if patch.End != nil {
		ev.End = *patch.End
	}
	if patch.Category != nil {
		ev.Category = canonicalCategory(*patch.Category)
	}
	if !ev.End.After(ev.Start) {
		return ErrInvalidTiming
	}
	e.events[i] = ev
	e.dirty = true
	return nil
}

// DeleteEvent removes an event. Callers confirm with the user first.
func (e *Editor) DeleteEvent(id string) error {
	i := e.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	e.events = append(e.events[:i], e.events[i+1:]...)
	e.dirty = true
	return nil
}

// Persist creates or updates the routine on the backend. Client-side event
// IDs are not sent. On success the editor is clean and adopts the server ID
// when the reply has one; on failure it stays dirty.
func (e *Editor) Persist(ctx context.Context, store RoutineStore) (model.Routine, error) {
	if !e.open {
		return model.Routine{}, ErrNoRoutine
	}
	name := strings.TrimSpace(e.name)
	if name == "" {
		return model.Routine{}, invalid("name", "routine name is required")
	}

	outgoing := make([]model.ScheduleEvent, len(e.events))
	for i, ev := range e.events {
		ev.ID = ""
		outgoing[i] = ev
	}

	var (
		saved model.Routine
		err   error
	)
	if e.routineID != nil {
		saved, err = store.UpdateRoutine(ctx, *e.routineID, name, outgoing)
	} else {
		saved, err = store.CreateRoutine(ctx, name, outgoing)
	}
	if err != nil {
		return model.Routine{}, fmt.Errorf("save routine %q: %w", name, err)
	}

	// a reply without an id carries nothing to adopt
	if saved.ID != nil {
		id := *saved.ID
		e.routineID = &id
		e.active = saved.IsActive
	}
	e.name = name
	e.dirty = false
	return e.Routine(), nil
}

func (e *Editor) indexOf(id string) int {
	for i := range e.events {
		if e.events[i].ID == id {
			return i
		}
	}
	return -1
}

func canonicalCategory(c model.Category) model.Category {
	if parsed, ok := model.ParseCategory(string(c)); ok {
		return parsed
	}
	return c
}
