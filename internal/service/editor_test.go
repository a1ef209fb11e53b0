package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduleai/internal/model"
)

type fakeStore struct {
	created []model.ScheduleEvent
	updated []model.ScheduleEvent
	names   []string
	err     error
	nextID  int
	// emptyReply makes writes answer like a body-less 200.
	emptyReply bool
}

func (s *fakeStore) CreateRoutine(_ context.Context, name string, events []model.ScheduleEvent) (model.Routine, error) {
	if s.err != nil {
		return model.Routine{}, s.err
	}
	s.names = append(s.names, name)
	s.created = events
	id := s.nextID
	return model.Routine{ID: &id, Name: name, Events: events}, nil
}

func (s *fakeStore) UpdateRoutine(_ context.Context, id int, name string, events []model.ScheduleEvent) (model.Routine, error) {
	if s.err != nil {
		return model.Routine{}, s.err
	}
	s.names = append(s.names, name)
	s.updated = events
	if s.emptyReply {
		return model.Routine{}, nil
	}
	return model.Routine{ID: &id, Name: name, Events: events, IsActive: true}, nil
}

func savedRoutine(id int) model.Routine {
	return model.Routine{
		ID:   &id,
		Name: "Semester",
		Events: []model.ScheduleEvent{
			{Title: "Lecture", Start: at(1, 9, 0), End: at(1, 11, 0), Category: model.CategoryStudy},
			{Title: "Run", Start: at(2, 7, 0), End: at(2, 8, 0), Category: "Ejercicio"},
		},
	}
}

func TestDropActivityBuildsEvent(t *testing.T) {
	e := NewEditor()
	e.NewDraft("Week", at(1, 0, 0))

	gym := model.Activity{Name: "Gym", Duration: 60, Priority: model.PriorityHigh, Category: model.CategoryExercise}
	id, err := e.ReceiveExternalDrop(PayloadFromActivity(gym), at(1, 7, 0), time.Time{})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.True(t, e.Dirty())

	events := e.Events()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, id, ev.ID)
	assert.Equal(t, "Gym", ev.Title)
	assert.Equal(t, at(1, 7, 0), ev.Start)
	assert.Equal(t, at(1, 8, 0), ev.End)
	assert.Equal(t, "#ef4444", ev.Color())
}

func TestDropUsesExplicitEnd(t *testing.T) {
	e := NewEditor()
	e.NewDraft("Week", at(1, 0, 0))

	_, err := e.ReceiveExternalDrop(DropPayload{Title: "Read", Duration: time.Hour}, at(1, 9, 0), at(1, 9, 30))
	require.NoError(t, err)
	assert.Equal(t, at(1, 9, 30), e.Events()[0].End)

	_, err = e.ReceiveExternalDrop(DropPayload{Title: "Nothing"}, at(1, 9, 0), time.Time{})
	assert.ErrorIs(t, err, ErrInvalidTiming)

	_, err = e.ReceiveExternalDrop(DropPayload{Title: "  ", Duration: time.Hour}, at(1, 9, 0), time.Time{})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Len(t, e.Events(), 1)
}

func TestDropDuplicateIDRejected(t *testing.T) {
	e := NewEditor()
	e.NewDraft("Week", at(1, 0, 0))
	payload := DropPayload{ID: "drag-1", Title: "Gym", Duration: time.Hour}

	id, err := e.ReceiveExternalDrop(payload, at(1, 7, 0), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "drag-1", id)

	_, err = e.ReceiveExternalDrop(payload, at(1, 7, 0), time.Time{})
	assert.ErrorIs(t, err, ErrDuplicateEvent)
	assert.Len(t, e.Events(), 1)
}

func TestFreshIDsAreUnique(t *testing.T) {
	e := NewEditor()
	e.NewDraft("Week", at(1, 0, 0))
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		id, err := e.ReceiveExternalDrop(DropPayload{Title: "x", Duration: time.Minute}, at(1, 7, i), time.Time{})
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestLoadAssignsMissingIDs(t *testing.T) {
	e := NewEditor()
	loadedAt := time.UnixMilli(1700000000123)
	e.Load(savedRoutine(4), loadedAt)

	events := e.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "1700000000123-0", events[0].ID)
	assert.Equal(t, "1700000000123-1", events[1].ID)
	assert.Equal(t, model.CategoryExercise, events[1].Category)
	assert.False(t, e.Dirty())
	assert.True(t, e.Open())
	assert.Equal(t, loadedAt, e.LoadedAt())
}

func TestChangeEventTiming(t *testing.T) {
	e := NewEditor()
	e.Load(savedRoutine(4), at(1, 0, 0))
	id := e.Events()[0].ID

	require.NoError(t, e.ChangeEventTiming(id, at(3, 14, 0), at(3, 15, 0)))
	assert.True(t, e.Dirty())
	assert.Len(t, e.Events(), 2)
	assert.Equal(t, at(3, 14, 0), e.Events()[0].Start)

	e.Load(savedRoutine(4), at(1, 0, 0))
	before := e.Events()
	err := e.ChangeEventTiming("missing", at(3, 14, 0), at(3, 15, 0))
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.Equal(t, before, e.Events())
	assert.False(t, e.Dirty())

	assert.ErrorIs(t, e.ChangeEventTiming(id, at(3, 15, 0), at(3, 15, 0)), ErrInvalidTiming)
	assert.False(t, e.Dirty())
}

func TestUpdateEventFieldsMerges(t *testing.T) {
	e := NewEditor()
	e.Load(savedRoutine(4), at(1, 0, 0))
	id := e.Events()[1].ID

	title := "Long run"
	cat := model.Category("leisure")
	require.NoError(t, e.UpdateEventFields(id, EventPatch{Title: &title, Category: &cat}))

	ev := e.Events()[1]
	assert.Equal(t, "Long run", ev.Title)
	assert.Equal(t, model.CategoryLeisure, ev.Category)
	assert.Equal(t, at(2, 7, 0), ev.Start)
	assert.True(t, e.Dirty())

	early := at(2, 6, 0)
	assert.ErrorIs(t, e.UpdateEventFields(id, EventPatch{End: &early}), ErrInvalidTiming)
	assert.Equal(t, at(2, 8, 0), e.Events()[1].End)
}

func TestDeleteEvent(t *testing.T) {
	e := NewEditor()
	e.Load(savedRoutine(4), at(1, 0, 0))
	id := e.Events()[0].ID

	require.NoError(t, e.DeleteEvent(id))
	assert.Len(t, e.Events(), 1)
	assert.True(t, e.Dirty())
	assert.ErrorIs(t, e.DeleteEvent(id), ErrEventNotFound)
}

func TestApplySuggested(t *testing.T) {
	e := NewEditor()
	e.NewDraft("AI", at(1, 0, 0))

	n := e.ApplySuggested([]model.ScheduleEvent{
		{ID: "server", Title: "Focus", Start: at(1, 9, 0), End: at(1, 10, 0), Category: "work"},
		{Title: "broken", Start: at(1, 9, 0), End: at(1, 9, 0)},
	})
	assert.Equal(t, 1, n)
	require.Len(t, e.Events(), 1)
	assert.NotEqual(t, "server", e.Events()[0].ID)
	assert.Equal(t, model.CategoryWork, e.Events()[0].Category)
	assert.True(t, e.Dirty())
}

func TestPersistUpdatesExistingRoutine(t *testing.T) {
	e := NewEditor()
	e.Load(savedRoutine(4), at(1, 0, 0))
	title := "Seminar"
	require.NoError(t, e.UpdateEventFields(e.Events()[0].ID, EventPatch{Title: &title}))

	store := &fakeStore{}
	saved, err := e.Persist(context.Background(), store)
	require.NoError(t, err)
	assert.False(t, e.Dirty())
	require.Len(t, store.updated, 2)
	for _, ev := range store.updated {
		assert.Empty(t, ev.ID)
	}
	assert.Empty(t, store.created)
	require.NotNil(t, saved.ID)
	assert.Equal(t, 4, *saved.ID)
	assert.True(t, saved.IsActive)
	// working IDs survive the save
	assert.NotEmpty(t, e.Events()[0].ID)
}

func TestPersistKeepsIDWhenReplyHasNone(t *testing.T) {
	r := savedRoutine(42)
	r.IsActive = true
	e := NewEditor()
	e.Load(r, at(1, 0, 0))
	require.NoError(t, e.Rename("Exams"))

	store := &fakeStore{emptyReply: true}
	for i := 0; i < 2; i++ {
		saved, err := e.Persist(context.Background(), store)
		require.NoError(t, err)
		require.NotNil(t, saved.ID)
		assert.Equal(t, 42, *saved.ID)
		assert.Equal(t, "Exams", saved.Name)
		assert.True(t, saved.IsActive)
		assert.Len(t, saved.Events, 2)
	}
	assert.False(t, e.Dirty())
	assert.Equal(t, []string{"Exams", "Exams"}, store.names)
	assert.Empty(t, store.created)
}

func TestPersistCreatesDraft(t *testing.T) {
	e := NewEditor()
	e.NewDraft("New week", at(1, 0, 0))
	_, err := e.ReceiveExternalDrop(DropPayload{Title: "Gym", Duration: time.Hour}, at(1, 7, 0), time.Time{})
	require.NoError(t, err)

	store := &fakeStore{nextID: 9}
	saved, err := e.Persist(context.Background(), store)
	require.NoError(t, err)
	require.Len(t, store.created, 1)
	require.NotNil(t, saved.ID)
	assert.Equal(t, 9, *saved.ID)

	// next save is an update
	require.NoError(t, e.Rename("Renamed"))
	_, err = e.Persist(context.Background(), store)
	require.NoError(t, err)
	assert.Len(t, store.updated, 1)
	assert.Equal(t, []string{"New week", "Renamed"}, store.names)
}

func TestPersistFailureKeepsDirty(t *testing.T) {
	e := NewEditor()
	e.Load(savedRoutine(4), at(1, 0, 0))
	require.NoError(t, e.DeleteEvent(e.Events()[0].ID))

	boom := errors.New("backend down")
	_, err := e.Persist(context.Background(), &fakeStore{err: boom})
	assert.ErrorIs(t, err, boom)
	assert.True(t, e.Dirty())
	assert.Len(t, e.Events(), 1)
}

func TestPersistRequiresName(t *testing.T) {
	e := NewEditor()
	e.NewDraft("  ", at(1, 0, 0))
	store := &fakeStore{}
	_, err := e.Persist(context.Background(), store)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
	assert.Empty(t, store.names)

	_, err = NewEditor().Persist(context.Background(), store)
	assert.ErrorIs(t, err, ErrNoRoutine)
}

func TestReloadDiscardsUnsavedEdits(t *testing.T) {
	routine := savedRoutine(4)
	e := NewEditor()
	e.Load(routine, at(1, 0, 0))

	title := "Edited"
	require.NoError(t, e.UpdateEventFields(e.Events()[0].ID, EventPatch{Title: &title}))
	assert.True(t, e.Dirty())

	e.Load(routine, at(1, 0, 5))
	assert.Equal(t, "Lecture", e.Events()[0].Title)
	assert.Equal(t, "Lecture", routine.Events[0].Title)
	assert.False(t, e.Dirty())
}

func TestStaleLoadRejected(t *testing.T) {
	e := NewEditor()
	first := e.Begin()
	second := e.Begin()

	older := savedRoutine(1)
	newer := savedRoutine(2)
	require.NoError(t, e.LoadIfCurrent(second, newer, at(1, 0, 0)))
	assert.ErrorIs(t, e.LoadIfCurrent(first, older, at(1, 0, 1)), ErrStaleLoad)
	assert.Equal(t, 2, *e.Routine().ID)

	// a direct load supersedes outstanding tickets
	pending := e.Begin()
	e.NewDraft("Draft", at(1, 0, 2))
	assert.ErrorIs(t, e.LoadIfCurrent(pending, older, at(1, 0, 3)), ErrStaleLoad)
	assert.Equal(t, "Draft", e.Name())
}

func TestAnyMutationSetsDirty(t *testing.T) {
	mutations := map[string]func(e *Editor) error{
		"drop": func(e *Editor) error {
			_, err := e.ReceiveExternalDrop(DropPayload{Title: "x", Duration: time.Hour}, at(5, 7, 0), time.Time{})
			return err
		},
		"timing": func(e *Editor) error {
			return e.ChangeEventTiming(e.Events()[0].ID, at(5, 7, 0), at(5, 8, 0))
		},
		"fields": func(e *Editor) error {
			title := "y"
			return e.UpdateEventFields(e.Events()[0].ID, EventPatch{Title: &title})
		},
		"delete": func(e *Editor) error {
			return e.DeleteEvent(e.Events()[0].ID)
		},
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			e := NewEditor()
			e.Load(savedRoutine(3), at(1, 0, 0))
			require.False(t, e.Dirty())
			require.NoError(t, mutate(e))
			assert.True(t, e.Dirty())
		})
	}
}
