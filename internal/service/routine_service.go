package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"scheduleai/internal/api"
	"scheduleai/internal/model"
	"scheduleai/internal/repository"
)

// RoutineService covers saved routines, AI generation and analysis, and the
// derived dashboard. The local cache mirrors every routine read or written.
type RoutineService struct {
	accounts *AccountService
	prefs    *PreferencesService
	cache    *repository.RoutineCacheRepository
	log      *zap.Logger
}

func NewRoutineService(accounts *AccountService, prefs *PreferencesService, cache *repository.RoutineCacheRepository, log *zap.Logger) *RoutineService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RoutineService{accounts: accounts, prefs: prefs, cache: cache, log: log}
}

func (s *RoutineService) List(ctx context.Context, session *model.Session) ([]model.Routine, error) {
	c, err := s.accounts.Client(ctx, session)
	if err != nil {
		return nil, err
	}
	routines, err := c.ListRoutines(ctx)
	if err != nil {
		return nil, s.accounts.Expire(ctx, session, err)
	}
	return routines, nil
}

// Active returns the active routine, or nil when the user has none. When
// the backend is unreachable the cached copy is used.
func (s *RoutineService) Active(ctx context.Context, session *model.Session) (*model.Routine, error) {
	c, err := s.accounts.Client(ctx, session)
	if err != nil {
		return nil, err
	}
	routine, err := c.ActiveRoutine(ctx)
	switch {
	case err == nil:
		s.remember(ctx, session, routine)
		return &routine, nil
	case errors.Is(err, api.ErrNotFound):
		return nil, nil
	case errors.Is(err, api.ErrUnauthorized):
		return nil, s.accounts.Expire(ctx, session, err)
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return nil, err
	}
	cached, fetchedAt, cacheErr := s.cache.Active(ctx, session.TelegramID)
	if cacheErr != nil {
		return nil, err
	}
	s.log.Warn("backend unreachable, using cached routine",
		zap.Int64("telegram_id", session.TelegramID),
		zap.Time("fetched_at", fetchedAt),
		zap.Error(err))
	return &cached, nil
}

// Open loads routine id into editor. A response that arrives after another
// load started is dropped with ErrStaleLoad.
func (s *RoutineService) Open(ctx context.Context, session *model.Session, editor *Editor, id int) (model.Routine, error) {
	ticket := editor.Begin()
	routines, err := s.List(ctx, session)
	if err != nil {
		return model.Routine{}, err
	}
	for _, r := range routines {
		if r.ID != nil && *r.ID == id {
			if err := editor.LoadIfCurrent(ticket, r, s.accounts.Now()); err != nil {
				return model.Routine{}, err
			}
			s.remember(ctx, session, r)
			return r, nil
		}
	}
	return model.Routine{}, fmt.Errorf("routine %d: %w", id, ErrRoutineNotFound)
}

// OpenActive loads the active routine into editor. It returns nil when no
// routine is active.
func (s *RoutineService) OpenActive(ctx context.Context, session *model.Session, editor *Editor) (*model.Routine, error) {
	ticket := editor.Begin()
	routine, err := s.Active(ctx, session)
	if err != nil || routine == nil {
		return nil, err
	}
	if err := editor.LoadIfCurrent(ticket, *routine, s.accounts.Now()); err != nil {
		return nil, err
	}
	return routine, nil
}

// Save persists the editor's routine and refreshes the cache.
func (s *RoutineService) Save(ctx context.Context, session *model.Session, editor *Editor) (model.Routine, error) {
	c, err := s.accounts.Client(ctx, session)
	if err != nil {
		return model.Routine{}, err
	}
	saved, err := editor.Persist(ctx, c)
	if err != nil {
		return model.Routine{}, s.accounts.Expire(ctx, session, err)
	}
	s.remember(ctx, session, saved)
	fields := []zap.Field{zap.Int64("telegram_id", session.TelegramID), zap.Int("events", len(saved.Events))}
	if saved.ID != nil {
		fields = append(fields, zap.Int("routine_id", *saved.ID))
	}
	s.log.Info("routine saved", fields...)
	return saved, nil
}

// Activate makes id the active routine.
func (s *RoutineService) Activate(ctx context.Context, session *model.Session, id int) error {
	c, err := s.accounts.Client(ctx, session)
	if err != nil {
		return err
	}
	if err := c.SetActiveRoutine(ctx, id); err != nil {
		return s.accounts.Expire(ctx, session, err)
	}
	if err := s.cache.MarkActive(ctx, session.TelegramID, id); err != nil {
		s.log.Warn("mark cached routine active", zap.Error(err))
	}
	return nil
}

// Delete removes a routine. Callers confirm with the user first.
func (s *RoutineService) Delete(ctx context.Context, session *model.Session, id int) error {
	c, err := s.accounts.Client(ctx, session)
	if err != nil {
		return err
	}
	if err := c.DeleteRoutine(ctx, id); err != nil {
		return s.accounts.Expire(ctx, session, err)
	}
	if err := s.cache.Delete(ctx, session.TelegramID, id); err != nil {
		s.log.Warn("delete cached routine", zap.Error(err))
	}
	return nil
}

// Generate asks the backend for a schedule built from the user's activities
// and preferences and appends it to editor. It returns how many events were
// added.
func (s *RoutineService) Generate(ctx context.Context, session *model.Session, editor *Editor) (int, error) {
	prefs, err := s.prefs.Get(ctx, session.TelegramID)
	if err != nil {
		return 0, err
	}
	c, err := s.accounts.Client(ctx, session)
	if err != nil {
		return 0, err
	}
	events, err := c.GenerateSchedule(ctx, prefs)
	if err != nil {
		return 0, s.accounts.Expire(ctx, session, err)
	}
	return editor.ApplySuggested(events), nil
}

// Analyze returns suggestions for the editor's events.
func (s *RoutineService) Analyze(ctx context.Context, session *model.Session, events []model.ScheduleEvent) ([]string, error) {
	if len(events) == 0 {
		return nil, invalid("events", "the schedule has no events to analyze")
	}
	c, err := s.accounts.Client(ctx, session)
	if err != nil {
		return nil, err
	}
	suggestions, err := c.AnalyzeSchedule(ctx, events)
	if err != nil {
		return nil, s.accounts.Expire(ctx, session, err)
	}
	return suggestions, nil
}

// Dashboard derives the overview from the active routine.
func (s *RoutineService) Dashboard(ctx context.Context, session *model.Session, upcomingLimit int) (Dashboard, error) {
	active, err := s.Active(ctx, session)
	if err != nil {
		return Dashboard{}, err
	}
	return BuildDashboard(active, s.accounts.Now(), upcomingLimit), nil
}

// Export writes the active routine as iCalendar to w.
func (s *RoutineService) Export(ctx context.Context, session *model.Session, w io.Writer) (model.Routine, error) {
	active, err := s.Active(ctx, session)
	if err != nil {
		return model.Routine{}, err
	}
	if active == nil {
		return model.Routine{}, ErrNoRoutine
	}
	if err := ExportRoutine(w, *active, s.accounts.Now()); err != nil {
		return model.Routine{}, err
	}
	return *active, nil
}

func (s *RoutineService) remember(ctx context.Context, session *model.Session, routine model.Routine) {
	if routine.ID == nil {
		return
	}
	if err := s.cache.Save(ctx, session.TelegramID, routine, s.accounts.Now()); err != nil {
		s.log.Warn("cache routine", zap.Int("routine_id", *routine.ID), zap.Error(err))
	}
}
