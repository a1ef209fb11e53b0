package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"scheduleai/internal/model"
	"scheduleai/internal/repository"
)

// SendFunc delivers an HTML message to a chat.
type SendFunc func(chatID int64, text string) error

// ReminderService builds upcoming-task reminders and fans them out to every
// signed-in user.
type ReminderService struct {
	routines *RoutineService
	sessions *repository.SessionRepository
	limiter  *rate.Limiter
	limit    int
	log      *zap.Logger
}

// NewReminderService sends at most perSecond reminders per second. limit is
// how many upcoming events each reminder lists.
func NewReminderService(routines *RoutineService, sessions *repository.SessionRepository, perSecond float64, limit int, log *zap.Logger) *ReminderService {
	if perSecond <= 0 {
		perSecond = 20
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReminderService{
		routines: routines,
		sessions: sessions,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), 1),
		limit:    limit,
		log:      log,
	}
}

// UpcomingSummary returns the reminder text for session, or "" when there
// is nothing coming up.
func (s *ReminderService) UpcomingSummary(ctx context.Context, session *model.Session, now time.Time) (string, error) {
	active, err := s.routines.Active(ctx, session)
	if err != nil {
		return "", err
	}
	if active == nil {
		return "", nil
	}
	upcoming := Upcoming(active.Events, now, s.limit)
	if len(upcoming) == 0 {
		return "", nil
	}
	return FormatReminder(active.Name, upcoming, now), nil
}

// Broadcast sends the upcoming summary to every signed-in user. Users whose
// token is rejected are signed out and skipped.
func (s *ReminderService) Broadcast(ctx context.Context, now time.Time, send SendFunc) error {
	sessions, err := s.sessions.ListSignedIn(ctx)
	if err != nil {
		return err
	}
	sent := 0
	for i := range sessions {
		session := &sessions[i]
		text, err := s.UpcomingSummary(ctx, session, now)
		switch {
		case errors.Is(err, ErrSignedOut):
			continue
		case err != nil:
			s.log.Warn("build reminder", zap.Int64("telegram_id", session.TelegramID), zap.Error(err))
			continue
		case text == "":
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := send(session.ChatID, text); err != nil {
			s.log.Warn("send reminder", zap.Int64("telegram_id", session.TelegramID), zap.Error(err))
			continue
		}
		sent++
	}
	s.log.Info("reminders sent", zap.Int("sent", sent), zap.Int("users", len(sessions)))
	return nil
}

// FormatReminder renders upcoming events as an HTML message.
func FormatReminder(routineName string, upcoming []model.ScheduleEvent, now time.Time) string {
	var builder strings.Builder
	builder.WriteString("⏰ <b>Coming up</b>")
	if routineName != "" {
		builder.WriteString(fmt.Sprintf(" · <i>%s</i>", html.EscapeString(routineName)))
	}
	builder.WriteString("\n\n")
	for _, ev := range upcoming {
		builder.WriteString(FormatEventLine(ev, now))
		builder.WriteByte('\n')
	}
	return strings.TrimSpace(builder.String())
}

// FormatEventLine renders one event as "🏃 Mon 07:00-08:00 Gym (in 2h)".
func FormatEventLine(ev model.ScheduleEvent, now time.Time) string {
	icon := categoryIcon(ev.Category)
	line := fmt.Sprintf("%s %s %s-%s %s",
		icon,
		ev.Start.Format("Mon"),
		ev.Start.Format("15:04"),
		ev.End.Format("15:04"),
		html.EscapeString(strings.TrimSpace(ev.Title)))
	if !now.IsZero() && ev.Start.After(now) {
		line += fmt.Sprintf(" <i>(in %s)</i>", humanizeUntil(ev.Start.Sub(now)))
	}
	return line
}

func categoryIcon(c model.Category) string {
	label := c.Label()
	if i := strings.IndexByte(label, ' '); i > 0 {
		return label[:i]
	}
	return "📌"
}

func humanizeUntil(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes())+1)
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
