package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"scheduleai/internal/model"
	"scheduleai/internal/service"
)

const defaultRoutineName = "My routine"

func (b *Bot) handleRoutines(ctx context.Context, msg *tgbotapi.Message) error {
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	return b.sendRoutineList(ctx, msg.Chat.ID, session)
}

func (b *Bot) sendRoutineList(ctx context.Context, chatID int64, session *model.Session) error {
	routines, err := b.svc.Routines.List(ctx, session)
	if err != nil {
		return b.replyError(chatID, "load routines", err)
	}
	text := formatRoutines(routines)
	if len(routines) == 0 {
		return b.sendText(chatID, text)
	}
	return b.sendWithReplyMarkup(chatID, text, routineListKeyboard(routines))
}

func (b *Bot) handleOpen(ctx context.Context, msg *tgbotapi.Message) error {
	id, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(msg.CommandArguments()), "#"))
	if err != nil || id <= 0 {
		return b.sendText(msg.Chat.ID, "Give the routine id: /open 3. See /routines.")
	}
	if wait, err := b.guardDirty(msg.Chat.ID, msg.From, confirmationRequest{action: actionDiscardOpen, id: id}); wait {
		return err
	}
	return b.openRoutine(ctx, msg.Chat.ID, msg.From, id)
}

func (b *Bot) openRoutine(ctx context.Context, chatID int64, from *tgbotapi.User, id int) error {
	session, err := b.signedIn(ctx, from, chatID)
	if session == nil {
		return err
	}
	e := b.editor(from.ID)
	if _, err := b.svc.Routines.Open(ctx, session, e, id); err != nil {
		return b.replyError(chatID, "open the routine", err)
	}
	return b.sendWeek(chatID, e)
}

func (b *Bot) handleNewRoutine(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		name = defaultRoutineName
	}
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	if wait, err := b.guardDirty(msg.Chat.ID, msg.From, confirmationRequest{action: actionDiscardDraft, name: name}); wait {
		return err
	}
	return b.newDraft(msg.Chat.ID, msg.From, name)
}

func (b *Bot) newDraft(chatID int64, from *tgbotapi.User, name string) error {
	e := b.editor(from.ID)
	e.NewDraft(name, b.now())
	text := fmt.Sprintf("🆕 Draft <b>%s</b> started. Place activities with /drop, then /save.", escape(name))
	return b.sendText(chatID, text)
}

func (b *Bot) handleActivate(ctx context.Context, msg *tgbotapi.Message) error {
	id, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(msg.CommandArguments()), "#"))
	if err != nil || id <= 0 {
		return b.sendText(msg.Chat.ID, "Give the routine id: /activate 3. See /routines.")
	}
	return b.activateRoutine(ctx, msg.Chat.ID, msg.From, id)
}

func (b *Bot) activateRoutine(ctx context.Context, chatID int64, from *tgbotapi.User, id int) error {
	session, err := b.signedIn(ctx, from, chatID)
	if session == nil {
		return err
	}
	if err := b.svc.Routines.Activate(ctx, session, id); err != nil {
		return b.replyError(chatID, "activate the routine", err)
	}
	b.log.Info("routine activated", zap.Int64("telegram_id", from.ID), zap.Int("routine_id", id))
	return b.sendText(chatID, fmt.Sprintf("⭐ Routine #%d is now active. Reminders and /today follow it.", id))
}

func (b *Bot) askDeleteRoutine(ctx context.Context, chatID int64, from *tgbotapi.User, id int) error {
	session, err := b.signedIn(ctx, from, chatID)
	if session == nil {
		return err
	}
	routines, err := b.svc.Routines.List(ctx, session)
	if err != nil {
		return b.replyError(chatID, "load routines", err)
	}
	for _, r := range routines {
		if r.ID != nil && *r.ID == id {
			b.setConfirmation(from.ID, confirmationRequest{action: actionDeleteRoutine, id: id})
			text := fmt.Sprintf("Delete routine \"%s\" (#%d) with its %d events?", escape(r.Name), id, len(r.Events))
			return b.sendWithReplyMarkup(chatID, text, confirmInlineKeyboard())
		}
	}
	return b.replyError(chatID, "delete the routine", service.ErrRoutineNotFound)
}

func (b *Bot) deleteRoutine(ctx context.Context, chatID int64, from *tgbotapi.User, id int) error {
	session, err := b.signedIn(ctx, from, chatID)
	if session == nil {
		return err
	}
	if err := b.svc.Routines.Delete(ctx, session, id); err != nil {
		return b.replyError(chatID, "delete the routine", err)
	}
	b.mu.Lock()
	if e, ok := b.editors[from.ID]; ok {
		if open := e.Routine(); open.ID != nil && *open.ID == id {
			delete(b.editors, from.ID)
		}
	}
	b.mu.Unlock()

	b.log.Info("routine deleted", zap.Int64("telegram_id", from.ID), zap.Int("routine_id", id))
	if err := b.sendTextWithRemove(chatID, "🗑 Routine deleted."); err != nil {
		return err
	}
	return b.sendRoutineList(ctx, chatID, session)
}

func (b *Bot) handleGenerate(ctx context.Context, msg *tgbotapi.Message) error {
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	if wait, err := b.guardDirty(msg.Chat.ID, msg.From, confirmationRequest{action: actionDiscardGenerate}); wait {
		return err
	}
	return b.generate(ctx, msg.Chat.ID, msg.From)
}

// generate builds a new draft from the backend generator. The open editor
// is only replaced when generation succeeds.
func (b *Bot) generate(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	session, err := b.signedIn(ctx, from, chatID)
	if session == nil {
		return err
	}
	if err := b.sendTextWithRemove(chatID, "🤖 Building your week…"); err != nil {
		return err
	}

	now := b.now()
	draft := service.NewEditor()
	draft.NewDraft("Generated "+now.Format("02 Jan"), now)
	added, err := b.svc.Routines.Generate(ctx, session, draft)
	if err != nil {
		return b.replyError(chatID, "generate a schedule", err)
	}
	if added == 0 {
		return b.sendText(chatID, "The generator returned no events. Add activities with /newactivity and check /prefs.")
	}

	b.mu.Lock()
	b.editors[from.ID] = draft
	b.mu.Unlock()
	b.log.Info("schedule generated", zap.Int64("telegram_id", from.ID), zap.Int("events", added))
	return b.sendWeek(chatID, draft)
}

func (b *Bot) handlePreferences(ctx context.Context, msg *tgbotapi.Message) error {
	prefs, err := b.svc.Preferences.Get(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	return b.sendPreferences(msg.Chat.ID, "⚙️ <b>Generation preferences</b>\nChange them with /setprefs.", prefs)
}

func (b *Bot) startSetPreferences(ctx context.Context, msg *tgbotapi.Message) error {
	prefs, err := b.svc.Preferences.Get(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	b.clearConfirmation(msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stagePreferences})
	text, err := service.EncodePreferences(prefs)
	if err != nil {
		return err
	}
	reply := "Send the block back with your changes. Keys you leave out keep their value. Send <code>reset</code> for the defaults.\n\n" +
		"<pre>" + escape(text) + "</pre>"
	return b.sendWithReplyMarkup(msg.Chat.ID, reply, cancelKeyboard())
}

func (b *Bot) sendPreferences(chatID int64, header string, prefs model.Preferences) error {
	text, err := service.EncodePreferences(prefs)
	if err != nil {
		return err
	}
	return b.sendText(chatID, header+"\n\n<pre>"+escape(text)+"</pre>")
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	dashboard, err := b.svc.Routines.Dashboard(ctx, session, b.config.UpcomingLimit)
	if err != nil {
		return b.replyError(msg.Chat.ID, "load today", err)
	}
	return b.sendText(msg.Chat.ID, formatDashboard(dashboard, b.now()))
}

func (b *Bot) handleUpcoming(ctx context.Context, msg *tgbotapi.Message) error {
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	text, err := b.svc.Reminders.UpcomingSummary(ctx, session, b.now())
	if err != nil {
		return b.replyError(msg.Chat.ID, "load upcoming events", err)
	}
	if text == "" {
		return b.sendText(msg.Chat.ID, "Nothing else coming up this week.")
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleExport(ctx context.Context, msg *tgbotapi.Message) error {
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	var buf bytes.Buffer
	routine, err := b.svc.Routines.Export(ctx, session, &buf)
	if errors.Is(err, service.ErrNoRoutine) {
		return b.sendText(msg.Chat.ID, "You have no active routine to export. Activate one in /routines.")
	}
	if err != nil {
		return b.replyError(msg.Chat.ID, "export the routine", err)
	}

	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{Name: exportFileName(routine.Name), Bytes: buf.Bytes()})
	doc.Caption = fmt.Sprintf("📅 <b>%s</b> as a weekly calendar. Import it into any calendar app.", escape(routine.Name))
	doc.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(doc); err != nil {
		return fmt.Errorf("send export: %w", err)
	}
	return nil
}

// exportFileName turns a routine name into a safe .ics file name.
func exportFileName(name string) string {
	var builder strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			builder.WriteRune(r)
			dash = false
		case !dash && builder.Len() > 0:
			builder.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimRight(builder.String(), "-")
	if slug == "" {
		slug = "routine"
	}
	return slug + ".ics"
}
