package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"scheduleai/internal/model"
	"scheduleai/internal/service"
)

func (b *Bot) sendWeek(chatID int64, e *service.Editor) error {
	sorted := e.SortedEvents()
	text := formatWeek(e.Name(), sorted, e.Dirty())
	if len(sorted) == 0 {
		return b.sendText(chatID, text)
	}
	return b.sendWithReplyMarkup(chatID, text, eventRemoveKeyboard(sorted))
}

// openEditor returns the user's editor, loading the active routine when
// nothing is open yet. It returns nil after telling the user why.
func (b *Bot) openEditor(ctx context.Context, chatID int64, session *model.Session) (*service.Editor, error) {
	e := b.editor(session.TelegramID)
	if e.Open() {
		return e, nil
	}
	routine, err := b.svc.Routines.OpenActive(ctx, session, e)
	if err != nil {
		return nil, b.replyError(chatID, "load the active routine", err)
	}
	if routine == nil {
		return nil, b.replyError(chatID, "edit", service.ErrNoRoutine)
	}
	return e, nil
}

func (b *Bot) handleWeek(ctx context.Context, msg *tgbotapi.Message) error {
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	e, err := b.openEditor(ctx, msg.Chat.ID, session)
	if e == nil {
		return err
	}
	return b.sendWeek(msg.Chat.ID, e)
}

func (b *Bot) handleDrop(ctx context.Context, msg *tgbotapi.Message) error {
	args, err := parseDropArgs(msg.CommandArguments(), b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	e, err := b.openEditor(ctx, msg.Chat.ID, session)
	if e == nil {
		return err
	}
	activity, err := b.findActivity(ctx, session, args.activity)
	if err != nil {
		return b.replyError(msg.Chat.ID, "find the activity", err)
	}

	payload := service.PayloadFromActivity(activity)
	// A redelivered update carries the same message id and is dropped once.
	payload.ID = fmt.Sprintf("drop-%d-%d", msg.Chat.ID, msg.MessageID)
	if _, err := e.ReceiveExternalDrop(payload, args.start, time.Time{}); err != nil {
		return b.replyError(msg.Chat.ID, "place the activity", err)
	}
	b.log.Debug("activity dropped", zap.Int64("telegram_id", msg.From.ID), zap.Int("activity_id", activity.ID))
	return b.sendWeek(msg.Chat.ID, e)
}

func (b *Bot) handleMove(ctx context.Context, msg *tgbotapi.Message) error {
	args, err := parseMoveArgs(msg.CommandArguments(), b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	e, err := b.openEditor(ctx, msg.Chat.ID, session)
	if e == nil {
		return err
	}
	ev, err := resolveEvent(e.SortedEvents(), args.event)
	if err != nil {
		return b.replyError(msg.Chat.ID, "move the event", err)
	}
	end := args.end
	if end.IsZero() {
		end = args.start.Add(ev.Duration())
	}
	if err := e.ChangeEventTiming(ev.ID, args.start, end); err != nil {
		return b.replyError(msg.Chat.ID, "move the event", err)
	}
	return b.sendWeek(msg.Chat.ID, e)
}

func (b *Bot) handleRename(ctx context.Context, msg *tgbotapi.Message) error {
	ref, title := splitRef(msg.CommandArguments())
	if ref == "" || title == "" {
		return b.sendText(msg.Chat.ID, "Usage: /rename &lt;n&gt; &lt;new title&gt;")
	}
	return b.patchEvent(ctx, msg, ref, service.EventPatch{Title: &title})
}

func (b *Bot) handleRecategorize(ctx context.Context, msg *tgbotapi.Message) error {
	ref, raw := splitRef(msg.CommandArguments())
	category, ok := model.ParseCategory(raw)
	if ref == "" || !ok {
		names := make([]string, 0, len(model.Categories))
		for _, c := range model.Categories {
			names = append(names, string(c))
		}
		return b.sendText(msg.Chat.ID, "Usage: /recat &lt;n&gt; &lt;category&gt;\nCategories: "+strings.Join(names, ", "))
	}
	return b.patchEvent(ctx, msg, ref, service.EventPatch{Category: &category})
}

func (b *Bot) patchEvent(ctx context.Context, msg *tgbotapi.Message, ref string, patch service.EventPatch) error {
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	e, err := b.openEditor(ctx, msg.Chat.ID, session)
	if e == nil {
		return err
	}
	ev, err := resolveEvent(e.SortedEvents(), ref)
	if err != nil {
		return b.replyError(msg.Chat.ID, "edit the event", err)
	}
	if err := e.UpdateEventFields(ev.ID, patch); err != nil {
		return b.replyError(msg.Chat.ID, "edit the event", err)
	}
	return b.sendWeek(msg.Chat.ID, e)
}

func (b *Bot) handleRemove(ctx context.Context, msg *tgbotapi.Message) error {
	ref := strings.TrimSpace(msg.CommandArguments())
	if ref == "" {
		return b.sendText(msg.Chat.ID, "Usage: /remove &lt;n&gt;. Numbers are shown in /week.")
	}
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	if e, err := b.openEditor(ctx, msg.Chat.ID, session); e == nil {
		return err
	}
	return b.askRemoveEvent(msg.Chat.ID, msg.From, ref)
}

// askRemoveEvent confirms before an event leaves the routine.
func (b *Bot) askRemoveEvent(chatID int64, from *tgbotapi.User, ref string) error {
	e := b.editor(from.ID)
	if !e.Open() {
		return b.replyError(chatID, "remove the event", service.ErrNoRoutine)
	}
	ev, err := resolveEvent(e.SortedEvents(), ref)
	if err != nil {
		return b.replyError(chatID, "remove the event", err)
	}
	b.setConfirmation(from.ID, confirmationRequest{action: actionRemoveEvent, eventID: ev.ID})
	text := fmt.Sprintf("Remove \"%s\" on %s %s-%s?",
		escape(normalizeTitle(ev.Title)),
		ev.Start.Format("Monday"),
		ev.Start.Format("15:04"),
		ev.End.Format("15:04"))
	return b.sendWithReplyMarkup(chatID, text, confirmInlineKeyboard())
}

func (b *Bot) removeEvent(chatID int64, from *tgbotapi.User, eventID string) error {
	e := b.editor(from.ID)
	if err := e.DeleteEvent(eventID); err != nil {
		return b.replyError(chatID, "remove the event", err)
	}
	return b.sendWeek(chatID, e)
}

func (b *Bot) handleSave(ctx context.Context, msg *tgbotapi.Message) error {
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	e := b.editor(msg.From.ID)
	if !e.Open() {
		return b.replyError(msg.Chat.ID, "save", service.ErrNoRoutine)
	}
	if name := strings.TrimSpace(msg.CommandArguments()); name != "" {
		if err := e.Rename(name); err != nil {
			return b.replyError(msg.Chat.ID, "save", err)
		}
	}
	saved, err := b.svc.Routines.Save(ctx, session, e)
	if err != nil {
		return b.replyError(msg.Chat.ID, "save the routine", err)
	}
	if saved.ID == nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("💾 Saved <b>%s</b> with %d events. See /routines for its id.", escape(saved.Name), len(saved.Events)))
	}
	text := fmt.Sprintf("💾 Saved <b>%s</b> (#%d) with %d events.", escape(saved.Name), *saved.ID, len(saved.Events))
	if !saved.IsActive {
		text += fmt.Sprintf("\nMake it your active routine with /activate %d.", *saved.ID)
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleAnalyze(ctx context.Context, msg *tgbotapi.Message) error {
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	e, err := b.openEditor(ctx, msg.Chat.ID, session)
	if e == nil {
		return err
	}
	suggestions, err := b.svc.Routines.Analyze(ctx, session, e.Events())
	if err != nil {
		return b.replyError(msg.Chat.ID, "analyze the routine", err)
	}
	return b.sendText(msg.Chat.ID, formatSuggestions(suggestions))
}
