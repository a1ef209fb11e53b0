package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type confirmationAction int

const (
	actionDeleteActivity confirmationAction = iota
	actionDeleteRoutine
	actionRemoveEvent
	// The discard actions replace a dirty editor.
	actionDiscardOpen
	actionDiscardGenerate
	actionDiscardDraft
)

type confirmationRequest struct {
	action  confirmationAction
	id      int
	eventID string
	name    string
}

func (r confirmationRequest) prompt() string {
	switch r.action {
	case actionDeleteActivity:
		return "Confirm or cancel deleting the activity."
	case actionDeleteRoutine:
		return "Confirm or cancel deleting the routine."
	case actionRemoveEvent:
		return "Confirm or cancel removing the event."
	default:
		return "Confirm to discard the unsaved changes, or cancel and /save first."
	}
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.runConfirmed(ctx, msg.Chat.ID, msg.From, req)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendMenuPlaceholder(msg.Chat.ID)
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, req.prompt(), confirmKeyboard())
	}
}

func (b *Bot) runConfirmed(ctx context.Context, chatID int64, from *tgbotapi.User, req confirmationRequest) error {
	switch req.action {
	case actionDeleteActivity:
		return b.deleteActivity(ctx, chatID, from, req.id)
	case actionDeleteRoutine:
		return b.deleteRoutine(ctx, chatID, from, req.id)
	case actionRemoveEvent:
		return b.removeEvent(chatID, from, req.eventID)
	case actionDiscardOpen:
		return b.openRoutine(ctx, chatID, from, req.id)
	case actionDiscardGenerate:
		return b.generate(ctx, chatID, from)
	case actionDiscardDraft:
		return b.newDraft(chatID, from, req.name)
	default:
		return nil
	}
}

// guardDirty asks before an action would replace unsaved edits. It reports
// whether the caller should stop and wait for the answer.
func (b *Bot) guardDirty(chatID int64, from *tgbotapi.User, req confirmationRequest) (bool, error) {
	e := b.editor(from.ID)
	if !e.Open() || !e.Dirty() {
		return false, nil
	}
	b.setConfirmation(from.ID, req)
	text := "⚠️ The open routine has unsaved changes. Discard them?"
	return true, b.sendWithReplyMarkup(chatID, text, confirmInlineKeyboard())
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	b.ack(cb)

	data := cb.Data
	chatID := cb.Message.Chat.ID
	b.log.Debug("callback", zap.Int64("telegram_id", cb.From.ID), zap.String("data", data))

	switch {
	case data == cbConfirm:
		req, ok := b.getConfirmation(cb.From.ID)
		if !ok {
			return nil
		}
		b.clearConfirmation(cb.From.ID)
		return b.runConfirmed(ctx, chatID, cb.From, req)
	case data == cbCancel:
		if _, ok := b.getConfirmation(cb.From.ID); !ok {
			return nil
		}
		b.clearConfirmation(cb.From.ID)
		return b.sendMenuPlaceholder(chatID)
	case strings.HasPrefix(data, cbActivityDeletePrefix):
		id, err := parseCallbackID(data, cbActivityDeletePrefix)
		if err != nil {
			return nil
		}
		return b.askDeleteActivity(ctx, chatID, cb.From, id)
	case strings.HasPrefix(data, cbRoutineOpenPrefix):
		id, err := parseCallbackID(data, cbRoutineOpenPrefix)
		if err != nil {
			return nil
		}
		if wait, err := b.guardDirty(chatID, cb.From, confirmationRequest{action: actionDiscardOpen, id: id}); wait {
			return err
		}
		return b.openRoutine(ctx, chatID, cb.From, id)
	case strings.HasPrefix(data, cbRoutineActivatePrefix):
		id, err := parseCallbackID(data, cbRoutineActivatePrefix)
		if err != nil {
			return nil
		}
		return b.activateRoutine(ctx, chatID, cb.From, id)
	case strings.HasPrefix(data, cbRoutineDeletePrefix):
		id, err := parseCallbackID(data, cbRoutineDeletePrefix)
		if err != nil {
			return nil
		}
		return b.askDeleteRoutine(ctx, chatID, cb.From, id)
	case strings.HasPrefix(data, cbEventRemovePrefix):
		return b.askRemoveEvent(chatID, cb.From, strings.TrimPrefix(data, cbEventRemovePrefix))
	default:
		return nil
	}
}
