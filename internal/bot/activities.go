package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"scheduleai/internal/model"
	"scheduleai/internal/service"
)

func (b *Bot) handleActivities(ctx context.Context, msg *tgbotapi.Message) error {
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	return b.sendActivityList(ctx, msg.Chat.ID, session)
}

func (b *Bot) sendActivityList(ctx context.Context, chatID int64, session *model.Session) error {
	activities, err := b.svc.Activities.List(ctx, session)
	if err != nil {
		return b.replyError(chatID, "load activities", err)
	}
	text := formatActivities(activities, b.now())
	if len(activities) == 0 {
		return b.sendText(chatID, text)
	}
	return b.sendWithReplyMarkup(chatID, text, activityListKeyboard(activities))
}

func (b *Bot) startNewActivity(ctx context.Context, msg *tgbotapi.Message) error {
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	b.clearConfirmation(msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageActivityName})
	return b.sendWithReplyMarkup(msg.Chat.ID, "📝 Name of the activity?", cancelKeyboard())
}

func (b *Bot) startEditActivity(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	id, err := strconv.Atoi(strings.TrimPrefix(args, "#"))
	if err != nil || id <= 0 {
		return b.sendText(msg.Chat.ID, "Give the activity id: /editactivity 12")
	}
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	activity, err := b.svc.Activities.Find(ctx, session, id)
	if err != nil {
		return b.replyError(msg.Chat.ID, "load the activity", err)
	}

	b.clearConfirmation(msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{
		stage:      stageActivityName,
		activity:   service.InputFromActivity(activity),
		activityID: activity.ID,
	})
	text := fmt.Sprintf("✏️ Editing:\n%s\nSend a new name, or ⏭️ Skip to keep each value.", formatActivity(activity, b.now()))
	return b.sendWithReplyMarkup(msg.Chat.ID, text, skipKeyboard())
}

func (b *Bot) askDeleteActivity(ctx context.Context, chatID int64, from *tgbotapi.User, id int) error {
	session, err := b.signedIn(ctx, from, chatID)
	if session == nil {
		return err
	}
	activity, err := b.svc.Activities.Find(ctx, session, id)
	if err != nil {
		return b.replyError(chatID, "load the activity", err)
	}
	b.setConfirmation(from.ID, confirmationRequest{action: actionDeleteActivity, id: activity.ID})
	text := fmt.Sprintf("Delete activity \"%s\" (#%d)?", escape(normalizeTitle(activity.Name)), activity.ID)
	return b.sendWithReplyMarkup(chatID, text, confirmInlineKeyboard())
}

func (b *Bot) deleteActivity(ctx context.Context, chatID int64, from *tgbotapi.User, id int) error {
	session, err := b.signedIn(ctx, from, chatID)
	if session == nil {
		return err
	}
	if err := b.svc.Activities.Delete(ctx, session, id); err != nil {
		return b.replyError(chatID, "delete the activity", err)
	}
	b.log.Info("activity deleted", zap.Int64("telegram_id", from.ID), zap.Int("activity_id", id))
	if err := b.sendTextWithRemove(chatID, "🗑 Activity deleted."); err != nil {
		return err
	}
	return b.sendActivityList(ctx, chatID, session)
}

// findActivity resolves "/drop" references: a name or an id.
func (b *Bot) findActivity(ctx context.Context, session *model.Session, ref string) (model.Activity, error) {
	return b.svc.Activities.FindByName(ctx, session, strings.TrimPrefix(strings.TrimSpace(ref), "#"))
}
