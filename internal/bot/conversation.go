package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"scheduleai/internal/model"
	"scheduleai/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageLoginEmail
	stageLoginPassword
	stageRegisterEmail
	stageRegisterPassword
	stageRegisterConfirm
	stageRegisterFirstName
	stageRegisterLastName
	stagePasswordCurrent
	stagePasswordNew
	stagePasswordConfirm
	stageActivityName
	stageActivityDuration
	stageActivityPriority
	stageActivityCategory
	stageActivityRecurrent
	stageActivityDays
	stagePreferences
)

type conversationState struct {
	stage    conversationStage
	email    string
	register service.RegisterInput
	current  string
	next     string
	activity service.ActivityInput
	// activityID is zero while creating a new activity.
	activityID int
}

func (s *conversationState) editing() bool {
	return s.activityID != 0
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	text := strings.TrimSpace(msg.Text)
	chatID := msg.Chat.ID

	switch state.stage {
	case stageLoginEmail:
		if text == "" {
			return b.sendWithReplyMarkup(chatID, "Send the e-mail you registered with.", cancelKeyboard())
		}
		state.email = text
		state.stage = stageLoginPassword
		b.setConversation(msg.From.ID, state)
		return b.sendWithReplyMarkup(chatID, "🔑 Now the password. I delete the message right after reading it.", cancelKeyboard())

	case stageLoginPassword:
		b.deleteMessage(chatID, msg.MessageID)
		b.clearConversation(msg.From.ID)
		return b.finishLogin(ctx, msg, state.email, msg.Text)

	case stageRegisterEmail:
		state.register.Email = text
		state.stage = stageRegisterPassword
		b.setConversation(msg.From.ID, state)
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("Choose a password, at least %d characters.", service.MinPasswordLength), cancelKeyboard())

	case stageRegisterPassword:
		b.deleteMessage(chatID, msg.MessageID)
		state.register.Password = msg.Text
		state.stage = stageRegisterConfirm
		b.setConversation(msg.From.ID, state)
		return b.sendWithReplyMarkup(chatID, "Repeat the password.", cancelKeyboard())

	case stageRegisterConfirm:
		b.deleteMessage(chatID, msg.MessageID)
		state.register.Confirm = msg.Text
		state.stage = stageRegisterFirstName
		b.setConversation(msg.From.ID, state)
		return b.sendWithReplyMarkup(chatID, "First name? Send ⏭️ Skip to leave it empty.", skipKeyboard())

	case stageRegisterFirstName:
		if !isSkipInput(text) {
			state.register.FirstName = text
		}
		state.stage = stageRegisterLastName
		b.setConversation(msg.From.ID, state)
		return b.sendWithReplyMarkup(chatID, "Last name? Send ⏭️ Skip to leave it empty.", skipKeyboard())

	case stageRegisterLastName:
		if !isSkipInput(text) {
			state.register.LastName = text
		}
		b.clearConversation(msg.From.ID)
		return b.finishRegister(ctx, chatID, state.register)

	case stagePasswordCurrent:
		b.deleteMessage(chatID, msg.MessageID)
		state.current = msg.Text
		state.stage = stagePasswordNew
		b.setConversation(msg.From.ID, state)
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("New password, at least %d characters.", service.MinPasswordLength), cancelKeyboard())

	case stagePasswordNew:
		b.deleteMessage(chatID, msg.MessageID)
		state.next = msg.Text
		state.stage = stagePasswordConfirm
		b.setConversation(msg.From.ID, state)
		return b.sendWithReplyMarkup(chatID, "Repeat the new password.", cancelKeyboard())

	case stagePasswordConfirm:
		b.deleteMessage(chatID, msg.MessageID)
		b.clearConversation(msg.From.ID)
		return b.finishPasswordChange(ctx, msg, state.current, state.next, msg.Text)

	case stageActivityName:
		if !(state.editing() && isSkipInput(text)) {
			if text == "" {
				return b.sendWithReplyMarkup(chatID, "The name cannot be empty.", cancelKeyboard())
			}
			state.activity.Name = text
		}
		state.stage = stageActivityDuration
		b.setConversation(msg.From.ID, state)
		return b.sendWithReplyMarkup(chatID, "⏱ How long does it take? Minutes like 90, or 1h30m.", b.stepKeyboard(state))

	case stageActivityDuration:
		if !(state.editing() && isSkipInput(text)) {
			minutes, err := parseMinutes(text)
			if err != nil {
				return b.sendWithReplyMarkup(chatID, escape(err.Error()), b.stepKeyboard(state))
			}
			state.activity.Duration = minutes
		}
		state.stage = stageActivityPriority
		b.setConversation(msg.From.ID, state)
		return b.sendWithReplyMarkup(chatID, "Priority: high, medium or low?", priorityKeyboard())

	case stageActivityPriority:
		if !(state.editing() && isSkipInput(text)) {
			if _, ok := model.ParsePriority(text); !ok {
				return b.sendWithReplyMarkup(chatID, "Pick high, medium or low.", priorityKeyboard())
			}
			state.activity.Priority = text
		}
		state.stage = stageActivityCategory
		b.setConversation(msg.From.ID, state)
		return b.sendWithReplyMarkup(chatID, "Category?", categoryKeyboard())

	case stageActivityCategory:
		if !(state.editing() && isSkipInput(text)) {
			if _, ok := model.ParseCategory(text); !ok {
				return b.sendWithReplyMarkup(chatID, "Pick one of the categories below.", categoryKeyboard())
			}
			state.activity.Category = text
		}
		state.stage = stageActivityRecurrent
		b.setConversation(msg.From.ID, state)
		return b.sendWithReplyMarkup(chatID, "♻️ Does it repeat every week?", yesNoKeyboard())

	case stageActivityRecurrent:
		recurrent, ok := parseYesNo(text)
		if !ok {
			return b.sendWithReplyMarkup(chatID, "Answer Yes or No.", yesNoKeyboard())
		}
		state.activity.Recurrent = recurrent
		if !recurrent {
			state.activity.Days = nil
			b.clearConversation(msg.From.ID)
			return b.finishActivity(ctx, msg, state)
		}
		state.stage = stageActivityDays
		b.setConversation(msg.From.ID, state)
		return b.sendWithReplyMarkup(chatID, "On which days? For example mon,wed,fri or weekdays.", cancelKeyboard())

	case stageActivityDays:
		days, err := parseDays(text)
		if err != nil {
			return b.sendWithReplyMarkup(chatID, escape(err.Error()), cancelKeyboard())
		}
		state.activity.Days = days
		b.clearConversation(msg.From.ID)
		return b.finishActivity(ctx, msg, state)

	case stagePreferences:
		return b.finishPreferences(ctx, msg)

	default:
		b.clearConversation(msg.From.ID)
		return b.sendMenuPlaceholder(chatID)
	}
}

func (b *Bot) stepKeyboard(state *conversationState) interface{} {
	if state.editing() {
		return skipKeyboard()
	}
	return cancelKeyboard()
}

func (b *Bot) finishLogin(ctx context.Context, msg *tgbotapi.Message, email, password string) error {
	session, err := b.session(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return err
	}
	profile, err := b.svc.Accounts.Login(ctx, session, email, password)
	if err != nil {
		return b.replyError(msg.Chat.ID, "sign in", err)
	}
	// the new token may belong to another account
	b.dropEditor(msg.From.ID)
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ Welcome, %s! Try /today or /week.", escape(profile.DisplayName())))
}

func (b *Bot) finishRegister(ctx context.Context, chatID int64, in service.RegisterInput) error {
	profile, err := b.svc.Accounts.Register(ctx, in)
	if err != nil {
		return b.replyError(chatID, "create the account", err)
	}
	return b.sendText(chatID, fmt.Sprintf("🎉 Account %s created. Sign in with /login.", escape(profile.Email)))
}

func (b *Bot) finishPasswordChange(ctx context.Context, msg *tgbotapi.Message, current, next, confirm string) error {
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	if err := b.svc.Accounts.ChangePassword(ctx, session, current, next, confirm); err != nil {
		return b.replyError(msg.Chat.ID, "change the password", err)
	}
	return b.sendText(msg.Chat.ID, "🔐 Password changed.")
}

func (b *Bot) finishActivity(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	now := b.now()
	if state.editing() {
		activity, err := b.svc.Activities.Update(ctx, session, state.activityID, state.activity)
		if err != nil {
			return b.replyError(msg.Chat.ID, "update the activity", err)
		}
		b.log.Info("activity updated", zap.Int64("telegram_id", session.TelegramID), zap.Int("activity_id", activity.ID))
		return b.sendText(msg.Chat.ID, "✏️ Activity updated.\n\n"+formatActivity(activity, now))
	}
	activity, err := b.svc.Activities.Create(ctx, session, state.activity)
	if err != nil {
		return b.replyError(msg.Chat.ID, "create the activity", err)
	}
	b.log.Info("activity created", zap.Int64("telegram_id", session.TelegramID), zap.Int("activity_id", activity.ID))
	return b.sendText(msg.Chat.ID, "✅ Activity added.\n\n"+formatActivity(activity, now))
}

func (b *Bot) finishPreferences(ctx context.Context, msg *tgbotapi.Message) error {
	if normalizeInput(msg.Text) == "reset" {
		b.clearConversation(msg.From.ID)
		prefs, err := b.svc.Preferences.Reset(ctx, msg.From.ID)
		if err != nil {
			return err
		}
		return b.sendPreferences(msg.Chat.ID, "♻️ Preferences reset to defaults.", prefs)
	}
	current, err := b.svc.Preferences.Get(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	prefs, err := service.DecodePreferences(msg.Text, current)
	if err != nil {
		return b.sendWithReplyMarkup(msg.Chat.ID, "⚠️ "+escape(err.Error())+"\nFix it and send again, or stop the input.", cancelKeyboard())
	}
	b.clearConversation(msg.From.ID)
	if err := b.svc.Preferences.Save(ctx, msg.From.ID, prefs); err != nil {
		return b.replyError(msg.Chat.ID, "save preferences", err)
	}
	return b.sendPreferences(msg.Chat.ID, "✅ Preferences saved. /generate will use them.", prefs)
}
