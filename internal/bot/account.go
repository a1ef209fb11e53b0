package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	session, err := b.session(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	next := "Sign in with /login or create an account with /register."
	if session.SignedIn() {
		next = "You are signed in. See /today for your day or /week for the open routine."
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I am ScheduleAI: I plan your week from your activities.</b>\n\n%s\n\nSee /help for every command.",
		escape(name), next,
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"<b>Account</b>\n" +
		"• /login, /register, /logout\n" +
		"• /profile, /name &lt;first&gt; [last], /password\n" +
		"<b>Activities</b>\n" +
		"• /activities, /newactivity, /editactivity &lt;id&gt;\n" +
		"<b>Routines</b>\n" +
		"• /routines, /open &lt;id&gt;, /activate &lt;id&gt;, /newroutine [name]\n" +
		"• /prefs, /setprefs, /generate\n" +
		"<b>Editing the open routine</b>\n" +
		"• /week lists events with their numbers\n" +
		"• /drop &lt;activity&gt; &lt;day&gt; &lt;HH:MM&gt;\n" +
		"• /move &lt;n&gt; &lt;day&gt; &lt;HH:MM&gt; [HH:MM]\n" +
		"• /rename &lt;n&gt; &lt;title&gt;, /recat &lt;n&gt; &lt;category&gt;, /remove &lt;n&gt;\n" +
		"• /save [name], /analyze\n" +
		"<b>Overview</b>\n" +
		"• /today, /upcoming, /export\n" +
		"• /cancel stops the current input"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) startLogin(ctx context.Context, msg *tgbotapi.Message) error {
	session, err := b.session(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return err
	}
	if session.SignedIn() {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("You are already signed in as %s. Use /logout to switch accounts.", escape(session.Email)))
	}
	b.clearConfirmation(msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageLoginEmail})
	return b.sendWithReplyMarkup(msg.Chat.ID, "📧 Send your e-mail.", cancelKeyboard())
}

func (b *Bot) startRegister(msg *tgbotapi.Message) error {
	b.clearConfirmation(msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageRegisterEmail})
	return b.sendWithReplyMarkup(msg.Chat.ID, "📧 Which e-mail should the account use?", cancelKeyboard())
}

func (b *Bot) handleLogout(ctx context.Context, msg *tgbotapi.Message) error {
	session, err := b.session(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return err
	}
	if !session.SignedIn() {
		return b.sendText(msg.Chat.ID, "You are not signed in.")
	}
	if err := b.svc.Accounts.Logout(ctx, session); err != nil {
		return err
	}
	b.dropEditor(msg.From.ID)
	return b.sendText(msg.Chat.ID, "👋 Signed out.")
}

func (b *Bot) handleProfile(ctx context.Context, msg *tgbotapi.Message) error {
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	profile, err := b.svc.Accounts.Profile(ctx, session)
	if err != nil {
		return b.replyError(msg.Chat.ID, "load the profile", err)
	}
	name := strings.TrimSpace(profile.FirstName + " " + profile.LastName)
	if name == "" {
		name = "not set"
	}
	text := fmt.Sprintf("👤 <b>Profile</b>\nE-mail: %s\nName: %s\n\nChange the name with /name, the password with /password.",
		escape(profile.Email), escape(name))
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleName(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Usage: /name Ana Lopez")
	}
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	first, last, _ := strings.Cut(args, " ")
	profile, err := b.svc.Accounts.UpdateName(ctx, session, first, last)
	if err != nil {
		return b.replyError(msg.Chat.ID, "update the profile", err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✏️ Name updated: %s %s", escape(profile.FirstName), escape(profile.LastName)))
}

func (b *Bot) startPasswordChange(ctx context.Context, msg *tgbotapi.Message) error {
	session, err := b.signedIn(ctx, msg.From, msg.Chat.ID)
	if session == nil {
		return err
	}
	b.clearConfirmation(msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stagePasswordCurrent})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🔐 Send your current password.", cancelKeyboard())
}
