// Package bot is the Telegram front-end of ScheduleAI.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"scheduleai/internal/api"
	"scheduleai/internal/config"
	"scheduleai/internal/model"
	"scheduleai/internal/service"
)

// Observer receives bot traffic counters.
type Observer interface {
	ObserveUpdate(kind string, err error)
	ReminderSent()
}

// Services bundles the use cases the bot drives.
type Services struct {
	Accounts    *service.AccountService
	Activities  *service.ActivityService
	Routines    *service.RoutineService
	Preferences *service.PreferencesService
	Reminders   *service.ReminderService
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api      *tgbotapi.BotAPI
	svc      Services
	config   *config.Config
	observer Observer
	log      *zap.Logger

	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	editors       map[int64]*service.Editor
	mu            sync.Mutex
}

func New(token string, svc Services, cfg *config.Config, observer Observer, log *zap.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return newBot(botAPI, svc, cfg, observer, log), nil
}

func newBot(botAPI *tgbotapi.BotAPI, svc Services, cfg *config.Config, observer Observer, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("bot authorized", zap.String("account", botAPI.Self.UserName))
	return &Bot{
		api:           botAPI,
		svc:           svc,
		config:        cfg,
		observer:      observer,
		log:           log,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
		editors:       make(map[int64]*service.Editor),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			err := b.handleCallback(ctx, update.CallbackQuery)
			b.observe("callback", err)
			if err != nil {
				b.log.Error("handle callback", zap.Error(err))
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			kind := "message"
			if update.Message.IsCommand() {
				kind = "command"
			}
			err := b.handleMessage(ctx, update.Message)
			b.observe(kind, err)
			if err != nil {
				b.log.Error("handle message", zap.Error(err))
			}
		}
	}

	return ctx.Err()
}

func (b *Bot) observe(kind string, err error) {
	if b.observer != nil {
		b.observer.ObserveUpdate(kind, err)
	}
}

// SendReminders pushes the upcoming events of every signed-in user.
func (b *Bot) SendReminders(ctx context.Context) error {
	return b.svc.Reminders.Broadcast(ctx, b.svc.Accounts.Now(), func(chatID int64, text string) error {
		if err := b.sendText(chatID, text); err != nil {
			return err
		}
		if b.observer != nil {
			b.observer.ReminderSent()
		}
		return nil
	})
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.log.Debug("command", zap.Int64("telegram_id", msg.From.ID), zap.String("command", msg.Command()))
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if state := b.getConversation(msg.From.ID); state != nil {
		b.log.Debug("conversation step", zap.Int64("telegram_id", msg.From.ID), zap.Int("stage", int(state.stage)))
		return b.handleConversation(ctx, msg, state)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Try /week to see your routine or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")

	case "login":
		return b.startLogin(ctx, msg)
	case "register":
		return b.startRegister(msg)
	case "logout":
		return b.handleLogout(ctx, msg)
	case "profile":
		return b.handleProfile(ctx, msg)
	case "name":
		return b.handleName(ctx, msg)
	case "password":
		return b.startPasswordChange(ctx, msg)

	case "activities":
		return b.handleActivities(ctx, msg)
	case "newactivity":
		return b.startNewActivity(ctx, msg)
	case "editactivity":
		return b.startEditActivity(ctx, msg)

	case "prefs":
		return b.handlePreferences(ctx, msg)
	case "setprefs":
		return b.startSetPreferences(ctx, msg)

	case "routines":
		return b.handleRoutines(ctx, msg)
	case "open":
		return b.handleOpen(ctx, msg)
	case "newroutine":
		return b.handleNewRoutine(ctx, msg)
	case "activate":
		return b.handleActivate(ctx, msg)
	case "generate":
		return b.handleGenerate(ctx, msg)

	case "week":
		return b.handleWeek(ctx, msg)
	case "drop":
		return b.handleDrop(ctx, msg)
	case "move":
		return b.handleMove(ctx, msg)
	case "rename":
		return b.handleRename(ctx, msg)
	case "recat":
		return b.handleRecategorize(ctx, msg)
	case "remove":
		return b.handleRemove(ctx, msg)
	case "save":
		return b.handleSave(ctx, msg)
	case "analyze":
		return b.handleAnalyze(ctx, msg)

	case "today":
		return b.handleToday(ctx, msg)
	case "upcoming":
		return b.handleUpcoming(ctx, msg)
	case "export":
		return b.handleExport(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch normalizeInput(msg.Text) {
	case normalizeInput(menuLabelWeek):
		return true, b.handleWeek(ctx, msg)
	case normalizeInput(menuLabelToday):
		return true, b.handleToday(ctx, msg)
	case normalizeInput(menuLabelActivities):
		return true, b.handleActivities(ctx, msg)
	case normalizeInput(menuLabelRoutines):
		return true, b.handleRoutines(ctx, msg)
	case normalizeInput(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

// session records the chat user and returns their stored session.
func (b *Bot) session(ctx context.Context, from *tgbotapi.User, chatID int64) (*model.Session, error) {
	return b.svc.Accounts.Touch(ctx, from.ID, chatID, from.FirstName, from.LastName, from.UserName)
}

// signedIn returns the session, or nil after telling the user to sign in.
func (b *Bot) signedIn(ctx context.Context, from *tgbotapi.User, chatID int64) (*model.Session, error) {
	session, err := b.session(ctx, from, chatID)
	if err != nil {
		return nil, err
	}
	if !session.SignedIn() {
		b.dropEditor(from.ID)
		return nil, b.sendText(chatID, signedOutText)
	}
	return session, nil
}

func (b *Bot) editor(userID int64) *service.Editor {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.editors[userID]
	if !ok {
		e = service.NewEditor()
		b.editors[userID] = e
	}
	return e
}

// dropEditor forgets the user's open routine. Called when the session is
// gone and after every sign-in, so a routine ID never crosses accounts.
func (b *Bot) dropEditor(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.editors, userID)
}

// replyError turns a use-case error into a chat reply. Unexpected errors are
// logged and reported without internals.
func (b *Bot) replyError(chatID int64, action string, err error) error {
	var validation *service.ValidationError
	var apiErr *api.Error
	switch {
	case errors.Is(err, service.ErrSignedOut):
		return b.sendText(chatID, signedOutText)
	case errors.As(err, &validation):
		return b.sendText(chatID, "⚠️ "+escape(validation.Message))
	case errors.Is(err, service.ErrNoRoutine):
		return b.sendText(chatID, "No routine is open. Use /routines, /newroutine or /generate first.")
	case errors.Is(err, service.ErrEventNotFound):
		return b.sendText(chatID, "That event is not in the open routine. See /week.")
	case errors.Is(err, service.ErrInvalidTiming):
		return b.sendText(chatID, "⚠️ An event must end after it starts.")
	case errors.Is(err, service.ErrDuplicateEvent):
		return b.sendText(chatID, "⚠️ That event is already in the routine.")
	case errors.Is(err, service.ErrActivityNotFound):
		return b.sendText(chatID, "Activity not found. See /activities.")
	case errors.Is(err, service.ErrRoutineNotFound):
		return b.sendText(chatID, "Routine not found. See /routines.")
	case errors.Is(err, service.ErrStaleLoad):
		return nil
	case errors.As(err, &apiErr):
		return b.sendText(chatID, fmt.Sprintf("Could not %s: %s", action, escape(apiErr.Error())))
	default:
		b.log.Error(action, zap.Int64("chat_id", chatID), zap.Error(err))
		return b.sendText(chatID, fmt.Sprintf("Could not %s. The ScheduleAI service is not reachable right now.", action))
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendMenuPlaceholder(chatID int64) error {
	return b.sendText(chatID, "🔹 Main menu")
}

// deleteMessage removes a message the user sent, e.g. one holding a password.
func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.log.Debug("delete message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) ack(cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Debug("callback ack", zap.Error(err))
	}
}

func (b *Bot) now() time.Time {
	return b.svc.Accounts.Now()
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}
