package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"scheduleai/internal/api"
	"scheduleai/internal/config"
	"scheduleai/internal/repository"
	"scheduleai/internal/service"
)

const (
	testUserID = int64(7)
	testChatID = int64(70)
)

// fakeTelegram answers Bot API calls and records what the bot sent.
type fakeTelegram struct {
	mu    sync.Mutex
	calls []telegramCall
}

type telegramCall struct {
	method string
	text   string
	file   string
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)
	call := telegramCall{method: method, text: r.FormValue("text")}
	if method == "sendDocument" {
		call.text = r.FormValue("caption")
		if _, header, err := r.FormFile("document"); err == nil {
			call.file = header.Filename
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getMe":
		_, _ = fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"ScheduleAI","username":"scheduleai_bot"}}`)
	case "sendMessage", "sendDocument":
		_, _ = fmt.Fprint(w, `{"ok":true,"result":{"message_id":100,"date":0,"chat":{"id":70,"type":"private"}}}`)
	default:
		_, _ = fmt.Fprint(w, `{"ok":true,"result":true}`)
	}
}

func (f *fakeTelegram) last(method string) telegramCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].method == method {
			return f.calls[i]
		}
	}
	return telegramCall{}
}

func (f *fakeTelegram) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.method == method {
			n++
		}
	}
	return n
}

// fakeBackend serves canned ScheduleAI responses keyed by "METHOD /path".
type fakeBackend struct {
	mu        sync.Mutex
	responses map[string]string
	statuses  map[string]int
	bodies    map[string]string
	hits      int
}

func (f *fakeBackend) on(method, p string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[method+" "+p] = body
	f.statuses[method+" "+p] = status
}

func (f *fakeBackend) body(method, p string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[method+" "+p]
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	data, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.hits++
	f.bodies[key] = string(data)
	body, ok := f.responses[key]
	status := f.statuses[key]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"detail":"Not Found"}`)
		return
	}
	w.WriteHeader(status)
	_, _ = fmt.Fprint(w, body)
}

type fakeObserver struct {
	updates   []string
	reminders int
}

func (o *fakeObserver) ObserveUpdate(kind string, err error) {
	o.updates = append(o.updates, kind)
}

func (o *fakeObserver) ReminderSent() {
	o.reminders++
}

type botEnv struct {
	bot      *Bot
	telegram *fakeTelegram
	backend  *fakeBackend
	sessions *repository.SessionRepository
	observer *fakeObserver
	nextID   int
}

func newBotEnv(t *testing.T) *botEnv {
	t.Helper()
	log := zaptest.NewLogger(t)

	telegram := &fakeTelegram{}
	tgSrv := httptest.NewServer(telegram)
	t.Cleanup(tgSrv.Close)
	botAPI, err := tgbotapi.NewBotAPIWithClient("test-token", tgSrv.URL+"/bot%s/%s", tgSrv.Client())
	require.NoError(t, err)

	backend := &fakeBackend{responses: map[string]string{}, statuses: map[string]int{}, bodies: map[string]string{}}
	apiSrv := httptest.NewServer(backend)
	t.Cleanup(apiSrv.Close)
	client, err := api.New(apiSrv.URL, api.Options{Location: time.UTC, Logger: log})
	require.NoError(t, err)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:bot_%s?mode=memory&cache=shared", name), log)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	sessions := repository.NewSessionRepository(db)
	cache := repository.NewRoutineCacheRepository(db)
	accounts := service.NewAccountService(client, sessions, cache, log)
	prefs := service.NewPreferencesService(repository.NewPreferencesRepository(db))
	routines := service.NewRoutineService(accounts, prefs, cache, log)
	svc := Services{
		Accounts:    accounts,
		Activities:  service.NewActivityService(accounts),
		Routines:    routines,
		Preferences: prefs,
		Reminders:   service.NewReminderService(routines, sessions, 1000, 3, log),
	}

	cfg := config.Default()
	observer := &fakeObserver{}
	return &botEnv{
		bot:      newBot(botAPI, svc, &cfg, observer, log),
		telegram: telegram,
		backend:  backend,
		sessions: sessions,
		observer: observer,
		nextID:   1,
	}
}

func (e *botEnv) signIn(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := e.sessions.UpsertFromTelegram(ctx, testUserID, testChatID, "Ana", "", "ana")
	require.NoError(t, err)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ana@example.com",
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	require.NoError(t, e.sessions.SaveToken(ctx, testUserID, token, "ana@example.com"))
}

// send delivers a private text message from the test user.
func (e *botEnv) send(t *testing.T, text string) {
	t.Helper()
	msg := &tgbotapi.Message{
		MessageID: e.nextID,
		From:      &tgbotapi.User{ID: testUserID, FirstName: "Ana", UserName: "ana"},
		Chat:      &tgbotapi.Chat{ID: testChatID, Type: "private"},
		Text:      text,
	}
	e.nextID++
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	require.NoError(t, e.bot.handleMessage(context.Background(), msg))
}

func (e *botEnv) press(t *testing.T, data string) {
	t.Helper()
	cb := &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: testUserID, FirstName: "Ana"},
		Message: &tgbotapi.Message{MessageID: 100, Chat: &tgbotapi.Chat{ID: testChatID, Type: "private"}},
		Data:    data,
	}
	require.NoError(t, e.bot.handleCallback(context.Background(), cb))
}

func (e *botEnv) lastText() string {
	return e.telegram.last("sendMessage").text
}

const gymActivity = `[{"id":4,"name":"Gym","duration":60,"priority":"alta","category":"ejercicio","is_recurrent":false,"recurrent_days":[]}]`

func TestLoginConversation(t *testing.T) {
	env := newBotEnv(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	env.backend.on(http.MethodPost, "/token", http.StatusOK, `{"access_token":"`+token+`","token_type":"bearer"}`)
	env.backend.on(http.MethodGet, "/users/me", http.StatusOK, `{"id":3,"email":"ana@example.com","first_name":"Ana"}`)

	env.send(t, "/login")
	assert.Contains(t, env.lastText(), "e-mail")
	env.send(t, "ana@example.com")
	assert.Contains(t, env.lastText(), "password")
	env.send(t, "password1")

	assert.Equal(t, 1, env.telegram.count("deleteMessage"))
	assert.Contains(t, env.lastText(), "Welcome, Ana")
	assert.Nil(t, env.bot.getConversation(testUserID))

	session, err := env.sessions.FindByTelegramID(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, token, session.Token)
}

func TestLoginFailureShowsBackendDetail(t *testing.T) {
	env := newBotEnv(t)
	env.backend.on(http.MethodPost, "/token", http.StatusUnauthorized, `{"detail":"Incorrect username or password"}`)

	env.send(t, "/login")
	env.send(t, "ana@example.com")
	env.send(t, "wrong")

	assert.Equal(t, "Could not sign in: Incorrect username or password", env.lastText())
}

func TestSignedOutUserIsAskedToLogin(t *testing.T) {
	env := newBotEnv(t)

	env.send(t, "/week")

	assert.Equal(t, signedOutText, env.lastText())
	assert.Zero(t, env.backend.hits)
}

func (e *botEnv) hasEditor() bool {
	e.bot.mu.Lock()
	defer e.bot.mu.Unlock()
	_, ok := e.bot.editors[testUserID]
	return ok
}

func TestExpiredSessionDropsEditor(t *testing.T) {
	env := newBotEnv(t)
	env.signIn(t)
	env.backend.on(http.MethodGet, "/activities/", http.StatusOK, gymActivity)
	env.backend.on(http.MethodGet, "/schedules/active/", http.StatusUnauthorized, `{"detail":"Could not validate credentials"}`)

	env.send(t, "/newroutine Week A")
	env.send(t, "/drop gym mon 07:00")
	require.True(t, env.hasEditor())

	env.send(t, "/today")
	assert.Equal(t, signedOutText, env.lastText())

	env.send(t, "/week")
	assert.Equal(t, signedOutText, env.lastText())
	assert.False(t, env.hasEditor())
}

func TestLoginDropsOpenEditor(t *testing.T) {
	env := newBotEnv(t)
	env.signIn(t)
	env.backend.on(http.MethodGet, "/activities/", http.StatusOK, gymActivity)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	env.backend.on(http.MethodPost, "/token", http.StatusOK, `{"access_token":"`+token+`","token_type":"bearer"}`)
	env.backend.on(http.MethodGet, "/users/me", http.StatusOK, `{"id":9,"email":"bea@example.com","first_name":"Bea"}`)

	env.send(t, "/newroutine Week A")
	env.send(t, "/drop gym mon 07:00")
	require.True(t, env.hasEditor())
	require.NoError(t, env.sessions.ClearToken(context.Background(), testUserID))

	env.send(t, "/login")
	env.send(t, "bea@example.com")
	env.send(t, "password1")

	assert.Contains(t, env.lastText(), "Welcome, Bea")
	assert.False(t, env.hasEditor())
}

func TestDropMoveAndSave(t *testing.T) {
	env := newBotEnv(t)
	env.signIn(t)
	env.backend.on(http.MethodGet, "/activities/", http.StatusOK, gymActivity)
	env.backend.on(http.MethodPost, "/schedules/", http.StatusOK, `{"id":5,"name":"Week A","events":[],"is_active":false}`)

	env.send(t, "/newroutine Week A")
	assert.Contains(t, env.lastText(), "Draft <b>Week A</b>")

	env.send(t, "/drop gym mon 07:00")
	assert.Contains(t, env.lastText(), "<b>Monday</b>\n<b>1.</b> 🏃 07:00-08:00 Gym")
	assert.True(t, env.bot.editor(testUserID).Dirty())

	env.send(t, "/move 1 tue 08:00")
	assert.Contains(t, env.lastText(), "<b>Tuesday</b>\n<b>1.</b> 🏃 08:00-09:00 Gym")

	env.send(t, "/save")
	assert.Contains(t, env.lastText(), "Saved <b>Week A</b> (#5) with 1 events")
	assert.Contains(t, env.lastText(), "/activate 5")
	assert.False(t, env.bot.editor(testUserID).Dirty())

	body := env.backend.body(http.MethodPost, "/schedules/")
	assert.Contains(t, body, `"title":"Gym"`)
	assert.Contains(t, body, "T08:00:00")
	assert.NotContains(t, body, `"id"`)
}

func TestDropUnknownActivity(t *testing.T) {
	env := newBotEnv(t)
	env.signIn(t)
	env.backend.on(http.MethodGet, "/activities/", http.StatusOK, gymActivity)

	env.send(t, "/newroutine")
	env.send(t, "/drop swim mon 07:00")

	assert.Contains(t, env.lastText(), "Activity not found")
	assert.Empty(t, env.bot.editor(testUserID).Events())
}

func TestRemoveNeedsConfirmation(t *testing.T) {
	env := newBotEnv(t)
	env.signIn(t)
	env.backend.on(http.MethodGet, "/activities/", http.StatusOK, gymActivity)

	env.send(t, "/newroutine")
	env.send(t, "/drop Gym wed 18:00")

	env.send(t, "/remove 1")
	assert.Contains(t, env.lastText(), `Remove "Gym" on Wednesday 18:00-19:00?`)
	env.send(t, btnCancel)
	assert.Len(t, env.bot.editor(testUserID).Events(), 1)

	env.send(t, "/remove 1")
	env.send(t, btnConfirm)
	assert.Empty(t, env.bot.editor(testUserID).Events())
}

func TestDirtyEditorAsksBeforeDiscard(t *testing.T) {
	env := newBotEnv(t)
	env.signIn(t)
	env.backend.on(http.MethodGet, "/activities/", http.StatusOK, gymActivity)

	env.send(t, "/newroutine A")
	env.send(t, "/drop Gym mon 07:00")
	env.send(t, "/newroutine B")

	assert.Contains(t, env.lastText(), "unsaved changes")
	assert.Equal(t, "A", env.bot.editor(testUserID).Name())

	env.press(t, cbConfirm)
	e := env.bot.editor(testUserID)
	assert.Equal(t, "B", e.Name())
	assert.Empty(t, e.Events())
	assert.Equal(t, 1, env.telegram.count("answerCallbackQuery"))
}

func TestActivityConversationCreates(t *testing.T) {
	env := newBotEnv(t)
	env.signIn(t)
	env.backend.on(http.MethodPost, "/activities/", http.StatusOK,
		`{"id":9,"name":"Read","duration":45,"priority":"baja","category":"estudio","is_recurrent":true,"recurrent_days":[1,3]}`)

	env.send(t, "/newactivity")
	env.send(t, "Read")
	env.send(t, "45")
	env.send(t, "low")
	env.send(t, "study")
	env.send(t, "yes")
	env.send(t, "mon,wed")

	assert.Contains(t, env.lastText(), "Activity added")
	body := env.backend.body(http.MethodPost, "/activities/")
	assert.Contains(t, body, `"priority":"baja"`)
	assert.Contains(t, body, `"category":"estudio"`)
	assert.Contains(t, body, `"recurrent_days":[1,3]`)
}

func TestExportSendsDocument(t *testing.T) {
	env := newBotEnv(t)
	env.signIn(t)
	env.backend.on(http.MethodGet, "/schedules/active/", http.StatusOK,
		`{"id":5,"name":"Week A","is_active":true,"events":[{"title":"Gym","start":"2024-01-01T07:00:00","end":"2024-01-01T08:00:00","category":"ejercicio"}]}`)

	env.send(t, "/export")

	doc := env.telegram.last("sendDocument")
	assert.Equal(t, "week-a.ics", doc.file)
	assert.Contains(t, doc.text, "Week A")
}

func TestExportWithoutActiveRoutine(t *testing.T) {
	env := newBotEnv(t)
	env.signIn(t)

	env.send(t, "/export")

	assert.Contains(t, env.lastText(), "no active routine")
	assert.Zero(t, env.telegram.count("sendDocument"))
}

func TestSendRemindersCountsDeliveries(t *testing.T) {
	env := newBotEnv(t)
	env.signIn(t)
	start := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Minute)
	end := start.Add(time.Hour)
	env.backend.on(http.MethodGet, "/schedules/active/", http.StatusOK, fmt.Sprintf(
		`{"id":5,"name":"Week A","is_active":true,"events":[{"title":"Gym","start":"%s","end":"%s","category":"ejercicio"}]}`,
		start.Format(api.TimestampLayout), end.Format(api.TimestampLayout)))

	require.NoError(t, env.bot.SendReminders(context.Background()))

	assert.Equal(t, 1, env.observer.reminders)
	assert.Contains(t, env.lastText(), "Coming up")
	assert.Contains(t, env.lastText(), "Gym")
}
