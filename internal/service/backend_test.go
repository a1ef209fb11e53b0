package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"scheduleai/internal/api"
	"scheduleai/internal/model"
	"scheduleai/internal/repository"
)

// fakeBackend serves canned responses keyed by "METHOD /path" and records
// every hit.
type fakeBackend struct {
	mu        sync.Mutex
	responses map[string]cannedResponse
	hits      []string
	bodies    map[string]string
}

type cannedResponse struct {
	status int
	body   string
}

func (f *fakeBackend) on(method, path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[method+" "+path] = cannedResponse{status: status, body: body}
}

func (f *fakeBackend) called(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.hits {
		if h == method+" "+path {
			n++
		}
	}
	return n
}

func (f *fakeBackend) body(method, path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[method+" "+path]
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.hits = append(f.hits, key)
	f.bodies[key] = string(body)
	resp, ok := f.responses[key]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"detail":"Not Found"}`)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_, _ = fmt.Fprint(w, resp.body)
}

type testEnv struct {
	backend   *fakeBackend
	sessions  *repository.SessionRepository
	cache     *repository.RoutineCacheRepository
	accounts  *AccountService
	prefs     *PreferencesService
	routines  *RoutineService
	reminders *ReminderService
	now       time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	backend := &fakeBackend{responses: map[string]cannedResponse{}, bodies: map[string]string{}}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	log := zaptest.NewLogger(t)
	client, err := api.New(srv.URL, api.Options{Location: time.UTC, Logger: log})
	require.NoError(t, err)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), log)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	env := &testEnv{
		backend:  backend,
		sessions: repository.NewSessionRepository(db),
		cache:    repository.NewRoutineCacheRepository(db),
		now:      at(3, 9, 0),
	}
	env.accounts = NewAccountService(client, env.sessions, env.cache, log)
	env.accounts.now = func() time.Time { return env.now }
	env.prefs = NewPreferencesService(repository.NewPreferencesRepository(db))
	env.routines = NewRoutineService(env.accounts, env.prefs, env.cache, log)
	env.reminders = NewReminderService(env.routines, env.sessions, 1000, 3, log)
	return env
}

// signedIn creates a session holding a token that expires a day after now.
func (e *testEnv) signedIn(t *testing.T, telegramID int64) *model.Session {
	t.Helper()
	ctx := context.Background()
	_, err := e.sessions.UpsertFromTelegram(ctx, telegramID, telegramID*10, "Ana", "", "ana")
	require.NoError(t, err)
	token := jwtFor(t, e.now.Add(24*time.Hour))
	require.NoError(t, e.sessions.SaveToken(ctx, telegramID, token, "ana@example.com"))
	s, err := e.sessions.FindByTelegramID(ctx, telegramID)
	require.NoError(t, err)
	return s
}

func jwtFor(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ana@example.com",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}
