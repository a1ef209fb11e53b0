package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"scheduleai/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), zaptest.NewLogger(t))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newTestDB(t))

	s, err := repo.UpsertFromTelegram(ctx, 42, 4200, "Ana", "Lopez", "ana")
	require.NoError(t, err)
	assert.False(t, s.SignedIn())

	require.NoError(t, repo.SaveToken(ctx, 42, "tok", "ana@example.com"))
	s, err = repo.FindByTelegramID(ctx, 42)
	require.NoError(t, err)
	assert.True(t, s.SignedIn())
	assert.Equal(t, "ana@example.com", s.Email)

	// profile refresh keeps the token
	s, err = repo.UpsertFromTelegram(ctx, 42, 4201, "Ana María", "Lopez", "ana")
	require.NoError(t, err)
	assert.Equal(t, int64(4201), s.ChatID)
	s, err = repo.FindByTelegramID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "tok", s.Token)

	signedIn, err := repo.ListSignedIn(ctx)
	require.NoError(t, err)
	require.Len(t, signedIn, 1)

	require.NoError(t, repo.ClearToken(ctx, 42))
	signedIn, err = repo.ListSignedIn(ctx)
	require.NoError(t, err)
	assert.Empty(t, signedIn)

	require.NoError(t, repo.ClearToken(ctx, 999))
	assert.Error(t, repo.SaveToken(ctx, 999, "tok", ""))

	_, err = repo.FindByTelegramID(ctx, 999)
	assert.True(t, IsNotFound(err))
}

func TestPreferencesDefaultsAndSave(t *testing.T) {
	ctx := context.Background()
	repo := NewPreferencesRepository(newTestDB(t))

	prefs, err := repo.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 8, prefs.StartHour)
	assert.Equal(t, 22, prefs.EndHour)

	prefs.StartHour = 6
	prefs.NoMeetingDays = []int{3, 5}
	require.NoError(t, repo.Save(ctx, 7, prefs))

	prefs.EndHour = 20
	require.NoError(t, repo.Save(ctx, 7, prefs))

	got, err := repo.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 6, got.StartHour)
	assert.Equal(t, 20, got.EndHour)
	assert.Equal(t, []int{3, 5}, []int(got.NoMeetingDays))

	other, err := repo.Get(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, other.StartHour)
}

func TestRoutineCache(t *testing.T) {
	ctx := context.Background()
	repo := NewRoutineCacheRepository(newTestDB(t))
	start := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)
	fetched := time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)

	_, _, err := repo.Active(ctx, 1)
	assert.True(t, IsNotFound(err))

	one, two := 1, 2
	require.NoError(t, repo.Save(ctx, 1, model.Routine{
		ID: &one, Name: "A", IsActive: true,
		Events: []model.ScheduleEvent{{ID: "x", Title: "Gym", Start: start, End: start.Add(time.Hour), Category: model.CategoryExercise}},
	}, fetched))

	active, at, err := repo.Active(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "A", active.Name)
	assert.True(t, at.Equal(fetched))
	require.Len(t, active.Events, 1)
	assert.Empty(t, active.Events[0].ID)
	assert.True(t, active.Events[0].Start.Equal(start))
	assert.Equal(t, model.CategoryExercise, active.Events[0].Category)

	require.NoError(t, repo.Save(ctx, 1, model.Routine{ID: &two, Name: "B", IsActive: true}, fetched))
	active, _, err = repo.Active(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, *active.ID)

	require.NoError(t, repo.MarkActive(ctx, 1, 1))
	active, _, err = repo.Active(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, *active.ID)

	require.NoError(t, repo.Delete(ctx, 1, 1))
	_, _, err = repo.Active(ctx, 1)
	assert.True(t, IsNotFound(err))

	require.NoError(t, repo.ClearUser(ctx, 1))
	assert.Error(t, repo.Save(ctx, 1, model.Routine{Name: "draft"}, fetched))
}

func TestSQLitePath(t *testing.T) {
	path, mem := sqlitePath("file:data/bot.db?cache=shared")
	assert.False(t, mem)
	assert.Equal(t, "data/bot.db", path)

	_, mem = sqlitePath("file:x?mode=memory&cache=shared")
	assert.True(t, mem)

	assert.Equal(t, "a.db?_busy_timeout=5000", withPragma("a.db", "_busy_timeout", "5000"))
	assert.Equal(t, "a.db?cache=shared&_busy_timeout=5000", withPragma("a.db?cache=shared", "_busy_timeout", "5000"))
	assert.Equal(t, "a.db?_busy_timeout=1", withPragma("a.db?_busy_timeout=1", "_busy_timeout", "5000"))
}

func TestNewDBCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	db, err := NewDB(dir+"/nested/store.db", nil)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	_, err = NewSessionRepository(db).UpsertFromTelegram(context.Background(), 1, 1, "", "", "")
	require.NoError(t, err)
	assert.FileExists(t, dir+"/nested/store.db")
}
