package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"scheduleai/internal/model"
)

const defaultDSN = "scheduleai.db"

// NewDB opens the local store (sessions, preferences, routine cache) and
// migrates it. Queries are logged through log; SQL statements only show up
// when log has debug enabled.
func NewDB(dsn string, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = defaultDSN
	}

	path, inMemory := sqlitePath(dsn)
	if !inMemory {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		// the reminder job writes while the bot loop reads
		dsn = withPragma(dsn, "_busy_timeout", "5000")
	}

	level := logger.Warn
	if log.Core().Enabled(zapcore.DebugLevel) {
		level = logger.Info
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.AutoMigrate(&model.Session{}, &model.Preferences{}, &model.CachedRoutine{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	log.Debug("db ready", zap.String("path", path), zap.Bool("in_memory", inMemory))
	return db, nil
}

// sqlitePath strips the file: prefix and query string from dsn.
func sqlitePath(dsn string) (string, bool) {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return dsn, true
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean, _, _ = strings.Cut(clean, "?")
	return clean, false
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}

func withPragma(dsn, key, value string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + value
}
