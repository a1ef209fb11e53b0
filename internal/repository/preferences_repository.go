package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scheduleai/internal/model"
)

// PreferencesRepository keeps generation preferences per chat user.
type PreferencesRepository struct {
	db *gorm.DB
}

func NewPreferencesRepository(db *gorm.DB) *PreferencesRepository {
	return &PreferencesRepository{db: db}
}

// Get returns the stored preferences or the defaults when none were saved.
func (r *PreferencesRepository) Get(ctx context.Context, telegramID int64) (model.Preferences, error) {
	var prefs model.Preferences
	err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&prefs).Error
	switch {
	case err == nil:
		if prefs.NoMeetingDays == nil {
			prefs.NoMeetingDays = []int{}
		}
		return prefs, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		prefs = model.DefaultPreferences()
		prefs.TelegramID = telegramID
		return prefs, nil
	default:
		return model.Preferences{}, fmt.Errorf("find preferences: %w", err)
	}
}

// Save replaces the user's preferences.
func (r *PreferencesRepository) Save(ctx context.Context, telegramID int64, prefs model.Preferences) error {
	prefs.ID = 0
	prefs.TelegramID = telegramID
	if prefs.NoMeetingDays == nil {
		prefs.NoMeetingDays = []int{}
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"start_hour", "end_hour", "peak_start_hour", "peak_end_hour",
			"archetype", "focus_block_minutes", "scheduling_style", "no_meeting_days", "updated_at",
		}),
	}).Create(&prefs).Error
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
