package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scheduleai/internal/model"
)

type cachedEvent struct {
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Category string    `json:"category,omitempty"`
}

// RoutineCacheRepository keeps the last known copy of each routine so the
// dashboard and reminders can work from local data.
type RoutineCacheRepository struct {
	db *gorm.DB
}

func NewRoutineCacheRepository(db *gorm.DB) *RoutineCacheRepository {
	return &RoutineCacheRepository{db: db}
}

// Save stores a persisted routine. If it is active, other cached routines of
// the user are marked inactive.
func (r *RoutineCacheRepository) Save(ctx context.Context, telegramID int64, routine model.Routine, fetchedAt time.Time) error {
	if routine.ID == nil {
		return fmt.Errorf("cache routine %q: routine has no id", routine.Name)
	}
	events := make([]cachedEvent, 0, len(routine.Events))
	for _, ev := range routine.Events {
		events = append(events, cachedEvent{Title: ev.Title, Start: ev.Start, End: ev.End, Category: string(ev.Category)})
	}
	raw, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode cached events: %w", err)
	}

	row := model.CachedRoutine{
		TelegramID: telegramID,
		RoutineID:  *routine.ID,
		Name:       routine.Name,
		IsActive:   routine.IsActive,
		Events:     datatypes.JSON(raw),
		FetchedAt:  fetchedAt,
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if routine.IsActive {
			if err := tx.Model(&model.CachedRoutine{}).
				Where("telegram_id = ? AND routine_id <> ?", telegramID, row.RoutineID).
				Update("is_active", false).Error; err != nil {
				return fmt.Errorf("deactivate cached routines: %w", err)
			}
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}, {Name: "routine_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "is_active", "events", "fetched_at", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("cache routine: %w", err)
		}
		return nil
	})
}

// MarkActive flags routineID as the user's only active cached routine.
func (r *RoutineCacheRepository) MarkActive(ctx context.Context, telegramID int64, routineID int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.CachedRoutine{}).
			Where("telegram_id = ?", telegramID).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("deactivate cached routines: %w", err)
		}
		if err := tx.Model(&model.CachedRoutine{}).
			Where("telegram_id = ? AND routine_id = ?", telegramID, routineID).
			Update("is_active", true).Error; err != nil {
			return fmt.Errorf("activate cached routine: %w", err)
		}
		return nil
	})
}

// Active returns the cached active routine and when it was fetched.
// It returns gorm.ErrRecordNotFound when nothing is cached.
func (r *RoutineCacheRepository) Active(ctx context.Context, telegramID int64) (model.Routine, time.Time, error) {
	var row model.CachedRoutine
	err := r.db.WithContext(ctx).
		Where("telegram_id = ? AND is_active = ?", telegramID, true).
		Order("fetched_at DESC").
		First(&row).Error
	if err != nil {
		return model.Routine{}, time.Time{}, err
	}
	routine, err := fromCached(row)
	return routine, row.FetchedAt, err
}

// Delete drops one cached routine.
func (r *RoutineCacheRepository) Delete(ctx context.Context, telegramID int64, routineID int) error {
	err := r.db.WithContext(ctx).
		Where("telegram_id = ? AND routine_id = ?", telegramID, routineID).
		Delete(&model.CachedRoutine{}).Error
	if err != nil {
		return fmt.Errorf("delete cached routine: %w", err)
	}
	return nil
}

// ClearUser drops everything cached for a user, e.g. on logout.
func (r *RoutineCacheRepository) ClearUser(ctx context.Context, telegramID int64) error {
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).Delete(&model.CachedRoutine{}).Error; err != nil {
		return fmt.Errorf("clear cached routines: %w", err)
	}
	return nil
}

func fromCached(row model.CachedRoutine) (model.Routine, error) {
	var events []cachedEvent
	if len(row.Events) > 0 {
		if err := json.Unmarshal(row.Events, &events); err != nil {
			return model.Routine{}, fmt.Errorf("decode cached events: %w", err)
		}
	}
	id := row.RoutineID
	routine := model.Routine{ID: &id, Name: row.Name, IsActive: row.IsActive}
	for _, ev := range events {
		routine.Events = append(routine.Events, model.ScheduleEvent{
			Title:    ev.Title,
			Start:    ev.Start,
			End:      ev.End,
			Category: model.Category(ev.Category),
		})
	}
	return routine, nil
}

// IsNotFound reports whether err means "no row".
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
