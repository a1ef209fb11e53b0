package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"scheduleai/internal/model"
)

// SessionRepository stores one chat session per Telegram user.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// UpsertFromTelegram finds or creates the session row and refreshes the chat
// profile fields. The token is left untouched.
func (r *SessionRepository) UpsertFromTelegram(ctx context.Context, telegramID, chatID int64, firstName, lastName, username string) (*model.Session, error) {
	var session model.Session
	db := r.db.WithContext(ctx)
	err := db.Where("telegram_id = ?", telegramID).First(&session).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"chat_id":    chatID,
			"first_name": firstName,
			"last_name":  lastName,
			"username":   username,
		}
		if err := db.Model(&session).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update session: %w", err)
		}
		return &session, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		session = model.Session{
			TelegramID: telegramID,
			ChatID:     chatID,
			FirstName:  firstName,
			LastName:   lastName,
			Username:   username,
		}
		if err := db.Create(&session).Error; err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		return &session, nil
	default:
		return nil, fmt.Errorf("find session: %w", err)
	}
}

// FindByTelegramID returns gorm.ErrRecordNotFound when the user never wrote
// to the bot.
func (r *SessionRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.Session, error) {
	var session model.Session
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// SaveToken signs the user in.
func (r *SessionRepository) SaveToken(ctx context.Context, telegramID int64, token, email string) error {
	res := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("telegram_id = ?", telegramID).
		Updates(map[string]interface{}{"token": token, "email": email})
	if res.Error != nil {
		return fmt.Errorf("save token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("save token: %w", gorm.ErrRecordNotFound)
	}
	return nil
}

// ClearToken signs the user out locally. Missing rows are not an error.
func (r *SessionRepository) ClearToken(ctx context.Context, telegramID int64) error {
	err := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("telegram_id = ?", telegramID).
		Update("token", "").Error
	if err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// ListSignedIn returns sessions that hold a token.
func (r *SessionRepository) ListSignedIn(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	if err := r.db.WithContext(ctx).Where("token <> ?", "").Order("id ASC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
