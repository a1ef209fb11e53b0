package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"scheduleai/internal/model"
	"scheduleai/internal/repository"
)

// PreferencesService reads and writes generation preferences. They are kept
// locally and never stored on the backend.
type PreferencesService struct {
	repo *repository.PreferencesRepository
}

func NewPreferencesService(repo *repository.PreferencesRepository) *PreferencesService {
	return &PreferencesService{repo: repo}
}

func (s *PreferencesService) Get(ctx context.Context, telegramID int64) (model.Preferences, error) {
	return s.repo.Get(ctx, telegramID)
}

// Save validates and stores prefs.
func (s *PreferencesService) Save(ctx context.Context, telegramID int64, prefs model.Preferences) error {
	if err := prefs.Validate(); err != nil {
		return invalid("", err.Error())
	}
	return s.repo.Save(ctx, telegramID, prefs)
}

// Reset restores the defaults.
func (s *PreferencesService) Reset(ctx context.Context, telegramID int64) (model.Preferences, error) {
	prefs := model.DefaultPreferences()
	if err := s.repo.Save(ctx, telegramID, prefs); err != nil {
		return model.Preferences{}, err
	}
	return prefs, nil
}

// EncodePreferences renders prefs as the YAML block users edit in chat.
func EncodePreferences(prefs model.Preferences) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(prefs); err != nil {
		return "", fmt.Errorf("encode preferences: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode preferences: %w", err)
	}
	return buf.String(), nil
}

// DecodePreferences applies a YAML block on top of base. Keys that are
// absent keep their base value; unknown keys are rejected.
func DecodePreferences(text string, base model.Preferences) (model.Preferences, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Preferences{}, invalid("", "preferences text is empty")
	}
	prefs := base
	dec := yaml.NewDecoder(strings.NewReader(text))
	dec.KnownFields(true)
	if err := dec.Decode(&prefs); err != nil {
		return model.Preferences{}, invalid("", fmt.Sprintf("cannot read preferences: %v", err))
	}
	if prefs.NoMeetingDays == nil {
		prefs.NoMeetingDays = []int{}
	}
	if err := prefs.Validate(); err != nil {
		return model.Preferences{}, invalid("", err.Error())
	}
	return prefs, nil
}
