package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"scheduleai/internal/model"
)

// GenerateSchedule asks the backend for a weekly template built from the
// user's activities and preferences.
func (c *Client) GenerateSchedule(ctx context.Context, prefs model.Preferences) ([]model.ScheduleEvent, error) {
	var items []EventDTO
	if err := c.doJSON(ctx, newRoute(http.MethodPost, "/generate-schedule"), prefs, &items); err != nil {
		return nil, err
	}
	events, errs := EventsFromWire(items, c.loc)
	for _, err := range errs {
		c.logger.Warn("skip malformed generated event", zap.Error(err))
	}
	return events, nil
}

// AnalyzeSchedule returns improvement suggestions for events. The backend
// answers with a plain array of strings or with {"suggestions": [...]}.
func (c *Client) AnalyzeSchedule(ctx context.Context, events []model.ScheduleEvent) ([]string, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, newRoute(http.MethodPost, "/analyze-schedule"), EventsToWire(events, c.loc), &raw); err != nil {
		return nil, err
	}
	return decodeSuggestions(raw)
}

func decodeSuggestions(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	return wrapped.Suggestions, nil
}
