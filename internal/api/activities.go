package api

import (
	"context"
	"net/http"

	"scheduleai/internal/model"
)

func (c *Client) ListActivities(ctx context.Context) ([]model.Activity, error) {
	var activities []model.Activity
	if err := c.doJSON(ctx, newRoute(http.MethodGet, "/activities/"), nil, &activities); err != nil {
		return nil, err
	}
	for i := range activities {
		activities[i].Normalize()
	}
	return activities, nil
}

func (c *Client) CreateActivity(ctx context.Context, a model.Activity) (model.Activity, error) {
	a.ID = 0
	var created model.Activity
	err := c.doJSON(ctx, newRoute(http.MethodPost, "/activities/"), a, &created)
	return created, err
}

func (c *Client) UpdateActivity(ctx context.Context, id int, a model.Activity) (model.Activity, error) {
	a.ID = 0
	var updated model.Activity
	err := c.doJSON(ctx, newRoute(http.MethodPut, "/activities/{id}", id), a, &updated)
	return updated, err
}

func (c *Client) DeleteActivity(ctx context.Context, id int) error {
	return c.doJSON(ctx, newRoute(http.MethodDelete, "/activities/{id}", id), nil, nil)
}
