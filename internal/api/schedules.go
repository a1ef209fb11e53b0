package api

import (
	"context"
	"net/http"

	"scheduleai/internal/model"
)

// ListRoutines returns every saved routine of the user.
func (c *Client) ListRoutines(ctx context.Context) ([]model.Routine, error) {
	var items []routineDTO
	if err := c.doJSON(ctx, newRoute(http.MethodGet, "/schedules/"), nil, &items); err != nil {
		return nil, err
	}
	routines := make([]model.Routine, 0, len(items))
	for _, item := range items {
		routines = append(routines, c.routineFromWire(item))
	}
	return routines, nil
}

// ActiveRoutine returns the active routine, or ErrNotFound when none is.
func (c *Client) ActiveRoutine(ctx context.Context) (model.Routine, error) {
	var item routineDTO
	if err := c.doJSON(ctx, newRoute(http.MethodGet, "/schedules/active/"), nil, &item); err != nil {
		return model.Routine{}, err
	}
	return c.routineFromWire(item), nil
}

func (c *Client) CreateRoutine(ctx context.Context, name string, events []model.ScheduleEvent) (model.Routine, error) {
	body := routineWrite{Name: name, Events: EventsToWire(events, c.loc)}
	var item routineDTO
	if err := c.doJSON(ctx, newRoute(http.MethodPost, "/schedules/"), body, &item); err != nil {
		return model.Routine{}, err
	}
	return c.routineFromWire(item), nil
}

func (c *Client) UpdateRoutine(ctx context.Context, id int, name string, events []model.ScheduleEvent) (model.Routine, error) {
	body := routineWrite{Name: name, Events: EventsToWire(events, c.loc)}
	var item routineDTO
	if err := c.doJSON(ctx, newRoute(http.MethodPut, "/schedules/{id}", id), body, &item); err != nil {
		return model.Routine{}, err
	}
	return c.routineFromWire(item), nil
}

func (c *Client) DeleteRoutine(ctx context.Context, id int) error {
	return c.doJSON(ctx, newRoute(http.MethodDelete, "/schedules/{id}", id), nil, nil)
}

// SetActiveRoutine activates id; the backend deactivates any other routine.
func (c *Client) SetActiveRoutine(ctx context.Context, id int) error {
	return c.doJSON(ctx, newRoute(http.MethodPost, "/schedules/{id}/set-active", id), nil, nil)
}
