package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"scheduleai/internal/model"
)

// TimestampLayout is the naive local layout the backend uses for event
// boundaries.
const TimestampLayout = "2006-01-02T15:04:05"

var naiveLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp reads an RFC 3339 or naive timestamp. Naive values are
// interpreted in loc; zoned values are converted to loc.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// FormatTimestamp writes t as a naive timestamp in loc.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(TimestampLayout)
}

// EventDTO is the wire form of a schedule event. It deliberately has no id
// field: client identifiers are stripped before anything is sent.
type EventDTO struct {
	Title    string `json:"title"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Category string `json:"category,omitempty"`
}

// EventList decodes either a JSON array of events or a JSON string that
// itself contains the array; older backends stored events as text.
type EventList []EventDTO

func (l *EventList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		if strings.TrimSpace(inner) == "" {
			*l = nil
			return nil
		}
		data = []byte(inner)
	}
	var items []EventDTO
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("decode events: %w", err)
	}
	*l = items
	return nil
}

// EventsFromWire converts wire events to model events. Events with
// unreadable boundaries are skipped and reported in the returned error list.
func EventsFromWire(items []EventDTO, loc *time.Location) ([]model.ScheduleEvent, []error) {
	events := make([]model.ScheduleEvent, 0, len(items))
	var errs []error
	for i, item := range items {
		ev, err := item.toModel(loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("event %d: %w", i, err))
			continue
		}
		events = append(events, ev)
	}
	return events, errs
}

// EventsToWire converts model events to the wire form, dropping IDs.
func EventsToWire(events []model.ScheduleEvent, loc *time.Location) []EventDTO {
	out := make([]EventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, EventDTO{
			Title:    ev.Title,
			Start:    FormatTimestamp(ev.Start, loc),
			End:      FormatTimestamp(ev.End, loc),
			Category: string(ev.Category),
		})
	}
	return out
}

func (d EventDTO) toModel(loc *time.Location) (model.ScheduleEvent, error) {
	start, err := ParseTimestamp(d.Start, loc)
	if err != nil {
		return model.ScheduleEvent{}, fmt.Errorf("start: %w", err)
	}
	end, err := ParseTimestamp(d.End, loc)
	if err != nil {
		return model.ScheduleEvent{}, fmt.Errorf("end: %w", err)
	}
	if !end.After(start) {
		return model.ScheduleEvent{}, fmt.Errorf("end %s is not after start %s", d.End, d.Start)
	}
	category := model.Category(strings.ToLower(strings.TrimSpace(d.Category)))
	if c, ok := model.ParseCategory(d.Category); ok {
		category = c
	}
	return model.ScheduleEvent{
		Title:    d.Title,
		Start:    start,
		End:      end,
		Category: category,
	}, nil
}

type routineDTO struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Events   EventList `json:"events"`
	IsActive bool      `json:"is_active"`
}

type routineWrite struct {
	Name   string     `json:"name"`
	Events []EventDTO `json:"events"`
}

// routineFromWire leaves ID nil when the body carried no id, e.g. an empty
// 200 or 204 to a write.
func (c *Client) routineFromWire(d routineDTO) model.Routine {
	events, errs := EventsFromWire(d.Events, c.loc)
	for _, err := range errs {
		c.logger.Warn("skip malformed routine event", zap.Int("routine_id", d.ID), zap.Error(err))
	}
	r := model.Routine{
		Name:     d.Name,
		Events:   events,
		IsActive: d.IsActive,
	}
	if d.ID > 0 {
		id := d.ID
		r.ID = &id
	}
	return r
}
