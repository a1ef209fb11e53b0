package service

import (
	"context"
	"fmt"
	"strings"

	"scheduleai/internal/model"
)

// ActivityInput is an activity as typed by the user. Enum fields accept
// wire codes and English aliases.
type ActivityInput struct {
	Name      string
	Duration  int
	Priority  string
	Category  string
	Recurrent bool
	Days      []int
}

// ToModel resolves aliases and validates.
func (in ActivityInput) ToModel() (model.Activity, error) {
	priority, ok := model.ParsePriority(in.Priority)
	if !ok {
		return model.Activity{}, invalid("priority", fmt.Sprintf("unknown priority %q", in.Priority))
	}
	category, ok := model.ParseCategory(in.Category)
	if !ok {
		return model.Activity{}, invalid("category", fmt.Sprintf("unknown category %q", in.Category))
	}
	a := model.Activity{
		Name:          strings.TrimSpace(in.Name),
		Duration:      in.Duration,
		Priority:      priority,
		Category:      category,
		IsRecurrent:   in.Recurrent,
		RecurrentDays: in.Days,
	}
	a.Normalize()
	if err := a.Validate(); err != nil {
		return model.Activity{}, invalid("", err.Error())
	}
	return a, nil
}

// InputFromActivity is the inverse of ToModel, used to prefill edits.
func InputFromActivity(a model.Activity) ActivityInput {
	return ActivityInput{
		Name:      a.Name,
		Duration:  a.Duration,
		Priority:  string(a.Priority),
		Category:  string(a.Category),
		Recurrent: a.IsRecurrent,
		Days:      append([]int(nil), a.RecurrentDays...),
	}
}

// ActivityService manages the user's activity list on the backend.
type ActivityService struct {
	accounts *AccountService
}

func NewActivityService(accounts *AccountService) *ActivityService {
	return &ActivityService{accounts: accounts}
}

func (s *ActivityService) List(ctx context.Context, session *model.Session) ([]model.Activity, error) {
	c, err := s.accounts.Client(ctx, session)
	if err != nil {
		return nil, err
	}
	activities, err := c.ListActivities(ctx)
	if err != nil {
		return nil, s.accounts.Expire(ctx, session, err)
	}
	return activities, nil
}

// Find returns the activity with id from the backend list.
func (s *ActivityService) Find(ctx context.Context, session *model.Session, id int) (model.Activity, error) {
	activities, err := s.List(ctx, session)
	if err != nil {
		return model.Activity{}, err
	}
	for _, a := range activities {
		if a.ID == id {
			return a, nil
		}
	}
	return model.Activity{}, fmt.Errorf("activity %d: %w", id, ErrActivityNotFound)
}

// FindByName matches case-insensitively, falling back to a numeric id.
func (s *ActivityService) FindByName(ctx context.Context, session *model.Session, ref string) (model.Activity, error) {
	activities, err := s.List(ctx, session)
	if err != nil {
		return model.Activity{}, err
	}
	ref = strings.TrimSpace(ref)
	for _, a := range activities {
		if strings.EqualFold(a.Name, ref) || fmt.Sprint(a.ID) == ref {
			return a, nil
		}
	}
	return model.Activity{}, fmt.Errorf("activity %q: %w", ref, ErrActivityNotFound)
}

func (s *ActivityService) Create(ctx context.Context, session *model.Session, in ActivityInput) (model.Activity, error) {
	a, err := in.ToModel()
	if err != nil {
		return model.Activity{}, err
	}
	c, err := s.accounts.Client(ctx, session)
	if err != nil {
		return model.Activity{}, err
	}
	created, err := c.CreateActivity(ctx, a)
	if err != nil {
		return model.Activity{}, s.accounts.Expire(ctx, session, err)
	}
	return created, nil
}

func (s *ActivityService) Update(ctx context.Context, session *model.Session, id int, in ActivityInput) (model.Activity, error) {
	a, err := in.ToModel()
	if err != nil {
		return model.Activity{}, err
	}
	c, err := s.accounts.Client(ctx, session)
	if err != nil {
		return model.Activity{}, err
	}
	updated, err := c.UpdateActivity(ctx, id, a)
	if err != nil {
		return model.Activity{}, s.accounts.Expire(ctx, session, err)
	}
	return updated, nil
}

// Delete removes an activity. Callers confirm with the user first.
func (s *ActivityService) Delete(ctx context.Context, session *model.Session, id int) error {
	c, err := s.accounts.Client(ctx, session)
	if err != nil {
		return err
	}
	if err := c.DeleteActivity(ctx, id); err != nil {
		return s.accounts.Expire(ctx, session, err)
	}
	return nil
}
