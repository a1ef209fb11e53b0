package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"scheduleai/internal/api"
	"scheduleai/internal/model"
	"scheduleai/internal/repository"
)

// MinPasswordLength is enforced before any password reaches the backend.
const MinPasswordLength = 8

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Email     string
	Password  string
	Confirm   string
	FirstName string
	LastName  string
}

// AccountService owns the session lifecycle: sign in, sign out, profile.
type AccountService struct {
	client   *api.Client
	sessions *repository.SessionRepository
	cache    *repository.RoutineCacheRepository
	log      *zap.Logger
	now      func() time.Time
}

func NewAccountService(client *api.Client, sessions *repository.SessionRepository, cache *repository.RoutineCacheRepository, log *zap.Logger) *AccountService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountService{
		client:   client,
		sessions: sessions,
		cache:    cache,
		log:      log,
		now:      time.Now,
	}
}

// Location is the zone used for schedule times.
func (s *AccountService) Location() *time.Location {
	return s.client.Location()
}

// Now returns the current time in Location.
func (s *AccountService) Now() time.Time {
	return s.now().In(s.client.Location())
}

// Touch records the chat user and returns their session.
func (s *AccountService) Touch(ctx context.Context, telegramID, chatID int64, firstName, lastName, username string) (*model.Session, error) {
	return s.sessions.UpsertFromTelegram(ctx, telegramID, chatID, firstName, lastName, username)
}

// Login exchanges credentials for a token and stores it on the session.
func (s *AccountService) Login(ctx context.Context, session *model.Session, email, password string) (model.Profile, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.Profile{}, invalid("", "email and password are required")
	}
	token, err := s.client.Login(ctx, api.Credentials{Email: email, Password: password})
	if err != nil {
		return model.Profile{}, err
	}
	profile, err := s.client.WithToken(token).Me(ctx)
	if err != nil {
		return model.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	if err := s.sessions.SaveToken(ctx, session.TelegramID, token, profile.Email); err != nil {
		return model.Profile{}, err
	}
	session.Token = token
	session.Email = profile.Email
	s.log.Info("user signed in", zap.Int64("telegram_id", session.TelegramID), zap.Int("user_id", profile.ID))
	return profile, nil
}

// Register creates a backend account. The user signs in separately.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (model.Profile, error) {
	email := strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return model.Profile{}, invalid("email", "enter a valid e-mail address")
	}
	if err := checkNewPassword(in.Password, in.Confirm); err != nil {
		return model.Profile{}, err
	}
	profile, err := s.client.Register(ctx, api.Registration{
		Email:     email,
		Password:  in.Password,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
	})
	if err != nil {
		return model.Profile{}, err
	}
	s.log.Info("account registered", zap.String("email", email))
	return profile, nil
}

// Logout clears the local session even when the backend call fails.
func (s *AccountService) Logout(ctx context.Context, session *model.Session) error {
	if session.Token != "" {
		if err := s.client.WithToken(session.Token).Logout(ctx); err != nil {
			s.log.Warn("backend logout failed", zap.Int64("telegram_id", session.TelegramID), zap.Error(err))
		}
	}
	session.Token = ""
	if err := s.sessions.ClearToken(ctx, session.TelegramID); err != nil {
		return err
	}
	return s.cache.ClearUser(ctx, session.TelegramID)
}

// Client returns an API client authenticated as session. Tokens whose exp
// claim has passed are dropped without a network call.
func (s *AccountService) Client(ctx context.Context, session *model.Session) (*api.Client, error) {
	if session == nil || !session.SignedIn() {
		return nil, ErrSignedOut
	}
	if err := api.CheckToken(session.Token, s.now()); err != nil {
		s.log.Info("token expired locally", zap.Int64("telegram_id", session.TelegramID))
		return nil, s.signOut(ctx, session)
	}
	return s.client.WithToken(session.Token), nil
}

// Expire turns a 401 into ErrSignedOut and clears the session. Other errors
// pass through unchanged.
func (s *AccountService) Expire(ctx context.Context, session *model.Session, err error) error {
	if !errors.Is(err, api.ErrUnauthorized) {
		return err
	}
	s.log.Info("token rejected by backend", zap.Int64("telegram_id", session.TelegramID))
	return s.signOut(ctx, session)
}

// signOut drops the token and the cached routines, so a later sign-in to
// another account starts clean.
func (s *AccountService) signOut(ctx context.Context, session *model.Session) error {
	session.Token = ""
	if err := s.sessions.ClearToken(ctx, session.TelegramID); err != nil {
		s.log.Warn("clear token", zap.Error(err))
	}
	if err := s.cache.ClearUser(ctx, session.TelegramID); err != nil {
		s.log.Warn("clear routine cache", zap.Error(err))
	}
	return ErrSignedOut
}

// Profile checks the session against the backend.
func (s *AccountService) Profile(ctx context.Context, session *model.Session) (model.Profile, error) {
	c, err := s.Client(ctx, session)
	if err != nil {
		return model.Profile{}, err
	}
	profile, err := c.Me(ctx)
	if err != nil {
		return model.Profile{}, s.Expire(ctx, session, err)
	}
	return profile, nil
}

// UpdateName changes first and last name.
func (s *AccountService) UpdateName(ctx context.Context, session *model.Session, firstName, lastName string) (model.Profile, error) {
	firstName = strings.TrimSpace(firstName)
	if firstName == "" {
		return model.Profile{}, invalid("first_name", "first name is required")
	}
	c, err := s.Client(ctx, session)
	if err != nil {
		return model.Profile{}, err
	}
	profile, err := c.UpdateProfile(ctx, api.ProfileUpdate{FirstName: firstName, LastName: strings.TrimSpace(lastName)})
	if err != nil {
		return model.Profile{}, s.Expire(ctx, session, err)
	}
	return profile, nil
}

// ChangePassword validates locally, then asks the backend.
func (s *AccountService) ChangePassword(ctx context.Context, session *model.Session, current, next, confirm string) error {
	if current == "" {
		return invalid("current_password", "current password is required")
	}
	if err := checkNewPassword(next, confirm); err != nil {
		return err
	}
	c, err := s.Client(ctx, session)
	if err != nil {
		return err
	}
	if err := c.ChangePassword(ctx, current, next); err != nil {
		return s.Expire(ctx, session, err)
	}
	s.log.Info("password changed", zap.Int64("telegram_id", session.TelegramID))
	return nil
}

func checkNewPassword(password, confirm string) error {
	if password != confirm {
		return invalid("password", "passwords do not match")
	}
	if len([]rune(password)) < MinPasswordLength {
		return invalid("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	return nil
}
