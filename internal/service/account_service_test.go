package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestLoginStoresToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	token := jwtFor(t, env.now.Add(time.Hour))
	env.backend.on(http.MethodPost, "/token", http.StatusOK, `{"access_token":"`+token+`","token_type":"bearer"}`)
	env.backend.on(http.MethodGet, "/users/me", http.StatusOK, `{"id":3,"email":"ana@example.com","first_name":"Ana"}`)

	session, err := env.accounts.Touch(ctx, 11, 110, "Ana", "", "ana")
	require.NoError(t, err)

	profile, err := env.accounts.Login(ctx, session, " ana@example.com ", "password1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", profile.DisplayName())
	assert.True(t, session.SignedIn())

	stored, err := env.sessions.FindByTelegramID(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, token, stored.Token)
	assert.Contains(t, env.backend.body(http.MethodPost, "/token"), "username=ana%40example.com")
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session, err := env.accounts.Touch(ctx, 11, 110, "Ana", "", "ana")
	require.NoError(t, err)

	_, err = env.accounts.Login(ctx, session, "", "x")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Zero(t, env.backend.called(http.MethodPost, "/token"))
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := map[string]RegisterInput{
		"bad email": {Email: "nope", Password: "longenough", Confirm: "longenough"},
		"mismatch":  {Email: "a@b.co", Password: "longenough", Confirm: "different1"},
		"too short": {Email: "a@b.co", Password: "short", Confirm: "short"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.accounts.Register(ctx, in)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
	assert.Zero(t, env.backend.called(http.MethodPost, "/register"))

	env.backend.on(http.MethodPost, "/register", http.StatusOK, `{"id":9,"email":"a@b.co","first_name":"Al"}`)
	profile, err := env.accounts.Register(ctx, RegisterInput{Email: "a@b.co", Password: "longenough", Confirm: "longenough", FirstName: "Al"})
	require.NoError(t, err)
	assert.Equal(t, 9, profile.ID)
	assert.Contains(t, env.backend.body(http.MethodPost, "/register"), `"first_name":"Al"`)
}

func TestLogoutClearsLocallyWhenBackendFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := env.signedIn(t, 12)
	env.backend.on(http.MethodPost, "/logout", http.StatusInternalServerError, `{"detail":"boom"}`)

	require.NoError(t, env.accounts.Logout(ctx, session))
	assert.False(t, session.SignedIn())
	assert.Equal(t, 1, env.backend.called(http.MethodPost, "/logout"))

	stored, err := env.sessions.FindByTelegramID(ctx, 12)
	require.NoError(t, err)
	assert.False(t, stored.SignedIn())
}

func TestUnauthorizedSignsOut(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := env.signedIn(t, 13)
	env.backend.on(http.MethodGet, "/users/me", http.StatusUnauthorized, `{"detail":"Could not validate credentials"}`)

	_, err := env.accounts.Profile(ctx, session)
	assert.ErrorIs(t, err, ErrSignedOut)
	assert.False(t, session.SignedIn())

	stored, err := env.sessions.FindByTelegramID(ctx, 13)
	require.NoError(t, err)
	assert.False(t, stored.SignedIn())
}

func TestUnauthorizedClearsRoutineCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := env.signedIn(t, 15)
	env.backend.on(http.MethodGet, "/schedules/active/", http.StatusOK, activeRoutineJSON)

	_, err := env.routines.Active(ctx, session)
	require.NoError(t, err)
	cached, _, err := env.cache.Active(ctx, 15)
	require.NoError(t, err)
	assert.Equal(t, "Semester", cached.Name)

	env.backend.on(http.MethodGet, "/users/me", http.StatusUnauthorized, `{"detail":"Could not validate credentials"}`)
	_, err = env.accounts.Profile(ctx, session)
	assert.ErrorIs(t, err, ErrSignedOut)

	_, _, err = env.cache.Active(ctx, 15)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestExpiredTokenSkipsNetwork(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := env.signedIn(t, 14)
	env.now = env.now.Add(48 * time.Hour)

	_, err := env.accounts.Profile(ctx, session)
	assert.ErrorIs(t, err, ErrSignedOut)
	assert.Zero(t, env.backend.called(http.MethodGet, "/users/me"))
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := env.signedIn(t, 15)

	err := env.accounts.ChangePassword(ctx, session, "old-pass", "newpassword", "newpasswordX")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "passwords do not match", verr.Message)

	env.backend.on(http.MethodPost, "/users/me/change-password", http.StatusBadRequest, `{"detail":"Current password is incorrect"}`)
	err = env.accounts.ChangePassword(ctx, session, "old-pass", "newpassword", "newpassword")
	require.Error(t, err)
	assert.Equal(t, "Current password is incorrect", err.Error())
	assert.True(t, session.SignedIn())

	env.backend.on(http.MethodPost, "/users/me/change-password", http.StatusOK, `{"message":"ok"}`)
	require.NoError(t, env.accounts.ChangePassword(ctx, session, "old-pass", "newpassword", "newpassword"))
	assert.Contains(t, env.backend.body(http.MethodPost, "/users/me/change-password"), `"new_password":"newpassword"`)
}

func TestUpdateName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := env.signedIn(t, 16)

	_, err := env.accounts.UpdateName(ctx, session, " ", "x")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	env.backend.on(http.MethodPut, "/users/me", http.StatusOK, `{"id":1,"email":"ana@example.com","first_name":"Ana","last_name":"Ruiz"}`)
	p, err := env.accounts.UpdateName(ctx, session, "Ana", "Ruiz")
	require.NoError(t, err)
	assert.Equal(t, "Ruiz", p.LastName)
}
