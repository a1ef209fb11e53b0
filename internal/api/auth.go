package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"scheduleai/internal/model"
)

// Credentials are sent form-encoded to /token.
type Credentials struct {
	Email    string
	Password string
}

// Registration is the body of POST /register.
type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// ProfileUpdate carries the editable name fields of PUT /users/me.
type ProfileUpdate struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type passwordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	form := url.Values{}
	form.Set("username", creds.Email)
	form.Set("password", creds.Password)

	var resp tokenResponse
	if err := c.doForm(ctx, newRoute(http.MethodPost, "/token"), form, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("login: empty access token")
	}
	return resp.AccessToken, nil
}

// Logout asks the backend to drop its side of the session.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, newRoute(http.MethodPost, "/logout"), nil, nil)
}

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, reg Registration) (model.Profile, error) {
	var profile model.Profile
	err := c.doJSON(ctx, newRoute(http.MethodPost, "/register"), reg, &profile)
	return profile, err
}

// Me returns the current account. A 401 surfaces as ErrUnauthorized.
func (c *Client) Me(ctx context.Context) (model.Profile, error) {
	var profile model.Profile
	err := c.doJSON(ctx, newRoute(http.MethodGet, "/users/me"), nil, &profile)
	return profile, err
}

// UpdateProfile changes the name fields.
func (c *Client) UpdateProfile(ctx context.Context, upd ProfileUpdate) (model.Profile, error) {
	var profile model.Profile
	err := c.doJSON(ctx, newRoute(http.MethodPut, "/users/me"), upd, &profile)
	return profile, err
}

// ChangePassword verifies current and sets next.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body := passwordChange{CurrentPassword: current, NewPassword: next}
	return c.doJSON(ctx, newRoute(http.MethodPost, "/users/me/change-password"), body, nil)
}
