package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized is returned for 401 responses. Callers treat it as
	// "no session" rather than as a failure.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")
)

// Error is a non-2xx response from the backend. Detail carries the
// server-supplied message when the body has one.
type Error struct {
	Status int
	Detail string
	Path   string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("%s: %d %s", e.Path, e.Status, http.StatusText(e.Status))
}

// Is lets errors.Is match the status sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// parseError builds an *Error from a response body. FastAPI style bodies
// ({"detail": "..."} or {"detail": [{"msg": "..."}]}) are unpacked.
func parseError(path string, status int, body []byte) *Error {
	apiErr := &Error{Status: status, Path: path}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		apiErr.Detail = strings.TrimSpace(string(body))
		if len(apiErr.Detail) > 300 || strings.HasPrefix(apiErr.Detail, "<") {
			apiErr.Detail = ""
		}
		return apiErr
	}

	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		apiErr.Detail = text
		return apiErr
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		apiErr.Detail = strings.Join(msgs, "; ")
		return apiErr
	}

	apiErr.Detail = string(payload.Detail)
	return apiErr
}
