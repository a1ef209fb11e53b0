package model

import "time"

// Profile is the backend view of the signed-in account.
type Profile struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DisplayName falls back to the e-mail when no name is set.
func (p Profile) DisplayName() string {
	switch {
	case p.FirstName != "":
		return p.FirstName
	case p.Email != "":
		return p.Email
	default:
		return "there"
	}
}

// Session stores the chat user and the bearer token issued by the backend.
// An empty Token means the user is signed out.
type Session struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	ChatID     int64
	FirstName  string
	LastName   string
	Username   string
	Token      string
	Email      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (s Session) SignedIn() bool {
	return s.Token != ""
}
