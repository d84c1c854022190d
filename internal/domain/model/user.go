package model

import (
	"time"

	"telegram-commerce-bot/internal/domain"
)

// User is a domain entity representing a Telegram user in our system.
// Rows are created on first contact and updated whenever the external
// profile changes; they are never deleted.
type User struct {
	ID        int64
	TgUserID  int64
	Username  string
	FirstName string
	CreatedAt time.Time
}

func NewUser(tgUserID int64, username, firstName string) (*User, error) {
	if tgUserID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &User{
		TgUserID:  tgUserID,
		Username:  username,
		FirstName: firstName,
		CreatedAt: time.Now(),
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == 0 }

// DisplayLine renders the human-readable identification used in admin
// notifications: "First (@username)".
func (u *User) DisplayLine() string {
	line := u.FirstName
	if line == "" {
		line = "—"
	}
	if u.Username != "" {
		line += " (@" + u.Username + ")"
	}
	return line
}
