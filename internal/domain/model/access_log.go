package model

import "time"

// Channel keys used in the access log alongside per-plan product codes.
const (
	ChannelKeyPersonal     = "personal"
	ChannelKeyYogaPersonal = "yoga_personal"
)

// ChannelAccessEntry is one append-only audit row: a grant, later closed by
// a revoke timestamp. Entries are never deleted.
type ChannelAccessEntry struct {
	ID         int64
	UserID     int64
	ChannelKey string
	InviteLink *string
	GrantedAt  time.Time
	RevokedAt  *time.Time
}
