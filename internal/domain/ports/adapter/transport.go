// File: internal/domain/ports/adapter/transport.go
package adapter

import (
	"context"
	"time"
)

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// Transport is the chat capability the core invokes. Every call may fail
// transiently; callers must treat failures as best-effort notifications
// and never let them abort a persisted business transition.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendButtons(ctx context.Context, chatID int64, text string, rows [][]InlineButton) error
	SendPhotoWithButtons(ctx context.Context, chatID int64, fileID, caption string, rows [][]InlineButton) error
	// CreateSingleUseInvite issues a one-member invite link that expires
	// after expiresIn.
	CreateSingleUseInvite(ctx context.Context, channelID int64, name string, expiresIn time.Duration) (string, error)
	// RevokeMembership removes the user from the channel while leaving
	// them free to rejoin via a future invite (ban+unban internally).
	RevokeMembership(ctx context.Context, channelID, tgUserID int64) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}
