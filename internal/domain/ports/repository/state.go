package repository

import (
	"context"
)

// ConversationState holds the user's progress in any multi-step dialog.
// It is scratch data: expiring, non-authoritative, reconcilable from the
// order/payment rows if lost.
type ConversationState struct {
	Step string            `json:"step"` // e.g. "yoga:plan", "pay:wait_proof"
	Data map[string]string `json:"data"` // collected selections, in-flight ids
}

// StateRepository is the port for managing any user's dialog state.
type StateRepository interface {
	SetState(ctx context.Context, tgID int64, state *ConversationState) error
	// GetState returns nil (no error) when no state is stored.
	GetState(ctx context.Context, tgID int64) (*ConversationState, error)
	ClearState(ctx context.Context, tgID int64) error
}
