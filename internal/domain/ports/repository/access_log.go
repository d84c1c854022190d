package repository

import "context"

// ChannelAccessLogRepository is the append-only grant/revoke audit trail.
type ChannelAccessLogRepository interface {
	Append(ctx context.Context, tx Tx, userID int64, channelKey string, inviteLink *string) error
	// Revoke closes all open entries for (user, channelKey).
	Revoke(ctx context.Context, tx Tx, userID int64, channelKey string) error
}
