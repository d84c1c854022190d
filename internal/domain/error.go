package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrConflict           = errors.New("conflicting operation in progress")
	ErrValidation         = errors.New("invalid input")
	ErrNotOwner           = errors.New("entity belongs to another user")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAlreadyHandled     = errors.New("decision already recorded")
	ErrOrderClosed        = errors.New("order already paid or cancelled")
	ErrNoCurrentSub       = errors.New("no current subscription")
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrInvalidExecContext = errors.New("invalid transaction context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
