package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyConnected  = errors.New("already connected")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrDuplicateContract = errors.New("contract already tracked")
	ErrUnknownContract   = errors.New("contract not tracked")
	ErrUnknownMessage    = errors.New("unknown message type")
	ErrMalformedMessage  = errors.New("malformed message")
	ErrWSDisconnect      = errors.New("websocket disconnected")
	ErrLockHeld          = errors.New("lock already held")
	ErrQueueFull         = errors.New("queue full")
	ErrInvalidSettings   = errors.New("invalid settings")
)
