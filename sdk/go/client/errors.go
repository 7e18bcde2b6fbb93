package client

import "errors"

// Client-specific errors
var (
	ErrAlreadyRunning  = errors.New("client is already running")
	ErrReconnectFailed = errors.New("reconnection failed")
	ErrInvalidConfig   = errors.New("invalid client configuration")
)
