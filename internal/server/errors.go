package server

import "errors"

var (
	ErrServerAlreadyRunning = errors.New("server is already running")
	// ErrInvalidConfig wraps transport and TLS setup failures in NewServer.
	ErrInvalidConfig = errors.New("invalid server configuration")
)
