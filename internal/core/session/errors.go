package session

import "errors"

var (
	ErrNotAuthoritative    = errors.New("operation requires the authoritative role")
	ErrDuplicateVariable   = errors.New("variable already registered for entity")
	ErrVariableIDCollision = errors.New("variable names hash to the same id")
	ErrNoTransport         = errors.New("session has no transport")
)
