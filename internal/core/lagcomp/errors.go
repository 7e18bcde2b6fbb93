package lagcomp

import "errors"

var (
	ErrComponentCount = errors.New("wrong number of value components")
	ErrKindMismatch   = errors.New("value kind mismatch")
)
