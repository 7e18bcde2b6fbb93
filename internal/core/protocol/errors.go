package protocol

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConnectionClosed  = errors.New("connection is closed")
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrPeerNotFound      = errors.New("peer not found")
	ErrSendQueueFull     = errors.New("send queue is full")

	ErrInvalidMessage     = errors.New("invalid message")
	ErrUnknownMessageType = errors.New("unknown message type")

	ErrTransportNotSupported = errors.New("transport not supported")
	ErrUnknownCodec          = errors.New("unknown codec")
)

// ErrorCode classifies transport and codec failures.
type ErrorCode int

const (
	ErrorCodeSuccess ErrorCode = 0

	// 1xxx: peer connection
	ErrorCodeConnectionClosed  ErrorCode = 1001
	ErrorCodeConnectionTimeout ErrorCode = 1002
	ErrorCodePeerNotFound      ErrorCode = 1003
	ErrorCodeSendQueueFull     ErrorCode = 1004

	// 3xxx: envelope
	ErrorCodeInvalidMessage        ErrorCode = 3003
	ErrorCodeUnknownMessageType    ErrorCode = 3004
	ErrorCodeSerializationFailed   ErrorCode = 3005
	ErrorCodeDeserializationFailed ErrorCode = 3006

	// 7xxx: transport setup
	ErrorCodeTransportNotSupported ErrorCode = 7001
	ErrorCodeListenFailed          ErrorCode = 7006
	ErrorCodeDialFailed            ErrorCode = 7007
	ErrorCodeUnknownCodec          ErrorCode = 7008

	ErrorCodeUnknownError ErrorCode = 9999
)

// sentinel order matters only for errors wrapping more than one of them
var sentinelCodes = []struct {
	err  error
	code ErrorCode
}{
	{ErrConnectionClosed, ErrorCodeConnectionClosed},
	{ErrConnectionTimeout, ErrorCodeConnectionTimeout},
	{ErrPeerNotFound, ErrorCodePeerNotFound},
	{ErrSendQueueFull, ErrorCodeSendQueueFull},
	{ErrInvalidMessage, ErrorCodeInvalidMessage},
	{ErrUnknownMessageType, ErrorCodeUnknownMessageType},
	{ErrTransportNotSupported, ErrorCodeTransportNotSupported},
	{ErrUnknownCodec, ErrorCodeUnknownCodec},
}

// Error is a coded failure with optional key/value context, e.g. the address
// a dial failed for.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for k, v := range e.Context {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewProtocolError creates a coded error.
func NewProtocolError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithContext attaches a key/value pair and returns e.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any, 1)
	}
	e.Context[key] = value
	return e
}

// IsTemporary reports whether a later send may succeed. Unreliable sends that
// hit a full queue are the common case.
func (e *Error) IsTemporary() bool {
	return e.Code == ErrorCodeConnectionTimeout || e.Code == ErrorCodeSendQueueFull
}

// IsFatal reports whether the connection should be dropped.
func (e *Error) IsFatal() bool {
	return e.Code == ErrorCodeConnectionClosed || e.Code == ErrorCodeDeserializationFailed
}

// GetErrorCode returns the code of the first *Error in err's chain, or the
// code of a wrapped sentinel.
func GetErrorCode(err error) ErrorCode {
	if err == nil {
		return ErrorCodeSuccess
	}

	var protocolErr *Error
	if errors.As(err, &protocolErr) {
		return protocolErr.Code
	}
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return ErrorCodeUnknownError
}

// WrapError wraps err, keeping its code.
func WrapError(err error, message string) *Error {
	return NewProtocolError(GetErrorCode(err), message, err)
}
