package rpc

import (
	"errors"
	"fmt"
	"time"

	"github.com/jun/gophnote/internal/transport"
)

// ErrCancelled completes a call whose context was cancelled, typically by
// Client.CancelFirst. It is never reported as a transport failure.
var ErrCancelled = errors.New("rpc: call cancelled")

// ErrorKind classifies an application exception. Values 1..19 match the
// service's error code enumeration.
type ErrorKind int32

const (
	KindUnknown              ErrorKind = 1
	KindBadDataFormat        ErrorKind = 2
	KindPermissionDenied     ErrorKind = 3
	KindInternalError        ErrorKind = 4
	KindDataRequired         ErrorKind = 5
	KindLimitReached         ErrorKind = 6
	KindQuotaReached         ErrorKind = 7
	KindInvalidAuth          ErrorKind = 8
	KindAuthExpired          ErrorKind = 9
	KindDataConflict         ErrorKind = 10
	KindENMLValidation       ErrorKind = 11
	KindShardUnavailable     ErrorKind = 12
	KindLenTooShort          ErrorKind = 13
	KindLenTooLong           ErrorKind = 14
	KindTooFew               ErrorKind = 15
	KindTooMany              ErrorKind = 16
	KindUnsupportedOperation ErrorKind = 17
	KindTakenDown            ErrorKind = 18
	KindRateLimited          ErrorKind = 19

	// KindNotFound has no error code; it comes from the dedicated not-found exception.
	KindNotFound ErrorKind = 100
)

var kindNames = map[ErrorKind]string{
	KindUnknown:              "UNKNOWN",
	KindBadDataFormat:        "BAD_DATA_FORMAT",
	KindPermissionDenied:     "PERMISSION_DENIED",
	KindInternalError:        "INTERNAL_ERROR",
	KindDataRequired:         "DATA_REQUIRED",
	KindLimitReached:         "LIMIT_REACHED",
	KindQuotaReached:         "QUOTA_REACHED",
	KindInvalidAuth:          "INVALID_AUTH",
	KindAuthExpired:          "AUTH_EXPIRED",
	KindDataConflict:         "DATA_CONFLICT",
	KindENMLValidation:       "ENML_VALIDATION",
	KindShardUnavailable:     "SHARD_UNAVAILABLE",
	KindLenTooShort:          "LEN_TOO_SHORT",
	KindLenTooLong:           "LEN_TOO_LONG",
	KindTooFew:               "TOO_FEW",
	KindTooMany:              "TOO_MANY",
	KindUnsupportedOperation: "UNSUPPORTED_OPERATION",
	KindTakenDown:            "TAKEN_DOWN",
	KindRateLimited:          "RATE_LIMIT_REACHED",
	KindNotFound:             "NOT_FOUND",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int32(k))
}

// KindFromCode maps a service error code to a Kind. Unknown codes map to KindUnknown.
func KindFromCode(code int32) ErrorKind {
	if code >= int32(KindUnknown) && code <= int32(KindRateLimited) {
		return ErrorKind(code)
	}
	return KindUnknown
}

// ApplicationError is an exception declared by the called method.
type ApplicationError struct {
	Kind      ErrorKind
	Code      int32
	Message   string
	Parameter string
	// RetryAfter is the server's rate limit hint in seconds.
	RetryAfter int32
}

func (e *ApplicationError) Error() string {
	msg := fmt.Sprintf("rpc: application error %v", e.Kind)
	if e.Parameter != "" {
		msg += " (" + e.Parameter + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Kind == KindRateLimited {
		msg += fmt.Sprintf(", retry after %ds", e.RetryAfter)
	}
	return msg
}

// RetryAfterDuration returns RetryAfter as a time.Duration.
func (e *ApplicationError) RetryAfterDuration() time.Duration {
	return time.Duration(e.RetryAfter) * time.Second
}

// ProtocolErrorCode mirrors the application exception type codes of the
// wire protocol.
type ProtocolErrorCode int32

const (
	ProtoUnknown            ProtocolErrorCode = 0
	ProtoUnknownMethod      ProtocolErrorCode = 1
	ProtoInvalidMessageType ProtocolErrorCode = 2
	ProtoWrongMethodName    ProtocolErrorCode = 3
	ProtoBadSequenceID      ProtocolErrorCode = 4
	ProtoMissingResult      ProtocolErrorCode = 5
	ProtoInternalError      ProtocolErrorCode = 6
	ProtoProtocolError      ProtocolErrorCode = 7
)

// ProtocolError reports a malformed or mismatched response envelope, or an
// exception envelope sent by the server instead of a reply.
type ProtocolError struct {
	Method  string
	Code    ProtocolErrorCode
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("rpc: %s: protocol error %d", e.Method, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// KindOf returns the ApplicationError kind of err, or 0 when err is not an
// application error.
func KindOf(err error) ErrorKind {
	var ae *ApplicationError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

// IsAuthFailure reports whether err says the token is invalid or expired.
func IsAuthFailure(err error) bool {
	k := KindOf(err)
	return k == KindInvalidAuth || k == KindAuthExpired
}

// IsRetryable reports whether a caller may retry the same call later.
// Cancellation and protocol errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrCancelled) {
		return false
	}
	var te *transport.TransportError
	if errors.As(err, &te) {
		return te.Temporary()
	}
	switch KindOf(err) {
	case KindShardUnavailable, KindRateLimited:
		return true
	}
	return false
}

// RetryAfter returns the rate limit hint carried by err.
func RetryAfter(err error) (time.Duration, bool) {
	var ae *ApplicationError
	if errors.As(err, &ae) && ae.Kind == KindRateLimited {
		return ae.RetryAfterDuration(), true
	}
	return 0, false
}
