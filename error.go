package gasrag

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Application error codes.
const (
	ECONFLICT     = "conflict"
	EINTERNAL     = "internal"
	EINVALID      = "invalid"
	ENOTFOUND     = "not_found"
	ERATELIMIT    = "rate_limit"
	EUNAUTHORIZED = "unauthorized"
	EUNAVAILABLE  = "unavailable"
)

// Error represents an application-specific error.
type Error struct {
	Code    string
	Message string
}

// Error implements the error interface. Not used by the application otherwise.
func (e *Error) Error() string {
	return fmt.Sprintf("gasrag error: code=%s message=%s", e.Code, e.Message)
}

// ErrorCode unwraps an application error and returns its code.
// Non-application errors always return EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors always return "Internal error.".
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}

// Errorf is a helper function to return an Error with a given code and formatted message.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// StatusError is returned by remote services that answer with an HTTP
// status. The status drives retry classification.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// OpError describes a failed vector store operation.
type OpError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *OpError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

// EmbeddingFailure is returned when a single item could not be embedded
// after exhausting its retries.
type EmbeddingFailure struct {
	ChunkID  string
	Attempts int
	Err      error
}

func (e *EmbeddingFailure) Error() string {
	if e.ChunkID == "" {
		return fmt.Sprintf("embedding failed after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("embedding chunk %s failed after %d attempts: %v", e.ChunkID, e.Attempts, e.Err)
}

func (e *EmbeddingFailure) Unwrap() error { return e.Err }

var fatalPatterns = []string{
	"invalid api key",
	"invalid jwt",
	"jwt expired",
	"permission denied",
	"unauthorized",
	"forbidden",
	"quota exceeded",
	"dimension",
	"duplicate key",
	"unique constraint",
	"malformed",
	"invalid input syntax",
}

var transientPatterns = []string{
	"timeout",
	"timed out",
	"network",
	"connection reset",
	"connection refused",
	"broken pipe",
	"eof",
	"fetch failed",
	"cloudflare",
	"bad gateway",
	"service unavailable",
	"gateway timeout",
	"rate limit",
	"too many requests",
}

// IsRetryable reports whether err is transient and the failed call may
// succeed if attempted again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var e *Error
	if errors.As(err, &e) {
		switch e.Code {
		case ERATELIMIT:
			return true
		case EINVALID, EUNAUTHORIZED, ECONFLICT, EUNAVAILABLE, ENOTFOUND:
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	if hasFatalPattern(msg) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return !hasFatalPattern(strings.ToLower(se.Message)) && retryableStatus(se.StatusCode)
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}

	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsRateLimit reports whether err signals that a request quota was hit.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if ErrorCode(err) == ERATELIMIT {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == 429
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests")
}

func hasFatalPattern(msg string) bool {
	for _, p := range fatalPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func retryableStatus(code int) bool {
	switch {
	case code == 408, code == 429:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}
