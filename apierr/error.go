package apierr

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the top-level error category.
type Kind int

const (
	// KindConfiguration indicates invalid construction-time configuration.
	KindConfiguration Kind = iota
	// KindAuthentication indicates the caller's credentials were rejected.
	KindAuthentication
	// KindAuthorization indicates the credentials lack permission.
	KindAuthorization
	// KindRequest indicates a validation or bad-parameter failure.
	KindRequest
	// KindResource indicates a missing or conflicting resource.
	KindResource
	// KindQuota indicates a rate or storage limit was hit.
	KindQuota
	// KindNetwork indicates a transport-level failure.
	KindNetwork
	// KindServer indicates a provider-side failure.
	KindServer
	// KindResponse indicates the response could not be decoded.
	KindResponse
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindRequest:
		return "request"
	case KindResource:
		return "resource"
	case KindQuota:
		return "quota"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindResponse:
		return "response"
	default:
		return "unknown"
	}
}

// Code identifies the specific condition within a Kind.
type Code string

const (
	CodeInvalidToken  Code = "invalid_token"
	CodeExpiredToken  Code = "expired_token"
	CodeRefreshFailed Code = "refresh_failed"
	CodeInvalidGrant  Code = "invalid_grant"

	CodeForbidden         Code = "forbidden"
	CodeInsufficientScope Code = "insufficient_scope"

	CodeInvalidRequest Code = "invalid_request"

	CodeNotFound      Code = "not_found"
	CodeAlreadyExists Code = "already_exists"

	CodeUserRateLimit    Code = "user_rate_limit_exceeded"
	CodeProjectRateLimit Code = "project_rate_limit_exceeded"
	CodeStorageQuota     Code = "storage_quota_exceeded"
	CodeDailyLimit       Code = "daily_limit_exceeded"

	CodeTimeout          Code = "timeout"
	CodeConnectionFailed Code = "connection_failed"
	CodeDNSFailed        Code = "dns_resolution_failed"
	CodeTLSFailed        Code = "tls_error"

	CodeInternal           Code = "internal_error"
	CodeBackend            Code = "backend_error"
	CodeBadGateway         Code = "bad_gateway"
	CodeServiceUnavailable Code = "service_unavailable"

	CodeDeserialization Code = "deserialization_failed"
)

// Error is a classified provider failure. It is immutable once constructed.
type Error struct {
	// Kind is the taxonomy category.
	Kind Kind

	// Code identifies the specific condition.
	Code Code

	// Message is the human-readable description.
	Message string

	// Retryable reports whether retrying the operation may succeed.
	Retryable bool

	// RetryAfter is the server-suggested delay before retrying.
	// Zero means the server did not suggest one.
	RetryAfter time.Duration

	// Status is the HTTP status, or 0 when not applicable.
	Status int

	// ServerCode is the raw machine code from the provider's error body.
	ServerCode string

	// CorrelationID is the caller-supplied request correlation identifier.
	CorrelationID string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("apierr: %s/%s (status %d): %s", e.Kind, e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("apierr: %s/%s: %s", e.Kind, e.Code, e.Message)
}

// WithCorrelation returns a copy carrying the correlation id.
func (e *Error) WithCorrelation(id string) *Error {
	dup := *e
	dup.CorrelationID = id
	return &dup
}

// New constructs a classified error directly, for failures that originate
// inside the client rather than from a provider response.
func New(kind Kind, code Code, retryable bool, format string, args ...any) *Error {
	return &Error{
		Kind:      kind,
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Retryable: retryable,
	}
}

// FromError returns the classified error wrapped in err, or nil.
func FromError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// IsRetryable reports whether err carries a retryable classification.
// Unclassified errors are not retryable.
func IsRetryable(err error) bool {
	if e := FromError(err); e != nil {
		return e.Retryable
	}
	return false
}

// KindOf returns the Kind of a classified error, or KindResponse for
// unclassified errors.
func KindOf(err error) Kind {
	if e := FromError(err); e != nil {
		return e.Kind
	}
	return KindResponse
}
