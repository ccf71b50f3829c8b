package apierr

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TransportFailure categorizes a failure that happened before any HTTP
// response was received.
type TransportFailure int

const (
	// TransportNone means the call produced an HTTP response.
	TransportNone TransportFailure = iota
	// TransportTimeout means the call exceeded its deadline.
	TransportTimeout
	// TransportConnection means the connection could not be established
	// or was dropped mid-flight.
	TransportConnection
	// TransportDNS means name resolution failed.
	TransportDNS
	// TransportTLS means the TLS handshake or certificate check failed.
	TransportTLS
)

// String returns the string representation of the transport failure.
func (t TransportFailure) String() string {
	switch t {
	case TransportNone:
		return "none"
	case TransportTimeout:
		return "timeout"
	case TransportConnection:
		return "connection"
	case TransportDNS:
		return "dns"
	case TransportTLS:
		return "tls"
	default:
		return "unknown"
	}
}

// Raw is the unclassified failure handed to the Classifier. At least one of
// Status or Transport must be set.
type Raw struct {
	// Status is the HTTP status, or 0 if no response was received.
	Status int

	// ServerCode is the machine error code extracted from the response
	// body, if any.
	ServerCode string

	// Message is the human-readable message from the body, if any.
	Message string

	// Headers are the response headers, if any.
	Headers map[string]string

	// Transport is set when the failure happened below HTTP.
	Transport TransportFailure
}

// tableEntry is one row of the fixed classification table.
type tableEntry struct {
	kind      Kind
	code      Code
	retryable bool
	// baseDelay is the default delay hint applied when the server did not
	// supply a Retry-After. Zero means no hint.
	baseDelay time.Duration
}

// tableKey matches on (status, server code). A zero status matches any
// status; an empty code matches any code.
type tableKey struct {
	status int
	code   string
}

// Classifier maps raw failures onto the taxonomy.
type Classifier struct {
	table map[tableKey]tableEntry
	now   func() time.Time
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithNow overrides the clock used for Retry-After date parsing.
func WithNow(now func() time.Time) ClassifierOption {
	return func(c *Classifier) { c.now = now }
}

// WithTableEntry adds or replaces a fixed-table row. A zero status matches
// any status, an empty code matches any code.
func WithTableEntry(status int, serverCode string, kind Kind, code Code, retryable bool, baseDelay time.Duration) ClassifierOption {
	return func(c *Classifier) {
		c.table[tableKey{status, strings.ToLower(serverCode)}] = tableEntry{kind, code, retryable, baseDelay}
	}
}

// NewClassifier creates a classifier with the default fixed table.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		table: defaultTable(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// defaultTable covers the provider codes observed across Google Drive,
// Azure AD and Anthropic error envelopes. Keys are matched case-insensitively
// on the server code.
func defaultTable() map[tableKey]tableEntry {
	t := map[tableKey]tableEntry{
		// OAuth token endpoint codes (status varies by provider, match on code).
		{0, "invalid_grant"}:   {KindAuthentication, CodeInvalidGrant, false, 0},
		{0, "invalid_client"}:  {KindAuthentication, CodeInvalidToken, false, 0},
		{0, "invalid_token"}:   {KindAuthentication, CodeInvalidToken, false, 0},
		{0, "expired_token"}:   {KindAuthentication, CodeExpiredToken, true, 0},
		{0, "interaction_required"}: {KindAuthentication, CodeRefreshFailed, false, 0},

		// Google Drive style body codes.
		{0, "userratelimitexceeded"}:  {KindQuota, CodeUserRateLimit, true, time.Minute},
		{0, "ratelimitexceeded"}:      {KindQuota, CodeUserRateLimit, true, time.Minute},
		{0, "dailylimitexceeded"}:     {KindQuota, CodeDailyLimit, false, 0},
		{0, "storagequotaexceeded"}:   {KindQuota, CodeStorageQuota, false, 0},
		{0, "insufficientpermissions"}: {KindAuthorization, CodeForbidden, false, 0},
		{0, "backenderror"}:           {KindServer, CodeBackend, true, time.Second},

		// Anthropic style typed errors.
		{0, "authentication_error"}:  {KindAuthentication, CodeInvalidToken, false, 0},
		{0, "permission_error"}:      {KindAuthorization, CodeForbidden, false, 0},
		{0, "invalid_request_error"}: {KindRequest, CodeInvalidRequest, false, 0},
		{0, "not_found_error"}:       {KindResource, CodeNotFound, false, 0},
		{0, "rate_limit_error"}:      {KindQuota, CodeUserRateLimit, true, time.Minute},
		{0, "overloaded_error"}:      {KindServer, CodeServiceUnavailable, true, 30 * time.Second},
		{0, "api_error"}:             {KindServer, CodeInternal, true, time.Second},

		// Status-only rows for common statuses.
		{http.StatusUnauthorized, ""}:        {KindAuthentication, CodeInvalidToken, false, 0},
		{http.StatusForbidden, ""}:           {KindAuthorization, CodeForbidden, false, 0},
		{http.StatusNotFound, ""}:            {KindResource, CodeNotFound, false, 0},
		{http.StatusConflict, ""}:            {KindResource, CodeAlreadyExists, false, 0},
		{http.StatusTooManyRequests, ""}:     {KindQuota, CodeUserRateLimit, true, time.Minute},
		{http.StatusInternalServerError, ""}: {KindServer, CodeInternal, true, time.Second},
		{http.StatusBadGateway, ""}:          {KindServer, CodeBadGateway, true, time.Second},
		{http.StatusServiceUnavailable, ""}:  {KindServer, CodeServiceUnavailable, true, 30 * time.Second},
		{http.StatusGatewayTimeout, ""}:      {KindServer, CodeBackend, true, 5 * time.Second},
	}
	return t
}

// Classify maps a raw failure to a classified error.
//
// Lookup order: exact (status, code), then code-only, then status-only, then
// the generic status-class fallback. Code-only matching before status-only
// means a body-level code wins when it disagrees with the status, including
// the 200-with-error-envelope case.
func (c *Classifier) Classify(raw Raw) *Error {
	if raw.Status == 0 && raw.Transport == TransportNone {
		return New(KindConfiguration, CodeInvalidRequest, false,
			"classify called with neither status nor transport failure")
	}

	if raw.Transport != TransportNone {
		return c.classifyTransport(raw)
	}

	retryAfter := c.retryAfterFromHeaders(raw.Headers)
	code := strings.ToLower(raw.ServerCode)

	entry, ok := c.table[tableKey{raw.Status, code}]
	if !ok && code != "" {
		entry, ok = c.table[tableKey{0, code}]
	}
	if !ok {
		entry, ok = c.table[tableKey{raw.Status, ""}]
	}
	if !ok {
		entry = fallbackEntry(raw.Status)
	}

	if retryAfter == 0 {
		retryAfter = entry.baseDelay
	}

	msg := raw.Message
	if msg == "" {
		msg = http.StatusText(raw.Status)
		if msg == "" {
			msg = "request failed"
		}
	}

	return &Error{
		Kind:       entry.kind,
		Code:       entry.code,
		Message:    msg,
		Retryable:  entry.retryable,
		RetryAfter: retryAfter,
		Status:     raw.Status,
		ServerCode: raw.ServerCode,
	}
}

// classifyTransport maps network-level failures. DNS and TLS failures are
// environment problems that retrying cannot fix.
func (c *Classifier) classifyTransport(raw Raw) *Error {
	msg := raw.Message
	if msg == "" {
		msg = "transport failure: " + raw.Transport.String()
	}

	e := &Error{Kind: KindNetwork, Message: msg}
	switch raw.Transport {
	case TransportTimeout:
		e.Code, e.Retryable = CodeTimeout, true
	case TransportConnection:
		e.Code, e.Retryable = CodeConnectionFailed, true
	case TransportDNS:
		e.Code, e.Retryable = CodeDNSFailed, false
	case TransportTLS:
		e.Code, e.Retryable = CodeTLSFailed, false
	default:
		e.Code, e.Retryable = CodeConnectionFailed, true
	}
	return e
}

// fallbackEntry is the generic status-class mapping used when no table row
// matches: 4xx non-retryable, 5xx retryable.
func fallbackEntry(status int) tableEntry {
	switch {
	case status >= 400 && status < 500:
		return tableEntry{KindRequest, CodeInvalidRequest, false, 0}
	case status >= 500:
		return tableEntry{KindServer, CodeInternal, true, time.Second}
	default:
		// Success status with an error envelope but an unknown code.
		return tableEntry{KindResponse, CodeDeserialization, false, 0}
	}
}

// retryAfterFromHeaders extracts the Retry-After header, if any.
func (c *Classifier) retryAfterFromHeaders(headers map[string]string) time.Duration {
	v := headerValue(headers, "Retry-After")
	if v == "" {
		return 0
	}
	d, ok := ParseRetryAfter(v, c.now())
	if !ok {
		return 0
	}
	return d
}

// ParseRetryAfter parses a Retry-After value as either integer seconds or an
// HTTP-date. A date in the past is treated as absent.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}

	when, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	d := when.Sub(now)
	if d <= 0 {
		return 0, false
	}
	return d, true
}

// headerValue does a case-insensitive header lookup on a plain map.
func headerValue(headers map[string]string, name string) string {
	if headers == nil {
		return ""
	}
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
