package apierr

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"
)

// RateLimitInfo is the server's authoritative view of the caller's remaining
// quota, parsed from response headers.
type RateLimitInfo struct {
	// Remaining is the number of requests left in the current window.
	Remaining int

	// Reset is when the window refills. Zero when the header was absent.
	Reset time.Time

	// RetryAfter is the server-suggested wait, if any.
	RetryAfter time.Duration
}

// ParseRateLimitHeaders extracts x-ratelimit-remaining / x-ratelimit-reset
// (and retry-after) from response headers. The reset header is accepted as
// either epoch seconds or delta seconds; values under a year are treated as
// deltas. Returns false if no rate-limit headers are present.
func ParseRateLimitHeaders(headers map[string]string, now time.Time) (RateLimitInfo, bool) {
	info := RateLimitInfo{Remaining: -1}
	found := false

	if v := headerValue(headers, "x-ratelimit-remaining"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			info.Remaining = n
			found = true
		}
	}

	if v := headerValue(headers, "x-ratelimit-reset"); v != "" {
		if secs, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && secs >= 0 {
			const yearSeconds = 365 * 24 * 60 * 60
			if secs < yearSeconds {
				info.Reset = now.Add(time.Duration(secs) * time.Second)
			} else {
				info.Reset = time.Unix(secs, 0)
			}
			found = true
		}
	}

	if v := headerValue(headers, "Retry-After"); v != "" {
		if d, ok := ParseRetryAfter(v, now); ok {
			info.RetryAfter = d
			found = true
		}
	}

	return info, found
}

// TransportKindOf inspects a Go transport error and returns its failure
// category. Unrecognized errors are treated as connection failures.
func TransportKindOf(err error) TransportFailure {
	if err == nil {
		return TransportNone
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return TransportTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return TransportDNS
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return TransportTLS
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return TransportTLS
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TransportTimeout
	}

	return TransportConnection
}
