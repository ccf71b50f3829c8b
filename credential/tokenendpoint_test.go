package credential

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/driftworks/apiward/apierr"
)

func TestClassifyErrorBody(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantKind  apierr.Kind
		wantCode  apierr.Code
		retryable bool
	}{
		{
			name:     "invalid grant is terminal",
			status:   400,
			body:     `{"error":"invalid_grant","error_description":"revoked"}`,
			wantKind: apierr.KindAuthentication,
			wantCode: apierr.CodeInvalidGrant,
		},
		{
			name:     "invalid client is terminal",
			status:   401,
			body:     `{"error":"invalid_client"}`,
			wantKind: apierr.KindAuthentication,
			wantCode: apierr.CodeInvalidToken,
		},
		{
			name:     "unknown 4xx becomes refresh failure",
			status:   400,
			body:     `{"error":"unsupported_grant_type"}`,
			wantKind: apierr.KindAuthentication,
			wantCode: apierr.CodeRefreshFailed,
		},
		{
			name:      "server error stays retryable",
			status:    503,
			body:      `{}`,
			wantKind:  apierr.KindServer,
			wantCode:  apierr.CodeServiceUnavailable,
			retryable: true,
		},
		{
			name:     "garbage body classified by status",
			status:   400,
			body:     `<html></html>`,
			wantKind: apierr.KindAuthentication,
			wantCode: apierr.CodeRefreshFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := classifyErrorBody(tt.status, []byte(tt.body))
			if ce.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", ce.Kind, tt.wantKind)
			}
			if ce.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", ce.Code, tt.wantCode)
			}
			if ce.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", ce.Retryable, tt.retryable)
			}
		})
	}
}

func TestAsRefreshFailure_CopiesBeforeRemap(t *testing.T) {
	ce := classifier.Classify(apierr.Raw{Status: 400, ServerCode: "unsupported_grant_type"})
	if ce.Kind != apierr.KindRequest {
		t.Fatalf("Kind = %v, want request before remap", ce.Kind)
	}

	remapped := asRefreshFailure(ce)
	if remapped.Kind != apierr.KindAuthentication || remapped.Code != apierr.CodeRefreshFailed {
		t.Errorf("remapped = %v/%v, want authentication/refresh failure", remapped.Kind, remapped.Code)
	}
	if remapped == ce {
		t.Fatal("asRefreshFailure returned the original error, want a copy")
	}
	if ce.Kind != apierr.KindRequest || ce.Code == apierr.CodeRefreshFailed {
		t.Errorf("original mutated to %v/%v, want untouched", ce.Kind, ce.Code)
	}
}

func TestTokenResponse_ToToken(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	tr := &tokenResponse{
		AccessToken: "abc",
		TokenType:   "Bearer",
		ExpiresIn:   "3600",
	}
	tok, err := tr.toToken([]string{"scope"}, now)
	if err != nil {
		t.Fatalf("toToken() error = %v", err)
	}
	if tok.Value.Reveal() != "abc" {
		t.Errorf("value = %q, want abc", tok.Value.Reveal())
	}
	if want := now.Add(time.Hour); !tok.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", tok.ExpiresAt, want)
	}
	if len(tok.Scopes) != 1 || tok.Scopes[0] != "scope" {
		t.Errorf("Scopes = %v, want requested scope echoed", tok.Scopes)
	}
}

func TestTokenResponse_ToToken_ExpiresOnWins(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	on := now.Add(30 * time.Minute).Unix()

	tr := &tokenResponse{
		AccessToken: "abc",
		ExpiresIn:   "3600",
		ExpiresOn:   json.Number(strconv.FormatInt(on, 10)),
	}

	tok, err := tr.toToken(nil, now)
	if err != nil {
		t.Fatalf("toToken() error = %v", err)
	}
	if !tok.ExpiresAt.Equal(time.Unix(on, 0)) {
		t.Errorf("ExpiresAt = %v, want absolute expires_on", tok.ExpiresAt)
	}
}

func TestTokenResponse_ToToken_ServerScopeWins(t *testing.T) {
	tr := &tokenResponse{AccessToken: "abc", Scope: "granted.a granted.b"}
	tok, err := tr.toToken([]string{"asked"}, time.Now())
	if err != nil {
		t.Fatalf("toToken() error = %v", err)
	}
	if len(tok.Scopes) != 2 || tok.Scopes[0] != "granted.a" {
		t.Errorf("Scopes = %v, want server-granted set", tok.Scopes)
	}
}

func TestTokenResponse_ToToken_MissingAccessToken(t *testing.T) {
	tr := &tokenResponse{TokenType: "Bearer"}
	if _, err := tr.toToken(nil, time.Now()); apierr.KindOf(err) != apierr.KindResponse {
		t.Errorf("error = %v, want response error", err)
	}
}
