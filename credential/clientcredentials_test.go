package credential

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/driftworks/apiward/apierr"
	"github.com/driftworks/apiward/secret"
)

func TestClientCredentials_Acquire(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.FormValue("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.FormValue("scope"); got != "drive.read" {
			t.Errorf("scope = %q, want drive.read", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-cc","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	p, err := NewClientCredentials(ClientCredentialsConfig{
		TokenURL:     srv.URL,
		ClientID:     "client",
		ClientSecret: secret.New("s3cret"),
	})
	if err != nil {
		t.Fatalf("NewClientCredentials() error = %v", err)
	}

	tok, err := p.AcquireOrRefresh(context.Background(), []string{"drive.read"}, nil)
	if err != nil {
		t.Fatalf("AcquireOrRefresh() error = %v", err)
	}
	if tok.Value.Reveal() != "tok-cc" {
		t.Errorf("token = %q, want tok-cc", tok.Value.Reveal())
	}
	if tok.ExpiresAt.IsZero() {
		t.Error("ExpiresAt not set from expires_in")
	}
}

func TestClientCredentials_InvalidClientIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"bad secret"}`))
	}))
	defer srv.Close()

	p, err := NewClientCredentials(ClientCredentialsConfig{
		TokenURL:     srv.URL,
		ClientID:     "client",
		ClientSecret: secret.New("wrong"),
	})
	if err != nil {
		t.Fatalf("NewClientCredentials() error = %v", err)
	}

	_, err = p.AcquireOrRefresh(context.Background(), nil, nil)
	ce := apierr.FromError(err)
	if ce == nil {
		t.Fatalf("error = %v, want classified", err)
	}
	if ce.Kind != apierr.KindAuthentication || ce.Retryable {
		t.Errorf("error = %+v, want terminal authentication failure", ce)
	}
}

func TestClientCredentials_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := NewClientCredentials(ClientCredentialsConfig{
		TokenURL:     srv.URL,
		ClientID:     "client",
		ClientSecret: secret.New("s3cret"),
	})
	if err != nil {
		t.Fatalf("NewClientCredentials() error = %v", err)
	}

	_, err = p.AcquireOrRefresh(context.Background(), nil, nil)
	if !apierr.IsRetryable(err) {
		t.Errorf("error = %v, want retryable", err)
	}
}

func TestClientCredentials_DefaultScopes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if got := r.FormValue("scope"); got != "default.scope" {
			t.Errorf("scope = %q, want configured default", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer"}`))
	}))
	defer srv.Close()

	p, _ := NewClientCredentials(ClientCredentialsConfig{
		TokenURL:     srv.URL,
		ClientID:     "client",
		ClientSecret: secret.New("s3cret"),
		Scopes:       []string{"default.scope"},
	})

	if _, err := p.AcquireOrRefresh(context.Background(), nil, nil); err != nil {
		t.Fatalf("AcquireOrRefresh() error = %v", err)
	}
}

func TestNewClientCredentials_Validation(t *testing.T) {
	if _, err := NewClientCredentials(ClientCredentialsConfig{ClientID: "c"}); err == nil {
		t.Error("missing token URL accepted")
	}
	if _, err := NewClientCredentials(ClientCredentialsConfig{TokenURL: "https://x"}); err == nil {
		t.Error("missing client id accepted")
	}
}
