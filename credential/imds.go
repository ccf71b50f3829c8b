package credential

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/driftworks/apiward/apierr"
	"github.com/driftworks/apiward/token"
)

// ManagedIdentityConfig configures token acquisition from a platform
// metadata service, where the platform holds the credential and the
// workload just asks for tokens.
type ManagedIdentityConfig struct {
	// Endpoint is the metadata token endpoint.
	// Default: the link-local IMDS endpoint.
	Endpoint string

	// APIVersion is the metadata API version query parameter.
	// Default: 2018-02-01
	APIVersion string

	// Resource is the audience tokens are requested for.
	Resource string

	// ClientID selects a user-assigned identity. Empty uses the
	// system-assigned identity.
	ClientID string

	// HTTPClient overrides the HTTP client. The default uses a short
	// timeout because the metadata endpoint is link-local.
	HTTPClient *http.Client
}

const defaultIMDSEndpoint = "http://169.254.169.254/metadata/identity/oauth2/token"

// ManagedIdentity acquires tokens from the instance metadata service.
type ManagedIdentity struct {
	config ManagedIdentityConfig
	client *http.Client
}

// NewManagedIdentity creates a managed identity provider.
func NewManagedIdentity(config ManagedIdentityConfig) (*ManagedIdentity, error) {
	if config.Resource == "" {
		return nil, apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest,
			false, "managed identity: resource is required")
	}
	if config.Endpoint == "" {
		config.Endpoint = defaultIMDSEndpoint
	}
	if config.APIVersion == "" {
		config.APIVersion = "2018-02-01"
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}
	return &ManagedIdentity{config: config, client: client}, nil
}

// AcquireOrRefresh implements token.Provider. The scope argument is
// ignored; metadata tokens are scoped by resource at request time.
func (p *ManagedIdentity) AcquireOrRefresh(ctx context.Context, _ []string, _ *token.Token) (*token.Token, error) {
	q := url.Values{}
	q.Set("api-version", p.config.APIVersion)
	q.Set("resource", p.config.Resource)
	if p.config.ClientID != "" {
		q.Set("client_id", p.config.ClientID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.config.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest,
			false, "build metadata request: %v", err)
	}
	req.Header.Set("Metadata", "true")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, classifyTransport(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyErrorBody(resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, apierr.New(apierr.KindResponse, apierr.CodeDeserialization, false,
			"decode metadata response: %v", err)
	}
	return tr.toToken(nil, time.Now())
}

var _ token.Provider = (*ManagedIdentity)(nil)
