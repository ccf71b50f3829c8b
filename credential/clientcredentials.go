package credential

import (
	"context"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/driftworks/apiward/apierr"
	"github.com/driftworks/apiward/secret"
	"github.com/driftworks/apiward/token"
)

// ClientCredentialsConfig configures the client credentials grant.
type ClientCredentialsConfig struct {
	// TokenURL is the provider's token endpoint.
	TokenURL string

	// ClientID identifies the application.
	ClientID string

	// ClientSecret authenticates the application.
	ClientSecret *secret.Value

	// Scopes is the default scope set, used when a request names none.
	Scopes []string

	// AuthStyle selects how the client secret is sent.
	// Default: auto-detect.
	AuthStyle oauth2.AuthStyle

	// EndpointParams are extra token endpoint parameters, such as
	// audience or resource.
	EndpointParams url.Values

	// HTTPClient overrides the HTTP client used for token requests.
	HTTPClient *http.Client
}

// ClientCredentials acquires application tokens via the OAuth2 client
// credentials grant. The grant has no refresh token; every refresh is a
// fresh acquisition.
type ClientCredentials struct {
	config ClientCredentialsConfig
}

// NewClientCredentials creates a client credentials provider.
func NewClientCredentials(config ClientCredentialsConfig) (*ClientCredentials, error) {
	if config.TokenURL == "" {
		return nil, apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest,
			false, "client credentials: token URL is required")
	}
	if config.ClientID == "" {
		return nil, apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest,
			false, "client credentials: client id is required")
	}
	return &ClientCredentials{config: config}, nil
}

// AcquireOrRefresh implements token.Provider.
func (p *ClientCredentials) AcquireOrRefresh(ctx context.Context, scopes []string, _ *token.Token) (*token.Token, error) {
	if len(scopes) == 0 {
		scopes = p.config.Scopes
	}

	cfg := &clientcredentials.Config{
		ClientID:       p.config.ClientID,
		ClientSecret:   p.config.ClientSecret.Reveal(),
		TokenURL:       p.config.TokenURL,
		Scopes:         scopes,
		AuthStyle:      p.config.AuthStyle,
		EndpointParams: p.config.EndpointParams,
	}

	tok, err := cfg.Token(withHTTPClient(ctx, p.config.HTTPClient))
	if err != nil {
		return nil, classifyOAuth2Error(err)
	}

	return &token.Token{
		Value:     secret.New(tok.AccessToken),
		Type:      tok.TokenType,
		ExpiresAt: tok.Expiry,
		Scopes:    scopes,
	}, nil
}

var _ token.Provider = (*ClientCredentials)(nil)
