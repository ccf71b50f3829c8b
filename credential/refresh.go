package credential

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/driftworks/apiward/apierr"
	"github.com/driftworks/apiward/secret"
	"github.com/driftworks/apiward/token"
)

// RefreshTokenConfig configures the refresh token grant.
type RefreshTokenConfig struct {
	// TokenURL is the provider's token endpoint.
	TokenURL string

	// ClientID identifies the application.
	ClientID string

	// ClientSecret authenticates confidential clients. Nil for public
	// clients.
	ClientSecret *secret.Value

	// RefreshToken is the long-lived grant obtained out of band, usually
	// from an interactive authorization code flow.
	RefreshToken *secret.Value

	// Scopes is the default scope set, used when a request names none.
	Scopes []string

	// HTTPClient overrides the HTTP client used for token requests.
	HTTPClient *http.Client
}

// RefreshTokenProvider exchanges a stored refresh token for access
// tokens, tracking rotation when the server issues a replacement.
type RefreshTokenProvider struct {
	config RefreshTokenConfig

	mu      sync.Mutex
	current *secret.Value
}

// NewRefreshTokenProvider creates a refresh token provider.
func NewRefreshTokenProvider(config RefreshTokenConfig) (*RefreshTokenProvider, error) {
	if config.TokenURL == "" {
		return nil, apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest,
			false, "refresh token: token URL is required")
	}
	if config.ClientID == "" {
		return nil, apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest,
			false, "refresh token: client id is required")
	}
	if config.RefreshToken.Empty() {
		return nil, apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest,
			false, "refresh token: initial refresh token is required")
	}
	return &RefreshTokenProvider{
		config:  config,
		current: config.RefreshToken,
	}, nil
}

// AcquireOrRefresh implements token.Provider. The prior token's rotated
// refresh secret takes precedence over the provider's stored one, so a
// cache restored from elsewhere keeps working after rotation.
func (p *RefreshTokenProvider) AcquireOrRefresh(ctx context.Context, scopes []string, prior *token.Token) (*token.Token, error) {
	if len(scopes) == 0 {
		scopes = p.config.Scopes
	}

	grant := p.grantFor(prior)
	if grant.Empty() {
		return nil, apierr.New(apierr.KindAuthentication, apierr.CodeRefreshFailed,
			false, "no refresh token available")
	}

	cfg := &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret.Reveal(),
		Endpoint:     oauth2.Endpoint{TokenURL: p.config.TokenURL},
		Scopes:       scopes,
	}

	src := cfg.TokenSource(withHTTPClient(ctx, p.config.HTTPClient),
		&oauth2.Token{RefreshToken: grant.Reveal()})
	tok, err := src.Token()
	if err != nil {
		return nil, classifyOAuth2Error(err)
	}

	rotated := grant
	if tok.RefreshToken != "" && tok.RefreshToken != grant.Reveal() {
		rotated = secret.New(tok.RefreshToken)
		p.mu.Lock()
		p.current = rotated
		p.mu.Unlock()
	}

	return &token.Token{
		Value:         secret.New(tok.AccessToken),
		Type:          tok.TokenType,
		ExpiresAt:     tok.Expiry,
		Scopes:        scopes,
		RefreshSecret: rotated,
	}, nil
}

func (p *RefreshTokenProvider) grantFor(prior *token.Token) *secret.Value {
	if prior != nil && !prior.RefreshSecret.Empty() {
		return prior.RefreshSecret
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

var _ token.Provider = (*RefreshTokenProvider)(nil)
