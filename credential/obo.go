package credential

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/driftworks/apiward/apierr"
	"github.com/driftworks/apiward/secret"
	"github.com/driftworks/apiward/token"
)

// The grant type for on-behalf-of token exchange.
const grantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// OnBehalfOfConfig configures the on-behalf-of exchange: a service
// trades an inbound user token for a downstream token carrying the
// user's identity.
type OnBehalfOfConfig struct {
	// TokenURL is the provider's token endpoint.
	TokenURL string

	// ClientID identifies the middle-tier service.
	ClientID string

	// ClientSecret authenticates the middle-tier service.
	ClientSecret *secret.Value

	// UserAssertion supplies the inbound user token per exchange. The
	// function form keeps the exchange tied to the current request
	// rather than a token captured at construction time.
	UserAssertion func(ctx context.Context) (*secret.Value, error)

	// Scopes is the default scope set, used when a request names none.
	Scopes []string

	// HTTPClient overrides the HTTP client used for token requests.
	HTTPClient *http.Client
}

// OnBehalfOf exchanges user tokens for downstream tokens.
type OnBehalfOf struct {
	config OnBehalfOfConfig
}

// NewOnBehalfOf creates an on-behalf-of provider.
func NewOnBehalfOf(config OnBehalfOfConfig) (*OnBehalfOf, error) {
	if config.TokenURL == "" {
		return nil, apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest,
			false, "on-behalf-of: token URL is required")
	}
	if config.ClientID == "" {
		return nil, apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest,
			false, "on-behalf-of: client id is required")
	}
	if config.UserAssertion == nil {
		return nil, apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest,
			false, "on-behalf-of: user assertion source is required")
	}
	return &OnBehalfOf{config: config}, nil
}

// AcquireOrRefresh implements token.Provider.
func (p *OnBehalfOf) AcquireOrRefresh(ctx context.Context, scopes []string, _ *token.Token) (*token.Token, error) {
	if len(scopes) == 0 {
		scopes = p.config.Scopes
	}

	assertion, err := p.config.UserAssertion(ctx)
	if err != nil {
		return nil, err
	}
	if assertion.Empty() {
		return nil, apierr.New(apierr.KindAuthentication, apierr.CodeRefreshFailed,
			false, "on-behalf-of: empty user assertion")
	}

	form := url.Values{}
	form.Set("grant_type", grantTypeJWTBearer)
	form.Set("client_id", p.config.ClientID)
	form.Set("client_secret", p.config.ClientSecret.Reveal())
	form.Set("assertion", assertion.Reveal())
	form.Set("requested_token_use", "on_behalf_of")
	if len(scopes) > 0 {
		form.Set("scope", strings.Join(scopes, " "))
	}

	return postForm(ctx, p.config.HTTPClient, p.config.TokenURL, form, scopes)
}

var _ token.Provider = (*OnBehalfOf)(nil)
