package credential

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/driftworks/apiward/apierr"
	"github.com/driftworks/apiward/token"
)

// The client assertion type for private_key_jwt authentication.
const assertionTypeJWT = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// CertificateConfig configures certificate-based client authentication:
// the client proves possession of a private key by signing a short-lived
// assertion instead of sending a shared secret.
type CertificateConfig struct {
	// TokenURL is the provider's token endpoint, and the audience of
	// the signed assertion.
	TokenURL string

	// ClientID is the assertion's issuer and subject.
	ClientID string

	// PrivateKey signs the assertion.
	PrivateKey *rsa.PrivateKey

	// KeyID is the certificate thumbprint placed in the assertion
	// header so the server can pick the right public key.
	KeyID string

	// Scopes is the default scope set, used when a request names none.
	Scopes []string

	// AssertionTTL is the assertion's validity. Default: 5 minutes.
	AssertionTTL time.Duration

	// HTTPClient overrides the HTTP client used for token requests.
	HTTPClient *http.Client

	// Now overrides the clock for tests.
	Now func() time.Time
}

// CertificateProvider acquires tokens via the client credentials grant
// with a signed JWT assertion.
type CertificateProvider struct {
	config CertificateConfig
}

// NewCertificateProvider creates a certificate assertion provider.
func NewCertificateProvider(config CertificateConfig) (*CertificateProvider, error) {
	if config.TokenURL == "" {
		return nil, apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest,
			false, "certificate: token URL is required")
	}
	if config.ClientID == "" {
		return nil, apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest,
			false, "certificate: client id is required")
	}
	if config.PrivateKey == nil {
		return nil, apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest,
			false, "certificate: private key is required")
	}
	if config.AssertionTTL <= 0 {
		config.AssertionTTL = 5 * time.Minute
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &CertificateProvider{config: config}, nil
}

// AcquireOrRefresh implements token.Provider. Each call signs a fresh
// assertion; assertions are single-use by convention and cheap to mint.
func (p *CertificateProvider) AcquireOrRefresh(ctx context.Context, scopes []string, _ *token.Token) (*token.Token, error) {
	if len(scopes) == 0 {
		scopes = p.config.Scopes
	}

	assertion, err := p.signAssertion()
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", p.config.ClientID)
	form.Set("client_assertion_type", assertionTypeJWT)
	form.Set("client_assertion", assertion)
	if len(scopes) > 0 {
		form.Set("scope", strings.Join(scopes, " "))
	}

	return postForm(ctx, p.config.HTTPClient, p.config.TokenURL, form, scopes)
}

func (p *CertificateProvider) signAssertion() (string, error) {
	now := p.config.Now()

	jti := make([]byte, 16)
	if _, err := rand.Read(jti); err != nil {
		return "", apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest,
			false, "generate assertion id: %v", err)
	}

	claims := jwt.RegisteredClaims{
		Issuer:    p.config.ClientID,
		Subject:   p.config.ClientID,
		Audience:  jwt.ClaimStrings{p.config.TokenURL},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.config.AssertionTTL)),
		ID:        hex.EncodeToString(jti),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if p.config.KeyID != "" {
		t.Header["kid"] = p.config.KeyID
	}

	signed, err := t.SignedString(p.config.PrivateKey)
	if err != nil {
		return "", apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest,
			false, "sign assertion: %v", err)
	}
	return signed, nil
}

var _ token.Provider = (*CertificateProvider)(nil)
