package credential

import (
	"context"
	"crypto/rsa"

	"github.com/golang-jwt/jwt/v5"

	"github.com/driftworks/apiward/apierr"
	"github.com/driftworks/apiward/secret"
)

// Secrets loads credential material out of configuration references so
// provider configs never carry plaintext. References are either
// "secretref:<provider>:<ref>" strings served by a secret backend or
// values with ${ENV} expansion; see secret.Resolver.
//
//	secrets := credential.NewSecrets(resolver)
//	cs, err := secrets.Value(ctx, "secretref:vault:drive/client-secret")
//	key, err := secrets.SigningKey(ctx, "${DRIVE_SIGNING_KEY_PEM}")
//	provider, err := credential.NewClientCredentials(credential.ClientCredentialsConfig{
//	    TokenURL:     tokenURL,
//	    ClientID:     clientID,
//	    ClientSecret: cs,
//	})
type Secrets struct {
	resolver *secret.Resolver
}

// NewSecrets wraps a resolver for credential loading.
func NewSecrets(resolver *secret.Resolver) *Secrets {
	return &Secrets{resolver: resolver}
}

// Value resolves ref into a redacted secret value, suitable for the
// ClientSecret, RefreshToken, and assertion fields of provider configs.
func (s *Secrets) Value(ctx context.Context, ref string) (*secret.Value, error) {
	v, err := s.resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return nil, apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest,
			false, "resolve credential secret: %v", err)
	}
	return v, nil
}

// SigningKey resolves ref to a PEM-encoded RSA private key for
// CertificateConfig.PrivateKey. The intermediate PEM text is scrubbed
// once the key is parsed.
func (s *Secrets) SigningKey(ctx context.Context, ref string) (*rsa.PrivateKey, error) {
	v, err := s.Value(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer v.Scrub()

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(v.Reveal()))
	if err != nil {
		return nil, apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest,
			false, "parse signing key: %v", err)
	}
	return key, nil
}
