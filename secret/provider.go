package secret

import "context"

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log resolved
// values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

// StaticProvider serves secrets from an in-memory map. Intended for tests
// and for injecting pre-resolved credentials.
type StaticProvider struct {
	name    string
	secrets map[string]string
}

// NewStaticProvider creates a provider named name serving the given map.
func NewStaticProvider(name string, secrets map[string]string) *StaticProvider {
	cp := make(map[string]string, len(secrets))
	for k, v := range secrets {
		cp[k] = v
	}
	return &StaticProvider{name: name, secrets: cp}
}

// Name returns the provider name.
func (p *StaticProvider) Name() string { return p.name }

// Resolve returns the secret for ref.
func (p *StaticProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := p.secrets[ref]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Close is a no-op.
func (p *StaticProvider) Close() error { return nil }

// Ensure StaticProvider implements Provider
var _ Provider = (*StaticProvider)(nil)
