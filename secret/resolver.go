package secret

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// refPattern matches secretref:<provider>:<ref> anywhere in a value.
var refPattern = regexp.MustCompile(`secretref:([^:\s]+):([^\s]+)`)

// Resolver turns configuration references into credential material.
// Values of the form "secretref:<provider>:<ref>" are fetched from the
// named provider; everything else passes through strict environment
// expansion. Credential configs hand their client-secret and key
// references here rather than carrying plaintext.
type Resolver struct {
	providers map[string]Provider
	strict    bool
}

// NewResolver creates a resolver over the given providers. In strict
// mode a provider answering with an empty string is an error; an empty
// client secret authenticates nothing and should fail at load time.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider), strict: strict}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds a provider under its own name, replacing any previous
// registration.
func (r *Resolver) Register(p Provider) {
	if r == nil || p == nil {
		return
	}
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[p.Name()] = p
}

// ResolveSecret resolves ref and wraps the result so it cannot leak
// through logs or serialization. Credential configs use this for client
// secrets, refresh tokens, and private keys.
func (r *Resolver) ResolveSecret(ctx context.Context, ref string) (*Value, error) {
	plain, err := r.ResolveString(ctx, ref)
	if err != nil {
		return nil, err
	}
	return New(plain), nil
}

// ResolveString expands environment variables in value and substitutes
// every embedded secret reference, returning the plain string. Prefer
// ResolveSecret when the result is credential material.
func (r *Resolver) ResolveString(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}
	if r == nil {
		return expanded, nil
	}

	matches := refPattern.FindAllStringSubmatchIndex(expanded, -1)
	if len(matches) == 0 {
		return expanded, nil
	}

	var out strings.Builder
	last := 0
	for _, m := range matches {
		resolved, err := r.fetch(ctx, expanded[m[2]:m[3]], expanded[m[4]:m[5]])
		if err != nil {
			return "", err
		}
		out.WriteString(expanded[last:m[0]])
		out.WriteString(resolved)
		last = m[1]
	}
	out.WriteString(expanded[last:])
	return out.String(), nil
}

// ResolveMap resolves every value of input, keyed errors included.
func (r *Resolver) ResolveMap(ctx context.Context, input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		resolved, err := r.ResolveString(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

// ParseSecretRef splits a whole-value secret reference of the form
// secretref:<provider>:<ref>. ok is false for anything else, including
// references with an empty provider or ref part.
func ParseSecretRef(value string) (provider string, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, "secretref:")
	if !found {
		return "", "", false
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

func (r *Resolver) fetch(ctx context.Context, providerName, ref string) (string, error) {
	p, ok := r.providers[providerName]
	if !ok || p == nil {
		return "", fmt.Errorf("%w: %q", ErrProviderNotRegistered, providerName)
	}
	resolved, err := p.Resolve(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("provider %q: %w", providerName, err)
	}
	if r.strict && resolved == "" {
		return "", fmt.Errorf("%w: provider %q", ErrEmptyValue, providerName)
	}
	return resolved, nil
}
