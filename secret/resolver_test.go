package secret

import (
	"context"
	"errors"
	"testing"
)

func TestResolver_ResolveSecret(t *testing.T) {
	r := NewResolver(true, NewStaticProvider("vault", map[string]string{
		"drive/client-secret": "s3cret",
	}))

	v, err := r.ResolveSecret(context.Background(), "secretref:vault:drive/client-secret")
	if err != nil {
		t.Fatalf("ResolveSecret() error = %v", err)
	}
	if v.Reveal() != "s3cret" {
		t.Errorf("Reveal() = %q, want s3cret", v.Reveal())
	}
	if v.String() != Redacted {
		t.Errorf("String() = %q, want redacted", v.String())
	}
}

func TestResolver_PlainValuePassthrough(t *testing.T) {
	r := NewResolver(true)

	got, err := r.ResolveString(context.Background(), "plain-value")
	if err != nil {
		t.Fatalf("ResolveString() error = %v", err)
	}
	if got != "plain-value" {
		t.Errorf("ResolveString() = %q, want plain-value", got)
	}
}

func TestResolver_EnvExpansion(t *testing.T) {
	t.Setenv("APIWARD_TEST_TENANT", "contoso")

	r := NewResolver(true)
	got, err := r.ResolveString(context.Background(), "${APIWARD_TEST_TENANT}.example.com")
	if err != nil {
		t.Fatalf("ResolveString() error = %v", err)
	}
	if got != "contoso.example.com" {
		t.Errorf("ResolveString() = %q", got)
	}
}

func TestResolver_MissingEnvErrors(t *testing.T) {
	r := NewResolver(true)

	if _, err := r.ResolveString(context.Background(), "${APIWARD_DEFINITELY_UNSET}"); err == nil {
		t.Error("missing env var did not error")
	}
}

func TestResolver_UnknownProvider(t *testing.T) {
	r := NewResolver(true)

	_, err := r.ResolveSecret(context.Background(), "secretref:nope:ref")
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("error = %v, want ErrProviderNotRegistered", err)
	}
}

func TestResolver_StrictEmpty(t *testing.T) {
	r := NewResolver(true, NewStaticProvider("vault", map[string]string{"empty": ""}))

	_, err := r.ResolveSecret(context.Background(), "secretref:vault:empty")
	if !errors.Is(err, ErrEmptyValue) {
		t.Errorf("error = %v, want ErrEmptyValue", err)
	}
}

func TestResolver_InlineRefs(t *testing.T) {
	r := NewResolver(true, NewStaticProvider("vault", map[string]string{
		"user": "alice",
		"pass": "pw",
	}))

	got, err := r.ResolveString(context.Background(), "user=secretref:vault:user pass=secretref:vault:pass")
	if err != nil {
		t.Fatalf("ResolveString() error = %v", err)
	}
	if got != "user=alice pass=pw" {
		t.Errorf("ResolveString() = %q", got)
	}
}

func TestParseSecretRef(t *testing.T) {
	tests := []struct {
		value    string
		provider string
		ref      string
		ok       bool
	}{
		{"secretref:vault:path/to/key", "vault", "path/to/key", true},
		{"secretref:vault:", "", "", false},
		{"secretref::ref", "", "", false},
		{"plain", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			provider, ref, ok := ParseSecretRef(tt.value)
			if ok != tt.ok || provider != tt.provider || ref != tt.ref {
				t.Errorf("ParseSecretRef(%q) = %q, %q, %v; want %q, %q, %v",
					tt.value, provider, ref, ok, tt.provider, tt.ref, tt.ok)
			}
		})
	}
}

func TestExpandEnvStrict_EscapedDollar(t *testing.T) {
	got, err := ExpandEnvStrict("pa$$word")
	if err != nil {
		t.Fatalf("ExpandEnvStrict() error = %v", err)
	}
	if got != "pa$word" {
		t.Errorf("ExpandEnvStrict() = %q, want pa$word", got)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register("static", func(cfg map[string]any) (Provider, error) {
		return NewStaticProvider("static", nil), nil
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Duplicate registration fails.
	err = reg.Register("static", func(cfg map[string]any) (Provider, error) { return nil, nil })
	if err == nil {
		t.Error("duplicate Register() did not error")
	}

	p, err := reg.Create("static", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.Name() != "static" {
		t.Errorf("Name() = %q", p.Name())
	}

	if _, err := reg.Create("missing", nil); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("Create(missing) error = %v, want ErrProviderNotRegistered", err)
	}

	names := reg.List()
	if len(names) != 1 || names[0] != "static" {
		t.Errorf("List() = %v", names)
	}
}
