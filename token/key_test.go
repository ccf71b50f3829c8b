package token

import "testing"

func TestNewKey_ScopeOrderInsensitive(t *testing.T) {
	a := NewKey("tenant", "client", "client_credentials", []string{"drive.read", "drive.write"})
	b := NewKey("tenant", "client", "client_credentials", []string{"drive.write", "drive.read"})

	if a.ID() != b.ID() {
		t.Errorf("scope order changed key: %q != %q", a.ID(), b.ID())
	}
	if a != b {
		t.Error("keys with same identity are not equal")
	}
}

func TestNewKey_DuplicateScopesCollapse(t *testing.T) {
	a := NewKey("tenant", "client", "refresh_token", []string{"mail", "mail", "calendar"})
	b := NewKey("tenant", "client", "refresh_token", []string{"calendar", "mail"})

	if a.ID() != b.ID() {
		t.Errorf("duplicate scopes changed key: %q != %q", a.ID(), b.ID())
	}
}

func TestNewKey_DistinctIdentities(t *testing.T) {
	base := NewKey("tenant", "client", "client_credentials", []string{"scope"})

	tests := []struct {
		name string
		key  Key
	}{
		{"different tenant", NewKey("other", "client", "client_credentials", []string{"scope"})},
		{"different client", NewKey("tenant", "other", "client_credentials", []string{"scope"})},
		{"different flow", NewKey("tenant", "client", "certificate", []string{"scope"})},
		{"different scopes", NewKey("tenant", "client", "client_credentials", []string{"other"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.key.ID() == base.ID() {
				t.Error("distinct identity produced same key")
			}
		})
	}
}

func TestCanonicalScopes(t *testing.T) {
	tests := []struct {
		name   string
		scopes []string
		want   string
	}{
		{"empty", nil, ""},
		{"sorted", []string{"b", "a"}, "a b"},
		{"deduped", []string{"a", "a", "b"}, "a b"},
		{"trimmed", []string{" a ", "b"}, "a b"},
		{"blank dropped", []string{"a", "", "b"}, "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalScopes(tt.scopes); got != tt.want {
				t.Errorf("CanonicalScopes() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_StringDoesNotExposeScopes(t *testing.T) {
	k := NewKey("tenant", "client", "client_credentials", []string{"very.secret.scope"})
	if got := k.String(); got != k.ID() {
		t.Errorf("String() = %q, want ID", got)
	}
}
