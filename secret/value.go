package secret

import "sync"

// Redacted is the marker emitted wherever a Value would otherwise leak.
const Redacted = "[REDACTED]"

// Value holds a sensitive string. All default conversions are redacted; the
// wrapped value is only reachable through Reveal.
//
// A nil *Value is treated as empty.
type Value struct {
	mu sync.Mutex
	b  []byte
}

// New wraps s as a secret value.
func New(s string) *Value {
	return &Value{b: []byte(s)}
}

// Reveal returns the wrapped value. Returns "" after Scrub.
func (v *Value) Reveal() string {
	if v == nil {
		return ""
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return string(v.b)
}

// Empty reports whether the value is absent or scrubbed.
func (v *Value) Empty() bool {
	if v == nil {
		return true
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.b) == 0
}

// Scrub zeroes the wrapped bytes. Idempotent.
func (v *Value) Scrub() {
	if v == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.b {
		v.b[i] = 0
	}
	v.b = v.b[:0]
}

// String implements fmt.Stringer. Always redacted.
func (v *Value) String() string { return Redacted }

// GoString implements fmt.GoStringer so %#v stays redacted too.
func (v *Value) GoString() string { return "secret.Value(" + Redacted + ")" }

// MarshalText implements encoding.TextMarshaler. Always redacted.
func (v *Value) MarshalText() ([]byte, error) { return []byte(Redacted), nil }

// MarshalJSON implements json.Marshaler. Always redacted.
func (v *Value) MarshalJSON() ([]byte, error) { return []byte(`"` + Redacted + `"`), nil }
