package logging

import "strings"

// RedactionMarker replaces sensitive values in emitted records.
const RedactionMarker = "[REDACTED]"

// DefaultRedactKeys are always redacted, on top of any configured paths.
var DefaultRedactKeys = []string{
	"password",
	"token",
	"authorization",
	"secret",
	"api_key",
	"cookie",
}

// redactor replaces sensitive field values in place. Key matching is
// case-insensitive and applies at every nesting depth, so a configured key
// also covers the same field inside metadata sub-objects.
type redactor struct {
	keys map[string]bool
}

func newRedactor(configured []string) *redactor {
	keys := make(map[string]bool, len(DefaultRedactKeys)+len(configured))
	for _, k := range DefaultRedactKeys {
		keys[strings.ToLower(k)] = true
	}
	for _, k := range configured {
		keys[strings.ToLower(k)] = true
	}
	return &redactor{keys: keys}
}

// apply replaces matching values in fields, descending into nested maps.
// Values are replaced, never removed. Nested maps are copied before
// replacement so caller-owned metadata is never mutated.
func (r *redactor) apply(fields map[string]any) {
	for k, v := range fields {
		if r.keys[strings.ToLower(k)] {
			fields[k] = RedactionMarker
			continue
		}
		if nested := asMap(v); nested != nil {
			cp := make(map[string]any, len(nested))
			for nk, nv := range nested {
				cp[nk] = nv
			}
			r.apply(cp)
			fields[k] = cp
		}
	}
}

// asMap unifies the map shapes metadata arrives in: plain maps and the
// package's own Fields type both descend.
func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case Fields:
		return m
	default:
		return nil
	}
}
