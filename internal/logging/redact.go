package logging

import (
	"regexp"
	"strings"
)

// RedactionMarker replaces every detected sensitive value before a record
// is serialized. No raw sensitive value ever reaches the sink.
const RedactionMarker = "[REDACTED]"

// sensitiveKeyPatterns match metadata key names whose values are always
// redacted regardless of the value's type or shape.
var sensitiveKeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)password`),
	regexp.MustCompile(`(?i)token`),
	regexp.MustCompile(`(?i)api[_-]?key`),
	regexp.MustCompile(`(?i)secret`),
	regexp.MustCompile(`(?i)authorization`),
	regexp.MustCompile(`(?i)cookie`),
	regexp.MustCompile(`(?i)credit[_-]?card`),
	regexp.MustCompile(`(?i)\bssn\b`),
	regexp.MustCompile(`(?i)\bcvv\b`),
}

// sensitiveValuePatterns match string values that look like credentials
// even under an innocuous key name. Only strings of at least 8 characters
// are inspected.
var sensitiveValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^bearer\s+\S+$`),        // bearer tokens
	regexp.MustCompile(`^[a-f0-9]{32,}$`),           // hex digests
	regexp.MustCompile(`^[A-Za-z0-9+/]{20,}={0,2}$`), // base64 blocks
	regexp.MustCompile(`^sk_[A-Za-z0-9]{8,}`),       // vendor secret keys
	regexp.MustCompile(`^[A-Z0-9]{20,}$`),           // long uppercase keys
}

// SensitiveKey reports whether a metadata key name marks its value as
// sensitive.
func SensitiveKey(key string) bool {
	for _, p := range sensitiveKeyPatterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

// SensitiveValue reports whether a string value has a credential shape.
// Public-key-shaped values (pk_ prefix) are exempt: they are not secrets.
func SensitiveValue(v string) bool {
	if len(v) < 8 {
		return false
	}
	if strings.HasPrefix(v, "pk_") {
		return false
	}
	for _, p := range sensitiveValuePatterns {
		if p.MatchString(v) {
			return true
		}
	}
	return false
}

// Redact returns a deep copy of the metadata tree with every sensitive
// key/value pair replaced by the redaction marker. Mappings nested inside
// mappings and sequences are walked recursively. The key "fingerprint" is
// never redacted: it is an opaque grouping hash, not a secret.
func Redact(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = redactValue(k, v)
	}
	return out
}

func redactValue(key string, v any) any {
	if key == "fingerprint" {
		return v
	}
	if SensitiveKey(key) {
		return RedactionMarker
	}
	switch val := v.(type) {
	case string:
		if SensitiveValue(val) {
			return RedactionMarker
		}
		return val
	case map[string]any:
		return Redact(val)
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, s := range val {
			out[k] = redactValue(k, s)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			// Sequence items have no key of their own; only the value
			// shape and nested mappings are inspected.
			out[i] = redactValue("", item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = redactValue("", s)
		}
		return out
	default:
		return v
	}
}
