package core

import (
	"strings"

	"github.com/tidwall/gjson"
)

// FirstTextField returns the first non-empty string value among the given
// candidate keys of a JSON payload, preserving the caller's priority
// order. When the payload is not valid JSON, or none of the keys is
// present, the verbatim payload is returned so malformed data degrades to
// raw text instead of failing.
func FirstTextField(payload string, keys ...string) string {
	trimmed := strings.TrimSpace(payload)
	if !gjson.Valid(trimmed) {
		return payload
	}
	parsed := gjson.Parse(trimmed)
	if parsed.Type == gjson.String {
		return parsed.String()
	}
	if !parsed.IsObject() {
		return payload
	}
	for _, key := range keys {
		if field := parsed.Get(key); field.Exists() && field.String() != "" {
			return field.String()
		}
	}
	return payload
}
