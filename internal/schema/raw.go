// Package schema decodes on-disk documents of any historical shape into the
// current typed models. Decoding is two-phase: bytes are parsed into a raw
// map, then pure functions migrate and default that map into a fully
// populated value. Every load boundary goes through this package.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNotObject is returned when a document is valid JSON but not an object.
var ErrNotObject = errors.New("schema: document is not a JSON object")

// Raw is a loosely typed JSON object. Accessors never fail; a missing or
// mistyped field yields the supplied default.
type Raw map[string]any

// ParseObject decodes data into a Raw object.
func ParseObject(data []byte) (Raw, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("schema: parse: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return Raw(obj), nil
}

// Has reports whether key is present, even if null.
func (r Raw) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Str returns a string field or def.
func (r Raw) Str(key, def string) string {
	if s, ok := r[key].(string); ok {
		return s
	}
	return def
}

// NonEmptyStr returns a trimmed non-empty string field or def.
func (r Raw) NonEmptyStr(key, def string) string {
	if s := strings.TrimSpace(r.Str(key, "")); s != "" {
		return s
	}
	return def
}

// Num returns a finite numeric field or def.
func (r Raw) Num(key string, def float64) float64 {
	if f, ok := asNumber(r[key]); ok {
		return f
	}
	return def
}

// Int returns an integral numeric field or def.
func (r Raw) Int(key string, def int) int {
	f, ok := asNumber(r[key])
	if !ok || f != math.Trunc(f) {
		return def
	}
	return int(f)
}

// Bool returns a boolean field or def.
func (r Raw) Bool(key string, def bool) bool {
	if b, ok := r[key].(bool); ok {
		return b
	}
	return def
}

// Object returns a nested object, or an empty Raw.
func (r Raw) Object(key string) Raw {
	if m, ok := r[key].(map[string]any); ok {
		return Raw(m)
	}
	return Raw{}
}

// Array returns a nested array, or nil.
func (r Raw) Array(key string) []any {
	if a, ok := r[key].([]any); ok {
		return a
	}
	return nil
}

// Strings returns the string elements of an array field, skipping
// elements of other types.
func (r Raw) Strings(key string) []string {
	var out []string
	for _, v := range r.Array(key) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		// Legacy documents stored some numbers as strings.
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// idString renders a chapter id found in a raw document. Numeric ids from
// legacy documents are zero-padded to two digits.
func idString(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case float64:
		if id != math.Trunc(id) || id < 0 {
			return "", false
		}
		return fmt.Sprintf("%02d", int(id)), true
	}
	return "", false
}
