package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EncodeJSON renders v pretty-printed with two-space indentation and a
// trailing newline. HTML characters are kept verbatim since chapter content
// is HTML.
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON encodes v and writes it atomically to path.
func WriteJSON(p Provider, path string, v any) error {
	data, err := EncodeJSON(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", path, err)
	}
	return p.Write(path, data)
}
