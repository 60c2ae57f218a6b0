package analysis

import (
	"encoding/json"
	"fmt"
)

// ToDocument converts a typed stage result into a Document through its JSON
// encoding, so in-memory payloads look exactly like ones read back from the
// store (numbers become float64, nested objects become maps).
func ToDocument(v any) (Document, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// Decode unmarshals the document into target.
func (d Document) Decode(target any) error {
	encoded, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(encoded, target); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Float returns a numeric field regardless of how it was produced.
func (d Document) Float(key string) (float64, bool) {
	switch v := d[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// String returns a string field.
func (d Document) String(key string) (string, bool) {
	v, ok := d[key].(string)
	return v, ok
}

// Object returns a nested object field.
func (d Document) Object(key string) (Document, bool) {
	switch v := d[key].(type) {
	case map[string]any:
		return Document(v), true
	case Document:
		return v, true
	default:
		return nil, false
	}
}
