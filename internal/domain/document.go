package domain

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Document is one stored record. Field values are kept as the raw JSON they
// were stored with so copies made during a rescue are byte-for-byte faithful.
type Document map[string]json.RawMessage

// DecodeDocument parses a JSON object.
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("record is not an object")
	}
	return doc, nil
}

// Key extracts the primary key stored under keyPath.
func (d Document) Key(keyPath string) (Key, error) {
	raw, ok := d[keyPath]
	if !ok {
		return Key{}, fmt.Errorf("%w: field %q missing", ErrInvalidKey, keyPath)
	}
	var k Key
	if err := k.UnmarshalJSON(raw); err != nil {
		return Key{}, err
	}
	return k, nil
}

// WithKey returns a copy with keyPath replaced by k.
func (d Document) WithKey(keyPath string, k Key) (Document, error) {
	raw, err := k.MarshalJSON()
	if err != nil {
		return nil, err
	}
	out := d.Clone()
	out[keyPath] = raw
	return out, nil
}

// Clone returns a shallow copy; raw field bytes are shared but never mutated.
func (d Document) Clone() Document {
	if d == nil {
		return Document{}
	}
	return maps.Clone(d)
}

// Field decodes a single field into dest. Reports false when the field is
// absent or null.
func (d Document) Field(name string, dest any) (bool, error) {
	raw, ok := d[name]
	if !ok || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return true, fmt.Errorf("field %q: %w", name, err)
	}
	return true, nil
}

// Encode marshals the document as a JSON object.
func (d Document) Encode() ([]byte, error) {
	return json.Marshal(map[string]json.RawMessage(d))
}
