package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// KeyKind distinguishes textual and numeric primary keys
type KeyKind uint8

const (
	KeyInvalid KeyKind = iota
	KeyString
	KeyNumber
)

// Key is a record's primary key. A string key and a number key are never
// equal, even when they render the same ("5" vs 5).
type Key struct {
	kind KeyKind
	str  string
	num  float64
}

// StringKey returns a textual key.
func StringKey(s string) Key {
	return Key{kind: KeyString, str: s}
}

// NumberKey returns a numeric key.
func NumberKey(n float64) Key {
	return Key{kind: KeyNumber, num: n}
}

func (k Key) Kind() KeyKind   { return k.kind }
func (k Key) Valid() bool     { return k.kind != KeyInvalid }
func (k Key) IsString() bool  { return k.kind == KeyString }
func (k Key) IsNumber() bool  { return k.kind == KeyNumber }
func (k Key) Text() string    { return k.str }
func (k Key) Number() float64 { return k.num }

// String renders the key for logs: numbers bare, strings quoted.
func (k Key) String() string {
	switch k.kind {
	case KeyString:
		return strconv.Quote(k.str)
	case KeyNumber:
		return formatNumber(k.num)
	default:
		return "<invalid>"
	}
}

// NumericEquivalent returns the numeric key for a textual key whose text is
// exactly the canonical rendering of a finite number ("42" yes; "042",
// "4.20", "1e3" and " 5" no).
func (k Key) NumericEquivalent() (Key, bool) {
	if k.kind != KeyString || k.str == "" {
		return Key{}, false
	}
	n, err := strconv.ParseFloat(k.str, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return Key{}, false
	}
	if formatNumber(n) != k.str {
		return Key{}, false
	}
	return NumberKey(n), true
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// MarshalJSON encodes strings as JSON strings and numbers as JSON numbers.
func (k Key) MarshalJSON() ([]byte, error) {
	switch k.kind {
	case KeyString:
		return json.Marshal(k.str)
	case KeyNumber:
		if math.IsInf(k.num, 0) || math.IsNaN(k.num) {
			return nil, fmt.Errorf("%w: non-finite number", ErrInvalidKey)
		}
		return []byte(formatNumber(k.num)), nil
	default:
		return nil, ErrInvalidKey
	}
}

// UnmarshalJSON accepts a JSON string or number.
func (k *Key) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ErrInvalidKey
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		*k = StringKey(s)
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidKey, data)
	}
	*k = NumberKey(n)
	return nil
}
