package store

import (
	"fmt"
	"strconv"

	"github.com/mmcdole/marquee/internal/domain"
)

// Keys carry a one-byte type tag so "5" and 5 occupy different slots.
const (
	tagNumber = 'n'
	tagString = 's'
)

func encodeKey(k domain.Key) ([]byte, error) {
	switch k.Kind() {
	case domain.KeyNumber:
		n := k.Number()
		if n == 0 {
			n = 0 // fold -0
		}
		return append([]byte{tagNumber}, strconv.FormatFloat(n, 'g', -1, 64)...), nil
	case domain.KeyString:
		return append([]byte{tagString}, k.Text()...), nil
	default:
		return nil, domain.ErrInvalidKey
	}
}

func decodeKey(b []byte) (domain.Key, error) {
	if len(b) == 0 {
		return domain.Key{}, domain.ErrInvalidKey
	}
	switch b[0] {
	case tagNumber:
		n, err := strconv.ParseFloat(string(b[1:]), 64)
		if err != nil {
			return domain.Key{}, fmt.Errorf("%w: %v", domain.ErrInvalidKey, err)
		}
		return domain.NumberKey(n), nil
	case tagString:
		return domain.StringKey(string(b[1:])), nil
	default:
		return domain.Key{}, fmt.Errorf("%w: unknown tag %q", domain.ErrInvalidKey, b[0])
	}
}
