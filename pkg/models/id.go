package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// legacyKeyLen is the length of the hex storage keys written by the previous
// store, which truncated UUIDs to their first 24 hex digits.
const legacyKeyLen = 24

// IdentifierConversionError reports an identifier that cannot be turned into a
// canonical node ID.
type IdentifierConversionError struct {
	ID  string
	Err error
}

func (e *IdentifierConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid node id %q: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("invalid node id %q", e.ID)
}

func (e *IdentifierConversionError) Unwrap() error {
	return e.Err
}

// NewID mints a canonical node identifier.
func NewID() string {
	return uuid.NewString()
}

// CanonicalID normalizes id to the lowercase hyphenated UUID form.
//
// Besides regular UUID spellings it accepts 24-hex legacy keys, which are
// right-padded with zero hex digits to a full UUID. Anything else yields an
// *IdentifierConversionError.
func CanonicalID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", &IdentifierConversionError{ID: id, Err: fmt.Errorf("empty")}
	}
	if len(id) == legacyKeyLen && isHex(id) {
		id += strings.Repeat("0", 32-legacyKeyLen)
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return "", &IdentifierConversionError{ID: id, Err: err}
	}
	return u.String(), nil
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
