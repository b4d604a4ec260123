package card

import (
	"fmt"
	"strconv"
	"strings"
)

// tokenName returns the canonical name for v, or a numeric placeholder when
// v is outside the table.
func tokenName(names []string, v uint8) string {
	if int(v) < len(names) {
		return names[v]
	}
	return "UNKNOWN(" + strconv.Itoa(int(v)) + ")"
}

func marshalToken(kind string, names []string, v uint8) ([]byte, error) {
	if int(v) >= len(names) {
		return nil, fmt.Errorf("%w: %s %d", ErrUnknownToken, kind, v)
	}
	return []byte(names[v]), nil
}

// unmarshalToken matches b case-insensitively against names.
func unmarshalToken(kind string, names []string, b []byte, dst *uint8) error {
	s := strings.ToUpper(strings.TrimSpace(string(b)))
	for i, n := range names {
		if n == s {
			*dst = uint8(i) //nolint:gosec // table length is far below 256
			return nil
		}
	}
	return fmt.Errorf("%w: %s %q", ErrUnknownToken, kind, string(b))
}
