package secret

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrMalformed is returned for strings that are not canonical lowercase hex.
var ErrMalformed = errors.New("secret is not lowercase hexadecimal")

// Encode renders b as lowercase hex, two digits per byte, in byte order.
// The output has exactly 2*len(b) characters, the same form `openssl rand -hex N` prints.
func Encode(b []byte) string {
	return hex.EncodeToString(b)
}

// Decode is the inverse of Encode. Upper-case digits are rejected so that
// Decode followed by Encode always reproduces the input.
func Decode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d", ErrMalformed, len(s))
	}
	for i := 0; i < len(s); i++ {
		if !isLowerHex(s[i]) {
			return nil, fmt.Errorf("%w: invalid character %q at offset %d", ErrMalformed, s[i], i)
		}
	}
	return hex.DecodeString(s)
}

// Validate checks that s is a canonical secret of byteCount random bytes.
func Validate(s string, byteCount int) error {
	if byteCount <= 0 {
		return fmt.Errorf("%w: byte count must be positive", ErrMalformed)
	}
	if len(s) != 2*byteCount {
		return fmt.Errorf("%w: got %d characters, want %d", ErrMalformed, len(s), 2*byteCount)
	}
	_, err := Decode(s)
	return err
}

func isLowerHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f')
}
