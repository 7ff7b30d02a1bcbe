package secret

import (
	"errors"
	"fmt"

	"github.com/oarkflow/shamir"
)

var ErrInvalidShares = errors.New("invalid share configuration")

// Split cuts the raw bytes of s into parts Shamir shares, any threshold of
// which recombine into s. Shares are returned hex-encoded for display.
func Split(s Secret, parts, threshold int) ([]string, error) {
	if s.IsZero() {
		return nil, fmt.Errorf("%w: no secret to split", ErrInvalidShares)
	}
	if threshold < 2 || parts < threshold || parts > 255 {
		return nil, fmt.Errorf("%w: need 2 <= threshold (%d) <= parts (%d) <= 255", ErrInvalidShares, threshold, parts)
	}
	raw, err := Decode(s.value)
	if err != nil {
		return nil, err
	}
	defer clear(raw)

	// shamir takes the threshold before the share count.
	shares, err := shamir.Split(raw, threshold, parts)
	if err != nil {
		return nil, fmt.Errorf("split secret: %w", err)
	}
	out := make([]string, len(shares))
	for i, sh := range shares {
		out[i] = Encode(sh)
		clear(sh)
	}
	return out, nil
}

// Combine rebuilds a secret from hex-encoded shares produced by Split.
func Combine(shares []string) (Secret, error) {
	if len(shares) < 2 {
		return Secret{}, fmt.Errorf("%w: at least two shares are required", ErrInvalidShares)
	}
	raw := make([][]byte, len(shares))
	for i, sh := range shares {
		b, err := Decode(sh)
		if err != nil {
			return Secret{}, fmt.Errorf("share %d: %w", i+1, err)
		}
		raw[i] = b
	}
	out, err := shamir.Combine(raw)
	if err != nil {
		return Secret{}, fmt.Errorf("combine shares: %w", err)
	}
	defer clear(out)
	return Parse(Encode(out))
}
