// Package secret holds the encoded form of generated secrets.
package secret

import (
	"encoding/hex"

	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/blake2b"

	"github.com/oarkflow/authsecret/source"
)

const redacted = "[REDACTED]"

// Secret is an ephemeral hex secret. The zero value means "no secret yet".
// String and log marshaling never reveal the value; use Value to display it.
type Secret struct {
	value     string
	byteCount int
	quality   source.Quality
}

// FromBuffer encodes buf and wipes it. buf must not be used afterwards.
func FromBuffer(buf *source.Buffer) Secret {
	s := Secret{
		value:     Encode(buf.Bytes()),
		byteCount: buf.Len(),
		quality:   buf.Quality(),
	}
	buf.Wipe()
	return s
}

// Parse wraps an existing canonical hex string. Its quality is unknown, so
// it is reported as degraded.
func Parse(s string) (Secret, error) {
	raw, err := Decode(s)
	if err != nil {
		return Secret{}, err
	}
	n := len(raw)
	clear(raw)
	return Secret{value: s, byteCount: n, quality: source.QualityDegraded}, nil
}

func (s Secret) Value() string           { return s.value }
func (s Secret) Len() int                { return len(s.value) }
func (s Secret) ByteCount() int          { return s.byteCount }
func (s Secret) Quality() source.Quality { return s.quality }
func (s Secret) IsZero() bool            { return s.value == "" }

// Equal compares two secrets by value.
func (s Secret) Equal(o Secret) bool { return s.value == o.value }

// Fingerprint is a short BLAKE2b digest of the value, safe to log or show
// next to the secret so two copies can be compared without revealing either.
func (s Secret) Fingerprint() string {
	if s.IsZero() {
		return ""
	}
	sum := blake2b.Sum256([]byte(s.value))
	return hex.EncodeToString(sum[:8])
}

func (s Secret) String() string {
	if s.IsZero() {
		return ""
	}
	return redacted
}

// GoString keeps %#v from printing the value either.
func (s Secret) GoString() string {
	return "secret.Secret{" + s.String() + "}"
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s Secret) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("bytes", s.byteCount)
	enc.AddString("quality", s.quality.String())
	enc.AddString("fingerprint", s.Fingerprint())
	return nil
}
