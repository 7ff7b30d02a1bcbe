// Package source provides the random bytes behind every secret.
//
// A Source prefers a cryptographically secure reader and silently downgrades
// to a pseudo-random stream when that reader is missing or fails. Every
// Buffer it returns carries a Quality tag so callers can detect (and reject)
// the downgrade.
package source

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

var (
	ErrInvalidSize = errors.New("size must be positive")
	// ErrSourceUnavailable marks a tier that is absent or failed to deliver.
	ErrSourceUnavailable = errors.New("random source unavailable")
	ErrReaderFailed      = errors.New("entropy source read failed")
)

// Quality reports how trustworthy the bytes in a Buffer are.
type Quality int

const (
	// QualitySecure means the bytes came from a CSPRNG.
	QualitySecure Quality = iota
	// QualityDegraded means a non-cryptographic generator was used.
	QualityDegraded
)

func (q Quality) String() string {
	switch q {
	case QualitySecure:
		return "secure"
	case QualityDegraded:
		return "degraded"
	default:
		return fmt.Sprintf("quality(%d)", int(q))
	}
}

// Secure reports whether q is suitable for key material.
func (q Quality) Secure() bool { return q == QualitySecure }

// Tier names used as Buffer origins.
const (
	OriginPrimary    = "crypto"
	OriginFallback   = "fallback"
	OriginLastResort = "math/rand"
)

type tier struct {
	name    string
	reader  io.Reader
	quality Quality
}

// Source hands out random bytes from the strongest tier that works.
type Source struct {
	primary  io.Reader
	fallback io.Reader
	log      *zap.Logger
}

// Option customizes a Source.
type Option func(*Source)

// WithReader replaces the secure reader. A nil reader models a platform
// without a secure generator.
func WithReader(r io.Reader) Option {
	return func(s *Source) {
		s.primary = r
	}
}

// WithFallback replaces the pseudo-random reader used when the secure one fails.
func WithFallback(r io.Reader) Option {
	return func(s *Source) {
		s.fallback = r
	}
}

// WithLogger reports downgrades to l.
func WithLogger(l *zap.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a Source backed by crypto/rand.Reader unless overridden.
func New(opts ...Option) *Source {
	s := &Source{
		primary:  rand.Reader,
		fallback: NewPseudoReader(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Read returns n random bytes. Failures of the secure reader are never
// returned; the bytes are produced by a weaker tier and tagged as degraded.
// The only errors are an invalid size and a done context.
func (s *Source) Read(ctx context.Context, n int) (*Buffer, error) {
	if n <= 0 {
		return nil, ErrInvalidSize
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := newBuffer(n)
	tiers := []tier{
		{name: OriginPrimary, reader: s.primary, quality: QualitySecure},
		{name: OriginFallback, reader: s.fallback, quality: QualityDegraded},
	}
	for _, t := range tiers {
		err := readFull(t.reader, buf.data)
		if err == nil {
			buf.quality = t.quality
			buf.origin = t.name
			return buf, nil
		}
		s.log.Warn("random source tier failed, downgrading",
			zap.String("tier", t.name),
			zap.Int("bytes", n),
			zap.Error(err))
	}

	lastResort(buf.data)
	buf.quality = QualityDegraded
	buf.origin = OriginLastResort
	return buf, nil
}

// readFull reads exactly len(buf) bytes. Anything short of that is a tier failure.
func readFull(r io.Reader, buf []byte) error {
	if r == nil {
		return fmt.Errorf("%w: no reader configured", ErrSourceUnavailable)
	}
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, ErrReaderFailed)
	}
	return nil
}
