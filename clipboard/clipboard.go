// Package clipboard copies secrets to the system clipboard, falling back to
// an OSC 52 terminal escape sequence when no clipboard utility is usable.
package clipboard

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrUnavailable means the capability is absent on this platform.
	ErrUnavailable = errors.New("clipboard unavailable")
	// ErrDenied means the capability exists but refused the write.
	ErrDenied = errors.New("clipboard access denied")
)

// Writer places text on a clipboard.
type Writer interface {
	WriteText(ctx context.Context, text string) error
}

// Method tells which path completed a copy.
type Method int

const (
	MethodNone Method = iota
	MethodSystem
	MethodTerminal
)

func (m Method) String() string {
	switch m {
	case MethodSystem:
		return "system"
	case MethodTerminal:
		return "terminal"
	default:
		return "none"
	}
}

// Copier tries a primary writer and delegates to a fallback when the primary
// reports ErrUnavailable or ErrDenied. Other errors are returned as is.
type Copier struct {
	primary  Writer
	fallback Writer
	log      *zap.Logger
}

// CopierOption customizes a Copier.
type CopierOption func(*Copier)

// WithLogger reports clipboard failures to l.
func WithLogger(l *zap.Logger) CopierOption {
	return func(c *Copier) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCopier builds a Copier. Either writer may be nil, which counts as unavailable.
func NewCopier(primary, fallback Writer, opts ...CopierOption) *Copier {
	c := &Copier{primary: primary, fallback: fallback, log: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Copy writes text through the first path that accepts it.
func (c *Copier) Copy(ctx context.Context, text string) (Method, error) {
	err := write(ctx, c.primary, text)
	if err == nil {
		return MethodSystem, nil
	}
	if !recoverable(err) {
		return MethodNone, err
	}
	c.log.Debug("system clipboard failed, trying terminal fallback", zap.Error(err))

	ferr := write(ctx, c.fallback, text)
	if ferr == nil {
		return MethodTerminal, nil
	}
	joined := errors.Join(err, ferr)
	if recoverable(ferr) {
		c.log.Warn("failed to copy to clipboard", zap.Error(joined))
	}
	return MethodNone, joined
}

func write(ctx context.Context, w Writer, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w == nil {
		return fmt.Errorf("%w: no writer configured", ErrUnavailable)
	}
	return w.WriteText(ctx, text)
}

func recoverable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrDenied)
}
