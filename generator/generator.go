// Package generator owns the generation state: the selected length, the
// current secret and the transient generating/copied flags.
//
// Generate and Copy may overlap. Each call takes a sequence number when it
// starts and only applies its result if no newer call of the same kind has
// started since (last request wins, regardless of completion order).
package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oarkflow/authsecret"
	"github.com/oarkflow/authsecret/clipboard"
	"github.com/oarkflow/authsecret/secret"
	"github.com/oarkflow/authsecret/source"
)

const (
	// DefaultMinDuration keeps the generating state visible for a moment.
	DefaultMinDuration = 200 * time.Millisecond
	// DefaultCopyWindow is how long a copy stays confirmed.
	DefaultCopyWindow = 2 * time.Second
)

var (
	// ErrSuperseded is returned by a Generate call whose result was discarded
	// because a newer Generate started before it finished.
	ErrSuperseded = errors.New("generation superseded by a newer request")
	ErrClosed     = errors.New("generator closed")
)

// RandomSource is satisfied by *source.Source.
type RandomSource interface {
	Read(ctx context.Context, n int) (*source.Buffer, error)
}

// Copier is satisfied by *clipboard.Copier.
type Copier interface {
	Copy(ctx context.Context, text string) (clipboard.Method, error)
}

// State is a snapshot of the generator.
type State struct {
	Current    secret.Secret
	Selected   authsecret.LengthOption
	Generating bool
	Copying    bool
	Copied     bool
}

// Generator drives secret generation and clipboard copies.
type Generator struct {
	src   RandomSource
	clip  Copier
	clock Clock
	log   *zap.Logger

	presets     []authsecret.LengthOption
	minDuration time.Duration
	copyWindow  time.Duration
	observer    func(State)

	mu       sync.Mutex
	state    State
	genSeq   uint64
	copySeq  uint64
	resetSeq uint64
	reset    Timer
	closed   bool
}

// Option customizes a Generator.
type Option func(*Generator)

// WithPresets restricts the selectable lengths. The first preset is selected initially.
func WithPresets(presets []authsecret.LengthOption) Option {
	return func(g *Generator) {
		if len(presets) > 0 {
			g.presets = append([]authsecret.LengthOption(nil), presets...)
		}
	}
}

// WithInitial selects opt instead of the first preset.
func WithInitial(opt authsecret.LengthOption) Option {
	return func(g *Generator) {
		g.state.Selected = opt
	}
}

func WithClock(c Clock) Option {
	return func(g *Generator) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithMinDuration sets how long Generate stays in the generating state at
// minimum. Zero disables pacing.
func WithMinDuration(d time.Duration) Option {
	return func(g *Generator) {
		g.minDuration = d
	}
}

func WithCopyWindow(d time.Duration) Option {
	return func(g *Generator) {
		g.copyWindow = d
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.log = l
		}
	}
}

// WithObserver registers fn to receive every state change. fn runs while the
// generator is locked, so it sees changes in order and must not call back
// into the generator.
func WithObserver(fn func(State)) Option {
	return func(g *Generator) {
		g.observer = fn
	}
}

// New creates a Generator. Options are applied in order; an initial
// selection that is not one of the presets falls back to the first preset.
func New(src RandomSource, clip Copier, opts ...Option) *Generator {
	g := &Generator{
		src:         src,
		clip:        clip,
		clock:       RealClock{},
		log:         zap.NewNop(),
		presets:     authsecret.Presets,
		minDuration: DefaultMinDuration,
		copyWindow:  DefaultCopyWindow,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	if sel, err := authsecret.Lookup(g.presets, g.state.Selected.Bytes); err == nil {
		g.state.Selected = sel
	} else {
		g.state.Selected = g.presets[0]
	}
	return g
}

// State returns a snapshot of the current state.
func (g *Generator) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Presets lists the selectable lengths in order.
func (g *Generator) Presets() []authsecret.LengthOption {
	return append([]authsecret.LengthOption(nil), g.presets...)
}

// SelectLength changes the selected length. It does not generate.
func (g *Generator) SelectLength(opt authsecret.LengthOption) error {
	return g.SelectBytes(opt.Bytes)
}

// SelectBytes selects the preset with n bytes.
func (g *Generator) SelectBytes(n int) error {
	sel, err := authsecret.Lookup(g.presets, n)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if g.state.Selected != sel {
		g.state.Selected = sel
		g.changed()
	}
	return nil
}

// Generate produces a fresh secret of the selected length and makes it the
// current one. A failure after a previous success keeps the previous secret.
func (g *Generator) Generate(ctx context.Context) (secret.Secret, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return secret.Secret{}, ErrClosed
	}
	g.genSeq++
	seq := g.genSeq
	n := g.state.Selected.Bytes
	g.state.Generating = true
	g.changed()
	g.mu.Unlock()

	paced := g.pace()
	buf, err := g.src.Read(ctx, n)
	if err == nil {
		err = paced.wait(ctx)
		if err != nil {
			buf.Wipe()
		}
	} else {
		paced.stop()
	}
	if err != nil {
		g.abandon(seq)
		return secret.Secret{}, fmt.Errorf("generate %d-byte secret: %w", n, err)
	}
	s := secret.FromBuffer(buf)

	g.mu.Lock()
	defer g.mu.Unlock()
	if seq != g.genSeq || g.closed {
		g.log.Debug("discarding superseded secret", zap.Uint64("request", seq), zap.Uint64("latest", g.genSeq))
		return secret.Secret{}, ErrSuperseded
	}
	g.state.Current = s
	g.state.Generating = false
	g.changed()
	if !s.Quality().Secure() {
		g.log.Warn("secret generated from a degraded random source", zap.Object("secret", s))
	} else {
		g.log.Debug("secret generated", zap.Uint64("request", seq), zap.Object("secret", s))
	}
	return s, nil
}

// abandon clears the generating flag if seq is still the latest request.
func (g *Generator) abandon(seq uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if seq == g.genSeq && g.state.Generating {
		g.state.Generating = false
		g.changed()
	}
}

// Copy puts the current secret on the clipboard. It is a no-op without a
// secret. On success the copied flag is raised for the copy window; a second
// copy inside the window restarts it. Failures leave the flag untouched and
// are returned for reporting only.
func (g *Generator) Copy(ctx context.Context) (clipboard.Method, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return clipboard.MethodNone, ErrClosed
	}
	cur := g.state.Current
	if cur.IsZero() {
		g.mu.Unlock()
		return clipboard.MethodNone, nil
	}
	g.copySeq++
	seq := g.copySeq
	g.state.Copying = true
	g.changed()
	g.mu.Unlock()

	method, err := g.clip.Copy(ctx, cur.Value())

	g.mu.Lock()
	defer g.mu.Unlock()
	latest := seq == g.copySeq && !g.closed
	if latest {
		g.state.Copying = false
	}
	if err != nil {
		if latest {
			g.changed()
		}
		g.log.Warn("failed to copy secret", zap.Object("secret", cur), zap.Error(err))
		return clipboard.MethodNone, err
	}
	if latest {
		g.state.Copied = true
		g.armReset()
		g.changed()
	}
	g.log.Debug("secret copied", zap.Stringer("method", method), zap.Object("secret", cur))
	return method, nil
}

// armReset replaces any pending reset with a fresh one. Caller holds g.mu.
func (g *Generator) armReset() {
	if g.reset != nil {
		g.reset.Stop()
	}
	g.resetSeq++
	seq := g.resetSeq
	g.reset = g.clock.AfterFunc(g.copyWindow, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if seq != g.resetSeq || g.closed {
			return
		}
		g.reset = nil
		g.state.Copied = false
		g.changed()
	})
}

// Close stops pending timers and discards the current secret.
func (g *Generator) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	if g.reset != nil {
		g.reset.Stop()
		g.reset = nil
	}
	g.state = State{Selected: g.state.Selected}
}

// changed notifies the observer. Caller holds g.mu.
func (g *Generator) changed() {
	if g.observer != nil {
		g.observer(g.state)
	}
}

type pacer struct {
	done  chan struct{}
	timer Timer
}

// pace starts the minimum-duration timer for one generation.
func (g *Generator) pace() *pacer {
	if g.minDuration <= 0 {
		return nil
	}
	p := &pacer{done: make(chan struct{})}
	p.timer = g.clock.AfterFunc(g.minDuration, func() { close(p.done) })
	return p
}

func (p *pacer) wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.timer.Stop()
		return ctx.Err()
	}
}

func (p *pacer) stop() {
	if p != nil {
		p.timer.Stop()
	}
}
