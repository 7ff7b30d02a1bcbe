package generator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oarkflow/authsecret"
	"github.com/oarkflow/authsecret/clipboard"
	"github.com/oarkflow/authsecret/secret"
	"github.com/oarkflow/authsecret/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubCopier struct {
	mu    sync.Mutex
	err   error
	texts []string
}

func (s *stubCopier) Copy(_ context.Context, text string) (clipboard.Method, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return clipboard.MethodNone, s.err
	}
	s.texts = append(s.texts, text)
	return clipboard.MethodSystem, nil
}

func (s *stubCopier) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.texts)
}

// gatedSource blocks the i-th Read on gates[i] when that gate is non-nil.
type gatedSource struct {
	mu      sync.Mutex
	calls   int
	gates   []chan struct{}
	entered chan int
	inner   *source.Source
}

func (g *gatedSource) Read(ctx context.Context, n int) (*source.Buffer, error) {
	g.mu.Lock()
	i := g.calls
	g.calls++
	var gate chan struct{}
	if i < len(g.gates) {
		gate = g.gates[i]
	}
	g.mu.Unlock()
	g.entered <- i
	if gate != nil {
		<-gate
	}
	return g.inner.Read(ctx, n)
}

func newTestGenerator(opts ...Option) (*Generator, *stubCopier, *fakeClock) {
	clip := &stubCopier{}
	clock := newFakeClock()
	base := []Option{WithClock(clock), WithMinDuration(0)}
	g := New(source.New(), clip, append(base, opts...)...)
	return g, clip, clock
}

func TestInitialState(t *testing.T) {
	g, _, _ := newTestGenerator()
	st := g.State()
	assert.True(t, st.Current.IsZero())
	assert.Equal(t, authsecret.DefaultPreset(), st.Selected)
	assert.False(t, st.Generating)
	assert.False(t, st.Copying)
	assert.False(t, st.Copied)
}

func TestInitialSelection(t *testing.T) {
	opt, err := authsecret.PresetFor(64)
	require.NoError(t, err)
	g, _, _ := newTestGenerator(WithInitial(opt))
	assert.Equal(t, 64, g.State().Selected.Bytes)

	g, _, _ = newTestGenerator(WithInitial(authsecret.LengthOption{Bytes: 7}))
	assert.Equal(t, authsecret.DefaultPreset(), g.State().Selected)
}

func TestGenerateProducesHexOfSelectedLength(t *testing.T) {
	g, _, _ := newTestGenerator()
	for _, p := range authsecret.Presets {
		require.NoError(t, g.SelectLength(p))
		s, err := g.Generate(context.Background())
		require.NoError(t, err)

		re := regexp.MustCompile(fmt.Sprintf("^[0-9a-f]{%d}$", 2*p.Bytes))
		assert.Regexp(t, re, s.Value())
		assert.Equal(t, s.Value(), g.State().Current.Value())
		assert.True(t, s.Quality().Secure())
	}
}

func TestGenerateChangesLengthWithSelection(t *testing.T) {
	g, _, _ := newTestGenerator()
	_, err := g.Generate(context.Background())
	require.NoError(t, err)
	require.Equal(t, 64, g.State().Current.Len())

	require.NoError(t, g.SelectBytes(48))
	_, err = g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 96, g.State().Current.Len())

	require.NoError(t, g.SelectBytes(32))
	_, err = g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 64, g.State().Current.Len())
}

func TestGenerateIsFreshEachTime(t *testing.T) {
	g, _, _ := newTestGenerator()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		s, err := g.Generate(context.Background())
		require.NoError(t, err)
		require.False(t, seen[s.Value()], "duplicate secret after %d generations", i)
		seen[s.Value()] = true
	}
}

func TestSelectLength(t *testing.T) {
	g, _, _ := newTestGenerator()

	err := g.SelectBytes(33)
	require.ErrorIs(t, err, authsecret.ErrUnknownLength)
	assert.Equal(t, 32, g.State().Selected.Bytes)

	require.NoError(t, g.SelectBytes(64))
	st := g.State()
	assert.Equal(t, 64, st.Selected.Bytes)
	assert.True(t, st.Current.IsZero(), "selecting must not generate by itself")
}

func TestGenerateWithoutSecureSource(t *testing.T) {
	clip := &stubCopier{}
	g := New(source.New(source.WithReader(nil)), clip, WithMinDuration(0), WithClock(newFakeClock()))
	require.NoError(t, g.SelectBytes(48))

	s, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, source.QualityDegraded, s.Quality())
	assert.NoError(t, secret.Validate(s.Value(), 48))
}

func TestGenerateSupersedesOlderRequest(t *testing.T) {
	gate := make(chan struct{})
	src := &gatedSource{gates: []chan struct{}{gate}, entered: make(chan int, 2), inner: source.New()}
	g := New(src, &stubCopier{}, WithMinDuration(0), WithClock(newFakeClock()))

	type result struct {
		s   secret.Secret
		err error
	}
	first := make(chan result, 1)
	go func() {
		s, err := g.Generate(context.Background())
		first <- result{s: s, err: err}
	}()
	require.Equal(t, 0, <-src.entered)

	require.NoError(t, g.SelectBytes(64))
	second, err := g.Generate(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, <-src.entered)
	assert.Equal(t, 128, second.Len())

	close(gate)
	r := <-first
	require.ErrorIs(t, r.err, ErrSuperseded)
	assert.True(t, r.s.IsZero())

	st := g.State()
	assert.Equal(t, second.Value(), st.Current.Value())
	assert.False(t, st.Generating)
}

func TestGeneratingFlagHoldsForMinDuration(t *testing.T) {
	clip := &stubCopier{}
	clock := newFakeClock()
	g := New(source.New(), clip, WithClock(clock), WithMinDuration(200*time.Millisecond))

	done := make(chan error, 1)
	go func() {
		_, err := g.Generate(context.Background())
		done <- err
	}()
	<-clock.scheduled

	assert.True(t, g.State().Generating)
	clock.Advance(199 * time.Millisecond)
	assert.True(t, g.State().Generating)

	clock.Advance(time.Millisecond)
	require.NoError(t, <-done)
	st := g.State()
	assert.False(t, st.Generating)
	assert.Equal(t, 64, st.Current.Len())
}

func TestGenerateFailureKeepsPreviousSecret(t *testing.T) {
	clock := newFakeClock()
	g := New(source.New(), &stubCopier{}, WithClock(clock), WithMinDuration(time.Second))

	done := make(chan error, 1)
	go func() {
		_, err := g.Generate(context.Background())
		done <- err
	}()
	<-clock.scheduled
	clock.Advance(time.Second)
	require.NoError(t, <-done)
	prev := g.State().Current

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Generate(ctx)
	require.ErrorIs(t, err, context.Canceled)

	st := g.State()
	assert.Equal(t, prev.Value(), st.Current.Value())
	assert.False(t, st.Generating)
	assert.Zero(t, clock.pending())
}

func TestCopyWithoutSecretIsNoop(t *testing.T) {
	g, clip, _ := newTestGenerator()
	m, err := g.Copy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, clipboard.MethodNone, m)
	assert.Zero(t, clip.calls())
	assert.False(t, g.State().Copied)
}

func TestCopySetsCopiedForWindow(t *testing.T) {
	g, clip, clock := newTestGenerator()
	s, err := g.Generate(context.Background())
	require.NoError(t, err)

	m, err := g.Copy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, clipboard.MethodSystem, m)
	assert.Equal(t, []string{s.Value()}, clip.texts)
	assert.True(t, g.State().Copied)
	assert.False(t, g.State().Copying)

	clock.Advance(DefaultCopyWindow - time.Millisecond)
	assert.True(t, g.State().Copied)
	clock.Advance(time.Millisecond)
	assert.False(t, g.State().Copied)
}

func TestCopyAgainRestartsWindow(t *testing.T) {
	g, _, clock := newTestGenerator()
	_, err := g.Generate(context.Background())
	require.NoError(t, err)

	_, err = g.Copy(context.Background())
	require.NoError(t, err)
	clock.Advance(1500 * time.Millisecond)

	_, err = g.Copy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, clock.pending(), "reset timers must not stack")

	clock.Advance(time.Second)
	assert.True(t, g.State().Copied, "second copy should restart the window")

	clock.Advance(time.Second)
	assert.False(t, g.State().Copied)
	assert.Zero(t, clock.pending())
}

func TestCopyFailureDoesNotConfirm(t *testing.T) {
	g, clip, clock := newTestGenerator()
	_, err := g.Generate(context.Background())
	require.NoError(t, err)

	clip.err = errors.Join(clipboard.ErrDenied, clipboard.ErrUnavailable)
	m, err := g.Copy(context.Background())
	require.ErrorIs(t, err, clipboard.ErrDenied)
	assert.Equal(t, clipboard.MethodNone, m)

	st := g.State()
	assert.False(t, st.Copied)
	assert.False(t, st.Copying)
	assert.False(t, st.Current.IsZero(), "secret must stay visible after a failed copy")
	assert.Zero(t, clock.pending())
}

func TestFailedCopyDoesNotStrandConfirmation(t *testing.T) {
	g, clip, clock := newTestGenerator()
	_, err := g.Generate(context.Background())
	require.NoError(t, err)

	_, err = g.Copy(context.Background())
	require.NoError(t, err)

	clip.err = clipboard.ErrUnavailable
	_, err = g.Copy(context.Background())
	require.Error(t, err)

	clock.Advance(DefaultCopyWindow)
	assert.False(t, g.State().Copied)
}

func TestObserverSeesTransitions(t *testing.T) {
	var seen []State
	g, _, _ := newTestGenerator(WithObserver(func(s State) { seen = append(seen, s) }))

	_, err := g.Generate(context.Background())
	require.NoError(t, err)
	_, err = g.Copy(context.Background())
	require.NoError(t, err)

	require.Len(t, seen, 4)
	assert.True(t, seen[0].Generating)
	assert.False(t, seen[1].Generating)
	assert.False(t, seen[1].Current.IsZero())
	assert.True(t, seen[2].Copying)
	assert.True(t, seen[3].Copied)
}

func TestClose(t *testing.T) {
	g, _, clock := newTestGenerator()
	_, err := g.Generate(context.Background())
	require.NoError(t, err)
	_, err = g.Copy(context.Background())
	require.NoError(t, err)

	g.Close()
	st := g.State()
	assert.True(t, st.Current.IsZero())
	assert.False(t, st.Copied)
	assert.Zero(t, clock.pending())

	_, err = g.Generate(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	_, err = g.Copy(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, g.SelectBytes(48), ErrClosed)
	g.Close()
}

func TestCustomPresets(t *testing.T) {
	presets := []authsecret.LengthOption{{Label: "tiny", Bytes: 4}, {Label: "small", Bytes: 8}}
	g, _, _ := newTestGenerator(WithPresets(presets))
	assert.Equal(t, presets, g.Presets())
	assert.Equal(t, 4, g.State().Selected.Bytes)

	require.ErrorIs(t, g.SelectBytes(32), authsecret.ErrUnknownLength)
	require.NoError(t, g.SelectBytes(8))
	s, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16, s.Len())
}
