package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/oarkflow/authsecret"
	"github.com/oarkflow/authsecret/generator"
)

type key int

const (
	keyNone key = iota
	keyQuit
	keyRegenerate
	keyCopy
	keyNext
	keyPrev
	keySelect
)

const (
	ctrlC = 0x03
	ctrlD = 0x04
	esc   = 0x1b
)

type keyEvent struct {
	key   key
	index int
}

func (a *App) interactiveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"i"},
		Short:   "Pick a length and generate secrets from the keyboard",
		Long: `Starts an interactive session. A secret of the selected length is generated
on start and whenever the selection changes.

Keys:
  1-9          select a length
  tab, arrows  cycle lengths
  r, space     regenerate
  c            copy to clipboard
  q, ctrl-c    quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runInteractive(cmd)
		},
	}
}

func (a *App) runInteractive(cmd *cobra.Command) error {
	in := cmd.InOrStdin()
	eol := "\n"
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		old, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return fmt.Errorf("enter raw mode: %w", err)
		}
		defer func() { _ = term.Restore(int(f.Fd()), old) }()
		eol = "\r\n"
	}

	r := &renderer{out: cmd.OutOrStdout(), eol: eol}
	g, err := a.newGenerator(
		generator.WithClock(a.NewClock()),
		generator.WithMinDuration(a.cfg.GenerateDelay),
		generator.WithObserver(r.observe),
	)
	if err != nil {
		return err
	}
	defer g.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s := &session{g: g, r: r, log: a.log, ctx: ctx}
	r.help(g)
	r.observe(g.State())
	s.generate()

	keys := make(chan keyEvent)
	go readKeys(ctx, in, keys)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case ev, ok := <-keys:
			if !ok || ev.key == keyQuit {
				break loop
			}
			s.log.Debug("key pressed", zap.Int("key", int(ev.key)), zap.Int("index", ev.index))
			s.handle(ev)
		}
	}

	s.wg.Wait()
	r.printf("Bye")
	return nil
}

// session dispatches key presses to the generator without blocking input.
type session struct {
	g   *generator.Generator
	r   *renderer
	log *zap.Logger
	ctx context.Context
	wg  sync.WaitGroup
}

func (s *session) handle(ev keyEvent) {
	presets := s.g.Presets()
	cur := indexOf(presets, s.g.State().Selected.Bytes)
	next := -1
	switch ev.key {
	case keyRegenerate:
		s.generate()
		return
	case keyCopy:
		s.copy()
		return
	case keySelect:
		next = ev.index
	case keyNext:
		next = (cur + 1) % len(presets)
	case keyPrev:
		next = (cur + len(presets) - 1) % len(presets)
	default:
		return
	}
	if next < 0 || next >= len(presets) || next == cur {
		return
	}
	if err := s.g.SelectLength(presets[next]); err != nil {
		s.r.printf("Error: %v", err)
		return
	}
	s.generate()
}

func (s *session) generate() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, err := s.g.Generate(s.ctx)
		switch {
		case err == nil, errors.Is(err, generator.ErrSuperseded), errors.Is(err, context.Canceled):
		default:
			s.r.printf("Error: secret generation failed: %v", err)
		}
	}()
}

func (s *session) copy() {
	if s.g.State().Current.IsZero() {
		s.r.printf("Nothing to copy yet")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.g.Copy(s.ctx); err != nil && !errors.Is(err, generator.ErrClosed) {
			s.r.printf("Warning: Unable to copy secret to clipboard: %v", err)
		}
	}()
}

func indexOf(presets []authsecret.LengthOption, n int) int {
	for i, p := range presets {
		if p.Bytes == n {
			return i
		}
	}
	return 0
}

// deadliner is implemented by *os.File and net.Conn.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// readKeys decodes key presses until EOF or cancellation. Unknown bytes are
// dropped. On cancellation a reader with read deadlines is interrupted; any
// other reader, or a file that cannot poll, keeps the goroutine blocked until
// its next byte arrives.
func readKeys(ctx context.Context, in io.Reader, out chan<- keyEvent) {
	defer close(out)
	if d, ok := in.(deadliner); ok {
		done := make(chan struct{})
		stopped := make(chan struct{})
		go func() {
			defer close(stopped)
			select {
			case <-ctx.Done():
				_ = d.SetReadDeadline(time.Now())
			case <-done:
			}
		}()
		// leave the reader usable for whoever reads it next
		defer func() {
			close(done)
			<-stopped
			_ = d.SetReadDeadline(time.Time{})
		}()
	}
	br := bufio.NewReader(in)
	for {
		b, err := br.ReadByte()
		if err != nil {
			return
		}
		ev := decodeKey(b, br)
		if ev.key == keyNone {
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
		if ev.key == keyQuit {
			return
		}
	}
}

func decodeKey(b byte, br *bufio.Reader) keyEvent {
	switch {
	case b >= '1' && b <= '9':
		return keyEvent{key: keySelect, index: int(b - '1')}
	case b == '\t':
		return keyEvent{key: keyNext}
	case b == 'r' || b == 'R' || b == ' ':
		return keyEvent{key: keyRegenerate}
	case b == 'c' || b == 'C':
		return keyEvent{key: keyCopy}
	case b == 'q' || b == 'Q' || b == ctrlC || b == ctrlD:
		return keyEvent{key: keyQuit}
	case b == esc:
		// CSI arrow keys: ESC [ A..D
		if next, err := br.Peek(2); err == nil && next[0] == '[' {
			_, _ = br.Discard(2)
			switch next[1] {
			case 'C', 'B':
				return keyEvent{key: keyNext}
			case 'D', 'A':
				return keyEvent{key: keyPrev}
			}
		}
	}
	return keyEvent{}
}

// renderer prints one line per visible state change.
type renderer struct {
	mu   sync.Mutex
	out  io.Writer
	eol  string
	prev generator.State
	seen bool
}

func (r *renderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writef(format, args...)
}

// writef writes one line. Caller holds r.mu.
func (r *renderer) writef(format string, args ...any) {
	fmt.Fprintf(r.out, format+r.eol, args...)
}

func (r *renderer) help(g *generator.Generator) {
	var b strings.Builder
	for i, p := range g.Presets() {
		if i > 0 {
			b.WriteString("  ")
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, p.Label)
	}
	r.printf("Better Auth secret generator")
	r.printf("%s", b.String())
	r.printf("keys: 1-%d/tab select, r/space regenerate, c copy, q quit", len(g.Presets()))
	r.printf("%s", SecurityNote)
}

// observe is registered as the generator observer and must not call back
// into the generator.
func (r *renderer) observe(st generator.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.prev
	r.prev = st
	first := !r.seen
	r.seen = true

	if first || st.Selected != prev.Selected {
		r.writef("Length: %s - %d characters (%s)", st.Selected.Label, st.Selected.Chars(), st.Selected.Description)
	}
	if st.Generating && (first || !prev.Generating) {
		r.writef("Generating...")
	}
	if !st.Current.IsZero() && !st.Current.Equal(prev.Current) {
		quality := ""
		if !st.Current.Quality().Secure() {
			quality = " [degraded source]"
		}
		r.writef("Secret (%d chars): %s%s", st.Current.Len(), st.Current.Value(), quality)
	}
	if st.Copied && !prev.Copied {
		r.writef("✓ Copied to clipboard")
	}
}
