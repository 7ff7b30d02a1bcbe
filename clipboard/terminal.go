package clipboard

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// maxPayload keeps the escape sequence under what common terminals accept.
const maxPayload = 74994

// Terminal asks the terminal emulator to set the clipboard with an OSC 52
// escape sequence. Nothing is rendered; the terminal consumes the sequence.
type Terminal struct {
	out  io.Writer
	tty  bool
	tmux bool
}

// NewTerminal targets f, which must be a terminal for copies to succeed.
func NewTerminal(f *os.File) *Terminal {
	return &Terminal{
		out:  f,
		tty:  f != nil && term.IsTerminal(int(f.Fd())),
		tmux: os.Getenv("TMUX") != "",
	}
}

func (t *Terminal) WriteText(ctx context.Context, text string) error {
	if !t.tty || t.out == nil {
		return fmt.Errorf("%w: output is not a terminal", ErrUnavailable)
	}
	payload := base64.StdEncoding.EncodeToString([]byte(text))
	if len(payload) > maxPayload {
		return fmt.Errorf("%w: %d bytes exceeds the terminal limit", ErrUnavailable, len(payload))
	}
	if _, err := io.WriteString(t.out, osc52(payload, t.tmux)); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func osc52(payload string, tmux bool) string {
	seq := "\x1b]52;c;" + payload + "\x07"
	if !tmux {
		return seq
	}
	// tmux passthrough: wrap in DCS and double every ESC inside
	return "\x1bPtmux;" + strings.ReplaceAll(seq, "\x1b", "\x1b\x1b") + "\x1b\\"
}
