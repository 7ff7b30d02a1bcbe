package clipboard

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/atotto/clipboard"
)

// System writes through the platform clipboard utility (pbcopy, xclip,
// xsel, wl-copy, termux or the Windows API).
type System struct {
	writeAll    func(string) error
	unsupported func() bool
}

func NewSystem() *System {
	return &System{
		writeAll:    clipboard.WriteAll,
		unsupported: func() bool { return clipboard.Unsupported },
	}
}

func (s *System) WriteText(ctx context.Context, text string) error {
	if s.unsupported() {
		return fmt.Errorf("%w: no clipboard utility found", ErrUnavailable)
	}

	// the utility is an external process and ignores ctx; stop waiting on cancel
	done := make(chan error, 1)
	go func() { done <- s.writeAll(text) }()

	select {
	case err := <-done:
		return classify(err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: %w", ErrDenied, err)
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
