// Package cli implements the secrets command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/oarkflow/authsecret/clipboard"
	"github.com/oarkflow/authsecret/config"
	"github.com/oarkflow/authsecret/generator"
	"github.com/oarkflow/authsecret/logging"
	"github.com/oarkflow/authsecret/source"
)

// Version is set at build time via -ldflags "-X github.com/oarkflow/authsecret/cli.Version=v1.2.3".
var Version = "1.0.0"

// Exit codes beyond the generic failure (1).
const (
	ExitUsage    = 2
	ExitDegraded = 3
)

// SecurityNote accompanies every displayed secret.
const SecurityNote = "Store this secret securely in your environment variables. Never commit it to version control."

// ErrDegraded is reported in strict mode when a secret did not come from a secure source.
var ErrDegraded = errors.New("secret was generated from a degraded random source")

// ExitError carries a process exit code through cobra.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// App wires the command tree to its dependencies. The zero value is not
// usable; call New.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// NewSource and NewCopier let tests replace the platform capabilities.
	NewSource func(log *zap.Logger) generator.RandomSource
	NewCopier func(log *zap.Logger) generator.Copier
	// NewClock is used by the interactive session.
	NewClock func() generator.Clock

	v   *viper.Viper
	cfg *config.Config
	log *zap.Logger

	configPath string
}

// New returns an App bound to the process streams and the real platform.
func New() *App {
	return &App{
		In:  os.Stdin,
		Out: os.Stdout,
		Err: os.Stderr,
		NewSource: func(log *zap.Logger) generator.RandomSource {
			return source.New(source.WithLogger(log))
		},
		NewCopier: func(log *zap.Logger) generator.Copier {
			return clipboard.NewCopier(clipboard.NewSystem(), clipboard.NewTerminal(os.Stderr), clipboard.WithLogger(log))
		},
		NewClock: func() generator.Clock { return generator.RealClock{} },
		v:        viper.New(),
	}
}

// Execute runs the CLI with the process arguments.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return New().Command().ExecuteContext(ctx)
}

// setup loads the configuration and builds the logger. It runs before every command.
func (a *App) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("configuration error: %w", err)}
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, a.Err)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("configuration error: %w", err)}
	}
	a.cfg = cfg
	a.log = log
	return nil
}

func (a *App) newGenerator(opts ...generator.Option) (*generator.Generator, error) {
	initial, err := lengthOption(a.cfg.DefaultLength)
	if err != nil {
		return nil, err
	}
	base := []generator.Option{
		generator.WithInitial(initial),
		generator.WithCopyWindow(a.cfg.CopyWindow),
		generator.WithLogger(a.log),
	}
	return generator.New(a.NewSource(a.log), a.NewCopier(a.log), append(base, opts...)...), nil
}
