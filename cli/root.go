package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oarkflow/authsecret"
	"github.com/oarkflow/authsecret/config"
	"github.com/oarkflow/authsecret/generator"
	"github.com/oarkflow/authsecret/secret"
)

const maxCount = 100

type generateOptions struct {
	count     int
	quiet     bool
	noCopy    bool
	shares    int
	threshold int
}

// Command builds the command tree.
func (a *App) Command() *cobra.Command {
	opts := &generateOptions{}

	root := &cobra.Command{
		Use:   "secrets",
		Short: "Generate hex-encoded authentication secrets",
		Long: `secrets generates cryptographically secure, lowercase hex-encoded secrets
(the same shape as "openssl rand -hex N") and copies them to the clipboard.

Supported lengths are 32, 48 and 64 random bytes (64, 96 and 128 characters).`,
		Example: `  secrets
  secrets -l 48 --no-copy
  secrets -n 3 -q
  secrets --shares 5 --threshold 3
  secrets interactive`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runGenerate(cmd, opts)
		},
	}
	root.SetIn(a.In)
	root.SetOut(a.Out)
	root.SetErr(a.Err)
	root.SetVersionTemplate("secrets v{{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Path to a YAML config file (default "+config.DefaultPath()+")")
	pf.IntP("length", "l", authsecret.DefaultPreset().Bytes, "Secret length in random bytes (32, 48 or 64) (Env: SECRETS_DEFAULT_LENGTH)")
	pf.String("log-level", "warn", "Logging level (debug, info, warn, error) (Env: SECRETS_LOG_LEVEL)")
	pf.String("log-format", "console", "Log format (console, json) (Env: SECRETS_LOG_FORMAT)")

	f := root.Flags()
	f.BoolP("copy", "c", true, "Copy the generated secret to the clipboard (Env: SECRETS_COPY)")
	f.BoolVar(&opts.noCopy, "no-copy", false, "Disable clipboard copy")
	f.Bool("strict", false, "Fail if the secure random source was unavailable (Env: SECRETS_STRICT)")
	f.IntVarP(&opts.count, "count", "n", 1, "Number of secrets to generate")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Print only the secret")
	f.IntVar(&opts.shares, "shares", 0, "Also split the secret into this many Shamir shares")
	f.IntVar(&opts.threshold, "threshold", 0, "Shares required to rebuild the secret (default: majority)")

	_ = a.v.BindPFlag(config.KeyDefaultLength, pf.Lookup("length"))
	_ = a.v.BindPFlag(config.KeyLogLevel, pf.Lookup("log-level"))
	_ = a.v.BindPFlag(config.KeyLogFormat, pf.Lookup("log-format"))
	_ = a.v.BindPFlag(config.KeyCopy, f.Lookup("copy"))
	_ = a.v.BindPFlag(config.KeyStrict, f.Lookup("strict"))

	root.AddCommand(
		a.interactiveCommand(),
		a.presetsCommand(),
		a.checkCommand(),
		a.combineCommand(),
		a.configCommand(),
	)
	return root
}

func (a *App) runGenerate(cmd *cobra.Command, opts *generateOptions) error {
	if opts.count < 1 || opts.count > maxCount {
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("count must be between 1 and %d", maxCount)}
	}
	if opts.shares > 0 && opts.count > 1 {
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("--shares cannot be combined with --count")}
	}
	threshold := opts.threshold
	if opts.shares > 0 && threshold == 0 {
		threshold = opts.shares/2 + 1
	}

	g, err := a.newGenerator(generator.WithMinDuration(0))
	if err != nil {
		return err
	}
	defer g.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	degraded := false
	var last secret.Secret
	for i := 0; i < opts.count; i++ {
		s, err := g.Generate(ctx)
		if err != nil {
			return fmt.Errorf("secret generation failed: %w", err)
		}
		last = s
		if !s.Quality().Secure() {
			degraded = true
		}
		if opts.quiet {
			fmt.Fprintln(out, s.Value())
		} else {
			fmt.Fprintf(out, "Generated secret (%d chars): %s\n", s.Len(), s.Value())
		}
	}

	if !opts.quiet {
		fmt.Fprintln(out, SecurityNote)
	}

	if degraded {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v; do not use it as production key material\n", ErrDegraded)
	}

	if opts.shares > 0 {
		shares, err := secret.Split(last, opts.shares, threshold)
		if err != nil {
			return &ExitError{Code: ExitUsage, Err: err}
		}
		if !opts.quiet {
			fmt.Fprintf(out, "Shamir shares (any %d of %d rebuild the secret):\n", threshold, opts.shares)
		}
		for i, sh := range shares {
			if opts.quiet {
				fmt.Fprintln(out, sh)
			} else {
				fmt.Fprintf(out, "  %d/%d %s\n", i+1, len(shares), sh)
			}
		}
	}

	if a.cfg.Copy && !opts.noCopy {
		a.copySecret(cmd, g, opts.quiet)
	}

	if degraded && a.cfg.Strict {
		return &ExitError{Code: ExitDegraded, Err: ErrDegraded}
	}
	return nil
}

// copySecret copies the current secret. Failures are reported, never fatal.
func (a *App) copySecret(cmd *cobra.Command, g *generator.Generator, quiet bool) {
	method, err := g.Copy(cmd.Context())
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: Unable to copy secret to clipboard: %v\n", err)
		return
	}
	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "\u2713 Secret copied to clipboard (%s)\n", method)
	}
}

// lengthOption resolves a configured byte count to a preset.
func lengthOption(n int) (authsecret.LengthOption, error) {
	opt, err := authsecret.PresetFor(n)
	if err != nil {
		return authsecret.LengthOption{}, &ExitError{Code: ExitUsage, Err: err}
	}
	return opt, nil
}
