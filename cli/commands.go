package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oarkflow/authsecret"
	"github.com/oarkflow/authsecret/config"
	"github.com/oarkflow/authsecret/secret"
)

func (a *App) presetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the supported secret lengths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BYTES\tCHARS\tLABEL\tDESCRIPTION")
			for _, p := range authsecret.Presets {
				marker := ""
				if p.Bytes == a.cfg.DefaultLength {
					marker = " (default)"
				}
				fmt.Fprintf(w, "%d\t%d\t%s%s\t%s\n", p.Bytes, p.Chars(), p.Label, marker, p.Description)
			}
			return w.Flush()
		},
	}
}

func (a *App) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <secret>",
		Short: "Verify that a string is a well-formed secret",
		Long: `Checks that the argument is lowercase hex of one of the supported lengths.
The value is never printed; only its length and fingerprint are reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := strings.TrimSpace(args[0])
			for _, p := range authsecret.Presets {
				if len(value) != p.Chars() {
					continue
				}
				if err := secret.Validate(value, p.Bytes); err != nil {
					return &ExitError{Code: 1, Err: err}
				}
				s, err := secret.Parse(value)
				if err != nil {
					return &ExitError{Code: 1, Err: err}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "OK: %s, %d chars, fingerprint %s\n", p.Label, s.Len(), s.Fingerprint())
				return nil
			}
			return &ExitError{Code: 1, Err: fmt.Errorf("%w: got %d characters", authsecret.ErrUnknownLength, len(value))}
		},
	}
}

func (a *App) combineCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "combine <share> <share> [share...]",
		Short: "Rebuild a secret from Shamir shares",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := secret.Combine(args)
			if err != nil {
				return &ExitError{Code: 1, Err: err}
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.Value())
			return nil
		},
	}
}

func (a *App) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		// The file may not exist yet, so skip loading it.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath()
			if a.configPath != "" {
				path = a.configPath
			}
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path, force); err != nil {
				if errors.Is(err, config.ErrExists) {
					return &ExitError{Code: 1, Err: fmt.Errorf("%w (use --force to overwrite)", err)}
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}
