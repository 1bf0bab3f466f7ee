// Package cli implements partyctl, the operator tool for managing users
// and parties directly against the server's database.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"

	// Open builds the service graph. Tests replace it.
	Open func(ctx context.Context, opts *RootOptions) (*Env, error)
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates partyctl backed by the configured database.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(&RootOptions{Open: OpenEnv})
}

// NewRootCommandWith creates partyctl with the given options.
func NewRootCommandWith(opts *RootOptions) *cobra.Command {
	if opts.Open == nil {
		opts.Open = OpenEnv
	}

	cmd := &cobra.Command{
		Use:   "partyctl",
		Short: "Manage sync-party users and parties",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewCreateUserCommand(opts))
	cmd.AddCommand(NewCreatePartyCommand(opts))
	cmd.AddCommand(NewListPartiesCommand(opts))
	cmd.AddCommand(NewAddMemberCommand(opts))
	cmd.AddCommand(NewRemoveMemberCommand(opts))
	cmd.AddCommand(NewSetActiveCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))

	return cmd
}

// withEnv opens the environment for one command run.
func withEnv(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, env *Env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	env, err := opts.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer env.Close()

	return fn(ctx, env)
}
