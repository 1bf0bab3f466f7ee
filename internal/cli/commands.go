package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weiawesome/sync-party/internal/domain"
)

func NewCreateUserCommand(opts *RootOptions) *cobra.Command {
	var (
		password string
		admin    bool
	)

	cmd := &cobra.Command{
		Use:   "create-user <username>",
		Short: "Create a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := domain.RoleUser
			if admin {
				role = domain.RoleAdmin
			}
			return withEnv(cmd, opts, func(ctx context.Context, env *Env) error {
				p, err := env.Authority.CreateUser(ctx, args[0], password, role)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), opts, p, fmt.Sprintf("created %s %s (%s)", p.Role, p.Username, p.ID))
			})
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "initial password")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func NewCreatePartyCommand(opts *RootOptions) *cobra.Command {
	var (
		owner    string
		members  []string
		inactive bool
	)

	cmd := &cobra.Command{
		Use:   "create-party <name>",
		Short: "Create a party owned by an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, func(ctx context.Context, env *Env) error {
				ownerID, err := env.userID(ctx, owner)
				if err != nil {
					return err
				}

				req := &domain.CreatePartyRequest{Name: args[0], OwnerID: ownerID}
				for _, m := range members {
					id, err := env.userID(ctx, m)
					if err != nil {
						return err
					}
					req.Members = append(req.Members, id)
				}
				if inactive {
					active := false
					req.Active = &active
				}

				p, err := env.Parties.Create(ctx, operator, req)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), opts, p, describeParty(p))
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner username")
	cmd.Flags().StringSliceVar(&members, "member", nil, "member usernames")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the party closed")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func NewListPartiesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list-parties",
		Short: "List all parties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, func(ctx context.Context, env *Env) error {
				parties, err := env.Parties.ListMine(ctx, operator)
				if err != nil {
					return err
				}

				lines := make([]string, 0, len(parties))
				for i := range parties {
					lines = append(lines, describeParty(&parties[i]))
				}
				if len(lines) == 0 {
					lines = append(lines, "no parties")
				}
				return printResult(cmd.OutOrStdout(), opts, parties, strings.Join(lines, "\n"))
			})
		},
	}
}

func NewAddMemberCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add-member <party-id> <username>",
		Short: "Add a user to a party",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, func(ctx context.Context, env *Env) error {
				p, err := env.Parties.AddMember(ctx, args[0], &domain.AddMemberRequest{Username: args[1]}, operator)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), opts, p, describeParty(p))
			})
		},
	}
}

func NewRemoveMemberCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-member <party-id> <username>",
		Short: "Remove a user from a party",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, func(ctx context.Context, env *Env) error {
				userID, err := env.userID(ctx, args[1])
				if err != nil {
					return err
				}
				p, err := env.Parties.RemoveMember(ctx, args[0], userID, operator)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), opts, p, describeParty(p))
			})
		},
	}
}

func NewSetActiveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-active <party-id> <true|false>",
		Short: "Open or close a party",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			active, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid active value %q", args[1])
			}
			return withEnv(cmd, opts, func(ctx context.Context, env *Env) error {
				p, err := env.Parties.SetActive(ctx, args[0], active, operator)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), opts, p, describeParty(p))
			})
		},
	}
}

func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Remove file records without blobs and blobs without records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, func(ctx context.Context, env *Env) error {
				rep, err := env.Reconciler.Run(ctx)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), opts, rep, fmt.Sprintf("checked=%d records_removed=%d blobs_removed=%d",
					rep.Checked, rep.RecordsRemoved, rep.BlobsRemoved))
			})
		},
	}
}
