package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phobologic/bit/internal/ghost"
)

func newGhostCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ghost",
		Short: "Manage hidden snapshot references",
		Long: `Ghosts are named snapshots stored under ` + ghost.Prefix + `. They never
show up in branch or tag listings. Use ghost:<name> wherever a revision is
expected.`,
	}
	cmd.AddCommand(
		newGhostCreateCmd(a),
		newGhostMoveCmd(a),
		newGhostDeleteCmd(a),
		newGhostShowCmd(a),
		newGhostListCmd(a),
	)
	return cmd
}

func newGhostCreateCmd(a *app) *cobra.Command {
	var rev string
	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Snapshot a revision under a new ghost name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			name := ghost.GenerateName()
			if len(args) > 0 {
				name = args[0]
			}
			target, err := a.resolve(cmd.Context(), rev)
			if err != nil {
				return err
			}
			ref, err := a.ghosts.Create(cmd.Context(), name, target)
			if err != nil {
				return err
			}
			return writeGhosts(a.stdout, a.format, []ghost.Ref{ref})
		},
	}
	cmd.Flags().StringVar(&rev, "rev", "HEAD", "revision to snapshot")
	return cmd
}

func newGhostMoveCmd(a *app) *cobra.Command {
	var rev string
	cmd := &cobra.Command{
		Use:   "move <name>",
		Short: "Point an existing ghost at a new revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			target, err := a.resolve(cmd.Context(), rev)
			if err != nil {
				return err
			}
			ref, err := a.ghosts.Move(cmd.Context(), args[0], target)
			if err != nil {
				return err
			}
			return writeGhosts(a.stdout, a.format, []ghost.Ref{ref})
		},
	}
	cmd.Flags().StringVar(&rev, "rev", "HEAD", "revision to point at")
	return cmd
}

func newGhostDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a ghost",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			if err := a.ghosts.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.stderr, "deleted ghost %s\n", args[0])
			return nil
		},
	}
}

func newGhostShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print the revision a ghost points at",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			rev, err := a.ghosts.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeGhosts(a.stdout, a.format, []ghost.Ref{{Name: args[0], Revision: rev}})
		},
	}
}

func newGhostListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every ghost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			refs, err := a.ghosts.List(cmd.Context())
			if err != nil {
				return err
			}
			return writeGhosts(a.stdout, a.format, refs)
		},
	}
}
