package main

import (
	"github.com/spf13/cobra"
)

func newDiffCmd(a *app) *cobra.Command {
	var patch bool
	cmd := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "List functions whose logic changed between two revisions",
		Long: `List every function and method added, removed or modified between two
revisions. Formatting, comments and quoting style are not changes.

Revisions are anything git understands, ghost:<name> for a ghost snapshot, or
WORKTREE for the files on disk (new side only).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine(patch)
			if err != nil {
				return err
			}
			report, err := e.Diff(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return writeDiff(a.stdout, a.format, report)
		},
	}
	cmd.Flags().BoolVar(&patch, "patch", false, "include a unified diff of each modified body")
	return cmd
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var patch bool
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "List functions changed in the working tree since HEAD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine(patch)
			if err != nil {
				return err
			}
			report, err := e.Analyze(cmd.Context())
			if err != nil {
				return err
			}
			return writeDiff(a.stdout, a.format, report)
		},
	}
	cmd.Flags().BoolVar(&patch, "patch", false, "include a unified diff of each modified body")
	return cmd
}
