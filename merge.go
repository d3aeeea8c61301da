package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/phobologic/bit/internal/engine"
	"github.com/phobologic/bit/internal/model"
)

type predictFlags struct {
	patch    bool
	exitCode bool
}

func (f *predictFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.patch, "patch", false, "include a unified diff of each modified body")
	cmd.Flags().BoolVar(&f.exitCode, "exit-code", false, "exit with status 1 when logic conflicts are predicted")
}

func (f *predictFlags) finish(a *app, report *model.Report) error {
	if err := writeReport(a.stdout, a.format, report); err != nil {
		return err
	}
	if f.exitCode && report.Status == model.LogicConflictsPresent {
		return errConflicts
	}
	return nil
}

func newMergeCmd(a *app) *cobra.Command {
	var (
		preview bool
		flags   predictFlags
	)
	cmd := &cobra.Command{
		Use:   "merge --preview <branch>",
		Short: "Predict the outcome of merging a branch into HEAD",
		Long: `Predict the outcome of merging <branch> into HEAD, in memory. Every
conflicting file is classified as a logic conflict (the same function changed
on both sides) or a cosmetic one.

bit does not perform merges; --preview is required.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !preview {
				return errors.New("bit only previews merges; run `git merge` to merge, or pass --preview")
			}
			e, err := a.engine(flags.patch)
			if err != nil {
				return err
			}
			report, err := e.MergePreview(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return flags.finish(a, report)
		},
	}
	cmd.Flags().BoolVar(&preview, "preview", false, "predict the merge without touching any files")
	flags.register(cmd)
	return cmd
}

func newPredictCmd(a *app) *cobra.Command {
	var (
		base  string
		flags predictFlags
	)
	cmd := &cobra.Command{
		Use:   "predict <ours> <theirs>",
		Short: "Predict the outcome of merging two revisions",
		Long: `Predict the outcome of merging <theirs> into <ours> over their merge base,
or over --base when given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine(flags.patch)
			if err != nil {
				return err
			}
			report, err := e.Predict(cmd.Context(), engine.Request{Base: base, Ours: args[0], Theirs: args[1]})
			if err != nil {
				return err
			}
			return flags.finish(a, report)
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "merge base (default: computed)")
	flags.register(cmd)
	return cmd
}
