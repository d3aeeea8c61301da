// bit predicts merge conflicts at the level of functions rather than lines.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// errConflicts is returned by --exit-code when logic conflicts are predicted.
var errConflicts = errors.New("logic conflicts predicted")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errConflicts) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	a := &app{stdout: stdout, stderr: stderr}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer a.close()
	return root.ExecuteContext(context.Background())
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "bit",
		Short: "Symbol-aware diffs and merge conflict prediction",
		Long: `bit compares revisions function by function. A change that only reformats
a function is not a change; a merge conflict where both sides only reformatted,
or edited different functions, is cosmetic. bit predicts merges in memory and
never touches the working tree, the index or any branch.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("bit {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVarP(&a.repoPath, "repo", "C", ".", "path inside the repository")
	pf.StringVarP(&a.format, "format", "f", "toon", "output format: toon, json or yaml")
	pf.StringVar(&a.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	pf.IntVar(&a.workers, "workers", 0, "override analysis.workers")

	root.AddCommand(
		newDiffCmd(a),
		newAnalyzeCmd(a),
		newMergeCmd(a),
		newPredictCmd(a),
		newGhostCmd(a),
		newConfigCmd(a),
	)
	return root
}
