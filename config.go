package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phobologic/bit/internal/config"
	"github.com/phobologic/bit/internal/gitrepo"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the repository configuration",
	}
	cmd.AddCommand(newConfigInitCmd(a), newConfigShowCmd(a))
	return cmd
}

// newConfigInitCmd writes the default configuration to .bit/config.yaml in
// the repository root.
func newConfigInitCmd(a *app) *cobra.Command {
	var dryRun, force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Long: `Write the default configuration to ` + filepath.Join(config.Dir, config.FileName) + ` in the
repository root. Settings may also come from BIT_* environment variables, for
example BIT_LOG_LEVEL=debug or BIT_MERGE_TIMEOUT=1m.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()

			if dryRun {
				data, err := cfg.Marshal()
				if err != nil {
					return err
				}
				_, _ = a.stdout.Write(data)
				return nil
			}

			repo, err := gitrepo.Open(a.repoPath, nil)
			if err != nil {
				return err
			}
			path := filepath.Join(repo.Root(), config.Dir, config.FileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			written, err := cfg.Save(repo.Root())
			if err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			_, _ = fmt.Fprintf(a.stderr, "wrote default config to %s\n", written)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the configuration without writing it")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration")
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			data, err := a.cfg.Marshal()
			if err != nil {
				return err
			}
			_, _ = a.stdout.Write(data)
			return nil
		},
	}
}
