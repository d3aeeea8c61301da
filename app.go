package main

import (
	"context"
	"fmt"
	"io"
	"slices"

	"go.uber.org/zap"

	"github.com/phobologic/bit/internal/config"
	"github.com/phobologic/bit/internal/discover"
	"github.com/phobologic/bit/internal/engine"
	"github.com/phobologic/bit/internal/ghost"
	"github.com/phobologic/bit/internal/gitrepo"
	"github.com/phobologic/bit/internal/logging"
	"github.com/phobologic/bit/internal/mergesim"
)

// app carries flags and the lazily opened repository for one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	repoPath string
	format   string
	logLevel string
	workers  int

	cfg    *config.Config
	logger *zap.Logger
	repo   *gitrepo.Repo
	ghosts *ghost.Store
}

// open loads configuration and the repository. Commands call it before
// touching either.
func (a *app) open() error {
	if a.repo != nil {
		return nil
	}
	if !slices.Contains(formats, a.format) {
		return fmt.Errorf("unknown format %q (want one of %v)", a.format, formats)
	}

	repo, err := gitrepo.Open(a.repoPath, nil)
	if err != nil {
		return err
	}
	cfg, err := config.Load(repo.Root())
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.workers > 0 {
		cfg.Analysis.Workers = a.workers
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, a.stderr)
	if err != nil {
		return err
	}

	repo.SetLogger(logger)

	a.cfg = cfg
	a.logger = logger
	a.repo = repo
	a.ghosts = ghost.NewStore(repo)
	return nil
}

func (a *app) engine(patches bool) (*engine.Engine, error) {
	if err := a.open(); err != nil {
		return nil, err
	}
	filter, err := discover.NewFilter(a.repo.Root(), a.cfg.Analysis.Languages, a.cfg.Analysis.IgnoreFile)
	if err != nil {
		return nil, err
	}
	sim := mergesim.New(a.repo, a.cfg.Merge.Timeout, a.logger)
	return engine.New(a.repo, sim, a.ghosts, engine.Options{
		Workers:     a.cfg.Analysis.Workers,
		MaxFileSize: a.cfg.Analysis.MaxFileSize,
		Filter:      filter,
		Patches:     patches,
	}, a.logger), nil
}

// resolve accepts the same revision syntax as the comparison commands.
func (a *app) resolve(ctx context.Context, rev string) (string, error) {
	e, err := a.engine(false)
	if err != nil {
		return "", err
	}
	return e.Resolve(ctx, rev)
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
