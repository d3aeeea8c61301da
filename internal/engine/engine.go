// Package engine runs comparison requests: it resolves revisions, extracts
// symbols from every changed file at every revision involved, diffs them,
// simulates the merge and classifies the predicted conflicts.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/bit/internal/classify"
	"github.com/phobologic/bit/internal/discover"
	"github.com/phobologic/bit/internal/ghost"
	"github.com/phobologic/bit/internal/mergesim"
	"github.com/phobologic/bit/internal/model"
	"github.com/phobologic/bit/internal/symdiff"
)

// GhostPrefix marks a revision argument as the name of a ghost reference.
const GhostPrefix = "ghost:"

// ErrWorktreeRevision is returned when the working tree is used where a
// commit is required.
var ErrWorktreeRevision = errors.New("the working tree is not a commit")

// Repository is the read side of the version-control collaborator.
type Repository interface {
	Resolve(ctx context.Context, rev string) (string, error)
	MergeBase(ctx context.Context, a, b string) (string, error)
	ChangedPaths(ctx context.Context, from, to string) ([]string, error)
	ReadFile(ctx context.Context, rev, path string) (data []byte, ok bool, err error)
}

// Options tunes a request.
type Options struct {
	// Workers bounds parallel extraction; 0 means GOMAXPROCS.
	Workers int
	// MaxFileSize skips larger files with a too_large gap; 0 disables it.
	MaxFileSize int64
	// Filter selects analyzable paths; nil accepts every supported file.
	Filter *discover.Filter
	// Patches attaches a unified diff of the raw body to Modified entries.
	Patches bool
}

// Engine is safe for concurrent use; it holds no per-request state.
type Engine struct {
	repo   Repository
	sim    *mergesim.Simulator
	ghosts *ghost.Store
	opts   Options
	logger *zap.Logger
}

// New creates an Engine. ghosts may be nil, in which case ghost: revisions
// are rejected.
func New(repo Repository, sim *mergesim.Simulator, ghosts *ghost.Store, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sim == nil {
		sim = mergesim.New(nil, 0, logger)
	}
	if opts.Filter == nil {
		opts.Filter, _ = discover.NewFilterFromLines(nil)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{repo: repo, sim: sim, ghosts: ghosts, opts: opts, logger: logger}
}

// Resolve turns a revision argument into a revision id. "ghost:<name>" is
// looked up in the ghost store.
func (e *Engine) Resolve(ctx context.Context, rev string) (string, error) {
	if name, ok := strings.CutPrefix(rev, GhostPrefix); ok {
		if e.ghosts == nil {
			return "", fmt.Errorf("resolve %q: no ghost store configured", rev)
		}
		target, err := e.ghosts.Resolve(ctx, name)
		if err != nil {
			return "", err
		}
		return target, nil
	}
	return e.repo.Resolve(ctx, rev)
}

// Diff compares the symbols of every changed file between two revisions.
// newRev may be the working tree; oldRev must be a commit.
func (e *Engine) Diff(ctx context.Context, oldRev, newRev string) (*model.DiffReport, error) {
	oldID, err := e.Resolve(ctx, oldRev)
	if err != nil {
		return nil, err
	}
	newID, err := e.Resolve(ctx, newRev)
	if err != nil {
		return nil, err
	}
	if oldID == model.Worktree {
		return nil, fmt.Errorf("old revision: %w", ErrWorktreeRevision)
	}

	files, err := e.changedFiles(ctx, oldID, newID)
	if err != nil {
		return nil, err
	}
	x, err := e.extract(ctx, jobsFor(files, oldID, newID))
	if err != nil {
		return nil, err
	}
	diff := x.diff(files, oldID, newID, e.opts.Patches)

	counts := symdiff.Counts(diff)
	e.logger.Info("diff complete",
		zap.String("old", oldID),
		zap.String("new", newID),
		zap.Int("files", len(files)),
		zap.Int("added", counts[model.Added]),
		zap.Int("removed", counts[model.Removed]),
		zap.Int("modified", counts[model.Modified]),
		zap.Int("gaps", len(x.gaps)),
	)
	return &model.DiffReport{Old: oldID, New: newID, Diff: diff, Gaps: x.gaps}, nil
}

// Analyze diffs HEAD against the working tree.
func (e *Engine) Analyze(ctx context.Context) (*model.DiffReport, error) {
	return e.Diff(ctx, "HEAD", model.Worktree)
}

// Request names the revisions of a merge prediction. An empty Base means
// the merge base of Ours and Theirs.
type Request struct {
	Base   string
	Ours   string
	Theirs string
}

// Predict simulates merging Theirs into Ours and classifies every predicted
// conflict. Parse failures and an unavailable simulation degrade the report
// with gaps instead of failing the request.
func (e *Engine) Predict(ctx context.Context, req Request) (*model.Report, error) {
	ours, err := e.commit(ctx, req.Ours)
	if err != nil {
		return nil, fmt.Errorf("ours: %w", err)
	}
	theirs, err := e.commit(ctx, req.Theirs)
	if err != nil {
		return nil, fmt.Errorf("theirs: %w", err)
	}
	var base string
	if req.Base == "" {
		base, err = e.repo.MergeBase(ctx, ours, theirs)
	} else {
		base, err = e.commit(ctx, req.Base)
	}
	if err != nil {
		return nil, fmt.Errorf("base: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	// The collaborator call is the only blocking step; it runs alongside
	// extraction and its result is reused for the rest of the request.
	simulate := sync.OnceValues(func() (map[string]model.MergeOutcome, error) {
		return e.sim.Simulate(gctx, base, ours, theirs)
	})
	g.Go(func() error {
		_, _ = simulate()
		return nil
	})

	var (
		oursFiles, theirsFiles []discover.FileEntry
		x                      *extraction
	)
	g.Go(func() error {
		var err error
		if oursFiles, err = e.changedFiles(gctx, base, ours); err != nil {
			return err
		}
		if theirsFiles, err = e.changedFiles(gctx, base, theirs); err != nil {
			return err
		}
		jobs := append(jobsFor(oursFiles, base, ours), jobsFor(theirsFiles, base, theirs)...)
		x, err = e.extract(gctx, jobs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &model.Report{Base: base, Ours: ours, Theirs: theirs}
	report.OursDiff = x.diff(oursFiles, base, ours, e.opts.Patches)
	report.TheirsDiff = x.diff(theirsFiles, base, theirs, e.opts.Patches)
	report.Gaps = x.gaps

	outcomes, simErr := simulate()
	simulated := simErr == nil
	if simulated {
		report.Outcomes = outcomes
	} else {
		report.Outcomes = map[string]model.MergeOutcome{}
		report.Gaps = append(report.Gaps, model.Gap{Code: model.GapSimulationUnavailable, Message: simErr.Error()})
	}

	report.Verdicts = classify.Classify(report.Outcomes, report.OursDiff, report.TheirsDiff)
	classify.Escalate(report.Verdicts, x.gaps)
	report.Status = classify.Status(simulated, report.Outcomes, report.Verdicts)

	e.logger.Info("prediction complete",
		zap.String("base", base),
		zap.String("ours", ours),
		zap.String("theirs", theirs),
		zap.String("status", string(report.Status)),
		zap.Int("conflicts", len(report.Verdicts)),
		zap.Int("gaps", len(report.Gaps)),
	)
	return report, nil
}

// MergePreview predicts merging branch into HEAD.
func (e *Engine) MergePreview(ctx context.Context, branch string) (*model.Report, error) {
	return e.Predict(ctx, Request{Ours: "HEAD", Theirs: branch})
}

func (e *Engine) commit(ctx context.Context, rev string) (string, error) {
	id, err := e.Resolve(ctx, rev)
	if err != nil {
		return "", err
	}
	if id == model.Worktree {
		return "", ErrWorktreeRevision
	}
	return id, nil
}

func (e *Engine) changedFiles(ctx context.Context, from, to string) ([]discover.FileEntry, error) {
	paths, err := e.repo.ChangedPaths(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing changes: %w", err)
	}
	return e.opts.Filter.Select(paths), nil
}

// diff compares the from and to tables over files. Paths with a gap on
// either side are left out.
func (x *extraction) diff(files []discover.FileEntry, from, to string, patches bool) model.SymbolDiff {
	before, after := model.SymbolTable{}, model.SymbolTable{}
	for _, f := range files {
		b, okB := x.tables[key{from, f.Path}]
		a, okA := x.tables[key{to, f.Path}]
		if !okB || !okA {
			continue
		}
		before.Merge(b)
		after.Merge(a)
	}

	d := symdiff.Diff(before, after)
	if patches {
		for id, entry := range d {
			if entry.Kind == model.Modified {
				entry.Patch = bodyPatch(before[id], after[id])
				d[id] = entry
			}
		}
	}
	return d
}

func bodyPatch(before, after *model.Symbol) string {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before.Source),
		B:        difflib.SplitLines(after.Source),
		FromFile: "a/" + before.QualifiedName(),
		ToFile:   "b/" + after.QualifiedName(),
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return ""
	}
	return text
}

func sortGaps(gaps []model.Gap) {
	sort.Slice(gaps, func(i, j int) bool {
		if gaps[i].Path != gaps[j].Path {
			return gaps[i].Path < gaps[j].Path
		}
		if gaps[i].Revision != gaps[j].Revision {
			return gaps[i].Revision < gaps[j].Revision
		}
		return gaps[i].Code < gaps[j].Code
	})
}
