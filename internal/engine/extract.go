package engine

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/bit/internal/discover"
	"github.com/phobologic/bit/internal/lang"
	"github.com/phobologic/bit/internal/model"
	"github.com/phobologic/bit/internal/parse"
)

type key struct {
	rev  string
	path string
}

type job struct {
	rev  string
	file discover.FileEntry
}

// jobsFor lists the extraction work for files at two revisions.
func jobsFor(files []discover.FileEntry, from, to string) []job {
	jobs := make([]job, 0, 2*len(files))
	for _, f := range files {
		jobs = append(jobs, job{rev: from, file: f}, job{rev: to, file: f})
	}
	return jobs
}

// extraction holds the symbol table of every (revision, path) that was
// extracted successfully. A missing key means the path has a gap there.
type extraction struct {
	tables map[key]model.SymbolTable
	gaps   []model.Gap
}

type result struct {
	table model.SymbolTable
	gap   *model.Gap
}

// extract parses every job in parallel. Each worker owns its parsers; results
// land in a slice indexed by job and are merged once every worker is done.
// Only cancellation fails the whole extraction.
func (e *Engine) extract(ctx context.Context, jobs []job) (*extraction, error) {
	seen := make(map[key]struct{}, len(jobs))
	unique := jobs[:0:0]
	for _, j := range jobs {
		k := key{j.rev, j.file.Path}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, j)
	}

	results := make([]result, len(unique))
	work := make(chan int)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(work)
		for i := range unique {
			select {
			case work <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	numWorkers := min(e.opts.Workers, len(unique))
	for range numWorkers {
		g.Go(func() error {
			parsers := make(map[string]*sitter.Parser)
			defer func() {
				for _, p := range parsers {
					p.Close()
				}
			}()
			for i := range work {
				j := unique[i]
				l := lang.Languages[j.file.Language]
				p, ok := parsers[l.Name]
				if !ok {
					p = l.NewParser()
					parsers[l.Name] = p
				}
				r, err := e.extractOne(gctx, l, p, j)
				if err != nil {
					return err
				}
				results[i] = r
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	x := &extraction{tables: make(map[key]model.SymbolTable, len(unique))}
	for i, r := range results {
		if r.gap != nil {
			x.gaps = append(x.gaps, *r.gap)
			continue
		}
		x.tables[key{unique[i].rev, unique[i].file.Path}] = r.table
	}
	sortGaps(x.gaps)
	return x, nil
}

func (e *Engine) extractOne(ctx context.Context, l *lang.Language, p *sitter.Parser, j job) (result, error) {
	if err := ctx.Err(); err != nil {
		return result{}, err
	}
	path := j.file.Path
	gap := func(code model.GapCode, msg string) (result, error) {
		e.logger.Warn("file skipped",
			zap.String("path", path),
			zap.String("revision", j.rev),
			zap.String("code", string(code)),
			zap.String("reason", msg),
		)
		return result{gap: &model.Gap{Path: path, Revision: j.rev, Code: code, Message: msg}}, nil
	}

	data, ok, err := e.repo.ReadFile(ctx, j.rev, path)
	if err != nil {
		if ctx.Err() != nil {
			return result{}, ctx.Err()
		}
		return gap(model.GapReadError, err.Error())
	}
	if !ok {
		// Absent at this revision: no symbols, which is a definite answer.
		return result{table: model.SymbolTable{}}, nil
	}
	if e.opts.MaxFileSize > 0 && int64(len(data)) > e.opts.MaxFileSize {
		return gap(model.GapTooLarge, fmt.Sprintf("%d bytes exceeds the %d byte limit", len(data), e.opts.MaxFileSize))
	}

	table, err := parse.Extract(ctx, l, p, data, path)
	var perr *parse.Error
	switch {
	case errors.As(err, &perr):
		return gap(model.GapParseError, perr.Error())
	case err != nil:
		if ctx.Err() != nil {
			return result{}, ctx.Err()
		}
		return gap(model.GapParseError, err.Error())
	}
	return result{table: table}, nil
}
