// Package mergesim predicts the outcome of a three-way merge without touching
// the working tree, the index or any reference. The content-level merge is
// delegated to the version-control collaborator; this package only turns its
// output into per-path outcomes.
package mergesim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/phobologic/bit/internal/model"
)

// ErrUnavailable is matched by every error Simulate returns: the merge
// primitive could not be invoked, failed, or timed out.
var ErrUnavailable = errors.New("merge simulation unavailable")

// UnavailableError carries the reason a simulation could not run.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%v: %v", ErrUnavailable, e.Cause)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrUnavailable, e.Cause}
}

// Conflict types reported by the collaborator that leave content hunks in
// the merged file. Every other conflict type is Unmergeable.
var contentConflictTypes = map[string]struct{}{
	"CONFLICT (contents)": {},
	"CONFLICT (content)":  {},
	"CONFLICT (add/add)":  {},
}

// Conflict is one conflict notice the collaborator attached to a path.
type Conflict struct {
	Type    string
	Message string
}

// PathResult is the collaborator's merge output for one path touched by
// either side.
type PathResult struct {
	Path      string
	Content   []byte
	Deleted   bool
	Conflicts []Conflict
}

// Merger is the collaborator's in-memory three-way merge. Implementations
// must not write to the working tree, the index or any reference.
type Merger interface {
	MergeTree(ctx context.Context, base, ours, theirs string) ([]PathResult, error)
}

// Simulator turns collaborator merge output into outcomes.
type Simulator struct {
	merger  Merger
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Simulator. A zero timeout means the caller's context alone
// bounds the collaborator call.
func New(merger Merger, timeout time.Duration, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{merger: merger, timeout: timeout, logger: logger}
}

// Simulate asks the collaborator for the merge of ours and theirs over base
// and classifies every path it reports. Paths untouched by both sides do not
// appear in the result.
func (s *Simulator) Simulate(ctx context.Context, base, ours, theirs string) (map[string]model.MergeOutcome, error) {
	if s.merger == nil {
		return nil, &UnavailableError{Cause: errors.New("no merge primitive configured")}
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	results, err := s.merger.MergeTree(ctx, base, ours, theirs)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		s.logger.Warn("merge simulation unavailable", zap.Error(err))
		return nil, &UnavailableError{Cause: err}
	}

	outcomes := make(map[string]model.MergeOutcome, len(results))
	for _, r := range results {
		outcomes[r.Path] = Classify(r)
	}
	s.logger.Debug("merge simulated",
		zap.String("base", base),
		zap.String("ours", ours),
		zap.String("theirs", theirs),
		zap.Int("paths", len(outcomes)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return outcomes, nil
}

// Classify maps one path's merge output to an outcome.
func Classify(r PathResult) model.MergeOutcome {
	out := model.MergeOutcome{Path: r.Path}

	if len(r.Conflicts) == 0 {
		out.Kind = model.Clean
		out.Content = string(r.Content)
		if r.Deleted {
			out.Reason = "deleted"
		}
		return out
	}

	for _, c := range r.Conflicts {
		if _, ok := contentConflictTypes[c.Type]; !ok {
			out.Kind = model.Unmergeable
			out.Reason = conflictReason(c)
			return out
		}
	}

	hunks, err := ParseHunks(r.Content)
	switch {
	case err != nil:
		out.Kind = model.Unmergeable
		out.Reason = err.Error()
	case len(hunks) == 0:
		out.Kind = model.Unmergeable
		out.Reason = "conflict reported without content markers"
	default:
		out.Kind = model.TextConflict
		out.Content = string(r.Content)
		out.Hunks = hunks
	}
	return out
}

func conflictReason(c Conflict) string {
	msg := strings.TrimSpace(c.Message)
	if msg == "" {
		return c.Type
	}
	return msg
}
