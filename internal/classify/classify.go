// Package classify decides whether a predicted textual conflict is also a
// logic conflict: the same symbol's body changed on both sides of the merge.
package classify

import (
	"slices"
	"sort"
	"strings"

	"github.com/phobologic/bit/internal/model"
)

// Classify returns a verdict for every TextConflict path in outcomes. A path
// is a LogicConflict when some symbol in it is Modified in both ours and
// theirs; otherwise both sides only reformatted, or edited disjoint symbols
// that the line-based merge still collided on, and the verdict is
// CosmeticConflict.
func Classify(outcomes map[string]model.MergeOutcome, ours, theirs model.SymbolDiff) map[string]model.Verdict {
	verdicts := make(map[string]model.Verdict)
	for path, o := range outcomes {
		if o.Kind != model.TextConflict {
			continue
		}
		shared := intersect(ours.ModifiedIn(path), theirs.ModifiedIn(path))
		if len(shared) == 0 {
			verdicts[path] = model.Verdict{Path: path, Kind: model.CosmeticConflict}
			continue
		}
		verdicts[path] = model.Verdict{Path: path, Kind: model.LogicConflict, Symbols: shared}
	}
	return verdicts
}

func intersect(a, b map[string]struct{}) []string {
	var out []string
	for name := range a {
		if _, ok := b[name]; ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Status summarizes a comparison. simulated is false when the merge
// simulation did not run, in which case nothing can be said about conflicts.
// Unmergeable paths count as logic conflicts: nothing shows them to be
// cosmetic.
func Status(simulated bool, outcomes map[string]model.MergeOutcome, verdicts map[string]model.Verdict) model.Status {
	if !simulated {
		return model.StatusUnknown
	}
	status := model.NoConflicts
	for _, o := range outcomes {
		if o.Kind == model.Unmergeable {
			return model.LogicConflictsPresent
		}
	}
	for _, v := range verdicts {
		switch v.Kind {
		case model.LogicConflict:
			return model.LogicConflictsPresent
		case model.CosmeticConflict:
			status = model.CosmeticConflictsOnly
		}
	}
	return status
}

// Escalate turns the verdict of every path with a gap into a LogicConflict.
// Such a path's symbols could not be extracted on some side, so a conflict
// there cannot be shown to be cosmetic. The verdict's Reason names the gap
// codes.
func Escalate(verdicts map[string]model.Verdict, gaps []model.Gap) {
	codes := make(map[string][]string)
	for _, g := range gaps {
		if g.Path == "" || slices.Contains(codes[g.Path], string(g.Code)) {
			continue
		}
		codes[g.Path] = append(codes[g.Path], string(g.Code))
	}
	for path, v := range verdicts {
		c, ok := codes[path]
		if !ok || v.Kind != model.CosmeticConflict {
			continue
		}
		sort.Strings(c)
		v.Kind = model.LogicConflict
		v.Reason = "symbols unknown: " + strings.Join(c, ", ")
		verdicts[path] = v
	}
}
