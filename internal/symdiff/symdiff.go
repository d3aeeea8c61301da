// Package symdiff compares two symbol tables and classifies every identity
// as unchanged, modified, added or removed.
package symdiff

import "github.com/phobologic/bit/internal/model"

// Diff classifies every identity in the union of before and after. Presence
// and fingerprint equality are the only inputs; raw text is never compared, so
// formatting-only edits stay Unchanged. Renames surface as Removed + Added.
func Diff(before, after model.SymbolTable) model.SymbolDiff {
	out := make(model.SymbolDiff, len(before)+len(after))

	for id, o := range before {
		n, ok := after[id]
		if !ok {
			out[id] = model.DiffEntry{ID: id, Kind: model.Removed, OldFingerprint: o.Fingerprint}
			continue
		}
		kind := model.Unchanged
		if o.Fingerprint != n.Fingerprint {
			kind = model.Modified
		}
		out[id] = model.DiffEntry{
			ID:             id,
			Kind:           kind,
			OldFingerprint: o.Fingerprint,
			NewFingerprint: n.Fingerprint,
		}
	}

	for id, n := range after {
		if _, ok := before[id]; !ok {
			out[id] = model.DiffEntry{ID: id, Kind: model.Added, NewFingerprint: n.Fingerprint}
		}
	}

	return out
}

// Counts tallies entries by kind.
func Counts(d model.SymbolDiff) map[model.ChangeKind]int {
	counts := make(map[model.ChangeKind]int, 4)
	for _, e := range d {
		counts[e.Kind]++
	}
	return counts
}
