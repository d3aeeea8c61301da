// Package model defines core data structures for bit.
package model

import (
	"encoding/hex"
	"sort"
)

// Worktree is the pseudo-revision naming the files on disk.
const Worktree = "WORKTREE"

// SymbolKind indicates the syntactic kind of a symbol.
type SymbolKind string

const (
	Function SymbolKind = "function"
	Method   SymbolKind = "method"
)

// FingerprintSize is the width of a logic fingerprint in bytes.
const FingerprintSize = 32

// Fingerprint is a fixed-width hash of a symbol's normalized body.
type Fingerprint [FingerprintSize]byte

// String returns the lowercase hex encoding of the fingerprint.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// IsZero reports whether f is unset, as for the missing side of an Added
// or Removed entry.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// Short returns the first 12 hex characters, for display.
func (f Fingerprint) Short() string {
	return f.String()[:12]
}

// MarshalText encodes the fingerprint as hex so reports stay readable.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// SymbolID identifies a symbol: the file it lives in and its scope-qualified
// name inside that file (e.g. "Greeter.greet" or "outer.inner").
type SymbolID struct {
	Path string `json:"path" yaml:"path"`
	Name string `json:"name" yaml:"name"`
}

func (id SymbolID) String() string {
	return id.Path + "::" + id.Name
}

// Symbol is one function or method definition extracted from a file at a
// given revision.
type Symbol struct {
	ID          SymbolID
	Module      string
	Kind        SymbolKind
	StartLine   int
	EndLine     int
	Signature   string
	Body        string // normalized structural form of the body
	Source      string // raw body text, for patches only
	Fingerprint Fingerprint
}

// QualifiedName renders the symbol as module::name.
func (s *Symbol) QualifiedName() string {
	if s.Module == "" {
		return s.ID.Name
	}
	return s.Module + "::" + s.ID.Name
}

// SymbolTable maps symbol identity to symbol for one (file set, revision) pair.
type SymbolTable map[SymbolID]*Symbol

// Merge copies every entry of other into t. Tables built for disjoint files
// never share identities, so merge order does not matter.
func (t SymbolTable) Merge(other SymbolTable) {
	for id, s := range other {
		t[id] = s
	}
}

// IDs returns the table's identities sorted by path then name.
func (t SymbolTable) IDs() []SymbolID {
	ids := make([]SymbolID, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	SortIDs(ids)
	return ids
}

// SortIDs sorts identities by path then name.
func SortIDs(ids []SymbolID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Path != ids[j].Path {
			return ids[i].Path < ids[j].Path
		}
		return ids[i].Name < ids[j].Name
	})
}

// ChangeKind classifies a symbol between two revisions.
type ChangeKind string

const (
	Unchanged ChangeKind = "unchanged"
	Modified  ChangeKind = "modified"
	Added     ChangeKind = "added"
	Removed   ChangeKind = "removed"
)

// DiffEntry is the classification of one symbol identity. OldFingerprint is
// zero for Added and NewFingerprint is zero for Removed.
type DiffEntry struct {
	ID             SymbolID    `json:"id" yaml:"id"`
	Kind           ChangeKind  `json:"kind" yaml:"kind"`
	OldFingerprint Fingerprint `json:"oldFingerprint,omitzero" yaml:"-"`
	NewFingerprint Fingerprint `json:"newFingerprint,omitzero" yaml:"-"`
	Patch          string      `json:"patch,omitempty" yaml:"patch,omitempty"`
}

// SymbolDiff maps identity to its classification.
type SymbolDiff map[SymbolID]DiffEntry

// Changed returns the entries that are not Unchanged, sorted by identity.
func (d SymbolDiff) Changed() []DiffEntry {
	var out []DiffEntry
	for _, e := range d {
		if e.Kind != Unchanged {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID.Path != out[j].ID.Path {
			return out[i].ID.Path < out[j].ID.Path
		}
		return out[i].ID.Name < out[j].ID.Name
	})
	return out
}

// ModifiedIn returns the names of symbols in path with Modified status.
func (d SymbolDiff) ModifiedIn(path string) map[string]struct{} {
	names := make(map[string]struct{})
	for id, e := range d {
		if id.Path == path && e.Kind == Modified {
			names[id.Name] = struct{}{}
		}
	}
	return names
}

// OutcomeKind is the result of a simulated merge for one path.
type OutcomeKind string

const (
	Clean        OutcomeKind = "clean"
	TextConflict OutcomeKind = "text_conflict"
	Unmergeable  OutcomeKind = "unmergeable"
)

// Hunk is one marker-delimited conflict region. Base is only populated when
// the collaborator emits diff3-style markers.
type Hunk struct {
	StartLine int      `json:"startLine" yaml:"startLine"`
	Ours      []string `json:"ours" yaml:"ours"`
	Base      []string `json:"base,omitempty" yaml:"base,omitempty"`
	Theirs    []string `json:"theirs" yaml:"theirs"`
}

// MergeOutcome is the simulated merge result for one path.
type MergeOutcome struct {
	Path    string      `json:"path" yaml:"path"`
	Kind    OutcomeKind `json:"kind" yaml:"kind"`
	Content string      `json:"-" yaml:"-"`
	Hunks   []Hunk      `json:"hunks,omitempty" yaml:"hunks,omitempty"`
	Reason  string      `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// VerdictKind classifies a textual conflict.
type VerdictKind string

const (
	LogicConflict    VerdictKind = "logic"
	CosmeticConflict VerdictKind = "cosmetic"
)

// Verdict is the classification of one TextConflict path. Symbols lists the
// names modified on both sides and is empty for CosmeticConflict. Reason is
// set when the path is a LogicConflict only because its symbols are unknown.
type Verdict struct {
	Path    string      `json:"path" yaml:"path"`
	Kind    VerdictKind `json:"kind" yaml:"kind"`
	Symbols []string    `json:"symbols,omitempty" yaml:"symbols,omitempty"`
	Reason  string      `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Status summarizes a comparison request.
type Status string

const (
	NoConflicts           Status = "no_conflicts"
	CosmeticConflictsOnly Status = "cosmetic_conflicts_only"
	LogicConflictsPresent Status = "logic_conflicts"
	StatusUnknown         Status = "unknown"
)

// GapCode names the kind of failure that left a hole in a report.
type GapCode string

const (
	GapParseError            GapCode = "parse_error"
	GapReadError             GapCode = "read_error"
	GapTooLarge              GapCode = "too_large"
	GapSimulationUnavailable GapCode = "simulation_unavailable"
)

// Gap records a localized failure. Revision is empty for request-wide gaps.
type Gap struct {
	Path     string  `json:"path,omitempty" yaml:"path,omitempty"`
	Revision string  `json:"revision,omitempty" yaml:"revision,omitempty"`
	Code     GapCode `json:"code" yaml:"code"`
	Message  string  `json:"message" yaml:"message"`
}

// Report is the structured result of one comparison request.
type Report struct {
	Base       string
	Ours       string
	Theirs     string
	OursDiff   SymbolDiff
	TheirsDiff SymbolDiff
	Outcomes   map[string]MergeOutcome
	Verdicts   map[string]Verdict
	Status     Status
	Gaps       []Gap
}

// Complete reports whether the request finished without any gap.
func (r *Report) Complete() bool {
	return len(r.Gaps) == 0
}

// Paths returns the sorted keys of the outcome map.
func (r *Report) Paths() []string {
	paths := make([]string, 0, len(r.Outcomes))
	for p := range r.Outcomes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// DiffReport is the result of a two-revision symbol diff.
type DiffReport struct {
	Old  string
	New  string
	Diff SymbolDiff
	Gaps []Gap
}
