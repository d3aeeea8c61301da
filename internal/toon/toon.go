// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/phobologic/bit/internal/ghost"
	"github.com/phobologic/bit/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

var (
	changeColumns = []string{"path", "symbol", "change", "old", "new"}
	patchColumns  = []string{"path", "symbol", "patch"}
)

// EncodeReport converts a merge prediction into TOON format.
func EncodeReport(r *model.Report) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("base: %s", encodeValue(r.Base)))
	parts = append(parts, fmt.Sprintf("ours: %s", encodeValue(r.Ours)))
	parts = append(parts, fmt.Sprintf("theirs: %s", encodeValue(r.Theirs)))
	parts = append(parts, fmt.Sprintf("status: %s", encodeValue(string(r.Status))))

	parts = append(parts, formatTabular("ours_changes", changeColumns, changeRows(r.OursDiff)))
	parts = append(parts, formatTabular("theirs_changes", changeColumns, changeRows(r.TheirsDiff)))

	var outcomeRows [][]string
	for _, p := range r.Paths() {
		o := r.Outcomes[p]
		outcomeRows = append(outcomeRows, []string{
			p,
			string(o.Kind),
			fmt.Sprintf("%d", len(o.Hunks)),
			o.Reason,
		})
	}
	parts = append(parts, formatTabular("outcomes", []string{"path", "outcome", "hunks", "reason"}, outcomeRows))

	paths := make([]string, 0, len(r.Verdicts))
	for p := range r.Verdicts {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	var verdictRows [][]string
	for _, p := range paths {
		v := r.Verdicts[p]
		verdictRows = append(verdictRows, []string{p, string(v.Kind), strings.Join(v.Symbols, " "), v.Reason})
	}
	parts = append(parts, formatTabular("verdicts", []string{"path", "verdict", "symbols", "reason"}, verdictRows))

	if rows := patchRows(r.OursDiff); len(rows) > 0 {
		parts = append(parts, formatTabular("ours_patches", patchColumns, rows))
	}
	if rows := patchRows(r.TheirsDiff); len(rows) > 0 {
		parts = append(parts, formatTabular("theirs_patches", patchColumns, rows))
	}

	if len(r.Gaps) > 0 {
		parts = append(parts, formatGaps(r.Gaps))
	}
	return strings.Join(parts, "\n")
}

// EncodeDiff converts a two-revision symbol diff into TOON format. Only
// changed symbols are listed; patches follow as quoted values.
func EncodeDiff(d *model.DiffReport) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("old: %s", encodeValue(d.Old)))
	parts = append(parts, fmt.Sprintf("new: %s", encodeValue(d.New)))
	parts = append(parts, formatTabular("changes", changeColumns, changeRows(d.Diff)))

	if rows := patchRows(d.Diff); len(rows) > 0 {
		parts = append(parts, formatTabular("patches", patchColumns, rows))
	}

	if len(d.Gaps) > 0 {
		parts = append(parts, formatGaps(d.Gaps))
	}
	return strings.Join(parts, "\n")
}

// EncodeGhosts lists ghost references.
func EncodeGhosts(refs []ghost.Ref) string {
	rows := make([][]string, 0, len(refs))
	for _, g := range refs {
		rows = append(rows, []string{g.Name, g.Revision})
	}
	return formatTabular("ghosts", []string{"name", "revision"}, rows)
}

func changeRows(d model.SymbolDiff) [][]string {
	var rows [][]string
	for _, e := range d.Changed() {
		rows = append(rows, []string{
			e.ID.Path,
			e.ID.Name,
			string(e.Kind),
			shortFingerprint(e.OldFingerprint),
			shortFingerprint(e.NewFingerprint),
		})
	}
	return rows
}

func patchRows(d model.SymbolDiff) [][]string {
	var rows [][]string
	for _, e := range d.Changed() {
		if e.Patch != "" {
			rows = append(rows, []string{e.ID.Path, e.ID.Name, e.Patch})
		}
	}
	return rows
}

func shortFingerprint(f model.Fingerprint) string {
	if f.IsZero() {
		return ""
	}
	return f.Short()
}

func formatGaps(gaps []model.Gap) string {
	rows := make([][]string, 0, len(gaps))
	for _, g := range gaps {
		rows = append(rows, []string{g.Path, g.Revision, string(g.Code), g.Message})
	}
	return formatTabular("gaps", []string{"path", "revision", "code", "message"}, rows)
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
