package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/bit/internal/ghost"
	"github.com/phobologic/bit/internal/model"
	"github.com/phobologic/bit/internal/toon"
)

var formats = []string{"toon", "json", "yaml"}

type changeView struct {
	Path   string `json:"path" yaml:"path"`
	Symbol string `json:"symbol" yaml:"symbol"`
	Change string `json:"change" yaml:"change"`
	Old    string `json:"old,omitempty" yaml:"old,omitempty"`
	New    string `json:"new,omitempty" yaml:"new,omitempty"`
	Patch  string `json:"patch,omitempty" yaml:"patch,omitempty"`
}

type reportView struct {
	Base       string               `json:"base" yaml:"base"`
	Ours       string               `json:"ours" yaml:"ours"`
	Theirs     string               `json:"theirs" yaml:"theirs"`
	Status     model.Status         `json:"status" yaml:"status"`
	Complete   bool                 `json:"complete" yaml:"complete"`
	OursDiff   []changeView         `json:"oursChanges" yaml:"oursChanges"`
	TheirsDiff []changeView         `json:"theirsChanges" yaml:"theirsChanges"`
	Outcomes   []model.MergeOutcome `json:"outcomes" yaml:"outcomes"`
	Verdicts   []model.Verdict      `json:"verdicts" yaml:"verdicts"`
	Gaps       []model.Gap          `json:"gaps,omitempty" yaml:"gaps,omitempty"`
}

type diffView struct {
	Old      string       `json:"old" yaml:"old"`
	New      string       `json:"new" yaml:"new"`
	Complete bool         `json:"complete" yaml:"complete"`
	Changes  []changeView `json:"changes" yaml:"changes"`
	Gaps     []model.Gap  `json:"gaps,omitempty" yaml:"gaps,omitempty"`
}

func changes(d model.SymbolDiff) []changeView {
	out := []changeView{}
	for _, e := range d.Changed() {
		v := changeView{Path: e.ID.Path, Symbol: e.ID.Name, Change: string(e.Kind), Patch: e.Patch}
		if !e.OldFingerprint.IsZero() {
			v.Old = e.OldFingerprint.String()
		}
		if !e.NewFingerprint.IsZero() {
			v.New = e.NewFingerprint.String()
		}
		out = append(out, v)
	}
	return out
}

func viewReport(r *model.Report) reportView {
	v := reportView{
		Base:       r.Base,
		Ours:       r.Ours,
		Theirs:     r.Theirs,
		Status:     r.Status,
		Complete:   r.Complete(),
		OursDiff:   changes(r.OursDiff),
		TheirsDiff: changes(r.TheirsDiff),
		Outcomes:   []model.MergeOutcome{},
		Verdicts:   []model.Verdict{},
		Gaps:       r.Gaps,
	}
	for _, p := range r.Paths() {
		v.Outcomes = append(v.Outcomes, r.Outcomes[p])
	}
	for _, vd := range r.Verdicts {
		v.Verdicts = append(v.Verdicts, vd)
	}
	sort.Slice(v.Verdicts, func(i, j int) bool { return v.Verdicts[i].Path < v.Verdicts[j].Path })
	return v
}

func viewDiff(d *model.DiffReport) diffView {
	return diffView{
		Old:      d.Old,
		New:      d.New,
		Complete: len(d.Gaps) == 0,
		Changes:  changes(d.Diff),
		Gaps:     d.Gaps,
	}
}

// writeOutput encodes v in format. toonText is used for the toon format.
func writeOutput(w io.Writer, format string, v any, toonText func() string) error {
	switch format {
	case "toon", "":
		_, err := fmt.Fprintln(w, toonText())
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q (want one of %v)", format, formats)
}

func writeReport(w io.Writer, format string, r *model.Report) error {
	return writeOutput(w, format, viewReport(r), func() string { return toon.EncodeReport(r) })
}

func writeDiff(w io.Writer, format string, d *model.DiffReport) error {
	return writeOutput(w, format, viewDiff(d), func() string { return toon.EncodeDiff(d) })
}

func writeGhosts(w io.Writer, format string, refs []ghost.Ref) error {
	if refs == nil {
		refs = []ghost.Ref{}
	}
	return writeOutput(w, format, refs, func() string { return toon.EncodeGhosts(refs) })
}
