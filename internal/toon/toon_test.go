package toon

import (
	"strings"
	"testing"

	"github.com/phobologic/bit/internal/ghost"
	"github.com/phobologic/bit/internal/model"
)

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "hello", "hello"},
		{"leading space", " hello", `" hello"`},
		{"trailing space", "hello ", `"hello "`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"true keyword", "true", `"true"`},
		{"True keyword", "True", `"True"`},
		{"false keyword", "false", `"false"`},
		{"null keyword", "null", `"null"`},
		{"integer", "42", "42"},
		{"negative integer", "-1", "-1"},
		{"float", "3.14", "3.14"},
		{"zero", "0", "0"},
		{"leading zero invalid", "01", "01"},
		{"comma", "a,b", `"a,b"`},
		{"colon", "a:b", `"a:b"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"bracket", "a[b", `"a[b"`},
		{"brace", "a{b", `"a{b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"path", "src/main.py", "src/main.py"},
		{"dotted name", "Foo.__init__", "Foo.__init__"},
		{"signature no special", "run(self) -> None", "run(self) -> None"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := encodeValue(tt.in)
			if got != tt.want {
				t.Errorf("encodeValue(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncodeReport(t *testing.T) {
	t.Parallel()

	f := model.SymbolID{Path: "app.py", Name: "f"}
	g := model.SymbolID{Path: "app.py", Name: "Greeter.greet"}
	r := &model.Report{
		Base:   "b1",
		Ours:   "o1",
		Theirs: "t1",
		OursDiff: model.SymbolDiff{
			f: {ID: f, Kind: model.Modified, OldFingerprint: model.Fingerprint{0xab}, NewFingerprint: model.Fingerprint{0xcd}, Patch: "-return 1\n+return 2\n"},
			g: {ID: g, Kind: model.Unchanged},
		},
		TheirsDiff: model.SymbolDiff{
			f: {ID: f, Kind: model.Removed, OldFingerprint: model.Fingerprint{0xab}},
		},
		Outcomes: map[string]model.MergeOutcome{
			"b.py":   {Path: "b.py", Kind: model.Unmergeable, Reason: "CONFLICT (modify/delete): b.py deleted"},
			"app.py": {Path: "app.py", Kind: model.TextConflict, Hunks: []model.Hunk{{StartLine: 2}}},
		},
		Verdicts: map[string]model.Verdict{
			"app.py": {Path: "app.py", Kind: model.LogicConflict, Symbols: []string{"f", "h"}},
			"c.py":   {Path: "c.py", Kind: model.LogicConflict, Reason: "symbols unknown: parse_error"},
		},
		Status: model.LogicConflictsPresent,
	}

	got := EncodeReport(r)
	want := strings.Join([]string{
		"base: b1",
		"ours: o1",
		"theirs: t1",
		"status: logic_conflicts",
		"ours_changes[1]{path,symbol,change,old,new}:",
		"  app.py,f,modified,ab0000000000,cd0000000000",
		"theirs_changes[1]{path,symbol,change,old,new}:",
		`  app.py,f,removed,ab0000000000,""`,
		"outcomes[2]{path,outcome,hunks,reason}:",
		`  app.py,text_conflict,1,""`,
		`  b.py,unmergeable,0,"CONFLICT (modify/delete): b.py deleted"`,
		"verdicts[2]{path,verdict,symbols,reason}:",
		`  app.py,logic,f h,""`,
		`  c.py,logic,"","symbols unknown: parse_error"`,
		"ours_patches[1]{path,symbol,patch}:",
		`  app.py,f,"-return 1\n+return 2\n"`,
	}, "\n")
	if got != want {
		t.Errorf("EncodeReport mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestEncodeReportGaps(t *testing.T) {
	t.Parallel()

	r := &model.Report{
		Status: model.StatusUnknown,
		Gaps: []model.Gap{
			{Path: "x.py", Revision: "o1", Code: model.GapParseError, Message: "x.py:3:1: syntax error"},
			{Code: model.GapSimulationUnavailable, Message: "timed out"},
		},
	}
	got := EncodeReport(r)
	for _, line := range []string{
		"status: unknown",
		"ours_changes[0]{path,symbol,change,old,new}:",
		"outcomes[0]{path,outcome,hunks,reason}:",
		"gaps[2]{path,revision,code,message}:",
		`  x.py,o1,parse_error,"x.py:3:1: syntax error"`,
		`  "","",simulation_unavailable,timed out`,
	} {
		if !strings.Contains(got, line+"\n") && !strings.HasSuffix(got, line) {
			t.Errorf("missing line %q in:\n%s", line, got)
		}
	}
}

func TestEncodeDiff(t *testing.T) {
	t.Parallel()

	f := model.SymbolID{Path: "app.py", Name: "f"}
	h := model.SymbolID{Path: "app.py", Name: "h"}
	d := &model.DiffReport{
		Old: "HEAD",
		New: "WORKTREE",
		Diff: model.SymbolDiff{
			f: {ID: f, Kind: model.Modified, Patch: "-return 1\n+return 2\n"},
			h: {ID: h, Kind: model.Added, NewFingerprint: model.Fingerprint{0x12}},
		},
	}
	got := EncodeDiff(d)
	lines := strings.Split(got, "\n")
	if lines[0] != "old: HEAD" || lines[1] != "new: WORKTREE" {
		t.Errorf("header: got %q", lines[:2])
	}
	if lines[2] != "changes[2]{path,symbol,change,old,new}:" {
		t.Errorf("line 2: got %q", lines[2])
	}
	if lines[4] != `  app.py,h,added,"",120000000000` {
		t.Errorf("line 4: got %q", lines[4])
	}
	if lines[5] != "patches[1]{path,symbol,patch}:" {
		t.Errorf("line 5: got %q", lines[5])
	}
	if lines[6] != `  app.py,f,"-return 1\n+return 2\n"` {
		t.Errorf("line 6: got %q", lines[6])
	}
}

func TestEncodeGhosts(t *testing.T) {
	t.Parallel()

	got := EncodeGhosts([]ghost.Ref{{Name: "wip", Revision: "abc"}, {Name: "exp/1", Revision: "def"}})
	want := "ghosts[2]{name,revision}:\n  wip,abc\n  exp/1,def"
	if got != want {
		t.Errorf("EncodeGhosts = %q, want %q", got, want)
	}
	if got := EncodeGhosts(nil); got != "ghosts[0]{name,revision}:" {
		t.Errorf("empty: got %q", got)
	}
}
