package gitrepo

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phobologic/bit/internal/mergesim"
	"github.com/phobologic/bit/internal/model"
)

func skipWithoutMergeTree(t *testing.T) {
	t.Helper()
	if err := requireGit(mergeTreeMinVersion); err != nil {
		t.Skipf("merge-tree unavailable: %v", err)
	}
}

func TestParseMergeTree(t *testing.T) {
	t.Parallel()

	tree := strings.Repeat("a", 40)
	out := tree + "\x00" +
		"app.py\x00" +
		"gone.py\x00" +
		"\x00" +
		"1\x00app.py\x00Auto-merging\x00Auto-merging app.py\n\x00" +
		"1\x00app.py\x00CONFLICT (contents)\x00CONFLICT (content): Merge conflict in app.py\n\x00" +
		"1\x00gone.py\x00CONFLICT (modify/delete)\x00CONFLICT (modify/delete): gone.py deleted in b and modified in a.\n\x00"

	got, err := parseMergeTree([]byte(out))
	require.NoError(t, err)
	require.Equal(t, tree, got.tree)
	require.Equal(t, []string{"app.py", "gone.py"}, got.conflicted)
	require.Len(t, got.messages, 3)
	require.Equal(t, "CONFLICT (contents)", got.messages[1].kind)
	require.Equal(t, []string{"gone.py"}, got.messages[2].paths)
	require.Equal(t, "CONFLICT (modify/delete): gone.py deleted in b and modified in a.", got.messages[2].message)

	clean, err := parseMergeTree([]byte(tree + "\x00\x00"))
	require.NoError(t, err)
	require.Empty(t, clean.conflicted)
	require.Empty(t, clean.messages)

	_, err = parseMergeTree([]byte("fatal: not a tree"))
	require.Error(t, err)
}

func TestParseGitVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want gitVersion
		ok   bool
	}{
		{"git version 2.44.0\n", gitVersion{2, 44, 0}, true},
		{"git version 2.39.3 (Apple Git-146)", gitVersion{2, 39, 3}, true},
		{"git version 2.40.1.windows.1", gitVersion{2, 40, 1}, true},
		{"git version 2.41", gitVersion{2, 41, 0}, true},
		{"nonsense", gitVersion{}, false},
	}
	for _, tt := range tests {
		got, ok := parseGitVersion(tt.in)
		require.Equal(t, tt.ok, ok, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
	require.True(t, gitVersion{2, 39, 9}.less(mergeTreeMinVersion))
	require.False(t, gitVersion{2, 40, 0}.less(mergeTreeMinVersion))
}

// divergedFixture builds base, then ours on master and theirs on a branch.
func divergedFixture(t *testing.T) (f *fixture, base, ours, theirs string) {
	f = newFixture(t)
	f.write("app.py", "def f(x):\n    return x + 1\n\n\ndef g():\n    return 0\n")
	f.write("other.py", "def h():\n    return 1\n")
	f.write("doomed.py", "def d():\n    return 1\n")
	base = f.commit("base")

	f.checkout("theirs", true)
	f.write("app.py", "def f(x):\n    return x + 2\n\n\ndef g():\n    return 0\n")
	f.remove("doomed.py")
	theirs = f.commit("theirs")

	f.checkout("master", false)
	f.write("app.py", "def f(x):\n    return x + 3\n\n\ndef g():\n    return 0\n")
	f.write("other.py", "def h():\n    return 2\n")
	f.write("doomed.py", "def d():\n    return 2\n")
	ours = f.commit("ours")
	return f, base, ours, theirs
}

func TestMergeTree(t *testing.T) {
	t.Parallel()
	skipWithoutMergeTree(t)
	ctx := context.Background()
	f, base, ours, theirs := divergedFixture(t)
	r := f.open()

	results, err := r.MergeTree(ctx, base, ours, theirs)
	require.NoError(t, err)

	byPath := map[string]model.MergeOutcome{}
	for _, res := range results {
		byPath[res.Path] = mergesim.Classify(res)
	}
	require.Len(t, byPath, 3)
	require.Equal(t, model.TextConflict, byPath["app.py"].Kind)
	require.Len(t, byPath["app.py"].Hunks, 1)
	require.Equal(t, model.Clean, byPath["other.py"].Kind)
	require.Equal(t, "def h():\n    return 2\n", byPath["other.py"].Content)
	require.Equal(t, model.Unmergeable, byPath["doomed.py"].Kind)
	require.Contains(t, byPath["doomed.py"].Reason, "doomed.py")
}

func TestMergeTreeClean(t *testing.T) {
	t.Parallel()
	skipWithoutMergeTree(t)
	ctx := context.Background()
	f := newFixture(t)
	f.write("a.py", "a = 1\n")
	f.write("b.py", "b = 1\n")
	base := f.commit("base")
	f.checkout("theirs", true)
	f.write("b.py", "b = 2\n")
	theirs := f.commit("theirs")
	f.checkout("master", false)
	f.write("a.py", "a = 2\n")
	ours := f.commit("ours")
	r := f.open()

	results, err := r.MergeTree(ctx, base, ours, theirs)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		require.Empty(t, res.Conflicts, res.Path)
	}
}

func TestMergeTreeLeavesRepositoryUntouched(t *testing.T) {
	t.Parallel()
	skipWithoutMergeTree(t)
	ctx := context.Background()
	f, base, ours, theirs := divergedFixture(t)
	r := f.open()

	before := snapshot(t, r, f.dir)
	_, err := r.MergeTree(ctx, base, ours, theirs)
	require.NoError(t, err)
	after := snapshot(t, r, f.dir)
	require.Equal(t, before, after)
}

// snapshot captures references, the index and every working tree file.
func snapshot(t *testing.T, r *Repo, dir string) map[string]string {
	t.Helper()
	ctx := context.Background()
	state := map[string]string{}

	refs, err := r.ListRefs(ctx, "")
	require.NoError(t, err)
	for name, h := range refs {
		state["ref:"+name] = h
	}
	head, err := os.ReadFile(filepath.Join(dir, ".git", "HEAD"))
	require.NoError(t, err)
	state["HEAD"] = string(head)
	index, err := os.ReadFile(filepath.Join(dir, ".git", "index"))
	require.NoError(t, err)
	state["index"] = string(index)

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		state["file:"+filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return state
}

func TestMergeTreeFailure(t *testing.T) {
	t.Parallel()
	skipWithoutMergeTree(t)
	f := newFixture(t)
	f.write("a.py", "a = 1\n")
	c := f.commit("one")
	r := f.open()

	_, err := r.MergeTree(context.Background(), c, c, strings.Repeat("0", 40))
	require.Error(t, err)
}
