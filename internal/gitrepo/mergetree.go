package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/phobologic/bit/internal/mergesim"
)

// mergeTreeOutput is the parsed result of
// `git merge-tree --write-tree -z --name-only --messages`.
type mergeTreeOutput struct {
	tree       string
	conflicted []string
	messages   []mergeMessage
}

type mergeMessage struct {
	paths   []string
	kind    string
	message string
}

// MergeTree merges ours and theirs over base without touching the working
// tree, the index or any reference. git writes the merged blobs and trees to
// the object database, where they stay unreachable; those objects are read
// back to return the merged content of every path either side touched.
func (r *Repo) MergeTree(ctx context.Context, base, ours, theirs string) ([]mergesim.PathResult, error) {
	if err := requireGit(mergeTreeMinVersion); err != nil {
		return nil, err
	}

	out, err := r.runGit(ctx, []string{
		"merge-tree", "--write-tree", "-z", "--name-only", "--messages",
		"--merge-base=" + base, ours, theirs,
	}, true)
	if err != nil {
		return nil, err
	}
	parsed, err := parseMergeTree(out)
	if err != nil {
		return nil, err
	}

	touched := make(map[string]struct{})
	for _, side := range []string{ours, theirs} {
		paths, err := r.ChangedPaths(ctx, base, side)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			touched[p] = struct{}{}
		}
	}
	for _, p := range parsed.conflicted {
		touched[p] = struct{}{}
	}

	conflicts := make(map[string][]mergesim.Conflict)
	for _, m := range parsed.messages {
		if !strings.HasPrefix(m.kind, "CONFLICT") {
			continue
		}
		for _, p := range m.paths {
			conflicts[p] = append(conflicts[p], mergesim.Conflict{Type: m.kind, Message: m.message})
			touched[p] = struct{}{}
		}
	}
	// A conflicted path without a typed message still has content markers.
	for _, p := range parsed.conflicted {
		if len(conflicts[p]) == 0 {
			conflicts[p] = []mergesim.Conflict{{Type: "CONFLICT (contents)"}}
		}
	}

	paths := make([]string, 0, len(touched))
	for p := range touched {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	r.mu.Lock()
	defer r.mu.Unlock()
	tree, err := r.repo.TreeObject(plumbing.NewHash(parsed.tree))
	if err != nil {
		return nil, fmt.Errorf("load merged tree %s: %w", short(parsed.tree), err)
	}

	results := make([]mergesim.PathResult, 0, len(paths))
	for _, p := range paths {
		res := mergesim.PathResult{Path: p, Conflicts: conflicts[p]}
		f, err := tree.File(p)
		switch {
		case errors.Is(err, object.ErrFileNotFound):
			res.Deleted = true
		case err != nil:
			return nil, fmt.Errorf("read merged %s: %w", p, err)
		default:
			contents, err := f.Contents()
			if err != nil {
				return nil, fmt.Errorf("read merged %s: %w", p, err)
			}
			res.Content = []byte(contents)
		}
		results = append(results, res)
	}

	r.logger.Debug("merge-tree finished",
		zap.String("tree", parsed.tree),
		zap.Int("touched", len(results)),
		zap.Int("conflicted", len(parsed.conflicted)),
	)
	return results, nil
}

// runGit runs git in the repository root. With allowExit1, exit status 1
// is accepted as success; merge-tree uses it to report conflicts.
func (r *Repo) runGit(ctx context.Context, args []string, allowExit1 bool) ([]byte, error) {
	cmdArgs := append([]string{"-C", r.root}, args...)
	cmd := exec.CommandContext(ctx, "git", cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if allowExit1 && errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && stdout.Len() > 0 {
			return stdout.Bytes(), nil
		}
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("git %s: %v: %s", args[0], err, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("git %s: %w", args[0], err)
	}
	return stdout.Bytes(), nil
}

// parseMergeTree reads NUL-separated merge-tree output: the tree id, the
// conflicted paths, an empty field, then message records of the form
// count, paths..., type, message.
func parseMergeTree(out []byte) (mergeTreeOutput, error) {
	fields := strings.Split(string(out), "\x00")
	if len(fields) == 0 || !plumbing.IsHash(strings.TrimSpace(fields[0])) {
		return mergeTreeOutput{}, fmt.Errorf("unexpected merge-tree output: %q", truncate(string(out), 80))
	}
	res := mergeTreeOutput{tree: strings.TrimSpace(fields[0])}

	i := 1
	for ; i < len(fields) && fields[i] != ""; i++ {
		res.conflicted = append(res.conflicted, fields[i])
	}
	i++ // separator

	for i < len(fields) {
		n, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil || n < 0 || i+n+2 >= len(fields) {
			break
		}
		m := mergeMessage{
			paths: append([]string(nil), fields[i+1:i+1+n]...),
			kind:  fields[i+1+n],
			// Messages are newline-terminated even in -z mode.
			message: strings.TrimSpace(fields[i+2+n]),
		}
		res.messages = append(res.messages, m)
		i += n + 3
	}
	return res, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
