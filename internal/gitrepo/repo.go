// Package gitrepo is the version-control collaborator: revision lookup,
// file reads at a revision, merge bases, the reference namespace used for
// ghosts, and the in-memory three-way merge.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/phobologic/bit/internal/model"
)

// Worktree is the pseudo-revision naming the files on disk.
const Worktree = model.Worktree

// Repo wraps a repository opened with go-git. go-git's storage is not safe
// for concurrent use, so every access goes through mu.
type Repo struct {
	mu     sync.Mutex
	repo   *gitlib.Repository
	root   string
	logger *zap.Logger
}

// Open finds the repository containing path.
func Open(path string, logger *zap.Logger) (*Repo, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	repo, err := gitlib.PlainOpenWithOptions(abs, &gitlib.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	root := abs
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}
	return &Repo{repo: repo, root: root, logger: logger}, nil
}

// SetLogger replaces the logger. It must be called before the Repo is
// shared.
func (r *Repo) SetLogger(logger *zap.Logger) {
	r.logger = logger
}

// Root returns the top-level directory of the working tree.
func (r *Repo) Root() string {
	return r.root
}

// Resolve turns a revision expression into a commit hash. Worktree is
// returned unchanged.
func (r *Repo) Resolve(_ context.Context, rev string) (string, error) {
	if rev == Worktree {
		return Worktree, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	h, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", rev, err)
	}
	return h.String(), nil
}

// ReadFile returns the contents of path at rev. ok is false when the file
// does not exist there.
func (r *Repo) ReadFile(_ context.Context, rev, path string) (data []byte, ok bool, err error) {
	if rev == Worktree {
		data, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(path)))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return data, true, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	tree, err := r.tree(rev)
	if err != nil {
		return nil, false, err
	}
	f, err := tree.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s at %s: %w", path, short(rev), err)
	}
	contents, err := f.Contents()
	if err != nil {
		return nil, false, fmt.Errorf("read %s at %s: %w", path, short(rev), err)
	}
	return []byte(contents), true, nil
}

// ChangedPaths lists every path whose content differs between from and to,
// sorted. to may be Worktree; from must be a commit.
func (r *Repo) ChangedPaths(_ context.Context, from, to string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := make(map[string]struct{})
	target := to
	if to == Worktree {
		head, err := r.repo.Head()
		if err != nil {
			return nil, fmt.Errorf("resolve HEAD: %w", err)
		}
		target = head.Hash().String()
		if err := r.worktreeChanges(paths); err != nil {
			return nil, err
		}
	}

	if from != target {
		a, err := r.tree(from)
		if err != nil {
			return nil, err
		}
		b, err := r.tree(target)
		if err != nil {
			return nil, err
		}
		changes, err := object.DiffTree(a, b)
		if err != nil {
			return nil, fmt.Errorf("diff %s..%s: %w", short(from), short(target), err)
		}
		for _, c := range changes {
			if c.From.Name != "" {
				paths[c.From.Name] = struct{}{}
			}
			if c.To.Name != "" {
				paths[c.To.Name] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(paths))
	for p := range paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (r *Repo) worktreeChanges(paths map[string]struct{}) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("worktree status: %w", err)
	}
	for p, st := range status {
		if st.Worktree != gitlib.Unmodified || st.Staging != gitlib.Unmodified {
			paths[p] = struct{}{}
		}
	}
	return nil
}

// MergeBase returns the best common ancestor of two commits.
func (r *Repo) MergeBase(_ context.Context, a, b string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ca, err := r.commit(a)
	if err != nil {
		return "", err
	}
	cb, err := r.commit(b)
	if err != nil {
		return "", err
	}
	bases, err := ca.MergeBase(cb)
	if err != nil {
		return "", fmt.Errorf("merge base of %s and %s: %w", short(a), short(b), err)
	}
	if len(bases) == 0 {
		return "", fmt.Errorf("%s and %s share no history", short(a), short(b))
	}
	return bases[0].Hash.String(), nil
}

// LookupRef reads a reference by full name.
func (r *Repo) LookupRef(_ context.Context, name string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, err := r.repo.Reference(plumbing.ReferenceName(name), false)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return ref.Hash().String(), true, nil
}

// SetRef points a reference at a commit, creating or overwriting it.
func (r *Repo) SetRef(_ context.Context, name, rev string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, err := r.commit(rev)
	if err != nil {
		return err
	}
	ref := plumbing.NewHashReference(plumbing.ReferenceName(name), c.Hash)
	return r.repo.Storer.SetReference(ref)
}

// DeleteRef removes a reference.
func (r *Repo) DeleteRef(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.repo.Storer.RemoveReference(plumbing.ReferenceName(name))
}

// ListRefs returns every direct reference whose full name starts with
// prefix, mapped to its target hash.
func (r *Repo) ListRefs(_ context.Context, prefix string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	refs, err := r.repo.References()
	if err != nil {
		return nil, err
	}
	defer refs.Close()
	out := make(map[string]string)
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		if name := ref.Name().String(); strings.HasPrefix(name, prefix) {
			out[name] = ref.Hash().String()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) commit(rev string) (*object.Commit, error) {
	if rev == Worktree {
		return nil, fmt.Errorf("%s is not a commit", Worktree)
	}
	h, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", rev, err)
	}
	c, err := r.repo.CommitObject(*h)
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", short(rev), err)
	}
	return c, nil
}

func (r *Repo) tree(rev string) (*object.Tree, error) {
	c, err := r.commit(rev)
	if err != nil {
		return nil, err
	}
	t, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree of %s: %w", short(rev), err)
	}
	return t, nil
}

func short(rev string) string {
	if len(rev) == 40 && plumbing.IsHash(rev) {
		return rev[:8]
	}
	return rev
}
