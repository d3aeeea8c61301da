// Package ghost manages hidden snapshot references. Ghosts live under a
// reserved prefix of the collaborator's flat reference namespace, so they
// never show up in branch or tag listings; the prefix is the only thing
// that sets them apart from any other reference.
package ghost

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Prefix is the reserved namespace every ghost reference lives under.
const Prefix = "refs/bit/ghosts/"

var (
	// ErrNotFound reports that no ghost with the given name exists.
	ErrNotFound = errors.New("ghost reference not found")
	// ErrExists reports that Create was called for a name already in use.
	ErrExists = errors.New("ghost reference already exists")
	// ErrInvalidName reports a name that cannot be stored as a reference.
	ErrInvalidName = errors.New("invalid ghost name")
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*(/[A-Za-z0-9_-][A-Za-z0-9._-]*)*$`)

// RefStore is the collaborator's flat reference namespace. Names passed to
// it are full reference names.
type RefStore interface {
	LookupRef(ctx context.Context, name string) (rev string, ok bool, err error)
	SetRef(ctx context.Context, name, rev string) error
	DeleteRef(ctx context.Context, name string) error
	ListRefs(ctx context.Context, prefix string) (map[string]string, error)
}

// Ref is one ghost: its short name and the revision it points at.
type Ref struct {
	Name     string `json:"name" yaml:"name"`
	Revision string `json:"revision" yaml:"revision"`
}

// Store enforces the ghost prefix on every reference operation. Mutations
// of one name are serialized; different names proceed independently.
type Store struct {
	refs  RefStore
	locks keyedMutex
}

// NewStore wraps a reference namespace.
func NewStore(refs RefStore) *Store {
	return &Store{refs: refs}
}

// GenerateName returns a fresh name for a ghost created without one.
func GenerateName() string {
	return "ghost-" + uuid.NewString()[:8]
}

// ValidateName checks that name can be stored under the ghost prefix.
func ValidateName(name string) error {
	if !nameRe.MatchString(name) || strings.Contains(name, "..") || strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// RefName returns the full reference name for a ghost.
func RefName(name string) string {
	return Prefix + name
}

// Create points a new ghost at rev. It fails with ErrExists if the name is
// already taken; use Move to re-point an existing ghost.
func (s *Store) Create(ctx context.Context, name, rev string) (Ref, error) {
	if err := ValidateName(name); err != nil {
		return Ref{}, err
	}
	defer s.locks.lock(name)()

	_, ok, err := s.refs.LookupRef(ctx, RefName(name))
	if err != nil {
		return Ref{}, fmt.Errorf("reading ghost %s: %w", name, err)
	}
	if ok {
		return Ref{}, fmt.Errorf("%w: %s", ErrExists, name)
	}
	if err := s.refs.SetRef(ctx, RefName(name), rev); err != nil {
		return Ref{}, fmt.Errorf("creating ghost %s: %w", name, err)
	}
	return Ref{Name: name, Revision: rev}, nil
}

// Move force-updates an existing ghost to rev.
func (s *Store) Move(ctx context.Context, name, rev string) (Ref, error) {
	if err := ValidateName(name); err != nil {
		return Ref{}, err
	}
	defer s.locks.lock(name)()

	if _, err := s.resolveLocked(ctx, name); err != nil {
		return Ref{}, err
	}
	if err := s.refs.SetRef(ctx, RefName(name), rev); err != nil {
		return Ref{}, fmt.Errorf("moving ghost %s: %w", name, err)
	}
	return Ref{Name: name, Revision: rev}, nil
}

// Delete removes a ghost.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	defer s.locks.lock(name)()

	if _, err := s.resolveLocked(ctx, name); err != nil {
		return err
	}
	if err := s.refs.DeleteRef(ctx, RefName(name)); err != nil {
		return fmt.Errorf("deleting ghost %s: %w", name, err)
	}
	return nil
}

// Resolve returns the revision a ghost points at, or ErrNotFound.
func (s *Store) Resolve(ctx context.Context, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	defer s.locks.lock(name)()
	return s.resolveLocked(ctx, name)
}

func (s *Store) resolveLocked(ctx context.Context, name string) (string, error) {
	rev, ok, err := s.refs.LookupRef(ctx, RefName(name))
	if err != nil {
		return "", fmt.Errorf("reading ghost %s: %w", name, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return rev, nil
}

// List returns every ghost sorted by name.
func (s *Store) List(ctx context.Context) ([]Ref, error) {
	refs, err := s.refs.ListRefs(ctx, Prefix)
	if err != nil {
		return nil, fmt.Errorf("listing ghosts: %w", err)
	}
	out := make([]Ref, 0, len(refs))
	for full, rev := range refs {
		name, ok := strings.CutPrefix(full, Prefix)
		if !ok {
			continue
		}
		out = append(out, Ref{Name: name, Revision: rev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	waiters int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.waiters++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.waiters--
		if l.waiters == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
