package ghost

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// memRefs is an in-memory reference namespace that fails the test if two
// mutations of the same reference overlap.
type memRefs struct {
	mu       sync.Mutex
	refs     map[string]string
	inFlight map[string]int
	overlap  bool
}

func newMemRefs() *memRefs {
	return &memRefs{refs: map[string]string{}, inFlight: map[string]int{}}
}

func (m *memRefs) LookupRef(_ context.Context, name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rev, ok := m.refs[name]
	return rev, ok, nil
}

func (m *memRefs) SetRef(_ context.Context, name, rev string) error {
	m.enter(name)
	defer m.leave(name)
	m.mu.Lock()
	m.refs[name] = rev
	m.mu.Unlock()
	return nil
}

func (m *memRefs) DeleteRef(_ context.Context, name string) error {
	m.enter(name)
	defer m.leave(name)
	m.mu.Lock()
	delete(m.refs, name)
	m.mu.Unlock()
	return nil
}

func (m *memRefs) ListRefs(_ context.Context, prefix string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for k, v := range m.refs {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (m *memRefs) enter(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight[name]++
	if m.inFlight[name] > 1 {
		m.overlap = true
	}
}

func (m *memRefs) leave(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight[name]--
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	refs := newMemRefs()
	s := NewStore(refs)

	if _, err := s.Create(ctx, "wip", "rev1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got, err := s.Resolve(ctx, "wip"); err != nil || got != "rev1" {
		t.Fatalf("Resolve = %q, %v; want rev1", got, err)
	}
	if _, ok := refs.refs["refs/bit/ghosts/wip"]; !ok {
		t.Errorf("reference not stored under the ghost prefix: %v", refs.refs)
	}

	if _, err := s.Move(ctx, "wip", "rev2"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got, _ := s.Resolve(ctx, "wip"); got != "rev2" {
		t.Errorf("after Move, Resolve = %q, want rev2", got)
	}

	if err := s.Delete(ctx, "wip"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Resolve(ctx, "wip"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after Delete, expected ErrNotFound, got %v", err)
	}
}

func TestCreateExisting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore(newMemRefs())

	if _, err := s.Create(ctx, "snap", "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(ctx, "snap", "b"); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if got, _ := s.Resolve(ctx, "snap"); got != "a" {
		t.Errorf("failed Create changed the ghost to %q", got)
	}
}

func TestMissingGhost(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore(newMemRefs())

	if _, err := s.Move(ctx, "nope", "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Move: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestValidateName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ok   bool
	}{
		{"wip", true},
		{"feature/login-v2", true},
		{"snap_1.2", true},
		{"", false},
		{".hidden", false},
		{"a..b", false},
		{"a/", false},
		{"/a", false},
		{"a b", false},
		{"x.lock", false},
		{"a~1", false},
		{"a:b", false},
	}
	for _, tt := range tests {
		err := ValidateName(tt.name)
		if tt.ok && err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", tt.name, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalidName", tt.name, err)
		}
	}
}

func TestGenerateNameIsValid(t *testing.T) {
	t.Parallel()
	a, b := GenerateName(), GenerateName()
	if err := ValidateName(a); err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("generated names collide: %s", a)
	}
}

func TestList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	refs := newMemRefs()
	refs.refs["refs/heads/main"] = "m"
	s := NewStore(refs)

	for _, name := range []string{"zeta", "alpha", "mid/one"} {
		if _, err := s.Create(ctx, name, "rev-"+name); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []Ref{
		{Name: "alpha", Revision: "rev-alpha"},
		{Name: "mid/one", Revision: "rev-mid/one"},
		{Name: "zeta", Revision: "rev-zeta"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentMovesAreSerialized(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	refs := newMemRefs()
	s := NewStore(refs)
	if _, err := s.Create(ctx, "hot", "r0"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(ctx, "cold", "c0"); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := s.Move(ctx, "hot", fmt.Sprintf("r%d", i)); err != nil {
				t.Error(err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := s.Move(ctx, "cold", fmt.Sprintf("c%d", i)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if refs.overlap {
		t.Error("mutations of one ghost overlapped")
	}
	if len(s.locks.locks) != 0 {
		t.Errorf("lock table not drained: %d entries", len(s.locks.locks))
	}
}
