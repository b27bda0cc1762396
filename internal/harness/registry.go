package harness

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps test names to test cases. It is populated at startup and
// frozen before a phase is dispatched.
type Registry struct {
	mu     sync.RWMutex
	cases  map[string]TestCase
	frozen bool
}

// NewRegistry creates an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{cases: make(map[string]TestCase)}
}

// Register adds a test case. Both behaviors are required.
func (r *Registry) Register(tc TestCase) error {
	if tc.Name == "" {
		return fmt.Errorf("test case name is required")
	}
	if tc.Exercise == nil || tc.Verify == nil {
		return fmt.Errorf("test %q: both exercise and verify behaviors are required", tc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("register %q: %w", tc.Name, ErrRegistryFrozen)
	}
	if existing, ok := r.cases[tc.Name]; ok {
		return &DuplicateTestError{Name: tc.Name, Existing: existing.Source, Incoming: tc.Source}
	}
	r.cases[tc.Name] = tc
	return nil
}

// Freeze ends registration. It is safe to call more than once.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Lookup returns the named test case or an *UnknownTestError.
func (r *Registry) Lookup(name string) (TestCase, error) {
	r.mu.RLock()
	tc, ok := r.cases[name]
	r.mu.RUnlock()
	if !ok {
		return TestCase{}, &UnknownTestError{Name: name, Known: r.Names()}
	}
	return tc, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.cases))
	for name := range r.cases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cases returns the registered test cases sorted by name.
func (r *Registry) Cases() []TestCase {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	cases := make([]TestCase, 0, len(names))
	for _, name := range names {
		cases = append(cases, r.cases[name])
	}
	return cases
}
