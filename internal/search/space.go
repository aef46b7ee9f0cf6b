package search

import (
	"fmt"
	"math/rand"
)

// EmptySpaceError reports a search over a space with no candidates.
type EmptySpaceError struct {
	Param string
}

func (e *EmptySpaceError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("search space: parameter %q has no values", e.Param)
	}
	return "search space has no parameters"
}

// Space is an ordered hyperparameter space. Parameter order is the order
// of Add calls and determines grid enumeration order.
type Space struct {
	names  []string
	values map[string][]any
}

func NewSpace() *Space {
	return &Space{values: make(map[string][]any)}
}

// Add appends a parameter with its candidate values. Adding the same
// name twice replaces the values but keeps the original position.
func (s *Space) Add(name string, values ...any) *Space {
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	s.values[name] = values
	return s
}

// Names returns the parameter names in insertion order.
func (s *Space) Names() []string { return s.names }

// Values returns the candidates for one parameter.
func (s *Space) Values(name string) []any { return s.values[name] }

func (s *Space) validate() error {
	if len(s.names) == 0 {
		return &EmptySpaceError{}
	}
	for _, name := range s.names {
		if len(s.values[name]) == 0 {
			return &EmptySpaceError{Param: name}
		}
	}
	return nil
}

// Size returns the number of distinct configurations in the space.
func (s *Space) Size() int {
	if len(s.names) == 0 {
		return 0
	}
	total := 1
	for _, name := range s.names {
		total *= len(s.values[name])
	}
	return total
}

// Strategy enumerates candidate configurations from a space.
type Strategy interface {
	Name() string
	Candidates(space *Space) ([]map[string]any, error)
}

// Grid enumerates the full cartesian product of the space. The first
// parameter varies slowest: {a:[1,2], b:[10,20]} yields
// (1,10), (1,20), (2,10), (2,20).
type Grid struct{}

func (Grid) Name() string { return "grid" }

func (Grid) Candidates(space *Space) ([]map[string]any, error) {
	if err := space.validate(); err != nil {
		return nil, err
	}

	total := space.Size()
	out := make([]map[string]any, 0, total)
	names := space.Names()

	for i := 0; i < total; i++ {
		combo := make(map[string]any, len(names))
		rem := i
		for j := len(names) - 1; j >= 0; j-- {
			vals := space.Values(names[j])
			combo[names[j]] = vals[rem%len(vals)]
			rem /= len(vals)
		}
		out = append(out, combo)
	}
	return out, nil
}

// maxDuplicateRetries bounds how often Random redraws a configuration it
// has already produced before accepting the duplicate.
const maxDuplicateRetries = 10

// Random draws N configurations uniformly from the space with a fixed
// seed. Duplicates are redrawn up to a retry budget, so small spaces can
// still repeat.
type Random struct {
	N    int
	Seed int64
}

func (Random) Name() string { return "random" }

func (r Random) Candidates(space *Space) ([]map[string]any, error) {
	if err := space.validate(); err != nil {
		return nil, err
	}
	if r.N <= 0 {
		return nil, fmt.Errorf("random search: trial count must be positive, got %d", r.N)
	}

	rng := rand.New(rand.NewSource(r.Seed))
	names := space.Names()
	seen := make(map[string]bool, r.N)
	out := make([]map[string]any, 0, r.N)

	for len(out) < r.N {
		var combo map[string]any
		var key string
		for attempt := 0; attempt <= maxDuplicateRetries; attempt++ {
			combo = make(map[string]any, len(names))
			key = ""
			for _, name := range names {
				vals := space.Values(name)
				idx := rng.Intn(len(vals))
				combo[name] = vals[idx]
				key += fmt.Sprintf("%s=%d;", name, idx)
			}
			if !seen[key] {
				break
			}
		}
		seen[key] = true
		out = append(out, combo)
	}
	return out, nil
}
