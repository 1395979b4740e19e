// Package resolve implements the backtracking SemVer solver: the
// algorithmic core described in spec.md §4.C. It turns a root manifest
// plus an index snapshot (and, optionally, a previous lock used as a
// seed hint) into a Lock pinning one version per dependency per major
// line.
package resolve

import (
	"sort"

	"github.com/armon/go-radix"

	"github.com/RogueMacro/grill/internal/grillerr"
	"github.com/RogueMacro/grill/internal/index"
	"github.com/RogueMacro/grill/internal/lock"
	"github.com/RogueMacro/grill/internal/manifest"
	"github.com/RogueMacro/grill/internal/semverx"
)

// Hint is the previous-lock carry-over seed: for each package name, the
// locked versions that should be preferred first when they still satisfy
// a candidate's requirement.
type Hint struct {
	lock *lock.Lock
}

// NewHint wraps a previously validated lock as a resolver hint. Pass nil
// to resolve without one.
func NewHint(l *lock.Lock) *Hint {
	if l == nil {
		return nil
	}
	return &Hint{lock: l}
}

// solver carries the mutable state of one resolve() call.
type solver struct {
	idx        *index.Index
	hint       *Hint
	candidates []*candidate
	rootLen    int
	// byName indexes candidate positions by package name for the O(1)-ish
	// conflict scan and completeness sweep lookups; go-radix gives us
	// ordered, prefix-friendly iteration for free, which the teacher's
	// own solver.go leans on for the same purpose.
	byName *radix.Tree
}

// Resolve runs the backtracking solver for m against idx, optionally
// seeded by hint, and returns a Lock or a typed failure
// (UnknownPackage, NoSatisfyingVersion wrapped in ResolutionFailed).
func Resolve(m *manifest.Manifest, idx *index.Index, hint *Hint) (*lock.Lock, error) {
	s := &solver{idx: idx, hint: hint, byName: radix.New()}

	// Root dependencies are seeded in a fixed, sorted order rather than
	// map iteration order: the backtracking search is order-sensitive,
	// so an unordered seed would make repeated resolves of the same
	// manifest nondeterministic.
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dep := m.Dependencies[name]
		if dep.Kind != manifest.Simple && dep.Kind != manifest.Advanced {
			continue
		}
		c := &candidate{name: name, req: dep.Requirement}
		if err := s.fillAvailable(c); err != nil {
			return nil, err
		}
		s.addCandidate(c)
	}
	s.rootLen = len(s.candidates)

	if err := s.run(); err != nil {
		return nil, err
	}

	return s.buildLock(), nil
}

func (s *solver) addCandidate(c *candidate) {
	idx := len(s.candidates)
	s.candidates = append(s.candidates, c)
	s.indexName(c.name, idx)
}

// indexName records that candidates[idx] is named name, in byName.
func (s *solver) indexName(name string, idx int) {
	var positions []int
	if v, ok := s.byName.Get(name); ok {
		positions = v.([]int)
	}
	s.byName.Insert(name, append(positions, idx))
}

// positionsFor returns the indices of every candidate named name.
func (s *solver) positionsFor(name string) []int {
	v, ok := s.byName.Get(name)
	if !ok {
		return nil
	}
	return v.([]int)
}

// rebuildIndex recomputes byName from scratch, used after a truncation
// drops the tail of the candidate list.
func (s *solver) rebuildIndex() {
	s.byName = radix.New()
	for i, c := range s.candidates {
		s.indexName(c.name, i)
	}
}

func (s *solver) fillAvailable(c *candidate) error {
	versions, err := s.idx.MatchingVersions(c.name, c.req)
	if err != nil {
		return &grillerr.UnknownPackage{Name: c.name}
	}
	c.available = versions
	if s.hint != nil {
		if hinted, ok := s.hint.lock.Matching(c.name, c.req); ok {
			c.preferHint(hinted)
		}
	}
	return nil
}

// run drives the index cursor across the candidate list, including the
// transitive-closure completeness sweep, until it either fails or the
// list is fully and stably assigned.
func (s *solver) run() error {
	i := 0
	for {
		for i < len(s.candidates) {
			next, err := s.step(i)
			if err != nil {
				return err
			}
			i = next
		}

		added, err := s.sweepMissing()
		if err != nil {
			return err
		}
		if len(added) == 0 {
			return nil
		}
		for _, c := range added {
			s.addCandidate(c)
		}
		// i is already len(candidates) before the append, i.e. the index
		// of the first newly added candidate; the outer loop resumes
		// there.
	}
}

// step processes candidates[i] once, returning the index the cursor
// should move to next.
func (s *solver) step(i int) (int, error) {
	c := s.candidates[i]

	for {
		v, ok := c.popNext()
		if !ok {
			return s.backtrackFrom(i)
		}
		if !s.conflicts(i, v) {
			c.chosen = new(semverx.Version)
			*c.chosen = v
			s.expand(c, v)
			return i + 1, nil
		}
	}
}

// conflicts reports whether assigning v to candidates[i] collides with
// any other already-assigned candidate: same name, same major, but a
// different version. Distinct major lines of the same dependency always
// coexist peacefully.
func (s *solver) conflicts(i int, v semverx.Version) bool {
	name := s.candidates[i].name
	for _, j := range s.positionsFor(name) {
		if j == i {
			continue
		}
		other := s.candidates[j]
		if other.chosen == nil {
			continue
		}
		if other.chosen.SameMajor(v) && !other.chosen.Equal(v) {
			return true
		}
	}
	return false
}

// expand appends a fresh candidate for every dependency of the version
// just accepted.
func (s *solver) expand(c *candidate, v semverx.Version) {
	meta, ok := s.idx.VersionMeta(c.name, v)
	if !ok {
		return
	}
	for _, depName := range sortedDepNames(meta.Deps) {
		req := meta.Deps[depName]
		nc := &candidate{name: depName, req: req}
		if err := s.fillAvailable(nc); err != nil {
			// An unresolvable transitive dependency surfaces as an
			// immediate exhaustion of this new candidate: give it an
			// empty availability list so the main loop backtracks
			// through it in the usual way instead of panicking here.
			nc.available = nil
		}
		s.addCandidate(nc)
	}
}

// backtrackFrom handles exhaustion of candidates[i]'s available
// versions.
func (s *solver) backtrackFrom(i int) (int, error) {
	if i < s.rootLen {
		if i == 0 {
			name := s.candidates[0].name
			return 0, &grillerr.ResolutionFailed{
				Cause: &grillerr.NoSatisfyingVersion{Name: name, Req: s.candidates[0].req.String()},
			}
		}
		c := s.candidates[i]
		c.chosen = nil
		if err := s.fillAvailable(c); err != nil {
			return 0, err
		}
		return i - 1, nil
	}

	// Beyond the root region: truncate the list at i, invalidating every
	// candidate that was only present because of this one's (or its
	// ancestors') now-abandoned assignment.
	s.candidates = s.candidates[:i]
	s.rebuildIndex()
	return i - 1, nil
}

// sweepMissing performs one pass of the completeness sweep: for every
// assigned candidate, for every dep of its chosen version, ensure some
// candidate with a matching name and a satisfying version is present.
func (s *solver) sweepMissing() ([]*candidate, error) {
	var added []*candidate
	for _, c := range s.candidates {
		if c.chosen == nil {
			continue
		}
		meta, ok := s.idx.VersionMeta(c.name, *c.chosen)
		if !ok {
			continue
		}
		for _, depName := range sortedDepNames(meta.Deps) {
			req := meta.Deps[depName]
			if s.satisfied(depName, req) {
				continue
			}
			nc := &candidate{name: depName, req: req}
			if err := s.fillAvailable(nc); err != nil {
				return nil, err
			}
			added = append(added, nc)
		}
	}
	return added, nil
}

// sortedDepNames returns a map's keys in lexicographic order: the
// backtracking search is order-sensitive, so every fan-out over a
// dependency map sorts first to keep resolution deterministic.
func sortedDepNames(deps map[string]semverx.Requirement) []string {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *solver) satisfied(name string, req semverx.Requirement) bool {
	for _, j := range s.positionsFor(name) {
		c := s.candidates[j]
		if c.chosen == nil {
			continue
		}
		if req.Matches(*c.chosen) {
			return true
		}
	}
	return false
}

// buildLock groups every assigned candidate by name into the resolved
// version set.
func (s *solver) buildLock() *lock.Lock {
	l := lock.New()
	seen := make(map[string]map[string]bool)
	for _, c := range s.candidates {
		if c.chosen == nil {
			continue
		}
		if seen[c.name] == nil {
			seen[c.name] = make(map[string]bool)
		}
		key := c.chosen.String()
		if seen[c.name][key] {
			continue
		}
		seen[c.name][key] = true
		l.Add(c.name, *c.chosen)
	}
	return l
}
