// ==============================================================================
// SUBSET MATCHING - internal/settlement/subset.go
// ==============================================================================
package settlement

// The subset search is exhaustive (include/exclude depth-first), so its
// cost is 2^k for a right group of k balances. SubsetLimits bounds it: a
// group above MaxGroup is not searched at all, and StepBudget caps the
// number of search steps a single Match call may spend across all of its
// left-hand targets.

// SubsetLimits bounds the exponential subset search.
type SubsetLimits struct {
	MaxGroup   int
	StepBudget int
}

// DefaultSubsetLimits mirrors the configuration defaults.
var DefaultSubsetLimits = SubsetLimits{MaxGroup: 24, StepBudget: 1_000_000}

// Match is a subset match over a sorted balance list: the balance at Left
// equals, in absolute value, the sum of the balances at Right.
type Match struct {
	Left  int
	Right []int
}

// SubsetMatcher finds star-shaped settlements: one balance that is exactly
// offset by several balances of the opposite sign. It is not safe for
// concurrent use; each settlement run owns its own matcher.
type SubsetMatcher struct {
	limits    SubsetLimits
	truncated int
}

// NewSubsetMatcher returns a matcher bounded by limits. Non-positive limits
// fall back to DefaultSubsetLimits.
func NewSubsetMatcher(limits SubsetLimits) *SubsetMatcher {
	return &SubsetMatcher{limits: limits.withDefaults()}
}

func (l SubsetLimits) withDefaults() SubsetLimits {
	if l.MaxGroup <= 0 {
		l.MaxGroup = DefaultSubsetLimits.MaxGroup
	}
	if l.StepBudget <= 0 {
		l.StepBudget = DefaultSubsetLimits.StepBudget
	}
	return l
}

// Truncated reports how many searches were skipped or cut short by the limits.
func (m *SubsetMatcher) Truncated() int {
	return m.truncated
}

// Match scans balances, which must be sorted descending when reverse is true
// and ascending otherwise. The list is split at the first negative balance
// (reverse) or the first positive one (!reverse). For each left-group value
// in order it looks for a non-empty subset of the right group whose absolute
// values add up to it, and returns the first hit with indices into balances.
//
// A split at index 0 leaves no left group, and no split at all leaves no
// right group; both report no match.
func (m *SubsetMatcher) Match(balances []int64, reverse bool) (Match, bool) {
	split := splitIndex(balances, reverse)
	if split <= 0 {
		return Match{}, false
	}

	right := balances[split:]
	if len(right) > m.limits.MaxGroup {
		m.truncated++
		return Match{}, false
	}

	search := &subsetSearch{values: right, budget: m.limits.StepBudget}
	for l, left := range balances[:split] {
		subset, ok := search.find(abs(left))
		if search.exhausted {
			m.truncated++
			return Match{}, false
		}
		if !ok {
			continue
		}

		indices := make([]int, len(subset))
		for i, s := range subset {
			indices[i] = s + split
		}
		return Match{Left: l, Right: indices}, true
	}

	return Match{}, false
}

// FindSubsetIndices returns the indices of the first subset of values (by
// absolute value, in include-before-exclude order) summing to |target|, or
// nil when there is none. A zero target never matches.
func FindSubsetIndices(values []int64, target int64) []int {
	search := &subsetSearch{values: values}
	subset, ok := search.find(abs(target))
	if !ok {
		return nil
	}
	return subset
}

// splitIndex returns the index of the first value on the opposite side of
// zero, or -1 when there is none.
func splitIndex(balances []int64, reverse bool) int {
	for i, b := range balances {
		if (reverse && b < 0) || (!reverse && b > 0) {
			return i
		}
	}
	return -1
}

type subsetSearch struct {
	values    []int64
	budget    int
	steps     int
	exhausted bool
}

func (s *subsetSearch) find(target int64) ([]int, bool) {
	if target == 0 {
		return nil, false
	}
	return s.dfs(0, target)
}

func (s *subsetSearch) dfs(i int, remaining int64) ([]int, bool) {
	if remaining == 0 {
		return []int{}, true
	}
	if i >= len(s.values) || remaining < 0 {
		return nil, false
	}

	s.steps++
	if s.budget > 0 && s.steps > s.budget {
		s.exhausted = true
		return nil, false
	}

	if rest, ok := s.dfs(i+1, remaining-abs(s.values[i])); ok {
		return append([]int{i}, rest...), true
	}
	if s.exhausted {
		return nil, false
	}
	return s.dfs(i+1, remaining)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
