package synth

// SelectionCatalogue enumerates the structural choices available to each
// synthesized step: triples (j, k, ell) with j < k < ell <= n+i meaning
// "step i reads from lines j, k, ell". Lines 1..n are primary inputs,
// line 0 is the reserved "constant 0 permitted as fan-in" slot, and lines
// n+1..n+i are preceding steps.
//
// The table is a flat, contiguous-per-step slice built once in
// NewSelectionCatalogue, so emitting "exactly one selection per step" is a
// plain range scan over that step's block.
type Selection struct {
	Step    int
	J, K, L int
}

type SelectionCatalogue struct {
	numSteps int
	n        int

	// perStep[i] holds every valid (j,k,l) for step i, in enumeration
	// order; its index within the slice is the "var_index_within_i".
	perStep [][]Selection

	// offset[i] is the running total of count(0..i-1), so that a global,
	// contiguous selection-variable index is offset[i] + local index.
	offset []int
}

// NewSelectionCatalogue materializes every valid (i, j, k, l) with
// 0 <= j < k < l <= n+i for i in [0, numSteps).
func NewSelectionCatalogue(numSteps, n int) *SelectionCatalogue {
	cat := &SelectionCatalogue{
		numSteps: numSteps,
		n:        n,
		perStep:  make([][]Selection, numSteps),
		offset:   make([]int, numSteps+1),
	}
	for i := 0; i < numSteps; i++ {
		maxLine := n + i
		var choices []Selection
		for j := 0; j <= maxLine; j++ {
			for k := j + 1; k <= maxLine; k++ {
				for l := k + 1; l <= maxLine; l++ {
					choices = append(choices, Selection{Step: i, J: j, K: k, L: l})
				}
			}
		}
		cat.perStep[i] = choices
		cat.offset[i+1] = cat.offset[i] + len(choices)
	}
	return cat
}

// Count returns the number of selection choices for step i.
func (c *SelectionCatalogue) Count(i int) int {
	return len(c.perStep[i])
}

// Total returns Σ count(i) over every step, the size of the full
// selection-variable block.
func (c *SelectionCatalogue) Total() int {
	return c.offset[c.numSteps]
}

// Offset returns the global index at which step i's selections begin.
func (c *SelectionCatalogue) Offset(i int) int {
	return c.offset[i]
}

// Index returns the global selection-variable index for (i, j, k, l), or
// -1 if no such selection was enumerated.
func (c *SelectionCatalogue) Index(i, j, k, l int) int {
	for local, s := range c.perStep[i] {
		if s.J == j && s.K == k && s.L == l {
			return c.offset[i] + local
		}
	}
	return -1
}

// Lookup returns the (i, j, k, l) for a global selection-variable index.
func (c *SelectionCatalogue) Lookup(idx int) (Selection, bool) {
	for i := 0; i < c.numSteps; i++ {
		if idx >= c.offset[i] && idx < c.offset[i+1] {
			return c.perStep[i][idx-c.offset[i]], true
		}
	}
	return Selection{}, false
}

// Choices returns the enumerated selections for step i, in the order used
// to assign local variable indices.
func (c *SelectionCatalogue) Choices(i int) []Selection {
	return c.perStep[i]
}

// LineLevel returns the depth level of a line index given a fence's
// level_dist (see Fence.LevelDist): level_dist[l] is the line number at
// which level l+1 begins, with level_dist[0] == n+1. Primary input lines
// (1..n) are level 0; a step line is the level whose half-open
// [level_dist[l], level_dist[l+1]) range contains it.
func LineLevel(line int, n int, levelDist []int) int {
	if line <= n {
		return 0
	}
	for lvl := len(levelDist) - 1; lvl >= 0; lvl-- {
		if line >= levelDist[lvl] {
			return lvl + 1
		}
	}
	return 0
}
