package synth

import "math/bits"

// SynthesisOptions bundles the per-call knobs that shape how the driver
// searches: a plain struct with a DefaultSynthesisOptions constructor.
type SynthesisOptions struct {
	// Alonce enforces that every step is used at least once by a later
	// step or an output.
	Alonce bool

	// Colex enforces co-lexicographic order on successive steps' fan-ins.
	Colex bool

	// LexFunc enforces non-decreasing operator ids between successive
	// steps that share fan-ins.
	LexFunc bool

	// Symvar forbids step patterns that are permutations of earlier
	// choices for variable pairs the target functions are symmetric
	// under.
	Symvar bool

	// ConflictLimit bounds conflicts per solver call; 0 means unlimited.
	ConflictLimit int

	// InitialSteps is the lower bound the search starts from.
	InitialSteps int

	// StepCountCap bounds how far the driver will grow the step count
	// before giving up (design value: 20 for plain/CEGAR driver modes).
	StepCountCap int

	// CegarInnerCap bounds CEGAR iterations per step count before
	// escalating to a larger step count (design value: 10).
	CegarInnerCap int

	// Verbosity controls obslog trace volume, 0-3.
	Verbosity int

	// UseCegar selects lazy tt-clause emission over eager.
	UseCegar bool

	// UseFence selects level-profile-restricted search.
	UseFence bool

	// Parallel marks a configuration for the worker-pool CEGAR+fence
	// mode. No driver reads it: the parallel search runs only through
	// ParallelSynthesisDriver, which always uses fences and CEGAR, and
	// setting Parallel does not change UseCegar or UseFence.
	Parallel bool

	// NumWorkers for the parallel driver; 0 defaults to
	// runtime.NumCPU().
	NumWorkers int

	// FenceQueueSize bounds the parallel driver's fence work queue.
	FenceQueueSize int

	// PerFenceConflictBudget is the small conflict budget (design value:
	// 10; 0 also means 10) of each Solve call a parallel worker makes. A
	// call that times out is resumed; after 256 calls on one fence the
	// worker gives up on that fence.
	PerFenceConflictBudget int
}

// DefaultSynthesisOptions returns the option set used by the plain,
// non-CEGAR, non-fence driver mode.
func DefaultSynthesisOptions() SynthesisOptions {
	return SynthesisOptions{
		Alonce:                 true,
		Colex:                  true,
		LexFunc:                true,
		Symvar:                 true,
		ConflictLimit:          0,
		InitialSteps:           1,
		StepCountCap:           20,
		CegarInnerCap:          10,
		Verbosity:              0,
		PerFenceConflictBudget: 10,
		FenceQueueSize:         64,
	}
}

// Specification is the read-only input to one synthesis call: the target
// truth tables plus option flags. Constructed once by the caller; the
// encoder allocates its own variable blocks on each restart, and nothing
// here is mutated during synthesis.
type Specification struct {
	// NumVars is n, the number of primary inputs. Invariant: all truth
	// tables passed to one synthesis share this width.
	NumVars int

	// Functions holds the target truth table for each output.
	Functions []TruthTable

	// OutInvMask has bit h set when output h's polarity should be
	// inverted relative to its driving step's simulation.
	OutInvMask uint64

	// TrivFlagMask has bit h set when output h is itself a variable or
	// constant and should not be synthesized.
	TrivFlagMask uint64

	Options SynthesisOptions
}

// TTSize returns 2^NumVars - 1: minterm 0 (the all-zero row) is excluded
// because chains are normalized.
func (s *Specification) TTSize() int {
	return (1 << uint(s.NumVars)) - 1
}

// NumOutputs returns the number of target functions.
func (s *Specification) NumOutputs() int { return len(s.Functions) }

// NumNontriv returns popcount(¬TrivFlagMask) over the first NumOutputs
// bits.
func (s *Specification) NumNontriv() int {
	return s.NumOutputs() - s.NumTriv()
}

// NumTriv returns popcount(TrivFlagMask) over the first NumOutputs bits.
func (s *Specification) NumTriv() int {
	mask := s.TrivFlagMask & ((uint64(1) << uint(s.NumOutputs())) - 1)
	return bits.OnesCount64(mask)
}

// IsTrivial reports whether output h is marked trivial.
func (s *Specification) IsTrivial(h int) bool {
	return s.TrivFlagMask&(1<<uint(h)) != 0
}

// NontrivialIndices returns the 0-based output indices that are not
// marked trivial, in ascending order; this is the dense ordering the
// output-wiring and approximate-candidate blocks assign to non-trivial
// outputs.
func (s *Specification) NontrivialIndices() []int {
	var out []int
	for h := 0; h < s.NumOutputs(); h++ {
		if !s.IsTrivial(h) {
			out = append(out, h)
		}
	}
	return out
}

// OutInv reports output h's polarity inversion bit.
func (s *Specification) OutInv(h int) bool {
	return s.OutInvMask&(1<<uint(h)) != 0
}

// Validate rejects malformed specifications: num_vars < 3, mismatched
// truth-table widths, or a target function that is a constant but not
// marked trivial.
func (s *Specification) Validate() error {
	if s.NumVars < 3 {
		return newSynthesisError(ErrSpecificationInvalid, 0, "num_vars must be >= 3")
	}
	for h, f := range s.Functions {
		if f.NumVars() != s.NumVars {
			return newSynthesisError(ErrSpecificationInvalid, 0, "function width mismatch at output")
		}
		if _, isConst := f.IsConstant(); isConst && !s.IsTrivial(h) {
			return newSynthesisError(ErrSpecificationInvalid, 0, "constant output not marked trivial")
		}
	}
	return nil
}

// SymmetricPairs returns every pair of 1-based variable indices (p, q)
// with p < q such that swapping p and q leaves every target function
// fixed, the precondition for the symvar symmetry-breaking clauses.
func (s *Specification) SymmetricPairs() [][2]int {
	var pairs [][2]int
	for p := 1; p <= s.NumVars; p++ {
		for q := p + 1; q <= s.NumVars; q++ {
			if s.symmetricUnder(p, q) {
				pairs = append(pairs, [2]int{p, q})
			}
		}
	}
	return pairs
}

func (s *Specification) symmetricUnder(p, q int) bool {
	size := 1 << uint(s.NumVars)
	pbit := 1 << uint(p-1)
	qbit := 1 << uint(q-1)
	for _, f := range s.Functions {
		for mt := 0; mt < size; mt++ {
			swapped := mt
			pSet := mt&pbit != 0
			qSet := mt&qbit != 0
			if pSet {
				swapped |= qbit
			} else {
				swapped &^= qbit
			}
			if qSet {
				swapped |= pbit
			} else {
				swapped &^= pbit
			}
			if f.Bit(mt) != f.Bit(swapped) {
				return false
			}
		}
	}
	return true
}
