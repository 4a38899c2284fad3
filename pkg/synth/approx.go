package synth

import (
	"fmt"

	"github.com/gitrdm/m3igsynth/pkg/synth/sat"
)

// ApproxOptions bundles the knobs for approximate synthesis.
type ApproxOptions struct {
	// ErrorDistance (D) bounds, per minterm, the absolute difference
	// between the exact and approximate joint output value (the
	// non-trivial outputs read together as one binary word).
	ErrorDistance int

	// MinNodes (N): attempts using fewer than N steps fall back to exact
	// output fixing, tightening the search in the small-step regime
	// rather than spending the combinatorial candidate-blocking budget
	// where it is least likely to matter. MinNodes == 0 disables the
	// fallback entirely.
	MinNodes int

	// AllowProjection permits a non-trivial output to be wired directly
	// to a primary input rather than a synthesized step.
	AllowProjection bool
}

// ApproxEncoder layers an error-budget output relation on top of
// M3igEncoder's structural and fan-in machinery. It always materializes
// an output-wiring block (even with a single non-trivial output), because
// approximate mode's candidate-blocking clauses need wire variables to
// condition on.
type ApproxEncoder struct {
	*M3igEncoder
	opts ApproxOptions

	piWireOffset, piWireCount int
	totalVars                 int

	nontriv []int // dense 0-based indices into spec.Functions that are non-trivial
}

// NewApproxEncoder builds an approximate encoder for spec at the given
// step count.
func NewApproxEncoder(spec *Specification, numSteps int, fence *Fence, opts ApproxOptions) *ApproxEncoder {
	base := NewM3igEncoderWithOptions(spec, numSteps, fence, EncoderOptions{ForceOutputWiring: true})
	ae := &ApproxEncoder{M3igEncoder: base, opts: opts, nontriv: spec.NontrivialIndices()}
	ae.piWireOffset = base.TotalVars()
	if opts.AllowProjection {
		ae.piWireCount = len(ae.nontriv) * spec.NumVars
	}
	ae.totalVars = ae.piWireOffset + ae.piWireCount
	return ae
}

// TotalVars overrides M3igEncoder.TotalVars to include the pi_out block.
func (ae *ApproxEncoder) TotalVars() int { return ae.totalVars }

// Allocate resets solver with exactly TotalVars() variables.
func (ae *ApproxEncoder) Allocate(solver sat.Solver) {
	solver.ResetWithVars(ae.totalVars)
}

func (ae *ApproxEncoder) piWireVar(h, v int) int32 {
	nh := ae.nontrivOutputIndex(h)
	return int32(ae.piWireOffset + nh*ae.spec.NumVars + (v - 1) + 1)
}

// destination is one candidate wiring target for a non-trivial output:
// either a synthesized step (isPI false, idx a 0-based step index) or,
// when AllowProjection is set, a primary input (isPI true, idx its
// 1-based number).
type destination struct {
	isPI bool
	idx  int
}

func (ae *ApproxEncoder) destinations() []destination {
	dests := make([]destination, 0, ae.numSteps+ae.spec.NumVars)
	for i := 0; i < ae.numSteps; i++ {
		dests = append(dests, destination{idx: i})
	}
	if ae.opts.AllowProjection {
		for v := 1; v <= ae.spec.NumVars; v++ {
			dests = append(dests, destination{isPI: true, idx: v})
		}
	}
	return dests
}

func (ae *ApproxEncoder) wireLit(h int, d destination) int32 {
	if d.isPI {
		return ae.piWireVar(h, d.idx)
	}
	return ae.wireVar(h, d.idx)
}

func (ae *ApproxEncoder) valueAt(d destination, t int) lineVal {
	if d.isPI {
		return ae.resolveLine(d.idx, t)
	}
	return litVal(ae.simVar(d.idx, t))
}

// EmitOutputWiringStructural emits the wiring cardinality constraints over
// the extended destination set (steps, plus PIs when AllowProjection):
// every non-trivial output wires to exactly one destination, no two
// non-trivial outputs share a destination, and at least one wires to the
// final step.
func (ae *ApproxEncoder) EmitOutputWiringStructural(solver sat.Solver) bool {
	ok := true
	dests := ae.destinations()
	var lastStepLits []int32
	for _, h := range ae.nontriv {
		var lits []int32
		for _, d := range dests {
			lits = append(lits, ae.wireLit(h, d))
		}
		ok = solver.AddClause(lits) && ok
		for a := 0; a < len(lits); a++ {
			for b := a + 1; b < len(lits); b++ {
				ok = solver.AddClause([]int32{-lits[a], -lits[b]}) && ok
			}
		}
		lastStepLits = append(lastStepLits, ae.wireVar(h, ae.numSteps-1))
	}
	for _, d := range dests {
		for a := 0; a < len(ae.nontriv); a++ {
			for b := a + 1; b < len(ae.nontriv); b++ {
				ok = solver.AddClause([]int32{-ae.wireLit(ae.nontriv[a], d), -ae.wireLit(ae.nontriv[b], d)}) && ok
			}
		}
	}
	if len(lastStepLits) > 0 {
		ok = solver.AddClause(lastStepLits) && ok
	}
	return ok
}

// EmitStructural emits every clause block that does not depend on a
// specific minterm, overriding M3igEncoder.EmitStructural to route
// output-wiring cardinality through the extended destination set.
func (ae *ApproxEncoder) EmitStructural(solver sat.Solver) int {
	succeeded := ae.EmitFaninClauses(solver)
	ae.EmitOperatorClauses(solver)
	ae.EmitOutputWiringStructural(solver)
	ae.EmitSymmetryBreaking(solver)
	return succeeded
}

// emitExactOutputConsistencyForMinterm is the min_nodes fallback: tight
// per-output equality, same shape as M3igEncoder's but over the extended
// destination set.
func (ae *ApproxEncoder) emitExactOutputConsistencyForMinterm(solver sat.Solver, t int) bool {
	ok := true
	dests := ae.destinations()
	for _, h := range ae.nontriv {
		target := ae.spec.Functions[h].Bit(t+1) != ae.spec.OutInv(h)
		for _, d := range dests {
			wire := ae.wireLit(h, d)
			val := ae.valueAt(d, t)
			if !target {
				val = val.negate()
			}
			ok = addFoldedClause(solver, []lineVal{litVal(-wire), val}) && ok
		}
	}
	return ok
}

// forEachDestinationAssignment calls f with every injective assignment of
// n output slots to distinct destinations drawn from dests (a
// permutation of size n): every choice of destinations, every
// permutation of outputs over them.
func forEachDestinationAssignment(dests []destination, n int, f func(assign []destination)) {
	used := make([]bool, len(dests))
	assign := make([]destination, n)
	var rec func(pos int)
	rec = func(pos int) {
		if pos == n {
			f(assign)
			return
		}
		for i, d := range dests {
			if used[i] {
				continue
			}
			used[i] = true
			assign[pos] = d
			rec(pos + 1)
			used[i] = false
		}
	}
	rec(0)
}

// emitApproxOutputConsistencyForMinterm emits the candidate-blocking
// clauses for a single minterm: every joint output
// bit-string whose distance from the target exceeds the error budget is
// blocked for every destination assignment and permutation that could
// realize it.
func (ae *ApproxEncoder) emitApproxOutputConsistencyForMinterm(solver sat.Solver, t int) bool {
	ok := true
	n := len(ae.nontriv)
	if n == 0 {
		return true
	}
	specVal := 0
	for idx, h := range ae.nontriv {
		if ae.spec.Functions[h].Bit(t+1) != ae.spec.OutInv(h) {
			specVal |= 1 << uint(idx)
		}
	}
	dests := ae.destinations()
	d := ae.opts.ErrorDistance

	for candidate := 0; candidate < (1 << uint(n)); candidate++ {
		dist := candidate - specVal
		if dist < 0 {
			dist = -dist
		}
		if dist <= d {
			continue
		}
		forEachDestinationAssignment(dests, n, func(assign []destination) {
			disjuncts := make([]lineVal, 0, 2*n)
			for idx := 0; idx < n; idx++ {
				h := ae.nontriv[idx]
				dest := assign[idx]
				wire := ae.wireLit(h, dest)
				disjuncts = append(disjuncts, litVal(-wire))

				val := ae.valueAt(dest, t)
				bitWanted := candidate&(1<<uint(idx)) != 0
				var disagree lineVal
				if bitWanted {
					disagree = val.negate()
				} else {
					disagree = val
				}
				disjuncts = append(disjuncts, disagree)
			}
			ok = addFoldedClause(solver, disjuncts) && ok
		})
	}
	return ok
}

// EmitOutputConsistencyForMinterm dispatches to the exact fallback or the
// approximate candidate-blocking encoding depending on MinNodes.
func (ae *ApproxEncoder) EmitOutputConsistencyForMinterm(solver sat.Solver, t int) bool {
	if ae.numSteps < ae.opts.MinNodes {
		return ae.emitExactOutputConsistencyForMinterm(solver, t)
	}
	return ae.emitApproxOutputConsistencyForMinterm(solver, t)
}

// EmitOutputConsistencyFull emits output-consistency clauses for every
// minterm (the non-CEGAR, eager path).
func (ae *ApproxEncoder) EmitOutputConsistencyFull(solver sat.Solver) bool {
	ok := true
	for t := 0; t < ae.spec.TTSize(); t++ {
		ok = ae.EmitOutputConsistencyForMinterm(solver, t) && ok
	}
	return ok
}

// ExtractChain decodes a satisfying assignment into a Chain, resolving
// each non-trivial output's wiring over the extended destination set
// (step or, when allowed, a primary input).
func (ae *ApproxEncoder) ExtractChain(solver sat.Solver) (*Chain, error) {
	chain := NewChain(ae.spec.NumVars, ae.numSteps, ae.spec.NumOutputs())
	if err := ae.decodeSteps(solver, chain); err != nil {
		return nil, err
	}

	for h := 0; h < ae.spec.NumOutputs(); h++ {
		if ae.spec.IsTrivial(h) {
			if err := setTrivialOutput(chain, ae.spec, h); err != nil {
				return nil, err
			}
			continue
		}
		found := false
		for i := 0; i < ae.numSteps; i++ {
			if solver.Value(int(ae.wireVar(h, i)) - 1) {
				chain.SetOutput(h, i, ae.spec.OutInv(h), false)
				found = true
				break
			}
		}
		if found {
			continue
		}
		if ae.opts.AllowProjection {
			for v := 1; v <= ae.spec.NumVars; v++ {
				if solver.Value(int(ae.piWireVar(h, v)) - 1) {
					chain.SetOutput(h, v, ae.spec.OutInv(h), true)
					found = true
					break
				}
			}
		}
		if !found {
			return nil, fmt.Errorf("synth: output %d has no wired destination in satisfying assignment", h)
		}
	}
	return chain, nil
}

// ApproxVerify checks that chain's simulated outputs stay within
// errorDistance of spec's targets at every minterm (the non-trivial
// outputs read jointly as one binary word), and that every trivial
// output still matches exactly.
func ApproxVerify(chain *Chain, spec *Specification, errorDistance int) error {
	outputs, err := chain.Simulate()
	if err != nil {
		return err
	}
	nontriv := spec.NontrivialIndices()
	for h := 0; h < spec.NumOutputs(); h++ {
		if spec.IsTrivial(h) && !outputs[h].Equal(spec.Functions[h]) {
			return newSynthesisError(ErrChainVerificationFailure, len(chain.Steps), "trivial output mismatch")
		}
	}
	for t := 0; t < spec.TTSize(); t++ {
		specVal, actVal := 0, 0
		for idx, h := range nontriv {
			if spec.Functions[h].Bit(t+1) {
				specVal |= 1 << uint(idx)
			}
			if outputs[h].Bit(t + 1) {
				actVal |= 1 << uint(idx)
			}
		}
		dist := specVal - actVal
		if dist < 0 {
			dist = -dist
		}
		if dist > errorDistance {
			return newSynthesisError(ErrChainVerificationFailure, len(chain.Steps), "")
		}
	}
	return nil
}
