package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/m3igsynth/pkg/synth/sat"
)

func specFor(bits uint64) *Specification {
	return &Specification{
		NumVars:   3,
		Functions: []TruthTable{NewTruthTableFromUint64(3, bits)},
		Options:   DefaultSynthesisOptions(),
	}
}

// synthesizeAndVerify drives EmitStructural+EmitConsistencyFull over
// increasing step counts and asserts the extracted chain reproduces spec
// exactly, for specs small enough to solve eagerly in one shot.
func synthesizeAndVerify(t *testing.T, spec *Specification, maxSteps int) *Chain {
	t.Helper()
	for steps := 1; steps <= maxSteps; steps++ {
		enc := NewM3igEncoder(spec, steps, nil)
		solver := sat.NewCDCLSolver()
		enc.Allocate(solver)
		if enc.EmitStructural(solver) == 0 {
			continue
		}
		enc.EmitConsistencyFull(solver)
		enc.EmitOutputConsistencyFull(solver)
		if solver.Solve(0) != sat.Sat {
			continue
		}
		chain, err := enc.ExtractChain(solver)
		require.NoError(t, err)
		ok, err := chain.Satisfies(spec)
		require.NoError(t, err)
		require.True(t, ok, "chain %s failed to reproduce spec at step count %d", chain.ToExpression(), steps)
		return chain
	}
	t.Fatalf("no satisfying chain found up to %d steps", maxSteps)
	return nil
}

func TestEncoderSynthesizesMajority3InOneStep(t *testing.T) {
	spec := specFor(0xE8) // majority(a,b,c)
	chain := synthesizeAndVerify(t, spec, 1)
	assert.Len(t, chain.Steps, 1)
}

func TestEncoderSynthesizesAnd3(t *testing.T) {
	spec := specFor(1 << 7)
	chain := synthesizeAndVerify(t, spec, 6)
	assert.NotEmpty(t, chain.Steps)
}

func TestEncoderSynthesizesXor3ViaCegar(t *testing.T) {
	spec := specFor(0x96)
	spec.Options.UseCegar = true

	var chain *Chain
	for steps := 1; steps <= 8 && chain == nil; steps++ {
		enc := NewM3igEncoder(spec, steps, nil)
		solver := sat.NewCDCLSolver()
		enc.Allocate(solver)
		if enc.EmitStructural(solver) == 0 {
			continue
		}
		for iter := 0; iter < 20; iter++ {
			if solver.Solve(0) != sat.Sat {
				break
			}
			c, err := enc.ExtractChain(solver)
			require.NoError(t, err)
			ok, err := c.Satisfies(spec)
			require.NoError(t, err)
			if ok {
				chain = c
				break
			}
			mismatch, found := firstMismatch(c, spec)
			if !found {
				chain = c
				break
			}
			enc.EmitConsistencyForMinterm(solver, mismatch)
			enc.EmitOutputConsistencyForMinterm(solver, mismatch)
		}
	}
	require.NotNil(t, chain, "CEGAR loop did not converge on xor3")
	ok, err := chain.Satisfies(spec)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEncoderFullAdderTwoOutputs(t *testing.T) {
	spec := &Specification{
		NumVars: 3,
		Functions: []TruthTable{
			NewTruthTableFromUint64(3, 0x96), // sum
			NewTruthTableFromUint64(3, 0xE8), // carry
		},
		Options: DefaultSynthesisOptions(),
	}
	chain := synthesizeAndVerify(t, spec, 8)
	assert.Len(t, chain.Outputs, 2)
}

func TestEmitFaninClausesForcesDisallowedFenceSelections(t *testing.T) {
	spec := specFor(0xE8)
	// A one-level fence for 2 steps: both steps sit at level 1 (PIs are
	// level 0). Step 1 may only read lines strictly below its own level,
	// so its selections reading step 0 are forced false; its PI-only
	// selections keep both steps viable.
	fence := &Fence{Levels: []int{2}}
	enc := NewM3igEncoder(spec, 2, fence)
	solver := sat.NewCDCLSolver()
	enc.Allocate(solver)
	succeeded := enc.EmitFaninClauses(solver)
	assert.Equal(t, 2, succeeded)
}

func TestEncoderExhaustedAtZeroSteps(t *testing.T) {
	spec := specFor(0xE8)
	enc := NewM3igEncoder(spec, 0, nil)
	solver := sat.NewCDCLSolver()
	enc.Allocate(solver)
	assert.Equal(t, 0, enc.EmitFaninClauses(solver))
}

func TestSetTrivialOutputConstant(t *testing.T) {
	spec := &Specification{
		NumVars:      3,
		Functions:    []TruthTable{NewTruthTableFromUint64(3, 0xFF)},
		TrivFlagMask: 1,
	}
	chain := NewChain(3, 0, 1)
	require.NoError(t, setTrivialOutput(chain, spec, 0))
	outputs, err := chain.Simulate()
	require.NoError(t, err)
	value, ok := outputs[0].IsConstant()
	assert.True(t, ok)
	assert.True(t, value)
}

func TestSetTrivialOutputProjection(t *testing.T) {
	proj := NewTruthTableFromUint64(3, 0b10101010).Not() // !a
	spec := &Specification{
		NumVars:      3,
		Functions:    []TruthTable{proj},
		TrivFlagMask: 1,
	}
	chain := NewChain(3, 0, 1)
	require.NoError(t, setTrivialOutput(chain, spec, 0))
	outputs, err := chain.Simulate()
	require.NoError(t, err)
	assert.True(t, outputs[0].Equal(proj))
}

func TestSetTrivialOutputRejectsNonTrivial(t *testing.T) {
	spec := &Specification{
		NumVars:      3,
		Functions:    []TruthTable{NewTruthTableFromUint64(3, 0x96)},
		TrivFlagMask: 1,
	}
	chain := NewChain(3, 0, 1)
	assert.Error(t, setTrivialOutput(chain, spec, 0))
}
