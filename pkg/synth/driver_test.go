package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesisDriverExactAnd3(t *testing.T) {
	spec := specFor(1 << 7)
	driver := NewExactSynthesisDriver(spec)
	result, err := driver.Run()
	require.NoError(t, err)
	require.NotNil(t, result.Chain)
	assert.False(t, result.Approximate)
	assert.NotEmpty(t, result.RunID)
	ok, err := result.Chain.Satisfies(spec)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSynthesisDriverCegarXor3(t *testing.T) {
	spec := specFor(0x96)
	spec.Options.UseCegar = true
	driver := NewExactSynthesisDriver(spec)
	result, err := driver.Run()
	require.NoError(t, err)
	ok, err := result.Chain.Satisfies(spec)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSynthesisDriverFenceAnd3(t *testing.T) {
	spec := specFor(1 << 7)
	spec.Options.UseFence = true
	driver := NewExactSynthesisDriver(spec)
	result, err := driver.Run()
	require.NoError(t, err)
	ok, err := result.Chain.Satisfies(spec)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSynthesisDriverSymmetricMajority5(t *testing.T) {
	// maj5(a,b,c,d,e) over 5 variables is symmetric under every pairwise
	// swap, exercising emitSymvar's symmetry-breaking clauses.
	n := 5
	maj5 := NewTruthTable(n)
	for mt := 0; mt < maj5.Size(); mt++ {
		count := 0
		for bit := 0; bit < n; bit++ {
			if mt&(1<<uint(bit)) != 0 {
				count++
			}
		}
		if count >= 3 {
			maj5 = maj5.SetBit(mt, true)
		}
	}
	spec := &Specification{NumVars: n, Functions: []TruthTable{maj5}, Options: DefaultSynthesisOptions()}
	pairs := spec.SymmetricPairs()
	require.Len(t, pairs, 10, "maj5 should be symmetric under all 10 variable pairs")

	spec.Options.StepCountCap = 12
	driver := NewExactSynthesisDriver(spec)
	result, err := driver.Run()
	require.NoError(t, err)
	ok, err := result.Chain.Satisfies(spec)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSynthesisDriverInvalidSpec(t *testing.T) {
	spec := &Specification{NumVars: 2, Functions: []TruthTable{NewTruthTableFromUint64(2, 0xF)}}
	driver := NewExactSynthesisDriver(spec)
	_, err := driver.Run()
	assert.ErrorIs(t, err, ErrSpecificationInvalid)
}

func TestSynthesisDriverUnsynthesizableReturnsIncumbentOrError(t *testing.T) {
	// xor3 cannot be computed by a single majority-3 step, so capping the
	// search at one step with no incumbent forces Grow to give up.
	spec := specFor(0x96)
	spec.Options.StepCountCap = 1
	spec.Options.InitialSteps = 1
	driver := NewExactSynthesisDriver(spec)
	_, err := driver.Run()
	assert.ErrorIs(t, err, ErrUnsynthesizable)
}

func TestFirstMismatchDetectsDisagreement(t *testing.T) {
	spec := specFor(0x96)
	// A chain computing majority(a,b,c), which disagrees with xor3.
	c := NewChain(3, 1, 1)
	require.NoError(t, c.SetStep(0, 1, 2, 3, 0))
	c.SetOutput(0, 0, false, false)

	_, found := firstMismatch(c, spec)
	assert.True(t, found, "majority(a,b,c) should mismatch xor3 somewhere")
}

func TestFirstApproxMismatchRespectsBudget(t *testing.T) {
	spec := specFor(0x96)
	c := NewChain(3, 1, 1)
	require.NoError(t, c.SetStep(0, 1, 2, 3, 0))
	c.SetOutput(0, 0, false, false)

	_, found := firstApproxMismatch(c, spec, 1)
	assert.False(t, found, "majority(a,b,c) should be within distance 1 of xor3 everywhere")

	_, found = firstApproxMismatch(c, spec, 0)
	assert.True(t, found, "distance 0 should reject the same chain")
}

func TestSynthesisDriverAllTrivialSkipsSolver(t *testing.T) {
	proj := NewTruthTableFromUint64(3, 0b10101010) // a
	spec := &Specification{
		NumVars:      3,
		Functions:    []TruthTable{NewTruthTableFromUint64(3, 0xFF), proj},
		TrivFlagMask: 0b11,
		Options:      DefaultSynthesisOptions(),
	}
	require.Equal(t, spec.NumOutputs(), spec.NumTriv())
	require.Equal(t, 0, spec.NumNontriv())

	driver := NewExactSynthesisDriver(spec)
	result, err := driver.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, result.StepCount)
	assert.Empty(t, result.Chain.Steps)

	ok, err := result.Chain.Satisfies(spec)
	require.NoError(t, err)
	assert.True(t, ok)
}
