package synth

import (
	"github.com/google/uuid"

	"github.com/gitrdm/m3igsynth/pkg/synth/obslog"
	"github.com/gitrdm/m3igsynth/pkg/synth/sat"
)

// chainEncoder is the surface SynthesisDriver drives, satisfied by both
// M3igEncoder and ApproxEncoder: allocate a variable space, emit the
// minterm-independent structural clauses, emit per-minterm consistency
// either eagerly or lazily (CEGAR), and decode a satisfying assignment.
type chainEncoder interface {
	TotalVars() int
	Allocate(solver sat.Solver)
	EmitStructural(solver sat.Solver) int
	EmitConsistencyForMinterm(solver sat.Solver, t int) bool
	EmitConsistencyFull(solver sat.Solver) bool
	EmitOutputConsistencyForMinterm(solver sat.Solver, t int) bool
	EmitOutputConsistencyFull(solver sat.Solver) bool
	ExtractChain(solver sat.Solver) (*Chain, error)
}

// encoderFactory builds a fresh encoder for a given step count and fence,
// letting SynthesisDriver stay agnostic to exact-vs-approximate mode.
type encoderFactory func(numSteps int, fence *Fence) chainEncoder

// driverState names the SynthesisDriver state-machine states.
type driverState int

const (
	stateEncode driverState = iota
	stateSolve
	stateCegarSolve
	stateGrow
	stateDone
)

// SynthesisDriver runs the synthesis state machine: Encode, Solve (or
// CegarSolve), Grow, Done, over increasing step counts starting from
// spec.Options.InitialSteps. It keeps the best verified chain found so
// far as an incumbent, so exhausting the step-count cap can still return
// a usable result.
type SynthesisDriver struct {
	spec    *Specification
	factory encoderFactory
	log     *obslog.Logger

	// approx is non-nil in approximate mode, switching the CEGAR
	// match/mismatch and final-verification checks from exact equality
	// to the error-budget relation.
	approx *ApproxOptions
}

// NewSynthesisDriver builds a driver for spec using factory to construct
// a fresh encoder each time the driver grows the step count.
func NewSynthesisDriver(spec *Specification, factory encoderFactory) *SynthesisDriver {
	return &SynthesisDriver{spec: spec, factory: factory, log: obslog.New(spec.Options.Verbosity)}
}

// NewExactSynthesisDriver is the common case: a plain (or fence-restricted)
// M3igEncoder, selected by spec.Options.UseFence.
func NewExactSynthesisDriver(spec *Specification) *SynthesisDriver {
	return NewSynthesisDriver(spec, func(numSteps int, fence *Fence) chainEncoder {
		return NewM3igEncoder(spec, numSteps, fence)
	})
}

// NewApproxSynthesisDriver builds an approximate driver layering
// ApproxEncoder over the exact machinery.
func NewApproxSynthesisDriver(spec *Specification, approxOpts ApproxOptions) *SynthesisDriver {
	d := NewSynthesisDriver(spec, func(numSteps int, fence *Fence) chainEncoder {
		return NewApproxEncoder(spec, numSteps, fence, approxOpts)
	})
	d.approx = &approxOpts
	return d
}

// Result is what a synthesis call reports on success.
type Result struct {
	Chain     *Chain
	StepCount int
	// Approximate reports whether the returned chain only satisfies an
	// error-budget relation rather than exact equality.
	Approximate bool
	// RunID correlates this result's log lines (and, for
	// ParallelSynthesisDriver, every worker's) across one Run call.
	RunID string
}

// Run drives the state machine to completion, returning the synthesized
// chain or a SynthesisError (see errors.go) wrapping ErrTimeout or
// ErrUnsynthesizable.
func (d *SynthesisDriver) Run() (*Result, error) {
	if err := d.spec.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	rlog := d.log.WithRunID(runID)

	if d.spec.NumNontriv() == 0 {
		rlog.Tracef(1, "spec fully trivial (num_triv == num_outputs), skipping solver")
		chain, err := trivialChain(d.spec)
		if err != nil {
			return nil, err
		}
		return &Result{Chain: chain, StepCount: 0, Approximate: d.approx != nil, RunID: runID}, nil
	}

	opts := d.spec.Options
	stepCount := opts.InitialSteps
	if stepCount < 1 {
		stepCount = 1
	}

	var fence *Fence
	var fenceEnum *FenceEnumerator
	var fenceCandidates []Fence
	if opts.UseFence {
		fenceEnum = NewFenceEnumerator(d.spec.NumNontriv())
	}

	var incumbent *Chain
	var incumbentSteps int

	state := stateEncode
	var enc chainEncoder
	var solver sat.Solver
	cegarInner := 0
	cegarCap := opts.CegarInnerCap
	if cegarCap <= 0 {
		cegarCap = 10
	}

	// In fence mode an Unsat (or exhausted) attempt first moves on to the
	// next fence of the same step count; only a drained fence list grows.
	nextAttempt := func() driverState {
		if opts.UseFence && len(fenceCandidates) > 0 {
			return stateEncode
		}
		return stateGrow
	}

	for {
		switch state {
		case stateEncode:
			if opts.UseFence {
				if len(fenceCandidates) == 0 {
					fenceCandidates = fenceEnum.Generate(stepCount)
				}
				if len(fenceCandidates) == 0 {
					state = stateGrow
					continue
				}
				fence = &fenceCandidates[0]
				fenceCandidates = fenceCandidates[1:]
			}
			enc = d.factory(stepCount, fence)
			solver = sat.NewCDCLSolver()
			enc.Allocate(solver)
			succeeded := enc.EmitStructural(solver)
			if succeeded == 0 {
				rlog.Tracef(1, "encoder exhausted at step_count=%d", stepCount)
				state = nextAttempt()
				continue
			}
			if opts.UseCegar {
				cegarInner = 0
				state = stateCegarSolve
			} else {
				enc.EmitConsistencyFull(solver)
				enc.EmitOutputConsistencyFull(solver)
				state = stateSolve
			}

		case stateSolve:
			status := solver.Solve(opts.ConflictLimit)
			switch status {
			case sat.Sat:
				chain, err := enc.ExtractChain(solver)
				if err != nil {
					return nil, err
				}
				incumbent, incumbentSteps = chain, stepCount
				state = stateDone
			case sat.Unsat:
				rlog.Tracef(1, "unsat at step_count=%d", stepCount)
				state = nextAttempt()
			case sat.Timeout:
				return nil, newSynthesisError(ErrTimeout, stepCount, "")
			default:
				return nil, newSynthesisError(ErrSolverUnexpected, stepCount, status.String())
			}

		case stateCegarSolve:
			status := solver.Solve(opts.ConflictLimit)
			switch status {
			case sat.Unsat:
				rlog.Tracef(1, "cegar unsat at step_count=%d", stepCount)
				state = nextAttempt()
				continue
			case sat.Timeout:
				return nil, newSynthesisError(ErrTimeout, stepCount, "")
			case sat.Sat:
				// fallthrough to candidate-check below
			default:
				return nil, newSynthesisError(ErrSolverUnexpected, stepCount, status.String())
			}

			chain, err := enc.ExtractChain(solver)
			if err != nil {
				return nil, err
			}
			var ok bool
			if d.approx != nil {
				ok = ApproxVerify(chain, d.spec, d.approx.ErrorDistance) == nil
			} else {
				ok, err = chain.Satisfies(d.spec)
				if err != nil {
					return nil, err
				}
			}
			if ok {
				incumbent, incumbentSteps = chain, stepCount
				state = stateDone
				continue
			}

			var mismatch int
			var found bool
			if d.approx != nil {
				mismatch, found = firstApproxMismatch(chain, d.spec, d.approx.ErrorDistance)
			} else {
				mismatch, found = firstMismatch(chain, d.spec)
			}
			if !found {
				incumbent, incumbentSteps = chain, stepCount
				state = stateDone
				continue
			}
			enc.EmitConsistencyForMinterm(solver, mismatch)
			enc.EmitOutputConsistencyForMinterm(solver, mismatch)

			cegarInner++
			if cegarInner >= cegarCap {
				rlog.Tracef(1, "cegar inner cap reached at step_count=%d", stepCount)
				state = nextAttempt()
			}

		case stateGrow:
			stepCount++
			stepCap := opts.StepCountCap
			if stepCap <= 0 {
				stepCap = 20
			}
			if stepCount > stepCap {
				if incumbent != nil {
					return &Result{Chain: incumbent, StepCount: incumbentSteps, Approximate: d.approx != nil, RunID: runID}, nil
				}
				return nil, newSynthesisError(ErrUnsynthesizable, stepCount-1, "")
			}
			fenceCandidates = nil
			state = stateEncode

		case stateDone:
			if d.approx != nil {
				if err := ApproxVerify(incumbent, d.spec, d.approx.ErrorDistance); err != nil {
					return nil, err
				}
			} else if err := incumbent.Verify(d.spec); err != nil {
				return nil, err
			}
			return &Result{Chain: incumbent, StepCount: incumbentSteps, Approximate: d.approx != nil, RunID: runID}, nil
		}
	}
}

// firstMismatch simulates chain and returns the first minterm (0-based,
// per the normalized-chain convention) where it disagrees with spec, for
// the CEGAR refinement loop.
func firstMismatch(chain *Chain, spec *Specification) (int, bool) {
	outputs, err := chain.Simulate()
	if err != nil {
		return 0, false
	}
	if len(outputs) != len(spec.Functions) {
		return 0, false
	}
	for t := 0; t < spec.TTSize(); t++ {
		for h, tt := range outputs {
			if spec.IsTrivial(h) {
				continue
			}
			if tt.Bit(t+1) != spec.Functions[h].Bit(t+1) {
				return t, true
			}
		}
	}
	return 0, false
}

// firstApproxMismatch is firstMismatch's approximate-mode counterpart: it
// reports the first minterm where the joint non-trivial output value
// strays outside the error budget, or where a trivial output disagrees
// at all.
func firstApproxMismatch(chain *Chain, spec *Specification, errorDistance int) (int, bool) {
	outputs, err := chain.Simulate()
	if err != nil || len(outputs) != len(spec.Functions) {
		return 0, false
	}
	nontriv := spec.NontrivialIndices()
	for t := 0; t < spec.TTSize(); t++ {
		for h, tt := range outputs {
			if spec.IsTrivial(h) && tt.Bit(t+1) != spec.Functions[h].Bit(t+1) {
				return t, true
			}
		}
		specVal, actVal := 0, 0
		for idx, h := range nontriv {
			if spec.Functions[h].Bit(t + 1) {
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
			return t, true
		}
	}
	return 0, false
}
