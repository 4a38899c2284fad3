package synth

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gitrdm/m3igsynth/pkg/synth/obslog"
	"github.com/gitrdm/m3igsynth/pkg/synth/sat"
)

// ParallelSynthesisDriver is the worker-pool CEGAR+fence driver: a
// producer goroutine enumerates fences in increasing step-count order
// onto a bounded channel, and a fixed pool of workers each pull one fence
// at a time, build a fresh WorkerSolver-backed encoder for it, and run a
// small-budget CEGAR loop until one succeeds or the fence space is
// exhausted. An atomic.Bool "found" flag plus sync.Once-guarded
// cancellation publish the first success; the producer's blocking send on
// a full channel is the back-pressure mechanism bounding memory.
type ParallelSynthesisDriver struct {
	spec    *Specification
	factory encoderFactory
	opts    SynthesisOptions
	log     *obslog.Logger
	approx  *ApproxOptions
}

// NewParallelSynthesisDriver builds a parallel driver for spec using
// factory to construct a fresh, fence-restricted encoder per attempt.
func NewParallelSynthesisDriver(spec *Specification, factory encoderFactory) *ParallelSynthesisDriver {
	return &ParallelSynthesisDriver{spec: spec, factory: factory, opts: spec.Options, log: obslog.New(spec.Options.Verbosity)}
}

// NewExactParallelSynthesisDriver builds a parallel driver over
// M3igEncoder.
func NewExactParallelSynthesisDriver(spec *Specification) *ParallelSynthesisDriver {
	return NewParallelSynthesisDriver(spec, func(numSteps int, fence *Fence) chainEncoder {
		return NewM3igEncoder(spec, numSteps, fence)
	})
}

// NewApproxParallelSynthesisDriver builds a parallel driver over
// ApproxEncoder.
func NewApproxParallelSynthesisDriver(spec *Specification, approxOpts ApproxOptions) *ParallelSynthesisDriver {
	d := NewParallelSynthesisDriver(spec, func(numSteps int, fence *Fence) chainEncoder {
		return NewApproxEncoder(spec, numSteps, fence, approxOpts)
	})
	d.approx = &approxOpts
	return d
}

// Run fans fence attempts out across NumWorkers goroutines (0 defaults
// to runtime.NumCPU()), returning the first verified chain any worker
// finds.
func (d *ParallelSynthesisDriver) Run(ctx context.Context) (*Result, error) {
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

	numWorkers := d.opts.NumWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	queueSize := d.opts.FenceQueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	stepCap := d.opts.StepCountCap
	if stepCap <= 0 {
		stepCap = 20
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	fenceChan := make(chan Fence, queueSize)

	var found atomic.Bool
	var cancelOnce sync.Once
	var publishMu sync.Mutex
	var published *Result

	go d.produceFences(workerCtx, fenceChan, stepCap)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			d.worker(workerCtx, cancel, &cancelOnce, workerID, fenceChan, &found, &publishMu, &published, rlog, runID)
		}(i)
	}
	wg.Wait()

	if published == nil {
		return nil, newSynthesisError(ErrUnsynthesizable, stepCap, "parallel search exhausted fence space")
	}
	return published, nil
}

// produceFences enumerates every step count's fences in order onto
// fenceChan, blocking on a full channel (the search's back-pressure) and
// stopping once ctx is cancelled (a worker found a chain) or the step
// count cap is reached.
func (d *ParallelSynthesisDriver) produceFences(ctx context.Context, fenceChan chan<- Fence, stepCap int) {
	defer close(fenceChan)
	stepCount := d.opts.InitialSteps
	if stepCount < 1 {
		stepCount = 1
	}
	enumerator := NewFenceEnumerator(d.spec.NumNontriv())
	for ; stepCount <= stepCap; stepCount++ {
		for _, f := range enumerator.Generate(stepCount) {
			select {
			case fenceChan <- f:
			case <-ctx.Done():
				return
			}
		}
	}
}

// worker pulls fences from fenceChan until one succeeds, the channel
// closes, or ctx is cancelled by a sibling worker's success.
func (d *ParallelSynthesisDriver) worker(ctx context.Context, cancel context.CancelFunc, cancelOnce *sync.Once, workerID int, fenceChan <-chan Fence, found *atomic.Bool, publishMu *sync.Mutex, published **Result, rlog *obslog.Logger, runID string) {
	wlog := rlog.NewWithPrefix(fmt.Sprintf("worker-%d", workerID))
	for {
		if found.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case fence, ok := <-fenceChan:
			if !ok {
				return
			}
			chain, ok := d.attemptFence(ctx, fence, wlog)
			if !ok {
				continue
			}
			if found.CompareAndSwap(false, true) {
				publishMu.Lock()
				*published = &Result{Chain: chain, StepCount: fence.StepCount(), Approximate: d.approx != nil, RunID: runID}
				publishMu.Unlock()
			}
			cancelOnce.Do(cancel)
			return
		}
	}
}

// attemptFence runs a small-budget CEGAR loop for one fence using a
// fresh WorkerSolver: cheap to construct, no clause-learning overhead,
// sized for a short-lived per-fence attempt.
func (d *ParallelSynthesisDriver) attemptFence(ctx context.Context, fence Fence, wlog *obslog.Logger) (*Chain, bool) {
	stepCount := fence.StepCount()
	enc := d.factory(stepCount, &fence)
	solver := sat.NewWorkerSolver()
	enc.Allocate(solver)
	if enc.EmitStructural(solver) == 0 {
		wlog.Tracef(2, "fence %v encoder exhausted", fence.Levels)
		return nil, false
	}

	budget := d.opts.PerFenceConflictBudget
	if budget <= 0 {
		budget = 10
	}
	cegarCap := d.opts.CegarInnerCap
	if cegarCap <= 0 {
		cegarCap = 10
	}

	// Each Solve call is bounded by the small per-call conflict budget so
	// the worker can observe cancellation between calls; a timed-out call
	// resumes where it left off. maxSolveCalls bounds the total effort
	// spent on one fence before moving to the next.
	const maxSolveCalls = 256
	calls := 0
	refinements := 0
	for {
		select {
		case <-ctx.Done():
			return nil, false
		default:
		}
		if calls >= maxSolveCalls {
			wlog.Tracef(2, "fence %v solve budget exhausted", fence.Levels)
			return nil, false
		}

		status := solver.Solve(budget)
		calls++
		if status == sat.Timeout {
			continue
		}
		if status != sat.Sat {
			return nil, false
		}
		chain, err := enc.ExtractChain(solver)
		if err != nil {
			return nil, false
		}

		var ok bool
		if d.approx != nil {
			ok = ApproxVerify(chain, d.spec, d.approx.ErrorDistance) == nil
		} else {
			ok, err = chain.Satisfies(d.spec)
			if err != nil {
				return nil, false
			}
		}
		if ok {
			wlog.Tracef(1, "fence %v succeeded after %d refinements", fence.Levels, refinements)
			return chain, true
		}

		var mismatch int
		var found bool
		if d.approx != nil {
			mismatch, found = firstApproxMismatch(chain, d.spec, d.approx.ErrorDistance)
		} else {
			mismatch, found = firstMismatch(chain, d.spec)
		}
		if !found {
			// Mismatch outside the refinable minterm range: the chain
			// cannot be repaired by further clauses, and it must not be
			// published unverified.
			return nil, false
		}
		enc.EmitConsistencyForMinterm(solver, mismatch)
		enc.EmitOutputConsistencyForMinterm(solver, mismatch)
		refinements++
		if refinements >= cegarCap {
			return nil, false
		}
	}
}
