package sat

import (
	"bufio"
	"fmt"
	"io"
)

// WorkerSolver is the lightweight backend sized for construction inside a
// parallel worker goroutine: plain DPLL with full-scan unit propagation
// and chronological backtracking, no clause learning, no restarts. It
// trades CDCLSolver's asymptotic search efficiency for a smaller,
// allocation-light footprint that is cheap to spin up fresh per fence
// attempt, with the same explicit conflict budget.
type WorkerSolver struct {
	nVars int

	clauses [][]int32
	assigns []int8

	trail []int32
	stack []workerFrame

	ok bool
}

type workerFrame struct {
	v         int
	trailMark int
	triedBoth bool
}

func NewWorkerSolver() *WorkerSolver {
	return &WorkerSolver{ok: true}
}

func (s *WorkerSolver) ResetWithVars(n int) {
	s.nVars = n
	s.clauses = s.clauses[:0]
	s.assigns = make([]int8, n)
	s.trail = s.trail[:0]
	s.stack = s.stack[:0]
	s.ok = true
}

func (s *WorkerSolver) NumVars() int { return s.nVars }

func (s *WorkerSolver) litValue(l int32) int8 {
	a := s.assigns[varOf(l)]
	if a == lUndef {
		return lUndef
	}
	if l > 0 {
		return a
	}
	if a == lTrue {
		return lFalse
	}
	return lTrue
}

// AddClause adds a clause, deduping literals and dropping tautologies.
// Clauses may arrive between Solve calls; the in-progress assignment is
// discarded first, since a refinement clause is typically violated by the
// assignment that prompted it and must not be judged against it.
// Returns false only for an empty clause or once the solver is already
// unsatisfiable; a clause that conflicts with earlier clauses (even a unit
// clause contradicting an earlier unit) is accepted, and the next Solve
// reports Unsat.
func (s *WorkerSolver) AddClause(lits []int32) bool {
	if !s.ok {
		return false
	}
	s.undoToMark(0)
	s.stack = s.stack[:0]
	seen := make(map[int32]bool, len(lits))
	ls := make([]int32, 0, len(lits))
	for _, l := range lits {
		if seen[-l] {
			return true
		}
		if seen[l] {
			continue
		}
		seen[l] = true
		ls = append(ls, l)
	}
	if len(ls) == 0 {
		s.ok = false
		return false
	}
	s.clauses = append(s.clauses, ls)
	return true
}

func (s *WorkerSolver) assign(l int32) {
	v := varOf(l)
	if l > 0 {
		s.assigns[v] = lTrue
	} else {
		s.assigns[v] = lFalse
	}
	s.trail = append(s.trail, l)
}

// propagateAll scans every clause to a fixed point, assigning forced
// unit literals. Returns false if a clause becomes falsified.
func (s *WorkerSolver) propagateAll() bool {
	changed := true
	for changed {
		changed = false
		for _, cl := range s.clauses {
			satisfied := false
			numUnassigned := 0
			var unassignedLit int32
			for _, l := range cl {
				switch s.litValue(l) {
				case lTrue:
					satisfied = true
				case lUndef:
					numUnassigned++
					unassignedLit = l
				}
			}
			if satisfied {
				continue
			}
			if numUnassigned == 0 {
				return false
			}
			if numUnassigned == 1 {
				s.assign(unassignedLit)
				changed = true
			}
		}
	}
	return true
}

func (s *WorkerSolver) undoToMark(mark int) {
	for i := len(s.trail) - 1; i >= mark; i-- {
		v := varOf(s.trail[i])
		s.assigns[v] = lUndef
	}
	s.trail = s.trail[:mark]
}

func (s *WorkerSolver) pickUnassigned() int {
	for v := 0; v < s.nVars; v++ {
		if s.assigns[v] == lUndef {
			return v
		}
	}
	return -1
}

// Solve performs plain DPLL search under a conflict budget (0 = unlimited).
// Every iteration re-propagates before deciding, so a call that timed out
// mid-search (or a search state reset by AddClause) resumes soundly: an
// unresolved conflict is re-detected rather than assumed handled.
func (s *WorkerSolver) Solve(conflictLimit int) Status {
	if !s.ok {
		return Unsat
	}
	conflicts := 0

	for {
		if s.propagateAll() {
			v := s.pickUnassigned()
			if v == -1 {
				return Sat
			}
			s.stack = append(s.stack, workerFrame{v: v, trailMark: len(s.trail), triedBoth: false})
			s.assign(int32(v + 1))
			continue
		}

		conflicts++
		if conflictLimit > 0 && conflicts >= conflictLimit {
			return Timeout
		}
		for {
			if len(s.stack) == 0 {
				return Unsat
			}
			top := &s.stack[len(s.stack)-1]
			s.undoToMark(top.trailMark)
			if !top.triedBoth {
				top.triedBoth = true
				s.assign(int32(-(top.v + 1)))
				break
			}
			s.stack = s.stack[:len(s.stack)-1]
		}
	}
}

func (s *WorkerSolver) Value(v int) bool {
	return s.assigns[v] == lTrue
}

// DumpCNF writes the current clause set as a DIMACS file: header
// "p cnf V C" followed by one space-separated, 0-terminated line per
// clause. WorkerSolver keeps every added clause (unit or
// not) in a single flat slice, so no separate unit-clause bookkeeping is
// needed here the way CDCLSolver.DumpCNF requires.
func (s *WorkerSolver) DumpCNF(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "p cnf %d %d\n", s.nVars, len(s.clauses)); err != nil {
		return err
	}
	for _, cl := range s.clauses {
		for _, l := range cl {
			if _, err := fmt.Fprintf(bw, "%d ", l); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(bw, "0"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
