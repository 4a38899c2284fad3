// Package sat provides the incremental SAT solving capability the exact
// synthesis encoder drives: add-clause, solve-with-conflict-limit, read
// variable assignment, restart. Two backends implement Solver: CDCLSolver
// (shared across the driver's sequential restarts) and WorkerSolver (a
// lighter, dependency-free solver sized for construction inside a
// parallel worker goroutine). Neither backend is safe for concurrent use
// by multiple goroutines against the same instance; the engine never
// shares one solver across workers.
package sat

import "io"

// Status is the tri-state result of a bounded solve call.
type Status int

const (
	// Unsat means the current clause set has no satisfying assignment.
	Unsat Status = iota
	// Sat means a satisfying assignment was found; Value is defined for
	// every variable until the next ResetWithVars, AddClause or Solve call.
	Sat
	// Timeout means the conflict budget was exhausted before either
	// Sat or Unsat could be determined.
	Timeout
)

func (s Status) String() string {
	switch s {
	case Unsat:
		return "Unsat"
	case Sat:
		return "Sat"
	case Timeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Solver is the abstract incremental SAT-solving capability. Literals are
// signed 1-based variable references (DIMACS convention): a positive
// literal v asserts variable v-1 true, a negative literal -v asserts it
// false. This lets CNF dumps write clauses with no translation step.
type Solver interface {
	// ResetWithVars discards any prior state and allocates n boolean
	// variables numbered 0..n-1 (as 1-based literals 1..n).
	ResetWithVars(n int)

	// AddClause adds a clause (a disjunction of the given literals).
	// Returns false when the clause made the formula trivially
	// unsatisfiable. Both backends report an empty clause this way;
	// CDCLSolver also reports a clause falsified at decision level 0 (e.g.
	// a unit clause conflicting with an already-forced unit), while
	// WorkerSolver accepts such a clause and its next Solve returns Unsat.
	AddClause(lits []int32) bool

	// Solve searches for a satisfying assignment under a conflict
	// budget; conflictLimit == 0 means unlimited.
	Solve(conflictLimit int) Status

	// Value reads the last satisfying assignment for variable v
	// (0-based). Undefined unless the last Solve call returned Sat.
	Value(v int) bool

	// NumVars reports the variable count passed to the last
	// ResetWithVars call.
	NumVars() int
}

// CNFDumper is implemented by backends that can serialize their current
// clause set for debugging: a DIMACS file with header
// "p cnf V C" followed by one clause per line, terminated with a literal
// 0, 1-based variables, negative literal for a complemented occurrence.
// Both CDCLSolver and WorkerSolver implement this; it is kept separate
// from Solver because dumping the encoding is a debug aid the driver
// never calls itself.
type CNFDumper interface {
	DumpCNF(w io.Writer) error
}
