package synth

import (
	"strings"
	"testing"

	"github.com/gitrdm/m3igsynth/pkg/synth/sat"
)

func TestDumpCNFIncludesRunIDAndClauses(t *testing.T) {
	spec := specFor(0xE8)
	enc := NewM3igEncoder(spec, 1, nil)
	solver := sat.NewCDCLSolver()
	enc.Allocate(solver)
	if enc.EmitStructural(solver) == 0 {
		t.Fatal("EmitStructural() = 0, want at least one viable step")
	}

	var buf strings.Builder
	if err := DumpCNF(&buf, solver, "test-run-id"); err != nil {
		t.Fatalf("DumpCNF() error = %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "c run_id test-run-id\n") {
		t.Errorf("DumpCNF() output = %q, want a leading run_id comment", out)
	}
	if !strings.Contains(out, "p cnf") {
		t.Errorf("DumpCNF() output = %q, want a DIMACS header line", out)
	}
}

func TestDumpCNFRejectsNonDumpingSolver(t *testing.T) {
	if err := DumpCNF(&strings.Builder{}, fakeSolver{}, "run"); err == nil {
		t.Error("DumpCNF() with a non-dumping solver = nil error, want an error")
	}
}

// fakeSolver satisfies sat.Solver but not sat.CNFDumper, confirming
// DumpCNF's type-assertion failure path.
type fakeSolver struct{}

func (fakeSolver) ResetWithVars(n int)                {}
func (fakeSolver) AddClause(lits []int32) bool        { return true }
func (fakeSolver) Solve(conflictLimit int) sat.Status { return sat.Unsat }
func (fakeSolver) Value(v int) bool                   { return false }
func (fakeSolver) NumVars() int                       { return 0 }
