package synth

import (
	"fmt"
	"io"

	"github.com/gitrdm/m3igsynth/pkg/synth/sat"
)

// DumpCNF writes solver's current clause set as a DIMACS file, prefixed
// with a "c run_id" comment line so a dumped encoding can
// be correlated back to the obslog trace lines from the same Run call.
// Returns an error if solver does not implement sat.CNFDumper (neither
// CDCLSolver nor WorkerSolver should ever hit this path).
func DumpCNF(w io.Writer, solver sat.Solver, runID string) error {
	dumper, ok := solver.(sat.CNFDumper)
	if !ok {
		return fmt.Errorf("synth: solver %T does not support CNF dumping", solver)
	}
	if _, err := fmt.Fprintf(w, "c run_id %s\n", runID); err != nil {
		return err
	}
	return dumper.DumpCNF(w)
}
