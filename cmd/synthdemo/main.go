// Package main demonstrates exact and approximate M3IG synthesis.
package main

import (
	"context"
	"fmt"

	"github.com/gitrdm/m3igsynth/pkg/synth"
)

func main() {
	fmt.Println("=== M3IG Exact Synthesis Examples ===")
	fmt.Println()

	demoAnd3()
	demoXor3Cegar()
	demoFullAdder()
	demoApproxXor3()
	demoParallelFence()
}

// demoAnd3 synthesizes a 3-input AND gate with the plain (non-CEGAR,
// non-fence) driver.
func demoAnd3() {
	fmt.Println("1. 3-input AND (plain driver):")

	spec := &synth.Specification{
		NumVars:   3,
		Functions: []synth.TruthTable{synth.NewTruthTableFromUint64(3, 1<<7)},
		Options:   synth.DefaultSynthesisOptions(),
	}
	result, err := synth.NewExactSynthesisDriver(spec).Run()
	if err != nil {
		fmt.Printf("   synthesis failed: %v\n", err)
		return
	}
	fmt.Printf("   steps=%d expr=%s\n", result.StepCount, result.Chain.ToExpression())
	fmt.Println()
}

// demoXor3Cegar synthesizes 3-input XOR with lazy (CEGAR) consistency
// clause emission, which needs several counterexample rounds.
func demoXor3Cegar() {
	fmt.Println("2. 3-input XOR (CEGAR driver):")

	opts := synth.DefaultSynthesisOptions()
	opts.UseCegar = true
	spec := &synth.Specification{
		NumVars:   3,
		Functions: []synth.TruthTable{synth.NewTruthTableFromUint64(3, 0x96)},
		Options:   opts,
	}
	result, err := synth.NewExactSynthesisDriver(spec).Run()
	if err != nil {
		fmt.Printf("   synthesis failed: %v\n", err)
		return
	}
	fmt.Printf("   steps=%d expr=%s\n", result.StepCount, result.Chain.ToExpression())
	fmt.Println()
}

// demoFullAdder synthesizes both outputs of a full adder (sum, carry) in
// one call; carry is itself a bare majority gate, sum is not.
func demoFullAdder() {
	fmt.Println("3. Full adder (sum, carry):")

	spec := &synth.Specification{
		NumVars: 3,
		Functions: []synth.TruthTable{
			synth.NewTruthTableFromUint64(3, 0x96), // sum = a xor b xor cin
			synth.NewTruthTableFromUint64(3, 0xE8), // carry = majority(a,b,cin)
		},
		Options: synth.DefaultSynthesisOptions(),
	}
	result, err := synth.NewExactSynthesisDriver(spec).Run()
	if err != nil {
		fmt.Printf("   synthesis failed: %v\n", err)
		return
	}
	fmt.Printf("   steps=%d expr=%s\n", result.StepCount, result.Chain.ToExpression())
	for _, line := range result.Chain.ToRecordLines() {
		fmt.Printf("     %s\n", line)
	}
	fmt.Println()
}

// demoApproxXor3 synthesizes an approximate 3-input XOR allowed to
// disagree with the exact function by up to 1 in joint output value at
// any minterm, which typically finds a smaller chain than the exact case.
func demoApproxXor3() {
	fmt.Println("4. Approximate 3-input XOR (error_distance=1):")

	opts := synth.DefaultSynthesisOptions()
	spec := &synth.Specification{
		NumVars:   3,
		Functions: []synth.TruthTable{synth.NewTruthTableFromUint64(3, 0x96)},
		Options:   opts,
	}
	approxOpts := synth.ApproxOptions{ErrorDistance: 1, MinNodes: 1, AllowProjection: true}
	result, err := synth.NewApproxSynthesisDriver(spec, approxOpts).Run()
	if err != nil {
		fmt.Printf("   synthesis failed: %v\n", err)
		return
	}
	fmt.Printf("   steps=%d approximate=%v expr=%s\n", result.StepCount, result.Approximate, result.Chain.ToExpression())
	fmt.Println()
}

// demoParallelFence synthesizes 3-input AND with the parallel
// CEGAR+fence driver, exercising the worker-pool search path.
func demoParallelFence() {
	fmt.Println("5. 3-input AND (parallel CEGAR+fence driver):")

	opts := synth.DefaultSynthesisOptions()
	opts.UseCegar = true
	opts.UseFence = true
	opts.Parallel = true
	opts.NumWorkers = 4
	spec := &synth.Specification{
		NumVars:   3,
		Functions: []synth.TruthTable{synth.NewTruthTableFromUint64(3, 1<<7)},
		Options:   opts,
	}
	result, err := synth.NewExactParallelSynthesisDriver(spec).Run(context.Background())
	if err != nil {
		fmt.Printf("   synthesis failed: %v\n", err)
		return
	}
	fmt.Printf("   steps=%d expr=%s\n", result.StepCount, result.Chain.ToExpression())
	fmt.Println()
}
