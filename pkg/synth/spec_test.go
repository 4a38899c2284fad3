package synth

import "testing"

func and3Spec() *Specification {
	return &Specification{
		NumVars:   3,
		Functions: []TruthTable{NewTruthTableFromUint64(3, 1<<7)},
		Options:   DefaultSynthesisOptions(),
	}
}

func TestSpecificationValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    *Specification
		wantErr bool
	}{
		{"valid and3", and3Spec(), false},
		{"too few vars", &Specification{NumVars: 2, Functions: []TruthTable{NewTruthTableFromUint64(2, 0xF)}}, true},
		{
			"width mismatch",
			&Specification{NumVars: 3, Functions: []TruthTable{NewTruthTableFromUint64(2, 0xF)}},
			true,
		},
		{
			"constant not marked trivial",
			&Specification{NumVars: 3, Functions: []TruthTable{NewTruthTableFromUint64(3, 0xFF)}},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSpecificationTrivialAccounting(t *testing.T) {
	spec := &Specification{
		NumVars: 3,
		Functions: []TruthTable{
			NewTruthTableFromUint64(3, 0xFF), // constant true, output 0
			NewTruthTableFromUint64(3, 0x96), // xor3, output 1
		},
		TrivFlagMask: 1, // output 0 is trivial
	}
	if !spec.IsTrivial(0) {
		t.Error("output 0 should be trivial")
	}
	if spec.IsTrivial(1) {
		t.Error("output 1 should not be trivial")
	}
	if got, want := spec.NumTriv(), 1; got != want {
		t.Errorf("NumTriv() = %d, want %d", got, want)
	}
	if got, want := spec.NumNontriv(), 1; got != want {
		t.Errorf("NumNontriv() = %d, want %d", got, want)
	}
	if got, want := spec.NontrivialIndices(), []int{1}; len(got) != len(want) || got[0] != want[0] {
		t.Errorf("NontrivialIndices() = %v, want %v", got, want)
	}
}

func TestSymmetricPairs(t *testing.T) {
	// majority(a,b,c) is fully symmetric in all three variables.
	maj := NewTruthTableFromUint64(3, 0xE8)
	spec := &Specification{NumVars: 3, Functions: []TruthTable{maj}}
	pairs := spec.SymmetricPairs()
	want := map[[2]int]bool{{1, 2}: true, {1, 3}: true, {2, 3}: true}
	if len(pairs) != len(want) {
		t.Fatalf("SymmetricPairs() = %v, want 3 pairs", pairs)
	}
	for _, p := range pairs {
		if !want[p] {
			t.Errorf("unexpected symmetric pair %v", p)
		}
	}

	// xor3 is also fully symmetric.
	xor := NewTruthTableFromUint64(3, 0x96)
	spec2 := &Specification{NumVars: 3, Functions: []TruthTable{xor}}
	if got := len(spec2.SymmetricPairs()); got != 3 {
		t.Errorf("xor3 SymmetricPairs() len = %d, want 3", got)
	}

	// a plain projection of v1 is not symmetric under swapping v1/v2.
	proj := NewTruthTableFromUint64(3, 0b10101010)
	spec3 := &Specification{NumVars: 3, Functions: []TruthTable{proj}}
	if got := len(spec3.SymmetricPairs()); got != 0 {
		t.Errorf("projection SymmetricPairs() len = %d, want 0", got)
	}
}

func TestTTSize(t *testing.T) {
	spec := and3Spec()
	if got, want := spec.TTSize(), 7; got != want {
		t.Errorf("TTSize() = %d, want %d", got, want)
	}
}
