package synth

import "testing"

func TestFenceStepCount(t *testing.T) {
	f := Fence{Levels: []int{2, 1, 3}}
	if got, want := f.StepCount(), 6; got != want {
		t.Errorf("StepCount() = %d, want %d", got, want)
	}
}

func TestFenceLevelDist(t *testing.T) {
	f := Fence{Levels: []int{2, 3}}
	dist := f.LevelDist(3)
	want := []int{4, 6, 9}
	if len(dist) != len(want) {
		t.Fatalf("LevelDist() = %v, want %v", dist, want)
	}
	for i := range want {
		if dist[i] != want[i] {
			t.Errorf("LevelDist()[%d] = %d, want %d", i, dist[i], want[i])
		}
	}
}

func TestUnboundedGeneratorCompositions(t *testing.T) {
	fe := NewFenceEnumerator(1)
	fences := fe.UnboundedGenerator(4)
	// Compositions of 4 into positive parts: 2^(4-1) = 8.
	if got, want := len(fences), 8; got != want {
		t.Fatalf("UnboundedGenerator(4) produced %d fences, want %d", got, want)
	}
	for _, f := range fences {
		if got := f.StepCount(); got != 4 {
			t.Errorf("fence %v has StepCount() = %d, want 4", f.Levels, got)
		}
		for _, l := range f.Levels {
			if l <= 0 {
				t.Errorf("fence %v has a non-positive level", f.Levels)
			}
		}
	}
}

func TestPoFilter(t *testing.T) {
	// numOutputs=6, fanin=3: minLast = 2, so the last level must hold >= 2 steps.
	fe := NewFenceEnumerator(6)
	fences := fe.UnboundedGenerator(4)
	filtered := fe.PoFilter(fences)
	for _, f := range filtered {
		last := f.Levels[len(f.Levels)-1]
		if last < 2 {
			t.Errorf("fence %v survived PoFilter with last level %d < 2", f.Levels, last)
		}
	}
	if len(filtered) == 0 {
		t.Fatal("PoFilter rejected every fence; expected at least one survivor")
	}
}

func TestGenerateIsFiltered(t *testing.T) {
	fe := NewFenceEnumerator(3)
	fences := fe.Generate(2)
	for _, f := range fences {
		if got := f.StepCount(); got != 2 {
			t.Errorf("Generate(2) produced a fence with StepCount() = %d", got)
		}
	}
}
