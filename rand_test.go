package schedz

import "testing"

func TestRandom_Bounds(t *testing.T) {
	t.Run("Degenerate Max", func(t *testing.T) {
		resetRandom()
		for _, max := range []int{0, -1, -100} {
			if got := random(max); got != 1 {
				t.Errorf("random(%d) = %d, want 1", max, got)
			}
		}
	})

	t.Run("Within Range", func(t *testing.T) {
		resetRandom()
		for _, max := range []int{1, 2, 7, 100, 1000000} {
			for i := 0; i < 1000; i++ {
				if got := random(max); got < 0 || got >= max {
					t.Fatalf("random(%d) = %d, out of range", max, got)
				}
			}
		}
	})
}

func TestRandom_Deterministic(t *testing.T) {
	resetRandom()
	first := make([]int, 64)
	for i := range first {
		first[i] = random(1000)
	}

	resetRandom()
	for i := range first {
		if got := random(1000); got != first[i] {
			t.Fatalf("draw %d = %d after reset, want %d", i, got, first[i])
		}
	}
}

func TestRandom_CoversResidues(t *testing.T) {
	resetRandom()
	seen := make(map[int]bool)
	for i := 0; i < 1000 && len(seen) < 4; i++ {
		seen[random(4)] = true
	}
	for r := 0; r < 4; r++ {
		if !seen[r] {
			t.Errorf("residue %d never drawn", r)
		}
	}
}
