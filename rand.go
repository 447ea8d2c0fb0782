package schedz

// Four-lane combined Tausworthe generator used by the lottery selector.
// Lane state lives in package storage; callers must hold the process table
// lock, the generator itself takes no locks.
var (
	randZ1 uint32 = 12345
	randZ2 uint32 = 12345
	randZ3 uint32 = 12345
	randZ4 uint32 = 12345
)

// random returns a value in [0, max). When max <= 0 it returns 1, a
// defensive fallback so a degenerate ticket pool cannot select anyone
// (no cumulative limit ever exceeds 1 when every limit is 0).
func random(max int) int {
	if max <= 0 {
		return 1
	}

	var b uint32
	b = ((randZ1 << 6) ^ randZ1) >> 13
	randZ1 = ((randZ1 & 4294967294) << 18) ^ b
	b = ((randZ2 << 2) ^ randZ2) >> 27
	randZ2 = ((randZ2 & 4294967288) << 2) ^ b
	b = ((randZ3 << 13) ^ randZ3) >> 21
	randZ3 = ((randZ3 & 4294967280) << 7) ^ b
	b = ((randZ4 << 3) ^ randZ4) >> 12
	randZ4 = ((randZ4 & 4294967168) << 13) ^ b

	return int((randZ1 ^ randZ2 ^ randZ3 ^ randZ4) % uint32(max))
}

// resetRandom restores the generator to its boot state. Tests use this to
// make lottery draws reproducible.
func resetRandom() {
	randZ1, randZ2, randZ3, randZ4 = 12345, 12345, 12345, 12345
}
