package schedz

// The tick counter is the kernel's only notion of time: arrival times,
// round-robin staleness and BJF arrival weights are all tick-denominated.
// A clockz-driven loop advances it so tests can drive time with a fake
// clock.

func (k *Kernel) timerLoop() {
	defer k.wg.Done()
	for {
		select {
		case <-k.clock.After(k.tickInterval):
			k.ticks.Add(1)
		case <-k.done:
			return
		}
	}
}

// Ticks returns the current tick count.
func (k *Kernel) Ticks() int {
	return int(k.ticks.Load())
}

func (k *Kernel) now() int {
	return int(k.ticks.Load())
}

// advanceTicks moves time forward directly. Test hook; the timer loop is
// the production path.
func (k *Kernel) advanceTicks(n int) {
	k.ticks.Add(int64(n))
}
