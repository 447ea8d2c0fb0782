package schedz

import (
	"errors"
	"testing"
)

// semStack snapshots semaphore i's waiter pids, bottom to top.
func semStack(k *Kernel, self *Proc, i int) []int {
	c := k.curCPU(self)
	k.ptable.lock.Acquire(c)
	defer k.ptable.lock.Release(c)
	var pids []int
	for j := 0; j < k.sems[i].last; j++ {
		pids = append(pids, k.sems[i].list[j].pid)
	}
	return pids
}

func TestSem_Bounds(t *testing.T) {
	done := make(chan struct{})
	errs := make([]error, 3)

	k := testKernel(t, func(k *Kernel, init *Proc) {
		errs[0] = k.SemInit(init, -1, 1)
		errs[1] = k.SemInit(init, NSEM, 1)
		errs[2] = k.SemRelease(init, NSEM)
		close(done)
		for {
			k.Park(init)
		}
	})
	waitDone(t, done, "bounds")

	for i, err := range errs {
		if !errors.Is(err, ErrBadSemaphore) {
			t.Errorf("errs[%d] = %v, want ErrBadSemaphore", i, err)
		}
	}
	k.Shutdown()
}

func TestSem_ValueAccounting(t *testing.T) {
	done := make(chan struct{})
	var values []int

	k := testKernel(t, func(k *Kernel, init *Proc) {
		record := func() {
			v, err := k.SemValue(0)
			if err != nil {
				t.Errorf("sem value: %v", err)
			}
			values = append(values, v)
		}
		k.SemInit(init, 0, 3)
		record()
		k.SemAcquire(init, 0)
		k.SemAcquire(init, 0)
		record()
		k.SemRelease(init, 0)
		record()
		close(done)
		for {
			k.Park(init)
		}
	})
	waitDone(t, done, "accounting")

	want := []int{3, 1, 2}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("value[%d] = %d, want %d", i, values[i], want[i])
		}
	}
	k.Shutdown()
}

// A release with waiters hands the unit over instead of incrementing, so
// the value stays zero across the handoff.
func TestSem_HandoffKeepsValueZero(t *testing.T) {
	done := make(chan struct{})
	var during, after int

	k := testKernel(t, func(k *Kernel, init *Proc) {
		k.SemInit(init, 0, 1)
		k.SemAcquire(init, 0) // value 1 -> 0

		bpid, err := k.Fork(init, func(k *Kernel, self *Proc) {
			k.SemAcquire(self, 0) // blocks
			k.SemRelease(self, 0) // no waiters: value 0 -> 1
		})
		if err != nil {
			t.Errorf("fork: %v", err)
		}
		for procState(k, init, bpid) != Sleeping {
			k.Yield(init)
		}

		k.SemRelease(init, 0) // handoff to b
		during, _ = k.SemValue(0)
		if _, err := k.Wait(init); err != nil {
			t.Errorf("wait: %v", err)
		}
		after, _ = k.SemValue(0)
		close(done)
		for {
			k.Park(init)
		}
	})
	waitDone(t, done, "handoff")

	if during != 0 {
		t.Errorf("value during handoff = %d, want 0", during)
	}
	if after != 1 {
		t.Errorf("value after final release = %d, want 1", after)
	}
	if got := k.Metrics().Counter(SemHandoffsTotal).Value(); got != 1 {
		t.Errorf("handoffs = %v, want 1", got)
	}
	k.Shutdown()
}

// Waiters are released newest first.
func TestSem_LIFO(t *testing.T) {
	done := make(chan struct{})
	var blockOrder []int
	var stack []int
	var firstWoken int

	k := testKernel(t, func(k *Kernel, init *Proc) {
		k.SemInit(init, 0, 0)

		waiter := func(k *Kernel, self *Proc) {
			blockOrder = append(blockOrder, self.pid)
			k.SemAcquire(self, 0)
		}
		var pids []int
		for i := 0; i < 3; i++ {
			pid, err := k.Fork(init, waiter)
			if err != nil {
				t.Errorf("fork: %v", err)
			}
			pids = append(pids, pid)
		}
		for semWaiters(k, init, 0) != 3 {
			k.Yield(init)
		}
		stack = semStack(k, init, 0)

		k.SemRelease(init, 0)
		top := stack[len(stack)-1]
		for procState(k, init, top) == Sleeping {
			k.Yield(init)
		}
		firstWoken = top
		for _, pid := range stack[:len(stack)-1] {
			if procState(k, init, pid) != Sleeping {
				t.Errorf("pid %d woke before its turn", pid)
			}
		}

		k.SemRelease(init, 0)
		k.SemRelease(init, 0)
		for i := 0; i < 3; i++ {
			if _, err := k.Wait(init); err != nil {
				t.Errorf("wait: %v", err)
			}
		}
		_ = pids
		close(done)
		for {
			k.Park(init)
		}
	})
	waitDone(t, done, "lifo")

	if len(stack) != 3 || len(blockOrder) != 3 {
		t.Fatalf("stack %v, block order %v, want 3 entries each", stack, blockOrder)
	}
	for i := range stack {
		if stack[i] != blockOrder[i] {
			t.Errorf("stack %v does not match block order %v", stack, blockOrder)
			break
		}
	}
	if firstWoken != blockOrder[2] {
		t.Errorf("first woken = %d, want most recent blocker %d", firstWoken, blockOrder[2])
	}
	k.Shutdown()
}

// With a binary semaphore, critical sections never overlap even when every
// occupant yields the CPU inside one.
func TestSem_MutualExclusion(t *testing.T) {
	done := make(chan struct{})
	var inside, overlaps, entries int

	k := testKernel(t, func(k *Kernel, init *Proc) {
		k.SemInit(init, 0, 1)
		worker := func(k *Kernel, self *Proc) {
			for j := 0; j < 10; j++ {
				k.SemAcquire(self, 0)
				inside++
				if inside > 1 {
					overlaps++
				}
				entries++
				k.Yield(self)
				inside--
				k.SemRelease(self, 0)
			}
		}
		for i := 0; i < 3; i++ {
			if _, err := k.Fork(init, worker); err != nil {
				t.Errorf("fork: %v", err)
			}
		}
		for i := 0; i < 3; i++ {
			if _, err := k.Wait(init); err != nil {
				t.Errorf("wait: %v", err)
			}
		}
		close(done)
		for {
			k.Park(init)
		}
	})
	waitDone(t, done, "mutual exclusion")

	if overlaps != 0 {
		t.Errorf("%d overlapping critical sections", overlaps)
	}
	if entries != 30 {
		t.Errorf("%d critical section entries, want 30", entries)
	}
	checkInvariants(t, k)
	k.Shutdown()
}

// Five philosophers, chopstick semaphores of one, a room semaphore of
// four: everyone eats, nothing deadlocks, and the semaphores return to
// their initial values.
func TestSem_DiningPhilosophers(t *testing.T) {
	const philosophers = 5
	const meals = 3
	const room = philosophers

	done := make(chan struct{})
	ate := make([]int, philosophers)

	k := testKernel(t, func(k *Kernel, init *Proc) {
		for i := 0; i < philosophers; i++ {
			k.SemInit(init, i, 1)
		}
		k.SemInit(init, room, philosophers-1)

		for i := 0; i < philosophers; i++ {
			n := i
			_, err := k.Fork(init, func(k *Kernel, self *Proc) {
				left, right := n, (n+1)%philosophers
				for m := 0; m < meals; m++ {
					k.SemAcquire(self, room)
					k.SemAcquire(self, left)
					k.SemAcquire(self, right)
					ate[n]++
					k.Yield(self)
					k.SemRelease(self, right)
					k.SemRelease(self, left)
					k.SemRelease(self, room)
				}
			})
			if err != nil {
				t.Errorf("fork philosopher %d: %v", n, err)
			}
		}
		for i := 0; i < philosophers; i++ {
			if _, err := k.Wait(init); err != nil {
				t.Errorf("wait: %v", err)
			}
		}
		close(done)
		for {
			k.Park(init)
		}
	})
	waitDone(t, done, "philosophers")

	for i, n := range ate {
		if n != meals {
			t.Errorf("philosopher %d ate %d meals, want %d", i, n, meals)
		}
	}
	for i := 0; i < philosophers; i++ {
		if v, _ := k.SemValue(i); v != 1 {
			t.Errorf("chopstick %d value = %d, want 1", i, v)
		}
	}
	if v, _ := k.SemValue(room); v != philosophers-1 {
		t.Errorf("room value = %d, want %d", v, philosophers-1)
	}
	checkInvariants(t, k)
	k.Shutdown()
}
