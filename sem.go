package schedz

import (
	"context"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/metricz"
)

// Metric keys for semaphore observability.
const (
	SemBlockedTotal  = metricz.Key("sem.blocked.total")
	SemHandoffsTotal = metricz.Key("sem.handoffs.total")
)

// semaphore is one counting semaphore: a value and a bounded LIFO stack of
// waiting processes. Waiter handles are non-owning; the slots stay alive
// through their own runnability. All fields are guarded by the table lock.
type semaphore struct {
	value int
	list  [NPROC]*Proc
	last  int // stack top
}

// SemInit sets semaphore i's value to v and empties its waiter stack.
func (k *Kernel) SemInit(self *Proc, i, v int) error {
	self.note(SysSemInit)
	if i < 0 || i >= NSEM {
		return ErrBadSemaphore
	}
	c := k.curCPU(self)
	k.ptable.lock.Acquire(c)
	k.sems[i].value = v
	k.sems[i].last = 0
	k.ptable.lock.Release(c)
	return nil
}

// SemAcquire takes one unit of semaphore i, blocking the calling process
// while the value is zero. A blocked acquirer does not decrement on
// wakeup: the releaser hands its unit over directly.
func (k *Kernel) SemAcquire(self *Proc, i int) error {
	self.note(SysSemAcquire)
	if i < 0 || i >= NSEM {
		return ErrBadSemaphore
	}

	k.ptable.lock.Acquire(self.cpu)
	s := &k.sems[i]
	if s.value > 0 {
		s.value--
		k.ptable.lock.Release(self.cpu)
		return nil
	}

	s.list[s.last] = self
	s.last++
	k.metrics.Counter(SemBlockedTotal).Inc()
	capitan.Info(context.Background(), SignalSemBlocked,
		FieldSem.Field(i),
		FieldPID.Field(self.pid),
		FieldWaiters.Field(s.last),
		FieldTick.Field(k.now()),
	)

	self.state = Sleeping
	k.sched(self)
	k.ptable.lock.Release(self.cpu)
	return nil
}

// SemRelease returns one unit of semaphore i. If anyone is blocked, the
// most recent waiter is made runnable and inherits the unit; otherwise the
// value is incremented.
func (k *Kernel) SemRelease(self *Proc, i int) error {
	self.note(SysSemRelease)
	if i < 0 || i >= NSEM {
		return ErrBadSemaphore
	}
	c := k.curCPU(self)

	k.ptable.lock.Acquire(c)
	s := &k.sems[i]
	if s.last > 0 {
		s.last--
		p := s.list[s.last]
		s.list[s.last] = nil
		p.state = Runnable
		k.wakeCPUs()
		k.metrics.Counter(SemHandoffsTotal).Inc()
		capitan.Info(context.Background(), SignalSemReleased,
			FieldSem.Field(i),
			FieldPID.Field(p.pid),
			FieldSemValue.Field(s.value),
			FieldWaiters.Field(s.last),
			FieldTick.Field(k.now()),
		)
	} else {
		s.value++
		capitan.Info(context.Background(), SignalSemReleased,
			FieldSem.Field(i),
			FieldSemValue.Field(s.value),
			FieldWaiters.Field(0),
			FieldTick.Field(k.now()),
		)
	}
	k.ptable.lock.Release(c)
	return nil
}

// SemValue reports semaphore i's current value. Debugging and tests.
func (k *Kernel) SemValue(i int) (int, error) {
	if i < 0 || i >= NSEM {
		return 0, ErrBadSemaphore
	}
	k.ptable.lock.Acquire(k.bootCPU)
	defer k.ptable.lock.Release(k.bootCPU)
	return k.sems[i].value, nil
}
