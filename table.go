package schedz

// ptable is the process table: a fixed array of slots behind one spinlock.
// Every state change, queue-field mutation and slot traversal happens under
// the lock. pids come from a strictly increasing counter and are never
// reused while a slot is live.
type ptable struct {
	lock    SpinLock
	proc    [NPROC]Proc
	nextpid int
}

// allocProc scans for an UNUSED slot, moves it to EMBRYO, assigns the next
// pid and seeds the scheduling fields. The kernel stack is allocated after
// the lock is dropped; on stack exhaustion the slot reverts to UNUSED and
// nil is returned. Callers own the returned EMBRYO slot until they publish
// it RUNNABLE.
func (k *Kernel) allocProc(c *CPU) *Proc {
	k.ptable.lock.Acquire(c)

	var p *Proc
	for i := range k.ptable.proc {
		if k.ptable.proc[i].state == Unused {
			p = &k.ptable.proc[i]
			break
		}
	}
	if p == nil {
		k.ptable.lock.Release(c)
		k.metrics.Counter(ProcAllocFailuresTotal).Inc()
		return nil
	}

	p.state = Embryo
	p.pid = k.ptable.nextpid
	k.ptable.nextpid++
	p.level = QueueLottery
	p.arrivalTime = k.now()
	p.cycles = 1
	p.pRatio = 1
	p.tRatio = 1
	p.cRatio = 1
	p.rank = bjfInfinity
	p.lastCPUTime = 0
	p.waitCycles = 0
	// A fresh lottery process needs at least one ticket or it could not
	// run until aging rescued it.
	p.tickets = 1
	p.killed = false
	for i := range p.syscalls {
		p.syscalls[i].Store(false)
	}
	p.gate = make(chan struct{})

	k.ptable.lock.Release(c)

	if p.kstack = k.alloc.kalloc(); p.kstack == nil {
		k.ptable.lock.Acquire(c)
		p.state = Unused
		p.pid = 0
		k.ptable.lock.Release(c)
		k.metrics.Counter(ProcAllocFailuresTotal).Inc()
		return nil
	}
	p.tf = &trapFrame{sp: KStackSize}

	return p
}

// findByPID returns the live slot with the given pid. Table lock must be
// held.
func (k *Kernel) findByPID(pid int) *Proc {
	for i := range k.ptable.proc {
		p := &k.ptable.proc[i]
		if p.state != Unused && p.pid == pid {
			return p
		}
	}
	return nil
}
