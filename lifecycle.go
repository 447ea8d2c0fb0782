package schedz

import (
	"context"
	"strconv"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Metric keys for process lifecycle observability.
const (
	ProcForksTotal         = metricz.Key("proc.forks.total")
	ProcExitsTotal         = metricz.Key("proc.exits.total")
	ProcReapsTotal         = metricz.Key("proc.reaps.total")
	ProcKillsTotal         = metricz.Key("proc.kills.total")
	ProcAllocFailuresTotal = metricz.Key("proc.alloc_failures.total")
)

// Span names and tags for lifecycle operations.
const (
	ProcForkSpan = tracez.Key("proc.fork")
	ProcWaitSpan = tracez.Key("proc.wait")

	ProcTagPID      = tracez.Tag("proc.pid")
	ProcTagChildPID = tracez.Tag("proc.child_pid")
	ProcTagError    = tracez.Tag("proc.error")
)

// Fork creates a child of p running main, copying p's address space, open
// files and working directory as of the call. The child's return-value
// register is zeroed before it first runs. Returns the child pid; on any
// failure partial state is rolled back and an error returned.
func (k *Kernel) Fork(p *Proc, main ProcFunc) (int, error) {
	p.note(SysFork)
	ctx, span := k.tracer.StartSpan(context.Background(), ProcForkSpan)
	defer span.Finish()
	span.SetTag(ProcTagPID, strconv.Itoa(p.pid))

	np := k.allocProc(p.cpu)
	if np == nil {
		span.SetTag(ProcTagError, ErrNoFreeSlot.Error())
		return 0, ErrNoFreeSlot
	}

	// Copy process state from p.
	if np.addr = p.addr.clone(p.sz); np.addr == nil {
		k.alloc.kfree(np.kstack)
		np.kstack = nil
		k.ptable.lock.Acquire(p.cpu)
		np.state = Unused
		np.pid = 0
		k.ptable.lock.Release(p.cpu)
		span.SetTag(ProcTagError, ErrNoMemory.Error())
		return 0, ErrNoMemory
	}
	np.sz = p.sz
	*np.tf = *p.tf
	np.tf.ax = 0 // the child observes 0 from fork

	for i, f := range p.ofile {
		if f != nil {
			np.ofile[i] = f.dup()
		}
	}
	np.cwd = p.cwd.idup()
	np.main = main

	pid := np.pid

	k.ptable.lock.Acquire(p.cpu)
	np.parent = p
	np.name = p.name
	np.state = Runnable
	k.ptable.lock.Release(p.cpu)

	go k.run(np)
	k.wakeCPUs()

	k.metrics.Counter(ProcForksTotal).Inc()
	capitan.Info(ctx, SignalProcForked,
		FieldPID.Field(pid),
		FieldParentPID.Field(p.pid),
		FieldProcName.Field(p.name),
		FieldTick.Field(k.now()),
	)
	span.SetTag(ProcTagChildPID, strconv.Itoa(pid))

	return pid, nil
}

// Exit terminates the calling process. Open files and the working
// directory are released, surviving children are handed to init, the
// parent is woken, and the slot stays ZOMBIE until reaped by Wait. Never
// returns; init calling it is a kernel bug.
func (k *Kernel) Exit(p *Proc) {
	p.note(SysExit)
	if p == k.initproc {
		panic("init exiting")
	}

	// Close all open files.
	for fd, f := range p.ofile {
		if f != nil {
			f.close()
			p.ofile[fd] = nil
		}
	}

	k.log.beginOp()
	p.cwd.iput()
	k.log.endOp()
	p.cwd = nil

	k.ptable.lock.Acquire(p.cpu)

	// Parent might be sleeping in Wait.
	k.wakeup1(p.parent)

	// Pass abandoned children to init.
	for i := range k.ptable.proc {
		q := &k.ptable.proc[i]
		if q.parent == p {
			q.parent = k.initproc
			if q.state == Zombie {
				k.wakeup1(k.initproc)
			}
		}
	}

	p.state = Zombie
	k.metrics.Counter(ProcExitsTotal).Inc()
	capitan.Info(context.Background(), SignalProcExited,
		FieldPID.Field(p.pid),
		FieldProcName.Field(p.name),
		FieldCycles.Field(p.cycles),
		FieldTick.Field(k.now()),
	)
	k.emit(context.Background(), EventExit, p, p.cpu.id)

	// Jump into the scheduler, never to return.
	k.schedExit(p)
	panic("zombie exit")
}

// Wait blocks until a child of p has exited, reaps it and returns its pid.
// ErrNoChildren when p has no children at all; ErrKilled when p was marked
// killed while waiting.
func (k *Kernel) Wait(p *Proc) (int, error) {
	p.note(SysWait)
	_, span := k.tracer.StartSpan(context.Background(), ProcWaitSpan)
	defer span.Finish()
	span.SetTag(ProcTagPID, strconv.Itoa(p.pid))

	k.ptable.lock.Acquire(p.cpu)
	for {
		// Scan through the table looking for exited children.
		havekids := false
		for i := range k.ptable.proc {
			q := &k.ptable.proc[i]
			if q.parent != p {
				continue
			}
			havekids = true
			if q.state == Zombie {
				// Found one.
				pid := q.pid
				k.alloc.kfree(q.kstack)
				q.kstack = nil
				q.addr.free()
				q.addr = nil
				q.tf = nil
				q.pid = 0
				q.parent = nil
				q.name = ""
				q.killed = false
				q.state = Unused
				k.ptable.lock.Release(p.cpu)

				k.metrics.Counter(ProcReapsTotal).Inc()
				capitan.Info(context.Background(), SignalProcReaped,
					FieldPID.Field(pid),
					FieldParentPID.Field(p.pid),
					FieldTick.Field(k.now()),
				)
				span.SetTag(ProcTagChildPID, strconv.Itoa(pid))
				return pid, nil
			}
		}

		// No point waiting if we don't have any children.
		if !havekids {
			k.ptable.lock.Release(p.cpu)
			return 0, ErrNoChildren
		}
		if p.killed {
			k.ptable.lock.Release(p.cpu)
			return 0, ErrKilled
		}

		// Wait for children to exit; Exit wakes us on our own slot.
		k.Sleep(p, p, &k.ptable.lock)
	}
}

// Kill requests termination of the process with the given pid. A sleeping
// target is made runnable so it reaches its return-to-user check. self is
// the calling process, or nil when driven externally.
func (k *Kernel) Kill(self *Proc, pid int) error {
	self.note(SysKill)
	c := k.curCPU(self)

	k.ptable.lock.Acquire(c)
	for i := range k.ptable.proc {
		p := &k.ptable.proc[i]
		if p.state != Unused && p.pid == pid {
			p.killed = true
			// Wake the process from sleep if necessary.
			if p.state == Sleeping {
				p.state = Runnable
				k.wakeCPUs()
			}
			k.ptable.lock.Release(c)
			k.metrics.Counter(ProcKillsTotal).Inc()
			capitan.Warn(context.Background(), SignalProcKilled,
				FieldPID.Field(pid),
				FieldTick.Field(k.now()),
			)
			return nil
		}
	}
	k.ptable.lock.Release(c)
	return ErrUnknownPID
}

// GetParentPID returns the pid of the caller's parent, 0 for init.
func (k *Kernel) GetParentPID(p *Proc) int {
	p.note(SysGetParentPID)
	k.ptable.lock.Acquire(p.cpu)
	defer k.ptable.lock.Release(p.cpu)
	if p.parent == nil {
		return 0
	}
	return p.parent.pid
}

// GrowProc grows or shrinks the calling process's memory by n bytes.
func (k *Kernel) GrowProc(p *Proc, n int) error {
	p.note(SysSbrk)
	sz := p.addr.grow(p.sz, n)
	if sz == 0 {
		return ErrNoMemory
	}
	p.sz = sz
	p.cpu.switchuvm(p)
	return nil
}
