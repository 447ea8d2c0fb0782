package schedz

import (
	"context"

	"github.com/zoobzio/capitan"
)

// Sleep atomically releases lk and blocks the calling process on channel.
// It reacquires lk before returning.
//
// The channel is an arbitrary rendezvous key compared by identity; Wakeup
// with the same key makes every sleeper on it runnable. If lk is not the
// table lock, the table lock is taken before lk is dropped — the wakeup
// path runs under the table lock, so once we hold it no concurrent wakeup
// can slip between publishing our state and descheduling.
func (k *Kernel) Sleep(p *Proc, channel any, lk *SpinLock) {
	if p == nil {
		panic("sleep")
	}
	if lk == nil {
		panic("sleep without lk")
	}

	if lk != &k.ptable.lock {
		k.ptable.lock.Acquire(p.cpu)
		lk.Release(p.cpu)
	}

	p.wchan = channel
	p.state = Sleeping
	capitan.Info(context.Background(), SignalProcSleeping,
		FieldPID.Field(p.pid),
		FieldProcName.Field(p.name),
		FieldTick.Field(k.now()),
	)

	k.sched(p)

	// Tidy up.
	p.wchan = nil

	if lk != &k.ptable.lock {
		k.ptable.lock.Release(p.cpu)
		lk.Acquire(p.cpu)
	}
}

// wakeup1 makes every process sleeping on channel runnable. Table lock
// must be held.
func (k *Kernel) wakeup1(channel any) {
	for i := range k.ptable.proc {
		p := &k.ptable.proc[i]
		if p.state == Sleeping && p.wchan == channel {
			p.state = Runnable
			capitan.Info(context.Background(), SignalProcWoken,
				FieldPID.Field(p.pid),
				FieldProcName.Field(p.name),
				FieldTick.Field(k.now()),
			)
			k.emit(context.Background(), EventWakeup, p, -1)
			k.wakeCPUs()
		}
	}
}

// Park blocks the calling process indefinitely; only Kill makes it
// runnable again. Init parks once boot work is done, since it may never
// exit. A killed non-init process terminates on the way out.
func (k *Kernel) Park(p *Proc) {
	k.ptable.lock.Acquire(p.cpu)
	if !p.killed {
		k.Sleep(p, k.park, &k.ptable.lock)
	}
	killed := p.killed
	k.ptable.lock.Release(p.cpu)
	if killed && p != k.initproc {
		k.Exit(p)
	}
}

// Wakeup wakes all processes sleeping on channel. Broadcast semantics.
// self is the calling process, or nil when driven externally.
func (k *Kernel) Wakeup(self *Proc, channel any) {
	if channel == nil {
		panic("wakeup")
	}
	c := k.curCPU(self)
	k.ptable.lock.Acquire(c)
	k.wakeup1(channel)
	k.ptable.lock.Release(c)
}
