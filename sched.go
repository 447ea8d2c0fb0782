package schedz

import (
	"context"
	"runtime"
	"strconv"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Metric keys for scheduler observability.
const (
	SchedDispatchesTotal      = metricz.Key("sched.dispatches.total")
	SchedDispatchRRTotal      = metricz.Key("sched.dispatches.round_robin")
	SchedDispatchLotteryTotal = metricz.Key("sched.dispatches.lottery")
	SchedDispatchBJFTotal     = metricz.Key("sched.dispatches.bjf")
	SchedAgingPromotionsTotal = metricz.Key("sched.aging.promotions.total")
	SchedIdleParksTotal       = metricz.Key("sched.idle.parks.total")
)

// Span names and tags for the scheduler.
const (
	SchedDispatchSpan = tracez.Key("sched.dispatch")

	SchedTagPID    = tracez.Tag("sched.pid")
	SchedTagQueue  = tracez.Tag("sched.queue")
	SchedTagCPU    = tracez.Tag("sched.cpu")
	SchedTagCycles = tracez.Tag("sched.cycles")
)

// scheduler is the per-CPU loop. It sweeps the table; for each RUNNABLE
// slot it runs the aging pass, asks the discipline dispatcher for the
// actual victim, and context-switches into it. The dispatched process
// eventually transfers control back here through sched.
//
// When a full sweep finds nothing RUNNABLE the CPU parks on the nudge
// channel instead of spinning; every RUNNABLE-making transition nudges. A
// sweep that saw runnable slots but produced no winner (an empty-winner
// round, e.g. only zero-ticket lottery processes) keeps sweeping so the
// aging pass continues to make progress.
func (k *Kernel) scheduler(c *CPU) {
	defer k.wg.Done()
	for {
		select {
		case <-k.done:
			return
		default:
		}

		// Enable interrupts on this processor.
		c.sti()

		sawRunnable := false
		k.ptable.lock.Acquire(c)
		for i := range k.ptable.proc {
			p := &k.ptable.proc[i]
			if p.state != Runnable {
				continue
			}
			sawRunnable = true

			k.agePass(p)

			victim := k.findProcess()
			if victim == nil {
				continue
			}

			k.dispatch(c, victim)
		}
		k.ptable.lock.Release(c)

		if !sawRunnable {
			k.metrics.Counter(SchedIdleParksTotal).Inc()
			capitan.Info(context.Background(), SignalSchedIdle,
				FieldCPU.Field(c.id),
				FieldTick.Field(k.now()),
			)
			select {
			case <-k.nudge:
			case <-k.done:
				return
			}
		}
	}
}

// agePass walks every other RUNNABLE slot: a process that has waited
// cycleAgeLimit iterations is moved to the round-robin queue so it runs
// soon; the rest accrue one more wait cycle. Table lock held.
func (k *Kernel) agePass(cur *Proc) {
	for i := range k.ptable.proc {
		q := &k.ptable.proc[i]
		if q.state != Runnable || q == cur {
			continue
		}
		if q.waitCycles >= cycleAgeLimit {
			q.waitCycles = 0
			q.level = QueueRoundRobin
			k.metrics.Counter(SchedAgingPromotionsTotal).Inc()
			capitan.Warn(context.Background(), SignalAgingPromoted,
				FieldPID.Field(q.pid),
				FieldProcName.Field(q.name),
				FieldQueue.Field(q.level),
				FieldTick.Field(k.now()),
			)
			k.emit(context.Background(), EventAging, q, -1)
		} else {
			q.waitCycles++
		}
	}
}

// dispatch switches CPU c into p and blocks until p reenters the
// scheduler. Table lock held throughout on this side; the far side
// releases and reacquires it around user execution.
func (k *Kernel) dispatch(c *CPU, p *Proc) {
	ctx, span := k.tracer.StartSpan(context.Background(), SchedDispatchSpan)
	span.SetTag(SchedTagPID, strconv.Itoa(p.pid))
	span.SetTag(SchedTagQueue, strconv.Itoa(p.level))
	span.SetTag(SchedTagCPU, strconv.Itoa(c.id))

	c.proc = p
	p.cpu = c
	c.switchuvm(p)
	p.state = Running
	p.waitCycles = 0
	p.cycles++

	k.metrics.Counter(SchedDispatchesTotal).Inc()
	switch p.level {
	case QueueRoundRobin:
		k.metrics.Counter(SchedDispatchRRTotal).Inc()
	case QueueLottery:
		k.metrics.Counter(SchedDispatchLotteryTotal).Inc()
	case QueueBJF:
		k.metrics.Counter(SchedDispatchBJFTotal).Inc()
	}
	capitan.Info(ctx, SignalSchedDispatch,
		FieldPID.Field(p.pid),
		FieldProcName.Field(p.name),
		FieldCPU.Field(c.id),
		FieldQueue.Field(p.level),
		FieldCycles.Field(p.cycles),
		FieldTick.Field(k.now()),
	)
	k.emit(ctx, EventDispatch, p, c.id)

	p.gate <- struct{}{}
	<-c.gate

	// Process is done running for now; it changed its own state before
	// coming back.
	c.switchkvm()
	c.proc = nil
	span.SetTag(SchedTagCycles, strconv.Itoa(p.cycles))
	span.Finish()
}

// sched reenters the scheduler from a process that has already moved
// itself out of RUNNING. The caller must hold the table lock, exactly
// once, with interrupts disabled; anything else is a kernel bug. intena
// is saved across the switch because it belongs to this process, not to
// the CPU.
func (k *Kernel) sched(p *Proc) {
	c := p.cpu
	if !k.ptable.lock.Holding(c) {
		panic("sched ptable.lock")
	}
	if c.ncli != 1 {
		panic("sched locks")
	}
	if p.state == Running {
		panic("sched running")
	}
	if c.intOn {
		panic("sched interruptible")
	}
	intena := c.intena

	c.gate <- struct{}{}
	<-p.gate

	// p may have been dispatched on a different CPU.
	p.cpu.intena = intena
}

// schedExit is the terminal variant: hand the CPU back to the scheduler
// and end this process's goroutine. The table lock stays held; the
// scheduler side owns it after the handoff.
func (k *Kernel) schedExit(p *Proc) {
	c := p.cpu
	if !k.ptable.lock.Holding(c) {
		panic("sched ptable.lock")
	}
	if c.ncli != 1 {
		panic("sched locks")
	}
	if p.state == Running {
		panic("sched running")
	}
	if c.intOn {
		panic("sched interruptible")
	}

	c.gate <- struct{}{}
	runtime.Goexit()
}

// Yield gives up the CPU for one scheduling round, stamping the staleness
// clock the round-robin discipline orders by. This is also the
// return-to-user edge where a pending kill takes effect.
func (k *Kernel) Yield(p *Proc) {
	k.ptable.lock.Acquire(p.cpu)
	p.state = Runnable
	p.lastCPUTime = k.now()
	k.sched(p)
	killed := p.killed
	k.ptable.lock.Release(p.cpu)

	if killed {
		k.Exit(p)
	}
}
