package schedz

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Kernel is the scheduling core of the simulated machine: the process
// table, the per-CPU scheduler loops, the sleep/wakeup primitives and the
// semaphore array. Construct one with New, configure it with the With*
// builders, then Boot it.
//
// CRITICAL: a Kernel is a long-lived singleton. Every simulated process is
// a goroutine whose execution is serialized by the kernel's channel-gate
// context switch, so at most one goroutine acts as each simulated CPU at a
// time. Kernel entry points taking a *Proc are system calls and must be
// invoked from that process's own body; entry points accepting a nil *Proc
// may also be driven externally (monitoring, tests), which models the
// pre-scheduler boot processor and must not be done concurrently from
// several goroutines.
//
// Example:
//
//	k := schedz.New()
//	err := k.Boot(1, func(k *schedz.Kernel, init *schedz.Proc) {
//	    pid, _ := k.Fork(init, func(k *schedz.Kernel, self *schedz.Proc) {
//	        // child work
//	    })
//	    k.Wait(init)
//	    _ = pid
//	})
type Kernel struct {
	ptable   ptable
	cpus     []*CPU
	bootCPU  *CPU
	initproc *Proc
	sems     [NSEM]semaphore

	alloc   *allocator
	log     fsLog
	rootDir *inode

	console      io.Writer
	clock        clockz.Clock
	tickInterval time.Duration
	ticks        atomic.Int64

	park   *byte // rendezvous anchor for Park
	nudge  chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
	booted bool
	stop   sync.Once

	// Observability.
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[SchedEvent]
}

// New creates an unbooted Kernel with default geometry: NPROC process
// slots, a kernel stack pool sized to the table, and a 10ms tick.
func New() *Kernel {
	registry := metricz.New()

	// Scheduler metrics.
	registry.Counter(SchedDispatchesTotal)
	registry.Counter(SchedDispatchRRTotal)
	registry.Counter(SchedDispatchLotteryTotal)
	registry.Counter(SchedDispatchBJFTotal)
	registry.Counter(SchedAgingPromotionsTotal)
	registry.Counter(SchedIdleParksTotal)

	// Lifecycle metrics.
	registry.Counter(ProcForksTotal)
	registry.Counter(ProcExitsTotal)
	registry.Counter(ProcReapsTotal)
	registry.Counter(ProcKillsTotal)
	registry.Counter(ProcAllocFailuresTotal)

	// Semaphore metrics.
	registry.Counter(SemBlockedTotal)
	registry.Counter(SemHandoffsTotal)

	k := &Kernel{
		alloc:        newAllocator(NPROC, NPROC*16),
		console:      os.Stdout,
		clock:        clockz.RealClock,
		tickInterval: 10 * time.Millisecond,
		park:         new(byte),
		nudge:        make(chan struct{}, NPROC),
		done:         make(chan struct{}),
		metrics:      registry,
		tracer:       tracez.New(),
		hooks:        hookz.New[SchedEvent](),
	}
	k.ptable.lock.name = "ptable"
	k.ptable.nextpid = 1
	k.rootDir = &inode{ref: 1, path: "/"}
	return k
}

// WithClock sets the clock driving the tick counter. Call before Boot.
func (k *Kernel) WithClock(clock clockz.Clock) *Kernel {
	k.clock = clock
	return k
}

// WithConsole redirects kernel console output (PrintProcess, GetCallers,
// Dump). Call before Boot.
func (k *Kernel) WithConsole(w io.Writer) *Kernel {
	k.console = w
	return k
}

// WithTickInterval sets the wall-clock duration of one tick. Call before
// Boot.
func (k *Kernel) WithTickInterval(d time.Duration) *Kernel {
	if d > 0 {
		k.tickInterval = d
	}
	return k
}

// Boot starts the tick source, spawns the init process running initMain,
// then starts ncpu scheduler loops. Further processes are created by
// forking from init.
func (k *Kernel) Boot(ncpu int, initMain ProcFunc) error {
	if k.booted {
		return fmt.Errorf("schedz: kernel already booted")
	}
	if ncpu < 1 {
		ncpu = 1
	}
	k.booted = true

	k.bootCPU = newCPU(-1)
	for i := 0; i < ncpu; i++ {
		k.cpus = append(k.cpus, newCPU(i))
	}

	k.wg.Add(1)
	go k.timerLoop()

	p := k.spawn("init", initMain)
	if p == nil {
		panic("userinit: out of memory?")
	}
	k.initproc = p

	for _, c := range k.cpus {
		k.wg.Add(1)
		go k.scheduler(c)
	}
	return nil
}

// spawn sets up a top-level process on the boot CPU. Only init is created
// this way; everything else arrives through Fork.
func (k *Kernel) spawn(name string, main ProcFunc) *Proc {
	p := k.allocProc(k.bootCPU)
	if p == nil {
		return nil
	}
	if p.addr = setupAS(k.alloc); p.addr == nil {
		k.alloc.kfree(p.kstack)
		p.kstack = nil
		k.ptable.lock.Acquire(k.bootCPU)
		p.state = Unused
		p.pid = 0
		k.ptable.lock.Release(k.bootCPU)
		return nil
	}
	p.sz = pageSize
	p.cwd = k.rootDir.idup()
	p.main = main

	// The RUNNABLE flip is what publishes the slot to the schedulers; the
	// acquire also orders the setup writes above.
	k.ptable.lock.Acquire(k.bootCPU)
	p.name = name
	p.state = Runnable
	k.ptable.lock.Release(k.bootCPU)

	go k.run(p)
	k.wakeCPUs()
	return p
}

// run is the goroutine body of one process: wait for first dispatch, fall
// through the forkret trampoline into user code, and exit when it returns.
func (k *Kernel) run(p *Proc) {
	<-p.gate
	k.forkret(p)
	p.main(k, p)
	k.Exit(p)
}

// forkret is a fork child's first scheduling: it still holds the table
// lock the scheduler acquired, and releases it on the way out to user
// mode.
func (k *Kernel) forkret(p *Proc) {
	k.ptable.lock.Release(p.cpu)
}

// Shutdown stops the scheduler loops and the tick source. It does not
// terminate processes: call it once the workload has exited or blocked.
func (k *Kernel) Shutdown() {
	k.stop.Do(func() {
		close(k.done)
	})
	k.wg.Wait()
}

// Close shuts the kernel down and releases observability resources.
func (k *Kernel) Close() error {
	k.Shutdown()
	k.tracer.Close()
	k.hooks.Close()
	return nil
}

// Metrics returns the kernel's metrics registry.
func (k *Kernel) Metrics() *metricz.Registry {
	return k.metrics
}

// Tracer returns the kernel's tracer.
func (k *Kernel) Tracer() *tracez.Tracer {
	return k.tracer
}

// InitProc returns the init process.
func (k *Kernel) InitProc() *Proc {
	return k.initproc
}

// curCPU resolves the CPU context for a kernel entry: the caller's CPU for
// a system call, the boot CPU for an external call.
func (k *Kernel) curCPU(p *Proc) *CPU {
	if p != nil {
		return p.cpu
	}
	return k.bootCPU
}

// wakeCPUs nudges idle scheduler loops after a RUNNABLE transition. The
// channel is buffered; a full buffer means enough nudges are already
// pending.
func (k *Kernel) wakeCPUs() {
	select {
	case k.nudge <- struct{}{}:
	default:
	}
}
