// Package schedz is a multi-level process scheduling core for a simulated
// teaching kernel.
//
// # Overview
//
// schedz models the scheduling heart of a small operating system: a fixed
// process table behind one spinlock, per-CPU scheduler loops, three queue
// disciplines, starvation-proof aging, channel-keyed sleep/wakeup, and a
// counting-semaphore layer built on top of them. Simulated processes are
// goroutines; the scheduler and the process it dispatched trade control
// through channel gates, so the concurrency structure of a real kernel —
// one execution stream per CPU, everything serialized by the table lock —
// is preserved while staying pure Go.
//
// # Core Concepts
//
//   - Kernel: the machine. Construct with New, configure with With*
//     builders, start with Boot, stop with Shutdown/Close.
//   - Proc: one process table slot. Lifecycle: UNUSED → EMBRYO → RUNNABLE →
//     RUNNING → {RUNNABLE, SLEEPING} → ZOMBIE → UNUSED.
//   - ProcFunc: a process body. It receives the Kernel and its own Proc and
//     makes "system calls" (Fork, Wait, Yield, Exit, SemAcquire, ...) on
//     them. Returning is an implicit Exit.
//
// # Queue Disciplines
//
// On every decision the scheduler consults three selectors in fixed
// priority order:
//
//   - Queue 1, round-robin: the runnable process that has gone longest
//     since its last voluntary yield wins.
//   - Queue 2, lottery: a ticket is drawn across the runnable pool;
//     a process's chance is proportional to its ticket count.
//   - Queue 3, best-job-first: the process with the smallest rank
//     3·p_ratio + arrival·t_ratio + cycles·c_ratio wins.
//
// New processes land in the lottery queue. A runnable process passed over
// for 8000 consecutive decisions is promoted to queue 1 by the aging pass,
// so heavy ticket or rank skew cannot starve anyone.
//
// # Usage Example
//
//	k := schedz.New()
//	k.Boot(1, func(k *schedz.Kernel, init *schedz.Proc) {
//	    pid, err := k.Fork(init, func(k *schedz.Kernel, self *schedz.Proc) {
//	        for i := 0; i < 100; i++ {
//	            k.Yield(self) // CPU-bound worker
//	        }
//	    })
//	    if err != nil {
//	        return
//	    }
//	    k.SetTickets(init, pid, 30)
//	    k.Wait(init)
//	})
//
// # Observability
//
// The kernel carries a metricz registry (dispatch, fork, exit, aging and
// semaphore counters), a tracez tracer (dispatch and fork/wait spans),
// hookz event hooks (OnDispatch, OnAging, OnExit, OnWakeup) and emits
// capitan signals for every scheduling decision and lifecycle transition.
// Time is a clockz.Clock, so tests drive the tick counter with a fake
// clock.
package schedz
