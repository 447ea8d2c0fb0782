package schedz

import (
	"sync"
	"sync/atomic"
)

// SpinLock is the kernel's lock primitive. Acquiring disables (simulated)
// interrupts on the acquiring CPU before taking the lock, so a timer tick
// cannot preempt a critical section and deadlock against it; releasing
// re-enables interrupts only at the outermost release. Misuse is a
// programmer error and panics: re-acquiring a held lock, releasing a lock
// the CPU does not hold, or releasing with interrupts enabled.
//
// The process table lock is the only SpinLock scheduling code takes, and a
// SpinLock may legally be locked by one goroutine and unlocked by another:
// the scheduler acquires it before a context switch and the incoming
// process releases it on the far side.
type SpinLock struct {
	name string
	mu   sync.Mutex
	cpu  atomic.Pointer[CPU] // CPU holding the lock, nil when free
}

// Acquire takes the lock on behalf of CPU c with interrupts disabled.
func (l *SpinLock) Acquire(c *CPU) {
	c.pushcli()
	if l.Holding(c) {
		panic("acquire " + l.name)
	}
	l.mu.Lock()
	l.cpu.Store(c)
}

// Release drops the lock and restores the CPU's interrupt state.
func (l *SpinLock) Release(c *CPU) {
	if !l.Holding(c) {
		panic("release " + l.name)
	}
	l.cpu.Store(nil)
	l.mu.Unlock()
	c.popcli()
}

// Holding reports whether CPU c holds the lock.
func (l *SpinLock) Holding(c *CPU) bool {
	return l.cpu.Load() == c
}
