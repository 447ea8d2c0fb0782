package schedz

import "errors"

// Kernel entry point errors. Entry points return one of these instead of the
// classic -1; programmer errors inside the kernel panic instead (see sched,
// SpinLock, Exit).
var (
	ErrNoFreeSlot    = errors.New("no free process slot")
	ErrNoMemory      = errors.New("out of kernel memory")
	ErrUnknownPID    = errors.New("no such pid")
	ErrBadQueueLevel = errors.New("queue level out of range")
	ErrNoChildren    = errors.New("no children")
	ErrKilled        = errors.New("killed")
	ErrBadTickets    = errors.New("negative ticket count")
	ErrBadSemaphore  = errors.New("semaphore index out of range")
	ErrBadSyscall    = errors.New("syscall number out of range")
)
