package schedz

import "github.com/zoobzio/capitan"

// Signal constants for kernel events.
// Signals follow the pattern: <subsystem>.<event>.
const (
	// Scheduler signals.
	SignalSchedDispatch = capitan.Signal("sched.dispatch")
	SignalSchedIdle     = capitan.Signal("sched.idle")
	SignalAgingPromoted = capitan.Signal("sched.aging-promoted")

	// Lifecycle signals.
	SignalProcForked   = capitan.Signal("proc.forked")
	SignalProcExited   = capitan.Signal("proc.exited")
	SignalProcReaped   = capitan.Signal("proc.reaped")
	SignalProcKilled   = capitan.Signal("proc.killed")
	SignalProcWoken    = capitan.Signal("proc.woken")
	SignalProcSleeping = capitan.Signal("proc.sleeping")

	// Tuning signals.
	SignalQueueChanged   = capitan.Signal("tune.queue-changed")
	SignalTicketsChanged = capitan.Signal("tune.tickets-changed")
	SignalBJFParamsSet   = capitan.Signal("tune.bjf-params-set")

	// Semaphore signals.
	SignalSemBlocked  = capitan.Signal("sem.blocked")
	SignalSemReleased = capitan.Signal("sem.released")
)

// Common field keys using capitan primitive types.
// All keys use primitive types to avoid custom struct serialization.
var (
	// Process identity fields.
	FieldPID       = capitan.NewIntKey("pid")
	FieldParentPID = capitan.NewIntKey("ppid")
	FieldProcName  = capitan.NewStringKey("proc_name")

	// Scheduling fields.
	FieldCPU     = capitan.NewIntKey("cpu")
	FieldQueue   = capitan.NewIntKey("queue")
	FieldTickets = capitan.NewIntKey("tickets")
	FieldRank    = capitan.NewIntKey("rank")
	FieldCycles  = capitan.NewIntKey("cycles")
	FieldTick    = capitan.NewIntKey("tick")

	// BJF weight fields.
	FieldPRatio = capitan.NewIntKey("p_ratio")
	FieldTRatio = capitan.NewIntKey("t_ratio")
	FieldCRatio = capitan.NewIntKey("c_ratio")

	// Semaphore fields.
	FieldSem      = capitan.NewIntKey("sem")
	FieldSemValue = capitan.NewIntKey("sem_value")
	FieldWaiters  = capitan.NewIntKey("waiters")
)
