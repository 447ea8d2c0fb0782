package schedz

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zoobzio/capitan"
)

// Scheduling tuning surface. These are the entry points the per-tunable
// user drivers call: move a process between queues, adjust lottery tickets
// and BJF weights, and query the table. self is the calling process, or
// nil when driven externally.

// ChangeQueue moves pid to the given queue discipline.
func (k *Kernel) ChangeQueue(self *Proc, pid, level int) error {
	self.note(SysChangeQueue)
	if level < QueueRoundRobin || level > QueueBJF {
		return ErrBadQueueLevel
	}
	c := k.curCPU(self)
	k.ptable.lock.Acquire(c)
	defer k.ptable.lock.Release(c)

	p := k.findByPID(pid)
	if p == nil {
		return ErrUnknownPID
	}
	p.level = level
	capitan.Info(context.Background(), SignalQueueChanged,
		FieldPID.Field(pid),
		FieldQueue.Field(level),
		FieldTick.Field(k.now()),
	)
	return nil
}

// SetTickets sets pid's lottery ticket count.
func (k *Kernel) SetTickets(self *Proc, pid, count int) error {
	self.note(SysSetTickets)
	if count < 0 {
		return ErrBadTickets
	}
	c := k.curCPU(self)
	k.ptable.lock.Acquire(c)
	defer k.ptable.lock.Release(c)

	p := k.findByPID(pid)
	if p == nil {
		return ErrUnknownPID
	}
	p.tickets = count
	capitan.Info(context.Background(), SignalTicketsChanged,
		FieldPID.Field(pid),
		FieldTickets.Field(count),
		FieldTick.Field(k.now()),
	)
	return nil
}

// SetBJFParams writes the same BJF weight triple onto every slot.
func (k *Kernel) SetBJFParams(self *Proc, pRatio, tRatio, cRatio int) error {
	self.note(SysSetBJFParams)
	c := k.curCPU(self)
	k.ptable.lock.Acquire(c)
	defer k.ptable.lock.Release(c)

	for i := range k.ptable.proc {
		p := &k.ptable.proc[i]
		p.pRatio = pRatio
		p.tRatio = tRatio
		p.cRatio = cRatio
	}
	capitan.Info(context.Background(), SignalBJFParamsSet,
		FieldPRatio.Field(pRatio),
		FieldTRatio.Field(tRatio),
		FieldCRatio.Field(cRatio),
		FieldTick.Field(k.now()),
	)
	return nil
}

// ProcSetBJFParams sets pid's BJF weights.
func (k *Kernel) ProcSetBJFParams(self *Proc, pid, pRatio, tRatio, cRatio int) error {
	self.note(SysProcSetBJFParams)
	c := k.curCPU(self)
	k.ptable.lock.Acquire(c)
	defer k.ptable.lock.Release(c)

	p := k.findByPID(pid)
	if p == nil {
		return ErrUnknownPID
	}
	p.pRatio = pRatio
	p.tRatio = tRatio
	p.cRatio = cRatio
	capitan.Info(context.Background(), SignalBJFParamsSet,
		FieldPID.Field(pid),
		FieldPRatio.Field(pRatio),
		FieldTRatio.Field(tRatio),
		FieldCRatio.Field(cRatio),
		FieldTick.Field(k.now()),
	)
	return nil
}

// GetCallers prints the pids of processes that have invoked system call n
// and returns them. The printed line is the contract; the slice is a
// convenience copy.
func (k *Kernel) GetCallers(self *Proc, n int) ([]int, error) {
	self.note(SysGetCallers)
	if n < 0 || n >= NSyscalls {
		return nil, ErrBadSyscall
	}
	c := k.curCPU(self)
	k.ptable.lock.Acquire(c)
	defer k.ptable.lock.Release(c)

	var pids []int
	for i := range k.ptable.proc {
		p := &k.ptable.proc[i]
		if p.state != Unused && p.syscalls[n].Load() {
			pids = append(pids, p.pid)
		}
	}

	if len(pids) == 0 {
		fmt.Fprintln(k.console, "No process has called this system call")
		return nil, nil
	}
	parts := make([]string, len(pids))
	for i, pid := range pids {
		parts[i] = strconv.Itoa(pid)
	}
	fmt.Fprintln(k.console, strings.Join(parts, ", "))
	return pids, nil
}

// PrintProcess dumps the table to the kernel console: one row per live
// slot with its scheduling state.
func (k *Kernel) PrintProcess(self *Proc) {
	self.note(SysPrintProcess)
	c := k.curCPU(self)
	k.ptable.lock.Acquire(c)
	defer k.ptable.lock.Release(c)

	fmt.Fprintln(k.console, "name\tpid\tstate\tqueue_level\tcycle\ttickets\tarrival\trank\tp_ratio\tt_ratio\tc_ratio")
	for i := range k.ptable.proc {
		p := &k.ptable.proc[i]
		if p.state == Unused {
			continue
		}
		fmt.Fprintf(k.console, "%s\t%d\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			p.name, p.pid, p.state, p.level, p.cycles, p.tickets,
			p.arrivalTime, p.rank, p.pRatio, p.tRatio, p.cRatio)
	}
}

// Processes returns a point-in-time copy of every live slot, taken under
// the table lock. The programmatic sibling of PrintProcess.
func (k *Kernel) Processes() []ProcInfo {
	k.ptable.lock.Acquire(k.bootCPU)
	defer k.ptable.lock.Release(k.bootCPU)

	var out []ProcInfo
	for i := range k.ptable.proc {
		p := &k.ptable.proc[i]
		if p.state == Unused {
			continue
		}
		info := ProcInfo{
			Name:        p.name,
			PID:         p.pid,
			State:       p.state,
			Queue:       p.level,
			Cycles:      p.cycles,
			Tickets:     p.tickets,
			ArrivalTime: p.arrivalTime,
			Rank:        p.rank,
			PRatio:      p.pRatio,
			TRatio:      p.tRatio,
			CRatio:      p.cRatio,
			WaitCycles:  p.waitCycles,
			Killed:      p.killed,
		}
		if p.parent != nil {
			info.ParentPID = p.parent.pid
		}
		out = append(out, info)
	}
	return out
}

// Dump writes a terse listing of live slots without taking the table lock,
// so a wedged machine can still be inspected. The output may tear;
// debugging only.
func (k *Kernel) Dump(w io.Writer) {
	for i := range k.ptable.proc {
		p := &k.ptable.proc[i]
		if p.state == Unused {
			continue
		}
		fmt.Fprintf(w, "%d %s %s\n", p.pid, p.state, p.name)
	}
}
