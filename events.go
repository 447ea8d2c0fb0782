package schedz

import (
	"context"
	"time"

	"github.com/zoobzio/hookz"
)

// Hook event keys.
const (
	EventDispatch = hookz.Key("sched.dispatch")
	EventAging    = hookz.Key("sched.aging")
	EventExit     = hookz.Key("proc.exit")
	EventWakeup   = hookz.Key("proc.wakeup")
)

// SchedEvent describes one scheduling decision or lifecycle transition.
// Emitted via hookz so observers ride along without touching the table
// lock's critical sections more than the kernel already does.
type SchedEvent struct {
	PID       int       // process the event is about
	ProcName  string    // its name
	CPU       int       // CPU involved; -1 for the boot processor and for aging and wakeup events
	Queue     int       // queue discipline at event time
	Cycles    int       // dispatch count at event time
	Tickets   int       // lottery tickets at event time
	Rank      int       // cached BJF rank at event time
	Tick      int       // kernel tick at event time
	Timestamp time.Time // wall-clock time of the event
}

// OnDispatch registers a handler called after the scheduler dispatches a
// process. Handlers run asynchronously.
func (k *Kernel) OnDispatch(handler func(context.Context, SchedEvent) error) error {
	_, err := k.hooks.Hook(EventDispatch, handler)
	return err
}

// OnAging registers a handler called when aging promotes a starved process
// to the round-robin queue.
func (k *Kernel) OnAging(handler func(context.Context, SchedEvent) error) error {
	_, err := k.hooks.Hook(EventAging, handler)
	return err
}

// OnExit registers a handler called when a process becomes a zombie.
func (k *Kernel) OnExit(handler func(context.Context, SchedEvent) error) error {
	_, err := k.hooks.Hook(EventExit, handler)
	return err
}

// OnWakeup registers a handler called when a sleeping process is made
// runnable by a wakeup.
func (k *Kernel) OnWakeup(handler func(context.Context, SchedEvent) error) error {
	_, err := k.hooks.Hook(EventWakeup, handler)
	return err
}

// emit publishes an event if anyone is listening.
func (k *Kernel) emit(ctx context.Context, key hookz.Key, p *Proc, cpu int) {
	if k.hooks.ListenerCount(key) == 0 {
		return
	}
	_ = k.hooks.Emit(ctx, key, SchedEvent{ //nolint:errcheck
		PID:       p.pid,
		ProcName:  p.name,
		CPU:       cpu,
		Queue:     p.level,
		Cycles:    p.cycles,
		Tickets:   p.tickets,
		Rank:      p.rank,
		Tick:      k.now(),
		Timestamp: k.clock.Now(),
	})
}
