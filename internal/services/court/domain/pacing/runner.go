package pacing

import (
	"sync"
	"time"
)

// Step is one unit of paced work. Run executes after Delay elapses.
type Step struct {
	Delay time.Duration
	Run   func()
}

// Runner plays steps strictly in order, waiting each step's delay on a
// Scheduler. It shares the owner's lock: Enqueue, Idle and Stop must be
// called with lock held, and every step runs with lock held.
type Runner struct {
	sched   Scheduler
	lock    sync.Locker
	fired   func()
	queue   []Step
	timer   Timer
	waiting bool
	pumping bool
	stopped bool
	gen     uint64
}

// NewRunner builds a runner. fired, when set, is called after a timed step
// has run and lock has been released.
func NewRunner(sched Scheduler, lock sync.Locker, fired func()) *Runner {
	if sched == nil {
		sched = RealScheduler{}
	}
	return &Runner{sched: sched, lock: lock, fired: fired}
}

// Enqueue appends steps and starts playing them if the runner is idle.
func (r *Runner) Enqueue(steps ...Step) {
	if r.stopped {
		return
	}
	r.queue = append(r.queue, steps...)
	r.pump()
}

// Idle reports whether no step is pending.
func (r *Runner) Idle() bool {
	return len(r.queue) == 0 && !r.waiting
}

// Stop cancels the pending timer and drops queued steps. Callbacks of timers
// that already fired become no-ops.
func (r *Runner) Stop() {
	r.stopped = true
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.queue = nil
	r.waiting = false
}

// Flush runs every queued step now, skipping the remaining delays. Steps
// enqueued by flushed steps run too. The pending timer becomes a no-op.
func (r *Runner) Flush() {
	if r.stopped || r.pumping {
		return
	}
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.waiting = false
	r.pumping = true
	defer func() { r.pumping = false }()
	for !r.stopped && len(r.queue) > 0 {
		step := r.queue[0]
		r.queue = r.queue[1:]
		step.Run()
	}
}

func (r *Runner) pump() {
	if r.pumping {
		return
	}
	r.pumping = true
	defer func() { r.pumping = false }()

	for !r.stopped && !r.waiting && len(r.queue) > 0 {
		step := r.queue[0]
		if step.Delay <= 0 {
			r.queue = r.queue[1:]
			step.Run()
			continue
		}
		r.waiting = true
		gen := r.gen
		r.timer = r.sched.AfterFunc(step.Delay, func() { r.fire(gen) })
	}
}

func (r *Runner) fire(gen uint64) {
	r.lock.Lock()
	if r.stopped || gen != r.gen || !r.waiting {
		r.lock.Unlock()
		return
	}
	r.waiting = false
	r.timer = nil
	step := r.queue[0]
	r.queue = r.queue[1:]
	r.pumping = true
	step.Run()
	r.pumping = false
	r.pump()
	r.lock.Unlock()

	if r.fired != nil {
		r.fired()
	}
}
