// Package pacingtest provides a manually advanced pacing scheduler.
package pacingtest

import (
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/courtroom/internal/services/court/domain/pacing"
)

// Scheduler fires tasks only when Advance moves its clock past their due time.
type Scheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*task
}

type task struct {
	due     time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
	owner   *Scheduler
}

// New returns a scheduler at time zero.
func New() *Scheduler {
	return &Scheduler{}
}

// AfterFunc records f to run once the clock reaches now+d.
func (s *Scheduler) AfterFunc(d time.Duration, f func()) pacing.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &task{due: s.now + d, seq: s.seq, f: f, owner: s}
	s.tasks = append(s.tasks, t)
	return t
}

// Stop cancels the task.
func (t *task) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Pending reports how many tasks have neither fired nor been stopped.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, firing due tasks in order. Tasks
// scheduled by fired tasks also run when they fall due within d.
func (s *Scheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()
	for {
		next := s.nextDue(target)
		if next == nil {
			break
		}
		next.f()
	}
	s.mu.Lock()
	s.now = target
	s.mu.Unlock()
}

// RunAll fires tasks until none are pending.
func (s *Scheduler) RunAll() {
	for {
		s.mu.Lock()
		var horizon time.Duration
		found := false
		for _, t := range s.tasks {
			if !t.stopped && !t.fired && (!found || t.due > horizon) {
				horizon = t.due
				found = true
			}
		}
		now := s.now
		s.mu.Unlock()
		if !found {
			return
		}
		s.Advance(horizon - now)
	}
}

func (s *Scheduler) nextDue(target time.Duration) *task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var live []*task
	for _, t := range s.tasks {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	s.tasks = live
	sort.Slice(live, func(i, j int) bool {
		if live[i].due != live[j].due {
			return live[i].due < live[j].due
		}
		return live[i].seq < live[j].seq
	})
	if len(live) == 0 || live[0].due > target {
		return nil
	}
	t := live[0]
	t.fired = true
	if t.due > s.now {
		s.now = t.due
	}
	return t
}
