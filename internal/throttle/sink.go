// Package throttle provides an async-coalescing rate gate for outbound
// message edits. The messaging platform caps how often a card can be
// patched, so intermediate updates are collapsed: the first submission
// executes eagerly and, of everything submitted while an execution is in
// flight or the cooldown is pending, only the most recent survives.
package throttle

import (
	"sync"
	"time"
)

// DefaultGap is the minimum interval between two executed actions.
const DefaultGap = 700 * time.Millisecond

// Sink serializes submitted actions, guaranteeing the first and the most
// recently submitted action run while intermediate ones are discarded.
// Errors inside an action are the action's own responsibility.
type Sink struct {
	gap time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	lastRun time.Time
	pending func()
	running bool
}

// NewSink creates a sink with the given minimum gap between executions.
// A non-positive gap falls back to DefaultGap.
func NewSink(gap time.Duration) *Sink {
	if gap <= 0 {
		gap = DefaultGap
	}
	return &Sink{gap: gap}
}

// Submit schedules an action, fire-and-forget. If the previous execution
// happened less than the gap ago the action is deferred to the end of the
// cooldown window; a newer Submit within that window replaces it.
func (s *Sink) Submit(action func()) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	wait := s.gap - time.Since(s.lastRun)
	if wait > 0 {
		s.timer = time.AfterFunc(wait, func() { s.run(action) })
		s.mu.Unlock()
		return
	}
	s.lastRun = time.Now()
	s.mu.Unlock()
	go s.run(action)
}

// run executes the action unless an execution is already in flight, in which
// case the action becomes the trailing pending one (latest wins). After each
// execution the trailing action, if any, runs immediately next.
func (s *Sink) run(action func()) {
	s.mu.Lock()
	if s.running {
		s.pending = action
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	for action != nil {
		action()

		s.mu.Lock()
		s.lastRun = time.Now()
		action = s.pending
		s.pending = nil
		if action == nil {
			s.running = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}
