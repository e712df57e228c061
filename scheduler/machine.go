package scheduler

import (
	"time"

	"github.com/ZaguanLabs/livetl/config"
)

// State is the scheduling state.
type State int

const (
	Idle State = iota
	Pending
	Evaluating
	Scheduled
	Translating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Evaluating:
		return "evaluating"
	case Scheduled:
		return "scheduled"
	case Translating:
		return "translating"
	default:
		return "unknown"
	}
}

// Request describes why a pass was asked for. When requests coalesce the most
// recent one is kept.
type Request struct {
	ID      string
	Reason  string
	At      time.Time
	Verdict Verdict
}

// Event is an input to the Machine.
type Event interface{ at() time.Time }

// MutationsSeen reports relevant mutations. Urgent mutations skip the debounce.
type MutationsSeen struct {
	At     time.Time
	Urgent bool
}

// DebounceElapsed reports that the debounce timer fired.
type DebounceElapsed struct{ At time.Time }

// Evaluated carries the detector's verdict for the debounced batch.
type Evaluated struct {
	At      time.Time
	Request Request
}

// Requested asks for a pass directly (initial pass, poll tick, navigation).
type Requested struct {
	At      time.Time
	Request Request
}

// ThrottleElapsed reports that the throttle timer fired.
type ThrottleElapsed struct{ At time.Time }

// PassDone reports that the running pass finished.
type PassDone struct{ At time.Time }

func (e MutationsSeen) at() time.Time   { return e.At }
func (e DebounceElapsed) at() time.Time { return e.At }
func (e Evaluated) at() time.Time       { return e.At }
func (e Requested) at() time.Time       { return e.At }
func (e ThrottleElapsed) at() time.Time { return e.At }
func (e PassDone) at() time.Time        { return e.At }

// Effect is what the driver must do after a step. Zero fields mean nothing.
type Effect struct {
	// Debounce (re)arms the debounce timer.
	Debounce time.Duration
	// StopDebounce cancels the debounce timer.
	StopDebounce bool
	// Evaluate asks the driver to classify the buffered records and feed
	// back an Evaluated event.
	Evaluate bool
	// Throttle arms the throttle timer.
	Throttle time.Duration
	// Run starts a pass for the request.
	Run *Request
}

// Machine is the scheduling state machine. It has no timers of its own and
// no side effects: the driver feeds it events and carries out its effects.
type Machine struct {
	state State

	debounce    time.Duration
	maxDebounce time.Duration
	throttle    time.Duration

	pendingSince time.Time
	lastPass     time.Time
	passed       bool
	deferred     *Request
	dirty        bool
	dirtyUrgent  bool
}

// NewMachine creates an idle machine for the given tuning.
func NewMachine(t config.Tuning) *Machine {
	m := &Machine{}
	m.SetTuning(t)
	return m
}

// SetTuning changes the timing parameters. Timers already armed keep their
// deadlines.
func (m *Machine) SetTuning(t config.Tuning) {
	m.debounce = t.Debounce
	m.maxDebounce = max(t.MaxDebounce, t.Debounce)
	m.throttle = t.ThrottleInterval()
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Deferred returns the request waiting for the throttle window, if any.
func (m *Machine) Deferred() *Request { return m.deferred }

// Step applies one event and returns the resulting effect. Events that do not
// apply to the current state (a stale timer, for instance) are ignored.
func (m *Machine) Step(e Event) Effect {
	switch e := e.(type) {
	case MutationsSeen:
		return m.onMutations(e)
	case DebounceElapsed:
		if m.state != Pending {
			return Effect{}
		}
		m.state = Evaluating
		return Effect{Evaluate: true}
	case Evaluated:
		if m.state != Evaluating {
			return Effect{}
		}
		if !e.Request.Verdict.Translate {
			return m.settle(e.At)
		}
		return m.schedule(e.Request, e.At)
	case Requested:
		return m.onRequest(e)
	case ThrottleElapsed:
		if m.state != Scheduled || m.deferred == nil {
			return Effect{}
		}
		return m.run(*m.deferred, e.At)
	case PassDone:
		if m.state != Translating {
			return Effect{}
		}
		return m.settle(e.At)
	}
	return Effect{}
}

func (m *Machine) onMutations(e MutationsSeen) Effect {
	switch m.state {
	case Idle:
		if e.Urgent {
			m.state = Evaluating
			return Effect{Evaluate: true}
		}
		m.state = Pending
		m.pendingSince = e.At
		return Effect{Debounce: m.debounce}
	case Pending:
		if e.Urgent {
			m.state = Evaluating
			return Effect{StopDebounce: true, Evaluate: true}
		}
		delay := min(m.debounce, m.pendingSince.Add(m.maxDebounce).Sub(e.At))
		if delay <= 0 {
			m.state = Evaluating
			return Effect{StopDebounce: true, Evaluate: true}
		}
		return Effect{Debounce: delay}
	case Scheduled:
		// The deferred pass will see these changes.
		return Effect{}
	default:
		// Evaluating or Translating: look again once settled.
		m.dirty = true
		m.dirtyUrgent = m.dirtyUrgent || e.Urgent
		return Effect{}
	}
}

func (m *Machine) onRequest(e Requested) Effect {
	switch m.state {
	case Scheduled:
		m.deferred = &e.Request
		return Effect{}
	case Translating, Evaluating:
		m.deferred = &e.Request
		return Effect{}
	case Pending:
		eff := m.schedule(e.Request, e.At)
		eff.StopDebounce = true
		return eff
	default:
		return m.schedule(e.Request, e.At)
	}
}

// schedule runs req now if the throttle window allows, else defers it.
func (m *Machine) schedule(req Request, now time.Time) Effect {
	wait := m.throttleRemaining(now)
	if wait <= 0 {
		return m.run(req, now)
	}
	if m.state == Scheduled {
		m.deferred = &req
		return Effect{}
	}
	m.state = Scheduled
	m.deferred = &req
	return Effect{Throttle: wait}
}

func (m *Machine) run(req Request, now time.Time) Effect {
	m.state = Translating
	m.deferred = nil
	m.dirty = false
	m.dirtyUrgent = false
	m.lastPass = now
	m.passed = true
	return Effect{Run: &req}
}

// settle leaves Evaluating or Translating, picking up anything that arrived
// meanwhile.
func (m *Machine) settle(now time.Time) Effect {
	m.state = Idle
	if m.deferred != nil {
		req := *m.deferred
		m.deferred = nil
		return m.schedule(req, now)
	}
	if m.dirty {
		urgent := m.dirtyUrgent
		m.dirty = false
		m.dirtyUrgent = false
		return m.onMutations(MutationsSeen{At: now, Urgent: urgent})
	}
	return Effect{}
}

func (m *Machine) throttleRemaining(now time.Time) time.Duration {
	if !m.passed {
		return 0
	}
	return m.lastPass.Add(m.throttle).Sub(now)
}
