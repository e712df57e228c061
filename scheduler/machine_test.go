package scheduler

import (
	"testing"
	"time"

	"github.com/ZaguanLabs/livetl/config"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func testTuning() config.Tuning {
	return config.Tuning{
		Debounce:          ms(50),
		MaxDebounce:       ms(120),
		Throttle:          ms(500),
		ComplexMultiplier: 2,
	}
}

func req(reason string) Request {
	return Request{ID: reason, Reason: reason, Verdict: Verdict{Translate: true}}
}

func TestMachine_DebounceThenEvaluate(t *testing.T) {
	m := NewMachine(testTuning())

	eff := m.Step(MutationsSeen{At: t0})
	if m.State() != Pending || eff.Debounce != ms(50) {
		t.Fatalf("after mutations: state %v, effect %+v", m.State(), eff)
	}

	eff = m.Step(DebounceElapsed{At: t0.Add(ms(50))})
	if m.State() != Evaluating || !eff.Evaluate {
		t.Fatalf("after debounce: state %v, effect %+v", m.State(), eff)
	}

	eff = m.Step(Evaluated{At: t0.Add(ms(51)), Request: Request{Reason: "mutations"}})
	if m.State() != Idle || eff != (Effect{}) {
		t.Errorf("after negative verdict: state %v, effect %+v", m.State(), eff)
	}
}

func TestMachine_DebounceIsBounded(t *testing.T) {
	m := NewMachine(testTuning())
	m.Step(MutationsSeen{At: t0})

	if eff := m.Step(MutationsSeen{At: t0.Add(ms(40))}); eff.Debounce != ms(50) {
		t.Errorf("reset at +40ms = %+v, want full debounce", eff)
	}
	if eff := m.Step(MutationsSeen{At: t0.Add(ms(100))}); eff.Debounce != ms(20) {
		t.Errorf("reset at +100ms = %+v, want 20ms left of the 120ms bound", eff)
	}
	eff := m.Step(MutationsSeen{At: t0.Add(ms(130))})
	if !eff.Evaluate || !eff.StopDebounce || m.State() != Evaluating {
		t.Errorf("past bound: state %v, effect %+v", m.State(), eff)
	}
}

func TestMachine_UrgentSkipsDebounce(t *testing.T) {
	m := NewMachine(testTuning())
	eff := m.Step(MutationsSeen{At: t0, Urgent: true})
	if !eff.Evaluate || m.State() != Evaluating {
		t.Errorf("state %v, effect %+v", m.State(), eff)
	}
}

func TestMachine_FirstPassRunsImmediately(t *testing.T) {
	m := NewMachine(testTuning())
	eff := m.Step(Requested{At: t0, Request: req("initial")})
	if eff.Run == nil || eff.Run.Reason != "initial" || m.State() != Translating {
		t.Errorf("state %v, effect %+v", m.State(), eff)
	}
}

func TestMachine_ScenarioE_CoalescesInsideThrottleWindow(t *testing.T) {
	m := NewMachine(testTuning())

	m.Step(Requested{At: t0, Request: req("initial")})
	m.Step(PassDone{At: t0.Add(ms(10))})

	runs := 0
	step := func(e Event) Effect {
		eff := m.Step(e)
		if eff.Run != nil {
			runs++
		}
		return eff
	}

	eff := step(Requested{At: t0.Add(ms(100)), Request: req("first")})
	if m.State() != Scheduled || eff.Throttle != ms(400) {
		t.Fatalf("first trigger: state %v, effect %+v", m.State(), eff)
	}

	eff = step(Requested{At: t0.Add(ms(200)), Request: req("second")})
	if eff != (Effect{}) {
		t.Fatalf("second trigger armed something: %+v", eff)
	}
	if d := m.Deferred(); d == nil || d.Reason != "second" {
		t.Fatalf("deferred = %+v, want the later request", d)
	}

	eff = step(ThrottleElapsed{At: t0.Add(ms(500))})
	if eff.Run == nil || eff.Run.Reason != "second" {
		t.Fatalf("throttle elapsed: effect %+v, want run of the later request", eff)
	}
	if runs != 1 {
		t.Errorf("runs = %d, want exactly one", runs)
	}
}

func TestMachine_ComplexContextMultipliesThrottle(t *testing.T) {
	tuning := testTuning()
	tuning.Complex = true
	m := NewMachine(tuning)

	m.Step(Requested{At: t0, Request: req("initial")})
	m.Step(PassDone{At: t0})
	eff := m.Step(Requested{At: t0.Add(ms(100)), Request: req("again")})
	if eff.Throttle != ms(900) {
		t.Errorf("Throttle = %v, want 900ms", eff.Throttle)
	}
}

func TestMachine_StaleTimersIgnored(t *testing.T) {
	m := NewMachine(testTuning())
	if eff := m.Step(DebounceElapsed{At: t0}); eff != (Effect{}) || m.State() != Idle {
		t.Errorf("stale debounce: state %v, effect %+v", m.State(), eff)
	}
	if eff := m.Step(ThrottleElapsed{At: t0}); eff != (Effect{}) || m.State() != Idle {
		t.Errorf("stale throttle: state %v, effect %+v", m.State(), eff)
	}
	if eff := m.Step(PassDone{At: t0}); eff != (Effect{}) {
		t.Errorf("stale pass done: %+v", eff)
	}
}

func TestMachine_RequestCancelsDebounce(t *testing.T) {
	m := NewMachine(testTuning())
	m.Step(MutationsSeen{At: t0})
	eff := m.Step(Requested{At: t0.Add(ms(10)), Request: req("navigate")})
	if !eff.StopDebounce || eff.Run == nil {
		t.Errorf("effect %+v, want debounce stopped and pass run", eff)
	}
}

func TestMachine_MutationsDuringPass(t *testing.T) {
	m := NewMachine(testTuning())
	m.Step(Requested{At: t0, Request: req("initial")})

	if eff := m.Step(MutationsSeen{At: t0.Add(ms(5))}); eff != (Effect{}) {
		t.Fatalf("mutations during pass produced %+v", eff)
	}
	eff := m.Step(PassDone{At: t0.Add(ms(20))})
	if m.State() != Pending || eff.Debounce != ms(50) {
		t.Errorf("after pass: state %v, effect %+v", m.State(), eff)
	}
}

func TestMachine_RequestDuringPassIsDeferred(t *testing.T) {
	m := NewMachine(testTuning())
	m.Step(Requested{At: t0, Request: req("initial")})
	m.Step(Requested{At: t0.Add(ms(5)), Request: req("poll")})

	eff := m.Step(PassDone{At: t0.Add(ms(100))})
	if m.State() != Scheduled || eff.Throttle != ms(400) {
		t.Errorf("after pass: state %v, effect %+v", m.State(), eff)
	}
	eff = m.Step(ThrottleElapsed{At: t0.Add(ms(500))})
	if eff.Run == nil || eff.Run.Reason != "poll" {
		t.Errorf("effect %+v, want deferred poll pass", eff)
	}
}

func TestMachine_PositiveVerdictSchedules(t *testing.T) {
	m := NewMachine(testTuning())
	m.Step(MutationsSeen{At: t0})
	m.Step(DebounceElapsed{At: t0.Add(ms(50))})
	eff := m.Step(Evaluated{At: t0.Add(ms(50)), Request: req("mutations")})
	if eff.Run == nil || m.State() != Translating {
		t.Errorf("state %v, effect %+v", m.State(), eff)
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		Idle: "idle", Pending: "pending", Evaluating: "evaluating",
		Scheduled: "scheduled", Translating: "translating", State(42): "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
