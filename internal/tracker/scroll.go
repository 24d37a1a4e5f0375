package tracker

import (
	"time"

	"github.com/SoarinFerret/FocusWarden/internal/eval"
)

type SampleKind string

const (
	SampleFrame    SampleKind = "frame"
	SampleMutation SampleKind = "mutation"
)

// ScrollSample is one piece of scroll telemetry from a content script.
type ScrollSample struct {
	Kind     SampleKind `json:"kind"`
	Offset   float64    `json:"offset"`
	Viewport float64    `json:"viewport"`
	Height   float64    `json:"height"`
	At       time.Time  `json:"at"`
}

// ScrollState is the doom-scroll accumulator of one page.
type ScrollState struct {
	Distance         float64   `json:"distance"`
	LastOffset       float64   `json:"last_offset"`
	Start            time.Time `json:"start"`
	Expansions       int       `json:"expansions"`
	LastHeight       float64   `json:"last_height"`
	DistractionScore int       `json:"distraction_score"`
	Viewport         float64   `json:"viewport"`
}

// ScrollTracker accumulates scroll telemetry for one tab and raises
// DoomScroll while the signature holds and no nudge is showing. It is not
// safe for concurrent use.
type ScrollTracker struct {
	tabID        int
	policy       eval.ScrollPolicy
	emit         func(Signal)
	state        ScrollState
	primed       bool
	nudgeVisible bool
}

func NewScrollTracker(tabID int, policy eval.ScrollPolicy, emit func(Signal)) *ScrollTracker {
	return &ScrollTracker{tabID: tabID, policy: policy, emit: emit}
}

// Reset zeroes the accumulators and restarts the clock at at.
func (t *ScrollTracker) Reset(at time.Time) {
	t.state = ScrollState{Start: at, Viewport: t.state.Viewport}
	t.primed = false
	t.nudgeVisible = false
}

// SetNudgeVisible toggles the guard that suppresses re-firing while a
// nudge is on screen.
func (t *ScrollTracker) SetNudgeVisible(visible bool) {
	t.nudgeVisible = visible
}

func (t *ScrollTracker) NudgeVisible() bool {
	return t.nudgeVisible
}

func (t *ScrollTracker) State() ScrollState {
	return t.state
}

// OnFrame adds any downward movement since the previous frame and then
// evaluates the signature. It reports whether a signal was emitted.
func (t *ScrollTracker) OnFrame(offset, viewport float64, at time.Time) bool {
	if t.state.Start.IsZero() {
		t.state.Start = at
	}
	if viewport > 0 {
		t.state.Viewport = viewport
	}

	if t.primed {
		if delta := offset - t.state.LastOffset; delta > 0 {
			t.state.Distance += delta
		}
	}
	t.state.LastOffset = offset
	t.primed = true

	return t.evaluate(at)
}

// OnDOMMutation counts the page as expanded when its height at least
// doubled since the last baseline. The first observed height only sets the
// baseline.
func (t *ScrollTracker) OnDOMMutation(height float64) {
	if height <= 0 {
		return
	}
	if t.state.LastHeight <= 0 {
		t.state.LastHeight = height
		return
	}
	if height >= 2*t.state.LastHeight {
		t.state.Expansions++
		t.state.LastHeight = height
		if t.state.Expansions >= t.policy.ExpansionThreshold {
			t.state.DistractionScore++
		}
	}
}

// Feed applies samples in order and returns how many signals fired.
func (t *ScrollTracker) Feed(samples []ScrollSample) int {
	fired := 0
	for _, s := range samples {
		switch s.Kind {
		case SampleMutation:
			t.OnDOMMutation(s.Height)
		default:
			if t.state.LastHeight <= 0 && s.Height > 0 {
				t.state.LastHeight = s.Height
			}
			if t.OnFrame(s.Offset, s.Viewport, s.At) {
				fired++
			}
		}
	}
	return fired
}

// Metrics snapshots the accumulator for evaluation at at.
func (t *ScrollTracker) Metrics(at time.Time) eval.ScrollMetrics {
	elapsed := 0.0
	if !t.state.Start.IsZero() && at.After(t.state.Start) {
		elapsed = at.Sub(t.state.Start).Seconds()
	}
	return eval.ScrollMetrics{
		Distance:   t.state.Distance,
		Viewport:   t.state.Viewport,
		Elapsed:    elapsed,
		Expansions: t.state.Expansions,
	}
}

func (t *ScrollTracker) evaluate(at time.Time) bool {
	if t.nudgeVisible || t.state.Viewport <= 0 {
		return false
	}
	if !eval.DoomScroll(t.Metrics(at), t.policy) {
		return false
	}
	if t.emit != nil {
		t.emit(Signal{Kind: DoomScroll, TabID: t.tabID, At: at})
	}
	return true
}
