package tracker

import (
	"time"

	"github.com/SoarinFerret/FocusWarden/internal/eval"
	"github.com/SoarinFerret/FocusWarden/internal/state"
)

// AbsenceTracker watches how long the user has been away from the focus
// session's origin tab.
type AbsenceTracker struct {
	state    *state.Manager
	timeout  time.Duration
	cooldown time.Duration
}

func NewAbsenceTracker(sm *state.Manager, timeout, cooldown time.Duration) *AbsenceTracker {
	return &AbsenceTracker{state: sm, timeout: timeout, cooldown: cooldown}
}

// OnActiveTabChanged stamps the last-seen time when tabID is the origin
// tab and reports whether it was.
func (a *AbsenceTracker) OnActiveTabChanged(tabID int, now time.Time) bool {
	focus := a.state.Focus()
	if !focus.IsOriginTab(tabID) {
		return false
	}
	a.state.StampFocusVisit(now)
	return true
}

// Check raises Absence once the origin tab has gone unvisited for the
// timeout and the nudge cooldown has elapsed.
func (a *AbsenceTracker) Check(tabID int, now time.Time) (Signal, bool) {
	focus := a.state.Focus()
	if !focus.HasOriginTab() {
		return Signal{}, false
	}

	gate := a.state.Gate()
	if gate.LastFocusVisit.IsZero() || now.Sub(gate.LastFocusVisit) < a.timeout {
		return Signal{}, false
	}
	if !eval.CooldownElapsed(gate.LastNudge, now, a.cooldown) {
		return Signal{}, false
	}
	return Signal{Kind: Absence, TabID: tabID, At: now}, true
}

// Rearm restarts the absence window, called after a delivered nudge.
func (a *AbsenceTracker) Rearm(now time.Time) {
	a.state.StampFocusVisit(now)
}
