package tracker

import (
	"time"

	"github.com/SoarinFerret/FocusWarden/internal/eval"
	"github.com/SoarinFerret/FocusWarden/internal/session"
	"github.com/SoarinFerret/FocusWarden/internal/state"
)

type TabPolicy struct {
	Window    time.Duration
	Threshold int
	Throttle  time.Duration
	Cooldown  time.Duration
}

// TabActivityTracker detects bursts of cross-site switching in the
// recent-visit log.
type TabActivityTracker struct {
	state  *state.Manager
	policy TabPolicy
}

func NewTabActivityTracker(sm *state.Manager, policy TabPolicy) *TabActivityTracker {
	return &TabActivityTracker{state: sm, policy: policy}
}

// Evaluate runs after every activation and completed navigation. It is a
// no-op while a semantic check is outstanding, inside the drift-check
// throttle, or inside the nudge cooldown.
func (t *TabActivityTracker) Evaluate(tabID int, now time.Time) (Signal, bool) {
	focus := t.state.Focus()
	if focus == nil {
		return Signal{}, false
	}

	gate := t.state.Gate()
	if gate.Checking {
		return Signal{}, false
	}
	if !gate.LastDriftCheck.IsZero() && now.Sub(gate.LastDriftCheck) < t.policy.Throttle {
		return Signal{}, false
	}
	if !eval.CooldownElapsed(gate.LastNudge, now, t.policy.Cooldown) {
		return Signal{}, false
	}

	visits := t.state.RecentVisits(now.Add(-t.policy.Window))
	filtered, distinct := DistinctSwitches(visits, focus.PageURL)
	if distinct < t.policy.Threshold {
		return Signal{}, false
	}

	sig := Signal{Kind: RapidSwitch, TabID: tabID, Visits: filtered, At: now}
	if n := len(filtered); n > 0 {
		sig.URL = filtered[n-1].URL
		sig.Title = filtered[n-1].Title
	}
	return sig, true
}

// DistinctSwitches drops visits to the focus page and counts the distinct
// base URLs that remain.
func DistinctSwitches(visits []session.URLVisit, focusURL string) ([]session.URLVisit, int) {
	focusBase := ""
	if focusURL != "" {
		focusBase = eval.BaseURL(focusURL)
	}

	seen := make(map[string]bool)
	var filtered []session.URLVisit
	for _, v := range visits {
		if v.URL == "" {
			continue
		}
		base := eval.BaseURL(v.URL)
		if focusBase != "" && base == focusBase {
			continue
		}
		seen[base] = true
		filtered = append(filtered, v)
	}
	return filtered, len(seen)
}
