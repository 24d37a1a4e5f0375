package engine

import (
	"context"

	"github.com/SoarinFerret/FocusWarden/internal/arbiter"
	"github.com/SoarinFerret/FocusWarden/internal/session"
	"github.com/SoarinFerret/FocusWarden/internal/tracker"
)

// TabActivated records that the user switched to a tab.
func (e *Engine) TabActivated(tabID int, url, title string) {
	now := e.now()
	e.state.SetActiveTab(tabID)
	e.sampler.Reset()
	e.absence.OnActiveTabChanged(tabID, now)

	if url == "" {
		return
	}
	e.state.UpdateTab(tabID, url, title, "")
	e.state.RecordVisit(session.NewVisit(tabID, url, title, "", now))
	e.evaluateSwitching(tabID)
}

// NavigationCompleted records a finished page load with its visible text.
func (e *Engine) NavigationCompleted(tabID int, url, title, content string) {
	if url == "" {
		return
	}
	now := e.now()
	e.state.TabLoaded(tabID, now)
	e.state.UpdateTab(tabID, url, title, content)
	e.state.RecordVisit(session.NewVisit(tabID, url, title, content, now))

	e.mu.Lock()
	if t, ok := e.scrolls[tabID]; ok {
		t.Reset(now)
	}
	e.mu.Unlock()

	e.evaluateSwitching(tabID)
}

// blacklisted reports whether tabID shows a blacklisted page without a
// bypass. Those pages get the blacklist warning, never drift nudges.
func (e *Engine) blacklisted(tabID int) bool {
	tab, ok := e.state.Tab(tabID)
	if !ok || tab.URL == "" {
		return false
	}
	blocked, _ := e.CheckBlacklist(tabID, tab.URL)
	return blocked
}

func (e *Engine) evaluateSwitching(tabID int) {
	if e.blacklisted(tabID) {
		return
	}
	if sig, ok := e.switching.Evaluate(tabID, e.now()); ok {
		e.logger.Debug("rapid switching detected", "tab", tabID, "visits", len(sig.Visits))
		e.dispatch(sig)
	}
}

// TabRemoved forgets a closed tab. Closing the origin tab ends the session.
func (e *Engine) TabRemoved(tabID int) {
	e.state.TabClosed(tabID)

	e.mu.Lock()
	delete(e.scrolls, tabID)
	e.mu.Unlock()

	if err := e.store.RemoveBypasses(tabID); err != nil {
		e.logger.Warn("failed to drop blacklist bypasses", "tab", tabID, "err", err)
	}

	if focus := e.state.Focus(); focus.IsOriginTab(tabID) {
		e.logger.Info("origin tab closed, ending focus session", "tab", tabID)
		e.EndFocus()
	}
}

// ScrollSamples feeds scroll telemetry from a tab's content script and
// reports how many doom-scroll signals it raised.
func (e *Engine) ScrollSamples(tabID int, samples []tracker.ScrollSample) int {
	if !e.state.HasFocus() || len(samples) == 0 || e.blacklisted(tabID) {
		return 0
	}
	now := e.now()
	for i := range samples {
		if samples[i].At.IsZero() {
			samples[i].At = now
		}
	}

	e.mu.Lock()
	t := e.scrollTracker(tabID)
	fired := t.Feed(samples)
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()

	// one nudge per batch is enough; the rest would hit the cooldown
	if len(pending) > 0 {
		e.dispatch(pending[0])
	}
	return fired
}

// ShouldNudge is asked by a content script that detected doom-scrolling on
// its own. The decision is made synchronously.
func (e *Engine) ShouldNudge(ctx context.Context, tabID int) arbiter.Decision {
	if e.state.HasFocus() && e.blacklisted(tabID) {
		return arbiter.Decision{Outcome: arbiter.Rejected, Reason: "blacklisted"}
	}
	return e.handle(ctx, tracker.Signal{Kind: tracker.DoomScroll, TabID: tabID, At: e.now()})
}

// ScrollState returns the doom-scroll accumulator of a tab.
func (e *Engine) ScrollState(tabID int) (tracker.ScrollState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.scrolls[tabID]
	if !ok {
		return tracker.ScrollState{}, false
	}
	return t.State(), true
}

// NudgeChoice applies the user's answer to a nudge shown in tabID.
func (e *Engine) NudgeChoice(ctx context.Context, tabID int, choice arbiter.Choice, url, title string) error {
	if !choice.Valid() {
		return ErrInvalidChoice
	}
	now := e.now()

	e.mu.Lock()
	if t, ok := e.scrolls[tabID]; ok {
		t.Reset(now)
	}
	e.mu.Unlock()

	switch choice {
	case arbiter.ChoiceMarkResearch:
		_, err := e.AddResearch(ctx, tabID, url, title)
		return err
	case arbiter.ChoiceReturnToFocus:
		return e.ReturnToFocusAndClose(ctx, tabID)
	default:
		e.state.StampNudge(now)
		return nil
	}
}
