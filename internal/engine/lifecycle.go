package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/SoarinFerret/FocusWarden/internal/session"
	"github.com/SoarinFerret/FocusWarden/internal/state"
	"github.com/SoarinFerret/FocusWarden/internal/store"
)

// StartRequest describes a new focus session. TabID and WindowID are unset
// when the session is started outside the browser.
type StartRequest struct {
	TabID       *int     `json:"tab_id,omitempty"`
	WindowID    *int     `json:"window_id,omitempty"`
	PageTitle   string   `json:"page_title,omitempty"`
	PageURL     string   `json:"page_url,omitempty"`
	FaviconURL  string   `json:"favicon_url,omitempty"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// StartFocus replaces any running session. Open blacklisted tabs are warned
// and the origin page summary is attached in the background.
func (e *Engine) StartFocus(ctx context.Context, req StartRequest) *session.FocusSession {
	now := e.now()

	var keywords []string
	for _, kw := range req.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	started := e.state.StartFocus(session.FocusSession{
		OriginTabID:    req.TabID,
		OriginWindowID: req.WindowID,
		PageTitle:      req.PageTitle,
		PageURL:        req.PageURL,
		FaviconURL:     req.FaviconURL,
		Description:    strings.TrimSpace(req.Description),
		Keywords:       keywords,
	}, now)
	e.resetScrolls(now)
	e.sampler.Reset()

	if started.HasOriginTab() {
		origin := *started.OriginTabID
		e.state.TabOpened(origin, now)
		e.state.SetActiveTab(origin)
		if req.PageURL != "" {
			e.state.UpdateTab(origin, req.PageURL, req.PageTitle, "")
		}
	}
	e.logger.Info("focus session started", "task", started.TaskName(), "generation", started.Generation)

	if len(keywords) > 0 {
		if err := e.store.AddKeywords(keywords); err != nil {
			e.logger.Warn("failed to save keywords to history", "err", err)
		}
	}

	e.warnBlacklistedTabs(ctx, started)
	e.attachSummary(started)
	return started
}

func (e *Engine) warnBlacklistedTabs(ctx context.Context, focus *session.FocusSession) {
	for _, tab := range e.state.Tabs() {
		if tab.URL == "" || focus.IsOriginTab(tab.ID) {
			continue
		}
		blacklisted, err := e.store.Matches(store.Blacklist, tab.URL)
		if err != nil {
			e.logger.Warn("failed to check tabs for blacklist", "err", err)
			return
		}
		if !blacklisted {
			continue
		}
		e.logger.Debug("sending blacklist warning", "tab", tab.ID, "url", tab.URL)
		if err := e.browser.WarnBlacklisted(ctx, tab.ID, tab.URL); err != nil {
			e.logger.Warn("failed to warn blacklisted tab", "tab", tab.ID, "err", err)
		}
	}
}

// attachSummary fills in the session's content summary unless the session
// changed in the meantime.
func (e *Engine) attachSummary(focus *session.FocusSession) {
	if !focus.HasOriginTab() || e.summarizer == nil || !e.aiEnabled() {
		return
	}
	ctx := e.runContext()
	origin, gen := *focus.OriginTabID, focus.Generation

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, e.cfg.Policy.VerdictTimeout.Std())
		defer cancel()

		summary, err := e.summarizer.TabSummary(ctx, origin)
		if err != nil {
			e.logger.Warn("failed to get initial content", "err", err)
			return
		}
		if summary == "" {
			return
		}
		err = e.state.UpdateFocus(gen, func(s *session.FocusSession) { s.ContentSummary = summary })
		switch {
		case errors.Is(err, state.ErrStaleSession), errors.Is(err, state.ErrNoFocusSession):
			e.logger.Debug("dropping summary for a replaced session", "generation", gen)
		case err != nil:
			e.logger.Warn("failed to attach summary", "err", err)
		default:
			e.logger.Debug("attached content summary", "generation", gen)
		}
	}()
}

func (e *Engine) aiEnabled() bool {
	s, err := e.store.Settings()
	if err != nil {
		e.logger.Warn("failed to read settings", "err", err)
		return false
	}
	return s.AIEnabled
}

// EndFocus clears the session. Verdicts still in flight become stale.
func (e *Engine) EndFocus() (*session.FocusSession, bool) {
	ended, ok := e.state.EndFocus()
	e.resetScrolls(e.now())
	e.sampler.Reset()
	if ok {
		e.logger.Info("focus session ended", "task", ended.TaskName())
	}
	return ended, ok
}

// CompleteFocus records the session as a completed task and ends it.
func (e *Engine) CompleteFocus() (session.CompletedTask, bool, error) {
	focus := e.state.Focus()
	if focus == nil {
		e.EndFocus()
		return session.CompletedTask{}, false, nil
	}

	task, err := e.store.RecordCompletedTask(focus.TaskName(), focus.Duration(e.now()))
	e.EndFocus()
	if err != nil {
		return session.CompletedTask{}, false, err
	}
	e.logger.Info("recorded completed task", "task", task.TaskName, "duration", task.FocusDuration)
	return task, true, nil
}

// ReturnToFocus brings the origin tab to the front. If the tab is gone the
// session is cleared and ErrOriginTabClosed returned.
func (e *Engine) ReturnToFocus(ctx context.Context) error {
	focus := e.state.Focus()
	if !focus.HasOriginTab() {
		return state.ErrNoFocusSession
	}
	origin := *focus.OriginTabID

	if _, known := e.state.Tab(origin); !known {
		e.EndFocus()
		return ErrOriginTabClosed
	}
	if err := e.browser.ActivateTab(ctx, origin); err != nil {
		e.logger.Warn("failed to return to origin tab", "tab", origin, "err", err)
		e.EndFocus()
		return ErrOriginTabClosed
	}
	return nil
}

// ReturnToFocusAndClose returns to the origin tab and closes tabID.
func (e *Engine) ReturnToFocusAndClose(ctx context.Context, tabID int) error {
	focus := e.state.Focus()
	if focus == nil {
		return state.ErrNoFocusSession
	}
	if focus.HasOriginTab() {
		if err := e.ReturnToFocus(ctx); err != nil {
			return err
		}
	}
	if focus.IsOriginTab(tabID) {
		return nil
	}
	if err := e.browser.CloseTab(ctx, tabID); err != nil {
		e.logger.Warn("failed to close tab", "tab", tabID, "err", err)
	}
	return nil
}

// AddResearch marks a page as a legitimate detour for the current session
// and restarts the nudge cooldown.
func (e *Engine) AddResearch(ctx context.Context, tabID int, url, title string) ([]session.ResearchPage, error) {
	if !e.state.HasFocus() {
		return nil, state.ErrNoFocusSession
	}
	if url == "" {
		return nil, ErrMissingPageURL
	}
	if title == "" {
		title = "Untitled"
	}

	var summary string
	if e.summarizer != nil && tabID > 0 {
		var err error
		if summary, err = e.summarizer.TabSummary(ctx, tabID); err != nil {
			e.logger.Warn("failed to get research page summary", "tab", tabID, "err", err)
		}
	}

	now := e.now()
	var pages []session.ResearchPage
	err := e.state.ModifyFocus(func(s *session.FocusSession) {
		s.AddResearchPage(session.ResearchPage{URL: url, Title: title, Summary: summary, Timestamp: now})
		pages = append(pages, s.ResearchPages...)
	})
	if err != nil {
		return nil, err
	}
	e.state.StampNudge(now)
	e.logger.Debug("added to research", "url", url)
	return pages, nil
}

// CheckBlacklist reports whether tabID showing url should get the blacklist
// warning, and why not when it should not.
func (e *Engine) CheckBlacklist(tabID int, url string) (bool, string) {
	if url == "" {
		return false, ""
	}
	if !e.state.HasFocus() {
		return false, "no_focus"
	}
	if bypassed, err := e.store.IsBypassed(tabID, url); err != nil {
		e.logger.Warn("failed to check bypass", "err", err)
	} else if bypassed {
		return false, "bypassed"
	}
	if ok, err := e.store.Matches(store.Whitelist, url); err != nil {
		e.logger.Warn("failed to check whitelist", "err", err)
	} else if ok {
		return false, "whitelisted"
	}
	blacklisted, err := e.store.Matches(store.Blacklist, url)
	if err != nil {
		e.logger.Warn("failed to check blacklist", "err", err)
		return false, ""
	}
	return blacklisted, ""
}

// BypassBlacklist lets tabID keep showing url for the rest of its life.
func (e *Engine) BypassBlacklist(tabID int, url string) error {
	if url == "" {
		return ErrMissingPageURL
	}
	return e.store.AddBypass(tabID, url)
}

// Status is a snapshot of the engine for the CLI and HTTP API.
type Status struct {
	Active      bool                  `json:"active"`
	State       string                `json:"state"`
	Focus       *session.FocusSession `json:"focus,omitempty"`
	Elapsed     time.Duration         `json:"elapsed"`
	LastNudge   time.Time             `json:"last_nudge,omitzero"`
	ActiveTab   *int                  `json:"active_tab,omitempty"`
	RecentPages int                   `json:"recent_pages"`
}

func (e *Engine) Status() Status {
	now := e.now()
	focus := e.state.Focus()
	st := Status{
		Active:      focus != nil,
		State:       e.arbiter.State().String(),
		Focus:       focus,
		LastNudge:   e.state.Gate().LastNudge,
		RecentPages: len(e.state.Visits()),
	}
	if focus != nil {
		st.Elapsed = focus.Duration(now)
	}
	if id, ok := e.state.ActiveTab(); ok {
		st.ActiveTab = &id
	}
	return st
}
