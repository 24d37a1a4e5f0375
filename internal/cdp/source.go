// Package cdp feeds tab events from a Chrome remote debugging endpoint into
// the engine, for browsers running without the extension.
package cdp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/SoarinFerret/FocusWarden/internal/pagetext"
)

const (
	loadTimeout    = 15 * time.Second
	activeInterval = 2 * time.Second
)

// Events receives what the source observes.
type Events interface {
	TabActivated(tabID int, url, title string)
	NavigationCompleted(tabID int, url, title, content string)
	TabRemoved(tabID int)
}

type target struct {
	id    int
	url   string
	title string
}

// Source maps CDP page targets to stable integer tab IDs.
type Source struct {
	browser *rod.Browser
	events  Events
	logger  *slog.Logger

	// load fetches the rendered page of a target.
	load func(ctx context.Context, id proto.TargetTargetID) (pagetext.Page, error)

	mu      sync.Mutex
	next    int
	targets map[proto.TargetTargetID]*target
	byTab   map[int]proto.TargetTargetID
	active  int
	wg      sync.WaitGroup
}

func newSource(events Events, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		events:  events,
		logger:  logger,
		targets: make(map[proto.TargetTargetID]*target),
		byTab:   make(map[int]proto.TargetTargetID),
	}
}

// Connect attaches to the browser behind controlURL, e.g.
// ws://127.0.0.1:9222/devtools/browser/<id>.
func Connect(ctx context.Context, controlURL string, events Events, logger *slog.Logger) (*Source, error) {
	b := rod.New().Context(ctx).ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("cdp: connect: %w", err)
	}
	s := newSource(events, logger)
	s.browser = b
	s.load = s.loadPage
	return s, nil
}

func (s *Source) Close() error {
	s.wg.Wait()
	return s.browser.Close()
}

// Run subscribes to target events and tracks the focused page until ctx is
// cancelled.
func (s *Source) Run(ctx context.Context) error {
	b := s.browser.Context(ctx)

	wait := b.EachEvent(
		func(e *proto.TargetTargetCreated) { s.onInfo(ctx, e.TargetInfo) },
		func(e *proto.TargetTargetInfoChanged) { s.onInfo(ctx, e.TargetInfo) },
		func(e *proto.TargetTargetDestroyed) { s.onDestroyed(e.TargetID) },
	)
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b); err != nil {
		return fmt.Errorf("cdp: discover targets: %w", err)
	}
	s.logger.Info("cdp source attached")

	go s.watchActive(ctx)
	wait()
	s.wg.Wait()
	return nil
}

func (s *Source) onInfo(ctx context.Context, info *proto.TargetTargetInfo) {
	if info == nil || info.Type != proto.TargetTargetInfoTypePage {
		return
	}

	s.mu.Lock()
	t, ok := s.targets[info.TargetID]
	if !ok {
		s.next++
		t = &target{id: s.next}
		s.targets[info.TargetID] = t
		s.byTab[t.id] = info.TargetID
	}
	changed := t.url != info.URL
	t.url, t.title = info.URL, info.Title
	tabID := t.id
	s.mu.Unlock()

	if !changed || info.URL == "" || info.URL == "about:blank" {
		return
	}
	s.logger.Debug("cdp navigation", "tab", tabID, "url", info.URL)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.navigated(ctx, info.TargetID, tabID, info.URL, info.Title)
	}()
}

func (s *Source) navigated(ctx context.Context, id proto.TargetTargetID, tabID int, url, title string) {
	var content string
	if s.load != nil {
		page, err := s.load(ctx, id)
		if err != nil {
			s.logger.Debug("failed to read page", "tab", tabID, "err", err)
		} else {
			content = page.Text
			if title == "" {
				title = page.Title
			}
		}
	}
	s.events.NavigationCompleted(tabID, url, title, content)
}

func (s *Source) onDestroyed(id proto.TargetTargetID) {
	s.mu.Lock()
	t, ok := s.targets[id]
	if ok {
		delete(s.targets, id)
		delete(s.byTab, t.id)
		if s.active == t.id {
			s.active = 0
		}
	}
	s.mu.Unlock()

	if ok {
		s.events.TabRemoved(t.id)
	}
}

// setActive reports tabID as the focused tab if it changed.
func (s *Source) setActive(tabID int) {
	s.mu.Lock()
	if s.active == tabID {
		s.mu.Unlock()
		return
	}
	s.active = tabID
	id, ok := s.byTab[tabID]
	var url, title string
	if ok {
		url, title = s.targets[id].url, s.targets[id].title
	}
	s.mu.Unlock()

	if ok {
		s.events.TabActivated(tabID, url, title)
	}
}

// watchActive polls the pages for the one that is visible and focused. CDP
// has no tab activation event.
func (s *Source) watchActive(ctx context.Context) {
	ticker := time.NewTicker(activeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if tabID, ok := s.focusedTab(ctx); ok {
				s.setActive(tabID)
			}
		}
	}
}

func (s *Source) focusedTab(ctx context.Context) (int, bool) {
	s.mu.Lock()
	ids := make(map[proto.TargetTargetID]int, len(s.targets))
	for id, t := range s.targets {
		ids[id] = t.id
	}
	s.mu.Unlock()

	for id, tabID := range ids {
		page, err := s.browser.PageFromTarget(id)
		if err != nil {
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, time.Second)
		res, err := page.Context(pctx).Eval(`() => document.visibilityState === "visible" && document.hasFocus()`)
		cancel()
		if err == nil && res.Value.Bool() {
			return tabID, true
		}
	}
	return 0, false
}

func (s *Source) loadPage(ctx context.Context, id proto.TargetTargetID) (pagetext.Page, error) {
	page, err := s.browser.PageFromTarget(id)
	if err != nil {
		return pagetext.Page{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	p := page.Context(ctx)
	if err := p.WaitLoad(); err != nil {
		return pagetext.Page{}, err
	}
	html, err := p.HTML()
	if err != nil {
		return pagetext.Page{}, err
	}
	return pagetext.ExtractString(html)
}

func (s *Source) targetID(tabID int) (proto.TargetTargetID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byTab[tabID]
	if !ok {
		return "", fmt.Errorf("cdp: unknown tab %d", tabID)
	}
	return id, nil
}

// PageText reads the current text of a tab for summaries.
func (s *Source) PageText(ctx context.Context, tabID int) (string, error) {
	id, err := s.targetID(tabID)
	if err != nil {
		return "", err
	}
	page, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	return page.Text, nil
}

func (s *Source) ActivateTab(ctx context.Context, tabID int) error {
	id, err := s.targetID(tabID)
	if err != nil {
		return err
	}
	return proto.TargetActivateTarget{TargetID: id}.Call(s.browser.Context(ctx))
}

func (s *Source) CloseTab(ctx context.Context, tabID int) error {
	id, err := s.targetID(tabID)
	if err != nil {
		return err
	}
	_, err = proto.TargetCloseTarget{TargetID: id}.Call(s.browser.Context(ctx))
	return err
}

const warnBanner = `(url) => {
	if (document.getElementById("focuswarden-warning")) return;
	const el = document.createElement("div");
	el.id = "focuswarden-warning";
	el.textContent = "FocusWarden: " + url + " is on your blacklist.";
	el.style.cssText = "position:fixed;top:0;left:0;right:0;z-index:2147483647;padding:8px;background:#b00020;color:#fff;font:14px sans-serif;text-align:center";
	document.body.appendChild(el);
}`

// WarnBlacklisted shows a banner on the page since there is no extension
// UI to present the warning.
func (s *Source) WarnBlacklisted(ctx context.Context, tabID int, url string) error {
	id, err := s.targetID(tabID)
	if err != nil {
		return err
	}
	page, err := s.browser.PageFromTarget(id)
	if err != nil {
		return err
	}
	_, err = page.Context(ctx).Eval(warnBanner, url)
	return err
}
