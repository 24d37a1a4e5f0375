// Package engine wires the trackers, the arbiter and the session lifecycle
// together and drives the periodic checks.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/SoarinFerret/FocusWarden/internal/arbiter"
	"github.com/SoarinFerret/FocusWarden/internal/config"
	"github.com/SoarinFerret/FocusWarden/internal/eval"
	"github.com/SoarinFerret/FocusWarden/internal/session"
	"github.com/SoarinFerret/FocusWarden/internal/state"
	"github.com/SoarinFerret/FocusWarden/internal/store"
	"github.com/SoarinFerret/FocusWarden/internal/tracker"
)

var (
	ErrOriginTabClosed = errors.New("origin tab closed")
	ErrMissingPageURL  = errors.New("missing page url")
	ErrInvalidChoice   = errors.New("invalid nudge choice")
)

// Store is the persistence the engine needs.
type Store interface {
	arbiter.SettingsSource
	Matches(list store.List, url string) (bool, error)
	IsBypassed(tabID int, url string) (bool, error)
	AddBypass(tabID int, url string) error
	RemoveBypasses(tabID int) error
	AddKeywords(keywords []string) error
	RecordCompletedTask(name string, d time.Duration) (session.CompletedTask, error)
}

// Browser performs tab actions on the daemon's behalf.
type Browser interface {
	ActivateTab(ctx context.Context, tabID int) error
	CloseTab(ctx context.Context, tabID int) error
	WarnBlacklisted(ctx context.Context, tabID int, url string) error
}

// Engine monitors browsing during a focus session and routes drift signals
// to the arbiter.
type Engine struct {
	cfg        *config.Config
	state      *state.Manager
	store      Store
	arbiter    *arbiter.Arbiter
	summarizer arbiter.Summarizer
	browser    Browser
	logger     *slog.Logger
	now        func() time.Time

	switching    *tracker.TabActivityTracker
	absence      *tracker.AbsenceTracker
	sampler      *tracker.ContextSampler
	scrollPolicy eval.ScrollPolicy

	mu      sync.Mutex
	scrolls map[int]*tracker.ScrollTracker
	pending []tracker.Signal
	ctx     context.Context
	paused  bool

	arbiterOpts []arbiter.Option
	wg          sync.WaitGroup
}

type Option func(*Engine)

func WithSummarizer(s arbiter.Summarizer) Option {
	return func(e *Engine) {
		e.summarizer = s
		e.arbiterOpts = append(e.arbiterOpts, arbiter.WithSummarizer(s))
	}
}

func WithVerdicts(v arbiter.Verdicts) Option {
	return func(e *Engine) { e.arbiterOpts = append(e.arbiterOpts, arbiter.WithVerdicts(v)) }
}

func WithBrowser(b Browser) Option {
	return func(e *Engine) { e.browser = b }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithArbiterOptions passes extra options to the arbiter, e.g. a catalog.
func WithArbiterOptions(opts ...arbiter.Option) Option {
	return func(e *Engine) { e.arbiterOpts = append(e.arbiterOpts, opts...) }
}

// New creates an engine. presenter receives every nudge the arbiter emits.
func New(cfg *config.Config, sm *state.Manager, st Store, presenter arbiter.Presenter, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg,
		state:   sm,
		store:   st,
		browser: noopBrowser{},
		logger:  slog.Default(),
		now:     time.Now,
		scrolls: make(map[int]*tracker.ScrollTracker),
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(e)
	}

	policy := cfg.Policy
	e.arbiter = arbiter.New(sm, presenter, append([]arbiter.Option{
		arbiter.WithPolicy(arbiter.Policy{
			Cooldown:       policy.Cooldown.Std(),
			VerdictTimeout: policy.VerdictTimeout.Std(),
			MinTabAge:      policy.MinTabAge.Std(),
		}),
		arbiter.WithSettings(st),
		arbiter.WithLocale(cfg.Daemon.Locale),
		arbiter.WithLogger(e.logger),
		arbiter.WithClock(e.now),
	}, e.arbiterOpts...)...)

	e.switching = tracker.NewTabActivityTracker(sm, tracker.TabPolicy{
		Window:    policy.SwitchWindow.Std(),
		Threshold: policy.SwitchThreshold,
		Throttle:  policy.DriftCheckThrottle.Std(),
		Cooldown:  policy.Cooldown.Std(),
	})
	e.absence = tracker.NewAbsenceTracker(sm, policy.AwayTimeout.Std(), policy.Cooldown.Std())
	e.sampler = tracker.NewContextSampler(sm)
	e.scrollPolicy = eval.ScrollPolicy{
		ViewportMultiple:   cfg.Scroll.ViewportMultiple,
		MinRatio:           cfg.Scroll.MinRatio,
		ExpansionThreshold: cfg.Scroll.ExpansionThreshold,
		ExpansionMultiple:  cfg.Scroll.ExpansionMultiple,
	}
	return e
}

func (e *Engine) Arbiter() *arbiter.Arbiter { return e.arbiter }

func (e *Engine) State() *state.Manager { return e.state }

// Run starts the periodic checker and blocks until ctx is cancelled and
// in-flight checks have finished.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()

	interval := e.cfg.Policy.PollInterval.Std()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("engine started", "poll_interval", interval)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine shutting down")
			e.wg.Wait()
			return nil
		case <-ticker.C:
			e.Poll()
		}
	}
}

// Wait blocks until every dispatched signal has been handled.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Poll runs one periodic check against the active tab.
func (e *Engine) Poll() {
	defer e.state.Heartbeat()
	if e.isPaused() {
		return
	}
	now := e.now()

	focus := e.state.Focus()
	tabID, ok := e.state.ActiveTab()
	if focus == nil || !ok {
		return
	}
	if focus.IsOriginTab(tabID) {
		e.state.StampFocusVisit(now)
		return
	}

	if sig, ok := e.absence.Check(tabID, now); ok {
		e.logger.Debug("away from focus tab", "tab", tabID)
		e.dispatch(sig)
		return
	}

	tab, ok := e.state.Tab(tabID)
	if !ok || tab.URL == "" || e.blacklisted(tabID) {
		return
	}
	if sig, ok := e.sampler.Tick(tabID, tab.URL, tab.Title, now); ok {
		e.logger.Debug("periodic context check", "tab", tabID, "url", tab.URL)
		e.dispatch(sig)
	}
}

// Pause stops the periodic checks while the machine sleeps or the screen
// is locked.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
	e.logger.Debug("trackers paused")
}

func (e *Engine) isPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Resume restarts the time-based trackers after the machine was asleep or
// the screen locked, so the pause does not count as time away.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()

	now := e.now()
	if e.state.HasFocus() {
		e.state.StampFocusVisit(now)
	}
	e.sampler.Reset()
	e.resetScrolls(now)
	e.logger.Debug("trackers resumed")
}

func (e *Engine) runContext() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx
}

// dispatch hands a signal to the arbiter without blocking the caller.
func (e *Engine) dispatch(sig tracker.Signal) {
	ctx := e.runContext()
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.handle(ctx, sig)
	}()
}

func (e *Engine) handle(ctx context.Context, sig tracker.Signal) arbiter.Decision {
	d := e.arbiter.HandleSignal(ctx, sig)
	e.logger.Debug("signal handled", "signal", sig.Kind.String(), "tab", sig.TabID, "outcome", d.Outcome.String(), "reason", d.Reason)
	if d.Outcome == arbiter.Delivered {
		e.mu.Lock()
		if t, ok := e.scrolls[sig.TabID]; ok {
			t.SetNudgeVisible(true)
		}
		e.mu.Unlock()
	}
	return d
}

func (e *Engine) resetScrolls(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.scrolls {
		t.Reset(now)
	}
}

// scrollTracker returns the tracker of a tab, creating it. Callers hold e.mu.
func (e *Engine) scrollTracker(tabID int) *tracker.ScrollTracker {
	t, ok := e.scrolls[tabID]
	if !ok {
		t = tracker.NewScrollTracker(tabID, e.scrollPolicy, func(sig tracker.Signal) {
			e.pending = append(e.pending, sig)
		})
		e.scrolls[tabID] = t
	}
	return t
}

type noopBrowser struct{}

func (noopBrowser) ActivateTab(context.Context, int) error { return nil }

func (noopBrowser) CloseTab(context.Context, int) error { return nil }

func (noopBrowser) WarnBlacklisted(context.Context, int, string) error { return nil }
