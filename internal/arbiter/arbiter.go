// Package arbiter decides whether a drift signal becomes a nudge. It owns no
// state of its own: the throttle gate and the session live in state.Manager.
package arbiter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SoarinFerret/FocusWarden/internal/eval"
	"github.com/SoarinFerret/FocusWarden/internal/session"
	"github.com/SoarinFerret/FocusWarden/internal/state"
	"github.com/SoarinFerret/FocusWarden/internal/tracker"
)

type Policy struct {
	Cooldown       time.Duration
	VerdictTimeout time.Duration
	MinTabAge      time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Cooldown:       30 * time.Second,
		VerdictTimeout: 20 * time.Second,
		MinTabAge:      5 * time.Second,
	}
}

type Arbiter struct {
	state      *state.Manager
	presenter  Presenter
	policy     Policy
	settings   SettingsSource
	locale     string
	summarizer Summarizer
	verdicts   Verdicts
	catalog    *Catalog
	rand       Rand
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

type Option func(*Arbiter)

func WithPolicy(p Policy) Option {
	return func(a *Arbiter) { a.policy = p }
}

func WithSettings(s SettingsSource) Option {
	return func(a *Arbiter) { a.settings = s }
}

func WithLocale(locale string) Option {
	return func(a *Arbiter) { a.locale = locale }
}

func WithSummarizer(s Summarizer) Option {
	return func(a *Arbiter) { a.summarizer = s }
}

func WithVerdicts(v Verdicts) Option {
	return func(a *Arbiter) { a.verdicts = v }
}

func WithCatalog(c *Catalog) Option {
	return func(a *Arbiter) { a.catalog = c }
}

func WithRand(r Rand) Option {
	return func(a *Arbiter) { a.rand = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Arbiter) { a.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(a *Arbiter) { a.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(a *Arbiter) { a.newID = fn }
}

func New(sm *state.Manager, presenter Presenter, opts ...Option) *Arbiter {
	a := &Arbiter{
		state:     sm,
		presenter: presenter,
		policy:    DefaultPolicy(),
		locale:    "en",
		rand:      globalRand{},
		logger:    slog.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.catalog == nil {
		a.catalog = DefaultCatalog()
	}
	return a
}

func (a *Arbiter) Catalog() *Catalog {
	return a.catalog
}

func (a *Arbiter) Locale() string {
	return a.locale
}

// State reports where the arbiter's state machine currently is.
func (a *Arbiter) State() State {
	if !a.state.HasFocus() {
		return Idle
	}
	if a.state.Gate().Checking {
		return Checking
	}
	return Armed
}

// HandleSignal runs one signal through the decision policy. Only the
// verdict and presenter calls block.
func (a *Arbiter) HandleSignal(ctx context.Context, sig tracker.Signal) Decision {
	now := sig.At
	if now.IsZero() {
		now = a.now()
	}
	log := a.logger.With("signal", sig.Kind.String(), "tab", sig.TabID)

	focus := a.state.Focus()
	if focus == nil {
		return Decision{Outcome: Rejected, Reason: "no focus session"}
	}
	if sig.Kind.NeedsVerdict() && a.state.Gate().Checking {
		return Decision{Outcome: Dropped, Reason: "check in flight"}
	}
	if !a.state.CooldownElapsed(now, a.policy.Cooldown) {
		return Decision{Outcome: Rejected, Reason: "cooldown"}
	}

	switch sig.Kind {
	case tracker.Absence:
		return a.emit(ctx, sig, focus, CategoryFocusTabAway, a.catalog.Reason(a.locale, "focusTabAway"), now)

	case tracker.DoomScroll:
		a.state.EnsureTabOpened(sig.TabID, now)
		opened, known := a.state.TabOpenedAt(sig.TabID)
		if !eval.ShouldNudgeTab(opened, known, now, a.policy.MinTabAge) {
			return Decision{Outcome: Rejected, Reason: "tab too new"}
		}
		return a.emit(ctx, sig, focus, CategoryDoomScroll, a.catalog.Reason(a.locale, "doomScroll"), now)

	case tracker.RapidSwitch, tracker.StableContext:
		gen, ok := a.state.BeginCheck()
		if !ok {
			return Decision{Outcome: Dropped, Reason: "check in flight"}
		}
		verdict := a.check(ctx, sig, focus, log)
		a.state.EndCheck(gen, a.now(), sig.Kind == tracker.RapidSwitch)

		if a.state.Generation() != focus.Generation {
			log.Debug("discarding verdict for an ended session")
			return Decision{Outcome: Stale, Reason: verdict.Reason}
		}
		if !verdict.IsDrifted {
			log.Debug("not drifted", "reason", verdict.Reason)
			return Decision{Outcome: NotDrifted, Reason: verdict.Reason}
		}

		category := CategoryStagnantTab
		if sig.Kind == tracker.RapidSwitch {
			category = CategoryRapidSwitch
		}
		return a.emit(ctx, sig, focus, category, verdict.Reason, now)
	}

	return Decision{Outcome: Rejected, Reason: "unknown signal"}
}

// check obtains a verdict for a RapidSwitch or StableContext signal. It
// never fails: collaborator errors fall back to the title heuristic.
func (a *Arbiter) check(ctx context.Context, sig tracker.Signal, focus *session.FocusSession, log *slog.Logger) Verdict {
	title := sig.Title
	if title == "" {
		if tab, ok := a.state.Tab(sig.TabID); ok {
			title = tab.Title
		}
	}

	visits := sig.Visits
	switch sig.Kind {
	case tracker.StableContext:
		if focus.IsResearchPage(sig.URL) {
			return Verdict{IsDrifted: false, Reason: a.catalog.Reason(a.locale, "researchPage")}
		}
	case tracker.RapidSwitch:
		visits = nil
		for _, v := range sig.Visits {
			if !focus.IsResearchPage(v.URL) {
				visits = append(visits, v)
			}
		}
		if len(visits) == 0 {
			return Verdict{IsDrifted: false, Reason: a.catalog.Reason(a.locale, "researchPage")}
		}
	}

	if !a.aiEnabled(log) || a.verdicts == nil {
		return a.titleFallback(focus, title)
	}

	ctx, cancel := context.WithTimeout(ctx, a.policy.VerdictTimeout)
	defer cancel()
	language := eval.ResponseLanguage(a.locale)

	var (
		verdict Verdict
		err     error
	)
	switch sig.Kind {
	case tracker.StableContext:
		var content string
		content, err = a.tabSummary(ctx, sig.TabID)
		if err == nil {
			verdict, err = a.verdicts.CheckContentSimilarity(ctx, ContentInput{
				Session:  focus,
				Title:    title,
				Content:  content,
				URL:      sig.URL,
				Language: language,
			})
		}
	case tracker.RapidSwitch:
		var summary string
		summary, err = a.batchSummary(ctx, visits)
		if err == nil {
			verdict, err = a.verdicts.AnalyzeTabSwitching(ctx, focus, summary, language)
		}
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("verdict timed out", "timeout", a.policy.VerdictTimeout)
		} else {
			log.Warn("verdict failed", "err", err)
		}
		return a.titleFallback(focus, title)
	}
	return verdict
}

func (a *Arbiter) tabSummary(ctx context.Context, tabID int) (string, error) {
	if a.summarizer == nil {
		return "", nil
	}
	return a.summarizer.TabSummary(ctx, tabID)
}

func (a *Arbiter) batchSummary(ctx context.Context, visits []session.URLVisit) (string, error) {
	if a.summarizer == nil {
		return "", nil
	}
	return a.summarizer.BatchSummary(ctx, visits)
}

func (a *Arbiter) aiEnabled(log *slog.Logger) bool {
	if a.settings == nil {
		return false
	}
	s, err := a.settings.Settings()
	if err != nil {
		log.Warn("failed to read settings", "err", err)
		return false
	}
	return s.AIEnabled
}

// titleFallback compares the focus title with the current page title.
func (a *Arbiter) titleFallback(focus *session.FocusSession, title string) Verdict {
	focusTitle := focus.CompareTitle()
	if focusTitle == "" || title == "" {
		return Verdict{IsDrifted: false, Reason: a.catalog.Reason(a.locale, "noTitle")}
	}
	if eval.TitlesRelated(focusTitle, title) {
		return Verdict{IsDrifted: false}
	}
	return Verdict{IsDrifted: true, Reason: a.catalog.Reason(a.locale, "titleMismatch")}
}

// emit reserves the delivery slot, presents the nudge and, on delivery,
// starts the cooldown.
func (a *Arbiter) emit(ctx context.Context, sig tracker.Signal, focus *session.FocusSession, category Category, reason string, now time.Time) Decision {
	if !a.state.ReserveNudge(now, a.policy.Cooldown) {
		return Decision{Outcome: Rejected, Reason: "cooldown"}
	}

	msg := a.catalog.Message(a.locale, category, a.rand)
	n := Nudge{
		ID:       a.newID(),
		Category: category,
		Title:    msg.Title,
		Body:     msg.Body,
		Reason:   reason,
		Focus: FocusInfo{
			Title:       focus.CompareTitle(),
			DisplayName: focus.DisplayTitle(),
			URL:         focus.PageURL,
			FaviconURL:  focus.FaviconURL,
			OriginTabID: focus.OriginTabID,
		},
		TabID: sig.TabID,
		At:    now,
	}

	delivered := false
	if a.presenter != nil {
		ok, err := a.presenter.Present(ctx, sig.TabID, n)
		if err != nil {
			a.logger.Warn("failed to present nudge", "tab", sig.TabID, "category", category, "err", err)
		}
		delivered = ok && err == nil
	}
	a.state.CompleteNudge(delivered, now)

	if !delivered {
		return Decision{Outcome: Undelivered, Reason: reason, Nudge: &n}
	}
	if sig.Kind == tracker.Absence {
		a.state.StampFocusVisit(now)
	}
	a.logger.Info("nudge delivered", "tab", sig.TabID, "category", category, "reason", reason)
	return Decision{Outcome: Delivered, Reason: reason, Nudge: &n}
}
