package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoarinFerret/FocusWarden/internal/arbiter"
	"github.com/SoarinFerret/FocusWarden/internal/config"
	"github.com/SoarinFerret/FocusWarden/internal/eval"
	"github.com/SoarinFerret/FocusWarden/internal/session"
	"github.com/SoarinFerret/FocusWarden/internal/state"
	"github.com/SoarinFerret/FocusWarden/internal/store"
	"github.com/SoarinFerret/FocusWarden/internal/tracker"
)

var t0 = time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeStore struct {
	mu        sync.Mutex
	ai        bool
	blacklist []string
	whitelist []string
	bypassed  map[int][]string
	keywords  []string
	tasks     []session.CompletedTask
	listErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{bypassed: make(map[int][]string)}
}

func (s *fakeStore) Settings() (session.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return session.Settings{AIEnabled: s.ai}, nil
}

func (s *fakeStore) Matches(list store.List, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return false, s.listErr
	}
	if list == store.Whitelist {
		return eval.MatchDomain(url, s.whitelist), nil
	}
	return eval.MatchDomain(url, s.blacklist), nil
}

func (s *fakeStore) IsBypassed(tabID int, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.bypassed[tabID] {
		if u == url {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) AddBypass(tabID int, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bypassed[tabID] = append(s.bypassed[tabID], url)
	return nil
}

func (s *fakeStore) RemoveBypasses(tabID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bypassed, tabID)
	return nil
}

func (s *fakeStore) AddKeywords(keywords []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywords = append(s.keywords, keywords...)
	return nil
}

func (s *fakeStore) RecordCompletedTask(name string, d time.Duration) (session.CompletedTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := session.CompletedTask{ID: "task-1", TaskName: name, CompletedAt: t0, FocusDuration: d}
	s.tasks = append(s.tasks, task)
	return task, nil
}

type fakeBrowser struct {
	mu          sync.Mutex
	activated   []int
	closed      []int
	warned      []int
	activateErr error
}

func (b *fakeBrowser) ActivateTab(_ context.Context, tabID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activated = append(b.activated, tabID)
	return b.activateErr
}

func (b *fakeBrowser) CloseTab(_ context.Context, tabID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = append(b.closed, tabID)
	return nil
}

func (b *fakeBrowser) WarnBlacklisted(_ context.Context, tabID int, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.warned = append(b.warned, tabID)
	return nil
}

type recordingPresenter struct {
	mu     sync.Mutex
	nudges []arbiter.Nudge
}

func (p *recordingPresenter) Present(_ context.Context, _ int, n arbiter.Nudge) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nudges = append(p.nudges, n)
	return true, nil
}

func (p *recordingPresenter) all() []arbiter.Nudge {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]arbiter.Nudge(nil), p.nudges...)
}

type fakeSummarizer struct {
	release chan struct{}
	summary string
}

func (f *fakeSummarizer) TabSummary(ctx context.Context, _ int) (string, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.summary, nil
}

func (f *fakeSummarizer) BatchSummary(context.Context, []session.URLVisit) (string, error) {
	return "", nil
}

type harness struct {
	engine    *Engine
	state     *state.Manager
	store     *fakeStore
	browser   *fakeBrowser
	presenter *recordingPresenter
	clock     *clock
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		state:     state.NewMemoryManager(),
		store:     newFakeStore(),
		browser:   &fakeBrowser{},
		presenter: &recordingPresenter{},
		clock:     &clock{now: t0},
	}
	cfg := config.Default()
	cfg.Daemon.Locale = "en"
	opts = append([]Option{WithBrowser(h.browser), WithClock(h.clock.Now)}, opts...)
	h.engine = New(cfg, h.state, h.store, h.presenter, opts...)
	return h
}

func intPtr(i int) *int { return &i }

func (h *harness) startOn(tabID int) *session.FocusSession {
	return h.engine.StartFocus(context.Background(), StartRequest{
		TabID:     intPtr(tabID),
		PageTitle: "Learning Golang Concurrency Patterns",
		PageURL:   "https://go.dev/blog/pipelines",
	})
}

func TestPoll_OriginTabStampsVisit(t *testing.T) {
	h := newHarness(t)
	h.startOn(1)

	h.clock.Advance(5 * time.Minute)
	h.engine.Poll()

	assert.Equal(t, t0.Add(5*time.Minute), h.state.Gate().LastFocusVisit)
	assert.Empty(t, h.presenter.all())
}

func TestPoll_AbsenceNudges(t *testing.T) {
	h := newHarness(t)
	h.startOn(1)
	h.engine.TabActivated(2, "https://news.example.com/", "Latest headlines")

	h.clock.Advance(11 * time.Minute)
	h.engine.Poll()
	h.engine.Wait()

	nudges := h.presenter.all()
	require.Len(t, nudges, 1)
	assert.Equal(t, arbiter.CategoryFocusTabAway, nudges[0].Category)
	assert.Equal(t, 2, nudges[0].TabID)
	assert.Equal(t, t0.Add(11*time.Minute), h.state.Gate().LastFocusVisit, "delivery rearms absence")
}

func TestPoll_SamplerFiresOnSecondTick(t *testing.T) {
	h := newHarness(t)
	h.startOn(1)
	h.engine.TabActivated(2, "https://videos.example.com/watch", "Funny Cats Compilation Forever")

	h.clock.Advance(10 * time.Second)
	h.engine.Poll()
	h.engine.Wait()
	assert.Empty(t, h.presenter.all())

	h.clock.Advance(10 * time.Second)
	h.engine.Poll()
	h.engine.Wait()

	nudges := h.presenter.all()
	require.Len(t, nudges, 1)
	assert.Equal(t, arbiter.CategoryStagnantTab, nudges[0].Category)

	h.clock.Advance(time.Minute)
	h.engine.Poll()
	h.engine.Wait()
	assert.Len(t, h.presenter.all(), 1, "a page is sampled once per session")
}

func TestPoll_BlacklistedPageIsSkipped(t *testing.T) {
	h := newHarness(t)
	h.store.blacklist = []string{"videos.example.com"}
	h.startOn(1)
	h.engine.TabActivated(2, "https://videos.example.com/watch", "Funny Cats Compilation Forever")

	for range 3 {
		h.clock.Advance(10 * time.Second)
		h.engine.Poll()
	}
	h.engine.Wait()
	assert.Empty(t, h.presenter.all())
}

func TestTabActivated_RapidSwitching(t *testing.T) {
	h := newHarness(t)
	h.startOn(1)

	hosts := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel", "india", "juliet"}
	for i, host := range hosts {
		h.clock.Advance(2 * time.Second)
		h.engine.TabActivated(10+i, "https://"+host+".example.com/", "Shopping deals "+host)
		if i < len(hosts)-1 {
			h.engine.Wait()
			assert.Empty(t, h.presenter.all(), "below the threshold after %d sites", i+1)
		}
	}
	h.engine.Wait()

	nudges := h.presenter.all()
	require.Len(t, nudges, 1)
	assert.Equal(t, arbiter.CategoryRapidSwitch, nudges[0].Category)
	assert.False(t, h.state.Gate().LastDriftCheck.IsZero())
}

func TestBlacklistedPageSkipsDriftSignals(t *testing.T) {
	doom := []tracker.ScrollSample{
		{Kind: tracker.SampleFrame, Offset: 0, Viewport: 1000, At: t0},
		{Kind: tracker.SampleFrame, Offset: 6000, Viewport: 1000, At: t0.Add(10 * time.Second)},
	}

	t.Run("rapid switching", func(t *testing.T) {
		h := newHarness(t)
		h.store.blacklist = []string{"juliet.example.com"}
		h.startOn(1)

		hosts := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel", "india", "juliet"}
		for i, host := range hosts {
			h.clock.Advance(2 * time.Second)
			h.engine.TabActivated(10+i, "https://"+host+".example.com/", "Shopping deals "+host)
		}
		h.engine.Wait()
		assert.Empty(t, h.presenter.all())
		assert.True(t, h.state.Gate().LastDriftCheck.IsZero(), "no analysis ran")
	})

	t.Run("scroll samples", func(t *testing.T) {
		h := newHarness(t)
		h.store.blacklist = []string{"videos.example.com"}
		h.startOn(1)
		h.engine.TabActivated(2, "https://videos.example.com/watch", "Funny Cats Compilation Forever")

		assert.Equal(t, 0, h.engine.ScrollSamples(2, doom))
		h.engine.Wait()
		assert.Empty(t, h.presenter.all())
	})

	t.Run("should nudge", func(t *testing.T) {
		h := newHarness(t)
		h.store.blacklist = []string{"videos.example.com"}
		h.startOn(1)
		h.engine.TabActivated(2, "https://videos.example.com/watch", "Funny Cats Compilation Forever")

		d := h.engine.ShouldNudge(context.Background(), 2)
		assert.Equal(t, arbiter.Rejected, d.Outcome)
		assert.Equal(t, "blacklisted", d.Reason)
		assert.Empty(t, h.presenter.all())
	})

	t.Run("bypassed page is evaluated again", func(t *testing.T) {
		h := newHarness(t)
		h.store.blacklist = []string{"videos.example.com"}
		h.startOn(1)
		h.engine.TabActivated(2, "https://videos.example.com/watch", "Funny Cats Compilation Forever")
		require.NoError(t, h.engine.BypassBlacklist(2, "https://videos.example.com/watch"))

		assert.Equal(t, 1, h.engine.ScrollSamples(2, doom))
		h.engine.Wait()
		assert.Len(t, h.presenter.all(), 1)
	})
}

func TestTabRemoved(t *testing.T) {
	h := newHarness(t)
	h.startOn(1)
	require.NoError(t, h.engine.BypassBlacklist(2, "https://videos.example.com/"))

	h.engine.TabRemoved(2)
	assert.True(t, h.state.HasFocus())
	bypassed, _ := h.store.IsBypassed(2, "https://videos.example.com/")
	assert.False(t, bypassed)

	h.engine.TabRemoved(1)
	assert.False(t, h.state.HasFocus(), "closing the origin tab ends the session")
}

func TestScrollSamples_DoomScroll(t *testing.T) {
	h := newHarness(t)
	h.startOn(1)
	h.engine.TabActivated(2, "https://feed.example.com/", "Endless feed")

	samples := []tracker.ScrollSample{
		{Kind: tracker.SampleFrame, Offset: 0, Viewport: 1000, At: t0},
		{Kind: tracker.SampleFrame, Offset: 6000, Viewport: 1000, At: t0.Add(10 * time.Second)},
	}
	assert.Equal(t, 1, h.engine.ScrollSamples(2, samples))
	h.engine.Wait()

	nudges := h.presenter.all()
	require.Len(t, nudges, 1)
	assert.Equal(t, arbiter.CategoryDoomScroll, nudges[0].Category)

	more := []tracker.ScrollSample{
		{Kind: tracker.SampleFrame, Offset: 12000, Viewport: 1000, At: t0.Add(12 * time.Second)},
	}
	assert.Equal(t, 0, h.engine.ScrollSamples(2, more), "no re-fire while the nudge is showing")

	st, ok := h.engine.ScrollState(2)
	require.True(t, ok)
	assert.Equal(t, float64(12000), st.Distance)
}

func TestScrollSamples_NoViewportStaysQuiet(t *testing.T) {
	h := newHarness(t)
	h.startOn(1)
	h.engine.TabActivated(3, "https://feed.example.com/", "Endless feed")

	samples := []tracker.ScrollSample{
		{Kind: tracker.SampleFrame, Offset: 0, At: t0},
		{Kind: tracker.SampleFrame, Offset: 120, At: t0.Add(time.Second)},
	}
	assert.Equal(t, 0, h.engine.ScrollSamples(3, samples))
	h.engine.Wait()
	assert.Empty(t, h.presenter.all())
}

func TestScrollSamples_NoFocus(t *testing.T) {
	h := newHarness(t)
	samples := []tracker.ScrollSample{{Offset: 0, Viewport: 1000}}
	assert.Equal(t, 0, h.engine.ScrollSamples(2, samples))
	_, ok := h.engine.ScrollState(2)
	assert.False(t, ok)
}

func TestShouldNudge(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, arbiter.Rejected, h.engine.ShouldNudge(context.Background(), 2).Outcome)

	h.startOn(1)
	d := h.engine.ShouldNudge(context.Background(), 2)
	assert.Equal(t, arbiter.Delivered, d.Outcome)
	require.NotNil(t, d.Nudge)
	assert.Equal(t, arbiter.CategoryDoomScroll, d.Nudge.Category)

	assert.Equal(t, arbiter.Rejected, h.engine.ShouldNudge(context.Background(), 2).Outcome)
}

func TestNudgeChoice(t *testing.T) {
	tests := []struct {
		name   string
		choice arbiter.Choice
		check  func(t *testing.T, h *harness, err error)
	}{
		{
			name:   "invalid",
			choice: "snooze",
			check: func(t *testing.T, h *harness, err error) {
				assert.ErrorIs(t, err, ErrInvalidChoice)
			},
		},
		{
			name:   "dismiss starts the cooldown",
			choice: arbiter.ChoiceDismiss,
			check: func(t *testing.T, h *harness, err error) {
				require.NoError(t, err)
				assert.Equal(t, t0, h.state.Gate().LastNudge)
			},
		},
		{
			name:   "mark research",
			choice: arbiter.ChoiceMarkResearch,
			check: func(t *testing.T, h *harness, err error) {
				require.NoError(t, err)
				focus := h.state.Focus()
				require.Len(t, focus.ResearchPages, 1)
				assert.Equal(t, "Untitled", focus.ResearchPages[0].Title)
				assert.Equal(t, "page digest", focus.ResearchPages[0].Summary)
				assert.Equal(t, t0, h.state.Gate().LastNudge)
			},
		},
		{
			name:   "return to focus closes the tab",
			choice: arbiter.ChoiceReturnToFocus,
			check: func(t *testing.T, h *harness, err error) {
				require.NoError(t, err)
				assert.Equal(t, []int{1}, h.browser.activated)
				assert.Equal(t, []int{2}, h.browser.closed)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, WithSummarizer(&fakeSummarizer{summary: "page digest"}))
			h.startOn(1)
			err := h.engine.NudgeChoice(context.Background(), 2, tt.choice, "https://docs.example.com/page", "")
			tt.check(t, h, err)
		})
	}
}

func TestStartFocus(t *testing.T) {
	h := newHarness(t, WithSummarizer(&fakeSummarizer{summary: "about pipelines"}))
	h.store.ai = true
	h.store.blacklist = []string{"videos.example.com"}
	h.state.UpdateTab(3, "https://videos.example.com/watch", "Cats", "")
	h.state.UpdateTab(4, "https://docs.example.com/", "Docs", "")

	started := h.engine.StartFocus(context.Background(), StartRequest{
		TabID:     intPtr(1),
		PageTitle: "Pipelines",
		PageURL:   "https://go.dev/blog/pipelines",
		Keywords:  []string{" golang ", "", "channels"},
	})
	h.engine.Wait()

	assert.Equal(t, []string{"golang", "channels"}, started.Keywords)
	assert.Equal(t, []string{"golang", "channels"}, h.store.keywords)
	assert.Equal(t, []int{3}, h.browser.warned)

	active, ok := h.state.ActiveTab()
	require.True(t, ok)
	assert.Equal(t, 1, active)
	assert.Equal(t, "about pipelines", h.state.Focus().ContentSummary)
}

func TestStartFocus_SummaryDroppedForReplacedSession(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, WithSummarizer(&fakeSummarizer{summary: "stale", release: release}))
	h.store.ai = true

	h.startOn(1)
	second := h.engine.StartFocus(context.Background(), StartRequest{Description: "write the report"})
	close(release)
	h.engine.Wait()

	focus := h.state.Focus()
	require.NotNil(t, focus)
	assert.Equal(t, second.Generation, focus.Generation)
	assert.Empty(t, focus.ContentSummary)
}

func TestStartFocus_NoSummaryWithoutAI(t *testing.T) {
	h := newHarness(t, WithSummarizer(&fakeSummarizer{summary: "unused"}))
	h.startOn(1)
	h.engine.Wait()
	assert.Empty(t, h.state.Focus().ContentSummary)
}

func TestCheckBlacklist(t *testing.T) {
	const url = "https://videos.example.com/watch"

	tests := []struct {
		name      string
		setup     func(h *harness)
		url       string
		want      bool
		wantCause string
	}{
		{"empty url", func(h *harness) { h.startOn(1) }, "", false, ""},
		{"no focus", func(h *harness) {}, url, false, "no_focus"},
		{"bypassed", func(h *harness) {
			h.startOn(1)
			h.store.AddBypass(2, url)
		}, url, false, "bypassed"},
		{"whitelisted", func(h *harness) {
			h.startOn(1)
			h.store.whitelist = []string{"videos.example.com"}
		}, url, false, "whitelisted"},
		{"blacklisted", func(h *harness) { h.startOn(1) }, url, true, ""},
		{"store error", func(h *harness) {
			h.startOn(1)
			h.store.listErr = errors.New("disk on fire")
		}, url, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.store.blacklist = []string{"videos.example.com"}
			tt.setup(h)
			got, cause := h.engine.CheckBlacklist(2, tt.url)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCause, cause)
		})
	}
}

func TestReturnToFocus(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		h := newHarness(t)
		assert.ErrorIs(t, h.engine.ReturnToFocus(context.Background()), state.ErrNoFocusSession)
	})

	t.Run("origin tab gone", func(t *testing.T) {
		h := newHarness(t)
		h.startOn(1)
		h.state.TabClosed(1)
		assert.ErrorIs(t, h.engine.ReturnToFocus(context.Background()), ErrOriginTabClosed)
		assert.False(t, h.state.HasFocus())
	})

	t.Run("activation fails", func(t *testing.T) {
		h := newHarness(t)
		h.browser.activateErr = errors.New("no such target")
		h.startOn(1)
		assert.ErrorIs(t, h.engine.ReturnToFocus(context.Background()), ErrOriginTabClosed)
		assert.False(t, h.state.HasFocus())
	})

	t.Run("activates origin", func(t *testing.T) {
		h := newHarness(t)
		h.startOn(1)
		require.NoError(t, h.engine.ReturnToFocus(context.Background()))
		assert.Equal(t, []int{1}, h.browser.activated)
	})
}

func TestCompleteFocus(t *testing.T) {
	h := newHarness(t)

	_, ok, err := h.engine.CompleteFocus()
	require.NoError(t, err)
	assert.False(t, ok)

	h.startOn(1)
	h.clock.Advance(25 * time.Minute)
	task, ok, err := h.engine.CompleteFocus()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Learning Golang Concurrency Patterns", task.TaskName)
	assert.Equal(t, 25*time.Minute, task.FocusDuration)
	assert.False(t, h.state.HasFocus())
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "idle", h.engine.Status().State)

	h.startOn(1)
	h.clock.Advance(time.Minute)
	st := h.engine.Status()
	assert.True(t, st.Active)
	assert.Equal(t, time.Minute, st.Elapsed)
	require.NotNil(t, st.ActiveTab)
	assert.Equal(t, 1, *st.ActiveTab)
}

func TestPauseResume(t *testing.T) {
	h := newHarness(t)
	h.startOn(1)
	h.engine.TabActivated(2, "https://news.example.com/", "Latest headlines")

	h.engine.Pause()
	h.clock.Advance(time.Hour)
	h.engine.Poll()
	h.engine.Wait()
	assert.Empty(t, h.presenter.all(), "no checks while paused")

	h.engine.Resume()
	assert.Equal(t, t0.Add(time.Hour), h.state.Gate().LastFocusVisit, "the pause is not time away")
	h.engine.Poll()
	h.engine.Wait()
	assert.Empty(t, h.presenter.all())
}
