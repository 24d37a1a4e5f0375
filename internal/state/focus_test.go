package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoarinFerret/FocusWarden/internal/session"
)

func TestStartFocus_ResetsPerSessionState(t *testing.T) {
	m := NewMemoryManager()
	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	m.RecordVisit(session.URLVisit{URL: "https://a.example", Timestamp: now})
	m.UpdateGate(func(g *Gate) {
		g.MarkChecked("https://a.example/")
		g.LastCheckedURL = "https://a.example/"
	})

	s := m.StartFocus(session.FocusSession{Description: "write tests"}, now)

	assert.Equal(t, uint64(1), s.Generation)
	assert.Equal(t, now, s.StartTime)
	assert.Empty(t, m.Visits())

	gate := m.Gate()
	assert.Empty(t, gate.Checked)
	assert.Empty(t, gate.LastCheckedURL)
	assert.Equal(t, now, gate.LastFocusVisit)
}

func TestEndFocus_ClearsCheckedSet(t *testing.T) {
	m := NewMemoryManager()
	now := time.Now()
	m.StartFocus(session.FocusSession{}, now)
	m.UpdateGate(func(g *Gate) { g.MarkChecked("https://example.com/") })

	ended, ok := m.EndFocus()
	require.True(t, ok)
	assert.NotNil(t, ended)
	assert.False(t, m.HasFocus())
	assert.False(t, m.Gate().IsChecked("https://example.com/"))

	_, ok = m.EndFocus()
	assert.False(t, ok, "ending twice is a no-op")
}

func TestUpdateFocus_Generation(t *testing.T) {
	m := NewMemoryManager()
	now := time.Now()

	err := m.UpdateFocus(1, func(*session.FocusSession) {})
	assert.ErrorIs(t, err, ErrNoFocusSession)

	first := m.StartFocus(session.FocusSession{Description: "first"}, now)
	second := m.StartFocus(session.FocusSession{Description: "second"}, now)
	require.NotEqual(t, first.Generation, second.Generation)

	err = m.UpdateFocus(first.Generation, func(s *session.FocusSession) { s.ContentSummary = "stale" })
	assert.ErrorIs(t, err, ErrStaleSession)
	assert.Empty(t, m.Focus().ContentSummary, "a stale summary must not land on the newer session")

	err = m.UpdateFocus(second.Generation, func(s *session.FocusSession) { s.ContentSummary = "fresh" })
	require.NoError(t, err)
	assert.Equal(t, "fresh", m.Focus().ContentSummary)
}

func TestFocus_ReturnsCopy(t *testing.T) {
	m := NewMemoryManager()
	m.StartFocus(session.FocusSession{Keywords: []string{"go"}}, time.Now())

	s := m.Focus()
	s.Keywords[0] = "mutated"
	assert.Equal(t, "go", m.Focus().Keywords[0])
}

func TestSubscribe_Lifecycle(t *testing.T) {
	m := NewMemoryManager()
	var events []Event
	m.Subscribe(func(ev Event, s *session.FocusSession) {
		events = append(events, ev)
		assert.NotNil(t, s)
	})

	m.StartFocus(session.FocusSession{}, time.Now())
	m.EndFocus()

	assert.Equal(t, []Event{SessionStarted, SessionEnded}, events)
}
