package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoarinFerret/FocusWarden/internal/session"
)

func TestContextSampler_StableDwell(t *testing.T) {
	sm := newFocusedState(t, t0)
	c := NewContextSampler(sm)
	url := "https://news.example.com/story?id=1"

	_, ok := c.Tick(2, url, "Story", t0.Add(10*time.Second))
	assert.False(t, ok, "first sighting only remembers the URL")

	sig, ok := c.Tick(2, url+"#comments", "Story", t0.Add(20*time.Second))
	require.True(t, ok)
	assert.Equal(t, StableContext, sig.Kind)
	assert.Equal(t, "Story", sig.Title)

	_, ok = c.Tick(2, url, "Story", t0.Add(30*time.Second))
	assert.False(t, ok, "a page is checked at most once per session")
}

func TestContextSampler_ChangingURLsNeverSettle(t *testing.T) {
	sm := newFocusedState(t, t0)
	c := NewContextSampler(sm)

	for i, u := range []string{"https://a.example/", "https://b.example/", "https://a.example/"} {
		_, ok := c.Tick(2, u, "", t0.Add(time.Duration(i)*10*time.Second))
		assert.False(t, ok)
	}
}

func TestContextSampler_ResetOnActivation(t *testing.T) {
	sm := newFocusedState(t, t0)
	c := NewContextSampler(sm)

	c.Tick(2, "https://a.example/", "", t0)
	c.Reset()
	_, ok := c.Tick(2, "https://a.example/", "", t0.Add(10*time.Second))
	assert.False(t, ok)
}

func TestContextSampler_EndingSessionClearsChecked(t *testing.T) {
	sm := newFocusedState(t, t0)
	c := NewContextSampler(sm)
	url := "https://a.example/article"

	c.Tick(2, url, "", t0)
	_, ok := c.Tick(2, url, "", t0.Add(10*time.Second))
	require.True(t, ok)

	sm.EndFocus()
	sm.StartFocus(session.FocusSession{PageURL: focusURL}, t0.Add(time.Minute))

	c.Tick(2, url, "", t0.Add(70*time.Second))
	_, ok = c.Tick(2, url, "", t0.Add(80*time.Second))
	assert.True(t, ok, "a URL checked in the previous session may be checked again")
}
