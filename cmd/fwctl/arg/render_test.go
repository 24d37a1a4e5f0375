package arg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/SoarinFerret/FocusWarden/internal/engine"
	"github.com/SoarinFerret/FocusWarden/internal/session"
)

func TestRenderStatus(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		out := renderStatus(engine.Status{State: "idle"})
		assert.Contains(t, out, "No focus session")
	})

	t.Run("active", func(t *testing.T) {
		out := renderStatus(engine.Status{
			Active: true,
			State:  "focused",
			Focus: &session.FocusSession{
				Description: "Write the quarterly report",
				Keywords:    []string{"report", "q3"},
				PageURL:     "https://docs.example.com/report",
			},
			Elapsed:     95 * time.Second,
			RecentPages: 3,
		})
		assert.Contains(t, out, "Write the quarterly report")
		assert.Contains(t, out, "focused")
		assert.Contains(t, out, "1m35s")
		assert.Contains(t, out, "report, q3")
		assert.Contains(t, out, "https://docs.example.com/report")
		assert.NotContains(t, out, "Last nudge")
	})
}

func TestRenderTasks(t *testing.T) {
	assert.Contains(t, renderTasks(nil, 7), "Nothing completed yet")

	done := time.Date(2026, 3, 2, 14, 0, 0, 0, time.Local)
	out := renderTasks([]session.CompletedTask{
		{TaskName: "Read the RFC", CompletedAt: done, FocusDuration: 25 * time.Minute},
		{TaskName: "Fix the build", CompletedAt: done.Add(time.Hour), FocusDuration: 50 * time.Minute},
	}, 3)
	assert.Contains(t, out, "last 3 days")
	assert.Contains(t, out, "Read the RFC")
	assert.Contains(t, out, "25m0s")
	assert.Contains(t, out, "1h15m0s")
}
