package verdict

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoarinFerret/FocusWarden/internal/arbiter"
	"github.com/SoarinFerret/FocusWarden/internal/session"
)

type fakeModel struct {
	available bool
	reply     string
	err       error
	system    string
	prompt    string
}

func (f *fakeModel) Available(context.Context) bool { return f.available }

func (f *fakeModel) Prompt(_ context.Context, system, prompt string) (string, error) {
	f.system, f.prompt = system, prompt
	return f.reply, f.err
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		drifted bool
		reason  string
	}{
		{"structured drifted", "VERDICT: DRIFTED\nREASON: Watching cat videos", true, "Watching cat videos"},
		{"structured focused", "VERDICT: FOCUSED\nREASON: Go docs match the keyword", false, "Go docs match the keyword"},
		{"lower case", "verdict: drifted\nreason: off topic", true, "off topic"},
		{"bare word", "DRIFTED: social media feed", true, "social media feed"},
		{"bare focused", "FOCUSED - reading the docs", false, "- reading the docs"},
		{"echoed format line", "VERDICT: FOCUSED\nThis is not DRIFTED at all", false, "This is not  at all"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Parse(tt.in)
			assert.Equal(t, tt.drifted, v.IsDrifted)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestChecker_CheckContentSimilarity(t *testing.T) {
	m := &fakeModel{available: true, reply: "VERDICT: DRIFTED\nREASON: unrelated"}
	c := New(m)

	s := &session.FocusSession{
		PageTitle:   "Go concurrency patterns",
		Description: "write the worker pool",
		Keywords:    []string{"golang", "channels"},
		ResearchPages: []session.ResearchPage{
			{URL: "https://go.dev/blog", Title: "Go blog", Summary: "pipelines"},
		},
	}
	v, err := c.CheckContentSimilarity(context.Background(), arbiter.ContentInput{
		Session:  s,
		Title:    "Funny cats",
		Content:  "cats",
		Language: "English",
	})
	require.NoError(t, err)
	assert.Equal(t, arbiter.Verdict{IsDrifted: true, Reason: "unrelated"}, v)

	assert.Contains(t, m.system, "must be written in English")
	assert.Contains(t, m.prompt, `Focus Session started on "Go concurrency patterns"`)
	assert.Contains(t, m.prompt, "Focus keywords: golang, channels")
	assert.Contains(t, m.prompt, `- "Go blog": pipelines`)
	assert.Contains(t, m.prompt, `Current page: "Funny cats"`)
	assert.Contains(t, m.prompt, "VERDICT: FOCUSED or DRIFTED")
}

func TestChecker_Errors(t *testing.T) {
	s := &session.FocusSession{PageTitle: "x"}

	c := New(&fakeModel{available: false})
	_, err := c.CheckContentSimilarity(context.Background(), arbiter.ContentInput{Session: s})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = c.AnalyzeTabSwitching(context.Background(), s, "", "English")
	assert.ErrorIs(t, err, ErrUnavailable)

	boom := errors.New("boom")
	c = New(&fakeModel{available: true, err: boom})
	_, err = c.AnalyzeTabSwitching(context.Background(), s, "Title: a\n\n", "English")
	assert.ErrorIs(t, err, boom)

	_, err = c.CheckContentSimilarity(context.Background(), arbiter.ContentInput{})
	assert.Error(t, err)
}

func TestChecker_AnalyzeTabSwitching(t *testing.T) {
	m := &fakeModel{available: true, reply: "VERDICT: FOCUSED\nREASON: 都是文档"}
	c := New(m)

	s := &session.FocusSession{Description: "learn rust"}
	v, err := c.AnalyzeTabSwitching(context.Background(), s, "Title: The Book\n\n", "Chinese (简体中文)")
	require.NoError(t, err)
	assert.False(t, v.IsDrifted)
	assert.Equal(t, "都是文档", v.Reason)

	assert.Contains(t, m.prompt, `Focus Goal: "learn rust"`)
	assert.Contains(t, m.prompt, "Recent browsing activity (past minute):\nTitle: The Book")
	assert.Contains(t, m.prompt, "When in doubt, choose FOCUSED.")
	assert.Contains(t, m.system, "Chinese (简体中文)")
}
