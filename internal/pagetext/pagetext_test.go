package pagetext

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoarinFerret/FocusWarden/internal/session"
)

func TestExtract(t *testing.T) {
	page, err := ExtractString(`<!doctype html>
<html><head><title> Go Tour </title><style>body{color:red}</style></head>
<body>
  <h1>Welcome</h1>
  <script>alert("x")</script>
  <p>Hello,
     world.</p>
  <noscript>enable js</noscript>
  <div style="display: none">secret</div>
  <div hidden>also secret</div>
  <template><p>tmpl</p></template>
  <p>Bye</p>
</body></html>`)
	require.NoError(t, err)

	assert.Equal(t, "Go Tour", page.Title)
	assert.Equal(t, "Welcome Hello, world. Bye", page.Text)
}

func TestExtract_Truncates(t *testing.T) {
	page, err := ExtractString("<p>" + strings.Repeat("ab ", 3000) + "</p>")
	require.NoError(t, err)
	assert.Len(t, []rune(page.Text), MaxText)
}

type textSource map[int]string

func (s textSource) PageText(_ context.Context, id int) (string, error) {
	text, ok := s[id]
	if !ok {
		return "", errors.New("no such tab")
	}
	return text, nil
}

type stubModel struct {
	available bool
	reply     string
	err       error
	calls     int
}

func (m *stubModel) Available(context.Context) bool { return m.available }

func (m *stubModel) Prompt(context.Context, string, string) (string, error) {
	m.calls++
	return m.reply, m.err
}

func TestSummarizer_TabSummary(t *testing.T) {
	long := strings.Repeat("x", 900)
	src := textSource{1: long, 2: "   "}

	tests := []struct {
		name  string
		model *stubModel
		tab   int
		want  string
	}{
		{"no model uses raw prefix", nil, 1, long[:rawDigest]},
		{"unavailable model uses raw prefix", &stubModel{}, 1, long[:rawDigest]},
		{"model summary", &stubModel{available: true, reply: "short"}, 1, "short"},
		{"model error uses raw prefix", &stubModel{available: true, err: errors.New("x")}, 1, long[:rawDigest]},
		{"empty text is no content", &stubModel{available: true, reply: "unused"}, 2, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s *Summarizer
			if tt.model == nil {
				s = NewSummarizer(src, nil, nil)
			} else {
				s = NewSummarizer(src, tt.model, nil)
			}
			got, err := s.TabSummary(context.Background(), tt.tab)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NewSummarizer(src, nil, nil).TabSummary(context.Background(), 9)
	assert.Error(t, err, "a closed tab surfaces as an error")
}

func TestBatchInput(t *testing.T) {
	visits := []session.URLVisit{
		{Title: "A", Content: "alpha"},
		{Title: "B"},
	}
	assert.Equal(t, "Title: A\nalpha\n\nTitle: B\n\n", BatchInput(visits))
	assert.Equal(t, "", BatchInput(nil))
}

func TestSummarizer_BatchSummary(t *testing.T) {
	visits := []session.URLVisit{{Title: "A", Content: "alpha"}}

	got, err := NewSummarizer(nil, nil, nil).BatchSummary(context.Background(), visits)
	require.NoError(t, err)
	assert.Equal(t, "Title: A\nalpha\n\n", got)

	m := &stubModel{available: true, reply: "one page about alpha"}
	got, err = NewSummarizer(nil, m, nil).BatchSummary(context.Background(), visits)
	require.NoError(t, err)
	assert.Equal(t, "one page about alpha", got)

	m = &stubModel{available: true, err: errors.New("down")}
	_, err = NewSummarizer(nil, m, nil).BatchSummary(context.Background(), visits)
	assert.Error(t, err)

	got, err = NewSummarizer(nil, m, nil).BatchSummary(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
