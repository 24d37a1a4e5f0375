package pagetext

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SoarinFerret/FocusWarden/internal/arbiter"
	"github.com/SoarinFerret/FocusWarden/internal/llm"
	"github.com/SoarinFerret/FocusWarden/internal/session"
)

// rawDigest is how much raw text stands in for a summary when no model
// is available.
const rawDigest = 500

const summarySystem = "Summarize the text in one or two short plain sentences (tldr). " +
	"Do not add commentary."

// TextSource returns the current visible text of a tab.
type TextSource interface {
	PageText(ctx context.Context, tabID int) (string, error)
}

// Summarizer implements arbiter.Summarizer. Model may be nil.
type Summarizer struct {
	source TextSource
	model  llm.Model
	logger *slog.Logger
}

var _ arbiter.Summarizer = (*Summarizer)(nil)

func NewSummarizer(source TextSource, model llm.Model, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{source: source, model: model, logger: logger}
}

// TabSummary digests one tab. Empty text yields an empty digest.
func (s *Summarizer) TabSummary(ctx context.Context, tabID int) (string, error) {
	if s.source == nil {
		return "", nil
	}
	raw, err := s.source.PageText(ctx, tabID)
	if err != nil {
		return "", fmt.Errorf("page text for tab %d: %w", tabID, err)
	}
	return s.Summarize(ctx, raw), nil
}

// Summarize digests raw page text, falling back to its first 500 runes.
func (s *Summarizer) Summarize(ctx context.Context, raw string) string {
	raw = clip(strings.TrimSpace(raw), MaxText)
	if raw == "" {
		return ""
	}
	if s.model == nil || !s.model.Available(ctx) {
		return clip(raw, rawDigest)
	}
	out, err := s.model.Prompt(ctx, summarySystem, raw)
	if err != nil || out == "" {
		s.logger.Debug("summarizer failed, using raw content", "err", err)
		return clip(raw, rawDigest)
	}
	return out
}

// BatchSummary digests a list of visits in one model call. Without a model
// the rendered batch itself is returned.
func (s *Summarizer) BatchSummary(ctx context.Context, visits []session.URLVisit) (string, error) {
	batch := BatchInput(visits)
	if batch == "" {
		return "", nil
	}
	if s.model == nil || !s.model.Available(ctx) {
		return clip(batch, MaxText), nil
	}
	out, err := s.model.Prompt(ctx, summarySystem, clip(batch, MaxText))
	if err != nil {
		return "", fmt.Errorf("batch summary: %w", err)
	}
	return out, nil
}

// BatchInput renders visits as "Title: ...\n<content>\n\n" blocks.
func BatchInput(visits []session.URLVisit) string {
	var b strings.Builder
	for _, v := range visits {
		b.WriteString("Title: " + v.Title + "\n")
		if v.Content != "" {
			b.WriteString(v.Content + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}
