// Package verdict asks a language model whether the user drifted from their
// focus session.
package verdict

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/SoarinFerret/FocusWarden/internal/arbiter"
	"github.com/SoarinFerret/FocusWarden/internal/llm"
	"github.com/SoarinFerret/FocusWarden/internal/session"
)

// ErrUnavailable is returned when the model cannot be reached.
var ErrUnavailable = errors.New("language model not available")

// maxPrompt bounds the page content placed in a prompt.
const maxPrompt = 4000

// Checker implements arbiter.Verdicts on top of an llm.Model.
type Checker struct {
	model llm.Model
}

var _ arbiter.Verdicts = (*Checker)(nil)

func New(model llm.Model) *Checker {
	return &Checker{model: model}
}

// CheckContentSimilarity judges one page against the focus session.
func (c *Checker) CheckContentSimilarity(ctx context.Context, in arbiter.ContentInput) (arbiter.Verdict, error) {
	if in.Session == nil {
		return arbiter.Verdict{}, fmt.Errorf("no focus session")
	}
	if !c.model.Available(ctx) {
		return arbiter.Verdict{}, ErrUnavailable
	}

	out, err := c.model.Prompt(ctx, contentSystemPrompt(in.Language), contentPrompt(in))
	if err != nil {
		return arbiter.Verdict{}, fmt.Errorf("content similarity: %w", err)
	}
	return Parse(out), nil
}

// AnalyzeTabSwitching judges a batch of recent page visits.
func (c *Checker) AnalyzeTabSwitching(ctx context.Context, s *session.FocusSession, summary, language string) (arbiter.Verdict, error) {
	if s == nil {
		return arbiter.Verdict{}, fmt.Errorf("no focus session")
	}
	if !c.model.Available(ctx) {
		return arbiter.Verdict{}, ErrUnavailable
	}

	out, err := c.model.Prompt(ctx, switchSystemPrompt(language), switchPrompt(s, summary))
	if err != nil {
		return arbiter.Verdict{}, fmt.Errorf("tab switching: %w", err)
	}
	return Parse(out), nil
}

var (
	verdictLine = regexp.MustCompile(`(?im)^\s*VERDICT:\s*(FOCUSED|DRIFTED)\b`)
	reasonLine  = regexp.MustCompile(`(?i)REASON:\s*(.+)`)
	verdictWord = regexp.MustCompile(`(?i)\b(DRIFTED|FOCUSED):?`)
)

// Parse reads a model reply of the form "VERDICT: X\nREASON: Y". Replies
// that ignore the format count as drifted when they mention DRIFTED.
func Parse(out string) arbiter.Verdict {
	var drifted bool
	if m := verdictLine.FindStringSubmatch(out); m != nil {
		drifted = strings.EqualFold(m[1], "DRIFTED")
	} else {
		drifted = strings.Contains(strings.ToUpper(out), "DRIFTED")
	}

	var reason string
	if m := reasonLine.FindStringSubmatch(out); m != nil {
		reason = strings.TrimSpace(m[1])
	} else {
		reason = verdictLine.ReplaceAllString(out, "")
		reason = strings.TrimSpace(verdictWord.ReplaceAllString(reason, ""))
	}
	return arbiter.Verdict{IsDrifted: drifted, Reason: reason}
}

func contentSystemPrompt(language string) string {
	return "You analyze if a user has drifted from their focused work. " +
		"CRITICAL: Keywords are the PRIMARY criteria for judging relevance. " +
		"If the current page relates to any focus keyword, the user is FOCUSED. " +
		"Respond with FOCUSED or DRIFTED followed by a brief reason. " +
		"IMPORTANT: Your REASON must be written in " + language + "."
}

func switchSystemPrompt(language string) string {
	return "You analyze browsing activity to decide if a user is still working on their goal. " +
		"Be lenient: related research, documentation and tools count as focused. " +
		"IMPORTANT: Your REASON must be written in " + language + "."
}

func contentPrompt(in arbiter.ContentInput) string {
	s := in.Session
	var b strings.Builder

	writeFocusContext(&b, s)
	if len(s.ResearchPages) > 0 {
		b.WriteString("\nUser has marked these pages as research-related:\n")
		for _, p := range s.ResearchPages {
			fmt.Fprintf(&b, "- %q", p.Title)
			if p.Summary != "" {
				b.WriteString(": " + p.Summary)
			}
			b.WriteString("\n")
		}
		b.WriteString("If current page is similar to any research page, consider it FOCUSED.\n")
	}

	fmt.Fprintf(&b, "\nCurrent page: %q\n", in.Title)
	if in.Content != "" {
		b.WriteString("Current content: " + clip(in.Content) + "\n")
	}

	b.WriteString(`
CRITICAL RULES:
1. Keywords are authoritative. If the current page matches any focus keyword, answer FOCUSED.
2. The origin tab is only context. A different site can still serve the same goal.
3. Be lenient. Only answer DRIFTED when the page clearly has nothing to do with the goal.

FOCUSED: the page helps with the goal, matches a keyword, or is related research.
DRIFTED: the page is entertainment, social media or an unrelated topic.

Answer in this format:
VERDICT: FOCUSED or DRIFTED
REASON: Brief explanation why
`)
	return b.String()
}

func switchPrompt(s *session.FocusSession, summary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Focus Goal: %q\n", s.CompareTitle())
	if s.Description != "" {
		b.WriteString("Description: " + s.Description + "\n")
	}
	if len(s.Keywords) > 0 {
		b.WriteString("Focus keywords: " + strings.Join(s.Keywords, ", ") + "\n")
	}
	b.WriteString("\nRecent browsing activity (past minute):\n" + clip(summary) + "\n")
	b.WriteString(`
Rules:
- Looking things up, reading docs and comparing sources are FOCUSED.
- Only answer DRIFTED when most of the activity is clearly unrelated to the goal.
- When in doubt, choose FOCUSED.

Answer in this format:
VERDICT: FOCUSED or DRIFTED
REASON: Brief explanation why
`)
	return b.String()
}

func writeFocusContext(b *strings.Builder, s *session.FocusSession) {
	if s.PageTitle != "" {
		fmt.Fprintf(b, "Focus Session started on %q\n", s.PageTitle)
	}
	if s.Description != "" {
		fmt.Fprintf(b, "User goal: %q\n", s.Description)
	}
	if len(s.Keywords) > 0 {
		b.WriteString("Focus keywords: " + strings.Join(s.Keywords, ", ") + "\n")
	}
	if s.ContentSummary != "" {
		b.WriteString("Focus content summary: " + s.ContentSummary + "\n")
	}
}

func clip(s string) string {
	r := []rune(s)
	if len(r) <= maxPrompt {
		return s
	}
	return string(r[:maxPrompt])
}
