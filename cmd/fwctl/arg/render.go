package arg

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/SoarinFerret/FocusWarden/internal/engine"
	"github.com/SoarinFerret/FocusWarden/internal/session"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(12)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

func renderStatus(s engine.Status) string {
	if !s.Active || s.Focus == nil {
		return boxStyle.Render(titleStyle.Render("FocusWarden") + "\n" + warnStyle.Render("No focus session"))
	}

	lines := []string{
		titleStyle.Render(s.Focus.TaskName()),
		row("State", okStyle.Render(s.State)),
		row("Focused for", s.Elapsed.Truncate(time.Second).String()),
	}
	if len(s.Focus.Keywords) > 0 {
		lines = append(lines, row("Keywords", strings.Join(s.Focus.Keywords, ", ")))
	}
	if s.Focus.PageURL != "" {
		lines = append(lines, row("Origin", s.Focus.PageURL))
	}
	if n := len(s.Focus.ResearchPages); n > 0 {
		lines = append(lines, row("Research", fmt.Sprintf("%d pages", n)))
	}
	if !s.LastNudge.IsZero() {
		lines = append(lines, row("Last nudge", s.LastNudge.Local().Format(time.Kitchen)))
	}
	lines = append(lines, row("Recent", fmt.Sprintf("%d pages", s.RecentPages)))
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func renderTasks(tasks []session.CompletedTask, days int) string {
	header := titleStyle.Render(fmt.Sprintf("Completed in the last %d days", days))
	if len(tasks) == 0 {
		return header + "\n" + warnStyle.Render("Nothing completed yet")
	}

	var total time.Duration
	lines := []string{header}
	for _, t := range tasks {
		total += t.FocusDuration
		when := labelStyle.Render(t.CompletedAt.Local().Format("Jan 02 15:04"))
		line := when + t.TaskName
		if t.FocusDuration > 0 {
			line += " " + okStyle.Render("("+t.FocusDuration.Truncate(time.Minute).String()+")")
		}
		lines = append(lines, line)
	}
	lines = append(lines, row("Total", total.Truncate(time.Minute).String()))
	return strings.Join(lines, "\n")
}
