package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/TobiSchelling/FrictionLog/internal/friction"
	"github.com/TobiSchelling/FrictionLog/internal/notify"
)

var (
	colorAccent  = lipgloss.Color("#20B9B4")
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#5C7A84")
)

var styles = struct {
	Header     lipgloss.Style
	Bold       lipgloss.Style
	Muted      lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	Error      lipgloss.Style
	WarningBox lipgloss.Style
	ErrorBox   lipgloss.Style
}{
	Header:  lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Success: lipgloss.NewStyle().Foreground(colorSuccess),
	Warning: lipgloss.NewStyle().Foreground(colorWarning),
	Error:   lipgloss.NewStyle().Foreground(colorError),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorWarning).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorError).
		Padding(0, 1),
}

const barWidth = 20

// terminalNotifier draws alerts as boxes on the terminal.
type terminalNotifier struct {
	out io.Writer
}

func (n terminalNotifier) Notify(_ context.Context, a notify.Alert) error {
	box := styles.WarningBox
	if a.Kind == notify.KindLimitExceeded || a.Kind == notify.KindItemLimitExceeded {
		box = styles.ErrorBox
	}
	_, err := fmt.Fprintln(n.out, box.Render(styles.Bold.Render(a.Title())+"\n"+a.Body()))
	return err
}

func renderItems(w io.Writer, items []friction.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, styles.Muted.Render("No friction items."))
		return
	}
	fmt.Fprintln(w, styles.Header.Render(fmt.Sprintf("%-5s %-32s %-8s %-12s %5s %9s", "ID", "TITLE", "CATEGORY", "STATUS", "LEVEL", "TODAY")))
	for _, it := range items {
		line := fmt.Sprintf("%-5d %-32s %-8s %-12s %5d %9s",
			it.ID, truncate(it.Title, 32), it.Category, it.Status.DisplayName(), it.AnnoyanceLevel, todayCount(it))
		switch {
		case it.IsLimitExceeded:
			line = styles.Error.Render(line)
		case !it.Status.IsActive():
			line = styles.Muted.Render(line)
		}
		fmt.Fprintln(w, line)
	}
}

func renderItem(w io.Writer, it friction.Item) {
	fmt.Fprintf(w, "#%d %s\n", it.ID, styles.Bold.Render(it.Title))
	if it.Description != nil {
		fmt.Fprintf(w, "  %s\n", *it.Description)
	}
	fmt.Fprintf(w, "  %s · %s · level %d · %s today\n",
		it.Category.DisplayName(), it.Status.DisplayName(), it.AnnoyanceLevel, todayCount(it))
}

func todayCount(it friction.Item) string {
	if it.EncounterLimit == nil {
		return fmt.Sprintf("%d", it.EncounterCount)
	}
	return fmt.Sprintf("%d/%d", it.EncounterCount, *it.EncounterLimit)
}

func renderScore(w io.Writer, s friction.Score) {
	fmt.Fprintf(w, "%s %d\n", styles.Header.Render("Today's friction:"), s.CurrentScore)
	fmt.Fprintf(w, "  Active items: %d   Encounters: %d   Over limit: %d\n",
		s.ActiveCount, s.TotalEncountersToday, s.ItemsOverLimit)
	if !s.HasLimit() {
		fmt.Fprintln(w, "  Daily limit: "+styles.Muted.Render("not set"))
		return
	}
	pct := *s.LimitPercentage
	bar := progressBar(pct)
	switch {
	case pct >= 100:
		bar = styles.Error.Render(bar)
	case pct >= 75:
		bar = styles.Warning.Render(bar)
	default:
		bar = styles.Success.Render(bar)
	}
	fmt.Fprintf(w, "  Daily limit: %d %s %d%%\n", *s.GlobalDailyLimit, bar, pct)
}

func progressBar(pct int) string {
	filled := pct * barWidth / 100
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]"
}

func renderTrend(w io.Writer, points []friction.TrendPoint) {
	peak := 0
	for _, p := range points {
		if p.Score > peak {
			peak = p.Score
		}
	}
	for _, p := range points {
		n := 0
		if peak > 0 {
			n = p.Score * 30 / peak
		}
		fmt.Fprintf(w, "%s %s %d\n", p.Date, styles.Success.Render(strings.Repeat("▇", n)), p.Score)
	}
}

func renderBreakdown(w io.Writer, b friction.CategoryBreakdown) {
	for _, c := range friction.Categories {
		fmt.Fprintf(w, "%-8s %5d\n", c.DisplayName(), b.ScoreFor(c))
	}
	fmt.Fprintf(w, "%-8s %5d\n", styles.Bold.Render("Total"), b.Total())
}

func renderRanked(w io.Writer, ranked []friction.RankedItem) {
	if len(ranked) == 0 {
		fmt.Fprintln(w, styles.Muted.Render("Nothing annoying yet today."))
		return
	}
	for i, r := range ranked {
		fmt.Fprintf(w, "%d. %s  impact %d (level %d × %d)\n",
			i+1, styles.Bold.Render(r.Title), r.Impact, r.AnnoyanceLevel, r.EncounterCount)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
