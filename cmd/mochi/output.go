package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/kalambet/mochi/internal/reconcile"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// confirm prompts on stderr and reads one line from stdin. Only an explicit
// "y" or "yes" proceeds; anything else, including EOF on a closed stdin,
// declines.
func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(os.Stderr)
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// clip collapses a string to a single line of at most n runes for previews.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func planSummary(p reconcile.Plan) string {
	var parts []string
	if n := len(p.ToCreate); n > 0 {
		parts = append(parts, fmt.Sprintf("%d to create", n))
	}
	if n := len(p.ToUpdate); n > 0 {
		parts = append(parts, fmt.Sprintf("%d to update", n))
	}
	if n := len(p.ToDeleteRemote); n > 0 {
		parts = append(parts, fmt.Sprintf("%d to delete remotely", n))
	}
	if n := len(p.ToDeleteLocal); n > 0 {
		parts = append(parts, fmt.Sprintf("%d deleted remotely, to remove locally", n))
	}
	if len(parts) == 0 {
		return "nothing to do"
	}
	return strings.Join(parts, ", ")
}

// printPlan lists every operation the plan would perform, one line per
// card, before the user is asked to confirm.
func printPlan(p reconcile.Plan) {
	for _, c := range p.ToCreate {
		fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(colorGreen, "+"), clip(c.Question, 64))
	}
	for _, c := range p.ToUpdate {
		fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(colorYellow, "~"), clip(c.Question, 64))
	}
	for _, id := range p.ToDeleteRemote {
		fmt.Fprintf(os.Stderr, "  %s remote card %s\n", colorize(colorRed, "-"), id)
	}
	for _, c := range p.ToDeleteLocal {
		fmt.Fprintf(os.Stderr, "  %s %s (deleted remotely)\n", colorize(colorRed, "-"), clip(c.Question, 64))
	}
}

// reportDuplicates explains why the operation stopped: new cards whose
// content already exists remotely.
func reportDuplicates(dups []reconcile.Duplicate) {
	printWarning("%d new card(s) match existing remote content:", len(dups))
	for _, d := range dups {
		fmt.Fprintf(os.Stderr, "    %s (matches remote card %s)\n", clip(d.Card.Question, 64), d.RemoteID)
	}
	fmt.Fprintln(os.Stderr, "  Nothing was changed. Re-run with --force to create them anyway.")
}

const gradeBarWidth = 40

// printGradeDistribution renders a score histogram, best grades first.
func printGradeDistribution(dist [11]int, failed int) {
	most := 0
	for _, n := range dist {
		if n > most {
			most = n
		}
	}
	for score := 10; score >= 0; score-- {
		n := dist[score]
		if n == 0 {
			continue
		}
		width := n * gradeBarWidth / most
		if width == 0 {
			width = 1
		}
		bar := strings.Repeat("█", width)
		fmt.Fprintf(os.Stderr, "  %2d │ %s %d\n", score, colorize(colorCyan, bar), n)
	}
	if failed > 0 {
		printWarning("%d card(s) could not be graded; they will be retried on the next run", failed)
	}
}
