package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kalambet/wordsync/internal/syncer"
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
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+fmt.Sprintf(format, args...)))
}

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

func printStep(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+fmt.Sprintf(format, args...)))
}

// writeReport renders a sync report as aligned label/value lines.
func writeReport(w io.Writer, r syncer.Report) {
	rows := []struct {
		label string
		value int
	}{
		{"Total", r.Total},
		{"Created", r.Created},
		{"Existing", r.Existing},
		{"Unenriched", r.Unenriched},
		{"Failed", r.Failed},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "  %s %d\n", colorize(colorBold, fmt.Sprintf("%-11s", row.label+":")), row.value)
	}
	if !r.FinishedAt.IsZero() && !r.StartedAt.IsZero() {
		fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, fmt.Sprintf("%-11s", "Took:")), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
}
