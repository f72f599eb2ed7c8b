// Package chart renders text charts and tables for terminals.
package chart

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	terminalWidthBackup = 80
	colorReset          = "\x1b[0m"
	rupee               = "₹"
)

type ansiColor struct {
	name string
	code string
}

var colorPalette = []ansiColor{
	{name: "cyan", code: "\x1b[36m"},
	{name: "yellow", code: "\x1b[33m"},
	{name: "magenta", code: "\x1b[35m"},
	{name: "green", code: "\x1b[32m"},
}

// TerminalWidth returns the width of stdout, or 80 when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func colorize(s string, idx int, useColor bool) string {
	if !useColor || idx < 0 {
		return s
	}
	return colorPalette[idx%len(colorPalette)].code + s + colorReset
}

// FormatRupees renders a price with the rupee sign and two decimals.
func FormatRupees(v float64) string {
	return fmt.Sprintf("%s%.2f", rupee, v)
}

// FormatPrice renders a monthly value, using a dash for months without data.
func FormatPrice(v float64) string {
	if v <= 0 {
		return "-"
	}
	return FormatRupees(v)
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}
