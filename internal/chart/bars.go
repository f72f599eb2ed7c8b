package chart

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	defaultBarHeight = 12
	minSlotWidth     = 4
	maxSlotWidth     = 9
	axisSeparator    = " ┤"
	barFull          = "█"
)

// Eighth blocks used for the fractional top of a bar.
var barPartials = []string{"", "▁", "▂", "▃", "▄", "▅", "▆", "▇"}

// BarChart describes a categorical bar chart.
type BarChart struct {
	Title  string
	Labels []string
	Values []float64
	// Width is the total width available; 0 uses the terminal width.
	Width int
	// Height is the number of plot rows; 0 uses a default.
	Height int
	Color  bool
}

// RenderBars writes a vertical bar chart with a rupee-formatted y axis.
// Zero values draw no bar.
func RenderBars(w io.Writer, chart BarChart) error {
	n := len(chart.Labels)
	if len(chart.Values) < n {
		n = len(chart.Values)
	}
	if n == 0 {
		return nil
	}
	height := chart.Height
	if height <= 0 {
		height = defaultBarHeight
	}
	maxVal := 0.0
	for _, v := range chart.Values[:n] {
		if v > maxVal {
			maxVal = v
		}
	}
	top := niceCeiling(maxVal)

	labels := make([]string, height)
	axisWidth := 0
	for y := 0; y < height; y++ {
		if y == 0 || y == height-1 || y == height/2 {
			labels[y] = FormatRupees(top * float64(height-y) / float64(height))
		}
		if lw := runewidth.StringWidth(labels[y]); lw > axisWidth {
			axisWidth = lw
		}
	}
	zeroLabel := FormatRupees(0)
	if lw := runewidth.StringWidth(zeroLabel); lw > axisWidth {
		axisWidth = lw
	}

	totalWidth := chart.Width
	if totalWidth <= 0 {
		totalWidth = TerminalWidth()
	}
	slot := (totalWidth - axisWidth - runewidth.StringWidth(axisSeparator)) / n
	if slot < minSlotWidth {
		slot = minSlotWidth
	}
	if slot > maxSlotWidth {
		slot = maxSlotWidth
	}
	barWidth := slot - 1

	useColor := shouldUseColor(w, chart.Color)
	var lines []string
	if chart.Title != "" {
		lines = append(lines, chart.Title)
	}
	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(runewidth.FillLeft(labels[y], axisWidth))
		row.WriteString(axisSeparator)
		for i := 0; i < n; i++ {
			cell := barCell(chart.Values[i], top, height, y)
			row.WriteString(" ")
			row.WriteString(colorize(strings.Repeat(cell, barWidth), 0, useColor && cell != " "))
		}
		lines = append(lines, row.String())
	}
	var axis strings.Builder
	axis.WriteString(runewidth.FillLeft(zeroLabel, axisWidth))
	axis.WriteString(" └")
	axis.WriteString(strings.Repeat("─", n*slot))
	lines = append(lines, axis.String())

	var labelRow strings.Builder
	labelRow.WriteString(strings.Repeat(" ", axisWidth+runewidth.StringWidth(axisSeparator)))
	for i := 0; i < n; i++ {
		labelRow.WriteString(" ")
		labelRow.WriteString(runewidth.FillRight(runewidth.Truncate(chart.Labels[i], barWidth, ""), barWidth))
	}
	lines = append(lines, labelRow.String())
	return writeLines(w, lines)
}

// barCell returns the glyph for row y (0 = top) of a bar of value v.
func barCell(v, top float64, height, y int) string {
	if v <= 0 || top <= 0 {
		return " "
	}
	eighths := int(math.Round(v / top * float64(height*8)))
	rowFromBottom := height - 1 - y
	filled := eighths - rowFromBottom*8
	switch {
	case filled >= 8:
		return barFull
	case filled <= 0:
		if rowFromBottom == 0 {
			return barPartials[1]
		}
		return " "
	default:
		return barPartials[filled]
	}
}

// niceCeiling rounds v up to 1, 2, 2.5 or 5 times a power of ten.
func niceCeiling(v float64) float64 {
	if v <= 0 {
		return 1
	}
	exp := math.Pow(10, math.Floor(math.Log10(v)))
	for _, m := range []float64{1, 2, 2.5, 5, 10} {
		if c := m * exp; c >= v {
			return c
		}
	}
	return 10 * exp
}

// RenderSeriesTable writes labels and values as a two-column table.
func RenderSeriesTable(w io.Writer, header string, labels []string, values []float64) error {
	rows := make([][]string, 0, len(labels))
	for i, label := range labels {
		value := "-"
		if i < len(values) {
			value = FormatPrice(values[i])
		}
		rows = append(rows, []string{label, value})
	}
	if err := writeLines(w, FormatTable([]string{"Month", header}, rows, map[int]bool{1: true})); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}
