package chart

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	defaultLineHeight = 10
	minLineWidth      = 10
	lineAxisSeparator = " │ "
)

// Series is a named sequence of values for a line plot.
type Series struct {
	Name   string
	Values []float64
}

// LinePlot describes a braille line plot sharing one y scale across series.
type LinePlot struct {
	Title  string
	Series []Series
	// Width is the total width available; 0 uses the terminal width.
	Width  int
	Height int
	Color  bool
}

// braille dot bits indexed by [x%2][y%4].
var brailleBits = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// PlotLines writes a multi-line braille plot of the series.
func PlotLines(w io.Writer, plot LinePlot) error {
	series := make([]Series, 0, len(plot.Series))
	for _, s := range plot.Series {
		if len(s.Values) > 0 {
			series = append(series, s)
		}
	}
	if len(series) == 0 {
		return nil
	}
	height := plot.Height
	if height <= 0 {
		height = defaultLineHeight
	}
	minVal, maxVal := valueRange(series)
	if maxVal-minVal < 1e-9 {
		minVal--
		maxVal++
	}
	axisLabels := make([]string, height)
	axisLabels[0] = FormatRupees(maxVal)
	axisLabels[height-1] = FormatRupees(minVal)
	if height > 2 {
		axisLabels[height/2] = FormatRupees((minVal + maxVal) / 2)
	}
	axisWidth := 0
	for _, l := range axisLabels {
		if lw := runewidth.StringWidth(l); lw > axisWidth {
			axisWidth = lw
		}
	}

	totalWidth := plot.Width
	if totalWidth <= 0 {
		totalWidth = TerminalWidth()
	}
	width := totalWidth - axisWidth - runewidth.StringWidth(lineAxisSeparator)
	if width < minLineWidth {
		width = minLineWidth
	}

	layers := make([][][]uint8, len(series))
	for si, s := range series {
		cells := make([][]uint8, height)
		for y := range cells {
			cells[y] = make([]uint8, width)
		}
		values := resample(s.Values, width*2)
		dots := height * 4
		prevX, prevY := -1, -1
		for x, v := range values {
			y := int(math.Round((maxVal - v) / (maxVal - minVal) * float64(dots-1)))
			if prevX >= 0 {
				drawLine(prevX, prevY, x, y, func(px, py int) { setDot(cells, px, py) })
			} else {
				setDot(cells, x, y)
			}
			prevX, prevY = x, y
		}
		layers[si] = cells
	}

	useColor := shouldUseColor(w, plot.Color)
	var lines []string
	if plot.Title != "" {
		lines = append(lines, plot.Title)
	}
	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(runewidth.FillLeft(axisLabels[y], axisWidth))
		row.WriteString(lineAxisSeparator)
		for x := 0; x < width; x++ {
			var mask uint8
			owner := -1
			for si, cells := range layers {
				if cells[y][x] == 0 {
					continue
				}
				if owner < 0 {
					owner = si
				}
				mask |= cells[y][x]
			}
			row.WriteString(colorize(string(rune(0x2800+int(mask))), owner, useColor))
		}
		lines = append(lines, row.String())
	}
	legend := make([]string, 0, len(series))
	for i, s := range series {
		last := s.Values[len(s.Values)-1]
		legend = append(legend, colorize(fmt.Sprintf("⣿ %s (last %s)", s.Name, FormatRupees(last)), i, useColor))
	}
	lines = append(lines, "Legend: "+strings.Join(legend, "  "))
	return writeLines(w, lines)
}

func valueRange(series []Series) (float64, float64) {
	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s.Values {
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
	}
	return minVal, maxVal
}

// resample stretches or averages values to exactly n points.
func resample(values []float64, n int) []float64 {
	out := make([]float64, n)
	switch {
	case len(values) == n:
		copy(out, values)
	case len(values) > n:
		for i := 0; i < n; i++ {
			start := i * len(values) / n
			end := (i + 1) * len(values) / n
			if end <= start {
				end = start + 1
			}
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
	case len(values) == 1 || n == 1:
		for i := range out {
			out[i] = values[0]
		}
	default:
		for i := 0; i < n; i++ {
			pos := float64(i) * float64(len(values)-1) / float64(n-1)
			idx := int(pos)
			if idx >= len(values)-1 {
				out[i] = values[len(values)-1]
				continue
			}
			frac := pos - float64(idx)
			out[i] = values[idx]*(1-frac) + values[idx+1]*frac
		}
	}
	return out
}

func setDot(cells [][]uint8, x, y int) {
	if x < 0 || y < 0 || y/4 >= len(cells) || x/2 >= len(cells[y/4]) {
		return
	}
	cells[y/4][x/2] |= brailleBits[x%2][y%4]
}

// drawLine walks a Bresenham line from (x0, y0) to (x1, y1).
func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
