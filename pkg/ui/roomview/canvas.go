package roomview

import (
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// segment is one run of styled text pinned to a cell.
type segment struct {
	col   int
	text  string
	style lipgloss.Style
}

// canvas is a fixed-size character grid. Text placed first owns its cells;
// later text that would overlap is dropped.
type canvas struct {
	width    int
	height   int
	occupied [][]bool
	rows     [][]segment
}

func newCanvas(width, height int) *canvas {
	c := &canvas{
		width:    max(1, width),
		height:   max(1, height),
		occupied: make([][]bool, max(1, height)),
		rows:     make([][]segment, max(1, height)),
	}
	for i := range c.occupied {
		c.occupied[i] = make([]bool, c.width)
	}
	return c
}

// place writes text at row, shifting it left to stay inside the grid. It
// reports false when the row is out of range or the cells are taken.
func (c *canvas) place(row, col int, text string, style lipgloss.Style) bool {
	if row < 0 || row >= c.height || text == "" {
		return false
	}

	runes := []rune(text)
	if len(runes) > c.width {
		runes = runes[:c.width]
	}
	width := len(runes)
	col = max(0, min(col, c.width-width))

	for x := col; x < col+width; x++ {
		if c.occupied[row][x] {
			return false
		}
	}
	for x := col; x < col+width; x++ {
		c.occupied[row][x] = true
	}
	c.rows[row] = append(c.rows[row], segment{col: col, text: string(runes), style: style})
	return true
}

func (c *canvas) render() string {
	lines := make([]string, c.height)
	for i, row := range c.rows {
		slices.SortFunc(row, func(a, b segment) int { return a.col - b.col })

		var b strings.Builder
		cursor := 0
		for _, seg := range row {
			b.WriteString(strings.Repeat(" ", seg.col-cursor))
			b.WriteString(seg.style.Render(seg.text))
			cursor = seg.col + len([]rune(seg.text))
		}
		b.WriteString(strings.Repeat(" ", c.width-cursor))
		lines[i] = b.String()
	}
	return strings.Join(lines, "\n")
}
