package ui

import (
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
)

// rect is a screen region in cells, used for mouse hit tests.
type rect struct {
	x, y, w, h int
}

func (r rect) contains(x, y int) bool {
	return r.w > 0 && r.h > 0 && x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

type borderSet struct {
	h, v, tl, tr, bl, br string
}

func (r *Root) borders() borderSet {
	if r.ascii {
		return borderSet{h: "-", v: "|", tl: "+", tr: "+", bl: "+", br: "+"}
	}
	return borderSet{h: "─", v: "│", tl: "┌", tr: "┐", bl: "└", br: "┘"}
}

func (r *Root) drawPanel(title string, lines []string, width, height int) string {
	return r.drawBox(title, lines, width, height, r.theme.PanelBorder, r.theme.PanelTitle)
}

// drawBox draws a bordered box of exactly width by height cells. Lines past
// the inner height are dropped.
func (r *Root) drawBox(title string, lines []string, width, height int, border, titleStyle lipgloss.Style) string {
	width = max(4, width)
	height = max(3, height)
	innerW := width - 2
	innerH := height - 2
	b := r.borders()

	top := border.Render(b.tl + strings.Repeat(b.h, innerW) + b.tr)
	if title != "" && innerW > 2 {
		t := trimForWidth(" "+title+" ", innerW-1)
		fill := innerW - 1 - ansi.StringWidth(t)
		top = border.Render(b.tl+b.h) + titleStyle.Render(t) + border.Render(strings.Repeat(b.h, max(0, fill))+b.tr)
	}

	out := make([]string, 0, height)
	out = append(out, top)
	for row := 0; row < innerH; row++ {
		line := ""
		if row < len(lines) {
			line = lines[row]
		}
		out = append(out, border.Render(b.v)+r.theme.PanelBody.Render(padCells(line, innerW))+border.Render(b.v))
	}
	out = append(out, border.Render(b.bl+strings.Repeat(b.h, innerW)+b.br))
	return strings.Join(out, "\n")
}

func wrapIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	if i < 0 {
		i = n - 1
	}
	if i >= n {
		i = 0
	}
	return i
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// padCells truncates or pads s to exactly width cells. Styled text keeps its
// escape sequences.
func padCells(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = strings.ReplaceAll(s, "\t", "    ")
	if ansi.StringWidth(s) > width {
		s = ansi.Truncate(s, width, "")
	}
	if w := ansi.StringWidth(s); w < width {
		s += strings.Repeat(" ", width-w)
	}
	return s
}

// centerCells pads s on both sides to width cells.
func centerCells(s string, width int) string {
	w := ansi.StringWidth(s)
	if w >= width {
		return padCells(s, width)
	}
	left := (width - w) / 2
	return padCells(strings.Repeat(" ", left)+s, width)
}

// placeLine draws s starting at column x of a blank line width cells wide.
// Negative x clips the left side.
func placeLine(s string, x, width int) string {
	if x < 0 {
		s = ansi.TruncateLeft(s, -x, "")
		x = 0
	}
	if x >= width {
		return strings.Repeat(" ", width)
	}
	return padCells(strings.Repeat(" ", x)+s, width)
}

// overlayLine replaces the cells of base starting at col with over.
func overlayLine(base, over string, col, width int) string {
	if col < 0 {
		over = ansi.TruncateLeft(over, -col, "")
		col = 0
	}
	if col >= width {
		return padCells(base, width)
	}
	ow := ansi.StringWidth(over)
	if col+ow > width {
		over = ansi.Truncate(over, width-col, "")
		ow = ansi.StringWidth(over)
	}
	left := padCells(ansi.Truncate(base, col, ""), col)
	right := ansi.TruncateLeft(base, col+ow, "")
	return padCells(left+ansi.ResetStyle+over+ansi.ResetStyle+right, width)
}

func normalizeLines(base string, cols, rows int) []string {
	lines := strings.Split(base, "\n")
	if len(lines) < rows {
		lines = append(lines, make([]string, rows-len(lines))...)
	}
	lines = lines[:rows]
	for i := range lines {
		lines[i] = padCells(lines[i], cols)
	}
	return lines
}

func blockWidth(lines []string) int {
	w := 1
	for _, line := range lines {
		w = max(w, ansi.StringWidth(line))
	}
	return w
}

// composeOverlay centers overlay over base.
func composeOverlay(base, overlay string, cols, rows int) string {
	lines := strings.Split(strings.TrimRight(overlay, "\n"), "\n")
	ow := min(blockWidth(lines), cols)
	oh := min(len(lines), rows)
	return composeOverlayAt(base, overlay, cols, rows, max(0, (rows-oh)/2), max(0, (cols-ow)/2))
}

func composeOverlayAt(base, overlay string, cols, rows, startRow, startCol int) string {
	if cols <= 0 || rows <= 0 {
		return base
	}
	baseLines := normalizeLines(base, cols, rows)
	overlayLines := strings.Split(strings.TrimRight(overlay, "\n"), "\n")
	ow := min(blockWidth(overlayLines), cols)
	startRow = max(0, startRow)
	for i, line := range overlayLines {
		row := startRow + i
		if row >= rows {
			break
		}
		baseLines[row] = overlayLine(baseLines[row], padCells(line, ow), startCol, cols)
	}
	return strings.Join(baseLines, "\n")
}

func trimForWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = strings.ReplaceAll(ansi.Strip(s), "\n", " ")
	if ansi.StringWidth(s) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return ansi.Truncate(s, width, "…")
}

// wrapText breaks s into lines of at most width cells on spaces.
func wrapText(s string, width int) []string {
	if width <= 0 {
		return nil
	}
	var out []string
	for _, para := range strings.Split(s, "\n") {
		wrapped := ansi.Wrap(para, width, "")
		out = append(out, strings.Split(wrapped, "\n")...)
	}
	return out
}
