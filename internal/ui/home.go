package ui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/dustin/go-humanize"

	"hakubun/internal/notify"
	"hakubun/internal/review"
	"hakubun/internal/srs"
)

func (r *Root) renderHome() string {
	if r.layout == LayoutTooSmall {
		return r.renderTooSmall()
	}
	cols, rows := r.cols, r.rows
	d := r.dashboard

	right := fmt.Sprintf("%d %s available", d.Available, plural(d.Available, "review", "reviews"))
	out := []string{r.headerBar("hakubun", right), ""}

	menu := r.menuLines()
	progress := r.progressLines()
	forecast := r.forecastLines()

	bodyH := rows - 4
	r.homeHits = r.homeHits[:0]
	if r.layout == LayoutWide {
		leftW := cols / 2
		rightW := cols - leftW
		topH := max(len(menu), len(progress)) + 2
		left := strings.Split(r.drawPanel("Reviews", menu, leftW, topH), "\n")
		prog := strings.Split(r.drawPanel("Progress", progress, rightW, topH), "\n")
		for i := range left {
			out = append(out, left[i]+prog[i])
		}
		r.recordMenuHits(2, leftW)
		fh := min(len(forecast)+2, max(3, bodyH-topH))
		out = append(out, strings.Split(r.drawPanel("Forecast", forecast, cols, fh), "\n")...)
	} else {
		menuH := len(menu) + 2
		out = append(out, strings.Split(r.drawPanel("Reviews", menu, cols, menuH), "\n")...)
		r.recordMenuHits(2, cols)
		progH := min(len(progress)+2, max(3, bodyH-menuH-3))
		out = append(out, strings.Split(r.drawPanel("Progress", progress, cols, progH), "\n")...)
		fh := min(len(forecast)+2, max(3, bodyH-menuH-progH))
		out = append(out, strings.Split(r.drawPanel("Forecast", forecast, cols, fh), "\n")...)
	}

	lines := normalizeLines(strings.Join(out, "\n"), cols, rows)
	status := ""
	switch {
	case r.statusFlash != "":
		status = r.theme.Pending.Render(r.statusFlash)
	case d.Notice != "":
		status = r.theme.Info.Render(d.Notice)
	}
	lines[rows-2] = padCells(" "+status, cols)
	r.help.SetWidth(cols - 2)
	lines[rows-1] = padCells(" "+r.help.View(r.homeKeys), cols)
	return strings.Join(lines, "\n")
}

func (r *Root) menuLines() []string {
	d := r.dashboard
	toggle := "[+]"
	if r.forecastOpen {
		toggle = "[-]"
	}
	labels := map[homeItem]string{
		homeStart:    fmt.Sprintf("Start reviews (%d)", d.Available),
		homeForecast: "Forecast " + toggle,
		homeQuit:     "Quit",
	}
	var lines []string
	for i, item := range r.homeItems() {
		cursor := "  "
		label := labels[item]
		if i == r.homeIndex {
			cursor = r.theme.Accent.Render(r.glyph("› ", "> "))
			label = r.theme.Accent.Render(label)
		}
		lines = append(lines, " "+cursor+label)
	}
	lines = append(lines, "")
	if r.loading {
		lines = append(lines, " "+r.spin.View()+" Building review queue…")
	} else {
		lines = append(lines, r.theme.Muted.Render(fmt.Sprintf(" %d %s · %d %s",
			d.Decks, plural(d.Decks, "deck", "decks"), d.Subjects, plural(d.Subjects, "subject", "subjects"))))
	}
	return lines
}

// recordMenuHits stores the click targets of the menu rows of a panel drawn
// at row top.
func (r *Root) recordMenuHits(top, width int) {
	for i := range r.homeItems() {
		r.homeHits = append(r.homeHits, rect{x: 1, y: top + 1 + i, w: max(1, width-2), h: 1})
	}
}

func (r *Root) progressLines() []string {
	d := r.dashboard
	lines := []string{
		fmt.Sprintf(" Level %d", max(1, d.Level.Level)),
		" " + r.levelBar.ViewAs(d.Level.Fraction()),
		r.theme.Muted.Render(fmt.Sprintf(" %d/%d kanji points", d.Level.Gained, d.Level.Total)),
		"",
	}
	for _, g := range srs.Groups {
		lines = append(lines, fmt.Sprintf(" %-12s %4d", g.Title(), d.Groups[g]))
	}
	lines = append(lines, "")
	if s := d.LastSession; s != nil {
		lines = append(lines,
			fmt.Sprintf(" Last session %s", humanize.RelTime(s.FinishedAt, r.now(), "ago", "from now")),
			r.theme.Muted.Render(fmt.Sprintf(" %d reviewed · %d correct · %d incorrect", s.Reviewed, s.Correct, s.Incorrect)),
		)
	} else {
		lines = append(lines, r.theme.Muted.Render(" No sessions yet"))
	}
	return lines
}

func (r *Root) forecastLines() []string {
	days := r.dashboard.Forecast
	if len(days) == 0 {
		return []string{r.theme.Muted.Render(" Nothing scheduled")}
	}
	if !r.forecastOpen {
		week := days[len(days)-1].RunningTotal - r.dashboard.Available
		return []string{fmt.Sprintf(" Today +%d · This week +%d   %s",
			days[0].Count, week, r.theme.Muted.Render("(f to expand)"))}
	}
	peak := 1
	for _, day := range days {
		peak = max(peak, day.Count)
	}
	barMax := max(4, min(30, r.cols-40))
	lines := make([]string, 0, len(days))
	for i, day := range days {
		name := day.Weekday.String()[:3]
		if i == 0 {
			name = "Today"
		}
		bar := strings.Repeat(r.glyph("█", "#"), day.Count*barMax/peak)
		if day.Count > 0 && bar == "" {
			bar = r.glyph("▏", "|")
		}
		lines = append(lines, fmt.Sprintf(" %-6s %4s %s %s", name, humanize.Comma(int64(day.Count)),
			r.theme.Accent.Render(padCells(bar, barMax)), r.theme.Muted.Render(fmt.Sprintf("total %d", day.RunningTotal))))
	}
	return lines
}

func (r *Root) renderSummary() string {
	if r.layout == LayoutTooSmall {
		return r.renderTooSmall()
	}
	cols, rows := r.cols, r.rows
	s := r.summary
	out := []string{r.headerBar("hakubun · Summary", fmt.Sprintf("%d%% accuracy", s.Accuracy())), ""}

	body := []string{
		"",
		fmt.Sprintf(" Accuracy   %s", r.theme.Accent.Render(fmt.Sprintf("%d%%", s.Accuracy()))),
		fmt.Sprintf(" Answered   %d   %s   %s", s.Answered,
			r.theme.Pass.Render(fmt.Sprintf("%d correct", s.Correct)), r.theme.Fail.Render(fmt.Sprintf("%d incorrect", s.Incorrect))),
		fmt.Sprintf(" Completed  %d %s", s.Completed, plural(s.Completed, "subject", "subjects")),
		fmt.Sprintf(" Remaining  %d", s.Remaining),
		fmt.Sprintf(" Time       %s", sessionDuration(s.StartTS, s.FinishTS)),
		"",
	}
	if len(s.Missed) > 0 {
		body = append(body, r.theme.Fail.Render(" Missed"))
		for _, item := range s.Missed {
			body = append(body, fmt.Sprintf("   %s  %s", r.theme.CardChars.Render(item.Characters), primaryMeaning(item)))
		}
	} else if s.Answered > 0 {
		body = append(body, r.theme.Pass.Render(" No mistakes"))
	}

	w := min(cols, 72)
	h := min(len(body)+2, rows-6)
	panel := r.drawPanel("Session complete", body, w, h)
	for _, line := range strings.Split(panel, "\n") {
		out = append(out, centerCells(line, cols))
	}
	lines := normalizeLines(strings.Join(out, "\n"), cols, rows)
	lines[rows-1] = padCells(" "+r.theme.Muted.Render("Enter: home   r: review again   q: quit"), cols)
	return strings.Join(lines, "\n")
}

func sessionDuration(start, finish time.Time) string {
	if start.IsZero() || finish.Before(start) {
		return "-"
	}
	return finish.Sub(start).Round(time.Second).String()
}

func primaryMeaning(item review.Item) string {
	for _, m := range item.Meanings {
		if m.Primary {
			return m.Meaning
		}
	}
	if len(item.Meanings) > 0 {
		return item.Meanings[0].Meaning
	}
	return ""
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// composeToasts stacks live toasts in the top right corner, newest on top.
func (r *Root) composeToasts(base string) string {
	toasts := r.toasts.Visible()
	if len(toasts) == 0 || r.layout == LayoutTooSmall {
		return base
	}
	w := min(44, max(20, r.cols/2))
	row := 1
	for i := len(toasts) - 1; i >= 0 && row < r.rows-2; i-- {
		t := toasts[i]
		body := wrapText(t.Message, w-4)
		for j := range body {
			body[j] = " " + body[j]
		}
		style := r.toastStyle(t.Kind)
		box := r.drawBox(t.Title, body, w, len(body)+2, style, style)
		base = composeOverlayAt(base, box, r.cols, r.rows, row, r.cols-w-1)
		row += len(body) + 2
	}
	return base
}

func (r *Root) toastStyle(kind notify.Kind) lipgloss.Style {
	switch kind {
	case notify.KindError:
		return r.theme.Fail
	case notify.KindWarning:
		return r.theme.Pending
	case notify.KindSuccess:
		return r.theme.Pass
	default:
		return r.theme.Info
	}
}

// renderOverlay draws the topmost modal: details first, then modal hints.
func (r *Root) renderOverlay() string {
	if r.layout == LayoutTooSmall {
		return ""
	}
	if r.detailsOpen {
		w := min(82, r.cols-4)
		lines := strings.Split(r.detailsText, "\n")
		h := min(len(lines)+3, r.rows-4)
		body := append([]string(nil), lines...)
		if len(body) > h-3 {
			body = body[:h-3]
		}
		body = append(body, r.theme.Muted.Render(" Esc to close"))
		return r.drawPanel(r.detailsTitle, body, w, h)
	}
	if r.screen == ScreenReview && r.hints.Variant() == review.HintModal && r.hintPos > 0.001 {
		w := min(50, r.cols-8)
		panel := r.hintPanelLines(w)
		shown := max(1, int(float64(len(panel))*r.hintPos+0.5))
		return strings.Join(panel[:min(shown, len(panel))], "\n")
	}
	return ""
}

func (r *Root) renderMarkdown(md string) string {
	if r.markdown == nil {
		return md
	}
	out, err := r.markdown.Render(md)
	if err != nil {
		r.logger.Warn("ui.markdown_failed", "error", err)
		return md
	}
	return strings.Trim(out, "\n")
}
