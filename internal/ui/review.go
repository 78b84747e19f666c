package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"hakubun/internal/card"
	"hakubun/internal/queue"
	"hakubun/internal/review"
)

const (
	cardHeight    = 9
	shakeDuration = 500 * time.Millisecond
	// dragWindow is how far back release velocity looks.
	dragWindow = 100 * time.Millisecond
)

var shakeKeyframes = []float64{-5, 5, -5, 5, -5, 5, -5, 5, -5, 5, -5, 5, 0}

type dragSample struct {
	at     time.Time
	offset float64
}

type dragState struct {
	active  bool
	startX  int
	base    float64
	samples []dragSample
}

func newAnswerInput(theme Theme) textinput.Model {
	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = 64
	styles := textinput.DefaultDarkStyles()
	styles.Cursor.Blink = false
	styles.Focused.Placeholder = theme.Muted
	styles.Blurred.Placeholder = theme.Muted
	in.SetStyles(styles)
	return in
}

func (r *Root) startReview(session *queue.Session) {
	if r.card != nil {
		r.card.Close()
	}
	r.loading = false
	r.statusFlash = ""
	r.session = session
	r.reviewTotal = session.Stats().Remaining
	r.hints = review.NewHintSurface(r.hintVariant)
	r.hintKeyHeld = false
	r.hintButtonHeld = false
	r.drag = dragState{}
	r.shakeSeen = 0
	r.shaking = false
	r.detailsOpen = false
	r.card = card.New(card.Options{
		Scheduler:  r.sched,
		Validator:  r.validator,
		Notifier:   r.toasts,
		Submission: session,
		Audio:      r.audio,
		Logger:     r.events,
		Timing:     r.timing,
		OnAdvance:  r.onAdvance,
		OnRetry:    r.onRetry,
		OnFocus:    func(review.Item) { r.input.Focus() },
		OnChange:   r.RequestDraw,
	})
	r.card.SetViewportWidth(float64(max(1, r.cols) * r.unitsPerCell))
	r.screen = ScreenReview

	item, ok := session.Current()
	if !ok {
		r.finishReview()
		return
	}
	r.present(item)
}

func (r *Root) present(item review.Item) {
	if prev, ok := r.card.Item(); !ok || prev.ID != item.ID {
		r.hintKeyHeld = false
		r.hintButtonHeld = false
	}
	r.hints.Sync(item)
	r.input.Blur()
	r.card.Present(item)
	r.input.SetValue(r.card.Draft())
	r.input.CursorEnd()
	r.input.Placeholder = placeholderFor(item)
	r.styleInput(item)
}

func placeholderFor(item review.Item) string {
	if item.ReviewType == review.ReviewReading {
		return "答え"
	}
	return "Your Response"
}

func (r *Root) styleInput(item review.Item) {
	styles := r.input.Styles()
	text := lipgloss.NewStyle()
	switch {
	case item.Submitted && item.Correct:
		text = r.theme.Pass
	case item.Submitted:
		text = r.theme.Fail
	}
	styles.Focused.Text = text
	styles.Blurred.Text = text
	r.input.SetStyles(styles)
}

func (r *Root) onAdvance(item review.Item, answer string, setAnswer func(string)) {
	if r.session == nil {
		return
	}
	tr, err := r.session.HandleNext(item, answer, setAnswer)
	if err != nil {
		r.logger.Warn("review.advance_failed", "item_id", item.ID, "error", err)
		return
	}
	if tr.Done {
		r.finishReview()
		return
	}
	r.present(tr.Item)
}

func (r *Root) onRetry(item review.Item, answer string, setAnswer func(string)) {
	if r.session == nil {
		return
	}
	tr, err := r.session.HandleRetry(item, answer, setAnswer)
	if err != nil {
		r.logger.Warn("review.retry_failed", "item_id", item.ID, "error", err)
		return
	}
	r.present(tr.Item)
}

// closeSession ends the live session and reports its stats to the
// controller.
func (r *Root) closeSession() (queue.Stats, bool) {
	if r.session == nil {
		return queue.Stats{}, false
	}
	if err := r.session.Finish(); err != nil {
		r.logger.Warn("review.finish_failed", "session_id", r.session.ID(), "error", err)
	}
	stats := r.session.Stats()
	r.session = nil
	if r.card != nil {
		r.card.Close()
	}
	r.hints.Dismiss()
	r.hintKeyHeld = false
	r.hintButtonHeld = false
	r.drag = dragState{}
	r.input.Blur()
	r.dispatchController(func(c Controller) { c.OnSessionFinished(stats) })
	return stats, true
}

func (r *Root) finishReview() {
	stats, ok := r.closeSession()
	if !ok {
		return
	}
	r.summary = stats
	r.screen = ScreenSummary
}

// endReview leaves the review screen without showing the summary.
func (r *Root) endReview(goHome bool) {
	r.closeSession()
	if goHome {
		r.screen = ScreenHome
	}
}

func (r *Root) handleReviewKey(msg tea.KeyPressMsg) tea.Cmd {
	if r.card == nil || r.session == nil {
		if key.Matches(msg, r.reviewKeys.Home) {
			r.screen = ScreenHome
		}
		return nil
	}
	if r.hintKeyHeld && msg.Code != tea.KeyF1 && !r.releaseEvents {
		r.hintKeyHeld = false
		r.hints.Release()
	}

	switch {
	case key.Matches(msg, r.reviewKeys.Hints):
		r.pressHintKey(msg)
	case key.Matches(msg, r.reviewKeys.Home):
		if r.hints.Visible() && r.hints.Variant() == review.HintModal {
			r.hints.Dismiss()
			return nil
		}
		r.endReview(true)
	case key.Matches(msg, r.reviewKeys.Submit), key.Matches(msg, r.reviewKeys.Advance):
		r.card.Submit()
	case key.Matches(msg, r.reviewKeys.Retry):
		r.card.Retry()
	case key.Matches(msg, r.reviewKeys.Audio):
		if item, ok := r.card.Item(); ok {
			r.dispatchController(func(c Controller) { c.OnPlayAudio(item) })
		}
	case key.Matches(msg, r.reviewKeys.Copy):
		if item, ok := r.card.Item(); ok {
			r.dispatchController(func(c Controller) { c.OnCopy(item) })
		}
	case key.Matches(msg, r.reviewKeys.Details):
		if item, ok := r.card.Item(); ok {
			r.dispatchController(func(c Controller) { c.OnDetails(item) })
		}
	default:
		return r.updateInput(msg)
	}
	return nil
}

func (r *Root) pressHintKey(msg tea.KeyPressMsg) {
	if msg.IsRepeat {
		return
	}
	if !r.hints.Visible() && !r.hintsEnabled() {
		return
	}
	if r.hints.Variant() == review.HintModal {
		if r.hints.Visible() {
			r.hints.Dismiss()
		} else {
			r.hints.Press()
		}
		return
	}
	if r.hintKeyHeld {
		r.hintKeyHeld = false
		r.hints.Release()
		return
	}
	r.hints.Press()
	r.hintKeyHeld = r.hints.Visible()
}

// hintsEnabled reports whether the hint control can open. It is disabled
// while an answer is submitted.
func (r *Root) hintsEnabled() bool {
	return r.session == nil || !r.session.IsSubmitting()
}

func (r *Root) updateInput(msg tea.Msg) tea.Cmd {
	if r.card == nil || !r.card.Editable() {
		return nil
	}
	var cmd tea.Cmd
	r.input, cmd = r.input.Update(msg)
	draft := r.card.SetDraft(r.input.Value())
	if draft != r.input.Value() {
		r.input.SetValue(draft)
		r.input.CursorEnd()
	}
	return cmd
}

func (r *Root) handleMouseClick(msg tea.MouseClickMsg) tea.Cmd {
	if r.mouseScope == "off" {
		return nil
	}
	m := msg.Mouse()
	r.recordInputEvent(fmt.Sprintf("click:%d,%d", m.X, m.Y))
	if r.detailsOpen {
		r.detailsOpen = false
		return nil
	}
	switch r.screen {
	case ScreenReview:
		if r.card == nil || m.Button != tea.MouseLeft {
			return nil
		}
		if r.hintButton.contains(m.X, m.Y) {
			if r.hints.Variant() == review.HintModal && r.hints.Visible() {
				r.hints.Dismiss()
				return nil
			}
			if !r.hintsEnabled() {
				return nil
			}
			r.hints.Press()
			r.hintButtonHeld = true
			return nil
		}
		if r.cardBox.contains(m.X, m.Y) {
			base := r.card.Offset()
			r.drag = dragState{active: true, startX: m.X, base: base}
			r.drag.sample(r.now(), base)
		}
	case ScreenHome:
		if r.mouseScope != "full" {
			return nil
		}
		for i, hit := range r.homeHits {
			if hit.contains(m.X, m.Y) {
				items := r.homeItems()
				r.homeIndex = i
				r.activateHomeItem(items[i])
				return nil
			}
		}
	case ScreenSummary:
		if r.mouseScope == "full" {
			r.screen = ScreenHome
			r.dispatchController(func(c Controller) { c.OnHome() })
		}
	}
	return nil
}

func (r *Root) handleMouseMotion(msg tea.MouseMotionMsg) tea.Cmd {
	if r.mouseScope == "off" || r.card == nil {
		return nil
	}
	m := msg.Mouse()
	if r.hintButtonHeld && !r.hintButton.contains(m.X, m.Y) {
		r.hintButtonHeld = false
		r.hints.Cancel()
	}
	if r.drag.active {
		offset := r.dragOffset(m.X)
		r.drag.sample(r.now(), offset)
		r.card.DragTo(offset)
	}
	return nil
}

func (r *Root) handleMouseRelease(msg tea.MouseReleaseMsg) tea.Cmd {
	if r.mouseScope == "off" || r.card == nil {
		return nil
	}
	m := msg.Mouse()
	if r.hintButtonHeld {
		r.hintButtonHeld = false
		r.hints.Release()
	}
	if r.drag.active {
		offset := r.dragOffset(m.X)
		now := r.now()
		r.drag.sample(now, offset)
		velocity := r.drag.velocity(now)
		r.drag = dragState{}
		r.card.Release(offset, velocity)
	}
	return nil
}

func (r *Root) dragOffset(x int) float64 {
	return r.drag.base + float64((x-r.drag.startX)*r.unitsPerCell)
}

func (d *dragState) sample(at time.Time, offset float64) {
	d.samples = append(d.samples, dragSample{at: at, offset: offset})
	cut := 0
	for cut < len(d.samples)-1 && at.Sub(d.samples[cut].at) > dragWindow {
		cut++
	}
	d.samples = d.samples[cut:]
}

// velocity is the offset change per second across the samples inside the
// drag window.
func (d dragState) velocity(now time.Time) float64 {
	if len(d.samples) < 2 {
		return 0
	}
	first := d.samples[0]
	last := d.samples[len(d.samples)-1]
	dt := last.at.Sub(first.at).Seconds()
	if dt <= 0 {
		return 0
	}
	return (last.offset - first.offset) / dt
}

func (r *Root) applyDemo(d DemoState) {
	if r.card == nil || r.session == nil {
		return
	}
	item, ok := r.card.Item()
	if !ok {
		return
	}
	if d.Draft != "" {
		r.card.SetDraft(d.Draft)
		r.input.SetValue(r.card.Draft())
		r.input.CursorEnd()
	}
	switch d.Action {
	case "submit":
		r.card.Submit()
	case "retry":
		r.card.Retry()
	case "grade":
		r.onAdvance(item, strings.TrimSpace(r.card.Draft()), nil)
	}
	if d.HintOpen {
		r.hints.Press()
		if r.hints.Variant() == review.HintPopup {
			r.hintKeyHeld = true
		}
	}
}

func (r *Root) shakeColumns() int {
	if !r.shaking {
		return 0
	}
	elapsed := r.now().Sub(r.shakeStart)
	if elapsed >= shakeDuration {
		return 0
	}
	pos := float64(elapsed) / float64(shakeDuration) * float64(len(shakeKeyframes)-1)
	i := int(pos)
	frac := pos - float64(i)
	v := shakeKeyframes[i]
	if i+1 < len(shakeKeyframes) {
		v += (shakeKeyframes[i+1] - v) * frac
	}
	return int(math.Round(v * 2 / 5))
}

func (r *Root) renderReview() string {
	cols, rows := r.cols, r.rows
	if r.layout == LayoutTooSmall {
		return r.renderTooSmall()
	}
	lines := make([]string, rows)
	for i := range lines {
		lines[i] = strings.Repeat(" ", cols)
	}

	stats := queue.Stats{}
	if r.session != nil {
		stats = r.session.Stats()
	}
	lines[0] = r.headerBar("hakubun · Reviews", fmt.Sprintf("%d remaining · %d%%", stats.Remaining, stats.Accuracy()))
	done := max(0, r.reviewTotal-stats.Remaining)
	frac := 0.0
	if r.reviewTotal > 0 {
		frac = float64(done) / float64(r.reviewTotal)
	}
	barW := min(40, max(10, cols-40))
	r.sessionBar.SetWidth(barW)
	counts := fmt.Sprintf("%d/%d  %s %d  %s %d", done, r.reviewTotal,
		r.theme.Pass.Render(r.glyph("✓", "+")), stats.Correct, r.theme.Fail.Render(r.glyph("✗", "x")), stats.Incorrect)
	lines[1] = padCells("  "+r.sessionBar.ViewAs(frac)+"  "+counts, cols)

	cardY := 3
	cardW := min(40, cols-8)
	item, hasItem := review.Item{}, false
	if r.card != nil {
		item, hasItem = r.card.Item()
	}
	r.cardBox = rect{}
	if hasItem {
		cardLines := r.cardLines(item, cardW)
		shift := int(math.Round(r.card.Offset() / float64(r.unitsPerCell)))
		baseX := (cols-cardW)/2 + shift
		tilt := math.Tan(r.card.Rotation() * math.Pi / 180)
		mid := float64(cardHeight-1) / 2
		for i, line := range cardLines {
			dx := int(math.Round((mid - float64(i)) * tilt * 2))
			lines[cardY+i] = placeLine(line, baseX+dx, cols)
		}
		r.cardBox = rect{x: baseX, y: cardY, w: cardW, h: cardHeight}
	}

	inputY := cardY + cardHeight + 1
	inputW := min(cardW, cols-10)
	boxX := (cols-inputW)/2 + r.shakeColumns()
	for i, line := range r.inputLines(item, inputW) {
		lines[inputY+i] = placeLine(line, boxX, cols)
	}
	button := "[?]"
	if r.hints.Visible() {
		button = r.theme.Accent.Render(button)
	} else {
		button = r.theme.Muted.Render(button)
	}
	r.hintButton = rect{x: boxX + inputW + 1, y: inputY + 1, w: 3, h: 1}
	lines[inputY+1] = overlayLine(lines[inputY+1], button, r.hintButton.x, cols)

	if r.hints.Variant() == review.HintPopup && r.hintPos > 0.001 {
		panel := r.hintPanelLines(inputW)
		shown := int(math.Ceil(r.hintPos * float64(len(panel))))
		y := inputY + 3
		for i := 0; i < shown && i < len(panel) && y+i < rows-2; i++ {
			lines[y+i] = overlayLine(lines[y+i], panel[i], boxX, cols)
		}
	}

	lines[rows-2] = padCells(" "+r.reviewStatus(item, hasItem), cols)
	r.help.SetWidth(cols - 2)
	lines[rows-1] = padCells(" "+r.help.View(r.reviewKeys), cols)
	return strings.Join(lines, "\n")
}

func (r *Root) cardLines(item review.Item, width int) []string {
	inner := width - 2
	b := r.borders()
	border := r.theme.PanelBorder
	switch {
	case item.Submitted && item.Correct:
		border = r.theme.Pass
	case item.Submitted:
		border = r.theme.Fail
	}
	title := fmt.Sprintf(" %s · Lv %d ", subjectTitle(item.SubjectType), item.Level)
	title = trimForWidth(title, max(1, inner-2))
	top := border.Render(b.tl+b.h) + r.theme.PanelTitle.Render(title) +
		border.Render(strings.Repeat(b.h, max(0, inner-1-lipgloss.Width(title)))+b.tr)

	retry, advance := r.card.Overlay()
	overlayRow := r.overlayLabel(r.glyph("← RETRY", "< RETRY"), retry) + strings.Repeat(" ", max(0, inner-16)) +
		r.overlayLabel(r.glyph("NEXT →", "NEXT >"), advance)

	prompt := fmt.Sprintf(" %s %s ", subjectTitle(item.SubjectType), reviewTitle(item.ReviewType))
	promptStyle := r.theme.Meaning
	if item.ReviewType == review.ReviewReading {
		promptStyle = r.theme.Reading
	}

	result := ""
	if item.Submitted && item.Correct {
		result = r.theme.Pass.Render(r.glyph("✓ Correct", "OK Correct"))
	} else if item.Submitted {
		result = r.theme.Fail.Render(r.glyph("✗ Incorrect", "X Incorrect"))
	}

	body := []string{
		" " + overlayRow,
		"",
		r.theme.CardChars.Render(item.Characters),
		"",
		promptStyle.Render(prompt),
		"",
		result,
	}
	out := make([]string, 0, cardHeight)
	out = append(out, top)
	for i, line := range body {
		if i == 0 {
			line = padCells(line, inner)
		} else {
			line = centerCells(line, inner)
		}
		out = append(out, border.Render(b.v)+line+border.Render(b.v))
	}
	out = append(out, border.Render(b.bl+strings.Repeat(b.h, inner)+b.br))
	return out
}

// overlayLabel styles a swipe label by its overlay opacity.
func (r *Root) overlayLabel(label string, opacity float64) string {
	w := lipgloss.Width(label)
	switch {
	case opacity < 0.05:
		return strings.Repeat(" ", w)
	case opacity < 0.5:
		return r.theme.Muted.Render(label)
	case strings.Contains(label, "RETRY"):
		return r.theme.Fail.Render(label)
	default:
		return r.theme.Pass.Render(label)
	}
}

func (r *Root) inputLines(item review.Item, width int) []string {
	b := r.borders()
	border := r.theme.PanelBorder
	switch {
	case item.Submitted && item.Correct:
		border = r.theme.Pass
	case item.Submitted:
		border = r.theme.Fail
	}
	inner := width - 2
	r.input.SetWidth(max(1, inner-2))
	return []string{
		border.Render(b.tl + strings.Repeat(b.h, inner) + b.tr),
		border.Render(b.v) + " " + padCells(r.input.View(), inner-2) + " " + border.Render(b.v),
		border.Render(b.bl + strings.Repeat(b.h, inner) + b.br),
	}
}

func (r *Root) hintPanelLines(width int) []string {
	var body []string
	for _, line := range r.hints.Lines() {
		body = append(body, wrapText(line, width-4)...)
	}
	for i := range body {
		body[i] = " " + body[i]
	}
	return strings.Split(r.drawPanel("Accepted answers", body, width, len(body)+2), "\n")
}

func (r *Root) reviewStatus(item review.Item, ok bool) string {
	if r.statusFlash != "" {
		return r.theme.Pending.Render(trimForWidth(r.statusFlash, r.cols-2))
	}
	if !ok {
		return ""
	}
	if item.Submitted {
		return r.theme.Muted.Render("Enter or swipe right for the next item, Ctrl+← to retry")
	}
	if item.ReviewType == review.ReviewReading {
		return r.theme.Muted.Render("Type the reading in romaji or kana")
	}
	return r.theme.Muted.Render("Type the meaning")
}

func (r *Root) headerBar(left, right string) string {
	w := max(1, r.cols-2)
	gap := w - lipgloss.Width(left) - lipgloss.Width(right)
	text := left
	if gap > 0 {
		text = left + strings.Repeat(" ", gap) + right
	}
	return r.theme.Header.Width(r.cols).Render(trimForWidth(text, w))
}

func (r *Root) glyph(unicode, ascii string) string {
	if r.ascii {
		return ascii
	}
	return unicode
}

func (r *Root) renderTooSmall() string {
	msg := []string{
		"",
		" Terminal too small.",
		fmt.Sprintf(" Need at least %dx%d, have %dx%d.", minCols, minRows, r.cols, r.rows),
		"",
		" Esc: home   Ctrl+Q: quit",
	}
	w := min(r.cols, 50)
	h := min(r.rows, len(msg)+2)
	return composeOverlay("", r.drawPanel("hakubun", msg, w, h), r.cols, r.rows)
}

func subjectTitle(t review.SubjectType) string {
	switch t {
	case review.SubjectRadical:
		return "Radical"
	case review.SubjectKanji:
		return "Kanji"
	case review.SubjectKanaVocabulary:
		return "Kana Vocabulary"
	default:
		return "Vocabulary"
	}
}

func reviewTitle(t review.ReviewType) string {
	if t == review.ReviewReading {
		return "Reading"
	}
	return "Meaning"
}
