package tui

import (
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/mattn/go-runewidth"

	"github.com/jmylchreest/scatter/internal/config"
	"github.com/jmylchreest/scatter/internal/emote"
	"github.com/jmylchreest/scatter/internal/overlay"
)

// One terminal cell covers CellWidth x CellHeight viewport pixels, so pixel
// based styles keep their proportions on a terminal.
const (
	CellWidth  = 8
	CellHeight = 16

	maxTextCells = 40  // Wrap width for message text
	boldFontSize = 20  // Font sizes at or above this render bold
	outlineAlpha = 0.5 // Outline color strength
)

// ErrUnknownRenderable is returned for handles the canvas does not own.
var ErrUnknownRenderable = errors.New("unknown renderable")

type itemKind int

const (
	kindMessage itemKind = iota
	kindOutline
)

type fade struct {
	start time.Time
	dur   time.Duration
	in    bool
}

// glyph is one laid-out rune of a message.
type glyph struct {
	r      rune
	sender bool
}

type item struct {
	kind    itemKind
	seq     uint64
	content overlay.Content
	lines   [][]glyph
	cols    int // Text width in cells, excluding padding
	padX    int
	pos     overlay.Point
	placed  bool
	rect    overlay.Rect // Outline rectangle in pixels
	fade    *fade        // Nil until the message starts fading in
}

// Canvas is an in-memory overlay.Surface that lays messages out on a
// terminal cell grid. It is safe for concurrent use: the engine mutates it
// from the event loop while the terminal program renders it.
type Canvas struct {
	mu      sync.Mutex
	items   map[overlay.Renderable]*item
	next    overlay.Renderable
	styles  config.Styles
	changed chan struct{}
	now     func() time.Time
}

var (
	_ overlay.Surface     = (*Canvas)(nil)
	_ overlay.StyleSetter = (*Canvas)(nil)
)

// NewCanvas creates an empty canvas.
func NewCanvas() *Canvas {
	return &Canvas{
		items:   make(map[overlay.Renderable]*item),
		styles:  config.DefaultStyles(),
		changed: make(chan struct{}, 1),
		now:     time.Now,
	}
}

// Changes is signalled whenever the canvas content changes.
func (c *Canvas) Changes() <-chan struct{} {
	return c.changed
}

func (c *Canvas) notify() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

// Attach lays out a message without showing it.
func (c *Canvas) Attach(content overlay.Content) (overlay.Renderable, error) {
	lines, cols := layout(content.Sender, emote.Plain(content.Segments), maxTextCells)
	padX := int(math.Round(float64(content.Styles.Padding) / CellWidth))
	if content.Styles.Padding > 0 {
		padX = max(padX, 1)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.next++
	c.items[c.next] = &item{
		kind:    kindMessage,
		seq:     uint64(c.next),
		content: content,
		lines:   lines,
		cols:    cols,
		padX:    padX,
	}
	return c.next, nil
}

// Measure returns the message size in viewport pixels.
func (c *Canvas) Measure(r overlay.Renderable) (overlay.Size, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[r]
	if !ok || it.kind != kindMessage {
		return overlay.Size{}, ErrUnknownRenderable
	}
	if len(it.lines) == 0 {
		return overlay.Size{}, nil
	}
	return overlay.Size{
		Width:  (it.cols + 2*it.padX) * CellWidth,
		Height: len(it.lines) * CellHeight,
	}, nil
}

// Place positions a message.
func (c *Canvas) Place(r overlay.Renderable, p overlay.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[r]
	if !ok {
		return ErrUnknownRenderable
	}
	it.pos = p
	it.placed = true
	return nil
}

// FadeIn starts showing a message.
func (c *Canvas) FadeIn(r overlay.Renderable, d time.Duration) {
	c.setFade(r, d, true)
}

// FadeOut starts hiding a message.
func (c *Canvas) FadeOut(r overlay.Renderable, d time.Duration) {
	c.setFade(r, d, false)
}

func (c *Canvas) setFade(r overlay.Renderable, d time.Duration, in bool) {
	c.mu.Lock()
	if it, ok := c.items[r]; ok {
		it.fade = &fade{start: c.now(), dur: d, in: in}
	}
	c.mu.Unlock()
	c.notify()
}

// Outline draws a dashed rectangle around a footprint.
func (c *Canvas) Outline(rect overlay.Rect) (overlay.Renderable, error) {
	c.mu.Lock()
	c.next++
	r := c.next
	c.items[r] = &item{kind: kindOutline, seq: uint64(r), rect: rect}
	c.mu.Unlock()

	c.notify()
	return r, nil
}

// Release removes a renderable. Unknown handles are ignored.
func (c *Canvas) Release(r overlay.Renderable) {
	c.mu.Lock()
	_, ok := c.items[r]
	delete(c.items, r)
	c.mu.Unlock()

	if ok {
		c.notify()
	}
}

// SetStyles records the current overlay styles.
func (c *Canvas) SetStyles(s config.Styles) {
	c.mu.Lock()
	c.styles = s
	c.mu.Unlock()
	c.notify()
}

// Styles returns the most recently applied overlay styles.
func (c *Canvas) Styles() config.Styles {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.styles
}

// Len returns the number of live renderables, including outlines.
func (c *Canvas) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Animating reports whether any message is mid-fade.
func (c *Canvas) Animating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, it := range c.items {
		if it.fade != nil && now.Before(it.fade.start.Add(it.fade.dur)) {
			return true
		}
	}
	return false
}

// opacity returns how visible the item is at now, from 0 to 1.
func (it *item) opacity(now time.Time) float64 {
	if it.kind == kindOutline {
		return 1
	}
	if it.fade == nil || !it.placed {
		return 0
	}

	progress := 1.0
	if it.fade.dur > 0 {
		progress = float64(now.Sub(it.fade.start)) / float64(it.fade.dur)
		progress = max(0, min(1, progress))
	}
	if it.fade.in {
		return progress
	}
	return 1 - progress
}

// layout wraps "sender: text" to at most width cells.
func layout(sender, text string, width int) ([][]glyph, int) {
	var glyphs []glyph
	for _, r := range sender + ":" {
		glyphs = append(glyphs, glyph{r: r, sender: true})
	}
	glyphs = append(glyphs, glyph{r: ' '})
	for _, r := range text {
		glyphs = append(glyphs, glyph{r: r})
	}

	var (
		lines [][]glyph
		line  []glyph
		used  int
		cols  int
	)
	flush := func() {
		// Drop trailing spaces left by the wrap point.
		for len(line) > 0 && line[len(line)-1].r == ' ' {
			used--
			line = line[:len(line)-1]
		}
		lines = append(lines, line)
		cols = max(cols, used)
		line, used = nil, 0
	}

	for _, g := range glyphs {
		w := runewidth.RuneWidth(g.r)
		if w == 0 {
			continue
		}
		if used+w > width {
			flush()
			if g.r == ' ' {
				continue
			}
		}
		line = append(line, g)
		used += w
	}
	if len(line) > 0 {
		flush()
	}
	return lines, cols
}

// cell is one terminal cell of a rendered frame.
type cell struct {
	r     rune // 0 marks the right half of a wide rune
	style int
}

// palette interns lipgloss styles by their color and weight.
type palette struct {
	styles []lipgloss.Style
	index  map[string]int
}

func newPalette() *palette {
	return &palette{styles: []lipgloss.Style{lipgloss.NewStyle()}, index: map[string]int{"": 0}}
}

func (p *palette) get(fg, bg string, bold bool) int {
	k := fg + "|" + bg
	if bold {
		k += "|b"
	}
	if i, ok := p.index[k]; ok {
		return i
	}
	s := lipgloss.NewStyle().Bold(bold)
	if fg != "" {
		s = s.Foreground(lipgloss.Color(fg))
	}
	if bg != "" {
		s = s.Background(lipgloss.Color(bg))
	}
	p.styles = append(p.styles, s)
	p.index[k] = len(p.styles) - 1
	return len(p.styles) - 1
}

// fadeColor blends hex toward black by alpha. Invalid colors fall back to fallback.
func fadeColor(hex, fallback string, alpha float64) string {
	c, err := colorful.Hex(hex)
	if err != nil {
		c, _ = colorful.Hex(fallback)
	}
	return colorful.Color{}.BlendRgb(c, alpha).Clamped().Hex()
}

// Render draws the canvas into a cols x rows block of text.
func (c *Canvas) Render(cols, rows int) string {
	if cols <= 0 || rows <= 0 {
		return ""
	}

	c.mu.Lock()
	now := c.now()
	items := make([]*item, 0, len(c.items))
	for _, it := range c.items {
		items = append(items, it)
	}
	c.mu.Unlock()

	// Outlines sit beneath messages; otherwise older items are drawn first.
	sort.Slice(items, func(i, j int) bool {
		if items[i].kind != items[j].kind {
			return items[i].kind == kindOutline
		}
		return items[i].seq < items[j].seq
	})

	grid := make([][]cell, rows)
	for y := range grid {
		grid[y] = make([]cell, cols)
		for x := range grid[y] {
			grid[y][x] = cell{r: ' '}
		}
	}
	pal := newPalette()

	for _, it := range items {
		switch it.kind {
		case kindOutline:
			drawOutline(grid, it.rect, pal.get(fadeColor("#ff0000", "#ff0000", outlineAlpha), "", false))
		case kindMessage:
			drawMessage(grid, it, it.opacity(now), pal)
		}
	}

	var b strings.Builder
	for y, row := range grid {
		if y > 0 {
			b.WriteByte('\n')
		}
		var run strings.Builder
		style := -1
		for _, cl := range row {
			if cl.r == 0 {
				continue
			}
			if cl.style != style && run.Len() > 0 {
				b.WriteString(pal.styles[style].Render(run.String()))
				run.Reset()
			}
			style = cl.style
			run.WriteRune(cl.r)
		}
		if run.Len() > 0 {
			b.WriteString(pal.styles[style].Render(run.String()))
		}
	}
	return b.String()
}

func drawOutline(grid [][]cell, rect overlay.Rect, style int) {
	x0 := floorDiv(rect.X, CellWidth)
	y0 := floorDiv(rect.Y, CellHeight)
	x1 := ceilDiv(rect.X+rect.Width, CellWidth) - 1
	y1 := ceilDiv(rect.Y+rect.Height, CellHeight) - 1

	set := func(x, y int, r rune) {
		if y >= 0 && y < len(grid) && x >= 0 && x < len(grid[y]) {
			grid[y][x] = cell{r: r, style: style}
		}
	}
	for x := x0 + 1; x < x1; x++ {
		set(x, y0, '╌')
		set(x, y1, '╌')
	}
	for y := y0 + 1; y < y1; y++ {
		set(x0, y, '╎')
		set(x1, y, '╎')
	}
	set(x0, y0, '┌')
	set(x1, y0, '┐')
	set(x0, y1, '└')
	set(x1, y1, '┘')
}

func drawMessage(grid [][]cell, it *item, alpha float64, pal *palette) {
	if alpha <= 0 {
		return
	}

	s := it.content.Styles
	def := config.DefaultStyles()
	bold := s.FontSize >= boldFontSize
	bg := fadeColor(s.BgColor, def.BgColor, s.BgOpacity*alpha)
	text := pal.get(fadeColor(s.TextColor, def.TextColor, alpha), bg, bold)
	sender := pal.get(fadeColor(s.UsernameColor, def.UsernameColor, alpha), bg, true)
	fill := pal.get("", bg, false)

	col0 := floorDiv(it.pos.X, CellWidth)
	row0 := floorDiv(it.pos.Y, CellHeight)
	width := it.cols + 2*it.padX

	for i, line := range it.lines {
		y := row0 + i
		if y < 0 || y >= len(grid) {
			continue
		}
		row := grid[y]
		for x := col0; x < col0+width; x++ {
			if x >= 0 && x < len(row) {
				row[x] = cell{r: ' ', style: fill}
			}
		}

		x := col0 + it.padX
		for _, g := range line {
			w := runewidth.RuneWidth(g.r)
			style := text
			if g.sender {
				style = sender
			}
			switch {
			case x < 0 || x+w > len(row):
			case w == 2:
				row[x] = cell{r: g.r, style: style}
				row[x+1] = cell{r: 0, style: style}
			default:
				row[x] = cell{r: g.r, style: style}
			}
			x += w
		}
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int {
	return -floorDiv(-a, b)
}
