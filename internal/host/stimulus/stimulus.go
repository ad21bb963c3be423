// Package stimulus is a host that shows one document on a fixed monospace
// grid at a known screen rectangle, the way code stimuli are presented in
// eye tracking studies.
package stimulus

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/fakeyudi/gazetrace/internal/host"
)

// Layout places the grid on screen.
type Layout struct {
	Bounds     image.Rectangle // view rectangle in screen pixels
	LineHeight int
	CharWidth  int
	Padding    image.Point // text inset from the view's top-left corner
}

// View renders a TextDocument on the grid.
type View struct {
	doc    *host.TextDocument
	layout Layout

	mu        sync.Mutex
	hidden    bool
	firstLine int
	marks     []*mark
}

// Span is a highlighted byte range.
type Span struct{ Start, End int }

type mark struct {
	view *View
	span Span
	once sync.Once
}

func (m *mark) Release() {
	m.once.Do(func() { m.view.drop(m) })
}

// NewView shows doc with layout.
func NewView(doc *host.TextDocument, layout Layout) (*View, error) {
	if layout.LineHeight <= 0 || layout.CharWidth <= 0 {
		return nil, fmt.Errorf("stimulus: line height and char width must be positive")
	}
	if layout.Bounds.Empty() {
		return nil, fmt.Errorf("stimulus: empty view bounds")
	}
	return &View{doc: doc, layout: layout}, nil
}

// Open reads path and shows it with layout.
func Open(path string, layout Layout) (*View, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stimulus: %w", err)
	}
	return NewView(host.NewTextDocument(path, string(data)), layout)
}

func (v *View) Document() host.Document { return v.doc }

// TextDocument exposes the concrete document for renderers.
func (v *View) TextDocument() *host.TextDocument { return v.doc }

func (v *View) Layout() Layout { return v.layout }

func (v *View) ScreenOrigin() (image.Point, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.hidden {
		return image.Point{}, false
	}
	return v.layout.Bounds.Min, true
}

func (v *View) VisibleArea() image.Rectangle {
	return image.Rectangle{Max: v.layout.Bounds.Size()}
}

// PositionAt maps a local point to the grid cell under it. Points left of or
// above the text clamp to column or line zero.
func (v *View) PositionAt(local image.Point) host.Position {
	v.mu.Lock()
	first := v.firstLine
	v.mu.Unlock()

	x := local.X - v.layout.Padding.X
	y := local.Y - v.layout.Padding.Y
	line, col := 0, 0
	if y > 0 {
		line = y / v.layout.LineHeight
	}
	if x > 0 {
		col = x / v.layout.CharWidth
	}
	return host.Position{Line: first + line, Column: col}
}

// VisibleLines is the number of whole lines that fit in the view.
func (v *View) VisibleLines() int {
	h := v.layout.Bounds.Dy() - v.layout.Padding.Y
	if h <= 0 {
		return 0
	}
	return h / v.layout.LineHeight
}

// ScrollTo makes line the first visible line.
func (v *View) ScrollTo(line int) {
	if line < 0 {
		line = 0
	}
	v.mu.Lock()
	v.firstLine = line
	v.mu.Unlock()
}

func (v *View) FirstLine() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.firstLine
}

// SetHidden toggles whether the view is realized on screen.
func (v *View) SetHidden(hidden bool) {
	v.mu.Lock()
	v.hidden = hidden
	v.mu.Unlock()
}

func (v *View) Highlight(start, end int) (host.Highlight, error) {
	if start < 0 || end > v.doc.Len() || start > end {
		return nil, fmt.Errorf("stimulus: highlight range [%d,%d) outside document", start, end)
	}
	m := &mark{view: v, span: Span{Start: start, End: end}}
	v.mu.Lock()
	v.marks = append(v.marks, m)
	v.mu.Unlock()
	return m, nil
}

func (v *View) drop(m *mark) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, cur := range v.marks {
		if cur == m {
			v.marks = append(v.marks[:i], v.marks[i+1:]...)
			return
		}
	}
}

// Highlights returns the live highlight spans, oldest first.
func (v *View) Highlights() []Span {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Span, len(v.marks))
	for i, m := range v.marks {
		out[i] = m.span
	}
	return out
}

// Host serves a single View as the active one.
type Host struct {
	mu   sync.Mutex
	view *View
}

func NewHost(v *View) *Host { return &Host{view: v} }

func (h *Host) ActiveView() (host.View, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.view == nil {
		return nil, false
	}
	return h.view, true
}

// SetView swaps the active view; nil means none.
func (h *Host) SetView(v *View) {
	h.mu.Lock()
	h.view = v
	h.mu.Unlock()
}
