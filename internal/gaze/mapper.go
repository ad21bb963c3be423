// Package gaze maps fused gaze points onto the text of the active view.
package gaze

import (
	"image"
	"log/slog"
	"math"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"github.com/fakeyudi/gazetrace/internal/host"
	"github.com/fakeyudi/gazetrace/internal/logging"
	"github.com/fakeyudi/gazetrace/internal/protocol"
)

// Calibration is the pixel offset added after scaling normalized gaze.
type Calibration struct {
	OffsetX, OffsetY int
}

// Tolerance is how far outside the visible area a local point may fall and
// still count as inside, per axis.
type Tolerance struct {
	X, Y int
}

// Hit is a gaze point resolved to a document location.
type Hit struct {
	GX, GY     float64
	Timestamp  float64
	Screen     image.Point
	ViewOrigin image.Point
	Local      image.Point
	Document   host.Document
	Offset     int
	Position   host.Position
	Char       string
	Word       string
	WordStart  int
	WordEnd    int
}

// Options configures a Mapper.
type Options struct {
	Screens      host.ScreenProvider
	Views        host.ViewProvider
	MonitorIndex int
	Calibration  Calibration
	Tolerance    Tolerance
	// Highlight, when set, marks the word under each hit.
	Highlight *HighlightSlot
	Logger    *slog.Logger
}

// Mapper turns fused gaze points into hits. Map must be called from the
// context that owns the host's view state.
type Mapper struct {
	screens host.ScreenProvider
	views   host.ViewProvider
	monitor int
	tol     Tolerance
	slot    *HighlightSlot
	calib   atomic.Pointer[Calibration]
	log     *slog.Logger
}

func New(opts Options) *Mapper {
	m := &Mapper{
		screens: opts.Screens,
		views:   opts.Views,
		monitor: opts.MonitorIndex,
		tol:     opts.Tolerance,
		slot:    opts.Highlight,
		log:     logging.OrDiscard(opts.Logger).With("component", "mapper"),
	}
	c := opts.Calibration
	m.calib.Store(&c)
	return m
}

// SetCalibration replaces the calibration offsets for subsequent Map calls.
func (m *Mapper) SetCalibration(c Calibration) {
	m.calib.Store(&c)
}

func (m *Mapper) Calibration() Calibration {
	return *m.calib.Load()
}

// ToScreen converts normalized gaze to screen pixels on the configured monitor.
func (m *Mapper) ToScreen(gx, gy float64) (image.Point, error) {
	var monitors []image.Rectangle
	if m.screens != nil {
		monitors = m.screens.Monitors()
	}
	if m.monitor < 0 || m.monitor >= len(monitors) {
		return image.Point{}, fail(ReasonOffScreen, "monitor %d of %d", m.monitor, len(monitors))
	}
	if gx < 0 || gx > 1 || gy < 0 || gy > 1 {
		return image.Point{}, fail(ReasonOffScreen, "gaze (%g, %g) outside monitor %d", gx, gy, m.monitor)
	}
	b := monitors[m.monitor]
	c := m.Calibration()
	x := math.Round(float64(b.Min.X) + gx*float64(b.Dx()) + float64(c.OffsetX))
	y := math.Round(float64(b.Min.Y) + gy*float64(b.Dy()) + float64(c.OffsetY))
	return image.Pt(int(x), int(y)), nil
}

// Map resolves p against the active view. Failures are *MappingError.
func (m *Mapper) Map(p protocol.FusedPoint) (Hit, error) {
	if !p.Valid || math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return Hit{}, fail(ReasonNoDocumentPosition, "invalid gaze point")
	}

	var view host.View
	if m.views != nil {
		v, ok := m.views.ActiveView()
		if ok {
			view = v
		}
	}
	if view == nil {
		return Hit{}, ErrNoActiveView
	}

	screen, err := m.ToScreen(p.X, p.Y)
	if err != nil {
		return Hit{}, err
	}

	origin, ok := view.ScreenOrigin()
	if !ok {
		return Hit{}, fail(ReasonNoActiveView, "view not on screen")
	}
	local := screen.Sub(origin)

	// Half-open like image.Rectangle: Max is the first pixel outside.
	area := view.VisibleArea()
	if local.X < area.Min.X-m.tol.X || local.X >= area.Max.X+m.tol.X ||
		local.Y < area.Min.Y-m.tol.Y || local.Y >= area.Max.Y+m.tol.Y {
		return Hit{}, fail(ReasonOutOfBounds, "local %v outside %v", local, area)
	}

	doc := view.Document()
	if doc == nil {
		return Hit{}, fail(ReasonNoDocumentPosition, "view has no document")
	}
	pos := view.PositionAt(local)
	offset := doc.PositionToOffset(pos)
	text := doc.Text()
	if offset < 0 || offset >= len(text) {
		return Hit{}, fail(ReasonNoDocumentPosition, "offset %d outside document of length %d", offset, len(text))
	}

	r, size := utf8.DecodeRuneInString(text[offset:])
	start, end := wordBounds(text, offset)
	hit := Hit{
		GX:         p.X,
		GY:         p.Y,
		Timestamp:  p.Timestamp,
		Screen:     screen,
		ViewOrigin: origin,
		Local:      local,
		Document:   doc,
		Offset:     offset,
		Position:   pos,
		Char:       string(r),
		Word:       text[start:end],
		WordStart:  start,
		WordEnd:    end,
	}

	if m.slot != nil {
		if hl, ok := view.(host.Highlighter); ok {
			hs, he := start, end
			if hs == he {
				hs, he = offset, offset+size
			}
			if err := m.slot.Replace(hl, hs, he); err != nil {
				m.log.Debug("highlight failed", "error", err)
			}
		}
	}
	return hit, nil
}

// isIdentPart reports whether r can appear inside an identifier.
func isIdentPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// wordBounds expands from offset over identifier runes in both directions.
func wordBounds(text string, offset int) (int, int) {
	start := offset
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !isIdentPart(r) {
			break
		}
		start -= size
	}
	end := offset
	for end < len(text) {
		r, size := utf8.DecodeRuneInString(text[end:])
		if !isIdentPart(r) {
			break
		}
		end += size
	}
	return start, end
}
