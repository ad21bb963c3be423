package gaze

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/fakeyudi/gazetrace/internal/host"
	"github.com/fakeyudi/gazetrace/internal/host/stimulus"
	"github.com/fakeyudi/gazetrace/internal/protocol"
)

const testSource = "package main\n\nfunc main() {}\n"

// fixture: one 1000x1000 monitor, view at (100,100) sized 800x400,
// 20px lines, 10px characters, no padding.
func newFixture(t *testing.T, tol Tolerance) (*Mapper, *stimulus.View, *stimulus.Host) {
	t.Helper()
	doc := host.NewTextDocument("main.go", testSource)
	view, err := stimulus.NewView(doc, stimulus.Layout{
		Bounds:     image.Rect(100, 100, 900, 500),
		LineHeight: 20,
		CharWidth:  10,
	})
	if err != nil {
		t.Fatalf("NewView: %v", err)
	}
	h := stimulus.NewHost(view)
	m := New(Options{
		Screens:   host.StaticScreens{image.Rect(0, 0, 1000, 1000)},
		Views:     h,
		Tolerance: tol,
		Highlight: &HighlightSlot{},
	})
	return m, view, h
}

func point(x, y float64) protocol.FusedPoint {
	return protocol.FusedPoint{X: x, Y: y, Timestamp: 1, Valid: true}
}

func TestMapHit(t *testing.T) {
	m, view, _ := newFixture(t, Tolerance{Y: 40})

	hit, err := m.Map(point(0.1, 0.1))
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if hit.Screen != image.Pt(100, 100) || hit.ViewOrigin != image.Pt(100, 100) || hit.Local != image.Pt(0, 0) {
		t.Errorf("geometry: screen=%v origin=%v local=%v", hit.Screen, hit.ViewOrigin, hit.Local)
	}
	if hit.Offset != 0 || hit.Char != "p" || hit.Word != "package" {
		t.Errorf("text: offset=%d char=%q word=%q", hit.Offset, hit.Char, hit.Word)
	}
	if got := view.Highlights(); len(got) != 1 || got[0] != (stimulus.Span{Start: 0, End: 7}) {
		t.Errorf("highlights = %v", got)
	}

	// Second hit on line 2 "func main() {}", column 6 → "main".
	hit, err = m.Map(point(0.16, 0.14))
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if hit.Position != (host.Position{Line: 2, Column: 6}) || hit.Word != "main" {
		t.Errorf("second hit: pos=%+v word=%q", hit.Position, hit.Word)
	}
	if got := view.Highlights(); len(got) != 1 || got[0] != (stimulus.Span{Start: 19, End: 23}) {
		t.Errorf("previous highlight should be replaced, got %v", got)
	}
}

func TestMapFailures(t *testing.T) {
	cases := []struct {
		name  string
		tol   Tolerance
		setup func(m *Mapper, v *stimulus.View, h *stimulus.Host)
		point protocol.FusedPoint
		want  Reason
	}{
		{"invalid point", Tolerance{Y: 40}, nil,
			protocol.FusedPoint{X: math.NaN(), Y: math.NaN()}, ReasonNoDocumentPosition},
		{"nan with valid flag", Tolerance{Y: 40}, nil,
			protocol.FusedPoint{X: math.NaN(), Y: 0.2, Valid: true}, ReasonNoDocumentPosition},
		{"no active view", Tolerance{Y: 40},
			func(_ *Mapper, _ *stimulus.View, h *stimulus.Host) { h.SetView(nil) },
			point(0.1, 0.1), ReasonNoActiveView},
		{"beyond right edge of monitor", Tolerance{Y: 40}, nil, point(1.5, 0.2), ReasonOffScreen},
		{"negative gaze", Tolerance{Y: 40}, nil, point(-0.1, 0.2), ReasonOffScreen},
		{"monitor index out of range", Tolerance{Y: 40},
			func(m *Mapper, _ *stimulus.View, _ *stimulus.Host) { m.monitor = 3 },
			point(0.1, 0.1), ReasonOffScreen},
		{"view hidden", Tolerance{Y: 40},
			func(_ *Mapper, v *stimulus.View, _ *stimulus.Host) { v.SetHidden(true) },
			point(0.1, 0.1), ReasonNoActiveView},
		{"below view past margin", Tolerance{Y: 40}, nil, point(0.2, 0.55), ReasonOutOfBounds},
		{"right of view, no horizontal slack", Tolerance{Y: 40}, nil, point(0.95, 0.2), ReasonOutOfBounds},
		{"inside margin but past text", Tolerance{Y: 40}, nil, point(0.2, 0.53), ReasonNoDocumentPosition},
		{"strict bounds reject margin", Tolerance{}, nil, point(0.2, 0.52), ReasonOutOfBounds},
		{"right edge pixel is outside the view", Tolerance{}, nil, point(0.9, 0.1), ReasonOutOfBounds},
		{"bottom edge pixel is outside the view", Tolerance{}, nil, point(0.2, 0.5), ReasonOutOfBounds},
		{"past last line", Tolerance{Y: 40}, nil, point(0.2, 0.3), ReasonNoDocumentPosition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, v, h := newFixture(t, tc.tol)
			if tc.setup != nil {
				tc.setup(m, v, h)
			}
			_, err := m.Map(tc.point)
			if err == nil {
				t.Fatal("expected a mapping failure")
			}
			got, ok := ReasonOf(err)
			if !ok {
				t.Fatalf("expected *MappingError, got %T: %v", err, err)
			}
			if got != tc.want {
				t.Errorf("reason: want %s, got %s (%v)", tc.want, got, err)
			}
			if len(v.Highlights()) != 0 {
				t.Error("failed mapping must not highlight")
			}
		})
	}
}

func TestMappingErrorIs(t *testing.T) {
	err := fail(ReasonOffScreen, "gaze (1.5, 0.2)")
	if !errors.Is(err, ErrOffScreen) {
		t.Error("errors.Is should match on reason")
	}
	if errors.Is(err, ErrOutOfBounds) {
		t.Error("different reasons must not match")
	}
}

func TestCalibrationShiftsScreenPoint(t *testing.T) {
	m, _, _ := newFixture(t, Tolerance{Y: 40})
	m.SetCalibration(Calibration{OffsetX: 80, OffsetY: 80})

	p, err := m.ToScreen(0.5, 0.25)
	if err != nil {
		t.Fatalf("ToScreen: %v", err)
	}
	if p != image.Pt(580, 330) {
		t.Errorf("ToScreen = %v, want (580,330)", p)
	}
	if m.Calibration() != (Calibration{OffsetX: 80, OffsetY: 80}) {
		t.Errorf("Calibration = %+v", m.Calibration())
	}
}

func TestWordBounds(t *testing.T) {
	cases := []struct {
		text   string
		offset int
		want   string
	}{
		{"foo(bar)", 1, "foo"},
		{"foo(bar)", 3, "foo"}, // '(' still picks up the identifier before it
		{"foo(bar)", 5, "bar"},
		{"a + b", 2, ""},
		{"$x_1y", 2, "$x_1y"},
		{"héllo wörld", 7, "wörld"},
	}
	for _, tc := range cases {
		s, e := wordBounds(tc.text, tc.offset)
		if got := tc.text[s:e]; got != tc.want {
			t.Errorf("wordBounds(%q, %d) = %q, want %q", tc.text, tc.offset, got, tc.want)
		}
	}
}

type countingHighlight struct{ released *int }

func (c countingHighlight) Release() { *c.released++ }

type fakeHighlighter struct{ released int }

func (f *fakeHighlighter) Highlight(start, end int) (host.Highlight, error) {
	return countingHighlight{released: &f.released}, nil
}

func TestHighlightSlotReleasesPrevious(t *testing.T) {
	var slot HighlightSlot
	h := &fakeHighlighter{}
	for i := 0; i < 3; i++ {
		if err := slot.Replace(h, i, i+1); err != nil {
			t.Fatal(err)
		}
	}
	if h.released != 2 {
		t.Errorf("released = %d, want 2", h.released)
	}
	slot.Clear()
	if h.released != 3 {
		t.Errorf("after Clear released = %d, want 3", h.released)
	}
}
