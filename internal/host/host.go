// Package host declares the capabilities gazetrace needs from the editing
// environment it runs against. Adapters live in subpackages.
package host

import "image"

// Position is a zero-based logical line and rune column.
type Position struct {
	Line   int
	Column int
}

// Document is read access to the text shown in a view.
// Offsets are byte offsets into Text.
type Document interface {
	Path() string
	Text() string
	Len() int
	PositionToOffset(p Position) int
	OffsetToPosition(offset int) Position
}

// View is an on-screen editor for one document.
type View interface {
	Document() Document
	// ScreenOrigin is the view's top-left corner in screen pixels.
	// ok is false when the view is not realized on screen.
	ScreenOrigin() (origin image.Point, ok bool)
	// VisibleArea is the visible content rectangle in view-local pixels.
	VisibleArea() image.Rectangle
	// PositionAt converts a view-local point to a logical position.
	PositionAt(local image.Point) Position
}

// ViewProvider yields the view the user is currently looking at.
type ViewProvider interface {
	ActiveView() (View, bool)
}

// ScreenProvider lists monitors in virtual desktop coordinates.
type ScreenProvider interface {
	Monitors() []image.Rectangle
}

// StaticScreens is a fixed monitor layout.
type StaticScreens []image.Rectangle

func (s StaticScreens) Monitors() []image.Rectangle { return s }

// Highlighter is implemented by views that can mark a byte range.
type Highlighter interface {
	Highlight(start, end int) (Highlight, error)
}

// Highlight is a live visual mark. Release removes it.
type Highlight interface {
	Release()
}

// Node is one syntax tree node.
type Node interface {
	Text() string
	Kind() string
	// Range is the node's [start, end) byte span in the document.
	Range() (start, end int)
	Parent() (Node, bool)
	// IsRoot reports whether the node is the whole-document root.
	IsRoot() bool
}

// SyntaxProvider finds the innermost node covering an offset.
type SyntaxProvider interface {
	LeafAt(doc Document, offset int) (Node, bool)
}
