package host

import (
	"sort"
	"unicode/utf8"
)

// TextDocument is an immutable in-memory Document.
type TextDocument struct {
	path  string
	text  string
	lines []int // byte offset of each line start
}

// NewTextDocument indexes text for position lookups.
func NewTextDocument(path, text string) *TextDocument {
	lines := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, i+1)
		}
	}
	return &TextDocument{path: path, text: text, lines: lines}
}

func (d *TextDocument) Path() string { return d.path }
func (d *TextDocument) Text() string { return d.text }
func (d *TextDocument) Len() int     { return len(d.text) }

// LineCount returns the number of logical lines.
func (d *TextDocument) LineCount() int { return len(d.lines) }

// Line returns line n without its terminator.
func (d *TextDocument) Line(n int) string {
	if n < 0 || n >= len(d.lines) {
		return ""
	}
	start, end := d.lineBounds(n)
	return d.text[start:end]
}

func (d *TextDocument) lineBounds(n int) (int, int) {
	start := d.lines[n]
	end := len(d.text)
	if n+1 < len(d.lines) {
		end = d.lines[n+1] - 1
	}
	if end > start && d.text[end-1] == '\r' {
		end--
	}
	return start, end
}

// PositionToOffset clamps p into the document. A column past the end of a
// line yields the line end; a line past the end yields Len().
func (d *TextDocument) PositionToOffset(p Position) int {
	if p.Line < 0 {
		return 0
	}
	if p.Line >= len(d.lines) {
		return len(d.text)
	}
	start, end := d.lineBounds(p.Line)
	off := start
	for col := 0; col < p.Column && off < end; col++ {
		_, size := utf8.DecodeRuneInString(d.text[off:end])
		off += size
	}
	return off
}

func (d *TextDocument) OffsetToPosition(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(d.text) {
		offset = len(d.text)
	}
	line := sort.Search(len(d.lines), func(i int) bool { return d.lines[i] > offset }) - 1
	return Position{Line: line, Column: utf8.RuneCountInString(d.text[d.lines[line]:offset])}
}
