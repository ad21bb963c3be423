package tracker

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/fakeyudi/gazetrace/internal/gaze"
	"github.com/fakeyudi/gazetrace/internal/syntax"
	"github.com/fakeyudi/gazetrace/internal/trace"
)

// FailurePrefix starts the remark of every failed mapping.
const FailurePrefix = "Fail | Mapping"

// maxLevelText bounds the node text kept per level.
const maxLevelText = 80

func failureRemark(err error) string {
	if r, ok := gaze.ReasonOf(err); ok {
		return FailurePrefix + ": " + string(r)
	}
	return FailurePrefix
}

func location(h gaze.Hit, project string) *trace.Location {
	path := ""
	if h.Document != nil {
		path = relativize(project, h.Document.Path())
	}
	return &trace.Location{
		ScreenX: h.Screen.X,
		ScreenY: h.Screen.Y,
		EditorX: h.ViewOrigin.X,
		EditorY: h.ViewOrigin.Y,
		LocalX:  h.Local.X,
		LocalY:  h.Local.Y,
		Line:    h.Position.Line,
		Column:  h.Position.Column,
		Offset:  h.Offset,
		Char:    h.Char,
		Word:    h.Word,
		Path:    path,
	}
}

func structure(tok syntax.Token) *trace.AST {
	if !tok.Found {
		return &trace.AST{Remark: tok.Remark}
	}
	a := &trace.AST{Token: tok.Text, Type: tok.Kind}
	for _, anc := range tok.Ancestors {
		a.Levels = append(a.Levels, trace.Level{
			Tag:   anc.Kind,
			Text:  clip(anc.Text, maxLevelText),
			Start: anc.Start,
			End:   anc.End,
		})
	}
	return a
}

// relativize strips the project directory from path when path lies inside it.
func relativize(project, path string) string {
	if project == "" || path == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(project, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// clip shortens s to at most n runes, marking the cut with an ellipsis.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
