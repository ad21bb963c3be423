package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/fakeyudi/gazetrace/internal/trace"
)

func sampleTrace() *trace.Document {
	return &trace.Document{
		Settings: trace.Settings{ProjectPath: "/work/p", FilePath: "main.go", IDE: "gazetrace", Tracker: trace.ToolName},
		Entries: []trace.Entry{
			{
				Seq: 1, Timestamp: 1.5,
				Location: &trace.Location{Line: 0, Column: 10, Word: "main", Char: "i", Path: "main.go"},
				AST: &trace.AST{Token: "main", Type: "Ident", Levels: []trace.Level{
					{Tag: "Ident", Text: "main", Start: 8, End: 12},
					{Tag: "File", Start: 0, End: 29},
				}},
			},
			{Seq: 2, Timestamp: 2.5, Remark: "Fail | Mapping: off-screen"},
		},
	}
}

func TestViewPlainEachFormat(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	renderers := map[string]trace.Renderer{
		"xml":  &trace.XMLRenderer{},
		"json": &trace.JSONRenderer{},
		"yaml": &trace.YAMLRenderer{},
	}
	for name, r := range renderers {
		t.Run(name, func(t *testing.T) {
			data, err := r.Render(sampleTrace())
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			path := filepath.Join(dir, "eye_tracking"+r.Ext())
			if err := os.WriteFile(path, data, 0o644); err != nil {
				t.Fatal(err)
			}

			out, err := executeCommand(rootCmd, "view", "--plain", path)
			if err != nil {
				t.Fatalf("view: %v", err)
			}
			for _, want := range []string{
				"File:      main.go",
				"Hits:      1 (50%)",
				"Ident",
				"Fail | Mapping: off-screen",
				`1. t=1.500 0:10 "main" Ident < File`,
			} {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestViewMissingFile(t *testing.T) {
	isolate(t)
	_, err := executeCommand(rootCmd, "view", "--plain", filepath.Join(t.TempDir(), "nope.xml"))
	if err == nil || !strings.Contains(err.Error(), "file not found") {
		t.Fatalf("expected file not found, got %v", err)
	}
}

// Feature: gazetrace, Property: plain view lists every gaze once, in order
func TestPrintTraceListsEveryEntry(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(rt, "n")
		doc := &trace.Document{Settings: trace.Settings{FilePath: "x.go"}}
		for i := 0; i < n; i++ {
			e := trace.Entry{Seq: uint64(i + 1), Timestamp: trace.Float(i)}
			if rapid.Bool().Draw(rt, "hit") {
				e.Location = &trace.Location{Word: "w"}
			} else {
				e.Remark = "Fail | Mapping: out-of-bounds"
			}
			doc.Entries = append(doc.Entries, e)
		}

		var buf bytes.Buffer
		printTrace(&buf, doc)
		out := buf.String()
		gazes := out[strings.Index(out, "## Gazes"):]

		last := -1
		for i := 1; i <= n; i++ {
			idx := strings.Index(gazes, "\n  "+strconv.Itoa(i)+". t=")
			if idx < 0 || idx < last {
				rt.Fatalf("entry %d missing or out of order:\n%s", i, gazes)
			}
			last = idx
		}
	})
}
