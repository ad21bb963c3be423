package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/gazetrace/internal/trace"
	"github.com/fakeyudi/gazetrace/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view <trace>",
	Short: "View a recorded gaze trace (.xml, .json or .yaml)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", path)
			}
			return err
		}

		doc, err := trace.ParserFor(path).Parse(data)
		if err != nil {
			return err
		}

		if plainOutput || !term.IsTerminal(os.Stdout.Fd()) {
			printTrace(cmd.OutOrStdout(), doc)
			return nil
		}
		return tui.Run(doc, path)
	},
}

// printTrace writes a plain-text summary of doc to w.
func printTrace(w io.Writer, doc *trace.Document) {
	s := doc.Settings
	st := tui.Summarize(doc)

	fmt.Fprintln(w, "## Summary")
	fmt.Fprintf(w, "  Project:   %s\n", s.ProjectPath)
	fmt.Fprintf(w, "  File:      %s\n", s.FilePath)
	fmt.Fprintf(w, "  Host:      %s\n", s.IDE)
	if s.Participant != "" {
		fmt.Fprintf(w, "  Participant: %s\n", s.Participant)
	}
	if s.StartedAt != "" {
		fmt.Fprintf(w, "  Started:   %s\n", s.StartedAt)
	}
	fmt.Fprintf(w, "  Gazes:     %d\n", st.Total)
	fmt.Fprintf(w, "  Hits:      %d (%.0f%%)\n", st.Hits, st.HitRate()*100)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Token Types")
	printCounts(w, st.Types)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Words")
	printCounts(w, st.Words)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Failures")
	printCounts(w, st.Remarks)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Gazes")
	if len(doc.Entries) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, e := range doc.Entries {
		if e.Failed() {
			fmt.Fprintf(w, "  %d. t=%.3f %s\n", e.Seq, float64(e.Timestamp), e.Remark)
			continue
		}
		line := fmt.Sprintf("  %d. t=%.3f %d:%d %q", e.Seq, float64(e.Timestamp), e.Location.Line, e.Location.Column, e.Location.Word)
		if e.AST != nil && len(e.AST.Levels) > 0 {
			tags := make([]string, len(e.AST.Levels))
			for i, lv := range e.AST.Levels {
				tags[i] = lv.Tag
			}
			line += " " + strings.Join(tags, " < ")
		}
		fmt.Fprintln(w, line)
	}
}

func printCounts(w io.Writer, counts []tui.Count) {
	if len(counts) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, c := range counts {
		fmt.Fprintf(w, "  %-28s %d\n", c.Key, c.N)
	}
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of TUI")
	rootCmd.AddCommand(viewCmd)
}
