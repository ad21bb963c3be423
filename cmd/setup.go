package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/gazetrace/internal/config"
	"github.com/fakeyudi/gazetrace/internal/profile"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Record participant, monitor and calibration defaults",
	Long: `Setup asks for the participant ID, trace format, output directory,
monitor index, calibration offset and realtime preference, stores them in the
profile and prints the session settings they resolve to.`,
	// No profile yet on a first run; skip the usual preflight.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetup(cmd, false)
	},
}

// runSetup runs the profile wizard on the command's streams, seeded from the
// stored profile when there is one.
func runSetup(cmd *cobra.Command, firstRun bool) error {
	if firstRun {
		cmd.Println()
		cmd.Println("  No participant profile found. A few questions before the first session.")
	}

	var existing *profile.Profile
	if profile.Exists() {
		if p, err := profile.Load(); err == nil {
			existing = p
		}
	}

	prof, err := profile.RunSetup(cmd.InOrStdin(), cmd.OutOrStdout(), existing)
	if err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}
	if err := profile.Save(prof); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}

	cfg := config.Defaults()
	prof.Apply(&cfg)
	cmd.Println("  ✓ Profile saved.")
	printResolved(cmd.OutOrStdout(), prof.Participant, &cfg)
	cmd.Println("  Run 'gazetrace start --file <source>' to begin a session.")
	cmd.Println()
	return nil
}

// printResolved shows what a session started with no config file would use.
func printResolved(w io.Writer, participant string, cfg *config.Config) {
	realtime := "off"
	if cfg.Realtime {
		realtime = "on"
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Participant:        %s\n", participant)
	fmt.Fprintf(w, "  Trace:              %s in %s\n", cfg.TraceFormat, cfg.OutputDir)
	fmt.Fprintf(w, "  Monitor:            %d\n", cfg.Screen.MonitorIndex)
	fmt.Fprintf(w, "  Calibration offset: (%d, %d) px\n", cfg.Calibration.OffsetX, cfg.Calibration.OffsetY)
	fmt.Fprintf(w, "  Realtime feed:      %s\n", realtime)
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
