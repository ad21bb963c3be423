package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/gazetrace/internal/config"
	"github.com/fakeyudi/gazetrace/internal/logging"
	"github.com/fakeyudi/gazetrace/internal/profile"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// globalCfg is the global layer alone, re-merged under project reloads.
var globalCfg *config.Config

// activeProfile holds the loaded participant profile.
var activeProfile *profile.Profile

var (
	logger   = logging.Discard()
	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:          "gazetrace",
	Short:        "Map eye-tracker gaze onto source code and record it as a trace",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// First-run: profile missing → run setup wizard automatically.
		// Only do this when stdin is an interactive terminal.
		if !profile.Exists() && term.IsTerminal(os.Stdin.Fd()) {
			cmd.Println()
			cmd.Println("  Welcome to gazetrace! Looks like this is your first time.")
			if err := runSetup(cmd, true); err != nil {
				return err
			}
		}

		activeProfile = nil
		if profile.Exists() {
			p, err := profile.Load()
			if err != nil {
				return fmt.Errorf("loading profile: %w", err)
			}
			activeProfile = p
		}

		global, err := config.LoadGlobal()
		if err != nil {
			return fmt.Errorf("loading global config: %w", err)
		}
		project, err := config.LoadProject()
		if err != nil {
			return fmt.Errorf("loading project config: %w", err)
		}
		globalCfg = global
		cfg = config.Merge(global, project)

		// Profile values fill in config gaps; the environment wins over both.
		if activeProfile != nil {
			activeProfile.Apply(&cfg)
		}
		cfg.ApplyEnv()
		if err := cfg.Validate(); err != nil {
			return err
		}

		return setupLogging(cfg.Log)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

func setupLogging(lc config.LogConfig) error {
	l, closer, err := logging.New(logging.Options{Level: lc.Level, Format: lc.Format, File: lc.File}, nil)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	logger, closeLog = l, closer
	slog.SetDefault(l)
	return nil
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

// GetProfile returns the active participant profile, nil if none.
func GetProfile() *profile.Profile {
	return activeProfile
}
