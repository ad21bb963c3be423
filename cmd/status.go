package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/gazetrace/internal/api"
	"github.com/fakeyudi/gazetrace/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running tracking session",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.NewStore()
		if err != nil {
			return err
		}

		s, err := session.LoadLive(store)
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				cmd.Println("no active session")
				return nil
			}
			return err
		}

		cmd.Printf("Session: %s\n", s.ID)
		cmd.Printf("Project: %s\n", s.ProjectPath)
		cmd.Printf("File: %s\n", s.FilePath)
		if s.Participant != "" {
			cmd.Printf("Participant: %s\n", s.Participant)
		}
		cmd.Printf("Started: %s\n", s.StartTime.Format(time.RFC3339))
		cmd.Printf("Duration: %s\n", s.Elapsed(time.Now()).Round(time.Second).String())

		if s.APIAddr == "" {
			return nil
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
		defer cancel()
		st, err := api.NewClient(s.APIAddr).Status(ctx)
		if err != nil {
			cmd.Printf("Control API: unreachable (%v)\n", err)
			return nil
		}
		tracker := st.Supervisor
		if st.HostPort > 0 {
			tracker += fmt.Sprintf(" on port %d", st.HostPort)
		}
		if s.Replay {
			tracker = "replay"
		}
		cmd.Printf("Tracker: %s\n", tracker)
		cmd.Printf("Paused: %v\n", st.Paused)
		cmd.Printf("Realtime: %v\n", st.Realtime)
		cmd.Printf("Samples: %d received, %d dropped, %d skipped\n", st.Received, st.Dropped, st.Skipped)
		cmd.Printf("Entries: %d\n", st.Entries)
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Stop recording gaze until resumed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggle(cmd, (*api.Client).Pause, "Session paused.")
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume recording gaze",
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggle(cmd, (*api.Client).Resume, "Session resumed.")
	},
}

func toggle(cmd *cobra.Command, call func(*api.Client, context.Context) error, done string) error {
	_, s, err := liveSession()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if err := call(api.NewClient(s.APIAddr), ctx); err != nil {
		return err
	}
	cmd.Println(done)
	return nil
}

func init() {
	rootCmd.AddCommand(statusCmd, pauseCmd, resumeCmd)
}
