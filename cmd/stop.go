package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/gazetrace/internal/api"
	"github.com/fakeyudi/gazetrace/internal/session"
)

var stopWait time.Duration

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running tracking session",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, s, err := liveSession()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		err = errors.New("no control address")
		if s.APIAddr != "" {
			err = api.NewClient(s.APIAddr).Stop(ctx)
		}
		cancel()
		if err != nil {
			logger.Warn("control API unreachable, signalling process", "pid", s.PID, "error", err)
			if err := signalStop(s.PID); err != nil {
				return fmt.Errorf("stopping pid %d: %w", s.PID, err)
			}
		}

		if stopWait <= 0 {
			cmd.Println("Stop requested.")
			return nil
		}
		if waitGone(store, stopWait) {
			cmd.Println("Session stopped.")
			return nil
		}
		cmd.Printf("Stop requested; session %s is still shutting down.\n", s.ID)
		return nil
	},
}

// liveSession loads the session owned by a running process.
func liveSession() (session.Store, *session.Session, error) {
	store, err := session.NewStore()
	if err != nil {
		return nil, nil, err
	}
	s, err := session.LoadLive(store)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return nil, nil, fmt.Errorf("no active session")
		}
		return nil, nil, err
	}
	return store, s, nil
}

func signalStop(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Signal(syscall.SIGTERM)
}

// waitGone polls until the session file disappears or timeout passes.
func waitGone(store session.Store, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := session.LoadLive(store); errors.Is(err, session.ErrNoSession) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func init() {
	stopCmd.Flags().DurationVar(&stopWait, "wait", 30*time.Second, "How long to wait for the trace to be written (0 returns at once)")
	rootCmd.AddCommand(stopCmd)
}
