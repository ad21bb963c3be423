package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/gazetrace/internal/tracker"
)

var (
	replayFile     string
	replayProject  string
	replayRealtime bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <log>",
	Short: "Run recorded tracker output through the pipeline and write a trace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetConfig()
		tgt, err := resolveTarget(c, replayProject, replayFile)
		if err != nil {
			return err
		}
		in, err := openReplay(args[0])
		if err != nil {
			return err
		}
		defer in.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		trk := newTracker(c, tgt, replayRealtime)
		defer trk.Close()
		pub, err := connectPublisher(c)
		if err != nil {
			return err
		}
		if pub != nil {
			defer pub.Close()
		}
		wireListeners(trk.Dispatcher(), cmd.OutOrStdout(), pub, nil)

		sess, _ := trk.Begin(tracker.Info{
			ProjectPath: tgt.project,
			FilePath:    tgt.file,
			IDE:         c.IDE,
			Participant: participant(),
		})
		trk.Consume(ctx, in)

		path, err := trk.End(context.Background())
		if err != nil {
			return err
		}
		st := sess.Stats()
		cmd.Printf("Replayed %d samples: %d recorded, %d dropped.\n", st.Received, st.Received-st.Dropped-st.Skipped, st.Dropped)
		if path != "" {
			cmd.Printf("Trace: %s\n", path)
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVarP(&replayFile, "file", "f", "", "Source file shown as the stimulus")
	replayCmd.Flags().StringVarP(&replayProject, "project", "p", "", "Project root (default: working directory)")
	replayCmd.Flags().BoolVar(&replayRealtime, "realtime", false, "Print each mapped gaze as it is recorded")
	rootCmd.AddCommand(replayCmd)
}
