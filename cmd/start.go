package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fakeyudi/gazetrace/internal/api"
	"github.com/fakeyudi/gazetrace/internal/config"
	"github.com/fakeyudi/gazetrace/internal/dispatch"
	"github.com/fakeyudi/gazetrace/internal/docker"
	"github.com/fakeyudi/gazetrace/internal/publish"
	"github.com/fakeyudi/gazetrace/internal/session"
	"github.com/fakeyudi/gazetrace/internal/supervisor"
	"github.com/fakeyudi/gazetrace/internal/tracker"
	"github.com/fakeyudi/gazetrace/internal/tui"
)

// stopGrace bounds the whole teardown once a session is asked to stop.
const stopGrace = 30 * time.Second

var (
	startFile     string
	startProject  string
	startRealtime bool
	startLive     bool
	startNoDocker bool
	startReplay   string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run a tracking session in the foreground until stopped",
	RunE:  runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	store, err := session.NewStore()
	if err != nil {
		return err
	}
	if s, err := session.LoadLive(store); err == nil {
		cmd.Printf("session already in progress (pid %d, started %s)\n", s.PID, s.StartTime.Format(time.RFC3339))
		return nil
	} else if !errors.Is(err, session.ErrNoSession) {
		return err
	}
	if startNoDocker && startReplay == "" {
		return fmt.Errorf("--no-docker needs --replay <log>")
	}

	c := GetConfig()
	tgt, err := resolveTarget(c, startProject, startFile)
	if err != nil {
		return err
	}

	var replay io.ReadCloser
	if startReplay != "" {
		if replay, err = openReplay(startReplay); err != nil {
			return err
		}
	}

	if startLive && c.Log.File == "" {
		// The monitor owns the terminal; keep log lines off it.
		dir, err := session.DataDir()
		if err != nil {
			return err
		}
		lc := c.Log
		lc.File = filepath.Join(dir, "gazetrace.log")
		closeLog()
		if err := setupLogging(lc); err != nil {
			return err
		}
	}

	ctx, stopSignals := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var live *tui.Live
	if startLive {
		live = tui.NewLive(filepath.Base(tgt.file))
	}

	trk := newTracker(c, tgt, startRealtime || startLive)
	defer trk.Close()

	pub, err := connectPublisher(c)
	if err != nil {
		return err
	}
	if pub != nil {
		defer pub.Close()
	}
	wireListeners(trk.Dispatcher(), cmd.OutOrStdout(), pub, live)

	sess, _ := trk.Begin(tracker.Info{
		ProjectPath: tgt.project,
		FilePath:    tgt.file,
		IDE:         c.IDE,
		Participant: participant(),
	})

	var tracePath string
	end := func() error {
		p, err := trk.End(context.Background())
		if p != "" {
			tracePath = p
		}
		return err
	}

	var sup *supervisor.Supervisor
	if replay == nil {
		t := c.Tracker
		sup = supervisor.New(supervisor.Options{
			Runtime:        &docker.CLI{Logger: logger},
			ImageBase:      t.ImageBase,
			ContainerName:  t.ContainerName,
			ContainerPort:  t.ContainerPort,
			HostNetwork:    t.HostNetwork,
			ProbeTimeout:   t.ProbeTimeout,
			CleanupTimeout: t.CleanupTimeout,
			StopTimeout:    t.StopTimeout,
			Attach:         trk.Consume,
			OnStop:         end,
			OnExit: func(code int) {
				if live == nil {
					cmd.Printf("Tracker exited (code %d); ending session.\n", code)
				}
				cancel()
			},
			Logger: logger,
		})
		defer sup.Close()
	}

	ln, err := api.Listen(c.API.Addr)
	if err != nil {
		return fmt.Errorf("control API: %w", err)
	}
	srv := api.NewServer(&sessionController{trk: trk, sup: sup, stop: cancel}, logger)

	rec := &session.Session{
		ID:          sess.ID,
		StartTime:   sess.StartedAt,
		ProjectPath: tgt.project,
		FilePath:    tgt.file,
		OutputDir:   outputDir(c, tgt.project),
		TraceFormat: c.TraceFormat,
		Participant: participant(),
		PID:         os.Getpid(),
		APIAddr:     ln.Addr().String(),
		Replay:      replay != nil,
	}
	if err := store.Save(rec); err != nil {
		ln.Close()
		return err
	}
	defer store.Delete()

	if w := watchCalibration(ctx, tgt.project, trk); w != nil {
		defer w.Close()
	}

	if live == nil {
		cmd.Printf("Session %s started on %s.\n", sess.ID, tgt.file)
		cmd.Println("Press Ctrl+C or run 'gazetrace stop' to finish.")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx, ln) })
	if sup != nil {
		g.Go(func() error {
			if err := sup.Start(gctx); err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("starting tracker: %w", err)
			}
			if live == nil {
				cmd.Printf("Tracker running at http://localhost:%d\n", sup.HostPort())
			}
			return nil
		})
	} else {
		g.Go(func() error {
			defer replay.Close()
			trk.Consume(gctx, replay)
			cancel()
			return nil
		})
	}
	if live != nil {
		g.Go(func() error {
			go func() {
				<-gctx.Done()
				live.Quit()
			}()
			err := live.Run()
			cancel()
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, done := context.WithTimeout(context.Background(), stopGrace)
		defer done()
		var err error
		if sup != nil {
			err = sup.Stop(stopCtx)
		}
		// Ends the session when the supervisor had nothing to tear down.
		if e := end(); err == nil {
			err = e
		}
		return err
	})

	err = g.Wait()
	if tracePath != "" {
		cmd.Printf("Session stopped. Trace: %s\n", tracePath)
	} else {
		cmd.Println("Session stopped.")
	}
	return err
}

// openReplay opens a recorded tracker log; "-" reads stdin.
func openReplay(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, err
	}
	return f, nil
}

// connectPublisher returns nil when no NATS server is configured.
func connectPublisher(c config.Config) (*publish.Publisher, error) {
	if c.NATS.URL == "" {
		return nil, nil
	}
	pub, err := publish.Connect(c.NATS.URL, c.NATS.Token, c.NATS.Subject, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	return pub, nil
}

// wireListeners attaches the console printer (or the live monitor) and the
// NATS publisher to d.
func wireListeners(d *dispatch.Dispatcher, out io.Writer, pub *publish.Publisher, live *tui.Live) {
	var updates []dispatch.Listener
	var statuses []dispatch.StatusListener
	if live != nil {
		updates = append(updates, live.Listener())
		statuses = append(statuses, live.StatusListener())
	} else {
		updates = append(updates, dispatch.Printer(out))
	}
	if pub != nil {
		updates = append(updates, pub.Listener())
		statuses = append(statuses, pub.StatusListener())
	}
	d.SetListener(dispatch.Fanout(updates...))
	if len(statuses) > 0 {
		d.SetStatusListener(dispatch.FanoutStatus(statuses...))
	}
}

// watchCalibration reloads calibration offsets from the project config
// while the session runs. It returns nil when watching is unavailable.
func watchCalibration(ctx context.Context, project string, trk *tracker.Tracker) *config.Watcher {
	w := config.NewWatcher(filepath.Join(project, config.ProjectFile), globalCfg)
	w.OnChange(func(c config.Config) {
		if activeProfile != nil {
			activeProfile.Apply(&c)
		}
		cal := calibration(c)
		if cal == trk.Mapper().Calibration() {
			return
		}
		trk.Mapper().SetCalibration(cal)
		logger.Info("calibration reloaded", "offset_x", cal.OffsetX, "offset_y", cal.OffsetY)
	})
	if err := w.Start(); err != nil {
		logger.Warn("config watch unavailable", "error", err)
		return nil
	}
	go func() {
		for {
			select {
			case err := <-w.Errors():
				logger.Warn("config reload failed", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()
	return w
}

func init() {
	startCmd.Flags().StringVarP(&startFile, "file", "f", "", "Source file shown as the stimulus")
	startCmd.Flags().StringVarP(&startProject, "project", "p", "", "Project root (default: working directory)")
	startCmd.Flags().BoolVar(&startRealtime, "realtime", false, "Print each mapped gaze as it is recorded")
	startCmd.Flags().BoolVar(&startLive, "live", false, "Show a live monitor instead of console lines")
	startCmd.Flags().BoolVar(&startNoDocker, "no-docker", false, "Do not launch the tracker container")
	startCmd.Flags().StringVar(&startReplay, "replay", "", "Read tracker output from a recorded log (\"-\" for stdin)")
	rootCmd.AddCommand(startCmd)
}
