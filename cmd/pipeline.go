package cmd

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/fakeyudi/gazetrace/internal/config"
	"github.com/fakeyudi/gazetrace/internal/dispatch"
	"github.com/fakeyudi/gazetrace/internal/gaze"
	"github.com/fakeyudi/gazetrace/internal/host"
	"github.com/fakeyudi/gazetrace/internal/host/gosyntax"
	"github.com/fakeyudi/gazetrace/internal/host/stimulus"
	"github.com/fakeyudi/gazetrace/internal/tracker"
)

// target is the document a session records gaze against.
type target struct {
	project string
	file    string
	host    *stimulus.Host
}

// resolveTarget opens file as a stimulus laid out per c. project defaults
// to the working directory; a relative file is taken from the project.
func resolveTarget(c config.Config, project, file string) (*target, error) {
	if file == "" {
		return nil, fmt.Errorf("--file is required")
	}
	if project == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		project = wd
	}
	project, err := filepath.Abs(project)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(project, file)
	}

	s := c.Stimulus
	view, err := stimulus.Open(file, stimulus.Layout{
		Bounds:     image.Rect(s.X, s.Y, s.X+s.Width, s.Y+s.Height),
		LineHeight: s.LineHeight,
		CharWidth:  s.CharWidth,
		Padding:    image.Pt(s.PaddingX, s.PaddingY),
	})
	if err != nil {
		return nil, err
	}
	return &target{project: project, file: file, host: stimulus.NewHost(view)}, nil
}

func screens(c config.Config) host.StaticScreens {
	out := make(host.StaticScreens, 0, len(c.Screen.Monitors))
	for _, m := range c.Screen.Monitors {
		out = append(out, image.Rect(m.X, m.Y, m.X+m.Width, m.Y+m.Height))
	}
	return out
}

// outputDir resolves the configured trace directory against the project.
func outputDir(c config.Config, project string) string {
	if c.OutputDir == "" || filepath.IsAbs(c.OutputDir) {
		return c.OutputDir
	}
	return filepath.Join(project, c.OutputDir)
}

func calibration(c config.Config) gaze.Calibration {
	return gaze.Calibration{OffsetX: c.Calibration.OffsetX, OffsetY: c.Calibration.OffsetY}
}

// newTracker wires the gaze pipeline to tgt. The realtime flag is on when
// configured or forced.
func newTracker(c config.Config, tgt *target, realtime bool) *tracker.Tracker {
	d := dispatch.New(dispatch.WithLogger(logger), dispatch.WithRealtime(c.Realtime || realtime))
	return tracker.New(tracker.Options{
		Screens:      screens(c),
		Views:        tgt.host,
		Syntax:       gosyntax.New(),
		MonitorIndex: c.Screen.MonitorIndex,
		Calibration:  calibration(c),
		Tolerance:    gaze.Tolerance{X: c.Tolerance.X, Y: c.Tolerance.Y},
		OutputDir:    outputDir(c, tgt.project),
		Format:       c.TraceFormat,
		Dispatcher:   d,
		Logger:       logger,
	})
}

func participant() string {
	if p := GetProfile(); p != nil {
		return p.Participant
	}
	return ""
}
