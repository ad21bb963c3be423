// Package supervisor owns the lifecycle of the containerised tracker
// process: image preparation, launch, output attachment and teardown.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/fakeyudi/gazetrace/internal/assets"
	"github.com/fakeyudi/gazetrace/internal/docker"
	"github.com/fakeyudi/gazetrace/internal/logging"
	"github.com/fakeyudi/gazetrace/internal/uiloop"
)

// ErrRuntimeUnavailable means the container runtime could not be probed.
var ErrRuntimeUnavailable = errors.New("container runtime unavailable")

// State is the supervisor lifecycle state.
type State int

const (
	Idle State = iota
	Starting
	Running
	Stopping
	// Exited means the process ended on its own; Stop still owes teardown.
	Exited
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Exited:
		return "exited"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Runtime is the container runtime the supervisor drives.
type Runtime interface {
	Version(ctx context.Context) (string, error)
	ImageExists(ctx context.Context, tag string) (bool, error)
	Build(ctx context.Context, tag, dir string) error
	Remove(ctx context.Context, name string) error
	Run(ctx context.Context, spec docker.RunSpec) (docker.Process, error)
	Stop(ctx context.Context, name string) error
}

// Options configures a Supervisor. Zero durations and names take the
// defaults below.
type Options struct {
	Runtime       Runtime
	ImageBase     string
	ContainerName string
	ContainerPort int
	// HostNetwork is "auto" (host networking on Linux), "always" or "never".
	HostNetwork string
	// GOOS overrides runtime.GOOS for the auto binding decision.
	GOOS string
	// BuildDir receives the staged image context; a temp dir when empty.
	BuildDir string

	ProbeTimeout   time.Duration
	CleanupTimeout time.Duration
	StopTimeout    time.Duration

	// Attach consumes the process output until ctx is cancelled or the
	// stream ends. It runs on its own goroutine.
	Attach func(ctx context.Context, r io.Reader)
	// OnStop runs last during Stop, after the process is gone.
	OnStop func() error
	// OnExit runs when the process ends without Stop being called.
	OnExit func(exitCode int)
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.ImageBase == "" {
		o.ImageBase = "gazetrace/eyetracker"
	}
	if o.ContainerName == "" {
		o.ContainerName = "gazetrace-tracker"
	}
	if o.ContainerPort == 0 {
		o.ContainerPort = 5000
	}
	if o.HostNetwork == "" {
		o.HostNetwork = "auto"
	}
	if o.GOOS == "" {
		o.GOOS = runtime.GOOS
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 5 * time.Second
	}
	if o.CleanupTimeout <= 0 {
		o.CleanupTimeout = 3 * time.Second
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 5 * time.Second
	}
}

// Supervisor starts and stops one tracker process at a time.
type Supervisor struct {
	opts   Options
	log    *slog.Logger
	worker *uiloop.Loop

	// op serializes whole Start/Stop orchestrations.
	op sync.Mutex

	mu        sync.Mutex
	state     State
	owed      bool // a teardown is owed since the last Start attempt
	proc      docker.Process
	image     string
	hostPort  int
	detach    context.CancelFunc
	attached  chan struct{}
	cancelRun context.CancelFunc
}

// New returns an idle Supervisor.
func New(opts Options) *Supervisor {
	opts.defaults()
	log := logging.OrDiscard(opts.Logger).With("component", "supervisor")
	return &Supervisor{
		opts:     opts,
		log:      log,
		worker:   uiloop.New(log),
		hostPort: -1,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsRunning reports whether a tracker process is live.
func (s *Supervisor) IsRunning() bool {
	return s.State() == Running
}

// HostPort is the local port the tracker is reachable on, or -1.
func (s *Supervisor) HostPort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostPort
}

// Image is the tag of the last launched image.
func (s *Supervisor) Image() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image
}

// PID of the live process, or 0.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil || s.state == Exited {
		return 0
	}
	return s.proc.PID()
}

// Start prepares the image and launches the tracker. Calling it while
// starting or running is a logged no-op.
func (s *Supervisor) Start(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	s.mu.Lock()
	if s.state == Running || s.state == Starting {
		s.mu.Unlock()
		s.log.Info("tracker already running")
		return nil
	}
	if s.state == Exited {
		// Release what the dead process left behind before relaunching.
		if s.detach != nil {
			s.detach()
		}
		if s.cancelRun != nil {
			s.cancelRun()
		}
	}
	s.state = Starting
	s.owed = true
	s.mu.Unlock()

	if err := s.launch(ctx); err != nil {
		s.mu.Lock()
		s.state = Idle
		s.mu.Unlock()
		s.log.Error("tracker start failed", "error", err)
		return err
	}
	return nil
}

func (s *Supervisor) launch(ctx context.Context) error {
	rt := s.opts.Runtime
	if rt == nil {
		return fmt.Errorf("%w: no runtime configured", ErrRuntimeUnavailable)
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.opts.ProbeTimeout)
	version, err := rt.Version(probeCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}
	s.log.Debug("runtime probed", "version", version)

	tag, err := s.ensureImage(ctx, rt)
	if err != nil {
		return err
	}

	cleanCtx, cancel := context.WithTimeout(ctx, s.opts.CleanupTimeout)
	if err := rt.Remove(cleanCtx, s.opts.ContainerName); err != nil {
		s.log.Debug("stale container cleanup", "error", err)
	}
	cancel()

	spec := docker.RunSpec{
		Image:         tag,
		Name:          s.opts.ContainerName,
		ContainerPort: s.opts.ContainerPort,
		HostNetwork:   s.useHostNetwork(),
	}
	if spec.HostNetwork {
		spec.HostPort = s.opts.ContainerPort
	} else {
		port, err := freePort()
		if err != nil {
			return fmt.Errorf("choosing host port: %w", err)
		}
		spec.HostPort = port
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	proc, err := rt.Run(runCtx, spec)
	if err != nil {
		cancelRun()
		return fmt.Errorf("launching tracker: %w", err)
	}

	attachCtx, detach := context.WithCancel(context.Background())
	attached := make(chan struct{})

	s.mu.Lock()
	s.state = Running
	s.proc = proc
	s.image = tag
	s.hostPort = spec.HostPort
	s.detach = detach
	s.attached = attached
	s.cancelRun = cancelRun
	s.mu.Unlock()

	go func() {
		defer close(attached)
		if s.opts.Attach != nil {
			s.opts.Attach(attachCtx, proc.Output())
		} else {
			io.Copy(io.Discard, proc.Output())
		}
	}()
	go s.watch(proc)

	s.log.Info("tracker running", "image", tag, "url", fmt.Sprintf("http://localhost:%d", spec.HostPort), "pid", proc.PID())
	return nil
}

func (s *Supervisor) ensureImage(ctx context.Context, rt Runtime) (string, error) {
	files, err := assets.Files()
	if err != nil {
		return "", err
	}
	tag := s.opts.ImageBase + ":" + assets.Hash(files)

	exists, err := rt.ImageExists(ctx, tag)
	if err != nil {
		return "", fmt.Errorf("inspecting image %s: %w", tag, err)
	}
	if exists {
		return tag, nil
	}

	dir := s.opts.BuildDir
	if dir == "" {
		dir, err = os.MkdirTemp("", "gazetrace-image-")
		if err != nil {
			return "", fmt.Errorf("creating build context: %w", err)
		}
		defer os.RemoveAll(dir)
	}
	if err := assets.Stage(dir, files); err != nil {
		return "", err
	}
	s.log.Info("building tracker image", "tag", tag)
	if err := rt.Build(ctx, tag, dir); err != nil {
		return "", err
	}
	return tag, nil
}

func (s *Supervisor) useHostNetwork() bool {
	switch s.opts.HostNetwork {
	case "always":
		return true
	case "never":
		return false
	default:
		return s.opts.GOOS == "linux"
	}
}

// watch waits for proc to end. An exit nobody asked for moves the
// supervisor to Exited and runs OnExit.
func (s *Supervisor) watch(proc docker.Process) {
	<-proc.Done()
	code := proc.ExitCode()
	s.mu.Lock()
	unexpected := s.proc == proc && s.state == Running
	if unexpected {
		s.state = Exited
		s.hostPort = -1
	}
	s.mu.Unlock()
	if !unexpected {
		s.log.Info("tracker exited", "exit_code", code)
		return
	}
	s.log.Warn("tracker exited unexpectedly", "exit_code", code)
	if s.opts.OnExit != nil {
		s.opts.OnExit(code)
	}
}

// Stop tears the tracker down: detach the reader, terminate the process
// (killing it after StopTimeout), stop the container, clear the binding and
// run OnStop. Only OnStop's error is returned. A Stop with no Start since
// the last completed Stop does nothing.
func (s *Supervisor) Stop(ctx context.Context) (err error) {
	s.op.Lock()
	defer s.op.Unlock()

	s.mu.Lock()
	if !s.owed {
		s.mu.Unlock()
		s.log.Debug("stop: nothing to tear down")
		return nil
	}
	s.state = Stopping
	proc, detach, attached, cancelRun := s.proc, s.detach, s.attached, s.cancelRun
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("stop panicked", "panic", fmt.Sprint(r))
			err = fmt.Errorf("stop: %v", r)
		}
		s.mu.Lock()
		s.state = Idle
		s.owed = false
		s.proc = nil
		s.detach = nil
		s.attached = nil
		s.cancelRun = nil
		s.hostPort = -1
		s.mu.Unlock()
	}()

	if proc != nil {
		detach()
		proc.Output().Close()
		s.await(attached, "reader")

		s.terminate(proc)
		cancelRun()
	}

	if rt := s.opts.Runtime; rt != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.StopTimeout)
		if err := rt.Stop(stopCtx, s.opts.ContainerName); err != nil {
			s.log.Debug("container stop", "error", err)
		}
		cancel()
	}

	s.mu.Lock()
	s.hostPort = -1
	s.mu.Unlock()

	if s.opts.OnStop != nil {
		if err := s.opts.OnStop(); err != nil {
			s.log.Error("stop hook failed", "error", err)
			return err
		}
	}
	s.log.Info("tracker stopped")
	return nil
}

func (s *Supervisor) terminate(proc docker.Process) {
	select {
	case <-proc.Done():
		return
	default:
	}
	if err := proc.Terminate(); err != nil {
		s.log.Debug("terminate", "error", err)
	}
	select {
	case <-proc.Done():
		return
	case <-time.After(s.opts.StopTimeout):
	}
	s.log.Warn("tracker did not exit in time, killing", "timeout", s.opts.StopTimeout)
	if err := proc.Kill(); err != nil {
		s.log.Debug("kill", "error", err)
	}
	s.await(proc.Done(), "process")
}

func (s *Supervisor) await(ch <-chan struct{}, what string) {
	if ch == nil {
		return
	}
	select {
	case <-ch:
	case <-time.After(s.opts.StopTimeout):
		s.log.Warn("gave up waiting", "for", what)
	}
}

// StartAsync runs Start on the supervisor's background worker.
func (s *Supervisor) StartAsync(ctx context.Context) <-chan error {
	return s.async(func() error { return s.Start(ctx) })
}

// StopAsync runs Stop on the supervisor's background worker.
func (s *Supervisor) StopAsync(ctx context.Context) <-chan error {
	return s.async(func() error { return s.Stop(ctx) })
}

func (s *Supervisor) async(fn func() error) <-chan error {
	res := make(chan error, 1)
	if err := s.worker.Submit(func() { res <- fn() }); err != nil {
		res <- err
	}
	return res
}

// Close stops the tracker and releases the background worker.
func (s *Supervisor) Close() error {
	err := s.Stop(context.Background())
	s.worker.Close()
	return err
}

// freePort asks the kernel for an unused local TCP port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
