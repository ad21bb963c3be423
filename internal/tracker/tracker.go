// Package tracker runs the per-event gaze pipeline for one tracking session
// at a time: decode, map, resolve, record, dispatch.
package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fakeyudi/gazetrace/internal/dispatch"
	"github.com/fakeyudi/gazetrace/internal/gaze"
	"github.com/fakeyudi/gazetrace/internal/host"
	"github.com/fakeyudi/gazetrace/internal/logging"
	"github.com/fakeyudi/gazetrace/internal/protocol"
	"github.com/fakeyudi/gazetrace/internal/syntax"
	"github.com/fakeyudi/gazetrace/internal/trace"
	"github.com/fakeyudi/gazetrace/internal/uiloop"
)

// Executor runs work that touches live view or document state, one job at
// a time in submission order. *uiloop.Loop implements it.
type Executor interface {
	Submit(fn func()) error
	Drain(ctx context.Context) error
}

// Options wires a Tracker to its host.
type Options struct {
	Screens host.ScreenProvider
	Views   host.ViewProvider
	Syntax  host.SyntaxProvider
	// Executor, if nil, is a private uiloop.Loop.
	Executor Executor

	MonitorIndex int
	Calibration  gaze.Calibration
	Tolerance    gaze.Tolerance

	// OutputDir receives the trace at End. Empty disables writing.
	OutputDir string
	// Format is xml, json or yaml.
	Format string

	Dispatcher *dispatch.Dispatcher
	Logger     *slog.Logger
}

// Info describes the session being started.
type Info struct {
	ProjectPath string
	FilePath    string
	IDE         string
	Participant string
}

// Stats counts what a session has seen so far.
type Stats struct {
	Received uint64 `json:"received"`
	Dropped  uint64 `json:"dropped"`
	Skipped  uint64 `json:"skipped"`
	Entries  int    `json:"entries"`
}

// Session is one start/stop cycle.
type Session struct {
	ID        string
	StartedAt time.Time
	Info      Info

	recorder *trace.Recorder
	seq      atomic.Uint64
	paused   atomic.Bool
	closed   atomic.Bool
	received atomic.Uint64
	dropped  atomic.Uint64
	skipped  atomic.Uint64
}

// Stats returns the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Received: s.received.Load(),
		Dropped:  s.dropped.Load(),
		Skipped:  s.skipped.Load(),
		Entries:  s.recorder.Len(),
	}
}

// Paused reports whether gaze samples are currently being ignored.
func (s *Session) Paused() bool { return s.paused.Load() }

// Snapshot returns a copy of the trace recorded so far.
func (s *Session) Snapshot() (trace.Document, bool) { return s.recorder.Snapshot() }

// Tracker owns the pipeline and the active session.
type Tracker struct {
	opts       Options
	log        *slog.Logger
	exec       Executor
	ownLoop    *uiloop.Loop
	decoder    *protocol.Decoder
	mapper     *gaze.Mapper
	resolver   *syntax.Resolver
	slot       *gaze.HighlightSlot
	dispatcher *dispatch.Dispatcher

	mu   sync.Mutex
	sess *Session
}

// New builds a Tracker. Call Close when done.
func New(opts Options) *Tracker {
	log := logging.OrDiscard(opts.Logger).With("component", "tracker")
	t := &Tracker{
		opts:       opts,
		log:        log,
		exec:       opts.Executor,
		decoder:    protocol.NewDecoder(opts.Logger),
		resolver:   syntax.NewResolver(opts.Syntax),
		slot:       &gaze.HighlightSlot{},
		dispatcher: opts.Dispatcher,
	}
	if t.exec == nil {
		t.ownLoop = uiloop.New(opts.Logger)
		t.exec = t.ownLoop
	}
	if t.dispatcher == nil {
		t.dispatcher = dispatch.New(dispatch.WithLogger(opts.Logger))
	}
	t.mapper = gaze.New(gaze.Options{
		Screens:      opts.Screens,
		Views:        opts.Views,
		MonitorIndex: opts.MonitorIndex,
		Calibration:  opts.Calibration,
		Tolerance:    opts.Tolerance,
		Highlight:    t.slot,
		Logger:       opts.Logger,
	})
	return t
}

// Mapper exposes the coordinate mapper, e.g. to update calibration.
func (t *Tracker) Mapper() *gaze.Mapper { return t.mapper }

// Dispatcher returns the realtime dispatcher.
func (t *Tracker) Dispatcher() *dispatch.Dispatcher { return t.dispatcher }

// Session returns the active session, if any.
func (t *Tracker) Session() (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sess, t.sess != nil
}

// Begin starts a session. If one is already active it is returned with
// started == false and nothing changes.
func (t *Tracker) Begin(info Info) (s *Session, started bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess != nil {
		t.log.Info("session already active", "session", t.sess.ID)
		return t.sess, false
	}

	s = &Session{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
		Info:      info,
		recorder:  trace.NewRecorder(t.opts.OutputDir, trace.RendererFor(t.opts.Format), t.opts.Logger),
	}
	s.recorder.Begin(trace.Settings{
		ProjectPath: info.ProjectPath,
		FilePath:    relativize(info.ProjectPath, info.FilePath),
		IDE:         info.IDE,
		Tracker:     trace.ToolName,
		SessionID:   s.ID,
		Participant: info.Participant,
		StartedAt:   s.StartedAt.UTC().Format(time.RFC3339),
	})
	t.sess = s
	t.log.Info("session started", "session", s.ID, "file", info.FilePath)
	return s, true
}

// Pause stops mapping and recording gaze samples until Resume. It reports
// whether a session was active.
func (t *Tracker) Pause() bool { return t.setPaused(true) }

// Resume undoes Pause.
func (t *Tracker) Resume() bool { return t.setPaused(false) }

func (t *Tracker) setPaused(p bool) bool {
	s, ok := t.Session()
	if !ok {
		return false
	}
	if s.paused.Swap(p) != p {
		t.log.Info("session paused", "paused", p)
	}
	return true
}

// Consume pumps tracker output from r through the pipeline until EOF or
// ctx is cancelled. Lines still buffered after cancellation are dropped.
func (t *Tracker) Consume(ctx context.Context, r io.Reader) {
	events := make(chan protocol.Event, 64)
	errc := make(chan error, 1)
	go func() {
		errc <- t.decoder.Run(ctx, r, events)
		close(events)
	}()
	for ev := range events {
		if ctx.Err() != nil {
			continue
		}
		t.Handle(ev)
	}
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		t.log.Warn("tracker output ended", "error", err)
	}
}

// Handle routes one decoded event. Gaze samples get their sequence number
// here, in arrival order, before being marshalled onto the executor.
func (t *Tracker) Handle(ev protocol.Event) {
	switch ev.Kind {
	case protocol.KindGaze:
		t.handleGaze(ev.Gaze)
	case protocol.KindStatus:
		t.log.Info("tracker status", "status", ev.Status)
		t.dispatcher.Notify(ev)
	case protocol.KindError:
		t.log.Warn("tracker error", "type", ev.ErrorType, "message", ev.Message)
		t.dispatcher.Notify(ev)
	}
}

func (t *Tracker) handleGaze(g protocol.Gaze) {
	s, ok := t.Session()
	if !ok || s.closed.Load() {
		return
	}
	s.received.Add(1)
	if !g.Fused.Valid {
		s.dropped.Add(1)
		return
	}
	if s.paused.Load() {
		s.skipped.Add(1)
		return
	}
	seq := s.seq.Add(1)
	if err := t.exec.Submit(func() { t.process(s, seq, g) }); err != nil {
		t.log.Warn("gaze sample not processed", "seq", seq, "error", err)
	}
}

// process maps, resolves, records and dispatches one sample. It runs on
// the executor.
func (t *Tracker) process(s *Session, seq uint64, g protocol.Gaze) {
	e := trace.Entry{
		Seq:       seq,
		Timestamp: trace.Float(g.Timestamp),
		LeftX:     trace.Float(g.Left.X),
		LeftY:     trace.Float(g.Left.Y),
		RightX:    trace.Float(g.Right.X),
		RightY:    trace.Float(g.Right.Y),
		GX:        trace.Float(g.Fused.X),
		GY:        trace.Float(g.Fused.Y),
	}

	hit, err := t.mapper.Map(g.Fused)
	if err != nil {
		e.Remark = failureRemark(err)
		t.log.Debug("mapping failed", "seq", seq, "error", err)
	} else {
		e.Location = location(hit, s.Info.ProjectPath)
		e.AST = structure(t.resolver.Resolve(hit.Document, hit.Offset))
	}

	if err := s.recorder.Append(e); err != nil {
		t.log.Warn("trace append failed", "seq", seq, "error", err)
		return
	}
	t.dispatcher.Deliver(e)
}

// End finishes the active session: waits for marshalled work, clears the
// highlight and writes the trace. It returns the written path, which is
// empty when nothing was written.
func (t *Tracker) End(ctx context.Context) (string, error) {
	s, ok := t.Session()
	if !ok {
		return "", nil
	}
	s.closed.Store(true)

	if err := t.exec.Submit(t.slot.Clear); err != nil {
		t.log.Debug("highlight not cleared", "error", err)
	}
	if err := t.exec.Drain(ctx); err != nil {
		t.log.Warn("executor drain", "error", err)
	}

	path, err := s.recorder.Flush()

	t.mu.Lock()
	if t.sess == s {
		t.sess = nil
	}
	t.mu.Unlock()

	if err != nil {
		t.log.Error("trace write failed", "session", s.ID, "error", err)
		return "", err
	}
	st := s.Stats()
	t.log.Info("session ended", "session", s.ID, "received", st.Received, "dropped", st.Dropped, "skipped", st.Skipped, "path", path)
	return path, nil
}

// Close releases the private executor, if any.
func (t *Tracker) Close() {
	if t.ownLoop != nil {
		t.ownLoop.Close()
	}
}
