// Package dispatch fans recorded gaze entries out to real-time listeners.
package dispatch

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/fakeyudi/gazetrace/internal/protocol"
	"github.com/fakeyudi/gazetrace/internal/trace"
)

// Update is the public view of one trace entry.
type Update struct {
	Seq       uint64  `json:"seq"`
	Timestamp float64 `json:"timestamp"`
	Hit       bool    `json:"hit"`
	Line      int     `json:"line,omitempty"`
	Column    int     `json:"column,omitempty"`
	Word      string  `json:"word,omitempty"`
	Token     string  `json:"token,omitempty"`
	TokenType string  `json:"token_type,omitempty"`
	Remark    string  `json:"remark,omitempty"`
}

// UpdateFrom projects a trace entry onto an Update.
func UpdateFrom(e trace.Entry) Update {
	u := Update{Seq: e.Seq, Timestamp: float64(e.Timestamp), Remark: e.Remark}
	if math.IsNaN(u.Timestamp) {
		u.Timestamp = 0
	}
	if e.Location != nil {
		u.Hit = true
		u.Line = e.Location.Line
		u.Column = e.Location.Column
		u.Word = e.Location.Word
	}
	if e.AST != nil {
		u.Token = e.AST.Token
		u.TokenType = e.AST.Type
	}
	return u
}

// Listener receives updates synchronously on the delivering goroutine.
type Listener func(Update)

// StatusListener receives tracker status and error events.
type StatusListener func(protocol.Event)

// Dispatcher holds at most one Listener, gated by the realtime flag.
type Dispatcher struct {
	mu       sync.RWMutex
	listener Listener
	status   StatusListener
	realtime atomic.Bool
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithRealtime sets the initial realtime flag.
func WithRealtime(on bool) Option {
	return func(d *Dispatcher) { d.realtime.Store(on) }
}

func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{logger: slog.Default()}
	for _, o := range opts {
		o(d)
	}
	d.logger = d.logger.With("component", "dispatcher")
	return d
}

// SetListener replaces the listener. nil detaches it.
func (d *Dispatcher) SetListener(l Listener) {
	d.mu.Lock()
	d.listener = l
	d.mu.Unlock()
}

// SetStatusListener replaces the status listener. nil detaches it.
func (d *Dispatcher) SetStatusListener(l StatusListener) {
	d.mu.Lock()
	d.status = l
	d.mu.Unlock()
}

func (d *Dispatcher) SetRealtime(on bool) { d.realtime.Store(on) }
func (d *Dispatcher) Realtime() bool      { return d.realtime.Load() }

// Deliver hands e to the listener when realtime delivery is on. It reports
// whether the listener ran to completion.
func (d *Dispatcher) Deliver(e trace.Entry) bool {
	if !d.realtime.Load() {
		return false
	}
	d.mu.RLock()
	l := d.listener
	d.mu.RUnlock()
	if l == nil {
		return false
	}
	return d.call(e.Seq, func() { l(UpdateFrom(e)) })
}

// Notify hands a status or error event to the status listener.
func (d *Dispatcher) Notify(ev protocol.Event) {
	d.mu.RLock()
	l := d.status
	d.mu.RUnlock()
	if l == nil {
		return
	}
	d.call(0, func() { l(ev) })
}

func (d *Dispatcher) call(seq uint64, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("listener panicked", "seq", seq, "panic", r)
			ok = false
		}
	}()
	fn()
	return true
}

// Fanout combines listeners into one. A panicking listener does not stop
// the ones after it.
func Fanout(ls ...Listener) Listener {
	var live []Listener
	for _, l := range ls {
		if l != nil {
			live = append(live, l)
		}
	}
	return func(u Update) {
		var first any
		for _, l := range live {
			func() {
				defer func() {
					if r := recover(); r != nil && first == nil {
						first = r
					}
				}()
				l(u)
			}()
		}
		if first != nil {
			panic(first)
		}
	}
}

// Printer writes one line per update in the [RT] console format.
func Printer(w io.Writer) Listener {
	var mu sync.Mutex
	return func(u Update) {
		mu.Lock()
		defer mu.Unlock()
		if !u.Hit {
			fmt.Fprintf(w, "[RT] t=%.3f remark=%q\n", u.Timestamp, u.Remark)
			return
		}
		fmt.Fprintf(w, "[RT] t=%.3f word=%s token=%s type=%s\n", u.Timestamp, u.Word, u.Token, u.TokenType)
	}
}

// FanoutStatus combines status listeners. Each one runs even if an earlier
// one panics; the first panic is re-raised afterwards.
func FanoutStatus(ls ...StatusListener) StatusListener {
	var live []StatusListener
	for _, l := range ls {
		if l != nil {
			live = append(live, l)
		}
	}
	return func(ev protocol.Event) {
		var first any
		for _, l := range live {
			func() {
				defer func() {
					if r := recover(); r != nil && first == nil {
						first = r
					}
				}()
				l(ev)
			}()
		}
		if first != nil {
			panic(first)
		}
	}
}
