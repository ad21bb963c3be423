package trace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fakeyudi/gazetrace/internal/logging"
)

// FileBase is the trace file name without extension.
const FileBase = "eye_tracking"

var (
	// ErrNotRecording is returned by Append before Begin or after Flush.
	ErrNotRecording = errors.New("trace: not recording")
	// ErrDuplicateSeq is returned when an entry reuses a sequence number.
	ErrDuplicateSeq = errors.New("trace: duplicate sequence number")
)

// Recorder accumulates one session's trace in memory and writes it once.
// All methods are safe for concurrent use; entries are kept in sequence
// order regardless of the order Append is called in.
type Recorder struct {
	dir      string
	renderer Renderer
	log      *slog.Logger

	mu      sync.Mutex
	doc     *Document
	begun   bool
	flushed bool
}

// NewRecorder writes to dir using r. An empty dir disables writing.
func NewRecorder(dir string, r Renderer, l *slog.Logger) *Recorder {
	if r == nil {
		r = &XMLRenderer{}
	}
	return &Recorder{dir: dir, renderer: r, log: logging.OrDiscard(l).With("component", "recorder")}
}

// Begin creates the trace header. Only the first call has any effect.
func (r *Recorder) Begin(s Settings) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.begun {
		return false
	}
	if s.Tracker == "" {
		s.Tracker = ToolName
	}
	r.begun = true
	r.doc = &Document{Settings: s}
	return true
}

// Append adds e at its sequence position.
func (r *Recorder) Append(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil {
		return ErrNotRecording
	}
	entries := r.doc.Entries
	n := len(entries)
	if n == 0 || entries[n-1].Seq < e.Seq {
		r.doc.Entries = append(entries, e)
		return nil
	}
	i := sort.Search(n, func(i int) bool { return entries[i].Seq >= e.Seq })
	if i < n && entries[i].Seq == e.Seq {
		return fmt.Errorf("%w: %d", ErrDuplicateSeq, e.Seq)
	}
	entries = append(entries, Entry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = e
	r.doc.Entries = entries
	return nil
}

// Len is the number of entries recorded so far.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil {
		return 0
	}
	return len(r.doc.Entries)
}

// Snapshot copies the current trace.
func (r *Recorder) Snapshot() (Document, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil {
		return Document{}, false
	}
	cp := *r.doc
	cp.Entries = append([]Entry(nil), r.doc.Entries...)
	return cp, true
}

// Path is where Flush writes, or "" when writing is disabled.
func (r *Recorder) Path() string {
	if r.dir == "" {
		return ""
	}
	return filepath.Join(r.dir, FileBase+r.renderer.Ext())
}

// Flush writes the trace and discards it. Later calls do nothing. With no
// output directory nothing is written and the trace is still discarded.
func (r *Recorder) Flush() (string, error) {
	r.mu.Lock()
	doc := r.doc
	already := r.flushed || !r.begun
	r.doc = nil
	r.flushed = true
	r.mu.Unlock()

	if already || doc == nil {
		return "", nil
	}
	path := r.Path()
	if path == "" {
		r.log.Info("no output directory, trace not written", "entries", len(doc.Entries))
		return "", nil
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating trace directory: %w", err)
	}
	data, err := r.renderer.Render(doc)
	if err != nil {
		return "", fmt.Errorf("rendering trace: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("writing trace: %w", err)
	}
	r.log.Info("trace written", "path", path, "entries", len(doc.Entries))
	return path, nil
}

// writeFileAtomic writes via a temp file in the same directory + os.Rename.
func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
