package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 100 * time.Millisecond

// Watcher reloads a config file when it changes on disk and hands the
// re-merged result to registered callbacks.
type Watcher struct {
	path   string
	global *Config

	mu       sync.Mutex
	onChange []func(Config)

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	errChan chan error
	done    chan struct{}
}

// NewWatcher watches path (normally the project file). global is re-merged
// underneath every reload.
func NewWatcher(path string, global *Config) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		path:    path,
		global:  global,
		ctx:     ctx,
		cancel:  cancel,
		errChan: make(chan error, 1),
		done:    make(chan struct{}),
	}
}

// OnChange registers a callback invoked after each successful reload.
func (w *Watcher) OnChange(cb func(Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, cb)
}

// Errors returns a channel for reload and watch errors.
func (w *Watcher) Errors() <-chan error {
	return w.errChan
}

// Start begins watching. The directory is watched rather than the file so
// editors that replace the file on save are still seen.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	w.watcher = fw
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	var debounce *time.Timer
	for {
		select {
		case <-w.ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.report(err)
		}
	}
}

func (w *Watcher) reload() {
	if w.ctx.Err() != nil {
		return
	}
	project, err := LoadFile(w.path)
	if err != nil {
		w.report(fmt.Errorf("reload config: %w", err))
		return
	}
	merged := Merge(w.global, project)
	merged.ApplyEnv()
	if err := merged.Validate(); err != nil {
		w.report(fmt.Errorf("validate reloaded config: %w", err))
		return
	}

	w.mu.Lock()
	callbacks := append([]func(Config){}, w.onChange...)
	w.mu.Unlock()
	for _, cb := range callbacks {
		cb(merged)
	}
}

func (w *Watcher) report(err error) {
	select {
	case w.errChan <- err:
	default:
	}
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	w.cancel()
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	<-w.done
	return err
}
