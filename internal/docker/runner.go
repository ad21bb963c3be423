package docker

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// Runner executes the docker CLI with args, writing combined output to w.
// This abstraction allows mocking in tests.
type Runner func(ctx context.Context, w io.Writer, args ...string) error

// execRunner returns a Runner that invokes binary as a real subprocess.
func execRunner(binary string) Runner {
	return func(ctx context.Context, w io.Writer, args ...string) error {
		cmd := exec.CommandContext(ctx, binary, args...)
		cmd.Stdout = w
		cmd.Stderr = w
		return cmd.Run()
	}
}

// capture runs args and returns the trimmed combined output.
func capture(ctx context.Context, run Runner, args ...string) (string, error) {
	var buf bytes.Buffer
	err := run(ctx, &buf, args...)
	return strings.TrimSpace(buf.String()), err
}

// lineLogger is an io.Writer that logs each complete line it receives.
type lineLogger struct {
	log  *slog.Logger
	msg  string
	mu   sync.Mutex
	part []byte
}

func newLineLogger(l *slog.Logger, msg string) *lineLogger {
	return &lineLogger{log: l, msg: msg}
}

func (w *lineLogger) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.part = append(w.part, p...)
	for {
		i := bytes.IndexByte(w.part, '\n')
		if i < 0 {
			break
		}
		w.emit(w.part[:i])
		w.part = w.part[i+1:]
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (w *lineLogger) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.part) > 0 {
		w.emit(w.part)
		w.part = nil
	}
}

func (w *lineLogger) emit(line []byte) {
	s := strings.TrimRight(string(line), "\r")
	if strings.TrimSpace(s) != "" {
		w.log.Info(w.msg, "line", s)
	}
}
