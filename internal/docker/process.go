package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
)

// Process is a launched tracker process whose stdout and stderr arrive
// merged on Output.
type Process interface {
	// Output is the merged stdout/stderr stream. Closing it unblocks readers.
	Output() io.ReadCloser
	// Terminate asks the process to exit.
	Terminate() error
	// Kill forcibly ends the process.
	Kill() error
	// Done is closed once the process has exited.
	Done() <-chan struct{}
	// ExitCode is valid after Done; -1 if the process was signalled.
	ExitCode() int
	PID() int
}

type execProcess struct {
	cmd  *exec.Cmd
	out  *os.File
	done chan struct{}
	code int
	err  error
}

// StartProcess launches name with args, merging its stdout and stderr into
// a single pipe. Cancelling ctx kills the process.
func StartProcess(ctx context.Context, name string, args ...string) (Process, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating output pipe: %w", err)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}
	// The child holds its own copy of the write end.
	pw.Close()

	p := &execProcess{cmd: cmd, out: pr, done: make(chan struct{}), code: -1}
	go func() {
		p.err = cmd.Wait()
		if cmd.ProcessState != nil {
			p.code = cmd.ProcessState.ExitCode()
		}
		close(p.done)
	}()
	return p, nil
}

func (p *execProcess) Output() io.ReadCloser { return p.out }
func (p *execProcess) Done() <-chan struct{} { return p.done }
func (p *execProcess) PID() int              { return p.cmd.Process.Pid }

func (p *execProcess) ExitCode() int {
	select {
	case <-p.done:
		return p.code
	default:
		return -1
	}
}

func (p *execProcess) Terminate() error {
	err := p.cmd.Process.Signal(syscall.SIGTERM)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *execProcess) Kill() error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
