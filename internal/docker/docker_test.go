package docker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRunner answers each docker invocation from responses, keyed by
// the joined args, and records the calls it saw.
type recordingRunner struct {
	responses map[string]string
	failures  map[string]error
	calls     []string
}

func (r *recordingRunner) run(_ context.Context, w io.Writer, args ...string) error {
	key := strings.Join(args, " ")
	r.calls = append(r.calls, key)
	if w != nil {
		io.WriteString(w, r.responses[key])
	}
	return r.failures[key]
}

// exitError returns a real *exec.ExitError by running a failing shell.
func exitError(t *testing.T) error {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	err := exec.Command("sh", "-c", "exit 1").Run()
	require.Error(t, err)
	return err
}

func TestRunSpecArgs(t *testing.T) {
	host := RunSpec{Image: "gazetrace/eyetracker:abc", Name: "gt", HostNetwork: true, ContainerPort: 5000}
	assert.Equal(t, []string{"run", "--rm", "--name", "gt", "--network=host", "gazetrace/eyetracker:abc"}, host.Args())

	mapped := RunSpec{Image: "img:1", Name: "gt", HostPort: 49152, ContainerPort: 5000}
	assert.Equal(t, []string{"run", "--rm", "--name", "gt", "-p", "49152:5000", "img:1"}, mapped.Args())
}

func TestVersion(t *testing.T) {
	r := &recordingRunner{responses: map[string]string{"--version": "Docker version 27.0.3, build 7d4bcd8\n"}}
	c := &CLI{Runner: r.run}

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Docker version 27.0.3, build 7d4bcd8", v)
}

func TestVersionUnavailable(t *testing.T) {
	r := &recordingRunner{failures: map[string]error{"--version": exec.ErrNotFound}}
	c := &CLI{Runner: r.run}

	_, err := c.Version(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestImageExists(t *testing.T) {
	r := &recordingRunner{failures: map[string]error{"image inspect img:missing": exitError(t)}}
	c := &CLI{Runner: r.run}

	ok, err := c.ImageExists(context.Background(), "img:present")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.ImageExists(context.Background(), "img:missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuildLogsOutputLines(t *testing.T) {
	r := &recordingRunner{responses: map[string]string{
		"build -t img:1 /ctx": "Step 1/6 : FROM python\n\nStep 2/6 : WORKDIR /app\nSuccessfully built",
	}}
	var buf bytes.Buffer
	c := &CLI{Runner: r.run, Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	require.NoError(t, c.Build(context.Background(), "img:1", "/ctx"))
	out := buf.String()
	assert.Equal(t, 3, strings.Count(out, "docker build"), out)
	assert.Contains(t, out, "Successfully built")
}

func TestBuildFailureWrapsError(t *testing.T) {
	boom := errors.New("exit status 1")
	r := &recordingRunner{failures: map[string]error{"build -t img:1 /ctx": boom}}
	c := &CLI{Runner: r.run}

	err := c.Build(context.Background(), "img:1", "/ctx")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "img:1")
}

func TestRemoveAndStop(t *testing.T) {
	r := &recordingRunner{failures: map[string]error{"stop gt": errors.New("no such container")}}
	c := &CLI{Runner: r.run}

	assert.NoError(t, c.Remove(context.Background(), "gt"))
	assert.Error(t, c.Stop(context.Background(), "gt"))
	assert.Equal(t, []string{"rm -f gt", "stop gt"}, r.calls)
}

func TestRunUsesStartHook(t *testing.T) {
	var gotName string
	var gotArgs []string
	c := &CLI{
		Binary: "podman",
		Start: func(_ context.Context, name string, args ...string) (Process, error) {
			gotName, gotArgs = name, args
			return nil, errors.New("not launched")
		},
	}
	_, err := c.Run(context.Background(), RunSpec{Image: "img:1", Name: "gt", HostNetwork: true})
	assert.Error(t, err)
	assert.Equal(t, "podman", gotName)
	assert.Equal(t, []string{"run", "--rm", "--name", "gt", "--network=host", "img:1"}, gotArgs)
}

func TestStartProcessMergesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	p, err := StartProcess(context.Background(), "sh", "-c", "echo out; echo err >&2; exit 3")
	require.NoError(t, err)

	data, err := io.ReadAll(p.Output())
	require.NoError(t, err)
	assert.Contains(t, string(data), "out\n")
	assert.Contains(t, string(data), "err\n")

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	assert.Equal(t, 3, p.ExitCode())
}

func TestStartProcessTerminate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	p, err := StartProcess(context.Background(), "sh", "-c", "sleep 30")
	require.NoError(t, err)
	assert.Greater(t, p.PID(), 0)
	assert.Equal(t, -1, p.ExitCode())

	require.NoError(t, p.Terminate())
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process ignored SIGTERM")
	}
	assert.NoError(t, p.Kill(), "killing an exited process is not an error")
	p.Output().Close()
}
