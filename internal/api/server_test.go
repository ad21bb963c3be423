package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	active  atomic.Bool
	paused  atomic.Bool
	stopped atomic.Int32
}

func (f *fakeController) Status() (Status, bool) {
	if !f.active.Load() {
		return Status{}, false
	}
	return Status{
		SessionID:  "s-1",
		FilePath:   "main.go",
		Supervisor: "running",
		HostPort:   5000,
		Paused:     f.paused.Load(),
		Entries:    12,
	}, true
}

func (f *fakeController) RequestStop() { f.stopped.Add(1) }

func (f *fakeController) Pause() bool {
	if !f.active.Load() {
		return false
	}
	f.paused.Store(true)
	return true
}

func (f *fakeController) Resume() bool {
	if !f.active.Load() {
		return false
	}
	f.paused.Store(false)
	return true
}

func activeController() *fakeController {
	f := &fakeController{}
	f.active.Store(true)
	return f
}

func serve(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer(&fakeController{}, nil)
	w := serve(t, srv, "GET", "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatusEndpoint(t *testing.T) {
	srv := NewServer(activeController(), nil)
	w := serve(t, srv, "GET", "/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var st Status
	require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
	assert.Equal(t, "s-1", st.SessionID)
	assert.Equal(t, 5000, st.HostPort)
	assert.Equal(t, 12, st.Entries)
}

func TestStatusWithoutSession(t *testing.T) {
	srv := NewServer(&fakeController{}, nil)
	w := serve(t, srv, "GET", "/api/v1/status")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPauseResumeStop(t *testing.T) {
	ctrl := activeController()
	srv := NewServer(ctrl, nil)

	assert.Equal(t, http.StatusOK, serve(t, srv, "POST", "/api/v1/pause").Code)
	assert.True(t, ctrl.paused.Load())
	assert.Equal(t, http.StatusOK, serve(t, srv, "POST", "/api/v1/resume").Code)
	assert.False(t, ctrl.paused.Load())

	assert.Equal(t, http.StatusAccepted, serve(t, srv, "POST", "/api/v1/stop").Code)
	assert.Equal(t, int32(1), ctrl.stopped.Load())
}

func TestPauseWithoutSessionConflicts(t *testing.T) {
	srv := NewServer(&fakeController{}, nil)
	assert.Equal(t, http.StatusConflict, serve(t, srv, "POST", "/api/v1/pause").Code)
}

func TestWrongMethodAndUnknownPath(t *testing.T) {
	srv := NewServer(activeController(), nil)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(t, srv, "GET", "/api/v1/stop").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, srv, "GET", "/nonexistent").Code)
}

func TestClientAgainstServer(t *testing.T) {
	ctrl := activeController()
	srv := NewServer(ctrl, nil)

	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	c := NewClient(ln.Addr().String())
	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main.go", st.FilePath)

	require.NoError(t, c.Pause(context.Background()))
	assert.True(t, ctrl.paused.Load())
	require.NoError(t, c.Resume(context.Background()))
	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, int32(1), ctrl.stopped.Load())

	ctrl.active.Store(false)
	_, err = c.Status(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no active session"), err.Error())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
