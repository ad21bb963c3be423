package cmd

import (
	"github.com/fakeyudi/gazetrace/internal/api"
	"github.com/fakeyudi/gazetrace/internal/supervisor"
	"github.com/fakeyudi/gazetrace/internal/tracker"
)

// sessionController exposes a running start command to the control API.
type sessionController struct {
	trk  *tracker.Tracker
	sup  *supervisor.Supervisor // nil when replaying without docker
	stop func()
}

func (c *sessionController) Status() (api.Status, bool) {
	s, ok := c.trk.Session()
	if !ok {
		return api.Status{}, false
	}
	st := s.Stats()
	out := api.Status{
		SessionID:   s.ID,
		ProjectPath: s.Info.ProjectPath,
		FilePath:    s.Info.FilePath,
		StartedAt:   s.StartedAt,
		Supervisor:  "none",
		HostPort:    -1,
		Paused:      s.Paused(),
		Realtime:    c.trk.Dispatcher().Realtime(),
		Received:    st.Received,
		Dropped:     st.Dropped,
		Skipped:     st.Skipped,
		Entries:     st.Entries,
	}
	if c.sup != nil {
		out.Supervisor = c.sup.State().String()
		out.HostPort = c.sup.HostPort()
	}
	return out, true
}

func (c *sessionController) RequestStop() { c.stop() }
func (c *sessionController) Pause() bool  { return c.trk.Pause() }
func (c *sessionController) Resume() bool { return c.trk.Resume() }
