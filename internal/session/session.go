// Package session persists the state of the running tracking session so
// other gazetrace invocations can find and control it.
package session

import "time"

// Session is what a running `gazetrace start` publishes about itself.
type Session struct {
	ID          string     `json:"id"`
	StartTime   time.Time  `json:"start_time"`
	StopTime    *time.Time `json:"stop_time,omitempty"`
	ProjectPath string     `json:"project_path"`
	FilePath    string     `json:"file_path"`
	OutputDir   string     `json:"output_dir,omitempty"`
	TraceFormat string     `json:"trace_format,omitempty"`
	Participant string     `json:"participant,omitempty"`
	// PID is the process running the session.
	PID int `json:"pid"`
	// APIAddr is the host:port of the control API.
	APIAddr string `json:"api_addr,omitempty"`
	// Replay is set when the session reads a recorded log instead of a
	// live tracker.
	Replay bool `json:"replay,omitempty"`
}

// Elapsed is how long the session has been (or was) running.
func (s *Session) Elapsed(now time.Time) time.Duration {
	end := now
	if s.StopTime != nil {
		end = *s.StopTime
	}
	return end.Sub(s.StartTime)
}

// Alive reports whether the owning process still exists.
func (s *Session) Alive() bool {
	return s.PID > 0 && processAlive(s.PID)
}
