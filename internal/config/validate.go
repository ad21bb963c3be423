package config

import (
	"fmt"
	"strings"
)

// ValidationError reports one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch c.TraceFormat {
	case "xml", "json", "yaml":
	default:
		add("trace_format", "must be xml, json or yaml, got %q", c.TraceFormat)
	}
	switch c.Tracker.HostNetwork {
	case "auto", "always", "never":
	default:
		add("tracker.host_network", "must be auto, always or never, got %q", c.Tracker.HostNetwork)
	}
	if c.Tracker.ContainerPort < 1 || c.Tracker.ContainerPort > 65535 {
		add("tracker.container_port", "out of range: %d", c.Tracker.ContainerPort)
	}
	if c.Tracker.ContainerName == "" {
		add("tracker.container_name", "must not be empty")
	}
	if c.Tracker.ProbeTimeout <= 0 || c.Tracker.CleanupTimeout <= 0 || c.Tracker.StopTimeout <= 0 {
		add("tracker", "timeouts must be positive")
	}
	if c.Screen.MonitorIndex < 0 {
		add("screen.monitor_index", "must not be negative")
	}
	for i, m := range c.Screen.Monitors {
		if m.Width <= 0 || m.Height <= 0 {
			add(fmt.Sprintf("screen.monitors[%d]", i), "width and height must be positive")
		}
	}
	if c.Tolerance.X < 0 || c.Tolerance.Y < 0 {
		add("tolerance", "must not be negative")
	}
	if c.Stimulus.LineHeight <= 0 || c.Stimulus.CharWidth <= 0 {
		add("stimulus", "line_height and char_width must be positive")
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
