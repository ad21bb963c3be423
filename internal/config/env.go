package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnv overlays GAZETRACE_* environment variables onto c.
func (c *Config) ApplyEnv() {
	overrideString(&c.OutputDir, "GAZETRACE_OUTPUT_DIR")
	overrideString(&c.TraceFormat, "GAZETRACE_TRACE_FORMAT")
	overrideBool(&c.Realtime, "GAZETRACE_REALTIME")
	overrideString(&c.Log.Level, "GAZETRACE_LOG_LEVEL")
	overrideString(&c.Log.Format, "GAZETRACE_LOG_FORMAT")
	overrideString(&c.Log.File, "GAZETRACE_LOG_FILE")
	overrideString(&c.Tracker.ImageBase, "GAZETRACE_TRACKER_IMAGE")
	overrideString(&c.Tracker.ContainerName, "GAZETRACE_TRACKER_CONTAINER")
	overrideString(&c.Tracker.HostNetwork, "GAZETRACE_TRACKER_HOST_NETWORK")
	overrideDuration(&c.Tracker.StopTimeout, "GAZETRACE_TRACKER_STOP_TIMEOUT")
	overrideInt(&c.Screen.MonitorIndex, "GAZETRACE_MONITOR_INDEX")
	overrideInt(&c.Calibration.OffsetX, "GAZETRACE_CALIBRATION_X")
	overrideInt(&c.Calibration.OffsetY, "GAZETRACE_CALIBRATION_Y")
	overrideInt(&c.Tolerance.X, "GAZETRACE_TOLERANCE_X")
	overrideInt(&c.Tolerance.Y, "GAZETRACE_TOLERANCE_Y")
	overrideString(&c.NATS.URL, "GAZETRACE_NATS_URL")
	overrideString(&c.NATS.Subject, "GAZETRACE_NATS_SUBJECT")
	overrideString(&c.NATS.Token, "GAZETRACE_NATS_TOKEN")
	overrideString(&c.API.Addr, "GAZETRACE_API_ADDR")
}

func overrideString(dest *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val
	}
}

func overrideDuration(dest *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			*dest = parsed
		}
	}
}

func overrideBool(dest *bool, key string) {
	if val := os.Getenv(key); val != "" {
		switch strings.ToLower(val) {
		case "1", "true", "yes", "y", "on":
			*dest = true
		case "0", "false", "no", "n", "off":
			*dest = false
		}
	}
}

func overrideInt(dest *int, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			*dest = parsed
		}
	}
}
