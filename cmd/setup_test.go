package cmd

import (
	"strings"
	"testing"

	"github.com/fakeyudi/gazetrace/internal/profile"
)

func TestSetupWritesProfile(t *testing.T) {
	isolate(t)

	rootCmd.SetIn(strings.NewReader("p07\njson\n\n1\n60\n70\ny\n"))
	t.Cleanup(func() { rootCmd.SetIn(nil) })

	out, err := executeCommand(rootCmd, "setup")
	if err != nil {
		t.Fatalf("setup: %v\n%s", err, out)
	}
	for _, want := range []string{
		"Profile saved.",
		"Participant:        p07",
		"Trace:              json in .gazetrace-data",
		"Monitor:            1",
		"Calibration offset: (60, 70) px",
		"Realtime feed:      on",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	p, err := profile.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := profile.Profile{
		Participant:   "p07",
		DefaultFormat: "json",
		OutputDir:     ".gazetrace-data",
		MonitorIndex:  1,
		CalibrationX:  60,
		CalibrationY:  70,
		Realtime:      true,
	}
	if *p != want {
		t.Errorf("profile = %+v, want %+v", *p, want)
	}
}
