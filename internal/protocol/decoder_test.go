package protocol

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestDecodeScenarioBothEyesCentre(t *testing.T) {
	d := NewDecoder(nil)
	ev, ok := d.Decode(`{"type":"gaze","timestamp":100,"leftX":0.5,"leftY":0.5,"leftValidity":1,"rightX":0.5,"rightY":0.5,"rightValidity":1}`)
	if !ok {
		t.Fatal("expected event")
	}
	if ev.Kind != KindGaze {
		t.Fatalf("Kind: want gaze, got %v", ev.Kind)
	}
	f := ev.Gaze.Fused
	if !f.Valid || f.X != 0.5 || f.Y != 0.5 || f.Timestamp != 100 {
		t.Errorf("fused: got %+v", f)
	}
}

func TestDecodeClassification(t *testing.T) {
	d := NewDecoder(nil)
	cases := []struct {
		name string
		line string
		ok   bool
		kind Kind
	}{
		{"blank", "   ", false, 0},
		{"log text", "Starting tracker on port 5000", true, KindLog},
		{"half object", `{"type":"gaze"`, true, KindLog},
		{"malformed json", `{"type":"gaze","timestamp":}`, false, 0},
		{"status", `{"type":"status","status":"device_detected"}`, true, KindStatus},
		{"error", `{"type":"error","errorType":"no_device","message":"not found"}`, true, KindError},
		{"unknown type", `{"type":"heartbeat"}`, true, KindUnknown},
		{"missing type", `{"x":1}`, true, KindUnknown},
		{"padded", "  \t{\"type\":\"status\"}\r\n", true, KindStatus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, ok := d.Decode(tc.line)
			if ok != tc.ok {
				t.Fatalf("ok: want %v, got %v", tc.ok, ok)
			}
			if ok && ev.Kind != tc.kind {
				t.Errorf("Kind: want %v, got %v", tc.kind, ev.Kind)
			}
		})
	}
}

func TestDecodeDefaults(t *testing.T) {
	d := NewDecoder(nil)

	ev, _ := d.Decode(`{"type":"status"}`)
	if ev.Status != "unknown" {
		t.Errorf("status default: got %q", ev.Status)
	}
	ev, _ = d.Decode(`{"type":"error","message":"boom"}`)
	if ev.ErrorType != "unknown_error" || ev.Message != "boom" {
		t.Errorf("error defaults: got %+v", ev)
	}
}

func TestDecodeValidityNeedsFlagAndNumbers(t *testing.T) {
	d := NewDecoder(nil)
	cases := []struct {
		name      string
		line      string
		leftValid bool
	}{
		{"flag and numbers", `{"type":"gaze","leftX":0.1,"leftY":0.2,"leftValidity":1}`, true},
		{"flag zero", `{"type":"gaze","leftX":0.1,"leftY":0.2,"leftValidity":0}`, false},
		{"flag missing", `{"type":"gaze","leftX":0.1,"leftY":0.2}`, false},
		{"null coordinate", `{"type":"gaze","leftX":null,"leftY":0.2,"leftValidity":1}`, false},
		{"string coordinate", `{"type":"gaze","leftX":"0.1","leftY":0.2,"leftValidity":1}`, false},
		{"bare NaN", `{"type":"gaze","leftX":NaN,"leftY":0.2,"leftValidity":1}`, false},
		{"fractional flag", `{"type":"gaze","leftX":0.1,"leftY":0.2,"leftValidity":1.5}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, ok := d.Decode(tc.line)
			if !ok || ev.Kind != KindGaze {
				t.Fatalf("expected gaze event, got ok=%v %+v", ok, ev)
			}
			if ev.Gaze.Left.Valid != tc.leftValid {
				t.Errorf("Left.Valid: want %v, got %v", tc.leftValid, ev.Gaze.Left.Valid)
			}
		})
	}
}

func TestDecodePupil(t *testing.T) {
	d := NewDecoder(nil)
	ev, _ := d.Decode(`{"type":"gaze","rightX":0.3,"rightY":0.4,"rightValidity":1,"rightPupil":3.2,"rightPupilValidity":1}`)
	r := ev.Gaze.Right
	if !r.PupilValid || r.Pupil != 3.2 {
		t.Errorf("right pupil: got %+v", r)
	}
	if ev.Gaze.Left.PupilValid {
		t.Error("left pupil should be invalid when absent")
	}
}

func TestSanitizeNonFiniteLeavesStrings(t *testing.T) {
	in := `{"message":"NaN and Infinity \"NaN\"","x":NaN,"y":-Infinity}`
	want := `{"message":"NaN and Infinity \"NaN\"","x":null,"y":null}`
	if got := sanitizeNonFinite(in); got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func eyeJSON(prefix string, x, y float64, valid bool) string {
	v := 0
	if valid {
		v = 1
	}
	return fmt.Sprintf(`"%sX":%g,"%sY":%g,"%sValidity":%d`, prefix, x, prefix, y, prefix, v)
}

// Feature: gazetrace, Property: binocular fusion
func TestFusionProperties(t *testing.T) {
	d := NewDecoder(nil)
	coord := rapid.Float64Range(0, 1)

	rapid.Check(t, func(t *rapid.T) {
		lx, ly := coord.Draw(t, "lx"), coord.Draw(t, "ly")
		rx, ry := coord.Draw(t, "rx"), coord.Draw(t, "ry")
		lv := rapid.Bool().Draw(t, "leftValid")
		rv := rapid.Bool().Draw(t, "rightValid")

		line := `{"type":"gaze","timestamp":1,` + eyeJSON("left", lx, ly, lv) + "," + eyeJSON("right", rx, ry, rv) + "}"
		ev, ok := d.Decode(line)
		if !ok || ev.Kind != KindGaze {
			t.Fatalf("expected gaze event for %s", line)
		}
		f := ev.Gaze.Fused

		switch {
		case lv && rv:
			if !f.Valid || f.X != (lx+rx)/2 || f.Y != (ly+ry)/2 {
				t.Fatalf("both valid: want mean, got %+v", f)
			}
		case lv:
			if !f.Valid || f.X != lx || f.Y != ly {
				t.Fatalf("left only: want (%v,%v), got %+v", lx, ly, f)
			}
		case rv:
			if !f.Valid || f.X != rx || f.Y != ry {
				t.Fatalf("right only: want (%v,%v), got %+v", rx, ry, f)
			}
		default:
			if f.Valid || !math.IsNaN(f.X) || !math.IsNaN(f.Y) {
				t.Fatalf("neither valid: want invalid NaN point, got %+v", f)
			}
		}
	})
}

func TestRunSurvivesMalformedLine(t *testing.T) {
	input := strings.Join([]string{
		"tracker booting",
		`{"type":"gaze","timestamp":}`,
		`{"type":"gaze","timestamp":2,"leftX":0.25,"leftY":0.75,"leftValidity":1}`,
		`{"type":"status","status":"ok"}`,
	}, "\n")

	d := NewDecoder(nil)
	out := make(chan Event, 8)
	if err := d.Run(context.Background(), strings.NewReader(input), out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(out)

	var kinds []Kind
	var gaze Event
	for ev := range out {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == KindGaze {
			gaze = ev
		}
	}
	want := []Kind{KindLog, KindGaze, KindStatus}
	if fmt.Sprint(kinds) != fmt.Sprint(want) {
		t.Fatalf("kinds: want %v, got %v", want, kinds)
	}
	if gaze.Gaze.Timestamp != 2 || gaze.Gaze.Fused.X != 0.25 {
		t.Errorf("gaze after malformed line: got %+v", gaze.Gaze)
	}
}

func TestRunSkipsOversizeLine(t *testing.T) {
	huge := "{" + strings.Repeat("x", 2<<20) + "}"
	input := huge + "\n" + `{"type":"status","status":"ok"}` + "\n"

	d := NewDecoder(nil)
	out := make(chan Event, 8)
	if err := d.Run(context.Background(), strings.NewReader(input), out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(out)

	var got []Event
	for ev := range out {
		got = append(got, ev)
	}
	if len(got) != 1 || got[0].Kind != KindStatus || got[0].Status != "ok" {
		t.Fatalf("events after oversize line: %+v", got)
	}
}

func TestRunHandlesCRLFAndMissingFinalNewline(t *testing.T) {
	input := `{"type":"status","status":"a"}` + "\r\n" + `{"type":"status","status":"b"}`

	d := NewDecoder(nil)
	out := make(chan Event, 8)
	if err := d.Run(context.Background(), strings.NewReader(input), out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(out)

	var statuses []string
	for ev := range out {
		statuses = append(statuses, ev.Status)
	}
	if fmt.Sprint(statuses) != "[a b]" {
		t.Fatalf("statuses = %v", statuses)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Event)
	done := make(chan error, 1)
	go func() { done <- NewDecoder(nil).Run(ctx, pr, out) }()

	// Unread line: Run blocks on send until cancelled.
	go pw.Write([]byte(`{"type":"status"}` + "\n"))
	time.Sleep(20 * time.Millisecond)
	cancel()
	pw.Close()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("want context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
