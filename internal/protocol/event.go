// Package protocol decodes the newline-delimited JSON stream emitted by the
// eye tracker process.
package protocol

import "math"

// Kind tags a decoded tracker line.
type Kind int

const (
	KindGaze Kind = iota
	KindStatus
	KindError
	KindUnknown
	// KindLog is non-protocol text from the tracker's merged output.
	KindLog
)

func (k Kind) String() string {
	switch k {
	case KindGaze:
		return "gaze"
	case KindStatus:
		return "status"
	case KindError:
		return "error"
	case KindUnknown:
		return "unknown"
	case KindLog:
		return "log"
	default:
		return "invalid"
	}
}

// ValidSentinel is the validity flag value the tracker uses for a good sample.
const ValidSentinel = 1

// Eye is one eye's sample. Pupil fields are zero when the tracker omits them.
type Eye struct {
	X, Y          float64
	Validity      int
	Valid         bool
	Pupil         float64
	PupilValidity int
	PupilValid    bool
}

// Gaze is a binocular sample plus its fused point.
type Gaze struct {
	Timestamp float64
	Left      Eye
	Right     Eye
	Fused     FusedPoint
}

// FusedPoint is the single gaze estimate derived from up to two eyes.
// X and Y are NaN when Valid is false.
type FusedPoint struct {
	X, Y      float64
	Timestamp float64
	Valid     bool
}

// Event is a decoded line. Exactly one of Gaze, Status, Error is meaningful,
// selected by Kind. Raw is the original (trimmed) line.
type Event struct {
	Kind      Kind
	Gaze      Gaze
	Status    string
	ErrorType string
	Message   string
	Type      string // discriminator as received, for KindUnknown
	Raw       string
}

// Fuse combines two eye samples.
func Fuse(left, right Eye, ts float64) FusedPoint {
	switch {
	case left.Valid && right.Valid:
		return FusedPoint{X: (left.X + right.X) / 2, Y: (left.Y + right.Y) / 2, Timestamp: ts, Valid: true}
	case left.Valid:
		return FusedPoint{X: left.X, Y: left.Y, Timestamp: ts, Valid: true}
	case right.Valid:
		return FusedPoint{X: right.X, Y: right.Y, Timestamp: ts, Valid: true}
	default:
		return FusedPoint{X: math.NaN(), Y: math.NaN(), Timestamp: ts}
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
