package protocol

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/fakeyudi/gazetrace/internal/logging"
)

// maxLineSize bounds a single tracker line.
const maxLineSize = 1024 * 1024

// Decoder turns raw tracker lines into Events.
type Decoder struct {
	log *slog.Logger
}

// NewDecoder returns a Decoder logging through l (nil discards).
func NewDecoder(l *slog.Logger) *Decoder {
	return &Decoder{log: logging.OrDiscard(l).With("component", "decoder")}
}

// Decode classifies one raw line. ok is false when the line carries nothing
// worth forwarding: blank, or an object that failed to parse.
func (d *Decoder) Decode(raw string) (Event, bool) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return Event{}, false
	}
	if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
		return Event{Kind: KindLog, Raw: line}, true
	}

	body := sanitizeNonFinite(line)
	if !gjson.Valid(body) {
		d.log.Debug("discarding malformed tracker line", "line", line)
		return Event{}, false
	}
	obj := gjson.Parse(body)
	if !obj.IsObject() {
		d.log.Debug("discarding non-object tracker line", "line", line)
		return Event{}, false
	}

	typ := obj.Get("type").String()
	switch typ {
	case "gaze":
		return Event{Kind: KindGaze, Gaze: decodeGaze(obj), Raw: line}, true
	case "status":
		return Event{Kind: KindStatus, Status: stringOr(obj.Get("status"), "unknown"), Raw: line}, true
	case "error":
		return Event{
			Kind:      KindError,
			ErrorType: stringOr(obj.Get("errorType"), "unknown_error"),
			Message:   obj.Get("message").String(),
			Raw:       line,
		}, true
	default:
		d.log.Info("unknown tracker message type", "type", typ, "line", line)
		return Event{Kind: KindUnknown, Type: typ, Raw: line}, true
	}
}

func decodeGaze(obj gjson.Result) Gaze {
	left := decodeEye(obj, "left")
	right := decodeEye(obj, "right")
	ts := number(obj.Get("timestamp"))
	return Gaze{
		Timestamp: ts,
		Left:      left,
		Right:     right,
		Fused:     Fuse(left, right, ts),
	}
}

func decodeEye(obj gjson.Result, prefix string) Eye {
	e := Eye{
		X:             number(obj.Get(prefix + "X")),
		Y:             number(obj.Get(prefix + "Y")),
		Validity:      flag(obj.Get(prefix + "Validity")),
		Pupil:         number(obj.Get(prefix + "Pupil")),
		PupilValidity: flag(obj.Get(prefix + "PupilValidity")),
	}
	e.Valid = e.Validity == ValidSentinel && finite(e.X) && finite(e.Y)
	e.PupilValid = e.PupilValidity == ValidSentinel && finite(e.Pupil)
	return e
}

// number yields NaN for anything that is not a JSON number.
func number(r gjson.Result) float64 {
	if r.Type != gjson.Number {
		return math.NaN()
	}
	return r.Float()
}

// flag yields -1 for a missing or non-numeric validity flag.
func flag(r gjson.Result) int {
	if r.Type != gjson.Number {
		return -1
	}
	f := r.Float()
	if f != math.Trunc(f) {
		return -1
	}
	return int(f)
}

func stringOr(r gjson.Result, def string) string {
	if !r.Exists() || r.Type == gjson.Null {
		return def
	}
	return r.String()
}

// sanitizeNonFinite rewrites the bare NaN / Infinity / -Infinity tokens some
// JSON encoders emit into null, leaving string contents untouched.
func sanitizeNonFinite(s string) string {
	if !strings.Contains(s, "NaN") && !strings.Contains(s, "Infinity") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch c {
			case '\\':
				if i+1 < len(s) {
					i++
					b.WriteByte(s[i])
				}
			case '"':
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case strings.HasPrefix(s[i:], "NaN"):
			b.WriteString("null")
			i += len("NaN") - 1
		case strings.HasPrefix(s[i:], "-Infinity"):
			b.WriteString("null")
			i += len("-Infinity") - 1
		case strings.HasPrefix(s[i:], "Infinity"):
			b.WriteString("null")
			i += len("Infinity") - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// errLineTooLong marks a line that was consumed but not kept.
var errLineTooLong = errors.New("tracker line exceeds limit")

// readLine returns the next line without its terminator. A line longer than
// maxLineSize is read through to its newline and reported as errLineTooLong,
// leaving br positioned at the start of the following line.
func readLine(br *bufio.Reader) (string, error) {
	var buf []byte
	over := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !over {
			buf = append(buf, chunk...)
			if len(bytes.TrimRight(buf, "\r\n")) > maxLineSize {
				over, buf = true, nil
			}
		}
		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF:
			if over {
				return "", errLineTooLong
			}
			if len(buf) == 0 {
				return "", io.EOF
			}
			return string(bytes.TrimRight(buf, "\r")), nil
		case err != nil:
			return "", err
		}
		if over {
			return "", errLineTooLong
		}
		return string(bytes.TrimRight(buf, "\r\n")), nil
	}
}

// Run pumps r line by line into out until EOF, a read error, or ctx is done.
// Lines are delivered in arrival order; malformed and oversize lines are
// dropped and the pump carries on. Log text is logged here and also forwarded.
func (d *Decoder) Run(ctx context.Context, r io.Reader, out chan<- Event) error {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := readLine(br)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, errLineTooLong) {
			d.log.Warn("discarding oversize tracker line", "limit", maxLineSize)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		ev, ok := d.Decode(line)
		if !ok {
			continue
		}
		if ev.Kind == KindLog {
			d.log.Info("tracker", "text", ev.Raw)
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
