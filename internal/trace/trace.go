// Package trace holds the per-session gaze trace, its on-disk encodings and
// the single-writer Recorder that accumulates it.
package trace

import (
	"encoding/json"
	"encoding/xml"
	"math"
)

// Tool identity written into every trace header.
const ToolName = "gazetrace"

// Document is the complete, renderable trace of one session.
type Document struct {
	XMLName  xml.Name `json:"-" yaml:"-" xml:"eye_tracking"`
	Settings Settings `json:"setting" yaml:"setting" xml:"setting"`
	Entries  []Entry  `json:"gazes" yaml:"gazes" xml:"gazes>gaze"`
}

// Settings is the header created once at session start.
type Settings struct {
	ProjectPath string `json:"project_path" yaml:"project_path" xml:"project_path,attr"`
	FilePath    string `json:"file_path" yaml:"file_path" xml:"file_path,attr"`
	IDE         string `json:"ide" yaml:"ide" xml:"ide,attr"`
	Tracker     string `json:"tracker" yaml:"tracker" xml:"tracker,attr"`
	SessionID   string `json:"session_id,omitempty" yaml:"session_id,omitempty" xml:"session_id,attr,omitempty"`
	Participant string `json:"participant,omitempty" yaml:"participant,omitempty" xml:"participant,attr,omitempty"`
	StartedAt   string `json:"started_at,omitempty" yaml:"started_at,omitempty" xml:"started_at,attr,omitempty"`
}

// Entry is one processed gaze sample. A failed mapping carries Remark and
// neither Location nor AST.
type Entry struct {
	Seq       uint64    `json:"seq" yaml:"seq" xml:"seq,attr"`
	Timestamp Float     `json:"timestamp" yaml:"timestamp" xml:"timestamp,attr"`
	LeftX     Float     `json:"leftX" yaml:"leftX" xml:"leftX,attr"`
	LeftY     Float     `json:"leftY" yaml:"leftY" xml:"leftY,attr"`
	RightX    Float     `json:"rightX" yaml:"rightX" xml:"rightX,attr"`
	RightY    Float     `json:"rightY" yaml:"rightY" xml:"rightY,attr"`
	GX        Float     `json:"gx" yaml:"gx" xml:"gx,attr"`
	GY        Float     `json:"gy" yaml:"gy" xml:"gy,attr"`
	Remark    string    `json:"remark,omitempty" yaml:"remark,omitempty" xml:"remark,attr,omitempty"`
	Location  *Location `json:"location,omitempty" yaml:"location,omitempty" xml:"location,omitempty"`
	AST       *AST      `json:"ast_structure,omitempty" yaml:"ast_structure,omitempty" xml:"ast_structure,omitempty"`
}

// Failed reports whether the entry records a mapping failure.
func (e Entry) Failed() bool { return e.Location == nil }

// Location is where on screen and in the document the gaze landed.
type Location struct {
	ScreenX int    `json:"screen_x" yaml:"screen_x" xml:"screen_x,attr"`
	ScreenY int    `json:"screen_y" yaml:"screen_y" xml:"screen_y,attr"`
	EditorX int    `json:"editor_x" yaml:"editor_x" xml:"editor_x,attr"`
	EditorY int    `json:"editor_y" yaml:"editor_y" xml:"editor_y,attr"`
	LocalX  int    `json:"local_x" yaml:"local_x" xml:"local_x,attr"`
	LocalY  int    `json:"local_y" yaml:"local_y" xml:"local_y,attr"`
	Line    int    `json:"line" yaml:"line" xml:"line,attr"`
	Column  int    `json:"column" yaml:"column" xml:"column,attr"`
	Offset  int    `json:"offset" yaml:"offset" xml:"offset,attr"`
	Char    string `json:"char" yaml:"char" xml:"char,attr"`
	Word    string `json:"word" yaml:"word" xml:"word,attr"`
	Path    string `json:"path" yaml:"path" xml:"path,attr"`
}

// AST is the syntax token under the gaze and its enclosing levels,
// innermost first.
type AST struct {
	Token  string  `json:"token" yaml:"token" xml:"token,attr"`
	Type   string  `json:"type" yaml:"type" xml:"type,attr"`
	Remark string  `json:"remark,omitempty" yaml:"remark,omitempty" xml:"remark,attr,omitempty"`
	Levels []Level `json:"levels,omitempty" yaml:"levels,omitempty" xml:"level"`
}

// Level is one enclosing syntax node.
type Level struct {
	Tag   string `json:"tag" yaml:"tag" xml:"tag,attr"`
	Text  string `json:"text,omitempty" yaml:"text,omitempty" xml:"text,attr,omitempty"`
	Start int    `json:"start" yaml:"start" xml:"start,attr"`
	End   int    `json:"end" yaml:"end" xml:"end,attr"`
}

// Float is a float64 whose NaN survives JSON as null.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}
