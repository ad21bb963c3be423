package trace

import (
	"math"
	"strings"
	"testing"
)

func sampleDocument() *Document {
	return &Document{
		Settings: Settings{ProjectPath: "/proj", FilePath: "/proj/main.go", IDE: "gazetrace", Tracker: ToolName},
		Entries:  []Entry{hitEntry(1, "main"), failEntry(2)},
	}
}

func TestXMLRendererShape(t *testing.T) {
	data, err := (&XMLRenderer{}).Render(sampleDocument())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`<eye_tracking>`,
		`<setting project_path="/proj" file_path="/proj/main.go" ide="gazetrace" tracker="gazetrace"></setting>`,
		`<gazes>`,
		`<gaze seq="1"`,
		`<location screen_x="0"`,
		`word="main" path="main.go"`,
		`<ast_structure token="main" type="Ident">`,
		`<level tag="Ident" start="9" end="13"></level>`,
		`remark="Fail | Mapping: off-screen"`,
		`rightX="NaN"`,
		"\n  <gazes>\n    <gaze ",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("XML output missing %q\n%s", want, out)
		}
	}
}

// NaN raw coordinates must survive every format.
func TestRoundTripKeepsNaNAndFailures(t *testing.T) {
	cases := []struct {
		name string
		r    Renderer
		p    Parser
	}{
		{"xml", &XMLRenderer{}, &XMLParser{}},
		{"json", &JSONRenderer{}, &JSONParser{}},
		{"yaml", &YAMLRenderer{}, &YAMLParser{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := tc.r.Render(sampleDocument())
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			doc, err := tc.p.Parse(data)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(doc.Entries) != 2 {
				t.Fatalf("entries = %d", len(doc.Entries))
			}
			hit, fail := doc.Entries[0], doc.Entries[1]
			if hit.Location == nil || hit.Location.Word != "main" || hit.AST == nil || len(hit.AST.Levels) != 1 {
				t.Errorf("hit entry = %+v", hit)
			}
			if !fail.Failed() || fail.Remark == "" {
				t.Errorf("fail entry = %+v", fail)
			}
			if !math.IsNaN(float64(fail.RightX)) {
				t.Errorf("RightX = %v, want NaN", fail.RightX)
			}
			if float64(fail.GX) != 1.5 {
				t.Errorf("GX = %v", fail.GX)
			}
		})
	}
}

func TestXMLParserRejectsForeignRoot(t *testing.T) {
	if _, err := (&XMLParser{}).Parse([]byte(`<bundle></bundle>`)); err == nil {
		t.Error("expected error for foreign root element")
	}
}

func TestJSONParserMalformed(t *testing.T) {
	if _, err := (&JSONParser{}).Parse([]byte(`{"gazes": [`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestPickByName(t *testing.T) {
	if RendererFor("json").Ext() != ".json" || RendererFor("yml").Ext() != ".yaml" || RendererFor("").Ext() != ".xml" {
		t.Error("RendererFor picked the wrong renderer")
	}
	if _, ok := ParserFor("trace.YAML").(*YAMLParser); !ok {
		t.Error("ParserFor(.YAML) should be YAMLParser")
	}
	if _, ok := ParserFor("eye_tracking.xml").(*XMLParser); !ok {
		t.Error("ParserFor(.xml) should be XMLParser")
	}
}
