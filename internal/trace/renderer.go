package trace

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Renderer serializes a trace Document to bytes.
type Renderer interface {
	Render(doc *Document) ([]byte, error)
	// Ext is the file extension, including the dot.
	Ext() string
}

// XMLRenderer renders the trace as indented XML.
type XMLRenderer struct{}

func (r *XMLRenderer) Render(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode xml trace: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode xml trace: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (r *XMLRenderer) Ext() string { return ".xml" }

// JSONRenderer renders the trace as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

func (r *JSONRenderer) Ext() string { return ".json" }

// YAMLRenderer renders the trace as YAML.
type YAMLRenderer struct{}

func (r *YAMLRenderer) Render(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode yaml trace: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml trace: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *YAMLRenderer) Ext() string { return ".yaml" }

// RendererFor picks a renderer by format name. Unknown names mean XML.
func RendererFor(format string) Renderer {
	switch format {
	case "json":
		return &JSONRenderer{}
	case "yaml", "yml":
		return &YAMLRenderer{}
	default:
		return &XMLRenderer{}
	}
}
