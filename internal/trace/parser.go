package trace

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parser deserializes a trace file back into a Document.
type Parser interface {
	Parse(data []byte) (*Document, error)
}

type XMLParser struct{}

func (p *XMLParser) Parse(data []byte) (*Document, error) {
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse XML trace: %w", err)
	}
	if doc.XMLName.Local != "eye_tracking" {
		return nil, fmt.Errorf("not a gaze trace: root element %q", doc.XMLName.Local)
	}
	return &doc, nil
}

type JSONParser struct{}

func (p *JSONParser) Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON trace: %w", err)
	}
	return &doc, nil
}

type YAMLParser struct{}

func (p *YAMLParser) Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML trace: %w", err)
	}
	return &doc, nil
}

// ParserFor picks a parser from a file name's extension. Unknown means XML.
func ParserFor(path string) Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return &JSONParser{}
	case ".yaml", ".yml":
		return &YAMLParser{}
	default:
		return &XMLParser{}
	}
}
