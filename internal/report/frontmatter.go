package report

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingFrontMatter indicates the document did not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("report: missing frontmatter")
	// ErrMalformedFrontMatter indicates the YAML block could not be parsed.
	ErrMalformedFrontMatter = errors.New("report: malformed frontmatter")
)

const timeLayout = time.RFC3339

// Metadata is the frontmatter block at the top of a Markdown report.
type Metadata struct {
	RunID      string
	Workflow   string
	Status     string
	Inhibitors int
	Results    int
	Generated  time.Time
}

type ipuEnvelope struct {
	IPU ipuMetadata `yaml:"ipu"`
}

type ipuMetadata struct {
	Run        string `yaml:"run"`
	Workflow   string `yaml:"workflow"`
	Status     string `yaml:"status"`
	Inhibitors int    `yaml:"inhibitors"`
	Results    int    `yaml:"results"`
	Generated  string `yaml:"generated"`
}

// WriteFrontMatter renders metadata + body with YAML fences.
func WriteFrontMatter(meta Metadata, body []byte) ([]byte, error) {
	if meta.RunID == "" {
		return nil, fmt.Errorf("report: metadata missing run id")
	}
	envelope := ipuEnvelope{IPU: ipuMetadata{
		Run:        meta.RunID,
		Workflow:   meta.Workflow,
		Status:     meta.Status,
		Inhibitors: meta.Inhibitors,
		Results:    meta.Results,
		Generated:  meta.Generated.UTC().Format(timeLayout),
	}}
	data, err := yaml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("report: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(bytes.TrimRight(data, "\n"))
	buf.WriteString("\n---\n\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

// ParseFrontMatter extracts the metadata block and body from a report.
func ParseFrontMatter(content []byte) (Metadata, []byte, error) {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return Metadata{}, nil, ErrMissingFrontMatter
	}
	parts := bytes.SplitN(normalized[4:], []byte("\n---\n"), 2)
	if len(parts) < 2 {
		return Metadata{}, nil, ErrMalformedFrontMatter
	}
	var envelope ipuEnvelope
	if err := yaml.Unmarshal(parts[0], &envelope); err != nil {
		return Metadata{}, nil, fmt.Errorf("%w: %v", ErrMalformedFrontMatter, err)
	}
	if envelope.IPU.Run == "" {
		return Metadata{}, nil, ErrMalformedFrontMatter
	}
	generated, err := time.Parse(timeLayout, envelope.IPU.Generated)
	if err != nil {
		return Metadata{}, nil, fmt.Errorf("report: parse generated timestamp: %w", err)
	}
	meta := Metadata{
		RunID:      envelope.IPU.Run,
		Workflow:   envelope.IPU.Workflow,
		Status:     envelope.IPU.Status,
		Inhibitors: envelope.IPU.Inhibitors,
		Results:    envelope.IPU.Results,
		Generated:  generated,
	}
	return meta, bytes.TrimLeft(parts[1], "\n"), nil
}
