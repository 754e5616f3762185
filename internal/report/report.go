// Package report turns a finished run into a human readable Markdown report
// and a machine readable JSON document.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kingrea/ipu-gate/internal/journal"
	"github.com/kingrea/ipu-gate/internal/message"
	"github.com/kingrea/ipu-gate/internal/workflow/engine"
)

// File names written by Write.
const (
	MarkdownFile = "report.md"
	JSONFile     = "report.json"
)

// Entry is one reported message.
type Entry struct {
	Seq       int              `json:"seq"`
	Kind      message.Kind     `json:"kind"`
	Actor     string           `json:"actor"`
	Severity  message.Severity `json:"severity,omitempty"`
	Result    string           `json:"result,omitempty"`
	Summary   string           `json:"summary"`
	Details   string           `json:"details,omitempty"`
	Solutions string           `json:"solutions,omitempty"`
}

// PhaseLine summarizes one phase.
type PhaseLine struct {
	ID     string            `json:"id"`
	State  engine.PhaseState `json:"state"`
	Actors []string          `json:"actors,omitempty"`
}

// Report is the rendered outcome of a run. Inhibitors always precede check
// results.
type Report struct {
	RunID       string              `json:"run_id"`
	WorkflowID  string              `json:"workflow_id"`
	Status      engine.EngineStatus `json:"status"`
	Reason      string              `json:"reason,omitempty"`
	GeneratedAt time.Time           `json:"generated_at"`
	Phases      []PhaseLine         `json:"phases"`
	Inhibitors  []Entry             `json:"inhibitors"`
	Results     []Entry             `json:"results"`
}

// Build extracts a report from an engine snapshot.
func Build(state engine.State, now time.Time) Report {
	r := Report{
		RunID:       state.RunID,
		WorkflowID:  state.WorkflowID,
		Status:      state.Status,
		Reason:      state.StatusReason,
		GeneratedAt: now.UTC(),
		Inhibitors:  []Entry{},
		Results:     []Entry{},
	}
	for _, phase := range state.Phases {
		line := PhaseLine{ID: phase.ID, State: phase.State}
		for _, a := range phase.Actors {
			line.Actors = append(line.Actors, a.Name)
		}
		r.Phases = append(r.Phases, line)
	}
	for _, env := range state.Messages {
		switch p := env.Payload.(type) {
		case message.Inhibitor:
			r.Inhibitors = append(r.Inhibitors, Entry{
				Seq: env.Seq, Kind: env.Kind, Actor: env.Actor,
				Summary: p.Summary, Details: p.Details, Solutions: p.Solutions,
			})
		case message.CheckResult:
			r.Results = append(r.Results, Entry{
				Seq: env.Seq, Kind: env.Kind, Actor: env.Actor,
				Severity: p.Severity, Result: p.Result,
				Summary: p.Summary, Details: p.Details, Solutions: p.Solutions,
			})
		}
	}
	return r
}

// FromJournal rebuilds the report of a past run from its journaled messages.
// Phase lines are not journaled and stay empty.
func FromJournal(run journal.RunSummary, envelopes []message.Envelope, now time.Time) Report {
	state := engine.State{
		RunID:        run.RunID,
		WorkflowID:   run.WorkflowID,
		Status:       engine.EngineStatus(run.Status),
		StatusReason: run.Reason,
		Messages:     envelopes,
	}
	if state.Status == "" {
		state.Status = engine.EngineStatusRunning
		state.StatusReason = "run did not record a final status"
	}
	return Build(state, now)
}

// Entries returns inhibitors followed by check results.
func (r Report) Entries() []Entry {
	out := make([]Entry, 0, len(r.Inhibitors)+len(r.Results))
	out = append(out, r.Inhibitors...)
	return append(out, r.Results...)
}

// JSON renders the report as indented JSON.
func (r Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report: encode json: %w", err)
	}
	return append(data, '\n'), nil
}

// Markdown renders the report with a YAML frontmatter block.
func (r Report) Markdown() ([]byte, error) {
	meta := Metadata{
		RunID:      r.RunID,
		Workflow:   r.WorkflowID,
		Status:     string(r.Status),
		Inhibitors: len(r.Inhibitors),
		Results:    len(r.Results),
		Generated:  r.GeneratedAt,
	}
	return WriteFrontMatter(meta, []byte(r.body()))
}

func (r Report) body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Upgrade check report\n\n")
	fmt.Fprintf(&b, "Workflow `%s`, run `%s`: **%s**", r.WorkflowID, r.RunID, r.Status)
	if r.Reason != "" {
		fmt.Fprintf(&b, " (%s)", r.Reason)
	}
	b.WriteString("\n\n## Phases\n\n")
	for _, phase := range r.Phases {
		fmt.Fprintf(&b, "- %s: %s", phase.ID, phase.State)
		if len(phase.Actors) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(phase.Actors, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n## Inhibitors\n\n")
	if len(r.Inhibitors) == 0 {
		b.WriteString("None.\n")
	}
	for _, e := range r.Inhibitors {
		writeEntry(&b, e)
	}
	b.WriteString("\n## Check results\n\n")
	if len(r.Results) == 0 {
		b.WriteString("None.\n")
	}
	for _, e := range r.Results {
		writeEntry(&b, e)
	}
	return b.String()
}

func writeEntry(b *strings.Builder, e Entry) {
	fmt.Fprintf(b, "### %s\n\n", e.Summary)
	if e.Severity != "" {
		fmt.Fprintf(b, "- Severity: %s\n", e.Severity)
	}
	if e.Result != "" {
		fmt.Fprintf(b, "- Result: %s\n", e.Result)
	}
	fmt.Fprintf(b, "- Reported by: %s\n", e.Actor)
	if e.Details != "" {
		fmt.Fprintf(b, "\n%s\n", e.Details)
	}
	if e.Solutions != "" {
		fmt.Fprintf(b, "\nSolutions: %s\n", e.Solutions)
	}
	b.WriteString("\n")
}

// Write stores the Markdown and JSON renderings in dir and returns their paths.
func Write(dir string, r Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: mkdir %s: %w", dir, err)
	}
	md, err := r.Markdown()
	if err != nil {
		return nil, err
	}
	js, err := r.JSON()
	if err != nil {
		return nil, err
	}
	mdPath := filepath.Join(dir, MarkdownFile)
	jsPath := filepath.Join(dir, JSONFile)
	if err := os.WriteFile(mdPath, md, 0o644); err != nil {
		return nil, fmt.Errorf("report: write %s: %w", mdPath, err)
	}
	if err := os.WriteFile(jsPath, js, 0o644); err != nil {
		return nil, fmt.Errorf("report: write %s: %w", jsPath, err)
	}
	return []string{mdPath, jsPath}, nil
}
