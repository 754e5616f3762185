package report

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/ipu-gate/internal/journal"
	"github.com/kingrea/ipu-gate/internal/message"
	"github.com/kingrea/ipu-gate/internal/workflow/engine"
)

var generated = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleState() engine.State {
	return engine.State{
		RunID:        "ipu-1",
		WorkflowID:   "ipu",
		Status:       engine.EngineStatusInhibited,
		StatusReason: "halted after phase reports: 1 inhibitor(s) reported",
		Phases: []engine.PhaseStatus{
			{ID: "checks", State: engine.PhaseStateComplete, Actors: []engine.ActorStatus{{Name: "check_os_release"}}},
			{ID: "upgrade-preparation", State: engine.PhaseStateSkipped},
		},
		Messages: []message.Envelope{
			{Seq: 1, Kind: message.KindOSReleaseFacts, Actor: "os_release_collector", Payload: message.OSReleaseFacts{ReleaseID: "rhel", VersionID: "7.5"}},
			{Seq: 2, Kind: message.KindCheckResult, Actor: "other_check", Payload: message.CheckResult{Severity: message.SeverityInfo, Result: "Pass", Summary: "Other check"}},
			{Seq: 3, Kind: message.KindInhibitor, Actor: "check_os_release", Payload: message.Inhibitor{Summary: "Unsupported OS version", Details: "Minimal supported OS version for upgrade process: 7.6"}},
		},
	}
}

func TestBuildOrdersInhibitorsFirst(t *testing.T) {
	r := Build(sampleState(), generated)
	entries := r.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Kind != message.KindInhibitor || entries[1].Kind != message.KindCheckResult {
		t.Fatalf("inhibitors must come first: %+v", entries)
	}
	if len(r.Phases) != 2 || r.Phases[1].State != engine.PhaseStateSkipped {
		t.Fatalf("unexpected phases %+v", r.Phases)
	}
}

func TestFromJournalKeepsRecordedStatus(t *testing.T) {
	state := sampleState()
	run := journal.RunSummary{RunID: "ipu-1", WorkflowID: "ipu", Status: "inhibited", Reason: "halted after phase reports"}
	r := FromJournal(run, state.Messages, generated)
	if r.Status != engine.EngineStatusInhibited || r.Reason != "halted after phase reports" {
		t.Fatalf("unexpected status %s (%s)", r.Status, r.Reason)
	}
	if len(r.Inhibitors) != 1 || len(r.Results) != 1 || len(r.Phases) != 0 {
		t.Fatalf("unexpected report %+v", r)
	}
	unfinished := FromJournal(journal.RunSummary{RunID: "ipu-2"}, nil, generated)
	if unfinished.Status != engine.EngineStatusRunning || unfinished.Reason == "" {
		t.Fatalf("unfinished run should say so: %+v", unfinished)
	}
}

func TestMarkdownFrontMatterRoundTrip(t *testing.T) {
	r := Build(sampleState(), generated)
	doc, err := r.Markdown()
	if err != nil {
		t.Fatalf("markdown: %v", err)
	}
	meta, body, err := ParseFrontMatter(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if meta.RunID != "ipu-1" || meta.Status != "inhibited" || meta.Inhibitors != 1 || meta.Results != 1 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if !meta.Generated.Equal(generated) {
		t.Fatalf("generated mismatch %v", meta.Generated)
	}
	text := string(body)
	if !strings.HasPrefix(text, "# Upgrade check report") {
		t.Fatalf("body should start with the title: %q", text)
	}
	inh := strings.Index(text, "Unsupported OS version")
	res := strings.Index(text, "Other check")
	if inh < 0 || res < 0 || inh > res {
		t.Fatalf("inhibitor should render before results:\n%s", text)
	}
}

func TestParseFrontMatterErrors(t *testing.T) {
	if _, _, err := ParseFrontMatter([]byte("# no frontmatter")); !errors.Is(err, ErrMissingFrontMatter) {
		t.Fatalf("expected missing frontmatter, got %v", err)
	}
	if _, _, err := ParseFrontMatter([]byte("---\nipu: {}\n")); !errors.Is(err, ErrMalformedFrontMatter) {
		t.Fatalf("expected malformed frontmatter, got %v", err)
	}
}

func TestWriteProducesBothFiles(t *testing.T) {
	dir := t.TempDir()
	paths, err := Write(dir, Build(sampleState(), generated))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected two paths, got %v", paths)
	}
	data, err := os.ReadFile(paths[1])
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Status != engine.EngineStatusInhibited || len(decoded.Inhibitors) != 1 {
		t.Fatalf("unexpected decoded report %+v", decoded)
	}
}
