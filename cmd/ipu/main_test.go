package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/ipu-gate/internal/actor"
	"github.com/kingrea/ipu-gate/internal/config"
	"github.com/kingrea/ipu-gate/internal/journal"
	"github.com/kingrea/ipu-gate/internal/message"
	"github.com/kingrea/ipu-gate/internal/report"
	"github.com/kingrea/ipu-gate/internal/workflow/engine"
)

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func inhibitorEnvelope(seq int) message.Envelope {
	payload := message.Inhibitor{
		Summary: "Unsupported OS version",
		Details: "Minimal supported OS version for upgrade process: 7.6",
	}
	return message.Envelope{
		Seq: seq, Kind: payload.MessageKind(), Actor: "check_os_release", Phase: "checks",
		CreatedAt: testNow.Add(time.Duration(seq) * time.Second), Payload: payload,
	}
}

func factsEnvelope(seq int) message.Envelope {
	payload := message.OSReleaseFacts{ReleaseID: "rhel", VersionID: "7.5"}
	return message.Envelope{
		Seq: seq, Kind: payload.MessageKind(), Actor: "os_release_collector", Phase: "facts",
		CreatedAt: testNow.Add(time.Duration(seq) * time.Second), Payload: payload,
	}
}

func seededJournal(t *testing.T) *journal.Journal {
	t.Helper()
	ctx := context.Background()
	j, err := journal.Open(ctx, filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	for _, env := range []message.Envelope{factsEnvelope(1), inhibitorEnvelope(2)} {
		if err := j.Record(ctx, "ipu-1", env); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := j.Finish(ctx, "ipu-1", "ipu", string(engine.EngineStatusInhibited), "phase reports halted the run", testNow); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := j.Record(ctx, "ipu-2", factsEnvelope(1)); err != nil {
		t.Fatalf("record: %v", err)
	}
	return j
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		status engine.EngineStatus
		err    error
		want   int
	}{
		{engine.EngineStatusComplete, nil, exitComplete},
		{engine.EngineStatusInhibited, nil, exitInhibited},
		{engine.EngineStatusError, nil, exitError},
		{engine.EngineStatusRunning, nil, exitError},
		{engine.EngineStatusComplete, errors.New("disk full"), exitError},
		{engine.EngineStatusInhibited, fmt.Errorf("run: %w", context.Canceled), exitInhibited},
	}
	for _, tc := range cases {
		if got := exitCode(engine.State{Status: tc.status}, tc.err); got != tc.want {
			t.Fatalf("exitCode(%s, %v) = %d, want %d", tc.status, tc.err, got, tc.want)
		}
	}
}

func TestPrintReportDropsFrontMatter(t *testing.T) {
	state := engine.State{
		RunID: "ipu-1", WorkflowID: "ipu", Status: engine.EngineStatusInhibited,
		Messages: []message.Envelope{inhibitorEnvelope(1)},
	}
	var out bytes.Buffer
	if err := printReport(&out, report.Build(state, testNow)); err != nil {
		t.Fatalf("print: %v", err)
	}
	got := out.String()
	if strings.HasPrefix(got, "---") || strings.Contains(got, "run_id:") {
		t.Fatalf("front matter leaked into the output:\n%s", got)
	}
	if !strings.HasPrefix(got, "# Upgrade check report") || !strings.Contains(got, "Unsupported OS version") {
		t.Fatalf("unexpected body:\n%s", got)
	}
}

func TestPrintReportSurfacesRenderErrors(t *testing.T) {
	var out bytes.Buffer
	err := printReport(&out, report.Build(engine.State{Status: engine.EngineStatusError}, testNow))
	if err == nil || !strings.Contains(err.Error(), "render report") {
		t.Fatalf("expected a render error, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("nothing should be printed on error, got %q", out.String())
	}
}

func TestPrintHistory(t *testing.T) {
	j := seededJournal(t)
	var out bytes.Buffer
	if err := printHistory(context.Background(), &out, j); err != nil {
		t.Fatalf("history: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "RUN") {
		t.Fatalf("expected a header and two runs:\n%s", out.String())
	}
	if fields := strings.Fields(lines[1]); len(fields) != 6 || fields[0] != "ipu-1" || fields[2] != "inhibited" || fields[4] != "1" {
		t.Fatalf("unexpected finished run line %q", lines[1])
	}
	if fields := strings.Fields(lines[2]); len(fields) != 6 || fields[0] != "ipu-2" || fields[1] != "-" || fields[2] != "unfinished" {
		t.Fatalf("unexpected unfinished run line %q", lines[2])
	}
}

func TestPrintHistoryEmpty(t *testing.T) {
	j, err := journal.Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer j.Close()
	var out bytes.Buffer
	if err := printHistory(context.Background(), &out, j); err != nil {
		t.Fatalf("history: %v", err)
	}
	if strings.TrimSpace(out.String()) != "no journaled runs" {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestPrintRunRebuildsReport(t *testing.T) {
	j := seededJournal(t)
	var out bytes.Buffer
	status, err := printRun(context.Background(), &out, j, "ipu-1", testNow)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if status != engine.EngineStatusInhibited {
		t.Fatalf("expected the recorded status, got %s", status)
	}
	got := out.String()
	if !strings.Contains(got, "run `ipu-1`: **inhibited** (phase reports halted the run)") {
		t.Fatalf("missing status line:\n%s", got)
	}
	if !strings.Contains(got, "### Unsupported OS version") {
		t.Fatalf("missing inhibitor:\n%s", got)
	}

	if _, err := printRun(context.Background(), &out, j, "ipu-404", testNow); !errors.Is(err, journal.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := printRun(context.Background(), &out, j, "", testNow); err == nil {
		t.Fatalf("expected an error for an empty run id")
	}
}

func TestPrintLastReadsSavedState(t *testing.T) {
	repo := engine.NewRepository(t.TempDir())
	eng, err := engine.New(actor.NewRegistry(), repo)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	var out bytes.Buffer
	if _, err := printLast(&out, eng, testNow); err == nil || !strings.Contains(err.Error(), "no saved run") {
		t.Fatalf("expected no saved run error, got %v", err)
	}

	saved := engine.State{RunID: "ipu-7", WorkflowID: "ipu", Status: engine.EngineStatusComplete}
	if err := repo.Save(saved); err != nil {
		t.Fatalf("save: %v", err)
	}
	status, err := printLast(&out, eng, testNow)
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if status != engine.EngineStatusComplete || !strings.Contains(out.String(), "run `ipu-7`: **complete**") {
		t.Fatalf("unexpected last report (%s):\n%s", status, out.String())
	}
}

func TestInspectWithoutJournalFails(t *testing.T) {
	project := t.TempDir()
	if got := inspect(options{projectDir: project, history: true}); got != exitError {
		t.Fatalf("expected exitError, got %d", got)
	}
	if _, err := os.Stat(filepath.Join(project, config.Dir)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("inspection must not create %s: %v", config.Dir, err)
	}
}

func TestListFlagSplitsCommas(t *testing.T) {
	var l listFlag
	for _, v := range []string{"alpha, beta", "gamma", " , "} {
		if err := l.Set(v); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	if l.String() != "alpha,beta,gamma" {
		t.Fatalf("unexpected flag value %q", l.String())
	}
}
