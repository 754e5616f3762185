package actors

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/ipu-gate/internal/config"
	"github.com/kingrea/ipu-gate/internal/message"
	"github.com/kingrea/ipu-gate/internal/workflow"
	"github.com/kingrea/ipu-gate/internal/workflow/engine"
)

func runBundled(t *testing.T, osRelease string, env config.Environment) engine.State {
	t.Helper()
	return runBundledWith(t, osRelease, env, Deps{})
}

func runBundledWith(t *testing.T, osRelease string, env config.Environment, deps Deps) engine.State {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "os-release")
	if err := os.WriteFile(path, []byte(osRelease), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		ProjectDir: dir,
		StateRoot:  filepath.Join(dir, config.Dir),
		Project:    config.ProjectConfig{OSRelease: config.OSReleaseConfig{Path: path}},
		Env:        env,
	}
	reg, err := NewRegistry(deps)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	def, err := workflow.Bundled(workflow.DefaultWorkflowID)
	if err != nil {
		t.Fatalf("bundled: %v", err)
	}
	eng, err := engine.New(reg, engine.NewRepository(cfg.StateDir()))
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	state, err := eng.Run(context.Background(), engine.RunRequest{Definition: def, Config: cfg})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return state
}

func TestBundledWorkflowSupportedRelease(t *testing.T) {
	state := runBundled(t, "ID=rhel\nVERSION_ID=7.9\n", config.Environment{})
	if state.Status != engine.EngineStatusComplete {
		t.Fatalf("expected complete, got %s (%s)", state.Status, state.StatusReason)
	}
	if len(state.Messages) != 1 || state.Messages[0].Kind != message.KindOSReleaseFacts {
		t.Fatalf("only the facts should be on the bus, got %+v", state.Messages)
	}
	for _, name := range []string{"os_release_collector", "check_os_release", "report_summary"} {
		if run, ok := state.Runs[name]; !ok || run.Status != engine.RunStatusComplete {
			t.Fatalf("%s did not complete: %+v", name, run)
		}
	}
}

func TestBundledWorkflowInhibitsOldRelease(t *testing.T) {
	state := runBundled(t, "ID=rhel\nVERSION_ID=7.5\n", config.Environment{})
	if state.Status != engine.EngineStatusInhibited {
		t.Fatalf("expected inhibited, got %s", state.Status)
	}
	inhibitors := engine.Payloads[message.Inhibitor](state)
	if len(inhibitors) != 1 || inhibitors[0].Summary != "Unsupported OS version" {
		t.Fatalf("unexpected inhibitors %+v", inhibitors)
	}
	prep, ok := state.Phase("upgrade-preparation")
	if !ok || prep.State != engine.PhaseStateSkipped {
		t.Fatalf("upgrade-preparation should be skipped, got %+v", prep)
	}
	if !strings.Contains(state.StatusReason, "reports") {
		t.Fatalf("status reason should name the halting phase: %s", state.StatusReason)
	}
}

func TestBundledWorkflowSkipFlag(t *testing.T) {
	state := runBundled(t, "ID=centos\nVERSION_ID=7\n", config.Environment{SkipCheckOSRelease: true})
	if state.Status != engine.EngineStatusComplete {
		t.Fatalf("skip should not inhibit, got %s", state.Status)
	}
	results := engine.Payloads[message.CheckResult](state)
	if len(results) != 1 || results[0].Result != message.ResultNotApplicable {
		t.Fatalf("expected a not-applicable result, got %+v", results)
	}
}

func TestBundledWorkflowMalformedVersionErrors(t *testing.T) {
	state := runBundled(t, "ID=rhel\nVERSION_ID=seven\n", config.Environment{})
	if state.Status != engine.EngineStatusError {
		t.Fatalf("expected error, got %s", state.Status)
	}
	if run := state.Runs["check_os_release"]; run.Status != engine.RunStatusFailed {
		t.Fatalf("check_os_release should fail, got %+v", run)
	}
}

const centosGate = `name: check_centos_stream
version: 1.2.0
description: Gate CentOS hosts on their own minimum
supported:
  - id: centos
    minimum: "7.9"
`

func writePluginDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "centos.yaml"), []byte(centosGate), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestPluginGateRunsInChecksPhase(t *testing.T) {
	state := runBundledWith(t, "ID=centos\nVERSION_ID=7.4\n", config.Environment{}, Deps{PluginDir: writePluginDir(t)})
	if state.Status != engine.EngineStatusInhibited {
		t.Fatalf("expected inhibited, got %s (%s)", state.Status, state.StatusReason)
	}
	if run, ok := state.Runs["check_centos_stream"]; !ok || run.Status != engine.RunStatusComplete {
		t.Fatalf("plugin gate did not complete: %+v", run)
	}
	var fromPlugin, fromBuiltin int
	for _, env := range state.Messages {
		if env.Kind != message.KindInhibitor {
			continue
		}
		switch env.Actor {
		case "check_centos_stream":
			fromPlugin++
		case "check_os_release":
			fromBuiltin++
		}
	}
	if fromPlugin != 1 || fromBuiltin != 1 {
		t.Fatalf("expected one inhibitor from each gate, got plugin=%d builtin=%d", fromPlugin, fromBuiltin)
	}
}

func TestPluginGateUsesItsOwnPolicy(t *testing.T) {
	state := runBundledWith(t, "ID=rhel\nVERSION_ID=7.9\n", config.Environment{}, Deps{PluginDir: writePluginDir(t)})
	if state.Status != engine.EngineStatusInhibited {
		t.Fatalf("rhel is outside the plugin table and should inhibit, got %s", state.Status)
	}
	for _, env := range state.Messages {
		if env.Kind == message.KindInhibitor && env.Actor != "check_centos_stream" {
			t.Fatalf("only the plugin gate should inhibit, got %+v", env)
		}
	}
}

func TestPluginNameClashWithBuiltin(t *testing.T) {
	dir := t.TempDir()
	clash := strings.Replace(centosGate, "check_centos_stream", "check_os_release", 1)
	if err := os.WriteFile(filepath.Join(dir, "clash.yaml"), []byte(clash), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRegistry(Deps{PluginDir: dir}); err == nil {
		t.Fatalf("expected a duplicate registration error")
	}
}
