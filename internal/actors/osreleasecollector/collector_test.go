package osreleasecollector

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/ipu-gate/internal/actor"
	"github.com/kingrea/ipu-gate/internal/config"
	"github.com/kingrea/ipu-gate/internal/message"
)

const rhel79 = `NAME="Red Hat Enterprise Linux Server"
VERSION="7.9 (Maipo)"
ID="rhel"
ID_LIKE="fedora"
VARIANT="Server"
VARIANT_ID="server"
VERSION_ID="7.9"
PRETTY_NAME="Red Hat Enterprise Linux Server 7.9 (Maipo)"
# comment lines are ignored
HOME_URL="https://www.redhat.com/"
`

func TestParseOSRelease(t *testing.T) {
	facts, err := Parse(strings.NewReader(rhel79))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if facts.ReleaseID != "rhel" || facts.VersionID != "7.9" {
		t.Fatalf("unexpected id/version %+v", facts)
	}
	if facts.PrettyName != "Red Hat Enterprise Linux Server 7.9 (Maipo)" || facts.VariantID != "server" {
		t.Fatalf("unexpected descriptive fields %+v", facts)
	}
}

func TestParseRequiresID(t *testing.T) {
	if _, err := Parse(strings.NewReader("VERSION_ID=1\n")); err == nil {
		t.Fatalf("expected missing ID error")
	}
}

func TestParseLowercasesID(t *testing.T) {
	facts, err := Parse(strings.NewReader("ID=RHEL\nVERSION_ID=8.6\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if facts.ReleaseID != "rhel" {
		t.Fatalf("expected lowercase id, got %q", facts.ReleaseID)
	}
}

func TestProcessUsesConfiguredPaths(t *testing.T) {
	dir := t.TempDir()
	fromConfig := filepath.Join(dir, "os-release")
	if err := os.WriteFile(fromConfig, []byte(rhel79), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Project: config.ProjectConfig{OSRelease: config.OSReleaseConfig{Path: fromConfig}}}

	a := New("")
	ctx := actor.NewContext(context.Background(), cfg, nil, nil).ForActor(a, "facts")
	if err := a.Process(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}
	facts := message.Payloads[message.OSReleaseFacts](ctx.Produced())
	if len(facts) != 1 || facts[0].VersionID != "7.9" {
		t.Fatalf("unexpected facts %+v", facts)
	}

	override := filepath.Join(dir, "override")
	if err := os.WriteFile(override, []byte("ID=centos\nVERSION_ID=8\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	reg := actor.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	resolved, err := reg.Resolve(Name, actor.Config{"path": override})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ctx = actor.NewContext(context.Background(), cfg, nil, nil).ForActor(resolved, "facts")
	if err := resolved.Process(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}
	facts = message.Payloads[message.OSReleaseFacts](ctx.Produced())
	if len(facts) != 1 || facts[0].ReleaseID != "centos" {
		t.Fatalf("actor config path should win, got %+v", facts)
	}
}

func TestProcessMissingFile(t *testing.T) {
	a := New(filepath.Join(t.TempDir(), "absent"))
	ctx := actor.NewContext(context.Background(), nil, nil, nil).ForActor(a, "facts")
	if err := a.Process(ctx); err == nil {
		t.Fatalf("expected error for missing os-release")
	}
}
