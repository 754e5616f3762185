package actor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kingrea/ipu-gate/internal/message"
)

type stubActor struct {
	Base
	process func(*Context) error
}

func newStub(name string, tags []Tag, consumes, produces []message.Kind) *stubActor {
	base := NewBase(Info{Name: name, Description: "stub"})
	base.SetTags(tags...)
	base.SetConsumes(consumes...)
	base.SetProduces(produces...)
	return &stubActor{Base: base}
}

func (s *stubActor) Process(ctx *Context) error {
	if s.process == nil {
		return nil
	}
	return s.process(ctx)
}

func TestInfoValidate(t *testing.T) {
	cases := map[string]Info{
		"name is required":    {Version: "1", Tags: []Tag{TagChecksPhase}},
		"version is required": {Name: "a", Tags: []Tag{TagChecksPhase}},
		"at least one tag":    {Name: "a", Version: "1"},
		"unknown kind":        {Name: "a", Version: "1", Tags: []Tag{TagChecksPhase}, Produces: []message.Kind{"Nope"}},
	}
	for want, info := range cases {
		err := info.Validate()
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error containing %q, got %v", want, err)
		}
	}
}

func TestInfoHasTags(t *testing.T) {
	info := Info{Tags: []Tag{TagIPUWorkflow, TagChecksPhase}}
	if !info.HasTags(TagIPUWorkflow, TagChecksPhase) {
		t.Fatalf("expected both tags")
	}
	if info.HasTags(TagIPUWorkflow, TagFactsPhase) {
		t.Fatalf("facts tag is not present")
	}
}

func TestRegistryResolveAndTagged(t *testing.T) {
	reg := NewRegistry()
	mustRegister(t, reg, "collector", func(Config) (Actor, error) {
		return newStub("collector", []Tag{TagIPUWorkflow, TagFactsPhase}, nil, []message.Kind{message.KindOSReleaseFacts}), nil
	})
	mustRegister(t, reg, "check", func(Config) (Actor, error) {
		return newStub("check", []Tag{TagIPUWorkflow, TagChecksPhase}, []message.Kind{message.KindOSReleaseFacts}, nil), nil
	})
	if err := reg.Register("check", func(Config) (Actor, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if names := reg.Names(); strings.Join(names, ",") != "check,collector" {
		t.Fatalf("unexpected names %v", names)
	}
	checks, err := reg.Tagged(nil, TagIPUWorkflow, TagChecksPhase)
	if err != nil {
		t.Fatalf("tagged: %v", err)
	}
	if len(checks) != 1 || checks[0].Info().Name != "check" {
		t.Fatalf("unexpected tagged actors: %+v", checks)
	}
	if _, err := reg.Resolve("missing", nil); err == nil {
		t.Fatalf("expected unknown actor error")
	}
}

func TestRegistryRejectsNameMismatch(t *testing.T) {
	reg := NewRegistry()
	mustRegister(t, reg, "alias", func(Config) (Actor, error) {
		return newStub("real", []Tag{TagChecksPhase}, nil, nil), nil
	})
	if _, err := reg.Resolve("alias", nil); err == nil {
		t.Fatalf("expected name mismatch error")
	}
}

func TestContextEnforcesDeclaredKinds(t *testing.T) {
	a := newStub("check", []Tag{TagChecksPhase}, []message.Kind{message.KindOSReleaseFacts}, []message.Kind{message.KindInhibitor})
	ctx := NewContext(context.Background(), nil, nil, nil).ForActor(a, "checks")

	if err := ctx.Produce(message.CheckResult{Severity: message.SeverityInfo}); !errors.Is(err, ErrUndeclaredKind) {
		t.Fatalf("expected undeclared produce error, got %v", err)
	}
	if _, err := ctx.Consume(message.KindInhibitor); !errors.Is(err, ErrUndeclaredKind) {
		t.Fatalf("expected undeclared consume error, got %v", err)
	}
	if err := ctx.Produce(message.Inhibitor{Summary: "stop"}); err != nil {
		t.Fatalf("produce: %v", err)
	}
	produced := ctx.Produced()
	if len(produced) != 1 || produced[0].Actor != "check" || produced[0].Phase != "checks" {
		t.Fatalf("unexpected produced envelopes: %+v", produced)
	}
	if ctx.Bus.Count(message.KindInhibitor) != 1 {
		t.Fatalf("inhibitor should be on the bus")
	}
}

func TestTypedConsume(t *testing.T) {
	bus := message.NewBus()
	if _, err := bus.Publish("collector", "facts", message.OSReleaseFacts{ReleaseID: "rhel", VersionID: "7.6"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	a := newStub("check", []Tag{TagChecksPhase}, []message.Kind{message.KindOSReleaseFacts}, nil)
	ctx := NewContext(context.Background(), nil, bus, nil).ForActor(a, "checks")
	facts, err := Consume[message.OSReleaseFacts](ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(facts) != 1 || facts[0].VersionID != "7.6" {
		t.Fatalf("unexpected facts: %+v", facts)
	}
	if ctx.Env().SkipCheckOSRelease {
		t.Fatalf("env without config must be zero")
	}
}

func mustRegister(t *testing.T, reg *Registry, name string, factory Factory) {
	t.Helper()
	if err := reg.Register(name, factory); err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
}
