// Package checkosrelease verifies that the running OS release is one the
// upgrade supports. The decision logic lives in Evaluate and Emit; the actor
// only moves facts from the bus through them and back.
package checkosrelease

import (
	"fmt"

	"github.com/kingrea/ipu-gate/internal/actor"
	"github.com/kingrea/ipu-gate/internal/message"
	"github.com/kingrea/ipu-gate/internal/policy"
)

// Name is the registry name of the actor.
const Name = "check_os_release"

// Actor gates the upgrade on the OS release id and version.
type Actor struct {
	actor.Base
	policy policy.Lookup
}

// New builds the actor around a support policy. A nil policy falls back to
// the built-in table.
func New(pol policy.Lookup) *Actor {
	a, err := NewGate(actor.Info{
		Name:        Name,
		Description: "Check if the current OS release is supported for the upgrade",
		Tags:        []actor.Tag{actor.TagIPUWorkflow, actor.TagChecksPhase},
		Consumes:    []message.Kind{message.KindOSReleaseFacts},
		Produces:    []message.Kind{message.KindCheckResult, message.KindInhibitor},
	}, pol)
	if err != nil {
		panic(err)
	}
	return a
}

// NewGate builds a version gate under another identity, for gates declared
// outside the binary. info must consume OSReleaseFacts and produce both
// CheckResult and Inhibitor.
func NewGate(info actor.Info, pol policy.Lookup) (*Actor, error) {
	if pol == nil {
		pol = policy.Default()
	}
	if !info.ConsumesKind(message.KindOSReleaseFacts) {
		return nil, fmt.Errorf("%s: a version gate must consume %s", info.Name, message.KindOSReleaseFacts)
	}
	for _, kind := range []message.Kind{message.KindCheckResult, message.KindInhibitor} {
		if !info.ProducesKind(kind) {
			return nil, fmt.Errorf("%s: a version gate must produce %s", info.Name, kind)
		}
	}
	base := actor.NewBase(info)
	if err := base.Info().Validate(); err != nil {
		return nil, err
	}
	return &Actor{Base: base, policy: pol}, nil
}

// Register installs the actor factory.
func Register(reg *actor.Registry, pol policy.Lookup) error {
	return reg.Register(Name, func(actor.Config) (actor.Actor, error) {
		return New(pol), nil
	})
}

// Process implements actor.Actor.
func (a *Actor) Process(ctx *actor.Context) error {
	name := a.Info().Name
	skip := ctx.Env().SkipCheckOSRelease
	var facts []message.OSReleaseFacts
	if !skip {
		var err error
		facts, err = actor.Consume[message.OSReleaseFacts](ctx)
		if err != nil {
			return err
		}
		if len(facts) == 0 {
			ctx.Logger.Warnf("%s: no OS release facts available, nothing to check", name)
		}
	}
	decision, err := Evaluate(skip, facts, a.policy)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	ctx.Logger.Printf("%s: %s", name, describe(decision))
	if msg := Emit(decision); msg != nil {
		return ctx.Produce(msg)
	}
	return nil
}

func describe(d Decision) string {
	if d.Inhibited() {
		return fmt.Sprintf("%s (%s)", d.Outcome, d.Reason.Summary)
	}
	return string(d.Outcome)
}
