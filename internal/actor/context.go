package actor

import (
	"context"
	"errors"
	"fmt"

	"github.com/kingrea/ipu-gate/internal/config"
	"github.com/kingrea/ipu-gate/internal/logging"
	"github.com/kingrea/ipu-gate/internal/message"
)

// ErrUndeclaredKind is returned when an actor touches a kind outside its contract.
var ErrUndeclaredKind = errors.New("actor: message kind not declared")

// Context carries shared runtime dependencies into every actor.
type Context struct {
	Std    context.Context
	Config *config.Config
	Bus    *message.Bus
	Logger *logging.Logger
	Phase  string

	info     Info
	produced []message.Envelope
}

// NewContext builds a Context without an actor binding.
func NewContext(std context.Context, cfg *config.Config, bus *message.Bus, logger *logging.Logger) *Context {
	if std == nil {
		std = context.Background()
	}
	if bus == nil {
		bus = message.NewBus()
	}
	return &Context{Std: std, Config: cfg, Bus: bus, Logger: logger}
}

// ForActor returns a clone bound to a's message contract and the given phase.
func (ctx *Context) ForActor(a Actor, phase string) *Context {
	clone := *ctx
	clone.info = a.Info()
	clone.Phase = phase
	clone.produced = nil
	return &clone
}

// ActorName returns the bound actor's name.
func (ctx *Context) ActorName() string {
	return ctx.info.Name
}

// Produce publishes payload after checking it against the Produces declaration.
func (ctx *Context) Produce(payload message.Model) error {
	if payload == nil {
		return fmt.Errorf("actor: %s produced a nil message", ctx.info.Name)
	}
	kind := payload.MessageKind()
	if !ctx.info.ProducesKind(kind) {
		return fmt.Errorf("%w: %s does not produce %s", ErrUndeclaredKind, ctx.info.Name, kind)
	}
	env, err := ctx.Bus.Publish(ctx.info.Name, ctx.Phase, payload)
	if err != nil {
		return err
	}
	ctx.produced = append(ctx.produced, env)
	return nil
}

// Consume returns every envelope of the requested kind after checking it
// against the Consumes declaration.
func (ctx *Context) Consume(kind message.Kind) ([]message.Envelope, error) {
	if !ctx.info.ConsumesKind(kind) {
		return nil, fmt.Errorf("%w: %s does not consume %s", ErrUndeclaredKind, ctx.info.Name, kind)
	}
	return ctx.Bus.Consume(kind), nil
}

// Produced returns the envelopes this context published.
func (ctx *Context) Produced() []message.Envelope {
	return append([]message.Envelope{}, ctx.produced...)
}

// Env returns the environment snapshot, or the zero value without config.
func (ctx *Context) Env() config.Environment {
	if ctx.Config == nil {
		return config.Environment{}
	}
	return ctx.Config.Env
}

// Consume is a typed wrapper around Context.Consume.
func Consume[T message.Model](ctx *Context) ([]T, error) {
	var zero T
	envelopes, err := ctx.Consume(zero.MessageKind())
	if err != nil {
		return nil, err
	}
	return message.Payloads[T](envelopes), nil
}
