// Package osreleasecollector reads os-release(5) and publishes it as
// OSReleaseFacts for the checks phase.
package osreleasecollector

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/kingrea/ipu-gate/internal/actor"
	"github.com/kingrea/ipu-gate/internal/message"
)

// Name is the registry name of the actor.
const Name = "os_release_collector"

// DefaultPath is read when neither the actor config nor the project config
// names a file.
const DefaultPath = "/etc/os-release"

// Actor collects the OS release facts.
type Actor struct {
	actor.Base
	path string
}

// New builds the collector. An empty path defers to the project config.
func New(path string) *Actor {
	base := actor.NewBase(actor.Info{
		Name:        Name,
		Description: "Collect information about the OS release from os-release",
	})
	base.SetTags(actor.TagIPUWorkflow, actor.TagFactsPhase)
	base.SetProduces(message.KindOSReleaseFacts)
	return &Actor{Base: base, path: strings.TrimSpace(path)}
}

// Register installs the actor factory. The "path" config key overrides the
// os-release location.
func Register(reg *actor.Registry) error {
	return reg.Register(Name, func(cfg actor.Config) (actor.Actor, error) {
		return New(cfg.String("path")), nil
	})
}

// Process implements actor.Actor.
func (a *Actor) Process(ctx *actor.Context) error {
	path := a.resolvePath(ctx)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%s: %w", Name, err)
	}
	defer f.Close()
	facts, err := Parse(f)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", Name, path, err)
	}
	ctx.Logger.Printf("%s: %s reports %s %s", Name, path, facts.ReleaseID, facts.VersionID)
	return ctx.Produce(facts)
}

func (a *Actor) resolvePath(ctx *actor.Context) string {
	if a.path != "" {
		return a.path
	}
	if ctx.Config != nil {
		if p := ctx.Config.OSReleasePath(); p != "" {
			return p
		}
	}
	return DefaultPath
}

// Parse decodes os-release content. ID is required; the identifier is
// lowercased to match policy keys.
func Parse(r io.Reader) (message.OSReleaseFacts, error) {
	values, err := godotenv.Parse(r)
	if err != nil {
		return message.OSReleaseFacts{}, fmt.Errorf("parse os-release: %w", err)
	}
	facts := message.OSReleaseFacts{
		ReleaseID:  strings.ToLower(strings.TrimSpace(values["ID"])),
		Name:       values["NAME"],
		PrettyName: values["PRETTY_NAME"],
		Version:    values["VERSION"],
		VersionID:  strings.TrimSpace(values["VERSION_ID"]),
		Variant:    values["VARIANT"],
		VariantID:  values["VARIANT_ID"],
	}
	if facts.ReleaseID == "" {
		return message.OSReleaseFacts{}, fmt.Errorf("parse os-release: ID is missing")
	}
	return facts, nil
}
