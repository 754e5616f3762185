// Package actor defines the unit of work of an upgrade workflow. An actor
// declares the message kinds it consumes and produces plus the phase and
// workflow tags that place it in a run; the workflow engine does the rest.
package actor

import (
	"fmt"

	"github.com/kingrea/ipu-gate/internal/message"
)

// Tag places an actor in a workflow or a phase.
type Tag string

// Well-known tags of the bundled in-place upgrade workflow.
const (
	TagIPUWorkflow  Tag = "ipu-workflow"
	TagFactsPhase   Tag = "facts-phase"
	TagChecksPhase  Tag = "checks-phase"
	TagReportsPhase Tag = "reports-phase"
)

const defaultVersionText = "1.0.0"

// Info describes an actor's identity and its message contract.
type Info struct {
	Name        string
	Description string
	Version     string
	Tags        []Tag
	Consumes    []message.Kind
	Produces    []message.Kind
}

// Validate ensures the info block is well-formed.
func (i Info) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("actor: name is required")
	}
	if i.Version == "" {
		return fmt.Errorf("actor: version is required for %s", i.Name)
	}
	if len(i.Tags) == 0 {
		return fmt.Errorf("actor: %s must carry at least one tag", i.Name)
	}
	for _, kind := range i.Consumes {
		if !message.Known(kind) {
			return fmt.Errorf("actor: %s consumes unknown kind %s", i.Name, kind)
		}
	}
	for _, kind := range i.Produces {
		if !message.Known(kind) {
			return fmt.Errorf("actor: %s produces unknown kind %s", i.Name, kind)
		}
	}
	return nil
}

// HasTags reports whether the actor carries every tag in want.
func (i Info) HasTags(want ...Tag) bool {
	for _, w := range want {
		found := false
		for _, t := range i.Tags {
			if t == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ConsumesKind reports whether kind is declared in Consumes.
func (i Info) ConsumesKind(kind message.Kind) bool {
	return containsKind(i.Consumes, kind)
}

// ProducesKind reports whether kind is declared in Produces.
func (i Info) ProducesKind(kind message.Kind) bool {
	return containsKind(i.Produces, kind)
}

func containsKind(kinds []message.Kind, kind message.Kind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Actor is implemented by every runtime unit.
type Actor interface {
	Info() Info
	Process(ctx *Context) error
}
