package workflow

import (
	"fmt"
	"strings"

	"github.com/kingrea/ipu-gate/internal/actor"
)

// WorkflowDefinition declares an ordered list of phases. Actors are not listed
// explicitly: every registered actor carrying the workflow tag and a phase tag
// runs in that phase.
type WorkflowDefinition struct {
	ID          string                 `json:"id" yaml:"id"`
	Name        string                 `json:"name" yaml:"name"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Tag         actor.Tag              `json:"tag" yaml:"tag"`
	Phases      []PhaseDefinition      `json:"phases" yaml:"phases"`
	Actors      map[string]ActorConfig `json:"actors,omitempty" yaml:"actors,omitempty"`
	Runtime     WorkflowRuntimeConfig  `json:"runtime,omitempty" yaml:"runtime,omitempty"`
}

// PhaseDefinition is one stage of a workflow.
type PhaseDefinition struct {
	ID     string      `json:"id" yaml:"id"`
	Name   string      `json:"name,omitempty" yaml:"name,omitempty"`
	Tag    actor.Tag   `json:"tag" yaml:"tag"`
	Policy PhasePolicy `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// PhasePolicy controls what happens once a phase finishes.
type PhasePolicy struct {
	// HaltOnInhibitor stops the workflow after this phase when any Inhibitor
	// has been produced so far.
	HaltOnInhibitor bool `json:"halt_on_inhibitor,omitempty" yaml:"halt_on_inhibitor,omitempty"`
}

// ActorConfig carries per-actor overrides.
type ActorConfig struct {
	Disabled bool         `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Config   actor.Config `json:"config,omitempty" yaml:"config,omitempty"`
}

// WorkflowRuntimeConfig configures execution constraints for a workflow.
type WorkflowRuntimeConfig struct {
	MaxParallel int `json:"max_parallel,omitempty" yaml:"max_parallel,omitempty"`
}

// Clone returns a deep copy of the workflow definition.
func (def WorkflowDefinition) Clone() WorkflowDefinition {
	clone := WorkflowDefinition{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		Tag:         def.Tag,
		Runtime:     def.Runtime,
	}
	if len(def.Phases) > 0 {
		clone.Phases = make([]PhaseDefinition, len(def.Phases))
		copy(clone.Phases, def.Phases)
	}
	if len(def.Actors) > 0 {
		clone.Actors = make(map[string]ActorConfig, len(def.Actors))
		for name, cfg := range def.Actors {
			clone.Actors[name] = cfg.Clone()
		}
	}
	return clone
}

// Clone returns a copy with its own config map.
func (cfg ActorConfig) Clone() ActorConfig {
	clone := ActorConfig{Disabled: cfg.Disabled}
	if len(cfg.Config) > 0 {
		clone.Config = make(actor.Config, len(cfg.Config))
		for key, value := range cfg.Config {
			clone.Config[key] = value
		}
	}
	return clone
}

// Validate ensures the workflow definition is self-consistent.
func (def WorkflowDefinition) Validate() error {
	if def.ID == "" {
		return fmt.Errorf("workflow: id is required")
	}
	if def.Tag == "" {
		return fmt.Errorf("workflow %s: tag is required", def.ID)
	}
	if len(def.Phases) == 0 {
		return fmt.Errorf("workflow %s: at least one phase is required", def.ID)
	}
	seen := map[string]struct{}{}
	for idx, phase := range def.Phases {
		if phase.ID == "" {
			return fmt.Errorf("workflow %s phase[%d]: id is required", def.ID, idx)
		}
		if phase.Tag == "" {
			return fmt.Errorf("workflow %s phase %s: tag is required", def.ID, phase.ID)
		}
		if _, exists := seen[phase.ID]; exists {
			return fmt.Errorf("workflow %s: duplicate phase id %s", def.ID, phase.ID)
		}
		seen[phase.ID] = struct{}{}
	}
	for name := range def.Actors {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("workflow %s: actor override with empty name", def.ID)
		}
	}
	if err := def.Runtime.validate(); err != nil {
		return fmt.Errorf("workflow %s runtime: %w", def.ID, err)
	}
	return nil
}

// Normalized clones the definition, trims identifiers, fills phase names, and
// validates the result.
func (def WorkflowDefinition) Normalized() (WorkflowDefinition, error) {
	clone := def.Clone()
	clone.ID = strings.TrimSpace(clone.ID)
	clone.Tag = actor.Tag(strings.TrimSpace(string(clone.Tag)))
	if clone.Name == "" {
		clone.Name = clone.ID
	}
	for i := range clone.Phases {
		p := &clone.Phases[i]
		p.ID = strings.TrimSpace(p.ID)
		p.Tag = actor.Tag(strings.TrimSpace(string(p.Tag)))
		if p.Name == "" {
			p.Name = p.ID
		}
	}
	clone.Runtime = clone.Runtime.normalized()
	if err := clone.Validate(); err != nil {
		return WorkflowDefinition{}, err
	}
	return clone, nil
}

func (cfg WorkflowRuntimeConfig) normalized() WorkflowRuntimeConfig {
	if cfg.MaxParallel < 0 {
		cfg.MaxParallel = 0
	}
	return cfg
}

func (cfg WorkflowRuntimeConfig) validate() error {
	if cfg.MaxParallel < 0 {
		return fmt.Errorf("max_parallel must be >= 0")
	}
	return nil
}

// PhaseIDs returns the phase identifiers in declaration order.
func (def WorkflowDefinition) PhaseIDs() []string {
	ids := make([]string, 0, len(def.Phases))
	for _, phase := range def.Phases {
		ids = append(ids, phase.ID)
	}
	return ids
}

// ActorConfigs returns the per-actor config maps keyed by actor name.
func (def WorkflowDefinition) ActorConfigs() map[string]actor.Config {
	if len(def.Actors) == 0 {
		return nil
	}
	out := make(map[string]actor.Config, len(def.Actors))
	for name, cfg := range def.Actors {
		if len(cfg.Config) > 0 {
			out[name] = cfg.Clone().Config
		}
	}
	return out
}

// Disabled returns the names of actors switched off by the definition.
func (def WorkflowDefinition) Disabled() map[string]bool {
	out := map[string]bool{}
	for name, cfg := range def.Actors {
		if cfg.Disabled {
			out[name] = true
		}
	}
	return out
}
