// Package plugins loads version-gate actors declared by a project under
// .ipu/actors. A definition names the gate, places it in the workflow with
// tags and carries its own support table; each one runs through the same
// decision logic as check_os_release.
package plugins

import (
	"fmt"
	"strings"

	"github.com/kingrea/ipu-gate/internal/actor"
	"github.com/kingrea/ipu-gate/internal/message"
	"github.com/kingrea/ipu-gate/internal/policy"
)

// ActorDefinition mirrors the on-disk schema under .ipu/actors/*.yaml.
type ActorDefinition struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string         `json:"version" yaml:"version"`
	Tags        []actor.Tag    `json:"tags,omitempty" yaml:"tags,omitempty"`
	Consumes    []message.Kind `json:"consumes,omitempty" yaml:"consumes,omitempty"`
	Produces    []message.Kind `json:"produces,omitempty" yaml:"produces,omitempty"`
	Supported   []policy.Entry `json:"supported" yaml:"supported"`
}

// Normalized returns a trimmed copy with the gate defaults filled in: the
// ipu-workflow and checks-phase tags, OSReleaseFacts in, CheckResult and
// Inhibitor out.
func (def ActorDefinition) Normalized() ActorDefinition {
	clone := ActorDefinition{
		Name:        strings.TrimSpace(def.Name),
		Description: strings.TrimSpace(def.Description),
		Version:     strings.TrimSpace(def.Version),
	}
	clone.Tags = trimTags(def.Tags)
	if len(clone.Tags) == 0 {
		clone.Tags = []actor.Tag{actor.TagIPUWorkflow, actor.TagChecksPhase}
	}
	clone.Consumes = trimKinds(def.Consumes)
	if len(clone.Consumes) == 0 {
		clone.Consumes = []message.Kind{message.KindOSReleaseFacts}
	}
	clone.Produces = trimKinds(def.Produces)
	if len(clone.Produces) == 0 {
		clone.Produces = []message.Kind{message.KindCheckResult, message.KindInhibitor}
	}
	if len(def.Supported) > 0 {
		clone.Supported = make([]policy.Entry, len(def.Supported))
		for i, entry := range def.Supported {
			clone.Supported[i] = policy.Entry{
				ID:      strings.TrimSpace(entry.ID),
				Minimum: strings.TrimSpace(entry.Minimum),
			}
		}
	}
	return clone
}

// Validate ensures the definition describes a usable gate.
func (def ActorDefinition) Validate() error {
	normalized := def.Normalized()
	if normalized.Name == "" {
		return fmt.Errorf("plugin: name is required")
	}
	if strings.ContainsAny(normalized.Name, " \t/") {
		return fmt.Errorf("plugin %s: name must not contain spaces or slashes", normalized.Name)
	}
	if normalized.Version == "" {
		return fmt.Errorf("plugin %s: version is required", normalized.Name)
	}
	if len(normalized.Supported) == 0 {
		return fmt.Errorf("plugin %s: at least one supported entry is required", normalized.Name)
	}
	if _, err := normalized.Policy(); err != nil {
		return fmt.Errorf("plugin %s: %w", normalized.Name, err)
	}
	info := normalized.Info()
	if err := info.Validate(); err != nil {
		return fmt.Errorf("plugin %s: %w", normalized.Name, err)
	}
	if !info.ConsumesKind(message.KindOSReleaseFacts) {
		return fmt.Errorf("plugin %s: a version gate must consume %s", normalized.Name, message.KindOSReleaseFacts)
	}
	for _, kind := range []message.Kind{message.KindCheckResult, message.KindInhibitor} {
		if !info.ProducesKind(kind) {
			return fmt.Errorf("plugin %s: a version gate must produce %s", normalized.Name, kind)
		}
	}
	return nil
}

// Info returns the actor identity the definition declares.
func (def ActorDefinition) Info() actor.Info {
	return actor.Info{
		Name:        def.Name,
		Description: def.Description,
		Version:     def.Version,
		Tags:        append([]actor.Tag(nil), def.Tags...),
		Consumes:    append([]message.Kind(nil), def.Consumes...),
		Produces:    append([]message.Kind(nil), def.Produces...),
	}
}

// Policy builds the gate's support table.
func (def ActorDefinition) Policy() (*policy.SupportPolicy, error) {
	return policy.New(def.Supported...)
}

func trimTags(tags []actor.Tag) []actor.Tag {
	var out []actor.Tag
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(string(tag)); trimmed != "" {
			out = append(out, actor.Tag(trimmed))
		}
	}
	return out
}

func trimKinds(kinds []message.Kind) []message.Kind {
	var out []message.Kind
	for _, kind := range kinds {
		if trimmed := strings.TrimSpace(string(kind)); trimmed != "" {
			out = append(out, message.Kind(trimmed))
		}
	}
	return out
}
