// Package actors wires the built-in actors into a registry.
package actors

import (
	"fmt"

	"github.com/kingrea/ipu-gate/internal/actor"
	"github.com/kingrea/ipu-gate/internal/actors/checkosrelease"
	"github.com/kingrea/ipu-gate/internal/actors/osreleasecollector"
	"github.com/kingrea/ipu-gate/internal/actors/reportsummary"
	"github.com/kingrea/ipu-gate/internal/plugins"
	"github.com/kingrea/ipu-gate/internal/policy"
)

// Deps carries what the built-in actors need at construction.
type Deps struct {
	Policy policy.Lookup
	// PluginDir holds project-defined version gates; empty skips discovery.
	PluginDir string
}

// RegisterBuiltins installs every built-in actor into reg, followed by the
// gates found in deps.PluginDir.
func RegisterBuiltins(reg *actor.Registry, deps Deps) error {
	if reg == nil {
		return fmt.Errorf("actors: registry is required")
	}
	if err := osreleasecollector.Register(reg); err != nil {
		return err
	}
	if err := checkosrelease.Register(reg, deps.Policy); err != nil {
		return err
	}
	if err := reportsummary.Register(reg); err != nil {
		return err
	}
	if deps.PluginDir == "" {
		return nil
	}
	_, err := plugins.Register(reg, deps.PluginDir)
	return err
}

// NewRegistry returns a registry holding the built-in actors.
func NewRegistry(deps Deps) (*actor.Registry, error) {
	reg := actor.NewRegistry()
	if err := RegisterBuiltins(reg, deps); err != nil {
		return nil, err
	}
	return reg, nil
}
