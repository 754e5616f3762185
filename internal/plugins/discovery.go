package plugins

import (
	"fmt"

	"github.com/kingrea/ipu-gate/internal/actor"
	"github.com/kingrea/ipu-gate/internal/actors/checkosrelease"
)

// Register discovers YAML and Go actor definitions in dir and installs a
// version gate for each. A name clash, between two definitions or with an
// actor already in reg, is an error.
func Register(reg *actor.Registry, dir string) ([]DefinitionFile, error) {
	if reg == nil {
		return nil, fmt.Errorf("plugin: registry is required")
	}
	defs, err := LoadAll(dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]string, len(defs))
	for _, file := range defs {
		def := file.Definition
		if existing, ok := seen[def.Name]; ok {
			return nil, fmt.Errorf("plugin: duplicate actor %s (%s and %s)", def.Name, existing, file.Path)
		}
		seen[def.Name] = file.Path
		pol, err := def.Policy()
		if err != nil {
			return nil, fmt.Errorf("plugin: %s: %w", file.Path, err)
		}
		info := def.Info()
		if err := reg.Register(def.Name, func(actor.Config) (actor.Actor, error) {
			gate, err := checkosrelease.NewGate(info, pol)
			if err != nil {
				return nil, err
			}
			return gate, nil
		}); err != nil {
			return nil, fmt.Errorf("plugin: register %s from %s: %w", def.Name, file.Path, err)
		}
	}
	return defs, nil
}

// LoadAll returns the YAML definitions of dir followed by its Go ones.
func LoadAll(dir string) ([]DefinitionFile, error) {
	yamlDefs, err := LoadDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	goDefs, err := LoadGoDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	return append(yamlDefs, goDefs...), nil
}
