// Package policy holds the table of minimum OS versions supported for an
// in-place upgrade, plus the version arithmetic the checks need.
package policy

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lookup is the read-only view checks depend on.
type Lookup interface {
	Minimum(id string) (string, bool)
	IDs() []string
}

// Entry pairs an OS identifier with its minimum supported version.
type Entry struct {
	ID      string `yaml:"id" json:"id"`
	Minimum string `yaml:"minimum" json:"minimum"`
}

// SupportPolicy keeps entries in declaration order.
type SupportPolicy struct {
	entries []Entry
	index   map[string]int
}

// DefaultEntries is the built-in table used when no other source is configured.
var DefaultEntries = []Entry{{ID: "rhel", Minimum: "7.6"}}

// Default returns the built-in policy.
func Default() *SupportPolicy {
	p, err := New(DefaultEntries...)
	if err != nil {
		panic(err)
	}
	return p
}

// New validates and indexes the entries. IDs are lowercased; duplicates and
// unparsable minimums are rejected.
func New(entries ...Entry) (*SupportPolicy, error) {
	p := &SupportPolicy{index: make(map[string]int, len(entries))}
	for i, entry := range entries {
		id := strings.ToLower(strings.TrimSpace(entry.ID))
		if id == "" {
			return nil, fmt.Errorf("policy: entry %d: id is required", i)
		}
		if _, dup := p.index[id]; dup {
			return nil, fmt.Errorf("policy: duplicate entry for %s", id)
		}
		minimum := strings.TrimSpace(entry.Minimum)
		if _, err := ParseVersion(minimum); err != nil {
			return nil, fmt.Errorf("policy: entry %s: %w", id, err)
		}
		p.index[id] = len(p.entries)
		p.entries = append(p.entries, Entry{ID: id, Minimum: minimum})
	}
	return p, nil
}

// Minimum returns the minimum supported version for id.
func (p *SupportPolicy) Minimum(id string) (string, bool) {
	if p == nil {
		return "", false
	}
	idx, ok := p.index[id]
	if !ok {
		return "", false
	}
	return p.entries[idx].Minimum, true
}

// IDs returns the known identifiers sorted lexically.
func (p *SupportPolicy) IDs() []string {
	if p == nil {
		return nil
	}
	ids := make([]string, 0, len(p.entries))
	for _, entry := range p.entries {
		ids = append(ids, entry.ID)
	}
	sort.Strings(ids)
	return ids
}

// Entries returns a copy of the table in declaration order.
func (p *SupportPolicy) Entries() []Entry {
	if p == nil {
		return nil
	}
	return append([]Entry{}, p.entries...)
}

type policyDocument struct {
	Supported []Entry `yaml:"supported"`
}

// ParseYAML decodes a policy document of the form:
//
//	supported:
//	  - id: rhel
//	    minimum: "7.6"
func ParseYAML(data []byte) (*SupportPolicy, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("policy: document is empty")
	}
	var doc policyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("policy: decode document: %w", err)
	}
	if len(doc.Supported) == 0 {
		return nil, fmt.Errorf("policy: at least one supported entry is required")
	}
	return New(doc.Supported...)
}
