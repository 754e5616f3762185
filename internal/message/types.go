// Package message defines the typed facts and results that actors exchange
// during an upgrade run. Every model has a stable Kind so the bus, the
// journal, and persisted run state can route and decode it.

package message

import (
	"fmt"
	"sort"
)

// Kind identifies the schema of a message payload.
type Kind string

const (
	// KindOSReleaseFacts carries the parsed os-release of the running system.
	KindOSReleaseFacts Kind = "OSReleaseFacts"
	// KindCheckResult reports the outcome of a check that did not inhibit.
	KindCheckResult Kind = "CheckResult"
	// KindInhibitor tells the workflow controller the upgrade must not proceed.
	KindInhibitor Kind = "Inhibitor"
)

// Model is implemented by every payload that can travel on the bus.
type Model interface {
	MessageKind() Kind
}

// OSReleaseFacts mirrors the fields of /etc/os-release that checks rely on.
type OSReleaseFacts struct {
	ReleaseID  string `json:"release_id" yaml:"release_id"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	PrettyName string `json:"pretty_name,omitempty" yaml:"pretty_name,omitempty"`
	Version    string `json:"version,omitempty" yaml:"version,omitempty"`
	VersionID  string `json:"version_id" yaml:"version_id"`
	Variant    string `json:"variant,omitempty" yaml:"variant,omitempty"`
	VariantID  string `json:"variant_id,omitempty" yaml:"variant_id,omitempty"`
}

// MessageKind implements Model.
func (OSReleaseFacts) MessageKind() Kind { return KindOSReleaseFacts }

// Severity grades a CheckResult.
type Severity string

const (
	SeverityInfo    Severity = "Info"
	SeverityWarning Severity = "Warning"
	SeverityError   Severity = "Error"
)

// Validate rejects severities outside the known set.
func (s Severity) Validate() error {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError:
		return nil
	default:
		return fmt.Errorf("message: unknown severity %q", string(s))
	}
}

// ResultNotApplicable marks a CheckResult for a check that did not run.
const ResultNotApplicable = "Not Applicable"

// CheckResult records the outcome of a check.
type CheckResult struct {
	Severity  Severity `json:"severity" yaml:"severity"`
	Result    string   `json:"result" yaml:"result"`
	Summary   string   `json:"summary" yaml:"summary"`
	Details   string   `json:"details" yaml:"details"`
	Solutions string   `json:"solutions,omitempty" yaml:"solutions,omitempty"`
}

// MessageKind implements Model.
func (CheckResult) MessageKind() Kind { return KindCheckResult }

// Inhibitor blocks the upgrade.
type Inhibitor struct {
	Summary   string `json:"summary" yaml:"summary"`
	Details   string `json:"details" yaml:"details"`
	Solutions string `json:"solutions,omitempty" yaml:"solutions,omitempty"`
}

// MessageKind implements Model.
func (Inhibitor) MessageKind() Kind { return KindInhibitor }

var decoders = map[Kind]func() Model{
	KindOSReleaseFacts: func() Model { return &OSReleaseFacts{} },
	KindCheckResult:    func() Model { return &CheckResult{} },
	KindInhibitor:      func() Model { return &Inhibitor{} },
}

// Known reports whether the kind has a registered schema.
func Known(kind Kind) bool {
	_, ok := decoders[kind]
	return ok
}

// Kinds returns every registered kind in sorted order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(decoders))
	for kind := range decoders {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// deref turns the pointer produced by a decoder back into the value form that
// actors publish, so consumers can type-switch on values only.
func deref(m Model) Model {
	switch v := m.(type) {
	case *OSReleaseFacts:
		return *v
	case *CheckResult:
		return *v
	case *Inhibitor:
		return *v
	default:
		return m
	}
}
