package engine

import (
	"time"

	"github.com/kingrea/ipu-gate/internal/message"
	"github.com/kingrea/ipu-gate/internal/workflow"
	"github.com/kingrea/ipu-gate/internal/workflow/resolver"
	"github.com/kingrea/ipu-gate/internal/workflow/scheduler"
)

// EngineStatus enumerates coarse workflow run outcomes.
type EngineStatus string

const (
	EngineStatusRunning   EngineStatus = "running"
	EngineStatusComplete  EngineStatus = "complete"
	EngineStatusInhibited EngineStatus = "inhibited"
	EngineStatusError     EngineStatus = "error"
)

// Terminal reports whether the run has stopped.
func (s EngineStatus) Terminal() bool {
	return s == EngineStatusComplete || s == EngineStatusInhibited || s == EngineStatusError
}

// PhaseState tracks one phase of a run.
type PhaseState string

const (
	PhaseStatePending  PhaseState = "pending"
	PhaseStateRunning  PhaseState = "running"
	PhaseStateComplete PhaseState = "complete"
	PhaseStateFailed   PhaseState = "failed"
	PhaseStateSkipped  PhaseState = "skipped"
)

// RunStatus is the outcome of a single actor invocation.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// State captures the persisted snapshot of a workflow run.
type State struct {
	RunID      string                      `json:"run_id"`
	WorkflowID string                      `json:"workflow_id"`
	Definition workflow.WorkflowDefinition `json:"definition"`
	Status     EngineStatus                `json:"status"`
	// StatusReason provides human readable explanation for non-complete states.
	StatusReason string              `json:"status_reason,omitempty"`
	Runtime      EngineRuntime       `json:"runtime"`
	Phases       []PhaseStatus       `json:"phases"`
	Runs         map[string]ActorRun `json:"runs,omitempty"`
	Messages     []message.Envelope  `json:"messages,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// EngineRuntime mirrors scheduler constraints applied to the run.
type EngineRuntime struct {
	BatchSize   int             `json:"batch_size,omitempty"`
	MaxParallel int             `json:"max_parallel,omitempty"`
	Disabled    map[string]bool `json:"disabled,omitempty"`
}

// PhaseStatus exposes per-phase progress.
type PhaseStatus struct {
	ID      string                          `json:"id"`
	Name    string                          `json:"name"`
	State   PhaseState                      `json:"state"`
	Halts   bool                            `json:"halts_on_inhibitor,omitempty"`
	Actors  []ActorStatus                   `json:"actors,omitempty"`
	Skipped map[string]scheduler.SkipReason `json:"skipped,omitempty"`
}

// ActorStatus exposes resolver metadata for an actor node.
type ActorStatus struct {
	Name         string             `json:"name"`
	Description  string             `json:"description,omitempty"`
	State        resolver.NodeState `json:"state"`
	Dependencies []string           `json:"dependencies,omitempty"`
	BlockedBy    []string           `json:"blocked_by,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// ActorRun persists the runtime result of one actor execution.
type ActorRun struct {
	Phase      string    `json:"phase"`
	Status     RunStatus `json:"status"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	Messages   []int     `json:"messages,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Phase returns the status of the phase with the given id.
func (s State) Phase(id string) (PhaseStatus, bool) {
	for _, phase := range s.Phases {
		if phase.ID == id {
			return phase, true
		}
	}
	return PhaseStatus{}, false
}

// Payloads returns the typed payloads of kind T carried by the snapshot.
func Payloads[T message.Model](s State) []T {
	return message.Payloads[T](s.Messages)
}

func (rt EngineRuntime) schedulerRequest() scheduler.RunnableRequest {
	return scheduler.RunnableRequest{
		BatchSize:   rt.BatchSize,
		MaxParallel: rt.MaxParallel,
		Disabled:    cloneDisabled(rt.Disabled),
	}
}

func cloneDisabled(values map[string]bool) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]bool, len(values))
	for id, off := range values {
		if off {
			out[id] = true
		}
	}
	return out
}

func cloneSkipped(values map[string]scheduler.SkipReason) map[string]scheduler.SkipReason {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]scheduler.SkipReason, len(values))
	for id, reason := range values {
		out[id] = reason
	}
	return out
}

func cloneRuns(values map[string]ActorRun) map[string]ActorRun {
	out := make(map[string]ActorRun, len(values))
	for id, run := range values {
		run.Messages = append([]int(nil), run.Messages...)
		out[id] = run
	}
	return out
}

func (s State) clone() State {
	out := s
	out.Definition = s.Definition.Clone()
	out.Runtime.Disabled = cloneDisabled(s.Runtime.Disabled)
	out.Phases = make([]PhaseStatus, len(s.Phases))
	for i, phase := range s.Phases {
		phase.Actors = append([]ActorStatus(nil), phase.Actors...)
		phase.Skipped = cloneSkipped(phase.Skipped)
		out.Phases[i] = phase
	}
	out.Runs = cloneRuns(s.Runs)
	out.Messages = append([]message.Envelope(nil), s.Messages...)
	return out
}
