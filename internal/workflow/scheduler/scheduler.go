package scheduler

import (
	"fmt"

	"github.com/kingrea/ipu-gate/internal/workflow/resolver"
)

// Selector exposes the minimal contract the workflow engine needs to request
// runnable actor batches.
type Selector interface {
	Runnable(RunnableRequest) (RunnableBatch, error)
}

// Scheduler implements Selector on top of a phase resolver.
type Scheduler struct {
	resolver *resolver.Resolver
}

// New wires a Scheduler to a resolver snapshot.
func New(res *resolver.Resolver) (*Scheduler, error) {
	if res == nil {
		return nil, fmt.Errorf("workflow: scheduler requires a resolver")
	}
	return &Scheduler{resolver: res}, nil
}

// RunnableRequest captures the current runtime state plus any scheduling
// constraints.
type RunnableRequest struct {
	// BatchSize limits how many runnable nodes are returned at once. Values <= 0
	// are treated as "no limit" (subject to MaxParallel enforcement).
	BatchSize int
	// MaxParallel caps how many actors may be active at once, including the
	// actors listed in Running. Values <= 0 disable the limit.
	MaxParallel int
	// Running lists actor names that are currently executing.
	Running []string
	// Disabled lists actor names switched off at run time.
	Disabled map[string]bool
}

// RunnableBatch describes the scheduler's decision.
type RunnableBatch struct {
	Nodes   []*resolver.Node
	Skipped map[string]SkipReason
}

// IDs returns the names of the nodes in the batch.
func (b RunnableBatch) IDs() []string {
	ids := make([]string, 0, len(b.Nodes))
	for _, node := range b.Nodes {
		ids = append(ids, node.ID)
	}
	return ids
}

// SkipReason explains why a node was excluded from the runnable set.
type SkipReason struct {
	Reason SkipReasonCode
	Detail string
}

// SkipReasonCode enumerates scheduler skip reasons.
type SkipReasonCode string

const (
	SkipReasonNotReady    SkipReasonCode = "not-ready"
	SkipReasonConcurrency SkipReasonCode = "concurrency"
	SkipReasonActive      SkipReasonCode = "already-running"
	SkipReasonDisabled    SkipReasonCode = "disabled"
)

// Runnable returns a batch of runnable nodes constrained by the request.
func (s *Scheduler) Runnable(req RunnableRequest) (RunnableBatch, error) {
	queue := s.resolver.Queue()
	running := req.runningSet()
	maxBatch := req.batchLimit(len(queue), len(running))
	result := RunnableBatch{}
	for _, node := range s.resolver.Nodes() {
		if node.State == resolver.NodeStateComplete || node.State == resolver.NodeStateFailed {
			continue
		}
		if _, runningAlready := running[node.ID]; runningAlready || node.State == resolver.NodeStateRunning {
			result.addSkip(node.ID, SkipReason{Reason: SkipReasonActive, Detail: "actor already running"})
			continue
		}
		if node.State == resolver.NodeStateDisabled {
			result.addSkip(node.ID, SkipReason{Reason: SkipReasonDisabled, Detail: "disabled in workflow definition"})
			continue
		}
		if req.Disabled[node.ID] {
			result.addSkip(node.ID, SkipReason{Reason: SkipReasonDisabled, Detail: "disabled for this run"})
			continue
		}
		if node.State != resolver.NodeStateReady {
			result.addSkip(node.ID, SkipReason{Reason: SkipReasonNotReady, Detail: string(node.State)})
			continue
		}
		if len(result.Nodes) >= maxBatch {
			result.addSkip(node.ID, SkipReason{Reason: SkipReasonConcurrency, Detail: fmt.Sprintf("batch limit %d reached", maxBatch)})
			continue
		}
		result.Nodes = append(result.Nodes, node)
	}
	return result, nil
}

func (req RunnableRequest) runningSet() map[string]struct{} {
	set := make(map[string]struct{}, len(req.Running))
	for _, id := range req.Running {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

func (req RunnableRequest) batchLimit(queueLen int, runningCount int) int {
	limit := req.BatchSize
	if limit <= 0 || limit > queueLen {
		limit = queueLen
	}
	if req.MaxParallel > 0 {
		remaining := req.MaxParallel - runningCount
		if remaining <= 0 {
			return 0
		}
		if limit > remaining {
			limit = remaining
		}
	}
	return limit
}

func (b *RunnableBatch) addSkip(id string, reason SkipReason) {
	if id == "" {
		return
	}
	if b.Skipped == nil {
		b.Skipped = make(map[string]SkipReason)
	}
	b.Skipped[id] = reason
}
