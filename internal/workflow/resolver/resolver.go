package resolver

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kingrea/ipu-gate/internal/actor"
	"github.com/kingrea/ipu-gate/internal/message"
	"github.com/kingrea/ipu-gate/internal/workflow"
)

// ErrCycle is returned when actors in one phase consume each other's output.
var ErrCycle = errors.New("workflow: actor dependency cycle")

// NodeState represents the resolver's understanding of an actor's readiness.
type NodeState string

const (
	NodeStatePending  NodeState = "pending"
	NodeStateReady    NodeState = "ready"
	NodeStateBlocked  NodeState = "blocked"
	NodeStateRunning  NodeState = "running"
	NodeStateComplete NodeState = "complete"
	NodeStateFailed   NodeState = "failed"
	NodeStateDisabled NodeState = "disabled"
)

// Node captures one actor of a phase plus its dependency metadata.
type Node struct {
	ID           string
	Actor        actor.Actor
	Dependencies []string
	Dependents   []string

	State     NodeState
	BlockedBy []string
	Err       error
}

// Resolver builds and evaluates the dependency graph of a single phase.
type Resolver struct {
	nodes      map[string]*Node
	orderedIDs []string
}

// New selects every registered actor carrying both the workflow tag and the
// phase tag, wires producer to consumer edges, and orders the nodes
// topologically. Ties are broken by actor name.
func New(def workflow.WorkflowDefinition, phaseID string, registry *actor.Registry) (*Resolver, error) {
	if registry == nil {
		return nil, fmt.Errorf("workflow: actor registry is required")
	}
	normalized, err := def.Normalized()
	if err != nil {
		return nil, err
	}
	var phase workflow.PhaseDefinition
	found := false
	for _, p := range normalized.Phases {
		if p.ID == phaseID {
			phase = p
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("workflow %s: unknown phase %s", normalized.ID, phaseID)
	}
	actors, err := registry.Tagged(normalized.ActorConfigs(), normalized.Tag, phase.Tag)
	if err != nil {
		return nil, fmt.Errorf("workflow %s phase %s: %w", normalized.ID, phase.ID, err)
	}
	disabled := normalized.Disabled()
	nodes := make(map[string]*Node, len(actors))
	for _, a := range actors {
		name := a.Info().Name
		node := &Node{ID: name, Actor: a, State: NodeStatePending}
		if disabled[name] {
			node.State = NodeStateDisabled
		}
		nodes[name] = node
	}
	link(nodes)
	ordered, err := topoOrder(nodes)
	if err != nil {
		return nil, fmt.Errorf("workflow %s phase %s: %w", normalized.ID, phase.ID, err)
	}
	res := &Resolver{
		nodes:      nodes,
		orderedIDs: ordered,
	}
	res.Refresh()
	return res, nil
}

// link adds an edge from every producer of a kind to every other actor that
// consumes it.
func link(nodes map[string]*Node) {
	producers := map[message.Kind][]string{}
	for id, node := range nodes {
		for _, kind := range node.Actor.Info().Produces {
			producers[kind] = append(producers[kind], id)
		}
	}
	for id, node := range nodes {
		deps := map[string]struct{}{}
		for _, kind := range node.Actor.Info().Consumes {
			for _, producer := range producers[kind] {
				if producer != id {
					deps[producer] = struct{}{}
				}
			}
		}
		for dep := range deps {
			node.Dependencies = append(node.Dependencies, dep)
			nodes[dep].Dependents = append(nodes[dep].Dependents, id)
		}
	}
	for _, node := range nodes {
		sort.Strings(node.Dependencies)
		sort.Strings(node.Dependents)
	}
}

func topoOrder(nodes map[string]*Node) ([]string, error) {
	indegree := make(map[string]int, len(nodes))
	var frontier []string
	for id, node := range nodes {
		indegree[id] = len(node.Dependencies)
		if indegree[id] == 0 {
			frontier = append(frontier, id)
		}
	}
	ordered := make([]string, 0, len(nodes))
	for len(frontier) > 0 {
		sort.Strings(frontier)
		id := frontier[0]
		frontier = frontier[1:]
		ordered = append(ordered, id)
		for _, dependent := range nodes[id].Dependents {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				frontier = append(frontier, dependent)
			}
		}
	}
	if len(ordered) != len(nodes) {
		var stuck []string
		for id, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w between %s", ErrCycle, strings.Join(stuck, ", "))
	}
	return ordered, nil
}

// Nodes returns the nodes in topological order.
func (r *Resolver) Nodes() []*Node {
	out := make([]*Node, 0, len(r.orderedIDs))
	for _, id := range r.orderedIDs {
		out = append(out, r.nodes[id])
	}
	return out
}

// Order returns the actor names in topological order.
func (r *Resolver) Order() []string {
	return append([]string{}, r.orderedIDs...)
}

// MarkRunning records that the engine dispatched id.
func (r *Resolver) MarkRunning(id string) {
	if node, ok := r.nodes[id]; ok {
		node.State = NodeStateRunning
	}
}

// MarkComplete records a successful run of id.
func (r *Resolver) MarkComplete(id string) {
	if node, ok := r.nodes[id]; ok {
		node.State = NodeStateComplete
		node.Err = nil
	}
}

// MarkFailed records a failed run of id.
func (r *Resolver) MarkFailed(id string, err error) {
	if node, ok := r.nodes[id]; ok {
		node.State = NodeStateFailed
		node.Err = err
	}
}

// Refresh re-evaluates readiness of every node that has not started. A
// dependency is satisfied once it is complete or disabled.
func (r *Resolver) Refresh() {
	for _, id := range r.orderedIDs {
		node := r.nodes[id]
		switch node.State {
		case NodeStateRunning, NodeStateComplete, NodeStateFailed, NodeStateDisabled:
			continue
		}
		blockers := r.blockers(node)
		node.BlockedBy = blockers
		if len(blockers) == 0 {
			node.State = NodeStateReady
		} else {
			node.State = NodeStateBlocked
		}
	}
}

// Ready returns nodes that are runnable because all dependencies are satisfied.
func (r *Resolver) Ready() []*Node {
	var ready []*Node
	for _, id := range r.orderedIDs {
		if node := r.nodes[id]; node.State == NodeStateReady {
			ready = append(ready, node)
		}
	}
	return ready
}

// Queue returns the nodes that still have to run, in topological order.
func (r *Resolver) Queue() []*Node {
	var queue []*Node
	for _, id := range r.orderedIDs {
		node := r.nodes[id]
		switch node.State {
		case NodeStateComplete, NodeStateFailed, NodeStateDisabled:
			continue
		}
		queue = append(queue, node)
	}
	return queue
}

// Done reports whether no node is pending, ready, blocked, or running.
func (r *Resolver) Done() bool {
	return len(r.Queue()) == 0
}

func (r *Resolver) blockers(node *Node) []string {
	var blockers []string
	for _, depID := range node.Dependencies {
		dep := r.nodes[depID]
		if dep.State != NodeStateComplete && dep.State != NodeStateDisabled {
			blockers = append(blockers, depID)
		}
	}
	return blockers
}
