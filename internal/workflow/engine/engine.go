package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kingrea/ipu-gate/internal/actor"
	"github.com/kingrea/ipu-gate/internal/config"
	"github.com/kingrea/ipu-gate/internal/logging"
	"github.com/kingrea/ipu-gate/internal/message"
	"github.com/kingrea/ipu-gate/internal/workflow"
	"github.com/kingrea/ipu-gate/internal/workflow/resolver"
	"github.com/kingrea/ipu-gate/internal/workflow/scheduler"
)

// Journal receives every message published during a run and the run's final
// status.
type Journal interface {
	Record(ctx context.Context, runID string, env message.Envelope) error
	Finish(ctx context.Context, runID, workflowID, status, reason string, at time.Time) error
}

// Engine runs workflow phases against the actor registry while persisting
// state after every step.
type Engine struct {
	registry *actor.Registry
	repo     StateStore
	journal  Journal
	logger   *logging.Logger
	progress func(State)
	clock    func() time.Time
}

// Option customizes the engine instance.
type Option func(*Engine)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithJournal appends every produced message to j.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithLogger routes engine and actor logging to logger.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithProgress registers a callback invoked with every persisted snapshot.
func WithProgress(fn func(State)) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// New wires a workflow engine to the actor registry and persistence store.
func New(registry *actor.Registry, repo StateStore, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("workflow engine: actor registry is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("workflow engine: state store is required")
	}
	engine := &Engine{
		registry: registry,
		repo:     repo,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// RunRequest describes one workflow run.
type RunRequest struct {
	Definition workflow.WorkflowDefinition
	Config     *config.Config
	// Bus optionally pre-seeds messages (for example facts loaded from a file).
	Bus *message.Bus
	// MaxParallel overrides the definition's runtime limit when > 0.
	MaxParallel int
	BatchSize   int
	// Disabled switches actors off for this run only.
	Disabled []string
}

type outcome struct {
	name     string
	err      error
	produced []message.Envelope
	started  time.Time
	finished time.Time
}

// Run executes every phase of the definition in order. Actor failures and
// inhibitors are reported through State.Status; the returned error is reserved
// for problems running the engine itself, including cancellation.
func (e *Engine) Run(ctx context.Context, req RunRequest) (State, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	def, err := applyDisabled(req.Definition, req.Disabled)
	if err != nil {
		return State{}, err
	}
	bus := req.Bus
	if bus == nil {
		bus = message.NewBus(message.WithClock(e.clock))
	}
	now := e.now()
	state := State{
		RunID:      generateRunID(def.ID, now),
		WorkflowID: def.ID,
		Definition: def.Clone(),
		Status:     EngineStatusRunning,
		Runtime: EngineRuntime{
			BatchSize:   req.BatchSize,
			MaxParallel: pickParallel(req.MaxParallel, def.Runtime.MaxParallel),
			Disabled:    def.Disabled(),
		},
		Runs:      map[string]ActorRun{},
		StartedAt: now,
	}
	for _, phase := range def.Phases {
		state.Phases = append(state.Phases, PhaseStatus{
			ID:    phase.ID,
			Name:  phase.Name,
			State: PhaseStatePending,
			Halts: phase.Policy.HaltOnInhibitor,
		})
	}
	e.logger.Printf("run %s: starting workflow %s (phases: %s)", state.RunID, def.ID, strings.Join(def.PhaseIDs(), ", "))
	if err := e.save(ctx, &state, bus); err != nil {
		return State{}, err
	}
	base := actor.NewContext(ctx, req.Config, bus, e.logger)
	for idx, phase := range def.Phases {
		if err := ctx.Err(); err != nil {
			e.finish(&state, idx, EngineStatusError, fmt.Sprintf("canceled before phase %s", phase.ID))
			if saveErr := e.save(ctx, &state, bus); saveErr != nil {
				return state.clone(), saveErr
			}
			return state.clone(), err
		}
		failed, err := e.runPhase(ctx, &state, idx, def, base)
		if err != nil {
			e.finish(&state, idx, EngineStatusError, err.Error())
			state.Phases[idx].State = PhaseStateFailed
			if saveErr := e.save(ctx, &state, bus); saveErr != nil {
				return state.clone(), saveErr
			}
			return state.clone(), err
		}
		if failed != "" {
			state.Phases[idx].State = PhaseStateFailed
			e.finish(&state, idx+1, EngineStatusError, failed)
			e.logger.Errorf("run %s: %s", state.RunID, failed)
			err := e.save(ctx, &state, bus)
			return state.clone(), err
		}
		state.Phases[idx].State = PhaseStateComplete
		if phase.Policy.HaltOnInhibitor {
			if n := bus.Count(message.KindInhibitor); n > 0 {
				reason := fmt.Sprintf("halted after phase %s: %d inhibitor(s) reported", phase.ID, n)
				e.finish(&state, idx+1, EngineStatusInhibited, reason)
				e.logger.Warnf("run %s: %s", state.RunID, reason)
				err := e.save(ctx, &state, bus)
				return state.clone(), err
			}
		}
		if err := e.save(ctx, &state, bus); err != nil {
			return state.clone(), err
		}
	}
	e.finish(&state, len(def.Phases), EngineStatusComplete, "")
	e.logger.Printf("run %s: complete", state.RunID)
	err = e.save(ctx, &state, bus)
	return state.clone(), err
}

// runPhase drives one phase to completion. It returns a non-empty failure
// description when an actor failed.
func (e *Engine) runPhase(ctx context.Context, state *State, idx int, def workflow.WorkflowDefinition, base *actor.Context) (string, error) {
	phase := def.Phases[idx]
	status := &state.Phases[idx]
	status.State = PhaseStateRunning
	res, err := resolver.New(def, phase.ID, e.registry)
	if err != nil {
		return "", err
	}
	sched, err := scheduler.New(res)
	if err != nil {
		return "", err
	}
	e.logger.Printf("run %s: phase %s order %s", state.RunID, phase.ID, strings.Join(res.Order(), ", "))
	req := state.Runtime.schedulerRequest()
	var failures []string
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		res.Refresh()
		batch, err := sched.Runnable(req)
		if err != nil {
			return "", err
		}
		status.Skipped = cloneSkipped(batch.Skipped)
		if len(batch.Nodes) == 0 {
			break
		}
		for _, node := range batch.Nodes {
			res.MarkRunning(node.ID)
		}
		outcomes, batchErr := e.runBatch(ctx, batch.Nodes, phase.ID, base, state.Runtime.MaxParallel)
		for _, out := range outcomes {
			run := ActorRun{
				Phase:      phase.ID,
				StartedAt:  out.started,
				FinishedAt: out.finished,
			}
			for _, env := range out.produced {
				run.Messages = append(run.Messages, env.Seq)
				e.record(ctx, state.RunID, env)
			}
			if out.err != nil {
				res.MarkFailed(out.name, out.err)
				run.Status = RunStatusFailed
				run.Error = out.err.Error()
				run.Message = "actor failed"
				failures = append(failures, fmt.Sprintf("%s: %v", out.name, out.err))
				e.logger.Errorf("run %s: actor %s failed: %v", state.RunID, out.name, out.err)
			} else {
				res.MarkComplete(out.name)
				run.Status = RunStatusComplete
				run.Message = fmt.Sprintf("produced %d message(s)", len(out.produced))
				e.logger.Printf("run %s: actor %s %s", state.RunID, out.name, run.Message)
			}
			state.Runs[out.name] = run
		}
		status.Actors = summarizeActors(res)
		if batchErr != nil {
			return fmt.Sprintf("phase %s failed: %s", phase.ID, strings.Join(failures, "; ")), nil
		}
	}
	status.Actors = summarizeActors(res)
	if !res.Done() {
		var stuck []string
		for _, node := range res.Queue() {
			stuck = append(stuck, node.ID)
		}
		return fmt.Sprintf("phase %s stalled with %s not runnable", phase.ID, strings.Join(stuck, ", ")), nil
	}
	return "", nil
}

// runBatch runs nodes concurrently, at most limit at a time when limit > 0.
// Every node runs to completion; the returned error is the first actor failure.
func (e *Engine) runBatch(ctx context.Context, nodes []*resolver.Node, phase string, base *actor.Context, limit int) ([]outcome, error) {
	outcomes := make([]outcome, len(nodes))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, node := range nodes {
		i, node := i, node
		g.Go(func() error {
			actx := base.ForActor(node.Actor, phase)
			started := e.now()
			err := invoke(node.Actor, actx)
			outcomes[i] = outcome{
				name:     node.ID,
				err:      err,
				produced: actx.Produced(),
				started:  started,
				finished: e.now(),
			}
			if err != nil {
				return fmt.Errorf("%s: %w", node.ID, err)
			}
			return nil
		})
	}
	return outcomes, g.Wait()
}

func invoke(a actor.Actor, ctx *actor.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.Process(ctx)
}

// View returns the last persisted snapshot.
func (e *Engine) View() (State, error) {
	return e.repo.Load()
}

func (e *Engine) record(ctx context.Context, runID string, env message.Envelope) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Record(ctx, runID, env); err != nil {
		e.logger.Warnf("run %s: journal message %d: %v", runID, env.Seq, err)
	}
}

// finish marks phases from index from onward as skipped and sets the run status.
func (e *Engine) finish(state *State, from int, status EngineStatus, reason string) {
	for i := from; i < len(state.Phases); i++ {
		if state.Phases[i].State == PhaseStatePending {
			state.Phases[i].State = PhaseStateSkipped
		}
	}
	state.Status = status
	state.StatusReason = reason
}

func (e *Engine) save(ctx context.Context, state *State, bus *message.Bus) error {
	state.Messages = bus.Messages()
	state.UpdatedAt = e.now()
	if err := e.repo.Save(*state); err != nil {
		return fmt.Errorf("workflow engine: save state: %w", err)
	}
	if e.journal != nil && state.Status.Terminal() {
		err := e.journal.Finish(context.WithoutCancel(ctx), state.RunID, state.WorkflowID, string(state.Status), state.StatusReason, state.UpdatedAt)
		if err != nil {
			e.logger.Warnf("run %s: journal final status: %v", state.RunID, err)
		}
	}
	if e.progress != nil {
		e.progress(state.clone())
	}
	return nil
}

func summarizeActors(res *resolver.Resolver) []ActorStatus {
	nodes := res.Nodes()
	out := make([]ActorStatus, 0, len(nodes))
	for _, node := range nodes {
		status := ActorStatus{
			Name:         node.ID,
			Description:  node.Actor.Info().Description,
			State:        node.State,
			Dependencies: append([]string(nil), node.Dependencies...),
			BlockedBy:    append([]string(nil), node.BlockedBy...),
		}
		if node.Err != nil {
			status.Error = node.Err.Error()
		}
		out = append(out, status)
	}
	return out
}

func applyDisabled(def workflow.WorkflowDefinition, names []string) (workflow.WorkflowDefinition, error) {
	normalized, err := def.Normalized()
	if err != nil {
		return workflow.WorkflowDefinition{}, err
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if normalized.Actors == nil {
			normalized.Actors = map[string]workflow.ActorConfig{}
		}
		cfg := normalized.Actors[name]
		cfg.Disabled = true
		normalized.Actors[name] = cfg
	}
	return normalized, nil
}

func pickParallel(override, fromDefinition int) int {
	if override > 0 {
		return override
	}
	if fromDefinition > 0 {
		return fromDefinition
	}
	return 0
}

func generateRunID(workflowID string, now time.Time) string {
	base := strings.TrimSpace(workflowID)
	if base == "" {
		base = "workflow"
	}
	base = strings.ToLower(strings.ReplaceAll(base, " ", "-"))
	return fmt.Sprintf("%s-%d", base, now.UnixNano())
}

func (e *Engine) now() time.Time {
	if e.clock == nil {
		return time.Now()
	}
	return e.clock()
}
