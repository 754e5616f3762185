// cmd/ipu/main.go
//
// Entry point for the ipu-gate CLI. It runs the pre-upgrade workflow against
// the current machine (or an os-release file given on the command line),
// writes the report under .ipu/report and exits with:
//
//	0  every phase completed, nothing inhibits the upgrade
//	2  an inhibitor halted the workflow
//	1  the run itself failed
//
// -history, -show <run-id> and -last inspect earlier runs instead of starting
// a new one; -show and -last exit with the code the inspected run had.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/kingrea/ipu-gate/internal/actor"
	"github.com/kingrea/ipu-gate/internal/actors"
	"github.com/kingrea/ipu-gate/internal/config"
	"github.com/kingrea/ipu-gate/internal/journal"
	"github.com/kingrea/ipu-gate/internal/logging"
	"github.com/kingrea/ipu-gate/internal/policy"
	"github.com/kingrea/ipu-gate/internal/report"
	"github.com/kingrea/ipu-gate/internal/tui"
	"github.com/kingrea/ipu-gate/internal/workflow"
	"github.com/kingrea/ipu-gate/internal/workflow/engine"
)

const (
	exitComplete  = 0
	exitError     = 1
	exitInhibited = 2
)

type options struct {
	projectDir  string
	workflowRef string
	osRelease   string
	interactive bool
	maxParallel int
	disabled    listFlag
	history     bool
	show        string
	last        bool
}

func (o options) inspecting() bool {
	return o.history || strings.TrimSpace(o.show) != "" || o.last
}

func main() {
	var opts options
	flag.StringVar(&opts.projectDir, "project", "", "path to the project directory (defaults to cwd)")
	flag.StringVar(&opts.workflowRef, "workflow", "", "bundled workflow id or path to a workflow YAML file")
	flag.StringVar(&opts.osRelease, "os-release", "", "os-release file to read instead of the configured one")
	flag.BoolVar(&opts.interactive, "tui", false, "show live progress in a terminal UI")
	flag.IntVar(&opts.maxParallel, "max-parallel", 0, "maximum actors run at once within a phase (0 uses config)")
	flag.Var(&opts.disabled, "disable", "actor to switch off for this run (repeatable)")
	flag.BoolVar(&opts.history, "history", false, "list journaled runs and exit")
	flag.StringVar(&opts.show, "show", "", "print the report of a journaled run and exit")
	flag.BoolVar(&opts.last, "last", false, "print the report of the last saved run and exit")
	flag.Parse()

	if opts.inspecting() {
		os.Exit(inspect(opts))
	}
	os.Exit(run(opts))
}

func run(opts options) int {
	project, err := resolveProject(opts.projectDir)
	if err != nil {
		return fail("resolve project dir: %v", err)
	}
	if err := config.InitDir(project); err != nil {
		return fail("init %s: %v", config.Dir, err)
	}
	cfg, err := config.NewConfig(project)
	if err != nil {
		return fail("load config: %v", err)
	}
	if path := strings.TrimSpace(opts.osRelease); path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fail("resolve os-release path: %v", err)
		}
		cfg.Project.OSRelease.Path = abs
	}
	logger, err := logging.New(project)
	if err != nil {
		return fail("open log: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pol, err := policy.NewLoader().Load(ctx, cfg.Project.Policy)
	if err != nil {
		return fail("load policy: %v", err)
	}
	reg, err := actors.NewRegistry(actors.Deps{Policy: pol, PluginDir: cfg.ActorsDir()})
	if err != nil {
		return fail("register actors: %v", err)
	}
	ref := opts.workflowRef
	if strings.TrimSpace(ref) == "" {
		ref = cfg.DefaultWorkflow()
	}
	def, err := workflow.Load(ref)
	if err != nil {
		return fail("load workflow: %v", err)
	}

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if cfg.Project.Journal.Enabled {
		j, err := journal.Open(ctx, cfg.JournalPath())
		if err != nil {
			return fail("open journal: %v", err)
		}
		defer j.Close()
		logger.Printf("journaling messages to %s", j.Path())
		engineOpts = append(engineOpts, engine.WithJournal(j))
	}
	maxParallel := opts.maxParallel
	if maxParallel <= 0 && def.Runtime.MaxParallel <= 0 {
		maxParallel = cfg.Project.Runtime.MaxParallel
	}
	req := engine.RunRequest{
		Definition:  def,
		Config:      cfg,
		MaxParallel: maxParallel,
		Disabled:    opts.disabled,
	}

	var state engine.State
	if opts.interactive {
		state, err = runInteractive(ctx, reg, cfg, req, logger, engineOpts)
	} else {
		var eng *engine.Engine
		eng, err = engine.New(reg, engine.NewRepository(cfg.StateDir()), engineOpts...)
		if err != nil {
			return fail("build engine: %v", err)
		}
		state, err = eng.Run(ctx, req)
	}
	if err != nil {
		logger.Errorf("run %s: %v", state.RunID, err)
		if state.RunID == "" {
			return fail("run workflow: %v", err)
		}
		fmt.Fprintf(os.Stderr, "run workflow: %v\n", err)
	}

	r := report.Build(state, time.Now())
	paths, werr := report.Write(cfg.ReportDir(), r)
	if werr != nil {
		return fail("write report: %v", werr)
	}
	if !opts.interactive {
		if perr := printReport(os.Stdout, r); perr != nil {
			logger.Warnf("run %s: print report: %v", state.RunID, perr)
			fmt.Fprintf(os.Stderr, "print report: %v\n", perr)
		}
	}
	fmt.Printf("\nReport written to %s\n", strings.Join(paths, ", "))
	fmt.Printf("Log: %s\n", logger.Path())
	logger.Printf("run %s finished with status %s", state.RunID, state.Status)
	return exitCode(state, err)
}

// inspect serves -history, -show and -last. It never creates .ipu.
func inspect(opts options) int {
	project, err := resolveProject(opts.projectDir)
	if err != nil {
		return fail("resolve project dir: %v", err)
	}
	cfg, err := config.NewConfig(project)
	if err != nil {
		return fail("load config: %v", err)
	}
	now := time.Now()
	if opts.last {
		repo := engine.NewRepository(cfg.StateDir())
		eng, err := engine.New(actor.NewRegistry(), repo)
		if err != nil {
			return fail("build engine: %v", err)
		}
		status, err := printLast(os.Stdout, eng, now)
		if err != nil {
			return fail("%v (%s)", err, repo.Path())
		}
		return exitCode(engine.State{Status: status}, nil)
	}

	ctx := context.Background()
	j, err := openJournal(ctx, cfg)
	if err != nil {
		return fail("%v", err)
	}
	defer j.Close()
	if opts.history {
		if err := printHistory(ctx, os.Stdout, j); err != nil {
			return fail("%v", err)
		}
		return exitComplete
	}
	status, err := printRun(ctx, os.Stdout, j, strings.TrimSpace(opts.show), now)
	if err != nil {
		return fail("%v", err)
	}
	return exitCode(engine.State{Status: status}, nil)
}

func openJournal(ctx context.Context, cfg *config.Config) (*journal.Journal, error) {
	path := cfg.JournalPath()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no journal at %s (journal enabled: %t)", path, cfg.Project.Journal.Enabled)
		}
		return nil, err
	}
	return journal.Open(ctx, path)
}

// printReport writes the markdown body of r without its front matter.
func printReport(w io.Writer, r report.Report) error {
	doc, err := r.Markdown()
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	_, body, err := report.ParseFrontMatter(doc)
	if err != nil {
		return fmt.Errorf("strip front matter: %w", err)
	}
	_, err = w.Write(body)
	return err
}

func printHistory(ctx context.Context, w io.Writer, j *journal.Journal) error {
	runs, err := j.Runs(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no journaled runs")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tWORKFLOW\tSTATUS\tMESSAGES\tINHIBITORS\tSTARTED")
	for _, run := range runs {
		workflowID, status := run.WorkflowID, run.Status
		if workflowID == "" {
			workflowID = "-"
		}
		if status == "" {
			status = "unfinished"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			run.RunID, workflowID, status, run.Messages, run.Inhibitors, run.FirstSeen.Format(time.RFC3339))
	}
	return tw.Flush()
}

func printRun(ctx context.Context, w io.Writer, j *journal.Journal, runID string, now time.Time) (engine.EngineStatus, error) {
	if runID == "" {
		return "", fmt.Errorf("-show needs a run id (see -history)")
	}
	summary, err := j.Run(ctx, runID)
	if err != nil {
		return "", err
	}
	envelopes, err := j.List(ctx, runID)
	if err != nil {
		return "", err
	}
	r := report.FromJournal(summary, envelopes, now)
	return r.Status, printReport(w, r)
}

type stateViewer interface {
	View() (engine.State, error)
}

func printLast(w io.Writer, v stateViewer, now time.Time) (engine.EngineStatus, error) {
	state, err := v.View()
	if err != nil {
		if errors.Is(err, engine.ErrStateNotFound) {
			return "", fmt.Errorf("no saved run yet")
		}
		return "", fmt.Errorf("load last run: %w", err)
	}
	r := report.Build(state, now)
	return r.Status, printReport(w, r)
}

func runInteractive(ctx context.Context, reg *actor.Registry, cfg *config.Config, req engine.RunRequest, logger *logging.Logger, opts []engine.Option) (engine.State, error) {
	app := tui.New(func(runCtx context.Context, progress func(engine.State)) (engine.State, error) {
		eng, err := engine.New(reg, engine.NewRepository(cfg.StateDir()), append(opts, engine.WithProgress(progress))...)
		if err != nil {
			return engine.State{}, err
		}
		merged, cancel := mergeContexts(ctx, runCtx)
		defer cancel()
		return eng.Run(merged, req)
	}, tui.WithLogger(logger))
	return tui.Run(app)
}

func exitCode(state engine.State, err error) int {
	if err != nil && !errors.Is(err, context.Canceled) {
		return exitError
	}
	switch state.Status {
	case engine.EngineStatusComplete:
		return exitComplete
	case engine.EngineStatusInhibited:
		return exitInhibited
	default:
		return exitError
	}
}

func resolveProject(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = cwd
	}
	return filepath.Abs(dir)
}

// mergeContexts returns a context canceled when either parent is.
func mergeContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}

func fail(format string, args ...any) int {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return exitError
}

type listFlag []string

func (l *listFlag) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

func (l *listFlag) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}
