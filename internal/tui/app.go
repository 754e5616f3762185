// internal/tui/app.go
//
// Interactive front end for a workflow run. It uses bubbletea, which follows
// The Elm Architecture:
//
// 1. Model: the run snapshot plus the spinner and report viewport
// 2. Update: engine progress, key presses, and window sizes change the model
// 3. View: renders the phase board while running and the report afterwards

package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/ipu-gate/internal/logging"
	"github.com/kingrea/ipu-gate/internal/report"
	"github.com/kingrea/ipu-gate/internal/workflow/engine"
)

// RunFunc starts the engine. progress receives every persisted snapshot.
type RunFunc func(ctx context.Context, progress func(engine.State)) (engine.State, error)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithLogger shows the tail of the run log under the phase board.
func WithLogger(logger *logging.Logger) AppOption {
	return func(a *App) {
		a.logger = logger
	}
}

// WithClock overrides the clock used to stamp the rendered report.
func WithClock(clock func() time.Time) AppOption {
	return func(a *App) {
		if clock != nil {
			a.clock = clock
		}
	}
}

type progressMsg struct {
	state engine.State
}

type runFinishedMsg struct {
	state engine.State
	err   error
}

// App is the bubbletea model for a run.
type App struct {
	run      RunFunc
	ctx      context.Context
	cancel   context.CancelFunc
	updates  chan engine.State
	logger   *logging.Logger
	clock    func() time.Time
	spinner  spinner.Model
	viewport viewport.Model

	state  engine.State
	report report.Report
	done   bool
	err    error
	width  int
	height int
}

// New builds the model. The run starts when bubbletea calls Init.
func New(run RunFunc, opts ...AppOption) *App {
	ctx, cancel := context.WithCancel(context.Background())
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = labelStyleRunning
	app := &App{
		run:      run,
		ctx:      ctx,
		cancel:   cancel,
		updates:  make(chan engine.State, 16),
		clock:    time.Now,
		spinner:  s,
		viewport: viewport.New(80, 20),
		width:    80,
		height:   24,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Init starts the spinner and the engine.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.startRun(), a.waitForProgress())
}

func (a *App) startRun() tea.Cmd {
	return func() tea.Msg {
		state, err := a.run(a.ctx, func(s engine.State) {
			select {
			case a.updates <- s:
			default:
			}
		})
		return runFinishedMsg{state: state, err: err}
	}
}

func (a *App) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-a.updates:
			return progressMsg{state: s}
		case <-a.ctx.Done():
			return nil
		}
	}
}

// Update handles messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			a.cancel()
			return a, tea.Quit
		}
		if a.done {
			var cmd tea.Cmd
			a.viewport, cmd = a.viewport.Update(msg)
			return a, cmd
		}
		return a, nil
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.viewport.Width = max(20, msg.Width-4)
		a.viewport.Height = max(5, msg.Height-8)
		if a.done {
			a.viewport.SetContent(renderReport(a.report, a.viewport.Width))
		}
		return a, nil
	case spinner.TickMsg:
		if a.done {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	case progressMsg:
		if !a.done {
			a.state = msg.state
		}
		return a, a.waitForProgress()
	case runFinishedMsg:
		a.done = true
		a.err = msg.err
		if msg.state.RunID != "" {
			a.state = msg.state
		}
		a.report = report.Build(a.state, a.clock())
		a.viewport.SetContent(renderReport(a.report, a.viewport.Width))
		a.viewport.GotoTop()
		a.cancel()
		return a, nil
	}
	return a, nil
}

// View renders the current screen.
func (a *App) View() string {
	sections := []string{titleStyle.Render("⬡ IPU-GATE  " + a.state.WorkflowID)}
	if !a.done {
		sections = append(sections, a.spinner.View()+" running upgrade checks")
		sections = append(sections, boxStyle.Render(renderPhases(a.state)))
		if lines := a.logger.Tail(5); len(lines) > 0 {
			sections = append(sections, detailTextStyle.Render(strings.Join(lines, "\n")))
		}
		sections = append(sections, footerStyle.Render("q: cancel"))
		return strings.Join(sections, "\n")
	}
	sections = append(sections, boxStyle.Render(a.viewport.View()))
	footer := "↑/↓: scroll · q: quit"
	if a.err != nil {
		footer = labelStyleFailed.Render("error: "+a.err.Error()) + "  " + footer
	}
	sections = append(sections, footerStyle.Render(footer))
	return strings.Join(sections, "\n")
}

// State returns the latest snapshot seen by the model.
func (a *App) State() engine.State {
	return a.state
}

// Err returns the error the run finished with, if any.
func (a *App) Err() error {
	return a.err
}

// Done reports whether the run has finished.
func (a *App) Done() bool {
	return a.done
}

// Run drives the model in the alternate screen and returns the final snapshot.
func Run(app *App) (engine.State, error) {
	program := tea.NewProgram(app, tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return engine.State{}, err
	}
	model := final.(*App)
	if !model.done {
		return model.state, context.Canceled
	}
	return model.state, model.err
}
