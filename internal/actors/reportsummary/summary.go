// Package reportsummary tallies check results and inhibitors at the end of the
// checks.
package reportsummary

import (
	"github.com/kingrea/ipu-gate/internal/actor"
	"github.com/kingrea/ipu-gate/internal/message"
)

// Name is the registry name of the actor.
const Name = "report_summary"

// Tally counts the messages the summary saw.
type Tally struct {
	Results    int
	Inhibitors int
	BySeverity map[message.Severity]int
}

// Actor logs one summary line per run.
type Actor struct {
	actor.Base
}

// New builds the summary actor.
func New() *Actor {
	base := actor.NewBase(actor.Info{
		Name:        Name,
		Description: "Summarize check results and inhibitors",
	})
	base.SetTags(actor.TagIPUWorkflow, actor.TagReportsPhase)
	base.SetConsumes(message.KindCheckResult, message.KindInhibitor)
	return &Actor{Base: base}
}

// Register installs the actor factory.
func Register(reg *actor.Registry) error {
	return reg.Register(Name, func(actor.Config) (actor.Actor, error) {
		return New(), nil
	})
}

// Count builds a tally from the given results and inhibitors.
func Count(results []message.CheckResult, inhibitors []message.Inhibitor) Tally {
	t := Tally{Results: len(results), Inhibitors: len(inhibitors), BySeverity: map[message.Severity]int{}}
	for _, r := range results {
		t.BySeverity[r.Severity]++
	}
	return t
}

// Process implements actor.Actor.
func (a *Actor) Process(ctx *actor.Context) error {
	results, err := actor.Consume[message.CheckResult](ctx)
	if err != nil {
		return err
	}
	inhibitors, err := actor.Consume[message.Inhibitor](ctx)
	if err != nil {
		return err
	}
	t := Count(results, inhibitors)
	if t.Inhibitors > 0 {
		ctx.Logger.Warnf("%s: %d inhibitor(s), %d check result(s) (%d warning)", Name, t.Inhibitors, t.Results, t.BySeverity[message.SeverityWarning])
		for _, inh := range inhibitors {
			ctx.Logger.Warnf("%s: inhibitor: %s", Name, inh.Summary)
		}
		return nil
	}
	ctx.Logger.Printf("%s: no inhibitors, %d check result(s) (%d warning)", Name, t.Results, t.BySeverity[message.SeverityWarning])
	return nil
}
