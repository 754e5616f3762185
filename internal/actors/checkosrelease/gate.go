package checkosrelease

import (
	"strings"

	"github.com/kingrea/ipu-gate/internal/message"
	"github.com/kingrea/ipu-gate/internal/policy"
)

// Outcome is the verdict of the version gate.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomePassed    Outcome = "passed"
	OutcomeInhibited Outcome = "inhibited"
)

// Reason explains an inhibition.
type Reason struct {
	Summary string
	Details string
}

// Decision is the tagged result of Evaluate. Reason is set only when the
// outcome is OutcomeInhibited.
type Decision struct {
	Outcome Outcome
	Reason  Reason
}

const (
	summaryUnsupportedID      = "Unsupported OS id"
	summaryUnsupportedVersion = "Unsupported OS version"
	detailsSupportedIDs       = "Supported OS ids for upgrade process: "
	detailsMinimalVersion     = "Minimal supported OS version for upgrade process: "
)

// Skipped reports whether the check was switched off.
func (d Decision) Skipped() bool { return d.Outcome == OutcomeSkipped }

// Passed reports whether no fact disqualified the system.
func (d Decision) Passed() bool { return d.Outcome == OutcomePassed }

// Inhibited reports whether the upgrade must not proceed.
func (d Decision) Inhibited() bool { return d.Outcome == OutcomeInhibited }

// Evaluate decides whether the observed releases satisfy pol. With skip set,
// neither facts nor pol are consulted. Facts are checked in order and the first
// disqualifying one wins. Malformed versions are returned as *policy.ParseError.
func Evaluate(skip bool, facts []message.OSReleaseFacts, pol policy.Lookup) (Decision, error) {
	if skip {
		return Decision{Outcome: OutcomeSkipped}, nil
	}
	for _, fact := range facts {
		minimum, ok := pol.Minimum(fact.ReleaseID)
		if !ok {
			return inhibit(summaryUnsupportedID, detailsSupportedIDs+strings.Join(pol.IDs(), ",")), nil
		}
		current, err := policy.ParseVersion(fact.VersionID)
		if err != nil {
			return Decision{}, err
		}
		required, err := policy.ParseVersion(minimum)
		if err != nil {
			return Decision{}, err
		}
		if policy.Compare(current, required) < 0 {
			return inhibit(summaryUnsupportedVersion, detailsMinimalVersion+minimum), nil
		}
	}
	return Decision{Outcome: OutcomePassed}, nil
}

func inhibit(summary, details string) Decision {
	return Decision{Outcome: OutcomeInhibited, Reason: Reason{Summary: summary, Details: details}}
}
