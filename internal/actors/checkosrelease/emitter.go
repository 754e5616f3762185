package checkosrelease

import "github.com/kingrea/ipu-gate/internal/message"

const (
	skipSummary = "Skipped OS release check"
	skipDetails = "OS release check skipped via LEAPP_SKIP_CHECK_OS_RELEASE env var"
)

// Emit turns a decision into at most one outbound message. A pass yields nil.
func Emit(d Decision) message.Model {
	switch d.Outcome {
	case OutcomeSkipped:
		return message.CheckResult{
			Severity: message.SeverityWarning,
			Result:   message.ResultNotApplicable,
			Summary:  skipSummary,
			Details:  skipDetails,
		}
	case OutcomeInhibited:
		return message.Inhibitor{
			Summary: d.Reason.Summary,
			Details: d.Reason.Details,
		}
	default:
		return nil
	}
}
