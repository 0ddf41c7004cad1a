package reconcile

import (
	"fmt"
	"time"
)

// maxErrorDetails bounds how many per-record error strings a phase keeps.
// Beyond that only the failure count grows.
const maxErrorDetails = 5

// PhaseReport summarises one phase of a run: counts of attempted, succeeded
// and failed operations plus the first few error details.
type PhaseReport struct {
	Name      string   `json:"name"`
	Attempted int      `json:"attempted"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

func (p *PhaseReport) recordError(err error) {
	if len(p.Errors) < maxErrorDetails {
		p.Errors = append(p.Errors, err.Error())
	}
}

// RunReport is the user-visible outcome of one reconciliation run. Partial
// progress is never rolled back, so a report with AbortedAt set still
// describes real committed work.
type RunReport struct {
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Phases     []PhaseReport `json:"phases"`

	// AbortedAt names the phase whose failure stopped the run, empty when
	// all five phases ran.
	AbortedAt string `json:"abortedAt,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Summary renders a one-line per-phase overview for logs.
func (r *RunReport) Summary() string {
	s := ""
	for i := range r.Phases {
		p := &r.Phases[i]
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s %d/%d", p.Name, p.Succeeded, p.Attempted)
	}
	if r.AbortedAt != "" {
		s += fmt.Sprintf(" (aborted at %s)", r.AbortedAt)
	}
	return s
}
