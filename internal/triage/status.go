// Package triage defines the status vocabulary for the human-edited Airtable
// view.
//
// Unlike a fixed enum, the vocabulary is configuration: the policy file names
// the recognised statuses and classifies them into two (possibly overlapping)
// sets:
//
//	terminal:     the row is pruned from the view after its status is
//	              backed up to the canonical store
//	repromotable: the job becomes eligible for promotion again even
//	              though it was shown before
//
// The blank status is always valid and means "new, undecided".
package triage

import "fmt"

// Status is a human decision recorded in the view's Status field.
type Status string

// StatusBlank is the undecided state of a freshly promoted row.
const StatusBlank Status = ""

// Vocabulary classifies the configured status values.
type Vocabulary struct {
	known        map[Status]struct{}
	terminal     map[Status]struct{}
	repromotable map[Status]struct{}
}

// NewVocabulary builds a Vocabulary from the policy's status lists. The
// policy is validated at load time, so terminal and repromotable are assumed
// to be subsets of known.
func NewVocabulary(known, terminal, repromotable []string) Vocabulary {
	v := Vocabulary{
		known:        make(map[Status]struct{}, len(known)),
		terminal:     make(map[Status]struct{}, len(terminal)),
		repromotable: make(map[Status]struct{}, len(repromotable)),
	}
	for _, s := range known {
		v.known[Status(s)] = struct{}{}
	}
	for _, s := range terminal {
		v.terminal[Status(s)] = struct{}{}
	}
	for _, s := range repromotable {
		v.repromotable[Status(s)] = struct{}{}
	}
	return v
}

// Parse converts a raw Status field value into a Status, returning an error
// for values outside the vocabulary. Matching is exact: case variants and
// whitespace-padded strings are rejected, since a silently coerced status
// would be backed up as-is into the canonical store.
func (v Vocabulary) Parse(s string) (Status, error) {
	st := Status(s)
	if st == StatusBlank {
		return StatusBlank, nil
	}
	if _, ok := v.known[st]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown triage status %q", s)
}

// IsTerminal reports whether a status means the row should be removed from
// the view. The blank status is never terminal.
func (v Vocabulary) IsTerminal(s Status) bool {
	_, ok := v.terminal[s]
	return ok
}

// IsRepromotable reports whether a backed-up status leaves the job eligible
// for a second look.
func (v Vocabulary) IsRepromotable(s Status) bool {
	_, ok := v.repromotable[s]
	return ok
}

// Repromotable returns the configured repromotable statuses as strings, in
// unspecified order. Used to build the eligible-for-promotion query.
func (v Vocabulary) Repromotable() []string {
	out := make([]string, 0, len(v.repromotable))
	for s := range v.repromotable {
		out = append(out, string(s))
	}
	return out
}
