package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// FieldMapping declares how one canonical jobs column appears in the Airtable
// Jobs view. Type is the Airtable field type the column is expected to have;
// it is checked against the live schema at startup and a mismatch is fatal.
type FieldMapping struct {
	Column string `yaml:"column"` // canonical jobs column, e.g. "fixed_budget"
	Field  string `yaml:"field"`  // Airtable field name, e.g. "Fixed Budget"
	Type   string `yaml:"type"`   // declared Airtable type, e.g. "number"
}

// ScoringWeights parameterise the default promotion scoring policy. All
// weights are ≥0; a zero weight disables that signal.
type ScoringWeights struct {
	Recency          float64 `yaml:"recency"`           // newer published_on scores higher
	Budget           float64 `yaml:"budget"`            // higher budget scores higher
	ClientReputation float64 `yaml:"client_reputation"` // spend, reviews, verification
	Competition      float64 `yaml:"competition"`       // fewer proposals scores higher
}

// Policy is the immutable sync policy threaded through the reconciler's
// constructor. It is never read from ambient global state.
type Policy struct {
	// StatusVocabulary lists every recognised non-blank Status value the
	// triage view may carry. Blank ("") always means "new, undecided".
	StatusVocabulary []string `yaml:"status_vocabulary"`

	// TerminalStatuses are pruned from the triage view after backup.
	TerminalStatuses []string `yaml:"terminal_statuses"`

	// RepromotableStatuses mark jobs eligible for promotion again even
	// though they were shown (and pruned) before.
	RepromotableStatuses []string `yaml:"repromotable_statuses"`

	// DynamicFields is the subset of canonical columns re-patched onto
	// surviving triage rows during refresh. Static descriptive fields are
	// deliberately absent to avoid needless writes.
	DynamicFields []string `yaml:"dynamic_fields"`

	// SlotCeiling bounds the number of active triage rows.
	SlotCeiling int `yaml:"slot_ceiling"`

	Scoring ScoringWeights `yaml:"scoring"`

	// ExcludeTerms discard promotion candidates whose title or description
	// contains any term (case-insensitive).
	ExcludeTerms []string `yaml:"exclude_terms"`

	// FieldMap maps canonical columns to Airtable fields for display.
	FieldMap []FieldMapping `yaml:"field_map"`
}

// DefaultPolicy returns the policy matching the historical sync behaviour:
// Discarded and Lead rows are pruned, Lead jobs are eligible again, and the
// volatile competition/applied fields are refreshed in place.
func DefaultPolicy() Policy {
	return Policy{
		StatusVocabulary:     []string{"Interested", "Applied", "Lead", "Discarded"},
		TerminalStatuses:     []string{"Discarded", "Lead"},
		RepromotableStatuses: []string{"Lead"},
		DynamicFields:        []string{"proposals_tier", "is_applied", "skills"},
		SlotCeiling:          50,
		Scoring: ScoringWeights{
			Recency:          1.0,
			Budget:           1.0,
			ClientReputation: 0.5,
			Competition:      0.5,
		},
		FieldMap: []FieldMapping{
			{Column: "job_id", Field: "job_id", Type: "singleLineText"},
			{Column: "url", Field: "URL", Type: "url"},
			{Column: "title", Field: "Title", Type: "singleLineText"},
			{Column: "description", Field: "Description", Type: "multilineText"},
			{Column: "skills", Field: "Skills", Type: "multipleRecordLinks"},
			{Column: "published_on", Field: "Published", Type: "dateTime"},
			{Column: "job_type", Field: "Job Type", Type: "singleSelect"},
			{Column: "proposals_tier", Field: "Proposals", Type: "singleSelect"},
			{Column: "fixed_budget", Field: "Fixed Budget", Type: "number"},
			{Column: "hourly_budget_min", Field: "Hourly Min", Type: "number"},
			{Column: "hourly_budget_max", Field: "Hourly Max", Type: "number"},
			{Column: "currency", Field: "Currency", Type: "singleLineText"},
			{Column: "client_country", Field: "Client Country", Type: "singleLineText"},
			{Column: "client_total_spent", Field: "Client Spent", Type: "number"},
			{Column: "client_payment_verified", Field: "Payment Verified", Type: "checkbox"},
			{Column: "is_applied", Field: "Applied", Type: "checkbox"},
		},
	}
}

// LoadPolicy reads and validates a YAML policy file. An empty path yields
// DefaultPolicy.
func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}

	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("policy file %s: %w", path, err)
	}
	return p, nil
}

// airtableFieldTypes lists the field types the mapping may declare.
var airtableFieldTypes = []string{
	"singleLineText", "multilineText", "url", "number", "checkbox",
	"singleSelect", "multipleSelects", "dateTime", "date",
	"multipleRecordLinks", "lastModifiedTime",
}

// Validate checks internal consistency of the policy. It is called once at
// load; the reconciler may assume a valid policy.
func (p Policy) Validate() error {
	if p.SlotCeiling < 1 {
		return fmt.Errorf("slot_ceiling must be ≥1, got %d", p.SlotCeiling)
	}
	if len(p.StatusVocabulary) == 0 {
		return fmt.Errorf("status_vocabulary must not be empty")
	}
	if slices.Contains(p.StatusVocabulary, "") {
		return fmt.Errorf("status_vocabulary must not contain the blank status")
	}
	for _, s := range p.TerminalStatuses {
		if !slices.Contains(p.StatusVocabulary, s) {
			return fmt.Errorf("terminal status %q is not in status_vocabulary", s)
		}
	}
	for _, s := range p.RepromotableStatuses {
		if !slices.Contains(p.StatusVocabulary, s) {
			return fmt.Errorf("repromotable status %q is not in status_vocabulary", s)
		}
	}

	if len(p.FieldMap) == 0 {
		return fmt.Errorf("field_map must not be empty")
	}
	seen := make(map[string]bool, len(p.FieldMap))
	hasJobID := false
	for _, m := range p.FieldMap {
		if m.Column == "" || m.Field == "" {
			return fmt.Errorf("field_map entries require both column and field")
		}
		if seen[m.Column] {
			return fmt.Errorf("field_map maps column %q twice", m.Column)
		}
		seen[m.Column] = true
		if !slices.Contains(airtableFieldTypes, m.Type) {
			return fmt.Errorf("field_map column %q declares unknown type %q", m.Column, m.Type)
		}
		if m.Column == "job_id" {
			hasJobID = true
		}
	}
	if !hasJobID {
		return fmt.Errorf("field_map must map the job_id column")
	}

	for _, d := range p.DynamicFields {
		if !seen[d] {
			return fmt.Errorf("dynamic field %q is not in field_map", d)
		}
	}

	if p.Scoring.Recency < 0 || p.Scoring.Budget < 0 ||
		p.Scoring.ClientReputation < 0 || p.Scoring.Competition < 0 {
		return fmt.Errorf("scoring weights must be ≥0")
	}
	return nil
}

// FieldFor returns the Airtable field name mapped to a canonical column.
func (p Policy) FieldFor(column string) (string, bool) {
	for _, m := range p.FieldMap {
		if m.Column == column {
			return m.Field, true
		}
	}
	return "", false
}
