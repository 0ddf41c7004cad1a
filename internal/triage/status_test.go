package triage_test

import (
	"testing"

	"github.com/joshslade/upwork-analysis-project/internal/triage"
)

func defaultVocab() triage.Vocabulary {
	return triage.NewVocabulary(
		[]string{"Interested", "Applied", "Lead", "Discarded"},
		[]string{"Discarded", "Lead"},
		[]string{"Lead"},
	)
}

// ── Parse ──────────────────────────────────────────────────────────────────

func TestParse_ValidValues(t *testing.T) {
	v := defaultVocab()
	valid := []string{"Interested", "Applied", "Lead", "Discarded"}
	for _, s := range valid {
		got, err := v.Parse(s)
		if err != nil {
			t.Errorf("Parse(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("Parse(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParse_BlankIsValid(t *testing.T) {
	v := defaultVocab()
	got, err := v.Parse("")
	if err != nil {
		t.Errorf("Parse(\"\") returned unexpected error: %v", err)
	}
	if got != triage.StatusBlank {
		t.Errorf("Parse(\"\") = %q, want StatusBlank", got)
	}
}

func TestParse_UnknownValue(t *testing.T) {
	v := defaultVocab()
	_, err := v.Parse("Shortlisted")
	if err == nil {
		t.Error("Parse(\"Shortlisted\") expected error, got nil")
	}
}

// Parse must be case-sensitive — a silently coerced status would be backed
// up as-is into the canonical store.
func TestParse_CaseSensitive(t *testing.T) {
	v := defaultVocab()
	lowercase := []string{"interested", "applied", "lead", "discarded"}
	for _, s := range lowercase {
		_, err := v.Parse(s)
		if err == nil {
			t.Errorf("Parse(%q) should reject lowercase value, got nil error", s)
		}
	}
}

func TestParse_WithWhitespace(t *testing.T) {
	v := defaultVocab()
	padded := []string{" Lead", "Lead ", " Lead "}
	for _, s := range padded {
		_, err := v.Parse(s)
		if err == nil {
			t.Errorf("Parse(%q) should reject padded value, got nil error", s)
		}
	}
}

// ── IsTerminal / IsRepromotable ────────────────────────────────────────────

func TestIsTerminal(t *testing.T) {
	v := defaultVocab()
	for _, s := range []triage.Status{"Discarded", "Lead"} {
		if !v.IsTerminal(s) {
			t.Errorf("IsTerminal(%s) should return true", s)
		}
	}
	for _, s := range []triage.Status{"Interested", "Applied", triage.StatusBlank} {
		if v.IsTerminal(s) {
			t.Errorf("IsTerminal(%q) should return false", s)
		}
	}
}

func TestIsRepromotable(t *testing.T) {
	v := defaultVocab()
	if !v.IsRepromotable("Lead") {
		t.Error("IsRepromotable(Lead) should return true")
	}
	for _, s := range []triage.Status{"Discarded", "Interested", "Applied", triage.StatusBlank} {
		if v.IsRepromotable(s) {
			t.Errorf("IsRepromotable(%q) should return false", s)
		}
	}
}

func TestRepromotable_RoundTrip(t *testing.T) {
	v := defaultVocab()
	got := v.Repromotable()
	if len(got) != 1 || got[0] != "Lead" {
		t.Errorf("Repromotable() = %v, want [Lead]", got)
	}
}
