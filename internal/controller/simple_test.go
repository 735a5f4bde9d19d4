package controller

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	m "github.com/BAL-DMU/mapcov/internal/model"
)

func newBufferedSimpleUI() (*SimpleUI, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	return NewSimpleUI(cmd), &buf
}

func TestSimpleUI_DisplayRunStart(t *testing.T) {
	ui, buf := newBufferedSimpleUI()

	ui.DisplayRunStart(3, 12)

	want := "Verifying 12 rules across 3 maps\n"
	if got := buf.String(); got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestSimpleUI_DisplayRuleResult_Covered(t *testing.T) {
	ui, buf := newBufferedSimpleUI()

	ui.DisplayRuleResult(m.CoverageResult{
		Rule: m.Rule{
			File:      "patient.map",
			StartLine: 7,
			EndLine:   7,
			Desc:      "src.id -> tgt.subjectId",
		},
		Status:   m.StatusCovered,
		Evidence: []string{"test_patient.py::test_id", "test_patient.py::test_name"},
	}, 3, 12)

	want := "[3/12] patient.map L7 src.id -> tgt.subjectId -> COVERED (test_patient.py::test_id, test_patient.py::test_name)\n"
	if got := buf.String(); got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestSimpleUI_DisplayRuleResult_SkippedShowsReason(t *testing.T) {
	ui, buf := newBufferedSimpleUI()

	ui.DisplayRuleResult(m.CoverageResult{
		Rule: m.Rule{
			File:      "patient.map",
			StartLine: 8,
			EndLine:   10,
			Desc:      "Create Reference -> tgt.holder",
		},
		Status: m.StatusSkipped,
		Reason: "duplicate span",
	}, 4, 12)

	want := "[4/12] patient.map L8-L10 Create Reference -> tgt.holder -> SKIPPED (duplicate span)\n"
	if got := buf.String(); got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestSimpleUI_DisplayRuleResult_MissingHasNoDetail(t *testing.T) {
	ui, buf := newBufferedSimpleUI()

	ui.DisplayRuleResult(m.CoverageResult{
		Rule: m.Rule{
			File:      "visit.map",
			StartLine: 5,
			EndLine:   5,
			Desc:      "src.state -> tgt.status",
		},
		Status: m.StatusMissing,
	}, 5, 12)

	want := "[5/12] visit.map L5 src.state -> tgt.status -> MISSING\n"
	if got := buf.String(); got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestSimpleUI_DisplayRuleSets_PrintsTablePerMap(t *testing.T) {
	ui, buf := newBufferedSimpleUI()

	sets := []m.RuleSet{
		{
			File: "patient.map",
			Name: "PatientToSubject",
			URL:  "http://example.org/StructureMap/Patient",
			Rules: []m.Rule{
				{File: "patient.map", StartLine: 7, EndLine: 7, Group: "Patient2Subject", Label: "copy-id", Kind: m.KindField, Desc: "src.id -> tgt.subjectId"},
				{File: "patient.map", StartLine: 11, EndLine: 11, Group: "Patient2Subject", Label: "gender", Kind: m.KindTranslate, Desc: "translate(#administrative-gender)"},
			},
		},
		{
			File: "visit.map",
			Name: "VisitToEncounter",
			URL:  "http://example.org/StructureMap/Visit",
			Rules: []m.Rule{
				{File: "visit.map", StartLine: 4, EndLine: 4, Group: "Visit2Encounter", Label: "id", Kind: m.KindID, Desc: "uuid()"},
			},
		},
	}

	ui.DisplayRuleSets(sets)

	output := buf.String()

	for _, want := range []string{
		"patient.map (http://example.org/StructureMap/Patient)",
		"visit.map (http://example.org/StructureMap/Visit)",
		"LINES", "GROUP", "KIND", "RULE", "LABEL",
		"L7", "L11", "L4",
		"Patient2Subject",
		"translate(#administrative-gender)",
		"copy-id",
		"3 rules in 2 maps",
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("output missing %q\noutput:\n%s", want, output)
		}
	}
}

func TestSimpleUI_DisplayReport(t *testing.T) {
	ui, buf := newBufferedSimpleUI()

	report := m.Report{
		Files: []m.FileResult{
			{
				Set: m.RuleSet{File: "patient.map"},
				Results: []m.CoverageResult{
					{Rule: m.Rule{File: "patient.map", StartLine: 7, EndLine: 7, Desc: "src.id -> tgt.subjectId"}, Status: m.StatusCovered, Evidence: []string{"test_patient.py::test_id"}},
					{Rule: m.Rule{File: "patient.map", StartLine: 9, EndLine: 9, Desc: "src.gender -> tgt.gender"}, Status: m.StatusMissing},
					{Rule: m.Rule{File: "patient.map", StartLine: 11, EndLine: 11, Desc: "translate(#administrative-gender)"}, Status: m.StatusError, Reason: "upload mutant: boom"},
				},
			},
			{
				Set: m.RuleSet{File: "visit.map"},
				Results: []m.CoverageResult{
					{Rule: m.Rule{File: "visit.map", StartLine: 4, EndLine: 4, Desc: "uuid()"}, Status: m.StatusCovered, Evidence: []string{"test_visit.py::test_id"}},
					{Rule: m.Rule{File: "visit.map", StartLine: 5, EndLine: 5, Desc: "src.state -> tgt.status"}, Status: m.StatusSkipped, Reason: "duplicate span"},
				},
			},
			{
				Set: m.RuleSet{File: "broken.map"},
				Err: "parse broken.map:3: unbalanced closing brace",
			},
		},
	}

	ui.DisplayReport(report)

	output := buf.String()

	for _, want := range []string{
		"MAP", "COVERED", "MISSING", "ERROR", "SKIPPED",
		"patient.map",
		"visit.map",
		"broken.map (unparseable)",
		"TOTAL 5",
		"Rule coverage: 50.0%",
		"TESTS TO ADD (1 rules without coverage):",
		"  patient.map L9  src.gender -> tgt.gender",
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("output missing %q\noutput:\n%s", want, output)
		}
	}
}

func TestSimpleUI_DisplayReport_CleanRunOmitsMissingList(t *testing.T) {
	ui, buf := newBufferedSimpleUI()

	report := m.Report{
		Files: []m.FileResult{
			{
				Set: m.RuleSet{File: "patient.map"},
				Results: []m.CoverageResult{
					{Rule: m.Rule{File: "patient.map", StartLine: 7, EndLine: 7}, Status: m.StatusCovered, Evidence: []string{"test_patient.py::test_id"}},
				},
			},
		},
	}

	ui.DisplayReport(report)

	output := buf.String()

	if !strings.Contains(output, "Rule coverage: 100.0%") {
		t.Fatalf("output missing coverage line\noutput:\n%s", output)
	}

	if strings.Contains(output, "TESTS TO ADD") {
		t.Fatalf("clean report should not list tests to add\noutput:\n%s", output)
	}
}

func TestSimpleUI_QuietLifecycle(t *testing.T) {
	ui, buf := newBufferedSimpleUI()

	if err := ui.Start(WithRunMode()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ui.DisplayRuleStart(m.Rule{File: "patient.map", StartLine: 7, EndLine: 7}, 0, 12)
	ui.Close()
	ui.Wait()

	if buf.Len() != 0 {
		t.Fatalf("lifecycle calls wrote output: %q", buf.String())
	}
}
