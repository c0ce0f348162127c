package steps

import (
	"context"
	"strings"
	"testing"

	"github.com/me/seqflow/pkg/model"
)

func TestReportStepBuildsReport(t *testing.T) {
	s, err := NewReportStep("report", fmtIn)
	if err != nil {
		t.Fatalf("new report step: %v", err)
	}
	if err := s.Configure(model.Parameters{"title": "expression summary"}); err != nil {
		t.Fatalf("configure: %v", err)
	}

	in := inputData(t, fmtIn,
		&model.DataElement{Name: "s1", Value: "a", Metadata: map[string]string{"experiment": "exp1", "condition": "control"}},
		&model.DataElement{Name: "s2", Value: "b"},
	)
	tc, status := newTestContext(t, s, in)

	if err := s.Execute(context.Background(), tc, status); err != nil {
		t.Fatalf("execute: %v", err)
	}

	els := tc.outputs["report"].Elements()
	if len(els) != 1 {
		t.Fatalf("output elements = %d, want 1", len(els))
	}
	text := els[0].Value.(string)
	for _, want := range []string{
		"# expression summary",
		"elements: 2",
		"- s1",
		"condition: control",
		"experiment: exp1",
		"- s2",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
	// Metadata keys are listed sorted.
	if strings.Index(text, "condition:") > strings.Index(text, "experiment:") {
		t.Error("metadata keys not sorted")
	}

	if got := status.Counters()["reported elements"]; got != 2 {
		t.Errorf("reported elements = %d, want 2", got)
	}
	if els[0].MetadataValue("title") != "expression summary" {
		t.Errorf("report metadata = %v", els[0].Metadata)
	}
}

func TestReportStepFormat(t *testing.T) {
	if ReportFormat().Name() != "run-report" {
		t.Errorf("report format = %q", ReportFormat().Name())
	}
	s, err := NewReportStep("report", fmtIn)
	if err != nil {
		t.Fatalf("new report step: %v", err)
	}
	p, ok := s.OutputPorts().PortByName("report")
	if !ok || p.Format() != ReportFormat() {
		t.Errorf("report output port = %+v, %v", p, ok)
	}
}
