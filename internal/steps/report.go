package steps

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/me/seqflow/pkg/model"
)

var reportFormat = model.MustRegisterFormat("run-report", "aggregated text report over consumed data elements")

// ReportFormat returns the format produced by every ReportStep.
func ReportFormat() *model.DataFormat { return reportFormat }

// ReportStep consumes all elements of one format in a single task and
// produces a text report listing each element with its metadata.
type ReportStep struct {
	name       string
	in         model.InputPorts
	out        model.OutputPorts
	title      string
	configured bool
}

// NewReportStep declares a report step over the given input format.
func NewReportStep(name string, inFormat *model.DataFormat) (*ReportStep, error) {
	inb := model.NewInputPortsBuilder(name)
	if err := inb.AddPort("input", inFormat, true); err != nil {
		return nil, err
	}
	outb := model.NewOutputPortsBuilder(name)
	if err := outb.AddPort("report", reportFormat); err != nil {
		return nil, err
	}
	return &ReportStep{name: name, in: inb.Build(), out: outb.Build()}, nil
}

func (s *ReportStep) Name() string    { return s.name }
func (s *ReportStep) Version() string { return "1.0" }

func (s *ReportStep) InputPorts() model.InputPorts   { return s.in }
func (s *ReportStep) OutputPorts() model.OutputPorts { return s.out }

func (s *ReportStep) Requirements() []model.Requirement { return nil }

func (s *ReportStep) Configure(params model.Parameters) error {
	if s.configured {
		return model.NewIllegalStateError("step %s is already configured", s.name)
	}
	s.title = params.Get("title", "seqflow report")
	s.configured = true
	return nil
}

func (s *ReportStep) Execute(ctx context.Context, tc model.TaskContext, status model.StatusReporter) error {
	in, err := tc.InputData("input")
	if err != nil {
		return err
	}
	out, err := tc.OutputData("report")
	if err != nil {
		return err
	}

	elements := in.Elements()
	status.SetDescription(fmt.Sprintf("report over %d elements", len(elements)))

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.title)
	fmt.Fprintf(&b, "format: %s\nelements: %d\n\n", in.Format().Name(), len(elements))

	for i, el := range elements {
		fmt.Fprintf(&b, "- %s\n", el.Name)
		keys := make([]string, 0, len(el.Metadata))
		for k := range el.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "    %s: %s\n", k, el.Metadata[k])
		}
		if err := status.SetProgressRange(0, len(elements), i+1); err != nil {
			return err
		}
	}

	counters := model.NewCounterSet()
	counters.Set("reported elements", int64(len(elements)))
	status.MergeCounters(counters)

	return out.AddElement(&model.DataElement{
		Name:     s.name,
		Value:    b.String(),
		Metadata: map[string]string{"title": s.title},
	})
}
