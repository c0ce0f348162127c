package cli

import (
	"fmt"
	"log/slog"

	"github.com/me/seqflow/internal/config"
	"github.com/me/seqflow/internal/graph"
	"github.com/me/seqflow/internal/steps"
	"github.com/me/seqflow/pkg/model"
)

// assemble turns a workflow definition file into a validated graph plus
// the externally supplied input data.
func assemble(wf *config.WorkflowFile, logger *slog.Logger) (*graph.Graph, map[*model.DataFormat]*model.Data, error) {
	for _, f := range wf.Formats {
		if _, err := model.RegisterFormat(f.Name, f.Description); err != nil {
			return nil, nil, err
		}
	}

	b := graph.NewBuilder(logger)
	for _, sd := range wf.Steps {
		step, err := buildStep(sd)
		if err != nil {
			return nil, nil, err
		}
		b.AddStep(step, model.Parameters(sd.Params))
	}

	inputs := make(map[*model.DataFormat]*model.Data, len(wf.Inputs))
	for _, in := range wf.Inputs {
		format, ok := model.FormatByName(in.Format)
		if !ok {
			return nil, nil, fmt.Errorf("input references undeclared format %q", in.Format)
		}
		b.AddInput(format)

		data := model.NewData("workflow/"+in.Format, format)
		for _, el := range in.Elements {
			md := make(map[string]string, len(el.Metadata))
			for k, v := range el.Metadata {
				md[k] = v
			}
			if err := data.AddElement(&model.DataElement{Name: el.Name, Value: el.Value, Metadata: md}); err != nil {
				return nil, nil, err
			}
		}
		inputs[format] = data
	}

	g, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	return g, inputs, nil
}

// buildStep constructs the built-in step implementation a StepDef names.
func buildStep(sd config.StepDef) (model.Step, error) {
	switch sd.Kind {
	case "shell":
		in, out, err := stepFormats(sd, true)
		if err != nil {
			return nil, err
		}
		return steps.NewShellStep(sd.Name, in, out)
	case "merge":
		in, _, err := stepFormats(sd, false)
		if err != nil {
			return nil, err
		}
		return steps.NewMergeStep(sd.Name, in)
	case "report":
		in, _, err := stepFormats(sd, false)
		if err != nil {
			return nil, err
		}
		return steps.NewReportStep(sd.Name, in)
	default:
		return nil, fmt.Errorf("step %q: unknown kind %q", sd.Name, sd.Kind)
	}
}

func stepFormats(sd config.StepDef, needOut bool) (in, out *model.DataFormat, err error) {
	in, ok := model.FormatByName(sd.In)
	if !ok {
		return nil, nil, fmt.Errorf("step %q: undeclared input format %q", sd.Name, sd.In)
	}
	if !needOut {
		return in, nil, nil
	}
	out, ok = model.FormatByName(sd.Out)
	if !ok {
		return nil, nil, fmt.Errorf("step %q: undeclared output format %q", sd.Name, sd.Out)
	}
	return in, out, nil
}
