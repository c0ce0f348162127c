package steps

import (
	"context"
	"fmt"
	"sort"

	"github.com/me/seqflow/pkg/model"
)

// DefaultMergeGroupKey is the metadata key elements are grouped by when
// the "group-by" parameter is not set.
const DefaultMergeGroupKey = "experiment"

// MergeStep merges same-format data elements that belong to the same
// group into one element per group. A group of two or more elements is
// merged; a single-element group passes through unchanged. Elements
// without a group value each form their own group.
type MergeStep struct {
	name       string
	in         model.InputPorts
	out        model.OutputPorts
	groupKey   string
	configured bool
}

// NewMergeStep declares a merge step. The input port has list cardinality:
// one task sees every element and decides what to merge. The output
// carries the derived "<format>-merged" format, so the merged data is a
// distinct type and the graph stays unambiguous when the source format
// has other consumers.
func NewMergeStep(name string, format *model.DataFormat) (*MergeStep, error) {
	if format == nil {
		return nil, model.NewConfigurationError(name, "merge step needs an input format")
	}
	merged, err := model.RegisterFormat(format.Name()+"-merged",
		"merged "+format.Name()+" elements, one per group")
	if err != nil {
		return nil, err
	}
	inb := model.NewInputPortsBuilder(name)
	if err := inb.AddPort("input", format, true); err != nil {
		return nil, err
	}
	outb := model.NewOutputPortsBuilder(name)
	if err := outb.AddPort("output", merged); err != nil {
		return nil, err
	}
	return &MergeStep{name: name, in: inb.Build(), out: outb.Build()}, nil
}

func (s *MergeStep) Name() string    { return s.name }
func (s *MergeStep) Version() string { return "1.0" }

func (s *MergeStep) InputPorts() model.InputPorts   { return s.in }
func (s *MergeStep) OutputPorts() model.OutputPorts { return s.out }

func (s *MergeStep) Requirements() []model.Requirement { return nil }

func (s *MergeStep) Configure(params model.Parameters) error {
	if s.configured {
		return model.NewIllegalStateError("step %s is already configured", s.name)
	}
	s.groupKey = params.Get("group-by", DefaultMergeGroupKey)
	s.configured = true
	return nil
}

func (s *MergeStep) Execute(ctx context.Context, tc model.TaskContext, status model.StatusReporter) error {
	in, err := tc.InputData("input")
	if err != nil {
		return err
	}
	out, err := tc.OutputData("output")
	if err != nil {
		return err
	}

	elements := in.Elements()
	status.SetDescription(fmt.Sprintf("merge %d elements by %q", len(elements), s.groupKey))

	// Group elements, preserving first-seen order of groups.
	groups := make(map[string][]*model.DataElement)
	var order []string
	for _, el := range elements {
		key := el.MetadataValue(s.groupKey)
		if key == "" {
			// Ungrouped elements stand alone.
			key = "\x00" + el.Name
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], el)
	}

	counters := model.NewCounterSet()
	counters.Set("input elements", int64(len(elements)))

	for i, key := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		group := groups[key]

		if len(group) >= 2 {
			// Two or more elements of the same group always merge.
			merged, mergeErr := mergeGroup(key, group)
			if mergeErr != nil {
				return mergeErr
			}
			if err := out.AddElement(merged); err != nil {
				return err
			}
			counters.Increment("merged groups", 1)
		} else {
			if err := out.AddElement(group[0]); err != nil {
				return err
			}
			counters.Increment("passed through", 1)
		}

		if err := status.SetProgressRange(0, len(order), i+1); err != nil {
			return err
		}
	}

	counters.Set("output elements", int64(len(order)))
	status.MergeCounters(counters)
	return nil
}

// mergeGroup combines a group into one element. The merged value is the
// ordered list of member values; metadata keys shared with identical
// values by every member survive the merge.
func mergeGroup(key string, group []*model.DataElement) (*model.DataElement, error) {
	sort.SliceStable(group, func(i, j int) bool { return group[i].Name < group[j].Name })

	values := make([]any, len(group))
	names := make([]string, len(group))
	for i, el := range group {
		values[i] = el.Value
		names[i] = el.Name
	}

	md := make(map[string]string, len(group[0].Metadata))
	for k, v := range group[0].Metadata {
		md[k] = v
	}
	for _, el := range group[1:] {
		for k, v := range md {
			if el.MetadataValue(k) != v {
				delete(md, k)
			}
		}
	}

	name := key
	if len(name) > 0 && name[0] == '\x00' {
		return nil, fmt.Errorf("cannot merge ungrouped elements: %v", names)
	}
	return &model.DataElement{Name: name, Value: values, Metadata: md}, nil
}
