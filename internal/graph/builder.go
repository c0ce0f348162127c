package graph

import (
	"log/slog"
	"sort"

	"github.com/me/seqflow/pkg/model"
)

// Builder assembles a workflow: steps are added with their parameters,
// workflow-level input formats are declared, and Build configures every
// step, checks its requirements, resolves port dependencies and returns a
// validated Graph.
type Builder struct {
	logger *slog.Logger

	steps  []model.Step
	params map[string]model.Parameters
	inputs map[*model.DataFormat]bool
	addErr error
}

// NewBuilder creates an empty workflow builder.
func NewBuilder(logger *slog.Logger) *Builder {
	return &Builder{
		logger: logger.With("component", "graph"),
		params: make(map[string]model.Parameters),
		inputs: make(map[*model.DataFormat]bool),
	}
}

// AddStep adds a step with its configuration parameters. Errors are
// deferred to Build so call sites can chain adds.
func (b *Builder) AddStep(step model.Step, params model.Parameters) *Builder {
	if b.addErr != nil {
		return b
	}
	if step == nil {
		b.addErr = model.NewConfigurationError("", "step cannot be nil")
		return b
	}
	if step.Name() == "" {
		b.addErr = model.NewConfigurationError("", "step name cannot be empty")
		return b
	}
	if _, dup := b.params[step.Name()]; dup {
		b.addErr = model.NewConfigurationError(step.Name(), "duplicate step name")
		return b
	}
	b.steps = append(b.steps, step)
	b.params[step.Name()] = params
	return b
}

// AddInput declares a workflow-level input format: input ports of this
// format are satisfied by externally supplied data instead of an upstream
// step.
func (b *Builder) AddInput(format *model.DataFormat) *Builder {
	if format != nil {
		b.inputs[format] = true
	}
	return b
}

// Build configures all steps, verifies their requirements, builds the
// format-keyed dependency graph, validates producers and acyclicity, and
// computes the topological order.
func (b *Builder) Build() (*Graph, error) {
	if b.addErr != nil {
		return nil, b.addErr
	}

	// Configure each step and verify its requirements. An unavailable
	// requirement fails the step here, before any task is scheduled.
	for _, step := range b.steps {
		if err := step.Configure(b.params[step.Name()]); err != nil {
			return nil, err
		}
		for _, req := range step.Requirements() {
			if !req.IsAvailable() {
				return nil, model.NewConfigurationError(step.Name(),
					"unsatisfied requirement: %s", req.Name())
			}
		}
	}

	nodes := make(map[string]*Node, len(b.steps))
	for _, step := range b.steps {
		nodes[step.Name()] = &Node{
			Step:       step,
			Params:     b.params[step.Name()],
			deps:       make(map[string]*Node),
			dependents: make(map[string]*Node),
			producers:  make(map[string]*Node),
		}
	}

	// Index producers by output format.
	producers := make(map[*model.DataFormat][]*Node)
	for _, n := range nodes {
		for _, p := range n.Step.OutputPorts().Ports() {
			producers[p.Format()] = append(producers[p.Format()], n)
		}
	}
	for _, list := range producers {
		sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	}

	// Resolve every input port to exactly one source.
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		n := nodes[name]
		for _, p := range n.Step.InputPorts().Ports() {
			prods := producers[p.Format()]
			external := b.inputs[p.Format()]

			switch {
			case external && len(prods) > 0:
				return nil, &model.AmbiguousProducerError{
					Step:      n.Name(),
					Port:      p.Name(),
					Format:    p.Format().Name(),
					Producers: append([]string{"workflow input"}, producerNames(prods)...),
				}
			case external:
				n.producers[p.Name()] = nil
			case len(prods) == 0:
				return nil, &model.UnresolvedDependencyError{
					Step:   n.Name(),
					Port:   p.Name(),
					Format: p.Format().Name(),
				}
			case len(prods) > 1:
				return nil, &model.AmbiguousProducerError{
					Step:      n.Name(),
					Port:      p.Name(),
					Format:    p.Format().Name(),
					Producers: producerNames(prods),
				}
			default:
				prod := prods[0]
				if prod == n {
					return nil, &model.CyclicWorkflowError{Steps: []string{n.Name()}}
				}
				n.producers[p.Name()] = prod
				n.deps[prod.Name()] = prod
				prod.dependents[n.Name()] = n
			}
		}
	}

	order, leftover := topoSort(nodes)
	if len(leftover) > 0 {
		return nil, &model.CyclicWorkflowError{Steps: leftover}
	}

	g := &Graph{nodes: nodes, order: order}
	b.logger.Debug("graph built", "steps", len(nodes), "order", orderNames(order))
	return g, nil
}

func producerNames(nodes []*Node) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name()
	}
	return names
}

func orderNames(order []*Node) []string {
	names := make([]string, len(order))
	for i, n := range order {
		names[i] = n.Name()
	}
	return names
}
