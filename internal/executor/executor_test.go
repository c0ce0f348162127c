package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/me/seqflow/internal/graph"
	"github.com/me/seqflow/pkg/model"
)

var (
	fmtRaw      = model.MustRegisterFormat("exec-test-raw", "")
	fmtFiltered = model.MustRegisterFormat("exec-test-filtered", "")
	fmtMapped   = model.MustRegisterFormat("exec-test-mapped", "")
	fmtSide     = model.MustRegisterFormat("exec-test-side", "")
	fmtSideOut  = model.MustRegisterFormat("exec-test-side-out", "")
)

type inPort struct {
	name   string
	format *model.DataFormat
	list   bool
}

// execStep runs an arbitrary function per task over declared ports.
type execStep struct {
	name string
	in   model.InputPorts
	out  model.OutputPorts
	fn   func(ctx context.Context, tc model.TaskContext, status model.StatusReporter) error
}

func newExecStep(t *testing.T, name string, in []inPort, out map[string]*model.DataFormat,
	fn func(ctx context.Context, tc model.TaskContext, status model.StatusReporter) error) *execStep {
	t.Helper()
	ib := model.NewInputPortsBuilder(name)
	for _, p := range in {
		if err := ib.AddPort(p.name, p.format, p.list); err != nil {
			t.Fatalf("step %s: %v", name, err)
		}
	}
	ob := model.NewOutputPortsBuilder(name)
	names := make([]string, 0, len(out))
	for n := range out {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if err := ob.AddPort(n, out[n]); err != nil {
			t.Fatalf("step %s: %v", name, err)
		}
	}
	return &execStep{name: name, in: ib.Build(), out: ob.Build(), fn: fn}
}

func (s *execStep) Name() string                      { return s.name }
func (s *execStep) Version() string                   { return "0.0.0" }
func (s *execStep) InputPorts() model.InputPorts      { return s.in }
func (s *execStep) OutputPorts() model.OutputPorts    { return s.out }
func (s *execStep) Requirements() []model.Requirement { return nil }
func (s *execStep) Configure(model.Parameters) error  { return nil }
func (s *execStep) Execute(ctx context.Context, tc model.TaskContext, status model.StatusReporter) error {
	if s.fn == nil {
		return nil
	}
	return s.fn(ctx, tc, status)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// copyInput appends every input element to the first output port.
func copyInput(t *testing.T, inPortName, outPortName string) func(ctx context.Context, tc model.TaskContext, status model.StatusReporter) error {
	return func(_ context.Context, tc model.TaskContext, _ model.StatusReporter) error {
		in, err := tc.InputData(inPortName)
		if err != nil {
			return err
		}
		out, err := tc.OutputData(outPortName)
		if err != nil {
			return err
		}
		for _, el := range in.Elements() {
			if err := out.AddElement(&model.DataElement{Name: el.Name, Value: el.Value, Metadata: el.Metadata}); err != nil {
				return err
			}
		}
		return nil
	}
}

func buildGraph(t *testing.T, inputs []*model.DataFormat, steps ...model.Step) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder(testLogger())
	for _, s := range steps {
		b.AddStep(s, nil)
	}
	for _, f := range inputs {
		b.AddInput(f)
	}
	g, err := b.Build()
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return g
}

func rawData(t *testing.T, format *model.DataFormat, names ...string) *model.Data {
	t.Helper()
	d := model.NewData("workflow/input", format)
	for _, n := range names {
		if err := d.AddElement(&model.DataElement{Name: n, Value: n}); err != nil {
			t.Fatalf("add element: %v", err)
		}
	}
	return d
}

func TestRunOrdersDependencies(t *testing.T) {
	var mu sync.Mutex
	var trace []string
	record := func(name string) {
		mu.Lock()
		trace = append(trace, name)
		mu.Unlock()
	}

	filter := newExecStep(t, "filter",
		[]inPort{{"input", fmtRaw, true}},
		map[string]*model.DataFormat{"output": fmtFiltered},
		func(ctx context.Context, tc model.TaskContext, status model.StatusReporter) error {
			record("filter")
			return copyInput(t, "input", "output")(ctx, tc, status)
		})
	mapper := newExecStep(t, "map",
		[]inPort{{"input", fmtFiltered, true}},
		map[string]*model.DataFormat{"output": fmtMapped},
		func(ctx context.Context, tc model.TaskContext, status model.StatusReporter) error {
			record("map")
			return copyInput(t, "input", "output")(ctx, tc, status)
		})

	g := buildGraph(t, []*model.DataFormat{fmtRaw}, filter, mapper)
	e := New(g, Options{Workers: 4, Logger: testLogger(), WorkDir: t.TempDir()})

	res, err := e.Run(context.Background(), map[*model.DataFormat]*model.Data{
		fmtRaw: rawData(t, fmtRaw, "s1", "s2"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Success || res.Cancelled {
		t.Fatalf("result = %+v, want success", res)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(trace) != 2 || trace[0] != "filter" || trace[1] != "map" {
		t.Errorf("trace = %v, want [filter map]", trace)
	}

	out, ok := res.Outputs["map/output"]
	if !ok {
		t.Fatal("map/output missing from result outputs")
	}
	if out.Len() != 2 || !out.Finalized() {
		t.Errorf("map output: len=%d finalized=%v", out.Len(), out.Finalized())
	}
}

func TestRunFansOutPerElement(t *testing.T) {
	var running, maxRunning, executions int32

	filter := newExecStep(t, "filter",
		[]inPort{{"input", fmtRaw, false}}, // single cardinality: one task per element
		map[string]*model.DataFormat{"output": fmtFiltered},
		func(_ context.Context, tc model.TaskContext, _ model.StatusReporter) error {
			cur := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&maxRunning)
				if cur <= old || atomic.CompareAndSwapInt32(&maxRunning, old, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			atomic.AddInt32(&executions, 1)

			in, err := tc.InputData("input")
			if err != nil {
				return err
			}
			if in.Len() != 1 {
				return fmt.Errorf("fanned-out task sees %d elements, want 1", in.Len())
			}
			out, err := tc.OutputData("output")
			if err != nil {
				return err
			}
			return out.AddElement(in.Elements()[0])
		})
	collect := newExecStep(t, "collect",
		[]inPort{{"input", fmtFiltered, true}},
		map[string]*model.DataFormat{"output": fmtMapped},
		copyInput(t, "input", "output"))

	g := buildGraph(t, []*model.DataFormat{fmtRaw}, filter, collect)
	e := New(g, Options{Workers: 2, Logger: testLogger(), WorkDir: t.TempDir()})

	res, err := e.Run(context.Background(), map[*model.DataFormat]*model.Data{
		fmtRaw: rawData(t, fmtRaw, "s1", "s2", "s3", "s4"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}

	if got := atomic.LoadInt32(&executions); got != 4 {
		t.Errorf("executions = %d, want 4 (one task per element)", got)
	}
	if got := atomic.LoadInt32(&maxRunning); got > 2 {
		t.Errorf("max concurrent tasks = %d, want <= 2 (pool bound)", got)
	}

	o, _ := res.Outcome("filter")
	if o.Result == nil || o.Result.TaskCount != 4 {
		t.Errorf("filter outcome = %+v, want 4 tasks", o.Result)
	}
	if out := res.Outputs["collect/output"]; out == nil || out.Len() != 4 {
		t.Errorf("collect output = %v", out)
	}
}

// A multi-stage pipeline must return once its last task reports, with no
// goroutine left waiting on completion accounting.
func TestRunTerminatesAfterLastTask(t *testing.T) {
	filter := newExecStep(t, "filter",
		[]inPort{{"input", fmtRaw, false}}, // fans out, one task per element
		map[string]*model.DataFormat{"output": fmtFiltered},
		copyInput(t, "input", "output"))
	mapper := newExecStep(t, "map",
		[]inPort{{"input", fmtFiltered, true}},
		map[string]*model.DataFormat{"output": fmtMapped},
		copyInput(t, "input", "output"))
	aggregate := newExecStep(t, "aggregate",
		[]inPort{{"input", fmtMapped, true}},
		map[string]*model.DataFormat{"output": fmtSideOut},
		copyInput(t, "input", "output"))

	g := buildGraph(t, []*model.DataFormat{fmtRaw}, filter, mapper, aggregate)
	e := New(g, Options{Workers: 2, Logger: testLogger(), WorkDir: t.TempDir()})

	type runOut struct {
		res *Result
		err error
	}
	done := make(chan runOut, 1)
	go func() {
		res, err := e.Run(context.Background(), map[*model.DataFormat]*model.Data{
			fmtRaw: rawData(t, fmtRaw, "s1", "s2", "s3"),
		})
		done <- runOut{res, err}
	}()

	var out runOut
	select {
	case out = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after the last task finished")
	}
	if out.err != nil {
		t.Fatalf("run: %v", out.err)
	}
	if !out.res.Success {
		t.Fatalf("result = %+v, want success", out.res)
	}
	for _, name := range []string{"filter", "map", "aggregate"} {
		o, ok := out.res.Outcome(name)
		if !ok || o.State != model.StepStateSucceeded {
			t.Errorf("step %s state = %v, want SUCCEEDED", name, o.State)
		}
	}
	if agg := out.res.Outputs["aggregate/output"]; agg == nil || agg.Len() != 3 {
		t.Errorf("aggregate output = %v, want 3 elements", agg)
	}
}

func TestRunIgnoresNilUnconsumedInput(t *testing.T) {
	s := newExecStep(t, "filter", []inPort{{"input", fmtRaw, true}},
		map[string]*model.DataFormat{"output": fmtFiltered}, nil)
	g := buildGraph(t, []*model.DataFormat{fmtRaw}, s)
	e := New(g, Options{Workers: 1, Logger: testLogger(), WorkDir: t.TempDir()})

	// fmtSide is not consumed by any port; a nil entry for it must not
	// trip input finalization.
	res, err := e.Run(context.Background(), map[*model.DataFormat]*model.Data{
		fmtRaw:  rawData(t, fmtRaw, "s1"),
		fmtSide: nil,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
}

func TestRunFailureSkipsDependents(t *testing.T) {
	sideRan := make(chan struct{}, 1)

	failing := newExecStep(t, "broken",
		[]inPort{{"input", fmtRaw, true}},
		map[string]*model.DataFormat{"output": fmtFiltered},
		func(context.Context, model.TaskContext, model.StatusReporter) error {
			return errors.New("reference genome missing")
		})
	downstream := newExecStep(t, "downstream",
		[]inPort{{"input", fmtFiltered, true}},
		map[string]*model.DataFormat{"output": fmtMapped},
		func(context.Context, model.TaskContext, model.StatusReporter) error {
			t.Error("downstream of a failed step executed")
			return nil
		})
	independent := newExecStep(t, "independent",
		[]inPort{{"input", fmtSide, true}},
		map[string]*model.DataFormat{"output": fmtSideOut},
		func(_ context.Context, tc model.TaskContext, _ model.StatusReporter) error {
			sideRan <- struct{}{}
			return nil
		})

	g := buildGraph(t, []*model.DataFormat{fmtRaw, fmtSide}, failing, downstream, independent)
	e := New(g, Options{Workers: 2, Logger: testLogger(), WorkDir: t.TempDir()})

	res, err := e.Run(context.Background(), map[*model.DataFormat]*model.Data{
		fmtRaw:  rawData(t, fmtRaw, "s1"),
		fmtSide: rawData(t, fmtSide, "x1"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Success {
		t.Error("run marked success despite failed step")
	}
	if res.Cancelled {
		t.Error("run marked cancelled")
	}

	select {
	case <-sideRan:
	default:
		t.Error("independent step did not run")
	}

	tests := []struct {
		step string
		want model.StepState
	}{
		{"broken", model.StepStateFailed},
		{"downstream", model.StepStateSkipped},
		{"independent", model.StepStateSucceeded},
	}
	for _, tt := range tests {
		o, ok := res.Outcome(tt.step)
		if !ok || o.State != tt.want {
			t.Errorf("step %s state = %v, want %v", tt.step, o.State, tt.want)
		}
	}

	o, _ := res.Outcome("broken")
	if o.Result == nil || len(o.Result.Failures) != 1 {
		t.Fatalf("broken outcome = %+v, want one failure", o.Result)
	}
	if o.Result.Failures[0].Cause == nil {
		t.Error("failure cause not captured")
	}
	if _, ok := res.Outputs["broken/output"]; ok {
		t.Error("failed step's output exposed in result")
	}
}

func TestRunAggregatesCounters(t *testing.T) {
	counting := func(n int64) func(ctx context.Context, tc model.TaskContext, status model.StatusReporter) error {
		return func(_ context.Context, _ model.TaskContext, status model.StatusReporter) error {
			c := model.NewCounterSet()
			c.Set("elements processed", n)
			status.MergeCounters(c)
			return nil
		}
	}
	a := newExecStep(t, "a", []inPort{{"input", fmtRaw, true}},
		map[string]*model.DataFormat{"output": fmtFiltered}, counting(3))
	b := newExecStep(t, "b", []inPort{{"input", fmtFiltered, true}},
		map[string]*model.DataFormat{"output": fmtMapped}, counting(5))

	g := buildGraph(t, []*model.DataFormat{fmtRaw}, a, b)
	e := New(g, Options{Workers: 1, Logger: testLogger(), WorkDir: t.TempDir()})

	res, err := e.Run(context.Background(), map[*model.DataFormat]*model.Data{
		fmtRaw: rawData(t, fmtRaw, "s1"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := res.Counters["elements processed"]; got != 8 {
		t.Errorf("aggregated counter = %d, want 8", got)
	}
}

func TestRunMissingWorkflowInput(t *testing.T) {
	s := newExecStep(t, "filter", []inPort{{"input", fmtRaw, true}},
		map[string]*model.DataFormat{"output": fmtFiltered}, nil)
	g := buildGraph(t, []*model.DataFormat{fmtRaw}, s)
	e := New(g, Options{Workers: 1, Logger: testLogger(), WorkDir: t.TempDir()})

	_, err := e.Run(context.Background(), nil)
	var uerr *model.UnresolvedDependencyError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UnresolvedDependencyError, got %v", err)
	}
	if uerr.Step != "filter" || uerr.Port != "input" {
		t.Errorf("error = %+v", uerr)
	}
}

func TestRunCancellation(t *testing.T) {
	started := make(chan struct{})

	slow := newExecStep(t, "slow", []inPort{{"input", fmtRaw, true}},
		map[string]*model.DataFormat{"output": fmtFiltered},
		func(ctx context.Context, _ model.TaskContext, _ model.StatusReporter) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	after := newExecStep(t, "after", []inPort{{"input", fmtFiltered, true}},
		map[string]*model.DataFormat{"output": fmtMapped},
		func(context.Context, model.TaskContext, model.StatusReporter) error {
			t.Error("step ran after cancellation")
			return nil
		})

	g := buildGraph(t, []*model.DataFormat{fmtRaw}, slow, after)
	e := New(g, Options{Workers: 1, Logger: testLogger(), WorkDir: t.TempDir()})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	defer cancel()

	res, err := e.Run(ctx, map[*model.DataFormat]*model.Data{
		fmtRaw: rawData(t, fmtRaw, "s1"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Cancelled || res.Success {
		t.Errorf("result = cancelled=%v success=%v, want cancelled", res.Cancelled, res.Success)
	}
	for _, o := range res.Steps {
		if o.State == model.StepStateSucceeded {
			t.Errorf("step %s succeeded in a cancelled run", o.Name)
		}
	}
}

func TestRunSingleElementNoFanOut(t *testing.T) {
	var executions int32
	s := newExecStep(t, "filter", []inPort{{"input", fmtRaw, false}},
		map[string]*model.DataFormat{"output": fmtFiltered},
		func(context.Context, model.TaskContext, model.StatusReporter) error {
			atomic.AddInt32(&executions, 1)
			return nil
		})
	g := buildGraph(t, []*model.DataFormat{fmtRaw}, s)
	e := New(g, Options{Workers: 2, Logger: testLogger(), WorkDir: t.TempDir()})

	res, err := e.Run(context.Background(), map[*model.DataFormat]*model.Data{
		fmtRaw: rawData(t, fmtRaw, "only"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if got := atomic.LoadInt32(&executions); got != 1 {
		t.Errorf("executions = %d, want 1", got)
	}
}
