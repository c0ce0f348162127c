// Package executor runs a validated workflow graph on a bounded worker
// pool. Steps are released in dependency order: no task of a step starts
// before every task of every step producing one of its input ports has
// finished successfully. Task faults are contained per task; the steps
// depending on a failed step are skipped, never executed.
package executor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/me/seqflow/internal/graph"
	"github.com/me/seqflow/internal/run"
	"github.com/me/seqflow/internal/store"
	"github.com/me/seqflow/pkg/model"
)

// Options configures an Executor instance.
type Options struct {
	// Workers is the size of the worker pool (at least 1).
	Workers int

	// Logger receives the executor's structured log output.
	Logger *slog.Logger

	// Store, when set, persists the run and its step/task results.
	Store store.Store

	// WorkDir is the root of per-task scratch directories.
	// Defaults to os.TempDir().
	WorkDir string

	// Workflow names the workflow in logs and persisted records.
	Workflow string
}

// Executor executes one workflow graph. It is constructed per run and
// passed by reference; there is no process-wide instance.
type Executor struct {
	graph    *graph.Graph
	workers  int
	logger   *slog.Logger
	store    store.Store
	workDir  string
	workflow string
}

// New creates an executor for the given graph.
func New(g *graph.Graph, opts Options) *Executor {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workDir := opts.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &Executor{
		graph:    g,
		workers:  workers,
		logger:   logger.With("component", "executor"),
		store:    opts.Store,
		workDir:  workDir,
		workflow: opts.Workflow,
	}
}

// StepOutcome is the terminal state of one step in a finished run.
type StepOutcome struct {
	Name   string
	State  model.StepState
	Result *run.StepResult // nil for skipped steps
}

// Result is the aggregate outcome of a whole run.
type Result struct {
	RunID     string
	Success   bool
	Cancelled bool
	StartedAt time.Time
	Duration  time.Duration

	// Counters is the key-wise sum over all succeeded steps.
	Counters map[string]int64

	// Steps lists every step's outcome in topological order.
	Steps []StepOutcome

	// Outputs holds the finalized output data of succeeded steps,
	// keyed "step/port".
	Outputs map[string]*model.Data
}

// Outcome returns the named step's outcome.
func (r *Result) Outcome(step string) (StepOutcome, bool) {
	for _, o := range r.Steps {
		if o.Name == step {
			return o, true
		}
	}
	return StepOutcome{}, false
}

// stepRun is the executor's bookkeeping for one step. All fields are
// owned by the coordinating goroutine; tasks never touch it.
type stepRun struct {
	node           *graph.Node
	state          model.StepState
	pendingDeps    int
	remainingTasks int
	results        []*run.TaskResult
	inputs         map[string]*model.Data // resolved per input port
	outputs        map[string]*model.Data // collector per output port
	result         *run.StepResult
}

// taskExec is one unit submitted to the worker pool.
type taskExec struct {
	sr   *stepRun
	task *run.Task
	tctx *taskContext
}

// taskDone reports a finished task back to the coordinator.
type taskDone struct {
	sr     *stepRun
	result *run.TaskResult
}

// Run executes the workflow. inputs provides the externally supplied
// initial data, keyed by format. Validation errors (a missing workflow
// input) are returned synchronously before any task runs; task failures
// are contained in the Result instead.
func (e *Executor) Run(ctx context.Context, inputs map[*model.DataFormat]*model.Data) (*Result, error) {
	runID := "run_" + uuid.New().String()[:8]
	startedAt := time.Now()

	// Every input port fed from outside the graph must have its data
	// before anything is scheduled.
	for _, node := range e.graph.Order() {
		for _, p := range node.Step.InputPorts().Ports() {
			if node.Producer(p.Name()) == nil && inputs[p.Format()] == nil {
				return nil, &model.UnresolvedDependencyError{
					Step:   node.Name(),
					Port:   p.Name(),
					Format: p.Format().Name(),
				}
			}
		}
	}
	for _, d := range inputs {
		if d != nil {
			d.Finalize()
		}
	}

	e.logger.Info("run started",
		"run_id", runID, "workflow", e.workflow,
		"steps", e.graph.Len(), "workers", e.workers)
	e.persistRunStart(ctx, runID, startedAt)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	steps := make(map[string]*stepRun, e.graph.Len())
	for _, node := range e.graph.Order() {
		steps[node.Name()] = &stepRun{
			node:        node,
			state:       model.StepStatePending,
			pendingDeps: node.DependencyCount(),
		}
	}

	taskCh := make(chan *taskExec)
	doneCh := make(chan taskDone)

	var workerWG sync.WaitGroup
	workerWG.Add(e.workers)
	for i := 0; i < e.workers; i++ {
		go e.worker(runCtx, taskCh, doneCh, &workerWG)
	}

	outstanding := 0
	cancelled := false

	// Release the root steps.
	for _, node := range e.graph.Order() {
		sr := steps[node.Name()]
		if sr.pendingDeps == 0 {
			outstanding += e.startStep(runCtx, runID, steps, sr, inputs, taskCh)
		}
	}

	// Each completion retires one outstanding task; finishing a step may
	// submit the tasks of released dependents.
	for outstanding > 0 {
		select {
		case <-ctx.Done():
			if !cancelled {
				cancelled = true
				e.logger.Warn("run cancelled", "run_id", runID)
				// Steps not yet running will never start; running
				// tasks are drained and their results discarded.
			}
			// Keep draining; runCtx is already cancelled.
			d := <-doneCh
			outstanding += e.handleTaskDone(runCtx, runID, steps, d, cancelled, inputs, taskCh) - 1
		case d := <-doneCh:
			outstanding += e.handleTaskDone(runCtx, runID, steps, d, cancelled, inputs, taskCh) - 1
		}
		if ctx.Err() != nil {
			cancelled = true
		}
	}

	close(taskCh)
	workerWG.Wait()

	// Anything never released is skipped (upstream failure marked its
	// direct cone already; cancellation leaves the rest pending). Final
	// persistence must survive a cancelled run context.
	persistCtx := context.WithoutCancel(ctx)
	for _, node := range e.graph.Order() {
		sr := steps[node.Name()]
		if !sr.state.IsTerminal() {
			e.transition(runID, sr, model.StepStateSkipped)
			e.persistStepRecord(persistCtx, runID, sr)
		}
	}

	result := e.buildResult(runID, startedAt, cancelled, steps)
	e.persistRunEnd(persistCtx, runID, startedAt, result)
	e.logger.Info("run finished",
		"run_id", runID, "success", result.Success,
		"cancelled", result.Cancelled, "duration", result.Duration.String())
	return result, nil
}

// worker executes tasks from taskCh until it is closed. A task picked up
// after cancellation is not executed; it is finalized as cancelled so the
// coordinator's accounting still closes.
func (e *Executor) worker(ctx context.Context, taskCh <-chan *taskExec, doneCh chan<- taskDone, wg *sync.WaitGroup) {
	defer wg.Done()
	for te := range taskCh {
		var res *run.TaskResult
		if ctx.Err() != nil {
			res = e.cancelTask(te.task, ctx.Err())
		} else if err := os.MkdirAll(te.tctx.workDir, 0o755); err != nil {
			res = e.cancelTask(te.task, err)
		} else {
			res = te.task.Execute(ctx, te.tctx, e.logger)
		}
		doneCh <- taskDone{sr: te.sr, result: res}
	}
}

// cancelTask finalizes a task that never ran (or could not be set up).
func (e *Executor) cancelTask(t *run.Task, cause error) *run.TaskResult {
	if err := t.Status.Start(); err != nil {
		return t.Status.Result()
	}
	res, err := t.Status.FinishFault(cause, "task not executed: "+cause.Error())
	if err != nil {
		return t.Status.Result()
	}
	return res
}

// startStep resolves the step's inputs, decomposes it into tasks and
// submits them. It returns the number of tasks submitted. On a resolution
// failure the step fails synchronously and its dependents are skipped.
func (e *Executor) startStep(ctx context.Context, runID string, steps map[string]*stepRun, sr *stepRun, inputs map[*model.DataFormat]*model.Data, taskCh chan<- *taskExec) int {
	node := sr.node
	e.transition(runID, sr, model.StepStateReady)

	// Resolve each input port to its producer's output or the workflow
	// input of the matching format.
	sr.inputs = make(map[string]*model.Data, node.Step.InputPorts().Len())
	for _, p := range node.Step.InputPorts().Ports() {
		if prod := node.Producer(p.Name()); prod != nil {
			sr.inputs[p.Name()] = producedData(steps[prod.Name()], p.Format())
		} else {
			sr.inputs[p.Name()] = inputs[p.Format()]
		}
	}

	// Output collectors, one per output port.
	sr.outputs = make(map[string]*model.Data, node.Step.OutputPorts().Len())
	for _, p := range node.Step.OutputPorts().Ports() {
		sr.outputs[p.Name()] = model.NewData(node.Name()+"/"+p.Name(), p.Format())
	}

	tasks := e.decompose(sr)
	sr.remainingTasks = len(tasks)
	e.transition(runID, sr, model.StepStateRunning)
	e.logger.Debug("step decomposed", "run_id", runID, "step", node.Name(), "tasks", len(tasks))

	// Submission must not block the coordinator: workers may be busy and
	// the coordinator has to keep draining completions.
	go func() {
		for _, te := range tasks {
			taskCh <- te
		}
	}()

	return len(tasks)
}

// decompose splits a step into tasks. A single-cardinality primary input
// port receiving a multi-element list fans out to one task per element;
// everything else runs as one task.
func (e *Executor) decompose(sr *stepRun) []*taskExec {
	node := sr.node
	listener := e.progressListener()

	primary, hasPrimary := node.Step.InputPorts().Primary()
	if hasPrimary && !primary.IsList() {
		primaryData := sr.inputs[primary.Name()]
		elements := primaryData.Elements()
		if len(elements) > 1 {
			tasks := make([]*taskExec, 0, len(elements))
			for _, el := range elements {
				task := run.NewTask(node.Step, el, listener)
				tctx := e.newTaskContext(sr, task)
				tctx.inputs[primary.Name()] = primaryData.SingleElementView(el)
				tasks = append(tasks, &taskExec{sr: sr, task: task, tctx: tctx})
			}
			return tasks
		}
		var el *model.DataElement
		if len(elements) == 1 {
			el = elements[0]
		}
		task := run.NewTask(node.Step, el, listener)
		return []*taskExec{{sr: sr, task: task, tctx: e.newTaskContext(sr, task)}}
	}

	task := run.NewTask(node.Step, nil, listener)
	return []*taskExec{{sr: sr, task: task, tctx: e.newTaskContext(sr, task)}}
}

// newTaskContext builds a context exposing the step's resolved inputs and
// shared output collectors.
func (e *Executor) newTaskContext(sr *stepRun, task *run.Task) *taskContext {
	in := make(map[string]*model.Data, len(sr.inputs))
	for k, v := range sr.inputs {
		in[k] = v
	}
	return &taskContext{
		params:  sr.node.Params,
		inputs:  in,
		outputs: sr.outputs,
		workDir: filepath.Join(e.workDir, task.ID),
	}
}

// handleTaskDone records a finished task and, when it was the step's last
// task, finalizes the step and releases or skips its dependents. It
// returns the number of newly submitted tasks.
func (e *Executor) handleTaskDone(ctx context.Context, runID string, steps map[string]*stepRun, d taskDone, cancelled bool, inputs map[*model.DataFormat]*model.Data, taskCh chan<- *taskExec) int {
	sr := d.sr
	sr.remainingTasks--
	sr.results = append(sr.results, d.result)
	if !cancelled {
		e.persistTaskRecord(ctx, runID, d.result)
	}

	if sr.remainingTasks > 0 {
		return 0
	}

	// Last task of the step: aggregate. StepResult is written exactly
	// once, here, by the coordinating goroutine.
	sr.result = run.NewStepResult(sr.node.Name(), sr.results)

	if cancelled {
		e.transition(runID, sr, model.StepStateSkipped)
		return 0
	}

	if !sr.result.Success {
		e.transition(runID, sr, model.StepStateFailed)
		e.persistStepRecord(ctx, runID, sr)
		e.skipDependents(ctx, runID, steps, sr.node)
		return 0
	}

	for _, out := range sr.outputs {
		out.Finalize()
	}
	e.transition(runID, sr, model.StepStateSucceeded)
	e.persistStepRecord(ctx, runID, sr)

	// Release dependents whose upstreams are now all satisfied.
	submitted := 0
	for _, dep := range e.graph.DependentsOf(sr.node.Name()) {
		depRun := steps[dep.Name()]
		depRun.pendingDeps--
		if depRun.pendingDeps == 0 && depRun.state == model.StepStatePending {
			submitted += e.startStep(ctx, runID, steps, depRun, inputs, taskCh)
		}
	}
	return submitted
}

// skipDependents transitively marks the downstream cone of a failed step
// as SKIPPED. None of these steps have started: their dependency on the
// failed step was still unsatisfied.
func (e *Executor) skipDependents(ctx context.Context, runID string, steps map[string]*stepRun, node *graph.Node) {
	for _, dep := range e.graph.DependentsOf(node.Name()) {
		depRun := steps[dep.Name()]
		if depRun.state != model.StepStatePending {
			continue
		}
		e.transition(runID, depRun, model.StepStateSkipped)
		e.persistStepRecord(ctx, runID, depRun)
		e.skipDependents(ctx, runID, steps, dep)
	}
}

// producedData returns the producer step's finalized output data for the
// given format. The graph guarantees exactly one output port per format.
func producedData(prod *stepRun, format *model.DataFormat) *model.Data {
	for _, p := range prod.node.Step.OutputPorts().Ports() {
		if p.Format() == format {
			return prod.outputs[p.Name()]
		}
	}
	return nil
}

// transition moves a step to the next state, logging the change.
func (e *Executor) transition(runID string, sr *stepRun, next model.StepState) {
	if sr.state == next {
		return
	}
	if !sr.state.CanTransitionTo(next) {
		// Cancellation legitimately skips from RUNNING; anything else
		// is a coordinator bug worth surfacing loudly in logs.
		e.logger.Error("unexpected step transition",
			"run_id", runID, "step", sr.node.Name(),
			"from", sr.state.String(), "to", next.String())
	}
	e.logger.Info("step "+transitionVerb(next),
		"run_id", runID, "step", sr.node.Name(), "state", next.String())
	sr.state = next
}

func transitionVerb(s model.StepState) string {
	switch s {
	case model.StepStateReady:
		return "ready"
	case model.StepStateRunning:
		return "running"
	case model.StepStateSucceeded:
		return "succeeded"
	case model.StepStateFailed:
		return "failed"
	case model.StepStateSkipped:
		return "skipped"
	}
	return "pending"
}

// progressListener returns the listener wired into every TaskStatus. It
// runs under the status lock, so it must stay cheap.
func (e *Executor) progressListener() run.ProgressListener {
	return func(stepName, taskID string, progress float64) {
		e.logger.Debug("task progress", "step", stepName, "task_id", taskID, "progress", progress)
	}
}

// buildResult assembles the aggregate run result in topological order.
func (e *Executor) buildResult(runID string, startedAt time.Time, cancelled bool, steps map[string]*stepRun) *Result {
	res := &Result{
		RunID:     runID,
		Success:   !cancelled,
		Cancelled: cancelled,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Counters:  make(map[string]int64),
		Outputs:   make(map[string]*model.Data),
	}

	for _, node := range e.graph.Order() {
		sr := steps[node.Name()]
		outcome := StepOutcome{Name: node.Name(), State: sr.state}
		if !cancelled || sr.state == model.StepStateSucceeded {
			outcome.Result = sr.result
		}
		if sr.state != model.StepStateSucceeded {
			res.Success = false
		} else {
			for k, v := range sr.result.Counters {
				res.Counters[k] += v
			}
			for name, d := range sr.outputs {
				res.Outputs[node.Name()+"/"+name] = d
			}
		}
		res.Steps = append(res.Steps, outcome)
	}
	return res
}
