// Package execution runs checks on agents through the check service:
// it plans jobs per check, submits them, polls each one to a terminal
// state and normalizes the results.
package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tcsc-project/tcsc/pkg/catalog"
	"github.com/tcsc-project/tcsc/pkg/clock"
	"github.com/tcsc-project/tcsc/pkg/errors"
	"github.com/tcsc-project/tcsc/pkg/logging"
	"github.com/tcsc-project/tcsc/pkg/wanda"
)

const (
	VisibilityPollInterval = 500 * time.Millisecond
	RunningPollInterval    = time.Second
)

// Service is the part of the check service client the orchestrator uses
type Service interface {
	Catalog(ctx context.Context) (*wanda.Catalog, error)
	Fetch(ctx context.Context, endpoint string) (*wanda.Response, error)
	Submit(ctx context.Context, endpoint string, payload interface{}) (*wanda.Response, error)
}

type Options struct {
	// Timeout bounds each job from its submission; zero waits forever
	Timeout time.Duration
	// Brief drops job ids and messages from the results
	Brief bool
	// Parallelism > 1 polls up to that many jobs at once; results keep
	// their planned order
	Parallelism int
	// Progress is called once per poll that finds the job running.
	// Callbacks are never called concurrently, also with Parallelism > 1.
	Progress func(job Job)
	// OnTransition is called on every job state change
	OnTransition func(job Job, from, to JobState)
}

type Orchestrator struct {
	// serializes the Options callbacks of parallel jobs
	callbacks sync.Mutex

	service Service
	clock   clock.Clock
	logger  logging.Logger
	newID   func() string
}

func NewOrchestrator(service Service, clk clock.Clock, logger logging.Logger) *Orchestrator {
	if clk == nil {
		clk = clock.Real()
	}
	return &Orchestrator{
		service: service,
		clock:   clk,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

// ExecuteChecks runs the checks on the agents and returns the results
// grouped by check in request order, then by the target order of each job.
// The first failing job fails the whole call.
func (o *Orchestrator) ExecuteChecks(ctx context.Context, agentIDs []string, environment map[string]string, checkIDs []string, opts Options) ([]CheckResult, error) {
	jobs, err := o.prepare(ctx, agentIDs, environment, checkIDs)
	if err != nil {
		return nil, err
	}

	executions, err := o.runJobs(ctx, jobs, opts)
	if err != nil {
		return nil, err
	}

	var results []CheckResult
	for _, completed := range executions {
		normalized, err := Normalize(completed.execution, opts.Brief)
		if err != nil {
			return nil, err
		}
		results = append(results, normalized...)
	}
	return results, nil
}

// ExecuteRaw runs the checks like ExecuteChecks but returns the completed
// execution documents as the service sent them.
func (o *Orchestrator) ExecuteRaw(ctx context.Context, agentIDs []string, environment map[string]string, checkIDs []string, opts Options) ([]json.RawMessage, error) {
	jobs, err := o.prepare(ctx, agentIDs, environment, checkIDs)
	if err != nil {
		return nil, err
	}

	executions, err := o.runJobs(ctx, jobs, opts)
	if err != nil {
		return nil, err
	}

	docs := make([]json.RawMessage, 0, len(executions))
	for _, completed := range executions {
		docs = append(docs, json.RawMessage(completed.body))
	}
	return docs, nil
}

func (o *Orchestrator) prepare(ctx context.Context, agentIDs []string, environment map[string]string, checkIDs []string) ([]*Job, error) {
	raw, err := o.service.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	defs, classifyErrs := catalog.ClassifyCatalog(raw.Items)
	for _, classifyErr := range classifyErrs {
		o.logger.Debugf("skipping catalog entry: %v", classifyErr)
	}
	return o.PlanJobs(defs, agentIDs, environment, checkIDs)
}

// PlanJobs builds the jobs for the checks in request order. A multi check
// becomes one job for all agents, any other check one job per agent. Every
// job gets its own execution id and group id.
func (o *Orchestrator) PlanJobs(defs []catalog.CheckDefinition, agentIDs []string, environment map[string]string, checkIDs []string) ([]*Job, error) {
	var jobs []*Job
	for _, checkID := range checkIDs {
		def, ok := catalog.Find(defs, checkID)
		if !ok {
			return nil, errors.NewResponseError(fmt.Sprintf("check %s does not exist", checkID), nil)
		}
		if missing := def.MissingMetadata(); len(missing) > 0 {
			return nil, errors.NewMetadataError(
				fmt.Sprintf("mandatory key %q is not part of metadata of check %s; this is a bug in the check", missing[0], checkID), nil)
		}
		targetType := def.RequiredMetadata["target_type"]

		if def.ExpectationType == catalog.ExpectationMulti {
			targets := make([]wanda.Target, 0, len(agentIDs))
			for _, agentID := range agentIDs {
				targets = append(targets, wanda.Target{AgentID: agentID, Checks: []string{checkID}})
			}
			jobs = append(jobs, o.newJob(checkID, targetType, environment, targets))
			continue
		}

		for _, agentID := range agentIDs {
			targets := []wanda.Target{{AgentID: agentID, Checks: []string{checkID}}}
			jobs = append(jobs, o.newJob(checkID, targetType, environment, targets))
		}
	}
	return jobs, nil
}

func (o *Orchestrator) newJob(checkID, targetType string, environment map[string]string, targets []wanda.Target) *Job {
	return &Job{
		ID:          o.newID(),
		GroupID:     o.newID(),
		CheckID:     checkID,
		TargetType:  targetType,
		Environment: environment,
		Targets:     targets,
		State:       JobSubmitted,
	}
}

type completedJob struct {
	execution *wanda.Execution
	body      []byte
}

func (o *Orchestrator) runJobs(ctx context.Context, jobs []*Job, opts Options) ([]completedJob, error) {
	completed := make([]completedJob, len(jobs))

	if opts.Parallelism <= 1 {
		for i, job := range jobs {
			result, err := o.runJob(ctx, job, opts)
			if err != nil {
				return nil, err
			}
			completed[i] = result
		}
		return completed, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			result, err := o.runJob(gctx, job, opts)
			if err != nil {
				return err
			}
			completed[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return completed, nil
}

// runJob submits a job and polls it until it is terminal. The timeout is
// measured from submission and never reset by transient states.
func (o *Orchestrator) runJob(ctx context.Context, job *Job, opts Options) (completedJob, error) {
	if err := o.submit(ctx, job, opts); err != nil {
		o.transition(job, JobFailed, opts)
		return completedJob{}, err
	}

	endpoint := wanda.ExecutionPath(job.ID)
	for {
		resp, err := o.service.Fetch(ctx, endpoint)
		if err != nil {
			o.transition(job, JobFailed, opts)
			return completedJob{}, err
		}

		var interval time.Duration
		switch {
		case resp.StatusCode == http.StatusNotFound && contains(resp.ErrorTitles(), "Not Found"):
			o.logger.Debugf("execution %s not yet available", job.ID)
			o.transition(job, JobAwaitingVisibility, opts)
			interval = VisibilityPollInterval

		case !resp.OK():
			o.transition(job, JobFailed, opts)
			return completedJob{}, resp.StatusError()

		default:
			var execution wanda.Execution
			if err := resp.Decode(&execution); err != nil {
				o.transition(job, JobFailed, opts)
				return completedJob{}, err
			}

			switch execution.Status {
			case wanda.StatusRunning:
				o.logger.Debugf("execution %s still running", job.ID)
				o.transition(job, JobRunning, opts)
				o.progress(job, opts)
				interval = RunningPollInterval

			case wanda.StatusCompleted:
				o.logger.Debugf("execution %s has been completed", job.ID)
				o.transition(job, JobCompleted, opts)
				return completedJob{execution: &execution, body: resp.Body}, nil

			default:
				o.transition(job, JobFailed, opts)
				return completedJob{}, errors.NewResponseError(
					fmt.Sprintf("execution %s returned an unknown status: %s", job.ID, execution.Status), nil).
					WithSubErrors(resp.SubErrors())
			}
		}

		if err := o.wait(ctx, job, interval, opts); err != nil {
			if !job.State.Terminal() {
				o.transition(job, JobFailed, opts)
			}
			return completedJob{}, err
		}
	}
}

func (o *Orchestrator) submit(ctx context.Context, job *Job, opts Options) error {
	job.SubmittedAt = o.clock.Now()
	resp, err := o.service.Submit(ctx, wanda.StartExecutionPath, job.request())
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnprocessableEntity {
		if resp.ErrorDetail() == "no_checks_selected" {
			return errors.NewResponseError(fmt.Sprintf("check %s does not exist", job.CheckID), nil).
				WithContext("execution_id", job.ID)
		}
		return errors.NewResponseError(
			fmt.Sprintf("unprocessable content when starting %s", job), nil).
			WithSubErrors(resp.SubErrors())
	}
	if !resp.OK() {
		return resp.StatusError()
	}

	o.transition(job, JobAwaitingVisibility, opts)
	return nil
}

// wait sleeps until the next poll. With a timeout, it fails once the
// budget since submission is spent and never sleeps past it.
func (o *Orchestrator) wait(ctx context.Context, job *Job, interval time.Duration, opts Options) error {
	if opts.Timeout > 0 {
		remaining := opts.Timeout - o.clock.Now().Sub(job.SubmittedAt)
		if remaining <= 0 {
			state := job.State
			o.transition(job, JobTimedOut, opts)
			what := "did not finish"
			if state == JobAwaitingVisibility {
				what = "did not show up"
			}
			return errors.NewTimeoutError(
				fmt.Sprintf("execution %s %s in time (within %s)", job.ID, what, opts.Timeout), nil).
				WithContext("execution_id", job.ID)
		}
		if remaining < interval {
			interval = remaining
		}
	}
	return clock.Sleep(ctx, o.clock, interval)
}

func (o *Orchestrator) transition(job *Job, to JobState, opts Options) {
	from := job.State
	if from == to {
		return
	}
	if !canTransition(from, to) {
		o.logger.Warnf("unexpected job state change %s -> %s for %s", from, to, job)
	}
	job.State = to
	if opts.OnTransition != nil {
		o.callbacks.Lock()
		defer o.callbacks.Unlock()
		opts.OnTransition(*job, from, to)
	}
}

func (o *Orchestrator) progress(job *Job, opts Options) {
	if opts.Progress == nil {
		return
	}
	o.callbacks.Lock()
	defer o.callbacks.Unlock()
	opts.Progress(*job)
}
