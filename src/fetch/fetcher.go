// Package fetch orchestrates retrieval across the workflow -> run -> job ->
// step hierarchy: pagination, a global concurrency bound, retry with backoff,
// and run-scoped failure propagation.
package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ghtrace/src/logger"
	"ghtrace/src/progress"
	"ghtrace/src/source"
)

// DefaultMaxConcurrent bounds concurrent outbound requests across the whole
// invocation. Kept small to stay under typical API rate-limit budgets.
const DefaultMaxConcurrent = 6

// Options configures one Fetch invocation.
type Options struct {
	Owner string
	Repo  string

	// WorkflowFilter restricts fetching to workflows with this name.
	// Empty fetches all workflows.
	WorkflowFilter string

	// MaxRunsPerWorkflow caps how many runs are collected per workflow.
	// This is a sampling policy; the upstream total may be far larger.
	MaxRunsPerWorkflow int

	// MaxConcurrent bounds concurrent outbound requests globally,
	// independent of per-run job counts. Defaults to DefaultMaxConcurrent.
	MaxConcurrent int
}

// Result is one fully hydrated run, or a run-scoped failure. When Err is
// set the other fields identify what was skipped.
type Result struct {
	Workflow string
	Run      source.WorkflowRunSummary
	Jobs     []source.Job
	Err      error
}

// Fetcher walks the run hierarchy of a repository and streams fully
// hydrated runs, one at a time, so downstream emission can begin before all
// runs are fetched.
type Fetcher struct {
	src      source.MetadataSource
	reporter progress.Reporter
	log      logger.Logger

	// Policy governs retry of transient and rate-limit failures.
	Policy Policy

	sem chan struct{}
}

// New creates a Fetcher over the given metadata source. The reporter is
// notified of workflow starts and run completions; pass
// progress.NopReporter{} to disable.
func New(src source.MetadataSource, reporter progress.Reporter, log logger.Logger) *Fetcher {
	return &Fetcher{
		src:      src,
		reporter: reporter,
		log:      log,
		Policy:   DefaultPolicy(),
	}
}

// Fetch enumerates the repository's workflows and streams hydrated runs on
// the returned channel. A failure to list workflows is fatal and returned
// directly; any later failure is scoped to a single run and delivered as a
// Result with Err set. The channel is closed once all workflows have been
// processed or ctx is cancelled.
func (f *Fetcher) Fetch(ctx context.Context, opts Options) (<-chan Result, error) {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	f.sem = make(chan struct{}, opts.MaxConcurrent)

	workflows, err := f.listWorkflows(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing workflows for %s/%s: %w", opts.Owner, opts.Repo, err)
	}

	results := make(chan Result)
	var wg sync.WaitGroup
	for _, wf := range workflows {
		wg.Add(1)
		go func(wf source.Workflow) {
			defer wg.Done()
			f.processWorkflow(ctx, opts, wf, results)
		}(wf)
	}

	go func() {
		wg.Wait()
		close(results)
	}()
	return results, nil
}

// listWorkflows collects every workflow of the repository, applying the
// optional name filter.
func (f *Fetcher) listWorkflows(ctx context.Context, opts Options) ([]source.Workflow, error) {
	var workflows []source.Workflow
	cursor := source.Cursor("")
	for {
		var page source.WorkflowPage
		err := f.call(ctx, func(ctx context.Context) error {
			var err error
			page, err = f.src.ListWorkflows(ctx, opts.Owner, opts.Repo, cursor)
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, wf := range page.Workflows {
			if opts.WorkflowFilter == "" || wf.Name == opts.WorkflowFilter {
				workflows = append(workflows, wf)
			}
		}
		if page.Next == "" {
			return workflows, nil
		}
		cursor = page.Next
	}
}

// processWorkflow collects the workflow's runs and hydrates them one at a
// time. Run listing failures skip the whole workflow; hydration failures
// skip only the affected run.
func (f *Fetcher) processWorkflow(ctx context.Context, opts Options, wf source.Workflow, results chan<- Result) {
	runs, err := f.collectRuns(ctx, opts, wf.ID)
	if err != nil {
		f.deliver(ctx, results, Result{
			Workflow: wf.Name,
			Err:      fmt.Errorf("listing runs of workflow %s: %w", wf.Name, err),
		})
		return
	}

	f.reporter.WorkflowStarted(wf.Name, len(runs))

	for i, run := range runs {
		if ctx.Err() != nil {
			return
		}

		jobs, err := f.hydrateRun(ctx, opts, run)
		res := Result{Workflow: wf.Name, Run: run, Jobs: jobs}
		if err != nil {
			res.Jobs = nil
			res.Err = fmt.Errorf("run %d of workflow %s: %w", run.ID, wf.Name, err)
		}
		if !f.deliver(ctx, results, res) {
			return
		}
		f.reporter.RunCompleted(wf.Name, i+1, len(runs))
	}
}

// collectRuns pages through the workflow's run listing until the
// per-workflow cap is reached or the listing is exhausted. Once the cap is
// reached no further page is requested.
func (f *Fetcher) collectRuns(ctx context.Context, opts Options, workflowID int64) ([]source.WorkflowRunSummary, error) {
	var runs []source.WorkflowRunSummary
	cursor := source.Cursor("")
	for {
		var page source.RunPage
		err := f.call(ctx, func(ctx context.Context) error {
			var err error
			page, err = f.src.ListRuns(ctx, opts.Owner, opts.Repo, workflowID, cursor)
			return err
		})
		if err != nil {
			return nil, err
		}

		runs = append(runs, page.Runs...)
		if opts.MaxRunsPerWorkflow > 0 && len(runs) >= opts.MaxRunsPerWorkflow {
			return runs[:opts.MaxRunsPerWorkflow], nil
		}
		if page.Next == "" {
			return runs, nil
		}
		cursor = page.Next
	}
}

// hydrateRun fetches the run's job listing, then the step sequences of all
// jobs concurrently under the global request bound. The run is returned
// only when every job resolved; any exhausted retry fails the whole run.
func (f *Fetcher) hydrateRun(ctx context.Context, opts Options, run source.WorkflowRunSummary) ([]source.Job, error) {
	var jobs []source.Job
	cursor := source.Cursor("")
	for {
		var page source.JobPage
		err := f.call(ctx, func(ctx context.Context) error {
			var err error
			page, err = f.src.ListJobs(ctx, opts.Owner, opts.Repo, run.ID, cursor)
			return err
		})
		if err != nil {
			return nil, err
		}

		jobs = append(jobs, page.Jobs...)
		if page.Next == "" {
			break
		}
		cursor = page.Next
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i := range jobs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var steps []source.Step
			err := f.call(ctx, func(ctx context.Context) error {
				var err error
				steps, err = f.src.ListSteps(ctx, opts.Owner, opts.Repo, jobs[i].ID)
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("steps of job %d: %w", jobs[i].ID, err)
				}
				return
			}
			jobs[i].Steps = steps
		}(i)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return jobs, nil
}

// call runs one request under the global concurrency bound, retrying per
// the fetcher's policy. Cancellation wins over both the semaphore and any
// backoff sleep.
func (f *Fetcher) call(ctx context.Context, fn func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		select {
		case f.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		err := fn(ctx)
		<-f.sem

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay, retry := f.Policy.Delay(attempt, err)
		if !retry {
			return err
		}
		f.log.Debug("attempt %d failed (%v), retrying in %s", attempt, err, delay)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (f *Fetcher) deliver(ctx context.Context, results chan<- Result, res Result) bool {
	select {
	case results <- res:
		return true
	case <-ctx.Done():
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
