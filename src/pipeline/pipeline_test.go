package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ghtrace/src/fetch"
	"ghtrace/src/logger"
	"ghtrace/src/progress"
	"ghtrace/src/source"
	"ghtrace/src/trace"
)

// fakeSource serves one workflow with two runs, one job each. Failures are
// injected per job through failSteps.
type fakeSource struct {
	failSteps map[int64]error
}

func (f *fakeSource) ListWorkflows(ctx context.Context, owner, repo string, cursor source.Cursor) (source.WorkflowPage, error) {
	return source.WorkflowPage{Workflows: []source.Workflow{{ID: 1, Name: "ci"}}}, nil
}

func (f *fakeSource) ListRuns(ctx context.Context, owner, repo string, workflowID int64, cursor source.Cursor) (source.RunPage, error) {
	started := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	mk := func(id int64) source.WorkflowRunSummary {
		return source.WorkflowRunSummary{
			ID:           id,
			WorkflowName: "ci",
			RunNumber:    int(id),
			Status:       "completed",
			Conclusion:   "success",
			CreatedAt:    started,
			RunStartedAt: &started,
			UpdatedAt:    started.Add(10 * time.Minute),
		}
	}
	return source.RunPage{Runs: []source.WorkflowRunSummary{mk(10), mk(11)}}, nil
}

func (f *fakeSource) ListJobs(ctx context.Context, owner, repo string, runID int64, cursor source.Cursor) (source.JobPage, error) {
	started := time.Date(2026, 3, 14, 12, 1, 0, 0, time.UTC)
	completed := started.Add(5 * time.Minute)
	return source.JobPage{Jobs: []source.Job{{
		ID:          runID * 10,
		RunID:       runID,
		Name:        "build",
		Conclusion:  "success",
		StartedAt:   &started,
		CompletedAt: &completed,
	}}}, nil
}

func (f *fakeSource) ListSteps(ctx context.Context, owner, repo string, jobID int64) ([]source.Step, error) {
	if err := f.failSteps[jobID]; err != nil {
		return nil, err
	}
	return []source.Step{{Name: "checkout", Number: 1, Conclusion: "success"}}, nil
}

// countingSink records emitted roots; failAll makes every StartSpan fail.
type countingSink struct {
	roots   []string
	failAll bool
}

func (s *countingSink) StartSpan(ctx context.Context, span *trace.Span) (context.Context, trace.SpanHandle, error) {
	if s.failAll {
		return ctx, nil, errors.New("collector unreachable")
	}
	if span.Kind == trace.KindRun {
		s.roots = append(s.roots, span.Name)
	}
	return ctx, span, nil
}

func (s *countingSink) EndSpan(handle trace.SpanHandle, end time.Time, status trace.Status) error {
	return nil
}

func newPipeline(src source.MetadataSource, sink trace.Sink) *Pipeline {
	log := logger.NewSilentLogger()
	fetcher := fetch.New(src, progress.NopReporter{}, log)
	fetcher.Policy = fetch.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	p := New(fetcher, trace.NewEmitter(sink, log), log)
	p.Now = func() time.Time { return time.Date(2026, 3, 14, 13, 0, 0, 0, time.UTC) }
	return p
}

func TestPipeline_EmitsOneTracePerRun(t *testing.T) {
	sink := &countingSink{}
	p := newPipeline(&fakeSource{}, sink)

	summary, err := p.Run(context.Background(), fetch.Options{Owner: "o", Repo: "r", MaxRunsPerWorkflow: 5})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Processed != 2 || summary.Skipped != 0 || summary.ExportFailures != 0 {
		t.Errorf("summary = %+v, want 2 processed", summary)
	}
	if len(sink.roots) != 2 {
		t.Fatalf("emitted traces = %d, want 2", len(sink.roots))
	}
	if sink.roots[0] != "ci #10" || sink.roots[1] != "ci #11" {
		t.Errorf("roots = %v", sink.roots)
	}
}

func TestPipeline_SkipsFailedRunAndContinues(t *testing.T) {
	src := &fakeSource{failSteps: map[int64]error{
		// Run 10's only job never resolves its steps.
		100: &source.TransientError{Cause: fmt.Errorf("timeout")},
	}}
	sink := &countingSink{}
	p := newPipeline(src, sink)

	summary, err := p.Run(context.Background(), fetch.Options{Owner: "o", Repo: "r", MaxRunsPerWorkflow: 5})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Processed != 1 || summary.Skipped != 1 {
		t.Errorf("summary = %+v, want 1 processed / 1 skipped", summary)
	}
	if len(sink.roots) != 1 || sink.roots[0] != "ci #11" {
		t.Errorf("roots = %v, want only the healthy run", sink.roots)
	}
}

func TestPipeline_ExportFailureDoesNotAbort(t *testing.T) {
	sink := &countingSink{failAll: true}
	p := newPipeline(&fakeSource{}, sink)

	summary, err := p.Run(context.Background(), fetch.Options{Owner: "o", Repo: "r", MaxRunsPerWorkflow: 5})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Processed != 2 {
		t.Errorf("processed = %d, want 2 (export is best-effort)", summary.Processed)
	}
	if summary.ExportFailures != 2 {
		t.Errorf("export failures = %d, want 2", summary.ExportFailures)
	}
}

type brokenSource struct{ fakeSource }

func (b *brokenSource) ListWorkflows(ctx context.Context, owner, repo string, cursor source.Cursor) (source.WorkflowPage, error) {
	return source.WorkflowPage{}, fmt.Errorf("%w: repo", source.ErrNotFound)
}

func TestPipeline_WorkflowListingFailureIsFatal(t *testing.T) {
	p := newPipeline(&brokenSource{}, &countingSink{})

	_, err := p.Run(context.Background(), fetch.Options{Owner: "o", Repo: "r"})
	if !errors.Is(err, source.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
