// Package source defines the metadata-source abstraction the fetch pipeline
// consumes, along with the domain types and error taxonomy shared by its
// implementations.
package source

import "context"

// MetadataSource produces workflow/run/job/step metadata for a repository.
// All listings are paginated with opaque cursors; callers must not assume a
// page size. Implementations report failures using the error taxonomy in
// errors.go so the fetcher can distinguish retryable from fatal conditions.
type MetadataSource interface {
	// ListWorkflows lists the workflow definitions of a repository.
	ListWorkflows(ctx context.Context, owner, repo string, cursor Cursor) (WorkflowPage, error)

	// ListRuns lists runs of one workflow, most recent first.
	ListRuns(ctx context.Context, owner, repo string, workflowID int64, cursor Cursor) (RunPage, error)

	// ListJobs lists the jobs of one run, in API order. Returned jobs carry
	// no steps.
	ListJobs(ctx context.Context, owner, repo string, runID int64, cursor Cursor) (JobPage, error)

	// ListSteps returns the ordered step sequence of one job.
	ListSteps(ctx context.Context, owner, repo string, jobID int64) ([]Step, error)
}
