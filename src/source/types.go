package source

import "time"

// Workflow identifies a CI workflow definition within a repository.
type Workflow struct {
	ID   int64
	Name string
	Path string
}

// WorkflowRunSummary is one execution of a workflow. Immutable after fetch;
// identity is ID.
type WorkflowRunSummary struct {
	ID           int64
	WorkflowName string
	RunNumber    int
	Status       string
	Conclusion   string
	CreatedAt    time.Time
	// RunStartedAt is nil while the run is still queued.
	RunStartedAt *time.Time
	UpdatedAt    time.Time
}

// Job belongs to exactly one run. Steps is empty as returned by a
// MetadataSource; the fetcher fills it in from ListSteps.
type Job struct {
	ID          int64
	RunID       int64
	Name        string
	Conclusion  string
	StartedAt   *time.Time
	CompletedAt *time.Time
	Steps       []Step
}

// Step is the finest unit of work within a job. Number defines the order
// within the job.
type Step struct {
	Name        string
	Number      int
	Conclusion  string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Cursor is an opaque pagination token. The empty cursor requests the first
// page; a page whose Next cursor is empty is the last one.
type Cursor string

// WorkflowPage is one page of a workflow listing.
type WorkflowPage struct {
	Workflows []Workflow
	Next      Cursor
}

// RunPage is one page of a run listing.
type RunPage struct {
	Runs []WorkflowRunSummary
	Next Cursor
}

// JobPage is one page of a job listing.
type JobPage struct {
	Jobs []Job
	Next Cursor
}
