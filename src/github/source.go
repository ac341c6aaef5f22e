package github

import (
	"context"
	"strconv"

	"ghtrace/src/source"
)

// Source adapts Client to the source.MetadataSource interface. Cursors are
// page numbers rendered as strings; they are opaque to callers.
type Source struct {
	client *Client
}

// NewSource creates a MetadataSource backed by the GitHub Actions API.
func NewSource(client *Client) *Source {
	return &Source{client: client}
}

func (s *Source) ListWorkflows(ctx context.Context, owner, repo string, cursor source.Cursor) (source.WorkflowPage, error) {
	page, err := pageNumber(cursor)
	if err != nil {
		return source.WorkflowPage{}, err
	}

	resp, err := s.client.ListWorkflows(ctx, owner, repo, page)
	if err != nil {
		return source.WorkflowPage{}, err
	}

	out := source.WorkflowPage{Next: nextCursor(page, len(resp.Workflows))}
	for _, wf := range resp.Workflows {
		out.Workflows = append(out.Workflows, source.Workflow{
			ID:   wf.ID,
			Name: wf.Name,
			Path: wf.Path,
		})
	}
	return out, nil
}

func (s *Source) ListRuns(ctx context.Context, owner, repo string, workflowID int64, cursor source.Cursor) (source.RunPage, error) {
	page, err := pageNumber(cursor)
	if err != nil {
		return source.RunPage{}, err
	}

	resp, err := s.client.ListWorkflowRuns(ctx, owner, repo, workflowID, page)
	if err != nil {
		return source.RunPage{}, err
	}

	out := source.RunPage{Next: nextCursor(page, len(resp.WorkflowRuns))}
	for _, run := range resp.WorkflowRuns {
		out.Runs = append(out.Runs, source.WorkflowRunSummary{
			ID:           run.ID,
			WorkflowName: run.Name,
			RunNumber:    run.RunNumber,
			Status:       run.Status,
			Conclusion:   run.Conclusion,
			CreatedAt:    run.CreatedAt,
			RunStartedAt: run.RunStartedAt,
			UpdatedAt:    run.UpdatedAt,
		})
	}
	return out, nil
}

func (s *Source) ListJobs(ctx context.Context, owner, repo string, runID int64, cursor source.Cursor) (source.JobPage, error) {
	page, err := pageNumber(cursor)
	if err != nil {
		return source.JobPage{}, err
	}

	resp, err := s.client.ListRunJobs(ctx, owner, repo, runID, page)
	if err != nil {
		return source.JobPage{}, err
	}

	out := source.JobPage{Next: nextCursor(page, len(resp.Jobs))}
	for _, job := range resp.Jobs {
		out.Jobs = append(out.Jobs, source.Job{
			ID:          job.ID,
			RunID:       job.RunID,
			Name:        job.Name,
			Conclusion:  job.Conclusion,
			StartedAt:   job.StartedAt,
			CompletedAt: job.CompletedAt,
		})
	}
	return out, nil
}

func (s *Source) ListSteps(ctx context.Context, owner, repo string, jobID int64) ([]source.Step, error) {
	job, err := s.client.GetJob(ctx, owner, repo, jobID)
	if err != nil {
		return nil, err
	}

	steps := make([]source.Step, 0, len(job.Steps))
	for _, st := range job.Steps {
		steps = append(steps, source.Step{
			Name:        st.Name,
			Number:      st.Number,
			Conclusion:  st.Conclusion,
			StartedAt:   st.StartedAt,
			CompletedAt: st.CompletedAt,
		})
	}
	return steps, nil
}

func pageNumber(cursor source.Cursor) (int, error) {
	if cursor == "" {
		return 1, nil
	}
	return strconv.Atoi(string(cursor))
}

// nextCursor returns the cursor for the following page, or the empty cursor
// when the current page came back short of a full page.
func nextCursor(page, got int) source.Cursor {
	if got < PerPage {
		return ""
	}
	return source.Cursor(strconv.Itoa(page + 1))
}
