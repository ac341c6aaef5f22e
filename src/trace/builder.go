package trace

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"ghtrace/src/source"
)

// Build constructs the span tree for one fully fetched run: the run span at
// the root, job spans as children, step spans as grandchildren. It is pure;
// the same inputs always yield a structurally identical tree. now anchors
// the end time of runs that are still in progress, so the emitted trace is
// well-formed even for incomplete data.
func Build(run source.WorkflowRunSummary, jobs []source.Job, now time.Time) *Span {
	start, end := resolveRunInterval(run, jobs, now)

	root := &Span{
		Kind:     KindRun,
		Name:     fmt.Sprintf("%s #%d", run.WorkflowName, run.RunNumber),
		Start:    start,
		End:      end,
		Status:   conclusionStatus(run.Conclusion),
		Workflow: run.WorkflowName,
		Attrs: map[string]string{
			"ci.run.id":     strconv.FormatInt(run.ID, 10),
			"ci.run.number": strconv.Itoa(run.RunNumber),
			"ci.status":     run.Status,
			"ci.conclusion": run.Conclusion,
		},
		Children: make([]*Span, 0, len(jobs)),
	}

	for _, job := range jobs {
		root.Children = append(root.Children, buildJob(job, run.WorkflowName, start, end))
	}
	return root
}

// resolveRunInterval computes the run span's bounds. Start is the earliest
// of the run's own start (falling back to its queue time) and any job
// start. End is the latest of the run's updated-at and any job completion;
// a run with no completion anywhere is still in progress and ends at now.
func resolveRunInterval(run source.WorkflowRunSummary, jobs []source.Job, now time.Time) (time.Time, time.Time) {
	start := run.CreatedAt
	if run.RunStartedAt != nil {
		start = *run.RunStartedAt
	}
	for _, job := range jobs {
		if job.StartedAt != nil && job.StartedAt.Before(start) {
			start = *job.StartedAt
		}
	}

	var latest time.Time
	completed := false
	for _, job := range jobs {
		if job.CompletedAt != nil {
			completed = true
			if job.CompletedAt.After(latest) {
				latest = *job.CompletedAt
			}
		}
	}

	var end time.Time
	switch {
	case !completed && run.Conclusion == "":
		end = now
	case run.UpdatedAt.After(latest):
		end = run.UpdatedAt
	default:
		end = latest
	}

	if end.Before(start) {
		end = start
	}
	return start, end
}

// buildJob constructs a job span clipped to the run's interval, with its
// steps ordered by sequence number and clipped to the job's interval.
func buildJob(job source.Job, workflow string, runStart, runEnd time.Time) *Span {
	start := runStart
	if job.StartedAt != nil {
		start = *job.StartedAt
	}
	// A job cancelled or still running has no completion; it is clamped to
	// the run's resolved end.
	end := runEnd
	if job.CompletedAt != nil {
		end = *job.CompletedAt
	}
	start, end = clip(start, end, runStart, runEnd)

	span := &Span{
		Kind:     KindJob,
		Name:     job.Name,
		Start:    start,
		End:      end,
		Status:   conclusionStatus(job.Conclusion),
		Workflow: workflow,
		Attrs: map[string]string{
			"ci.job.id":     strconv.FormatInt(job.ID, 10),
			"ci.conclusion": job.Conclusion,
		},
		Children: make([]*Span, 0, len(job.Steps)),
	}

	steps := make([]source.Step, len(job.Steps))
	copy(steps, job.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Number < steps[j].Number })

	for _, step := range steps {
		span.Children = append(span.Children, buildStep(step, workflow, start, end))
	}
	return span
}

func buildStep(step source.Step, workflow string, jobStart, jobEnd time.Time) *Span {
	start := jobStart
	if step.StartedAt != nil {
		start = *step.StartedAt
	}
	end := jobEnd
	if step.CompletedAt != nil {
		end = *step.CompletedAt
	}
	start, end = clip(start, end, jobStart, jobEnd)

	return &Span{
		Kind:     KindStep,
		Name:     step.Name,
		Start:    start,
		End:      end,
		Status:   conclusionStatus(step.Conclusion),
		Workflow: workflow,
		Attrs: map[string]string{
			"ci.step.number": strconv.Itoa(step.Number),
			"ci.conclusion":  step.Conclusion,
		},
	}
}

// clip forces [start, end] inside [lo, hi]. Recorded intervals can exceed
// their parent's through clock skew or partial data; they are clamped
// rather than rejected so the tree stays valid.
func clip(start, end, lo, hi time.Time) (time.Time, time.Time) {
	if start.Before(lo) {
		start = lo
	}
	if start.After(hi) {
		start = hi
	}
	if end.After(hi) {
		end = hi
	}
	if end.Before(start) {
		end = start
	}
	return start, end
}

// conclusionStatus maps a CI conclusion onto a span status. Cancelled and
// timed-out runs count as errors so they stay visible in trace UIs; an
// absent conclusion means still running.
func conclusionStatus(conclusion string) Status {
	switch conclusion {
	case "":
		return StatusUnset
	case "failure", "timed_out", "cancelled", "startup_failure":
		return StatusError
	default:
		return StatusOK
	}
}
