// Package progress defines the progress-reporting interface the fetch
// pipeline notifies, plus console and terminal-UI implementations. Reporters
// are fire-and-forget: the pipeline never blocks on them.
package progress

import "ghtrace/src/logger"

// Reporter receives discrete progress events for display.
type Reporter interface {
	// WorkflowStarted fires once per workflow, after its runs have been
	// enumerated.
	WorkflowStarted(workflow string, totalRuns int)

	// RunCompleted fires after a run has been fully fetched (or skipped),
	// in run-completion order.
	RunCompleted(workflow string, index, total int)
}

// NopReporter discards all progress events.
type NopReporter struct{}

func (NopReporter) WorkflowStarted(string, int)   {}
func (NopReporter) RunCompleted(string, int, int) {}

// ConsoleReporter logs progress as plain lines. Used with --no-progress and
// when stdout is not a terminal.
type ConsoleReporter struct {
	log logger.Logger
}

func NewConsoleReporter(log logger.Logger) *ConsoleReporter {
	return &ConsoleReporter{log: log}
}

func (c *ConsoleReporter) WorkflowStarted(workflow string, totalRuns int) {
	c.log.Info("workflow %s: fetching %d runs", workflow, totalRuns)
}

func (c *ConsoleReporter) RunCompleted(workflow string, index, total int) {
	c.log.Info("workflow %s: run %d/%d", workflow, index, total)
}
