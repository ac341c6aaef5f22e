// Package pipeline wires the fetcher, span builder and trace emitter
// together: completed run hierarchies stream out of the fetcher, are built
// into span trees, and are emitted best-effort to the tracing backend.
package pipeline

import (
	"context"
	"time"

	"ghtrace/src/fetch"
	"ghtrace/src/logger"
	"ghtrace/src/trace"
)

// Summary reports what one invocation accomplished. A run with an export
// failure still counts as processed; tracing is best-effort relative to the
// fetch work.
type Summary struct {
	Processed      int
	Skipped        int
	ExportFailures int
}

// Pipeline drives one invocation end to end.
type Pipeline struct {
	fetcher *fetch.Fetcher
	emitter *trace.Emitter
	log     logger.Logger

	// Now anchors end times of in-progress runs. Overridden in tests.
	Now func() time.Time
}

func New(fetcher *fetch.Fetcher, emitter *trace.Emitter, log logger.Logger) *Pipeline {
	return &Pipeline{
		fetcher: fetcher,
		emitter: emitter,
		log:     log,
		Now:     time.Now,
	}
}

// Run fetches runs and emits one trace per fully fetched run. A workflow
// listing failure is fatal and returned; run-scoped failures are logged as
// warnings and counted as skipped. A run is emitted only once its complete
// span tree exists, so cancellation never produces partial trace data.
func (p *Pipeline) Run(ctx context.Context, opts fetch.Options) (Summary, error) {
	results, err := p.fetcher.Fetch(ctx, opts)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for res := range results {
		if res.Err != nil {
			p.log.Warn("skipping: %v", res.Err)
			summary.Skipped++
			continue
		}

		root := trace.Build(res.Run, res.Jobs, p.Now())
		if err := p.emitter.Emit(ctx, root); err != nil {
			p.log.Warn("trace export failed for %s: %v", root.Name, err)
			summary.ExportFailures++
		}
		summary.Processed++
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}
