package trace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ghtrace/src/logger"
)

// SpanHandle is an opaque reference to a started backend span, passed back
// to the sink when the span is closed.
type SpanHandle interface{}

// Sink is the tracing backend boundary. StartSpan must be called with the
// context returned by the parent's StartSpan so the backend can link the
// child; the root is started with the caller's context.
type Sink interface {
	StartSpan(ctx context.Context, span *Span) (context.Context, SpanHandle, error)
	EndSpan(handle SpanHandle, end time.Time, status Status) error
}

// Emitter writes span trees to a Sink in the order tracing backends
// require: each span is opened before any of its children and closed after
// all of them (pre-order open, post-order close). Emissions are serialized
// with one lock since the sink's concurrency contract is unspecified.
type Emitter struct {
	sink Sink
	log  logger.Logger
	mu   sync.Mutex
}

func NewEmitter(sink Sink, log logger.Logger) *Emitter {
	return &Emitter{sink: sink, log: log}
}

// Emit writes one complete tree. A sink failure abandons the affected
// subtree but still closes already-opened ancestors; the error is returned
// so the caller can count it, and must not abort further fetching.
func (e *Emitter) Emit(ctx context.Context, root *Span) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.emit(ctx, root); err != nil {
		e.log.Debug("trace export failed for %s: %v", root.Name, err)
		return err
	}
	return nil
}

func (e *Emitter) emit(ctx context.Context, span *Span) error {
	childCtx, handle, err := e.sink.StartSpan(ctx, span)
	if err != nil {
		return fmt.Errorf("starting span %s: %w", span.Name, err)
	}

	var firstErr error
	for _, child := range span.Children {
		if err := e.emit(childCtx, child); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := e.sink.EndSpan(handle, span.End, span.Status); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("ending span %s: %w", span.Name, err)
	}
	return firstErr
}
