// Package main provides the ghtrace CLI: it reconstructs distributed
// traces for GitHub Actions workflow runs and ships them to a tracing
// backend over OTLP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"ghtrace/src/config"
	"ghtrace/src/fetch"
	"ghtrace/src/github"
	"ghtrace/src/logger"
	"ghtrace/src/pipeline"
	"ghtrace/src/progress"
	"ghtrace/src/source"
	"ghtrace/src/trace"
)

var (
	owner        string
	repo         string
	token        string
	workflowName string
	runCount     int
	concurrency  int
	exporterKind string
	noProgress   bool
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "ghtrace",
	Short: "Create traces for GitHub Actions workflow runs",
	Long: `ghtrace reconstructs distributed traces for GitHub Actions runs by
walking the run -> job -> step hierarchy through the GitHub API and
emitting one trace per workflow run, with job and step spans nested
inside it.

Traces are exported over OTLP (gRPC) to the collector named by
OTEL_EXPORTER_OTLP_ENDPOINT, or printed with --exporter stdout.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&owner, "owner", "o", "", "organization or owner of the repository (required)")
	rootCmd.Flags().StringVarP(&repo, "repo", "r", "", "name of the repository (required)")
	rootCmd.Flags().StringVarP(&token, "token", "t", "", "GitHub API token (falls back to GITHUB_ACCESS_TOKEN, then GITHUB_TOKEN)")
	rootCmd.Flags().StringVarP(&workflowName, "workflow", "w", "", "only trace runs of this workflow")
	rootCmd.Flags().IntVar(&runCount, "runs", 30, "number of runs to trace per workflow")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", fetch.DefaultMaxConcurrent, "maximum concurrent API requests")
	rootCmd.Flags().StringVar(&exporterKind, "exporter", "otlp", "trace exporter: otlp or stdout")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the terminal progress display")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging (implies --no-progress)")

	rootCmd.MarkFlagRequired("owner")
	rootCmd.MarkFlagRequired("repo")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()
	if token == "" {
		token = cfg.Token
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "No token provided, falling back to unauthenticated requests")
	}
	if verbose {
		noProgress = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tp, err := newTracerProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("setting up trace exporter: %w", err)
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: trace exporter shutdown: %v\n", err)
		}
	}()

	var (
		log      logger.Logger
		reporter progress.Reporter
		tui      *progress.TUI
	)
	if noProgress {
		console := logger.NewConsoleLogger()
		console.Verbose = verbose
		log = console
		reporter = progress.NewConsoleReporter(console)
	} else {
		log = logger.NewSilentLogger()
		tui = progress.NewTUI(cancel)
		reporter = tui
	}

	src := github.NewSource(github.NewClient(token))
	fetcher := fetch.New(src, reporter, log)
	emitter := trace.NewEmitter(trace.NewOTelSink(tp.Tracer("ghtrace")), log)
	pipe := pipeline.New(fetcher, emitter, log)

	opts := fetch.Options{
		Owner:              owner,
		Repo:               repo,
		WorkflowFilter:     workflowName,
		MaxRunsPerWorkflow: runCount,
		MaxConcurrent:      concurrency,
	}

	var (
		summary pipeline.Summary
		runErr  error
	)
	if tui != nil {
		pipelineDone := make(chan struct{})
		go func() {
			defer close(pipelineDone)
			summary, runErr = pipe.Run(ctx, opts)
			tui.Finish()
		}()
		if err := tui.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: progress display: %v\n", err)
		}
		<-pipelineDone
	} else {
		summary, runErr = pipe.Run(ctx, opts)
	}

	printSummary(summary)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Interrupted")
			return nil
		}
		return source.WrapError(runErr)
	}
	return nil
}

func newTracerProvider(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	var exporter sdktrace.SpanExporter
	var err error
	switch exporterKind {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unknown exporter %q", exporterKind)
	}
	if err != nil {
		return nil, err
	}

	// Service name follows the repository so traces from different repos
	// stay separable in the backend.
	res := sdkresource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(owner+"/"+repo),
	)

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

func printSummary(summary pipeline.Summary) {
	line := fmt.Sprintf("Traced %d runs", summary.Processed)
	if summary.Skipped > 0 {
		line += fmt.Sprintf(", skipped %d", summary.Skipped)
	}
	if summary.ExportFailures > 0 {
		line += fmt.Sprintf(" (%d export failures)", summary.ExportFailures)
	}
	fmt.Println(line)
}
