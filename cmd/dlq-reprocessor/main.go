// Package main is the entrypoint for the dead-letter reprocessor Lambda
// function. It is invoked on demand (manual trigger or schedule), drains
// the dead-letter queue through the same classify->enrich->dispatch
// pipeline as first-pass delivery, and returns the per-run summary as the
// invocation result.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"notifyrelay/internal/app"
	"notifyrelay/internal/dlq"
	"notifyrelay/internal/types"
)

// Runner adapts the reprocessor to the Lambda invocation shape.
type Runner struct {
	reprocessor *dlq.Reprocessor
}

// Handle drains the dead-letter queue once and returns the summary.
// The run can end early on the drain budget; the summary reflects what
// actually happened either way.
func (r *Runner) Handle(ctx context.Context) (types.ReprocessSummary, error) {
	return r.reprocessor.ReprocessAll(ctx)
}

func main() {
	a, err := app.Bootstrap(context.Background())
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).
			Error("dead-letter reprocessor failed to initialize", "error", err.Error())
		os.Exit(1)
	}
	defer a.Close()

	a.Logger.Info("dead-letter reprocessor initialized")
	lambda.Start((&Runner{reprocessor: a.Reprocessor}).Handle)
}
