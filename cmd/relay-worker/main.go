// Package main is the entrypoint for the relay worker Lambda function.
//
// The relay worker consumes notification envelopes from the inbound SQS
// queue, classifies each one (skip, forward as-is, or enrich), runs the
// order enrichment workflow where required, and dispatches to the
// configured destination. Failures are reported through the SQS partial
// batch response so only failed messages are redelivered.
//
// Cold start: load configuration, build the structured logger, wire SDK
// clients and the processing pipeline, then register the handler.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"notifyrelay/internal/app"
	"notifyrelay/internal/relay"
	"notifyrelay/internal/types"
)

// Worker adapts the batch relay handler to the Lambda SQS event shape.
type Worker struct {
	handler *relay.Handler
}

// Handle processes one SQS event. Messages that fail are returned as
// batchItemFailures; skipped and succeeded messages are acknowledged.
func (w *Worker) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	messages := make([]types.RawMessage, 0, len(sqsEvent.Records))
	for _, record := range sqsEvent.Records {
		messages = append(messages, types.RawMessage{
			MessageID:     record.MessageId,
			Body:          record.Body,
			SentTimestamp: record.Attributes["SentTimestamp"],
		})
	}

	result := w.handler.HandleBatch(ctx, messages)

	response := events.SQSEventResponse{}
	for _, id := range result.FailedIDs {
		response.BatchItemFailures = append(response.BatchItemFailures,
			events.SQSBatchItemFailure{ItemIdentifier: id},
		)
	}
	return response, nil
}

func main() {
	a, err := app.Bootstrap(context.Background())
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).
			Error("relay worker failed to initialize", "error", err.Error())
		os.Exit(1)
	}
	defer a.Close()

	a.Logger.Info("relay worker initialized")
	lambda.Start((&Worker{handler: a.Handler}).Handle)
}
