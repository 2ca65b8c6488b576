//go:build lambda

package main

import (
	"archivist/internal/api"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// LambdaHandler consumes archiving jobs (prepare, visit, invalidate) from an SQS queue.
type LambdaHandler struct {
	Svc *api.Service
}

func main() {
	api.LoadEnv()

	svc, err := api.Bootstrap(context.Background(), "")
	if err != nil {
		log.Fatalf("Failed to initialize archivist: %v", err)
	}

	handler := &LambdaHandler{Svc: svc}
	lambda.Start(handler.HandleSQSEvent)
}

// HandleSQSEvent processes a batch of jobs. Failed and busy jobs are reported back so SQS
// redelivers them.
func (h *LambdaHandler) HandleSQSEvent(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	log.Infof("Processing batch of %d messages", len(sqsEvent.Records))

	var batchItemFailures []events.SQSBatchItemFailure
	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			entry := log.WithError(err).WithField("messageID", record.MessageId)
			if errors.Is(err, api.ErrBusy) {
				entry.Info("archiving busy, message will be retried")
			} else {
				entry.Error("Failed to process message")
			}
			batchItemFailures = append(batchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}

	return events.SQSEventResponse{
		BatchItemFailures: batchItemFailures,
	}, nil
}

func (h *LambdaHandler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var job api.Job
	if err := json.Unmarshal([]byte(record.Body), &job); err != nil {
		return fmt.Errorf("parse message body: %w", err)
	}
	log.WithFields(log.Fields{
		"kind":      job.Kind,
		"messageID": record.MessageId,
	}).Debug("Processing message")
	return h.Svc.RunJob(ctx, job)
}
