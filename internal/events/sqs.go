package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the subset of the SQS client used for publishing.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher forwards outbox entries to an SQS queue.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
}

// NewSQSPublisher creates a publisher for queueURL.
func NewSQSPublisher(client SQSAPI, queueURL string) (*SQSPublisher, error) {
	if client == nil {
		return nil, errors.New("events: SQS client cannot be nil")
	}
	if queueURL == "" {
		return nil, errors.New("events: SQS queueURL cannot be empty")
	}
	return &SQSPublisher{client: client, queueURL: queueURL}, nil
}

// Handle sends the stored envelope as the message body. The clinic id is
// copied into a message attribute so consumers can filter without decoding.
func (p *SQSPublisher) Handle(ctx context.Context, entry OutboxEntry) error {
	attrs := map[string]types.MessageAttributeValue{
		"event_type": stringAttr(entry.Type),
		"aggregate":  stringAttr(entry.Aggregate),
	}
	var env Envelope
	if err := json.Unmarshal(entry.Payload, &env); err == nil && env.ClinicID != "" {
		attrs["clinic_id"] = stringAttr(env.ClinicID)
	}
	_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(p.queueURL),
		MessageBody:       aws.String(string(entry.Payload)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("events: failed to send SQS message: %w", err)
	}
	return nil
}

func stringAttr(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}

// LogHandler discards entries after logging them; used when no queue is configured.
type LogHandler struct {
	Log func(msg string, args ...any)
}

func (h LogHandler) Handle(_ context.Context, entry OutboxEntry) error {
	if h.Log != nil {
		h.Log("booking event", "event_id", entry.ID, "type", entry.Type, "aggregate", entry.Aggregate)
	}
	return nil
}
