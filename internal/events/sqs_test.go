package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSQSPublisherHandle(t *testing.T) {
	client := &fakeSQS{}
	pub, err := NewSQSPublisher(client, "https://sqs.local/queue")
	require.NoError(t, err)

	entry := OutboxEntry{ID: uuid.New(), Aggregate: "clinic:c-1", Type: "booking.committed.v1", Payload: []byte(`{"a":1}`)}
	require.NoError(t, pub.Handle(context.Background(), entry))

	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "https://sqs.local/queue", aws.ToString(in.QueueUrl))
	assert.Equal(t, `{"a":1}`, aws.ToString(in.MessageBody))
	assert.Equal(t, "booking.committed.v1", aws.ToString(in.MessageAttributes["event_type"].StringValue))
	_, hasClinic := in.MessageAttributes["clinic_id"]
	assert.False(t, hasClinic)
}

func TestSQSPublisherCopiesClinicFromEnvelope(t *testing.T) {
	client := &fakeSQS{}
	pub, err := NewSQSPublisher(client, "q")
	require.NoError(t, err)

	env, err := Seal(committed())
	require.NoError(t, err)
	body, err := json.Marshal(env)
	require.NoError(t, err)

	entry := OutboxEntry{ID: env.EventID, Aggregate: env.Aggregate, Type: env.EventType, Payload: body}
	require.NoError(t, pub.Handle(context.Background(), entry))
	require.Len(t, client.inputs, 1)
	assert.Equal(t, "clinic-1", aws.ToString(client.inputs[0].MessageAttributes["clinic_id"].StringValue))
}

func TestSQSPublisherErrors(t *testing.T) {
	_, err := NewSQSPublisher(nil, "q")
	assert.Error(t, err)
	_, err = NewSQSPublisher(&fakeSQS{}, "")
	assert.Error(t, err)

	pub, err := NewSQSPublisher(&fakeSQS{err: errors.New("throttled")}, "q")
	require.NoError(t, err)
	err = pub.Handle(context.Background(), OutboxEntry{Type: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "events: failed to send SQS message")
}
