package publish

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"zonetime/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSink sends one message per published snapshot. On a FIFO queue the
// entity is the message group and the cycle ID deduplicates redeliveries.
type SQSSink struct {
	client   SQSSender
	queueURL string
	fifo     bool
	logger   *slog.Logger
}

// NewSQSSink creates a sink targeting queueURL.
func NewSQSSink(client SQSSender, queueURL string, logger *slog.Logger) *SQSSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQSSink{
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
		logger:   logger,
	}
}

// Name implements scheduler.SnapshotPublisher.
func (s *SQSSink) Name() string { return "sqs" }

// Publish serializes the result and sends it to the queue.
func (s *SQSSink) Publish(ctx context.Context, r *types.DwellResult) error {
	body, err := encode(r)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode snapshot", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"cycle_id":  {DataType: aws.String("String"), StringValue: aws.String(r.CycleID)},
			"entity_id": {DataType: aws.String("String"), StringValue: aws.String(r.EntityID)},
		},
	}
	if s.fifo {
		input.MessageGroupId = aws.String(r.EntityID)
		input.MessageDeduplicationId = aws.String(r.CycleID)
	}

	out, err := s.client.SendMessage(ctx, input)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamPublish, "failed to send snapshot to "+s.queueURL, err)
	}

	s.logger.InfoContext(ctx, "snapshot published",
		"sink", s.Name(),
		"cycle_id", r.CycleID,
		"message_id", aws.ToString(out.MessageId),
	)
	return nil
}
