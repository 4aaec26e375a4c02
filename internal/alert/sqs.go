package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// SQSAPI is the subset of the SQS client used by SQSSink.
type SQSAPI interface {
	SendMessage(ctx context.Context, input *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSink enqueues alerts on an SQS queue. FIFO queues are grouped by rule
// and deduplicated by alert id.
type SQSSink struct {
	client   SQSAPI
	queueURL string
}

// SQSSinkOption configures an SQSSink.
type SQSSinkOption func(*SQSSink)

// WithSQSClient sets a custom SQS client (useful for testing).
func WithSQSClient(c SQSAPI) SQSSinkOption {
	return func(s *SQSSink) { s.client = c }
}

// NewSQSSink creates a new SQS alert sink.
func NewSQSSink(queueURL, region string, opts ...SQSSinkOption) (*SQSSink, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("SQS queue URL required")
	}
	s := &SQSSink{queueURL: queueURL}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		cfg, err := loadAWSConfig(region)
		if err != nil {
			return nil, err
		}
		s.client = sqs.NewFromConfig(cfg)
	}
	return s, nil
}

// Name returns the sink identifier.
func (s *SQSSink) Name() string { return "sqs" }

// Send enqueues the alert as a JSON message.
func (s *SQSSink) Send(ctx context.Context, a types.AlertEvent) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(data)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"severity": {DataType: aws.String("String"), StringValue: aws.String(string(a.Severity))},
			"ruleId":   {DataType: aws.String("String"), StringValue: aws.String(a.RuleID)},
		},
	}
	if strings.HasSuffix(s.queueURL, ".fifo") {
		in.MessageGroupId = aws.String(a.RuleID)
		in.MessageDeduplicationId = aws.String(dedupID(a))
	}

	if _, err := s.client.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("sending SQS message: %w", err)
	}
	return nil
}

// dedupID distinguishes the open and closed deliveries of one episode.
func dedupID(a types.AlertEvent) string {
	if a.ClearTime == nil {
		return a.ID + "-open"
	}
	return a.ID + "-closed"
}
