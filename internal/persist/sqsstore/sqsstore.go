// Package sqsstore publishes run summaries to an SQS queue.
package sqsstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/programme-lv/cptester/api"
)

// SQS rejects message bodies above 256 KiB.
const MaxMessageBytes = 256 * 1024

const DefaultRegion = "eu-central-1"

// SendMessageAPI is the part of *sqs.Client the store uses.
type SendMessageAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SqsStore struct {
	client   SendMessageAPI
	queueUrl string
}

// New loads the default AWS configuration for region.
func New(ctx context.Context, queueUrl string, region string) (*SqsStore, error) {
	if region == "" {
		region = DefaultRegion
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return NewWithClient(sqs.NewFromConfig(cfg), queueUrl), nil
}

func NewWithClient(client SendMessageAPI, queueUrl string) *SqsStore {
	return &SqsStore{client: client, queueUrl: queueUrl}
}

// Save sends the summary as one JSON message. Texts are trimmed to the
// stream rectangle; if that is still too large, per-test details go.
func (s *SqsStore) Save(ctx context.Context, summary api.TestSummary) error {
	body, err := encode(summary)
	if err != nil {
		return err
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueUrl),
		MessageBody: aws.String(body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"run_uuid":  stringAttr(summary.RunUuid),
			"test_type": stringAttr(string(summary.TestType)),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send summary %s: %w", summary.RunUuid, err)
	}
	return nil
}

func stringAttr(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}

func encode(summary api.TestSummary) (string, error) {
	tests := make([]api.TestCase, len(summary.Tests))
	for i, tc := range summary.Tests {
		tests[i] = tc.Trimmed(api.MaxStreamTextHeight, api.MaxStreamTextWidth)
	}
	summary.Tests = tests
	b, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}
	if len(b) <= MaxMessageBytes {
		return string(b), nil
	}

	for i := range tests {
		tests[i].Runs = nil
		tests[i].Input = ""
	}
	b, err = json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}
	if len(b) > MaxMessageBytes {
		return "", fmt.Errorf("summary %s is %d bytes, above the SQS limit", summary.RunUuid, len(b))
	}
	return string(b), nil
}
