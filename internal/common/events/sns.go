// Package events publishes workflow domain events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"

	"tender-workflow/internal/common/logger"
)

// Event types.
const (
	ApplicationSubmitted = "application.submitted"
	PaymentConfirmed     = "payment.confirmed"
	PaymentTimedOut      = "payment.timeout"
)

// Event is the envelope published to the topic.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurredAt"`
	Payload    map[string]interface{} `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]interface{}) error
}

// snsAPI is the slice of the SNS client used here.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSPublisher struct {
	client   snsAPI
	topicARN string
	logger   logger.Logger
}

// NewSNSPublisher loads the default AWS credential chain for region.
func NewSNSPublisher(ctx context.Context, region, topicARN string, log logger.Logger) (*SNSPublisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSNSPublisher(sns.NewFromConfig(cfg), topicARN, log), nil
}

func newSNSPublisher(client snsAPI, topicARN string, log logger.Logger) *SNSPublisher {
	return &SNSPublisher{
		client:   client,
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"component": "sns-publisher"}),
	}
}

func (p *SNSPublisher) Publish(ctx context.Context, eventType string, payload map[string]interface{}) error {
	evt := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", eventType, err)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {DataType: aws.String("String"), StringValue: aws.String(eventType)},
		},
	})
	if err != nil {
		p.logger.Warn("event publish failed", map[string]interface{}{"type": eventType, "error": err.Error()})
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	p.logger.Debug("event published", map[string]interface{}{"type": eventType, "messageId": aws.ToString(out.MessageId)})
	return nil
}

// Nop discards events; used when SNS is disabled.
type Nop struct{}

func (Nop) Publish(context.Context, string, map[string]interface{}) error { return nil }
