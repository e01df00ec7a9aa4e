package notify

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-faster/errors"
)

// SNSConfig configures the SNS transport. The topic subscribers perform the
// final delivery.
type SNSConfig struct {
	TopicARN string
	Region   string
	// Endpoint overrides the service endpoint, e.g. for LocalStack.
	Endpoint string
}

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, opts ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNS publishes rendered mail to an SNS topic with the recipient in the
// message attributes.
type SNS struct {
	client snsAPI
	topic  string
}

// NewSNS loads the default AWS configuration and creates an SNS sender.
func NewSNS(ctx context.Context, cfg Config) (*SNS, error) {
	if cfg.SNS.TopicARN == "" {
		return nil, errors.New("sns topic arn is empty")
	}
	var opts []func(*config.LoadOptions) error
	if cfg.SNS.Region != "" {
		opts = append(opts, config.WithRegion(cfg.SNS.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if cfg.SNS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.SNS.Endpoint)
		}
	})
	return &SNS{client: client, topic: cfg.SNS.TopicARN}, nil
}

// Send implements Sender.
func (s *SNS) Send(ctx context.Context, m Mail) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topic),
		Subject:  aws.String(m.Subject),
		Message:  aws.String(m.HTML),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"recipient":    {DataType: aws.String("String"), StringValue: aws.String(m.To)},
			"content-type": {DataType: aws.String("String"), StringValue: aws.String("text/html")},
		},
	})
	if err != nil {
		return errors.Wrap(err, "sns publish")
	}
	return nil
}
