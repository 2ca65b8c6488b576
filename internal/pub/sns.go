package pub

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

const (
	SNSEndpointKey = "SNS_ENDPOINT"
	SNSTopicKey    = "SNS_TOPIC_ARN"
)

// SNS publishes archive notifications to an SNS topic.
type SNS struct{ cli *sns.Client }

func NewSNS(c *sns.Client) *SNS { return &SNS{cli: c} }

// SNSFromEnv builds the publisher and returns the topic it should publish to. An empty topic
// means notifications are disabled; the publisher is nil then.
func SNSFromEnv(ctx context.Context) (*SNS, string, error) {
	topic := os.Getenv(SNSTopicKey)
	if topic == "" {
		return nil, "", nil
	}
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, "", err
	}
	endpoint := os.Getenv(SNSEndpointKey)
	cli := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			if o.Region == "" {
				o.Region = "us-east-1"
			}
			o.Credentials = credentials.NewStaticCredentialsProvider("test", "test", "")
		}
	})
	return NewSNS(cli), topic, nil
}

func (s *SNS) PublishRaw(ctx context.Context, arn string, payload []byte) error {
	_, err := s.cli.Publish(ctx, &sns.PublishInput{
		TopicArn: &arn,
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"content-type": {DataType: aws.String("String"), StringValue: aws.String("application/json")},
		},
	})
	return err
}
