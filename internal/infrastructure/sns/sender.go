package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/api-yamdb/internal/config"
	"github.com/api-yamdb/internal/pkg/message"
)

type publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// CodeMessage is the JSON payload published for the mail relay subscribed to the topic.
type CodeMessage struct {
	Address string `json:"address"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Code    string `json:"code"`
}

// CodeNotifier publishes confirmation codes to an SNS topic. A subscriber
// (typically a Lambda or SES relay) turns each message into an email.
type CodeNotifier struct {
	client   publisher
	topicARN string
	template *message.Template
}

func NewCodeNotifier(cfg *config.Config, tpl *message.Template) (*CodeNotifier, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.SNSRegion)}
	if cfg.AWSAccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, err
	}
	opts := []func(*sns.Options){}
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return newCodeNotifier(sns.NewFromConfig(awsCfg, opts...), cfg.SNSTopicARN, tpl), nil
}

func newCodeNotifier(client publisher, topicARN string, tpl *message.Template) *CodeNotifier {
	return &CodeNotifier{client: client, topicARN: topicARN, template: tpl}
}

func (n *CodeNotifier) Send(ctx context.Context, address, code string) error {
	subject, body, err := n.template.Render(address, code)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(CodeMessage{Address: address, Subject: subject, Body: body, Code: code})
	if err != nil {
		return fmt.Errorf("marshal sns message: %w", err)
	}
	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind": {DataType: aws.String("String"), StringValue: aws.String("confirmation_code")},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
