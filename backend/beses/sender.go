package beses

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/yusufsyaifudin/emailer/backend"
	"github.com/yusufsyaifudin/emailer/pkg/tracer"
	"github.com/yusufsyaifudin/emailer/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	Region    string `yaml:"region" validate:"required"`
	AccessKey string `yaml:"accessKey" validate:"required_with=SecretKey"`
	SecretKey string `yaml:"secretKey" validate:"required_with=AccessKey"`

	// From must be a verified SES identity.
	From string `yaml:"from" validate:"required,simplemail"`

	// ConfigurationSet is optional SES configuration set name for event publishing.
	ConfigurationSet string `yaml:"configurationSet"`

	// Endpoint override, i.e. localstack.
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
}

// BE sends raw MIME content through Amazon SES v2.
type BE struct {
	conf   Config
	client *sesv2.Client
}

var _ backend.Sender = (*BE)(nil)

func NewBE(ctx context.Context, conf Config) (*BE, error) {
	err := validator.Validate(conf)
	if err != nil {
		err = fmt.Errorf("ses backend validation error: %w", err)
		return nil, err
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(conf.Region),
	}

	// without static keys the default chain (env, shared profile, instance role) is used
	if conf.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AccessKey, conf.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		err = fmt.Errorf("ses backend cannot load aws config: %w", err)
		return nil, err
	}

	client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if conf.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Endpoint)
		}
	})

	return &BE{
		conf:   conf,
		client: client,
	}, nil
}

func (b *BE) Identity(_ context.Context) (identity backend.Identity, err error) {
	identity = backend.Identity{Email: strings.TrimSpace(b.conf.From)}
	return
}

func (b *BE) Send(ctx context.Context, msg *backend.Message) (report *backend.Report, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "beses.Send")
	defer span.End()

	raw, err := backend.DecodeRaw(msg.Raw)
	if err != nil {
		return
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(b.conf.From),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	}

	if b.conf.ConfigurationSet != "" {
		input.ConfigurationSetName = aws.String(b.conf.ConfigurationSet)
	}

	out, err := b.client.SendEmail(ctx, input)
	if err != nil {
		err = fmt.Errorf("ses send to %s: %w", msg.To, err)
		return
	}

	report = &backend.Report{
		ReferenceID:       msg.ReferenceID,
		ProviderMessageID: aws.ToString(out.MessageId),
		SentAt:            time.Now().UTC(),
	}
	return
}
