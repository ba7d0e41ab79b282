package awsclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/smithy-go"

	"github.com/williamokano/web_deployer/pkg/config"
)

// IsError reports whether err carries the given AWS API error code.
// EC2 has no typed errors in the SDK, only codes.
func IsError(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}

// Load resolves AWS SDK configuration from the default chain, applying the
// region and any static credentials from the config file
func Load(ctx context.Context, opts config.AwsConfig, region string) (aws.Config, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return cfg, nil
}

// NewS3 creates an S3 client, honoring the endpoint override and
// path-style addressing (required by localstack)
func NewS3(cfg aws.Config, opts config.AwsConfig) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})
}

// NewEC2 creates an EC2 client
func NewEC2(cfg aws.Config, opts config.AwsConfig) *ec2.Client {
	return ec2.NewFromConfig(cfg, func(o *ec2.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
}

// NewECR creates an ECR client
func NewECR(cfg aws.Config, opts config.AwsConfig) *ecr.Client {
	return ecr.NewFromConfig(cfg, func(o *ecr.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
}

// NewECS creates an ECS client
func NewECS(cfg aws.Config, opts config.AwsConfig) *ecs.Client {
	return ecs.NewFromConfig(cfg, func(o *ecs.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
}

// NewSSM creates an SSM client, used to resolve public AMI parameters
func NewSSM(cfg aws.Config, opts config.AwsConfig) *ssm.Client {
	return ssm.NewFromConfig(cfg, func(o *ssm.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
}

// NewDynamoDB creates a DynamoDB client
func NewDynamoDB(cfg aws.Config, opts config.AwsConfig) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
}
