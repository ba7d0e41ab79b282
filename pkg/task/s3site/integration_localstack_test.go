//go:build integration
// +build integration

package s3site

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"

	"github.com/williamokano/web_deployer/pkg/awsclient"
	"github.com/williamokano/web_deployer/pkg/config"
	"github.com/williamokano/web_deployer/pkg/task"
)

func TestS3SiteIntegration(t *testing.T) {
	// Skip in short mode
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	container, endpoint, err := setupLocalStack(ctx)
	require.NoError(t, err, "Failed to start LocalStack")
	defer container.Terminate(ctx)

	awsOpts := config.AwsConfig{
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		ForcePathStyle:  true,
	}

	awsCfg, err := awsclient.Load(ctx, awsOpts, "us-east-1")
	require.NoError(t, err)

	deps := task.Deps{
		Project:    "classroom",
		WorkDir:    t.TempDir(),
		Region:     "us-east-1",
		AWS:        awsCfg,
		AWSOptions: awsOpts,
		MaxUploads: 4,
		Logger:     zerolog.Nop(),
	}

	tk, err := New(ctx, deps, config.TaskConfig{Name: "site", Type: "s3_site"})
	require.NoError(t, err)
	defer tk.Close()

	t.Run("deploys_the_builtin_site", func(t *testing.T) {
		outputs, err := tk.Execute(ctx)
		require.NoError(t, err)

		assert.Equal(t, "classroom-site", outputs["bucket"])
		assert.Equal(t, "2", outputs["files"], "index.html and error.html")
		assert.Equal(t, endpoint+"/classroom-site", outputs["website_url"])
	})

	client := awsclient.NewS3(awsCfg, awsOpts)

	t.Run("index_page_is_uploaded_with_content_type", func(t *testing.T) {
		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String("classroom-site"),
			Key:    aws.String("index.html"),
		})
		require.NoError(t, err)
		defer out.Body.Close()

		body, err := io.ReadAll(out.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "<h1>It works!</h1>")
		assert.Contains(t, aws.ToString(out.ContentType), "text/html")
	})

	t.Run("public_read_policy_is_attached", func(t *testing.T) {
		out, err := client.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{
			Bucket: aws.String("classroom-site"),
		})
		require.NoError(t, err)
		assert.Contains(t, aws.ToString(out.Policy), "s3:GetObject")
		assert.Contains(t, aws.ToString(out.Policy), "arn:aws:s3:::classroom-site/*")
	})

	t.Run("website_configuration_is_set", func(t *testing.T) {
		out, err := client.GetBucketWebsite(ctx, &s3.GetBucketWebsiteInput{
			Bucket: aws.String("classroom-site"),
		})
		require.NoError(t, err)
		assert.Equal(t, "index.html", aws.ToString(out.IndexDocument.Suffix))
		assert.Equal(t, "error.html", aws.ToString(out.ErrorDocument.Key))
	})

	t.Run("rerun_is_idempotent", func(t *testing.T) {
		outputs, err := tk.Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2", outputs["files"])
	})
}

// setupLocalStack starts a LocalStack container with S3 and returns its endpoint
func setupLocalStack(ctx context.Context) (*localstack.LocalStackContainer, string, error) {
	container, err := localstack.RunContainer(ctx,
		testcontainers.WithImage("localstack/localstack:3.0"),
		testcontainers.WithEnv(map[string]string{
			"SERVICES": "s3",
		}),
	)
	if err != nil {
		return nil, "", err
	}

	mappedPort, err := container.MappedPort(ctx, "4566/tcp")
	if err != nil {
		container.Terminate(ctx)
		return nil, "", err
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, "", err
	}

	return container, fmt.Sprintf("http://%s:%s", host, mappedPort.Port()), nil
}
