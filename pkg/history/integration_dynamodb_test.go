//go:build integration
// +build integration

package history_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"

	"github.com/williamokano/web_deployer/pkg/awsclient"
	"github.com/williamokano/web_deployer/pkg/config"
	"github.com/williamokano/web_deployer/pkg/history"
)

func TestDynamoStoreIntegration(t *testing.T) {
	// Skip in short mode
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := localstack.RunContainer(ctx,
		testcontainers.WithImage("localstack/localstack:3.0"),
		testcontainers.WithEnv(map[string]string{
			"SERVICES": "dynamodb",
		}),
	)
	require.NoError(t, err, "Failed to start LocalStack")
	defer container.Terminate(ctx)

	mappedPort, err := container.MappedPort(ctx, "4566/tcp")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)
	endpoint := fmt.Sprintf("http://%s:%s", host, mappedPort.Port())

	awsOpts := config.AwsConfig{
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}
	awsCfg, err := awsclient.Load(ctx, awsOpts, "us-east-1")
	require.NoError(t, err)

	// Open creates the table on first use
	store, err := history.Open(ctx, history.OpenOptions{
		Config:     config.HistoryConfig{Type: "dynamodb"},
		AWS:        awsCfg,
		AWSOptions: awsOpts,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := history.NewRecord("demo-shop", fmt.Sprintf("site-%d", i), "s3_site",
			base.Add(time.Duration(i)*time.Minute), 2*time.Second, nil,
			map[string]string{"bucket": "demo-shop-site"})
		require.NoError(t, store.Append(ctx, rec))
	}
	require.NoError(t, store.Append(ctx,
		history.NewRecord("other", "host", "ec2_host", base, time.Second, errors.New("boom"), nil)))

	t.Run("list_returns_newest_first", func(t *testing.T) {
		records, err := store.List(ctx, "demo-shop")
		require.NoError(t, err)
		require.Len(t, records, 5)

		assert.Equal(t, "site-4", records[0].TaskName)
		assert.Equal(t, "site-0", records[4].TaskName)
		assert.Equal(t, "demo-shop-site", records[0].Outputs["bucket"])
	})

	t.Run("empty_project_lists_everything", func(t *testing.T) {
		records, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, records, 6)
	})

	t.Run("failures_keep_their_error", func(t *testing.T) {
		records, err := store.List(ctx, "other")
		require.NoError(t, err)
		require.Len(t, records, 1)

		assert.False(t, records[0].Success)
		assert.Equal(t, "boom", records[0].Error)
	})

	t.Run("prune_keeps_the_newest", func(t *testing.T) {
		removed, err := store.Prune(ctx, "demo-shop", 2)
		require.NoError(t, err)
		assert.Equal(t, 3, removed)

		records, err := store.List(ctx, "demo-shop")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "site-4", records[0].TaskName)
		assert.Equal(t, "site-3", records[1].TaskName)

		others, err := store.List(ctx, "other")
		require.NoError(t, err)
		assert.Len(t, others, 1, "pruning one project must not touch another")
	})

	t.Run("reopen_finds_the_existing_table", func(t *testing.T) {
		again, err := history.Open(ctx, history.OpenOptions{
			Config:     config.HistoryConfig{Type: "dynamodb"},
			AWS:        awsCfg,
			AWSOptions: awsOpts,
			Logger:     zerolog.Nop(),
		})
		require.NoError(t, err)
		defer again.Close()

		records, err := again.List(ctx, "other")
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}
