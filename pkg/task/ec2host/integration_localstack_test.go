//go:build integration
// +build integration

package ec2host

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"

	"github.com/williamokano/web_deployer/pkg/awsclient"
	"github.com/williamokano/web_deployer/pkg/config"
	"github.com/williamokano/web_deployer/pkg/task"
)

func TestEC2HostIntegration(t *testing.T) {
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
	}

	awsCfg, err := awsclient.Load(ctx, awsOpts, "us-east-1")
	require.NoError(t, err)

	client := awsclient.NewEC2(awsCfg, awsOpts)

	// LocalStack ships a set of mock Amazon images; pin the AMI explicitly so
	// the task does not go through the public SSM parameter, which the
	// emulator does not serve
	images, err := client.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{"amazon"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, images.Images)
	baseAMI := aws.ToString(images.Images[0].ImageId)

	deps := task.Deps{
		Project:    "classroom",
		WorkDir:    t.TempDir(),
		Region:     "us-east-1",
		AWS:        awsCfg,
		AWSOptions: awsOpts,
		Logger:     zerolog.Nop(),
	}

	tk, err := New(ctx, deps, config.TaskConfig{
		Name: "host",
		Type: "ec2_host",
		Options: map[string]interface{}{
			"ami":        baseAMI,
			"open_ports": []interface{}{8080},
		},
	})
	require.NoError(t, err)
	defer tk.Close()

	outputs, err := tk.Execute(ctx)
	require.NoError(t, err)

	t.Run("launch_outputs", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(outputs["instance_id"], "i-"), "instance_id: %s", outputs["instance_id"])
		assert.Equal(t, baseAMI, outputs["ami"])
		assert.True(t, strings.HasPrefix(outputs["security_group_id"], "sg-"), "security_group_id: %s", outputs["security_group_id"])
	})

	t.Run("instance_is_running_with_user_data", func(t *testing.T) {
		out, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			InstanceIds: []string{outputs["instance_id"]},
		})
		require.NoError(t, err)
		require.Len(t, out.Reservations, 1)
		require.Len(t, out.Reservations[0].Instances, 1)

		inst := out.Reservations[0].Instances[0]
		assert.Equal(t, types.InstanceStateNameRunning, inst.State.Name)

		var nameTag string
		for _, tag := range inst.Tags {
			if aws.ToString(tag.Key) == "Name" {
				nameTag = aws.ToString(tag.Value)
			}
		}
		assert.Equal(t, "classroom-web", nameTag)

		attr, err := client.DescribeInstanceAttribute(ctx, &ec2.DescribeInstanceAttributeInput{
			InstanceId: aws.String(outputs["instance_id"]),
			Attribute:  types.InstanceAttributeNameUserData,
		})
		require.NoError(t, err)
		require.NotNil(t, attr.UserData)

		script, err := base64.StdEncoding.DecodeString(aws.ToString(attr.UserData.Value))
		require.NoError(t, err)
		assert.Contains(t, string(script), "#!/bin/bash")
		assert.Contains(t, string(script), "httpd", "default bootstrap installs Apache")
	})

	t.Run("security_group_opens_requested_ports", func(t *testing.T) {
		out, err := client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
			Filters: []types.Filter{
				{Name: aws.String("group-name"), Values: []string{"classroom-web"}},
			},
		})
		require.NoError(t, err)
		require.Len(t, out.SecurityGroups, 1)

		open := make(map[int32]bool)
		for _, perm := range out.SecurityGroups[0].IpPermissions {
			if perm.FromPort != nil {
				open[aws.ToInt32(perm.FromPort)] = true
			}
		}
		assert.True(t, open[22], "SSH")
		assert.True(t, open[80], "HTTP")
		assert.True(t, open[8080], "extra port from open_ports")
	})

	t.Run("second_run_reuses_the_security_group", func(t *testing.T) {
		second, err := tk.Execute(ctx)
		require.NoError(t, err)

		assert.Equal(t, outputs["security_group_id"], second["security_group_id"])
		assert.NotEqual(t, outputs["instance_id"], second["instance_id"], "each run launches a fresh instance")
	})
}

// setupLocalStack starts a LocalStack container with EC2 and returns its endpoint
func setupLocalStack(ctx context.Context) (*localstack.LocalStackContainer, string, error) {
	container, err := localstack.RunContainer(ctx,
		testcontainers.WithImage("localstack/localstack:3.0"),
		testcontainers.WithEnv(map[string]string{
			"SERVICES": "ec2",
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
