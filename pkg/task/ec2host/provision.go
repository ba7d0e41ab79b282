package ec2host

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/williamokano/web_deployer/pkg/awsclient"
	"github.com/williamokano/web_deployer/pkg/remote"
	"github.com/williamokano/web_deployer/pkg/task"
	"github.com/williamokano/web_deployer/pkg/userdata"
)

func (t *Task) resolveAMI(ctx context.Context) (string, error) {
	param, err := t.ssm.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(amiParameterAL2023),
	})
	if err != nil {
		return "", task.WrapError(t.name, "resolve ami", err)
	}

	ami := aws.ToString(param.Parameter.Value)
	t.logger.Info().Str("ami", ami).Msg("resolved latest Amazon Linux 2023 AMI")
	return ami, nil
}

func (t *Task) ensureKeyPair(ctx context.Context) error {
	material, err := os.ReadFile(t.opts.publicKeyPath)
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}

	_, err = t.ec2.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
		KeyName:           aws.String(t.opts.keyName),
		PublicKeyMaterial: material,
	})
	if err != nil {
		if awsclient.IsError(err, "InvalidKeyPair.Duplicate") {
			t.logger.Debug().Str("key_name", t.opts.keyName).Msg("key pair already imported")
			return nil
		}
		return task.WrapError(t.name, "import key pair", err)
	}

	t.logger.Info().Str("key_name", t.opts.keyName).Msg("key pair imported")
	return nil
}

// ensureSecurityGroup creates (or finds) the <project>-web group and opens
// SSH plus HTTP to the world, the way the exercises expect a lab host to look
func (t *Task) ensureSecurityGroup(ctx context.Context) (string, error) {
	groupName := t.project + "-web"

	var groupID string
	created, err := t.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(groupName),
		Description: aws.String("SSH and HTTP for " + t.project),
	})
	switch {
	case err == nil:
		groupID = aws.ToString(created.GroupId)
		t.logger.Info().Str("security_group", groupName).Str("id", groupID).Msg("security group created")
	case awsclient.IsError(err, "InvalidGroup.Duplicate"):
		existing, derr := t.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
			Filters: []types.Filter{
				{Name: aws.String("group-name"), Values: []string{groupName}},
			},
		})
		if derr != nil {
			return "", task.WrapError(t.name, "describe security group", derr)
		}
		if len(existing.SecurityGroups) == 0 {
			return "", fmt.Errorf("security group %s not found after duplicate error", groupName)
		}
		groupID = aws.ToString(existing.SecurityGroups[0].GroupId)
		t.logger.Debug().Str("security_group", groupName).Str("id", groupID).Msg("security group already exists")
	default:
		return "", task.WrapError(t.name, "create security group", err)
	}

	for _, perm := range ingressPermissions(t.opts.extraPorts) {
		_, err := t.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: []types.IpPermission{perm},
		})
		if err != nil && !awsclient.IsError(err, "InvalidPermission.Duplicate") {
			return "", task.WrapError(t.name, "authorize ingress", err)
		}
	}

	return groupID, nil
}

// ingressPermissions builds world-open tcp rules for SSH, HTTP, and any extra
// ports, one permission per port so a rerun can skip the duplicates it
// already authorized without losing the new ones
func ingressPermissions(extra []int) []types.IpPermission {
	ports := append([]int{22, 80}, extra...)
	perms := make([]types.IpPermission, 0, len(ports))
	for _, port := range ports {
		perms = append(perms, types.IpPermission{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(int32(port)),
			ToPort:     aws.Int32(int32(port)),
			IpRanges: []types.IpRange{
				{CidrIp: aws.String("0.0.0.0/0")},
			},
		})
	}
	return perms
}

func (t *Task) renderUserData() (string, error) {
	content := userdata.Content{
		SiteTitle:    t.opts.siteTitle,
		Message:      t.opts.message,
		AppImage:     t.opts.appImage,
		AppPort:      t.opts.appPort,
		User:         t.opts.sshUser,
		EnableOnBoot: true,
	}

	encoded, err := userdata.RenderBase64(t.opts.bootstrap, content)
	if err != nil {
		return "", task.WrapError(t.name, "render user data", err)
	}
	return encoded, nil
}

func (t *Task) runInstance(ctx context.Context, ami, sgID, script string) (string, error) {
	input := &ec2.RunInstancesInput{
		ImageId:          aws.String(ami),
		InstanceType:     types.InstanceType(t.opts.instanceType),
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		SecurityGroupIds: []string{sgID},
		UserData:         aws.String(script),
		TagSpecifications: []types.TagSpecification{
			{
				ResourceType: types.ResourceTypeInstance,
				Tags: []types.Tag{
					{Key: aws.String("Name"), Value: aws.String(t.project + "-web")},
					{Key: aws.String("managed-by"), Value: aws.String("web_deployer")},
				},
			},
		},
	}
	if t.opts.useKeyName {
		input.KeyName = aws.String(t.opts.keyName)
	}

	out, err := t.ec2.RunInstances(ctx, input)
	if err != nil {
		return "", task.WrapError(t.name, "run instance", err)
	}
	if len(out.Instances) == 0 {
		return "", fmt.Errorf("run instance returned no instances")
	}

	id := aws.ToString(out.Instances[0].InstanceId)
	t.logger.Info().
		Str("instance_id", id).
		Str("instance_type", t.opts.instanceType).
		Str("bootstrap", string(t.opts.bootstrap)).
		Msg("instance launched")
	return id, nil
}

func (t *Task) waitRunning(ctx context.Context, instanceID string) (*types.Instance, error) {
	input := &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}}

	waiter := ec2.NewInstanceRunningWaiter(t.ec2)
	if err := waiter.Wait(ctx, input, t.opts.waitTimeout); err != nil {
		return nil, fmt.Errorf("instance %s did not reach running state: %w", instanceID, task.ErrTimeout)
	}

	out, err := t.ec2.DescribeInstances(ctx, input)
	if err != nil {
		return nil, task.WrapError(t.name, "describe instance", err)
	}
	if len(out.Reservations) == 0 || len(out.Reservations[0].Instances) == 0 {
		return nil, fmt.Errorf("instance %s disappeared after launch", instanceID)
	}

	inst := out.Reservations[0].Instances[0]
	return &inst, nil
}

// verifyBootstrap connects over SSH once the host accepts connections and
// waits for cloud-init to report the user data finished
func (t *Task) verifyBootstrap(ctx context.Context, host string) error {
	if host == "" {
		return fmt.Errorf("instance has no public address to verify: %w", task.ErrPreconditionFailed)
	}

	keyPath, err := remote.FindKeyPath(t.opts.sshKeyPath, t.project)
	if err != nil {
		return fmt.Errorf("%v: %w", err, task.ErrPreconditionFailed)
	}

	waitCtx, cancel := context.WithTimeout(ctx, t.opts.waitTimeout)
	defer cancel()

	client, err := remote.WaitReady(waitCtx, remote.Options{
		Host:    host,
		User:    t.opts.sshUser,
		KeyPath: keyPath,
	}, 10*time.Second, t.logger)
	if err != nil {
		return err
	}
	defer client.Close()

	output, err := client.Run(ctx, "cloud-init status --wait")
	if err != nil {
		return fmt.Errorf("bootstrap verification failed: %w", err)
	}

	t.logger.Info().Str("cloud_init", strings.TrimSpace(output)).Msg("bootstrap verified")
	return nil
}
