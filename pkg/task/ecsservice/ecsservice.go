package ecsservice

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/rs/zerolog"

	"github.com/williamokano/web_deployer/pkg/awsclient"
	"github.com/williamokano/web_deployer/pkg/config"
	"github.com/williamokano/web_deployer/pkg/task"
)

// Fargate's smallest task size, plenty for the sample apps
const (
	defaultCPU    = "256"
	defaultMemory = "512"
)

// Task runs a container image as a Fargate service, registering a new task
// definition revision and rolling the service onto it
type Task struct {
	name    string
	ecs     *ecs.Client
	opts    options
	project string
	logger  zerolog.Logger
}

type options struct {
	cluster          string
	service          string
	family           string
	containerName    string
	image            string // required, typically the ecr_push output
	containerPort    int
	cpu              string
	memory           string
	desiredCount     int
	executionRoleArn string
	subnets          []string
	securityGroups   []string
	assignPublicIP   bool
	wait             bool
	waitTimeout      time.Duration
}

func init() {
	task.Register("ecs_service", func(ctx context.Context, deps task.Deps, cfg config.TaskConfig) (task.Task, error) {
		return New(ctx, deps, cfg)
	})
}

// New creates an ecs_service task
func New(ctx context.Context, deps task.Deps, cfg config.TaskConfig) (*Task, error) {
	opts, err := parseOptions(deps.Project, cfg.Options)
	if err != nil {
		return nil, err
	}

	return &Task{
		name:    cfg.Name,
		ecs:     awsclient.NewECS(deps.AWS, deps.AWSOptions),
		opts:    opts,
		project: deps.Project,
		logger:  deps.Logger.With().Str("task", cfg.Name).Logger(),
	}, nil
}

func parseOptions(project string, raw map[string]interface{}) (options, error) {
	o := task.Options(raw)

	if err := o.Require("image"); err != nil {
		return options{}, err
	}
	img := o.StringDefault("image", "")
	if img == "" {
		return options{}, fmt.Errorf("option \"image\" must be a non-empty string: %w", task.ErrInvalidConfig)
	}

	subnets, err := o.StringSlice("subnets")
	if err != nil {
		return options{}, err
	}
	if len(subnets) == 0 {
		return options{}, fmt.Errorf("subnets is required, Fargate tasks need at least one: %w", task.ErrInvalidConfig)
	}

	securityGroups, err := o.StringSlice("security_groups")
	if err != nil {
		return options{}, err
	}

	timeout, err := o.DurationDefault("wait_timeout", 10*time.Minute)
	if err != nil {
		return options{}, err
	}

	opts := options{
		cluster:          o.StringDefault("cluster", project),
		service:          o.StringDefault("service", project+"-web"),
		family:           o.StringDefault("family", project+"-web"),
		containerName:    o.StringDefault("container_name", "web"),
		image:            img,
		containerPort:    o.IntDefault("container_port", 5000),
		cpu:              o.StringDefault("cpu", defaultCPU),
		memory:           o.StringDefault("memory", defaultMemory),
		desiredCount:     o.IntDefault("desired_count", 1),
		executionRoleArn: o.StringDefault("execution_role_arn", ""),
		subnets:          subnets,
		securityGroups:   securityGroups,
		assignPublicIP:   o.BoolDefault("assign_public_ip", true),
		wait:             o.BoolDefault("wait", true),
		waitTimeout:      timeout,
	}

	return opts, nil
}

func (t *Task) Name() string { return t.name }
func (t *Task) Type() string { return "ecs_service" }

// Execute ensures the cluster, registers a task definition revision for the
// image, and creates or updates the service to run it
func (t *Task) Execute(ctx context.Context) (task.Outputs, error) {
	if err := t.ensureCluster(ctx); err != nil {
		return nil, err
	}

	taskDefArn, err := t.registerTaskDefinition(ctx)
	if err != nil {
		return nil, err
	}

	if err := t.deployService(ctx, taskDefArn); err != nil {
		return nil, err
	}

	if t.opts.wait {
		if err := t.waitStable(ctx); err != nil {
			return nil, err
		}
	}

	return task.Outputs{
		"cluster":         t.opts.cluster,
		"service":         t.opts.service,
		"task_definition": taskDefArn,
		"desired_count":   strconv.Itoa(t.opts.desiredCount),
	}, nil
}

// Close is a no-op for ECS
func (t *Task) Close() error {
	return nil
}

func (t *Task) ensureCluster(ctx context.Context) error {
	described, err := t.ecs.DescribeClusters(ctx, &ecs.DescribeClustersInput{
		Clusters: []string{t.opts.cluster},
	})
	if err != nil {
		return task.WrapError(t.name, "describe cluster", err)
	}

	for _, c := range described.Clusters {
		if aws.ToString(c.Status) == "ACTIVE" {
			t.logger.Debug().Str("cluster", t.opts.cluster).Msg("cluster already exists")
			return nil
		}
	}

	_, err = t.ecs.CreateCluster(ctx, &ecs.CreateClusterInput{
		ClusterName: aws.String(t.opts.cluster),
	})
	if err != nil {
		return task.WrapError(t.name, "create cluster", err)
	}

	t.logger.Info().Str("cluster", t.opts.cluster).Msg("cluster created")
	return nil
}

func (t *Task) registerTaskDefinition(ctx context.Context) (string, error) {
	input := &ecs.RegisterTaskDefinitionInput{
		Family:                  aws.String(t.opts.family),
		RequiresCompatibilities: []types.Compatibility{types.CompatibilityFargate},
		NetworkMode:             types.NetworkModeAwsvpc,
		Cpu:                     aws.String(t.opts.cpu),
		Memory:                  aws.String(t.opts.memory),
		ContainerDefinitions: []types.ContainerDefinition{
			{
				Name:      aws.String(t.opts.containerName),
				Image:     aws.String(t.opts.image),
				Essential: aws.Bool(true),
				PortMappings: []types.PortMapping{
					{
						ContainerPort: aws.Int32(int32(t.opts.containerPort)),
						Protocol:      types.TransportProtocolTcp,
					},
				},
			},
		},
	}
	if t.opts.executionRoleArn != "" {
		input.ExecutionRoleArn = aws.String(t.opts.executionRoleArn)
	}

	out, err := t.ecs.RegisterTaskDefinition(ctx, input)
	if err != nil {
		return "", task.WrapError(t.name, "register task definition", err)
	}

	arn := aws.ToString(out.TaskDefinition.TaskDefinitionArn)
	t.logger.Info().
		Str("family", t.opts.family).
		Str("image", t.opts.image).
		Str("arn", arn).
		Msg("task definition registered")
	return arn, nil
}

// deployService updates the service when one is active, otherwise creates it.
// A previously deleted service lingers as INACTIVE and must be recreated.
func (t *Task) deployService(ctx context.Context, taskDefArn string) error {
	described, err := t.ecs.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(t.opts.cluster),
		Services: []string{t.opts.service},
	})
	if err != nil {
		return task.WrapError(t.name, "describe service", err)
	}

	for _, svc := range described.Services {
		if aws.ToString(svc.Status) == "INACTIVE" {
			continue
		}

		_, err := t.ecs.UpdateService(ctx, &ecs.UpdateServiceInput{
			Cluster:            aws.String(t.opts.cluster),
			Service:            aws.String(t.opts.service),
			TaskDefinition:     aws.String(taskDefArn),
			DesiredCount:       aws.Int32(int32(t.opts.desiredCount)),
			ForceNewDeployment: true,
		})
		if err != nil {
			return task.WrapError(t.name, "update service", err)
		}

		t.logger.Info().Str("service", t.opts.service).Msg("service updated")
		return nil
	}

	assign := types.AssignPublicIpDisabled
	if t.opts.assignPublicIP {
		assign = types.AssignPublicIpEnabled
	}

	_, err = t.ecs.CreateService(ctx, &ecs.CreateServiceInput{
		Cluster:        aws.String(t.opts.cluster),
		ServiceName:    aws.String(t.opts.service),
		TaskDefinition: aws.String(taskDefArn),
		DesiredCount:   aws.Int32(int32(t.opts.desiredCount)),
		LaunchType:     types.LaunchTypeFargate,
		NetworkConfiguration: &types.NetworkConfiguration{
			AwsvpcConfiguration: &types.AwsVpcConfiguration{
				Subnets:        t.opts.subnets,
				SecurityGroups: t.opts.securityGroups,
				AssignPublicIp: assign,
			},
		},
	})
	if err != nil {
		return task.WrapError(t.name, "create service", err)
	}

	t.logger.Info().
		Str("service", t.opts.service).
		Str("cluster", t.opts.cluster).
		Msg("service created")
	return nil
}

func (t *Task) waitStable(ctx context.Context) error {
	t.logger.Info().
		Str("service", t.opts.service).
		Dur("timeout", t.opts.waitTimeout).
		Msg("waiting for service to stabilize")

	waiter := ecs.NewServicesStableWaiter(t.ecs)
	err := waiter.Wait(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(t.opts.cluster),
		Services: []string{t.opts.service},
	}, t.opts.waitTimeout)
	if err != nil {
		return fmt.Errorf("service %s did not stabilize: %w", t.opts.service, task.ErrTimeout)
	}

	t.logger.Info().Str("service", t.opts.service).Msg("service is stable")
	return nil
}
