package ec2host

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"

	"github.com/williamokano/web_deployer/pkg/awsclient"
	"github.com/williamokano/web_deployer/pkg/config"
	"github.com/williamokano/web_deployer/pkg/task"
	"github.com/williamokano/web_deployer/pkg/userdata"
)

const (
	// amiParameterAL2023 is the public SSM parameter tracking the latest
	// Amazon Linux 2023 AMI for x86_64
	amiParameterAL2023 = "/aws/service/ami-amazon-linux-latest/al2023-ami-kernel-default-x86_64"

	defaultInstanceType = "t3.micro"
)

// Task launches an EC2 instance bootstrapped by a rendered user-data script,
// either an Apache host serving a static page or a Docker host running the
// app container
type Task struct {
	name    string
	ec2     *ec2.Client
	ssm     *ssm.Client
	opts    options
	project string
	logger  zerolog.Logger
}

type options struct {
	ami           string
	instanceType  string
	keyName       string
	useKeyName    bool // only reference the key pair when one was configured
	publicKeyPath string
	bootstrap     userdata.Kind
	siteTitle     string
	message       string
	appImage      string
	appPort       int
	extraPorts    []int
	verifySSH     bool
	sshKeyPath    string
	sshUser       string
	waitTimeout   time.Duration
}

func init() {
	task.Register("ec2_host", func(ctx context.Context, deps task.Deps, cfg config.TaskConfig) (task.Task, error) {
		return New(ctx, deps, cfg)
	})
}

// New creates an ec2_host task
func New(ctx context.Context, deps task.Deps, cfg config.TaskConfig) (*Task, error) {
	opts, err := parseOptions(deps.Project, cfg.Options)
	if err != nil {
		return nil, err
	}

	return &Task{
		name:    cfg.Name,
		ec2:     awsclient.NewEC2(deps.AWS, deps.AWSOptions),
		ssm:     awsclient.NewSSM(deps.AWS, deps.AWSOptions),
		opts:    opts,
		project: deps.Project,
		logger:  deps.Logger.With().Str("task", cfg.Name).Logger(),
	}, nil
}

func parseOptions(project string, raw map[string]interface{}) (options, error) {
	o := task.Options(raw)

	kind, err := userdata.ParseKind(o.StringDefault("bootstrap", string(userdata.KindApache)))
	if err != nil {
		return options{}, fmt.Errorf("%v: %w", err, task.ErrInvalidConfig)
	}

	content := userdata.DefaultContent(project)
	keyName, keyNameSet := o.String("key_name")
	if !keyNameSet {
		keyName = project + "-key"
	}

	opts := options{
		ami:           o.StringDefault("ami", ""),
		instanceType:  o.StringDefault("instance_type", defaultInstanceType),
		keyName:       keyName,
		publicKeyPath: o.StringDefault("public_key_path", ""),
		bootstrap:     kind,
		siteTitle:     o.StringDefault("site_title", content.SiteTitle),
		message:       o.StringDefault("message", content.Message),
		appImage:      o.StringDefault("app_image", ""),
		appPort:       o.IntDefault("app_port", content.AppPort),
		verifySSH:     o.BoolDefault("verify_ssh", false),
		sshKeyPath:    o.StringDefault("ssh_key_path", ""),
		sshUser:       o.StringDefault("ssh_user", "ec2-user"),
	}
	opts.useKeyName = keyNameSet || opts.publicKeyPath != ""

	opts.extraPorts, err = o.IntSlice("open_ports")
	if err != nil {
		return options{}, err
	}

	opts.waitTimeout, err = o.DurationDefault("wait_timeout", 5*time.Minute)
	if err != nil {
		return options{}, err
	}

	if opts.verifySSH && !opts.useKeyName {
		return options{}, fmt.Errorf("verify_ssh needs a key pair (set public_key_path or key_name): %w", task.ErrInvalidConfig)
	}

	return opts, nil
}

func (t *Task) Name() string { return t.name }
func (t *Task) Type() string { return "ec2_host" }

// Execute provisions the host: resolve the AMI, ensure key pair and security
// group, launch with rendered user data, wait for running, then optionally
// verify the bootstrap over SSH
func (t *Task) Execute(ctx context.Context) (task.Outputs, error) {
	ami := t.opts.ami
	if ami == "" {
		resolved, err := t.resolveAMI(ctx)
		if err != nil {
			return nil, err
		}
		ami = resolved
	}

	if t.opts.publicKeyPath != "" {
		if err := t.ensureKeyPair(ctx); err != nil {
			return nil, err
		}
	}

	sgID, err := t.ensureSecurityGroup(ctx)
	if err != nil {
		return nil, err
	}

	script, err := t.renderUserData()
	if err != nil {
		return nil, err
	}

	instanceID, err := t.runInstance(ctx, ami, sgID, script)
	if err != nil {
		return nil, err
	}

	inst, err := t.waitRunning(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	outputs := task.Outputs{
		"instance_id":       instanceID,
		"ami":               ami,
		"security_group_id": sgID,
	}
	if ip := stringValue(inst.PublicIpAddress); ip != "" {
		outputs["public_ip"] = ip
	}
	if dns := stringValue(inst.PublicDnsName); dns != "" {
		outputs["public_dns"] = dns
	}

	if t.opts.verifySSH {
		if err := t.verifyBootstrap(ctx, outputs["public_ip"]); err != nil {
			return outputs, err
		}
		outputs["bootstrap_verified"] = "true"
	}

	return outputs, nil
}

// Close is a no-op for EC2
func (t *Task) Close() error {
	return nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
