package task

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"

	"github.com/williamokano/web_deployer/pkg/config"
)

// Task represents a single deployment step that can be executed against
// AWS or a local Docker daemon
type Task interface {
	// Name returns the user-assigned name for this task (e.g., "site", "push_counter")
	Name() string

	// Type returns the task type (s3_site, ec2_host, ecr_push, ecs_service,
	// docker_build, docker_volume, docker_network, compose_app)
	Type() string

	// Execute performs the deployment step. Outputs carries the values a
	// user needs afterwards (website URL, instance ID, image reference).
	Execute(ctx context.Context) (Outputs, error)

	// Close releases resources (API clients, SSH sessions)
	Close() error
}

// Outputs carries the key facts produced by a task execution
type Outputs map[string]string

// Deps carries the shared dependencies handed to task constructors
type Deps struct {
	Project    string           // project name, used as resource prefix
	WorkDir    string           // scratch dir for rendered artifacts and logs
	Region     string           // effective AWS region
	AWS        aws.Config       // resolved AWS SDK configuration
	AWSOptions config.AwsConfig // raw aws section (endpoint override, path style)
	MaxUploads int              // concurrency limit for S3 uploads
	Logger     zerolog.Logger
}

// Result represents the outcome of a task execution
type Result struct {
	TaskName  string
	TaskType  string
	Success   bool
	Error     error
	StartedAt time.Time
	Duration  time.Duration
	Outputs   Outputs
}
