package ecrpush

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"

	"github.com/williamokano/web_deployer/pkg/awsclient"
	"github.com/williamokano/web_deployer/pkg/config"
	"github.com/williamokano/web_deployer/pkg/dockerutil"
	"github.com/williamokano/web_deployer/pkg/task"
)

// Task tags a locally built image for an ECR repository and pushes it,
// creating the repository on first use
type Task struct {
	name    string
	docker  *client.Client
	ecr     *ecr.Client
	opts    options
	project string
	logger  zerolog.Logger
}

type options struct {
	image      string // local image reference, must already exist
	repository string
	tag        string
}

func init() {
	task.Register("ecr_push", func(ctx context.Context, deps task.Deps, cfg config.TaskConfig) (task.Task, error) {
		return New(ctx, deps, cfg)
	})
}

// New creates an ecr_push task
func New(ctx context.Context, deps task.Deps, cfg config.TaskConfig) (*Task, error) {
	opts, err := parseOptions(deps.Project, cfg.Options)
	if err != nil {
		return nil, err
	}

	docker, err := dockerutil.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, task.ErrConnFailed)
	}

	return &Task{
		name:    cfg.Name,
		docker:  docker,
		ecr:     awsclient.NewECR(deps.AWS, deps.AWSOptions),
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

	opts := options{
		image:      img,
		repository: o.StringDefault("repository", project),
		tag:        o.StringDefault("tag", tagOf(img)),
	}

	return opts, nil
}

// tagOf extracts the tag from a local image reference, defaulting to latest
func tagOf(ref string) string {
	name := ref
	if idx := strings.LastIndex(ref, "/"); idx >= 0 {
		name = ref[idx+1:]
	}
	if idx := strings.LastIndex(name, ":"); idx >= 0 {
		return name[idx+1:]
	}
	return "latest"
}

func (t *Task) Name() string { return t.name }
func (t *Task) Type() string { return "ecr_push" }

// Execute verifies the image exists locally, ensures the repository, logs in
// with a fresh authorization token, then tags and pushes
func (t *Task) Execute(ctx context.Context) (task.Outputs, error) {
	if err := t.checkLocalImage(ctx); err != nil {
		return nil, err
	}

	repositoryURI, err := t.ensureRepository(ctx)
	if err != nil {
		return nil, err
	}

	registryAuth, registryHost, err := t.login(ctx)
	if err != nil {
		return nil, err
	}

	target := repositoryURI + ":" + t.opts.tag
	if err := t.docker.ImageTag(ctx, t.opts.image, target); err != nil {
		return nil, task.WrapError(t.name, "tag image", err)
	}
	t.logger.Info().Str("source", t.opts.image).Str("target", target).Msg("image tagged")

	if err := t.push(ctx, target, registryAuth); err != nil {
		return nil, err
	}

	return task.Outputs{
		"image_ref":      target,
		"repository_uri": repositoryURI,
		"registry":       registryHost,
	}, nil
}

// Close releases the Docker client
func (t *Task) Close() error {
	return t.docker.Close()
}

func (t *Task) checkLocalImage(ctx context.Context) error {
	images, err := t.docker.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", t.opts.image)),
	})
	if err != nil {
		return task.WrapError(t.name, "list images", err)
	}
	if len(images) == 0 {
		return fmt.Errorf("image %s not found locally, build it first: %w", t.opts.image, task.ErrPreconditionFailed)
	}
	return nil
}

func (t *Task) ensureRepository(ctx context.Context) (string, error) {
	described, err := t.ecr.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
		RepositoryNames: []string{t.opts.repository},
	})
	if err == nil {
		uri := aws.ToString(described.Repositories[0].RepositoryUri)
		t.logger.Debug().Str("repository", t.opts.repository).Msg("repository already exists")
		return uri, nil
	}

	var notFound *ecrtypes.RepositoryNotFoundException
	if !errors.As(err, &notFound) {
		return "", task.WrapError(t.name, "describe repository", err)
	}

	created, err := t.ecr.CreateRepository(ctx, &ecr.CreateRepositoryInput{
		RepositoryName: aws.String(t.opts.repository),
	})
	if err != nil {
		return "", task.WrapError(t.name, "create repository", err)
	}

	uri := aws.ToString(created.Repository.RepositoryUri)
	t.logger.Info().Str("repository", t.opts.repository).Str("uri", uri).Msg("repository created")
	return uri, nil
}

// login fetches a short-lived authorization token. The token decodes to
// user:password where the user is always AWS.
func (t *Task) login(ctx context.Context) (string, string, error) {
	out, err := t.ecr.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return "", "", fmt.Errorf("failed to get authorization token: %v: %w", err, task.ErrAuthFailed)
	}
	if len(out.AuthorizationData) == 0 {
		return "", "", fmt.Errorf("no authorization data returned: %w", task.ErrAuthFailed)
	}

	data := out.AuthorizationData[0]
	decoded, err := base64.StdEncoding.DecodeString(aws.ToString(data.AuthorizationToken))
	if err != nil {
		return "", "", fmt.Errorf("failed to decode authorization token: %v: %w", err, task.ErrAuthFailed)
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("malformed authorization token: %w", task.ErrAuthFailed)
	}

	registryHost := strings.TrimPrefix(aws.ToString(data.ProxyEndpoint), "https://")

	registryAuth, err := dockerutil.RegistryAuth(parts[0], parts[1], registryHost)
	if err != nil {
		return "", "", task.WrapError(t.name, "encode registry auth", err)
	}

	t.logger.Debug().Str("registry", registryHost).Msg("obtained registry credentials")
	return registryAuth, registryHost, nil
}

func (t *Task) push(ctx context.Context, ref, registryAuth string) error {
	return task.WithRetry(ctx, task.DefaultRetryConfig(), t.logger, "push image", func() error {
		resp, err := t.docker.ImagePush(ctx, ref, image.PushOptions{
			RegistryAuth: registryAuth,
		})
		if err != nil {
			return fmt.Errorf("failed to start push: %v: %w", err, task.ErrConnFailed)
		}
		defer resp.Close()

		if err := dockerutil.DecodeStream(resp, t.logger); err != nil {
			if isDenied(err) {
				return fmt.Errorf("%v: %w", err, task.ErrAuthFailed)
			}
			return fmt.Errorf("push failed: %v: %w", err, task.ErrConnFailed)
		}

		t.logger.Info().Str("image", ref).Msg("image pushed")
		return nil
	})
}

func isDenied(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "denied") || strings.Contains(msg, "unauthorized")
}
