package dockerbuild

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"

	"github.com/williamokano/web_deployer/pkg/config"
	"github.com/williamokano/web_deployer/pkg/dockerfile"
	"github.com/williamokano/web_deployer/pkg/dockerutil"
	"github.com/williamokano/web_deployer/pkg/task"
)

// Task builds a container image from a local context. When the context has
// no Dockerfile one is rendered from the built-in templates and injected
// into the build context.
type Task struct {
	name    string
	docker  *client.Client
	opts    options
	project string
	logger  zerolog.Logger
}

type options struct {
	image      string
	contextDir string
	dockerfile string // existing Dockerfile relative to the context, empty renders one
	variant    dockerfile.Variant
	params     dockerfile.Params
	noCache    bool
}

func init() {
	task.Register("docker_build", func(ctx context.Context, deps task.Deps, cfg config.TaskConfig) (task.Task, error) {
		return New(ctx, deps, cfg)
	})
}

// New creates a docker_build task
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
		opts:    opts,
		project: deps.Project,
		logger:  deps.Logger.With().Str("task", cfg.Name).Logger(),
	}, nil
}

func parseOptions(project string, raw map[string]interface{}) (options, error) {
	o := task.Options(raw)

	variant, err := dockerfile.ParseVariant(o.StringDefault("variant", string(dockerfile.VariantMulti)))
	if err != nil {
		return options{}, fmt.Errorf("%v: %w", err, task.ErrInvalidConfig)
	}

	binary := o.StringDefault("binary", project)
	params := dockerfile.DefaultParams(binary)
	params.BaseImage = o.StringDefault("base_image", params.BaseImage)
	params.RuntimeImage = o.StringDefault("runtime_image", params.RuntimeImage)
	params.Port = o.IntDefault("port", params.Port)

	entrypoint, err := o.StringSlice("entrypoint")
	if err != nil {
		return options{}, err
	}
	if len(entrypoint) > 0 {
		params.Entrypoint = entrypoint
	}

	opts := options{
		image:      o.StringDefault("image", project+":latest"),
		contextDir: o.StringDefault("context", "."),
		dockerfile: o.StringDefault("dockerfile", ""),
		variant:    variant,
		params:     params,
		noCache:    o.BoolDefault("no_cache", false),
	}

	return opts, nil
}

func (t *Task) Name() string { return t.name }
func (t *Task) Type() string { return "docker_build" }

// Execute assembles the build context, runs the build, and resolves the
// resulting image ID
func (t *Task) Execute(ctx context.Context) (task.Outputs, error) {
	info, err := os.Stat(t.opts.contextDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("build context %s is not a directory: %w", t.opts.contextDir, task.ErrPreconditionFailed)
	}

	dockerfilePath, extra, err := t.resolveDockerfile()
	if err != nil {
		return nil, err
	}

	buildContext, err := dockerutil.BuildContextTar(t.opts.contextDir, extra)
	if err != nil {
		return nil, task.WrapError(t.name, "prepare build context", err)
	}

	t.logger.Info().
		Str("image", t.opts.image).
		Str("context", t.opts.contextDir).
		Msg("building image")

	resp, err := t.docker.ImageBuild(ctx, buildContext, build.ImageBuildOptions{
		Tags:       []string{t.opts.image},
		Dockerfile: dockerfilePath,
		Remove:     true,
		NoCache:    t.opts.noCache,
		Labels:     dockerutil.Labels(),
	})
	if err != nil {
		return nil, task.WrapError(t.name, "build image", err)
	}
	defer resp.Body.Close()

	if err := dockerutil.DecodeStream(resp.Body, t.logger); err != nil {
		return nil, task.WrapError(t.name, "build image", err)
	}

	imageID, err := t.lookupImageID(ctx)
	if err != nil {
		return nil, err
	}

	t.logger.Info().Str("image", t.opts.image).Str("id", imageID).Msg("image built")

	return task.Outputs{
		"image":    t.opts.image,
		"image_id": imageID,
	}, nil
}

// Close releases the Docker client
func (t *Task) Close() error {
	return t.docker.Close()
}

// resolveDockerfile returns the Dockerfile path inside the context and, when
// rendering, the extra file to inject into the archive
func (t *Task) resolveDockerfile() (string, map[string][]byte, error) {
	if t.opts.dockerfile != "" {
		full := filepath.Join(t.opts.contextDir, t.opts.dockerfile)
		if _, err := os.Stat(full); err != nil {
			return "", nil, fmt.Errorf("dockerfile %s not found: %w", full, task.ErrPreconditionFailed)
		}
		return t.opts.dockerfile, nil, nil
	}

	content, err := dockerfile.Render(t.opts.variant, t.opts.params)
	if err != nil {
		return "", nil, task.WrapError(t.name, "render dockerfile", err)
	}

	t.logger.Info().Str("variant", string(t.opts.variant)).Msg("rendered dockerfile")
	return "Dockerfile", map[string][]byte{"Dockerfile": content}, nil
}

func (t *Task) lookupImageID(ctx context.Context) (string, error) {
	images, err := t.docker.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", t.opts.image)),
	})
	if err != nil {
		return "", task.WrapError(t.name, "list images", err)
	}
	if len(images) == 0 {
		return "", fmt.Errorf("image %s missing after build", t.opts.image)
	}
	return images[0].ID, nil
}
