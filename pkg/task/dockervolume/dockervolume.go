package dockervolume

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"

	"github.com/williamokano/web_deployer/pkg/config"
	"github.com/williamokano/web_deployer/pkg/dockerutil"
	"github.com/williamokano/web_deployer/pkg/task"
)

// Task manages a named volume used by the persistence exercises. Creation is
// idempotent and removal tolerates a volume that is already gone.
type Task struct {
	name    string
	docker  *client.Client
	opts    options
	project string
	logger  zerolog.Logger
}

type options struct {
	volume string
	driver string
	remove bool
}

func init() {
	task.Register("docker_volume", func(ctx context.Context, deps task.Deps, cfg config.TaskConfig) (task.Task, error) {
		return New(ctx, deps, cfg)
	})
}

// New creates a docker_volume task
func New(ctx context.Context, deps task.Deps, cfg config.TaskConfig) (*Task, error) {
	opts := parseOptions(deps.Project, cfg.Options)

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

func parseOptions(project string, raw map[string]interface{}) options {
	o := task.Options(raw)

	return options{
		volume: o.StringDefault("volume", project+"-data"),
		driver: o.StringDefault("driver", "local"),
		remove: o.BoolDefault("remove", false),
	}
}

func (t *Task) Name() string { return t.name }
func (t *Task) Type() string { return "docker_volume" }

// Execute creates the volume, or removes it when the remove option is set
func (t *Task) Execute(ctx context.Context) (task.Outputs, error) {
	existing, err := t.find(ctx)
	if err != nil {
		return nil, err
	}

	if t.opts.remove {
		return t.removeVolume(ctx, existing)
	}
	return t.createVolume(ctx, existing)
}

// Close releases the Docker client
func (t *Task) Close() error {
	return t.docker.Close()
}

// find returns the volume with exactly this name. The daemon's name filter
// matches substrings, so the result needs a second pass.
func (t *Task) find(ctx context.Context) (*volume.Volume, error) {
	listed, err := t.docker.VolumeList(ctx, volume.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", t.opts.volume)),
	})
	if err != nil {
		return nil, task.WrapError(t.name, "list volumes", err)
	}

	for _, v := range listed.Volumes {
		if v.Name == t.opts.volume {
			return v, nil
		}
	}
	return nil, nil
}

func (t *Task) createVolume(ctx context.Context, existing *volume.Volume) (task.Outputs, error) {
	if existing != nil {
		t.logger.Debug().Str("volume", t.opts.volume).Msg("volume already exists")
		return task.Outputs{
			"volume":     existing.Name,
			"mountpoint": existing.Mountpoint,
			"action":     "none",
		}, nil
	}

	created, err := t.docker.VolumeCreate(ctx, volume.CreateOptions{
		Name:   t.opts.volume,
		Driver: t.opts.driver,
		Labels: dockerutil.Labels(),
	})
	if err != nil {
		return nil, task.WrapError(t.name, "create volume", err)
	}

	t.logger.Info().Str("volume", created.Name).Str("driver", t.opts.driver).Msg("volume created")

	return task.Outputs{
		"volume":     created.Name,
		"mountpoint": created.Mountpoint,
		"action":     "created",
	}, nil
}

func (t *Task) removeVolume(ctx context.Context, existing *volume.Volume) (task.Outputs, error) {
	if existing == nil {
		t.logger.Debug().Str("volume", t.opts.volume).Msg("volume already absent")
		return task.Outputs{"volume": t.opts.volume, "action": "none"}, nil
	}

	if err := t.docker.VolumeRemove(ctx, t.opts.volume, false); err != nil {
		return nil, task.WrapError(t.name, "remove volume", err)
	}

	t.logger.Info().Str("volume", t.opts.volume).Msg("volume removed")
	return task.Outputs{"volume": t.opts.volume, "action": "removed"}, nil
}
