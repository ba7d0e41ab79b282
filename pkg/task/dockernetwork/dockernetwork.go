package dockernetwork

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"

	"github.com/williamokano/web_deployer/pkg/config"
	"github.com/williamokano/web_deployer/pkg/dockerutil"
	"github.com/williamokano/web_deployer/pkg/task"
)

// Task manages a user-defined bridge network so containers in the exercises
// can reach each other by name
type Task struct {
	name    string
	docker  *client.Client
	opts    options
	project string
	logger  zerolog.Logger
}

type options struct {
	network string
	driver  string
	remove  bool
}

func init() {
	task.Register("docker_network", func(ctx context.Context, deps task.Deps, cfg config.TaskConfig) (task.Task, error) {
		return New(ctx, deps, cfg)
	})
}

// New creates a docker_network task
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

	opts := options{
		network: o.StringDefault("network", project+"-net"),
		driver:  o.StringDefault("driver", "bridge"),
		remove:  o.BoolDefault("remove", false),
	}

	switch opts.network {
	case "bridge", "host", "none":
		return options{}, fmt.Errorf("network name %q is reserved by docker: %w", opts.network, task.ErrInvalidConfig)
	}

	return opts, nil
}

func (t *Task) Name() string { return t.name }
func (t *Task) Type() string { return "docker_network" }

// Execute creates the network, or removes it when the remove option is set
func (t *Task) Execute(ctx context.Context) (task.Outputs, error) {
	existing, err := t.find(ctx)
	if err != nil {
		return nil, err
	}

	if t.opts.remove {
		return t.removeNetwork(ctx, existing)
	}
	return t.createNetwork(ctx, existing)
}

// Close releases the Docker client
func (t *Task) Close() error {
	return t.docker.Close()
}

// find returns the network with exactly this name. The daemon's name filter
// matches substrings, so the result needs a second pass.
func (t *Task) find(ctx context.Context) (*network.Summary, error) {
	listed, err := t.docker.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", t.opts.network)),
	})
	if err != nil {
		return nil, task.WrapError(t.name, "list networks", err)
	}

	for i := range listed {
		if listed[i].Name == t.opts.network {
			return &listed[i], nil
		}
	}
	return nil, nil
}

func (t *Task) createNetwork(ctx context.Context, existing *network.Summary) (task.Outputs, error) {
	if existing != nil {
		t.logger.Debug().Str("network", t.opts.network).Msg("network already exists")
		return task.Outputs{
			"network":    existing.Name,
			"network_id": existing.ID,
			"driver":     existing.Driver,
			"action":     "none",
		}, nil
	}

	created, err := t.docker.NetworkCreate(ctx, t.opts.network, network.CreateOptions{
		Driver: t.opts.driver,
		Labels: dockerutil.Labels(),
	})
	if err != nil {
		return nil, task.WrapError(t.name, "create network", err)
	}
	if created.Warning != "" {
		t.logger.Warn().Str("network", t.opts.network).Msg(created.Warning)
	}

	t.logger.Info().Str("network", t.opts.network).Str("driver", t.opts.driver).Msg("network created")

	return task.Outputs{
		"network":    t.opts.network,
		"network_id": created.ID,
		"driver":     t.opts.driver,
		"action":     "created",
	}, nil
}

func (t *Task) removeNetwork(ctx context.Context, existing *network.Summary) (task.Outputs, error) {
	if existing == nil {
		t.logger.Debug().Str("network", t.opts.network).Msg("network already absent")
		return task.Outputs{"network": t.opts.network, "action": "none"}, nil
	}

	if err := t.docker.NetworkRemove(ctx, existing.ID); err != nil {
		return nil, task.WrapError(t.name, "remove network", err)
	}

	t.logger.Info().Str("network", t.opts.network).Msg("network removed")
	return task.Outputs{"network": t.opts.network, "action": "removed"}, nil
}
