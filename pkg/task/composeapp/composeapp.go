package composeapp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/williamokano/web_deployer/pkg/compose"
	"github.com/williamokano/web_deployer/pkg/config"
	"github.com/williamokano/web_deployer/pkg/task"
)

// Task brings the visit counter stack up or down with the docker compose
// CLI. The compose file is rendered from the built-in project unless the
// config points at an existing one.
type Task struct {
	name    string
	opts    options
	project string
	workDir string
	logger  zerolog.Logger
}

type options struct {
	file          string // existing compose file, empty renders the built-in one
	action        string // up or down
	projectName   string
	build         bool
	removeVolumes bool
}

func init() {
	task.Register("compose_app", func(ctx context.Context, deps task.Deps, cfg config.TaskConfig) (task.Task, error) {
		return New(ctx, deps, cfg)
	})
}

// New creates a compose_app task
func New(ctx context.Context, deps task.Deps, cfg config.TaskConfig) (*Task, error) {
	opts, err := parseOptions(deps.Project, cfg.Options)
	if err != nil {
		return nil, err
	}

	return &Task{
		name:    cfg.Name,
		opts:    opts,
		project: deps.Project,
		workDir: deps.WorkDir,
		logger:  deps.Logger.With().Str("task", cfg.Name).Logger(),
	}, nil
}

func parseOptions(project string, raw map[string]interface{}) (options, error) {
	o := task.Options(raw)

	opts := options{
		file:          o.StringDefault("file", ""),
		action:        o.StringDefault("action", "up"),
		projectName:   o.StringDefault("project_name", project),
		build:         o.BoolDefault("build", false),
		removeVolumes: o.BoolDefault("remove_volumes", false),
	}

	if opts.action != "up" && opts.action != "down" {
		return options{}, fmt.Errorf("action %q must be up or down: %w", opts.action, task.ErrInvalidConfig)
	}

	return opts, nil
}

func (t *Task) Name() string { return t.name }
func (t *Task) Type() string { return "compose_app" }

// Execute resolves the compose file, validates it, and shells out to the
// docker compose plugin
func (t *Task) Execute(ctx context.Context) (task.Outputs, error) {
	if _, err := exec.LookPath("docker"); err != nil {
		return nil, fmt.Errorf("docker CLI not found in PATH: %w", task.ErrPreconditionFailed)
	}

	composeFile, project, err := t.resolveComposeFile()
	if err != nil {
		return nil, err
	}

	logFile, err := t.run(ctx, composeFile)
	if err != nil {
		return nil, err
	}

	services := make([]string, 0, len(project.Services))
	for name := range project.Services {
		services = append(services, name)
	}
	sort.Strings(services)

	return task.Outputs{
		"compose_file": composeFile,
		"project":      t.opts.projectName,
		"action":       t.opts.action,
		"services":     strings.Join(services, ","),
		"log_file":     logFile,
	}, nil
}

// Close is a no-op, the compose CLI owns its own lifecycle
func (t *Task) Close() error {
	return nil
}

// resolveComposeFile validates a configured file or renders the built-in
// counter project into the work dir
func (t *Task) resolveComposeFile() (string, compose.Project, error) {
	if t.opts.file != "" {
		data, err := os.ReadFile(t.opts.file)
		if err != nil {
			return "", compose.Project{}, fmt.Errorf("compose file %s not readable: %w", t.opts.file, task.ErrPreconditionFailed)
		}

		project, err := compose.Parse(data)
		if err != nil {
			return "", compose.Project{}, fmt.Errorf("%v: %w", err, task.ErrInvalidConfig)
		}
		if err := project.Validate(); err != nil {
			return "", compose.Project{}, fmt.Errorf("compose file %s: %v: %w", t.opts.file, err, task.ErrInvalidConfig)
		}

		return t.opts.file, project, nil
	}

	project := compose.CounterProject(t.opts.projectName)
	if err := project.Validate(); err != nil {
		return "", compose.Project{}, task.WrapError(t.name, "validate compose project", err)
	}

	data, err := project.Marshal()
	if err != nil {
		return "", compose.Project{}, task.WrapError(t.name, "render compose file", err)
	}

	dir := filepath.Join(t.workDir, "compose")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", compose.Project{}, task.WrapError(t.name, "create compose dir", err)
	}

	path := filepath.Join(dir, compose.FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", compose.Project{}, task.WrapError(t.name, "write compose file", err)
	}

	t.logger.Info().Str("file", path).Msg("rendered compose file")
	return path, project, nil
}

// run executes docker compose, teeing its output into a log file so a failed
// run can be inspected later. Returns the log file path.
func (t *Task) run(ctx context.Context, composeFile string) (string, error) {
	args := []string{"compose", "-f", composeFile, "-p", t.opts.projectName}
	switch t.opts.action {
	case "up":
		args = append(args, "up", "-d")
		if t.opts.build {
			args = append(args, "--build")
		}
	case "down":
		args = append(args, "down")
		if t.opts.removeVolumes {
			args = append(args, "-v")
		}
	}

	cmd := exec.CommandContext(ctx, "docker", args...)

	var tail bytes.Buffer
	logsDir := filepath.Join(t.workDir, "logs")
	logPath := ""
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		t.logger.Warn().Err(err).Msg("failed to create logs directory, compose output will go to stderr")
		cmd.Stdout = io.MultiWriter(os.Stderr, &tail)
		cmd.Stderr = io.MultiWriter(os.Stderr, &tail)
	} else {
		logPath = filepath.Join(logsDir, fmt.Sprintf("compose--%s--%s.log",
			t.opts.action, time.Now().Format("2006-01-02T15-04-05")))
		logFile, err := os.Create(logPath)
		if err != nil {
			t.logger.Warn().Err(err).Msg("failed to create log file, compose output will go to stderr")
			cmd.Stdout = io.MultiWriter(os.Stderr, &tail)
			cmd.Stderr = io.MultiWriter(os.Stderr, &tail)
			logPath = ""
		} else {
			defer logFile.Close()
			cmd.Stdout = io.MultiWriter(logFile, &tail)
			cmd.Stderr = io.MultiWriter(logFile, &tail)
		}
	}

	t.logger.Info().
		Str("action", t.opts.action).
		Str("compose_file", composeFile).
		Msg("running docker compose")

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return logPath, fmt.Errorf("compose %s interrupted: %w", t.opts.action, ctx.Err())
		}
		return logPath, fmt.Errorf("compose %s failed: %w\n%s", t.opts.action, err, lastLines(tail.String(), 20))
	}

	t.logger.Info().Str("action", t.opts.action).Msg("compose finished")
	return logPath, nil
}

// lastLines returns the trailing n lines of command output for error messages
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
