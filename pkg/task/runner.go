package task

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/williamokano/web_deployer/pkg/config"
	"github.com/williamokano/web_deployer/pkg/history"
)

// Runner executes configured tasks one at a time, in config order,
// recording each outcome in the history store. Deployment steps build on
// each other (an image must exist before it is pushed), so execution is
// strictly sequential and stops at the first failure unless keepGoing is set.
type Runner struct {
	deps    Deps
	factory *Factory
	store   history.Store
	logger  zerolog.Logger
}

// NewRunner creates a runner. The store may be nil when history is disabled.
func NewRunner(deps Deps, store history.Store) *Runner {
	return &Runner{
		deps:    deps,
		factory: NewFactory(),
		store:   store,
		logger:  deps.Logger,
	}
}

// Run executes the named tasks (all enabled tasks when names is empty)
func (r *Runner) Run(ctx context.Context, cfg *config.Config, names []string, keepGoing bool) ([]Result, error) {
	selected, err := r.selectTasks(cfg, names)
	if err != nil {
		return nil, err
	}

	if len(selected) == 0 {
		r.logger.Warn().Msg("no enabled tasks to run")
		return nil, nil
	}

	r.logger.Info().
		Int("total_tasks", len(selected)).
		Bool("keep_going", keepGoing).
		Msg("starting task execution")

	var results []Result
	for _, tc := range selected {
		result := r.runOne(ctx, tc)
		results = append(results, result)
		r.record(ctx, result)

		if !result.Success && !keepGoing {
			r.logger.Error().
				Str("task", result.TaskName).
				Msg("stopping after failed task")
			break
		}
	}

	// Log summary
	successCount := 0
	failureCount := 0
	var totalDuration time.Duration

	for _, result := range results {
		if result.Success {
			successCount++
		} else {
			failureCount++
		}
		totalDuration += result.Duration
	}

	r.logger.Info().
		Int("successful", successCount).
		Int("failed", failureCount).
		Dur("total_duration", totalDuration).
		Msg("task execution completed")

	if failureCount > 0 {
		return results, fmt.Errorf("%d of %d tasks failed", failureCount, len(results))
	}

	return results, nil
}

// selectTasks resolves the task list, preserving config order for a full run
// and argument order for an explicit list
func (r *Runner) selectTasks(cfg *config.Config, names []string) ([]config.TaskConfig, error) {
	if len(names) == 0 {
		var selected []config.TaskConfig
		for _, tc := range cfg.Tasks {
			if tc.IsEnabled() {
				selected = append(selected, tc)
			} else {
				r.logger.Info().Str("task", tc.Name).Msg("skipping disabled task")
			}
		}
		return selected, nil
	}

	var selected []config.TaskConfig
	for _, name := range names {
		tc, ok := cfg.TaskByName(name)
		if !ok {
			return nil, fmt.Errorf("no task named %q in config", name)
		}
		if !tc.IsEnabled() {
			return nil, fmt.Errorf("task %q is disabled", name)
		}
		selected = append(selected, *tc)
	}
	return selected, nil
}

func (r *Runner) runOne(ctx context.Context, tc config.TaskConfig) Result {
	logger := r.logger.With().
		Str("task", tc.Name).
		Str("type", tc.Type).
		Logger()

	start := time.Now()

	t, err := r.factory.Create(ctx, r.deps, tc)
	if err != nil {
		logger.Error().Err(err).Msg("task construction failed")
		return Result{
			TaskName:  tc.Name,
			TaskType:  tc.Type,
			Success:   false,
			Error:     err,
			StartedAt: start,
			Duration:  time.Since(start),
		}
	}
	defer t.Close()

	logger.Info().Msg("task started")

	outputs, err := t.Execute(ctx)
	duration := time.Since(start)

	result := Result{
		TaskName:  tc.Name,
		TaskType:  tc.Type,
		Success:   err == nil,
		Error:     err,
		StartedAt: start,
		Duration:  duration,
		Outputs:   outputs,
	}

	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("task failed")
		return result
	}

	event := logger.Info().Dur("duration", duration)
	for key, value := range outputs {
		event = event.Str(key, value)
	}
	event.Msg("task succeeded")

	return result
}

func (r *Runner) record(ctx context.Context, res Result) {
	if r.store == nil {
		return
	}

	rec := history.NewRecord(r.deps.Project, res.TaskName, res.TaskType, res.StartedAt, res.Duration, res.Error, res.Outputs)
	if err := r.store.Append(ctx, rec); err != nil {
		r.logger.Warn().
			Err(err).
			Str("task", res.TaskName).
			Msg("failed to record task history")
	}
}
