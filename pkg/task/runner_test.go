package task_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/williamokano/web_deployer/pkg/config"
	"github.com/williamokano/web_deployer/pkg/history"
	historymocks "github.com/williamokano/web_deployer/pkg/history/mocks"
	"github.com/williamokano/web_deployer/pkg/task"
	"github.com/williamokano/web_deployer/pkg/task/mocks"
)

// stubTasks maps task names to the instances the stub constructor hands out.
// Names absent from the map fail construction, which doubles as the
// construction-failure case.
var stubTasks map[string]task.Task

func init() {
	task.Register("stub", func(_ context.Context, _ task.Deps, cfg config.TaskConfig) (task.Task, error) {
		st, ok := stubTasks[cfg.Name]
		if !ok {
			return nil, errors.New("no stub for " + cfg.Name)
		}
		return st, nil
	})
}

func withStubs(t *testing.T, tasks map[string]task.Task) {
	t.Helper()
	stubTasks = tasks
	t.Cleanup(func() { stubTasks = nil })
}

func stubConfig(tasks ...config.TaskConfig) *config.Config {
	return &config.Config{
		Project: "demo-shop",
		Tasks:   tasks,
	}
}

func testDeps() task.Deps {
	return task.Deps{
		Project: "demo-shop",
		Logger:  zerolog.Nop(),
	}
}

func succeedingTask(t *testing.T, outputs task.Outputs) *mocks.MockTask {
	t.Helper()
	mt := mocks.NewMockTask(t)
	mt.On("Execute", mock.Anything).Return(outputs, nil).Once()
	mt.On("Close").Return(nil).Once()
	return mt
}

func failingTask(t *testing.T, execErr error) *mocks.MockTask {
	t.Helper()
	mt := mocks.NewMockTask(t)
	mt.On("Execute", mock.Anything).Return(nil, execErr).Once()
	mt.On("Close").Return(nil).Once()
	return mt
}

func TestRunner_Run(t *testing.T) {
	t.Run("runs_all_enabled_tasks_in_order", func(t *testing.T) {
		withStubs(t, map[string]task.Task{
			"site": succeedingTask(t, task.Outputs{"bucket": "demo-shop-site"}),
			"host": succeedingTask(t, nil),
		})

		store := historymocks.NewMockStore(t)
		store.On("Append", mock.Anything, mock.Anything).Return(nil).Twice()

		runner := task.NewRunner(testDeps(), store)
		results, err := runner.Run(context.Background(), stubConfig(
			config.TaskConfig{Name: "site", Type: "stub"},
			config.TaskConfig{Name: "host", Type: "stub"},
		), nil, false)

		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "site", results[0].TaskName)
		assert.Equal(t, "host", results[1].TaskName)
		assert.True(t, results[0].Success)
		assert.True(t, results[1].Success)
		assert.Equal(t, "demo-shop-site", results[0].Outputs["bucket"])
	})

	t.Run("skips_disabled_tasks", func(t *testing.T) {
		withStubs(t, map[string]task.Task{
			"site": succeedingTask(t, nil),
		})

		disabled := false
		runner := task.NewRunner(testDeps(), nil)
		results, err := runner.Run(context.Background(), stubConfig(
			config.TaskConfig{Name: "site", Type: "stub"},
			config.TaskConfig{Name: "host", Type: "stub", Enabled: &disabled},
		), nil, false)

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "site", results[0].TaskName)
	})

	t.Run("stops_on_first_failure", func(t *testing.T) {
		withStubs(t, map[string]task.Task{
			"site": failingTask(t, errors.New("bucket name taken")),
			// host is deliberately absent: constructing it would fail the test
			// via an unexpected failed result below
		})

		runner := task.NewRunner(testDeps(), nil)
		results, err := runner.Run(context.Background(), stubConfig(
			config.TaskConfig{Name: "site", Type: "stub"},
			config.TaskConfig{Name: "host", Type: "stub"},
		), nil, false)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 1 tasks failed")
		require.Len(t, results, 1)
		assert.False(t, results[0].Success)
	})

	t.Run("keep_going_runs_remaining_tasks", func(t *testing.T) {
		withStubs(t, map[string]task.Task{
			"site": failingTask(t, errors.New("bucket name taken")),
			"host": succeedingTask(t, nil),
		})

		runner := task.NewRunner(testDeps(), nil)
		results, err := runner.Run(context.Background(), stubConfig(
			config.TaskConfig{Name: "site", Type: "stub"},
			config.TaskConfig{Name: "host", Type: "stub"},
		), nil, true)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 2 tasks failed")
		require.Len(t, results, 2)
		assert.False(t, results[0].Success)
		assert.True(t, results[1].Success)
	})

	t.Run("runs_named_tasks_only", func(t *testing.T) {
		withStubs(t, map[string]task.Task{
			"host": succeedingTask(t, nil),
		})

		runner := task.NewRunner(testDeps(), nil)
		results, err := runner.Run(context.Background(), stubConfig(
			config.TaskConfig{Name: "site", Type: "stub"},
			config.TaskConfig{Name: "host", Type: "stub"},
		), []string{"host"}, false)

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "host", results[0].TaskName)
	})

	t.Run("unknown_task_name", func(t *testing.T) {
		runner := task.NewRunner(testDeps(), nil)
		_, err := runner.Run(context.Background(), stubConfig(
			config.TaskConfig{Name: "site", Type: "stub"},
		), []string{"missing"}, false)

		require.Error(t, err)
		assert.Contains(t, err.Error(), `no task named "missing"`)
	})

	t.Run("named_disabled_task", func(t *testing.T) {
		disabled := false
		runner := task.NewRunner(testDeps(), nil)
		_, err := runner.Run(context.Background(), stubConfig(
			config.TaskConfig{Name: "site", Type: "stub", Enabled: &disabled},
		), []string{"site"}, false)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "disabled")
	})

	t.Run("construction_failure_is_a_failed_result", func(t *testing.T) {
		withStubs(t, map[string]task.Task{})

		runner := task.NewRunner(testDeps(), nil)
		results, err := runner.Run(context.Background(), stubConfig(
			config.TaskConfig{Name: "site", Type: "stub"},
		), nil, false)

		require.Error(t, err)
		require.Len(t, results, 1)
		assert.False(t, results[0].Success)
		assert.Error(t, results[0].Error)
	})

	t.Run("records_history", func(t *testing.T) {
		withStubs(t, map[string]task.Task{
			"site": succeedingTask(t, task.Outputs{"bucket": "demo-shop-site"}),
		})

		store := historymocks.NewMockStore(t)
		store.On("Append", mock.Anything, mock.MatchedBy(func(rec history.Record) bool {
			return rec.Project == "demo-shop" &&
				rec.TaskName == "site" &&
				rec.TaskType == "stub" &&
				rec.Success &&
				rec.Outputs["bucket"] == "demo-shop-site"
		})).Return(nil).Once()

		runner := task.NewRunner(testDeps(), store)
		_, err := runner.Run(context.Background(), stubConfig(
			config.TaskConfig{Name: "site", Type: "stub"},
		), nil, false)

		require.NoError(t, err)
	})

	t.Run("history_store_failure_does_not_fail_the_run", func(t *testing.T) {
		withStubs(t, map[string]task.Task{
			"site": succeedingTask(t, nil),
		})

		store := historymocks.NewMockStore(t)
		store.On("Append", mock.Anything, mock.Anything).Return(errors.New("table offline")).Once()

		runner := task.NewRunner(testDeps(), store)
		results, err := runner.Run(context.Background(), stubConfig(
			config.TaskConfig{Name: "site", Type: "stub"},
		), nil, false)

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.True(t, results[0].Success)
	})

	t.Run("empty_task_list", func(t *testing.T) {
		runner := task.NewRunner(testDeps(), nil)
		results, err := runner.Run(context.Background(), stubConfig(), nil, false)

		assert.NoError(t, err)
		assert.Empty(t, results)
	})
}
