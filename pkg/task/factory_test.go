package task_test

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williamokano/web_deployer/pkg/config"
	"github.com/williamokano/web_deployer/pkg/task"
	"github.com/williamokano/web_deployer/pkg/task/mocks"
)

func TestFactory_Create(t *testing.T) {
	t.Run("creates_registered_type", func(t *testing.T) {
		created := mocks.NewMockTask(t)
		task.Register("test_widget", func(_ context.Context, _ task.Deps, _ config.TaskConfig) (task.Task, error) {
			return created, nil
		})

		factory := task.NewFactory()
		got, err := factory.Create(context.Background(), task.Deps{}, config.TaskConfig{
			Name: "widget",
			Type: "test_widget",
		})

		require.NoError(t, err)
		assert.Same(t, created, got)
	})

	t.Run("unknown_type", func(t *testing.T) {
		factory := task.NewFactory()
		_, err := factory.Create(context.Background(), task.Deps{}, config.TaskConfig{
			Name: "widget",
			Type: "teleporter",
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown task type")
	})

	t.Run("disabled_task", func(t *testing.T) {
		disabled := false
		factory := task.NewFactory()
		_, err := factory.Create(context.Background(), task.Deps{}, config.TaskConfig{
			Name:    "widget",
			Type:    "test_widget",
			Enabled: &disabled,
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "disabled")
	})
}

func TestRegisteredTypes(t *testing.T) {
	task.Register("zz_test_type", func(_ context.Context, _ task.Deps, _ config.TaskConfig) (task.Task, error) {
		return nil, nil
	})
	task.Register("aa_test_type", func(_ context.Context, _ task.Deps, _ config.TaskConfig) (task.Task, error) {
		return nil, nil
	})

	types := task.RegisteredTypes()

	assert.Contains(t, types, "aa_test_type")
	assert.Contains(t, types, "zz_test_type")
	assert.True(t, sort.StringsAreSorted(types))
}
