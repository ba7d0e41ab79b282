package task

import (
	"context"
	"fmt"
	"sort"

	"github.com/williamokano/web_deployer/pkg/config"
)

// Constructor is a function that creates a task instance
type Constructor func(ctx context.Context, deps Deps, cfg config.TaskConfig) (Task, error)

var taskRegistry = make(map[string]Constructor)

// Register registers a task constructor for a type
func Register(taskType string, constructor Constructor) {
	taskRegistry[taskType] = constructor
}

// RegisteredTypes returns the registered task types, sorted
func RegisteredTypes() []string {
	types := make([]string, 0, len(taskRegistry))
	for t := range taskRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Factory creates tasks from configuration
type Factory struct{}

// NewFactory creates a new factory instance
func NewFactory() *Factory {
	return &Factory{}
}

// Create instantiates a task from config
func (f *Factory) Create(ctx context.Context, deps Deps, cfg config.TaskConfig) (Task, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("task %s is disabled", cfg.Name)
	}

	constructor, ok := taskRegistry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown task type: %s", cfg.Type)
	}

	return constructor(ctx, deps, cfg)
}
