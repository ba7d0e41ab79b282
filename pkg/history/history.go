package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/williamokano/web_deployer/pkg/config"
)

// sortKeyLayout is a fixed-width RFC3339 variant so lexicographic order on
// sort keys matches chronological order (RFC3339Nano trims trailing zeros
// and breaks that property).
const sortKeyLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record represents the stored outcome of one task execution
type Record struct {
	ID         string            `json:"id" dynamodbav:"id"`
	Project    string            `json:"project" dynamodbav:"project"`
	TaskName   string            `json:"task_name" dynamodbav:"task_name"`
	TaskType   string            `json:"task_type" dynamodbav:"task_type"`
	Success    bool              `json:"success" dynamodbav:"success"`
	Error      string            `json:"error,omitempty" dynamodbav:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at" dynamodbav:"started_at"`
	DurationMS int64             `json:"duration_ms" dynamodbav:"duration_ms"`
	Outputs    map[string]string `json:"outputs,omitempty" dynamodbav:"outputs,omitempty"`
}

// NewRecord builds a record for a finished task execution
func NewRecord(project, taskName, taskType string, startedAt time.Time, duration time.Duration, execErr error, outputs map[string]string) Record {
	rec := Record{
		ID:         uuid.NewString(),
		Project:    project,
		TaskName:   taskName,
		TaskType:   taskType,
		Success:    execErr == nil,
		StartedAt:  startedAt.UTC(),
		DurationMS: duration.Milliseconds(),
		Outputs:    outputs,
	}
	if execErr != nil {
		rec.Error = execErr.Error()
	}
	return rec
}

// SortKey returns "<fixed-width timestamp>#<id>", unique per record and
// ordered chronologically
func (r Record) SortKey() string {
	return r.StartedAt.UTC().Format(sortKeyLayout) + "#" + r.ID
}

// sortNewestFirst orders records newest first by sort key
func sortNewestFirst(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].SortKey() > records[j].SortKey()
	})
}

// Store persists deployment records
type Store interface {
	// Append stores a new record
	Append(ctx context.Context, rec Record) error

	// List returns records for a project, newest first (all projects when empty)
	List(ctx context.Context, project string) ([]Record, error)

	// Prune removes all but the newest keep records for a project,
	// returning the number removed
	Prune(ctx context.Context, project string, keep int) (int, error)

	// Close releases resources
	Close() error
}

// OpenOptions carries the dependencies store constructors may need
type OpenOptions struct {
	Config     config.HistoryConfig
	WorkDir    string
	AWS        aws.Config
	AWSOptions config.AwsConfig
	Logger     zerolog.Logger
}

// Constructor is a function that creates a store instance
type Constructor func(ctx context.Context, opts OpenOptions) (Store, error)

var storeRegistry = make(map[string]Constructor)

// Register registers a store constructor
func Register(storeType string, constructor Constructor) {
	storeRegistry[storeType] = constructor
}

// Open creates the store described by the history config section
func Open(ctx context.Context, opts OpenOptions) (Store, error) {
	storeType := opts.Config.GetType()
	if storeType == "none" {
		return Discard{}, nil
	}

	constructor, ok := storeRegistry[storeType]
	if !ok {
		return nil, fmt.Errorf("unknown history store type: %s", storeType)
	}

	return constructor(ctx, opts)
}

// Discard is a store that keeps nothing
type Discard struct{}

func (Discard) Append(context.Context, Record) error { return nil }

func (Discard) List(context.Context, string) ([]Record, error) { return nil, nil }

func (Discard) Prune(context.Context, string, int) (int, error) { return 0, nil }

func (Discard) Close() error { return nil }
