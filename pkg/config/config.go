package config

// AwsConfig defines how AWS clients are constructed
type AwsConfig struct {
	Region          string `json:"region,omitempty"`            // overrides the top-level region
	Endpoint        string `json:"endpoint,omitempty"`          // custom endpoint (localstack, minio)
	AccessKeyID     string `json:"access_key_id,omitempty"`     // static credentials (default chain if omitted)
	SecretAccessKey string `json:"secret_access_key,omitempty"` // static credentials
	ForcePathStyle  bool   `json:"force_path_style,omitempty"`  // path-style S3 addressing, needed for localstack
}

// HistoryConfig defines where deployment records are kept
type HistoryConfig struct {
	Type    string                 `json:"type,omitempty"` // jsonfile, dynamodb, none (default: jsonfile)
	Options map[string]interface{} `json:"options,omitempty"`
}

// TaskConfig defines a single deployment task
type TaskConfig struct {
	Name    string                 `json:"name"`
	Type    string                 `json:"type"`              // s3_site, ec2_host, ecr_push, ecs_service, docker_build, docker_volume, docker_network, compose_app
	Enabled *bool                  `json:"enabled,omitempty"` // defaults to true if omitted
	Options map[string]interface{} `json:"options,omitempty"`
}

// Config is the root configuration structure
type Config struct {
	Project              string        `json:"project"`
	Region               string        `json:"region,omitempty"`   // default: us-east-1
	Aws                  AwsConfig     `json:"aws,omitempty"`
	WorkDir              string        `json:"work_dir,omitempty"` // scratch dir for rendered artifacts and logs
	MaxConcurrentUploads int           `json:"max_concurrent_uploads,omitempty"` // default: 4
	LogLevel             string        `json:"log_level,omitempty"`              // debug, info, warn, error (default: info)
	LogFormat            string        `json:"log_format,omitempty"`             // json, console (default: json)
	History              HistoryConfig `json:"history,omitempty"`
	Tasks                []TaskConfig  `json:"tasks"`
}

// IsEnabled returns whether the task is enabled (defaults to true when omitted)
func (t *TaskConfig) IsEnabled() bool {
	if t.Enabled == nil {
		return true
	}
	return *t.Enabled
}

// GetRegion returns the effective AWS region (aws-specific, top-level, or us-east-1)
func (c *Config) GetRegion() string {
	if c.Aws.Region != "" {
		return c.Aws.Region
	}
	if c.Region != "" {
		return c.Region
	}
	return "us-east-1"
}

// GetWorkDir returns the scratch directory for rendered artifacts (defaults to .web_deployer)
func (c *Config) GetWorkDir() string {
	if c.WorkDir != "" {
		return c.WorkDir
	}
	return ".web_deployer"
}

// GetMaxConcurrentUploads returns the max concurrent S3 uploads (defaults to 4)
func (c *Config) GetMaxConcurrentUploads() int {
	if c.MaxConcurrentUploads > 0 {
		return c.MaxConcurrentUploads
	}
	return 4
}

// GetLogLevel returns the log level (defaults to info)
func (c *Config) GetLogLevel() string {
	if c.LogLevel != "" {
		return c.LogLevel
	}
	return "info"
}

// GetLogFormat returns the log format (defaults to json)
func (c *Config) GetLogFormat() string {
	if c.LogFormat != "" {
		return c.LogFormat
	}
	return "json"
}

// GetType returns the history store type (defaults to jsonfile)
func (h *HistoryConfig) GetType() string {
	if h.Type != "" {
		return h.Type
	}
	return "jsonfile"
}

// TaskByName looks up a task configuration by its name
func (c *Config) TaskByName(name string) (*TaskConfig, bool) {
	for i := range c.Tasks {
		if c.Tasks[i].Name == name {
			return &c.Tasks[i], true
		}
	}
	return nil, false
}
