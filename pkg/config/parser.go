package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ParseConfig reads and parses a configuration file
func ParseConfig(configFile string) (*Config, error) {
	file, err := os.Open(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var config Config
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Task names are used as identifiers in history records and on the CLI,
	// so duplicates are rejected up front.
	seen := make(map[string]struct{}, len(config.Tasks))
	for i := range config.Tasks {
		name := config.Tasks[i].Name
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate task name %q in config file", name)
		}
		seen[name] = struct{}{}
	}

	return &config, nil
}
