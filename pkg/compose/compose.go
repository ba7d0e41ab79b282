package compose

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// FileName is the conventional compose file name rendered into work dirs
const FileName = "docker-compose.yml"

// Build describes how a service image is built from local sources
type Build struct {
	Context    string `yaml:"context"`
	Dockerfile string `yaml:"dockerfile,omitempty"`
}

// Service is a single entry under services
type Service struct {
	Image       string            `yaml:"image,omitempty"`
	Build       *Build            `yaml:"build,omitempty"`
	Ports       []string          `yaml:"ports,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	DependsOn   []string          `yaml:"depends_on,omitempty"`
	Volumes     []string          `yaml:"volumes,omitempty"`
	Networks    []string          `yaml:"networks,omitempty"`
	Restart     string            `yaml:"restart,omitempty"`
}

// VolumeSpec declares a named volume
type VolumeSpec struct {
	Driver string `yaml:"driver,omitempty"`
}

// NetworkSpec declares a named network
type NetworkSpec struct {
	Driver string `yaml:"driver,omitempty"`
}

// Project is a compose file
type Project struct {
	Name     string                 `yaml:"name,omitempty"`
	Services map[string]Service     `yaml:"services"`
	Volumes  map[string]VolumeSpec  `yaml:"volumes,omitempty"`
	Networks map[string]NetworkSpec `yaml:"networks,omitempty"`
}

// CounterProject returns the compose file for the visit counter app: a web
// service built from local sources and published on host port 5000, and the
// public redis image it depends on.
func CounterProject(name string) Project {
	return Project{
		Name: name,
		Services: map[string]Service{
			"web": {
				Build: &Build{Context: "."},
				Ports: []string{"5000:5000"},
				Environment: map[string]string{
					"REDIS_ADDR": "redis:6379",
				},
				DependsOn: []string{"redis"},
			},
			"redis": {
				Image: "redis:alpine",
			},
		},
	}
}

// Marshal renders the project as YAML. Map keys come out sorted, so the
// output is deterministic.
func (p Project) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to render compose file: %w", err)
	}
	return data, nil
}

// Parse decodes a compose file. Fields outside the model are ignored.
func Parse(data []byte) (Project, error) {
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Project{}, fmt.Errorf("failed to parse compose file: %w", err)
	}
	return p, nil
}
