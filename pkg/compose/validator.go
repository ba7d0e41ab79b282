package compose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docker/go-connections/nat"
)

// Validate checks the project for the mistakes the exercises run into most:
// services with neither image nor build, dangling depends_on references,
// host port clashes, and undeclared named volumes or networks.
func (p Project) Validate() error {
	if len(p.Services) == 0 {
		return fmt.Errorf("compose file declares no services")
	}

	names := make([]string, 0, len(p.Services))
	for name := range p.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	published := make(map[string]string)

	for _, name := range names {
		svc := p.Services[name]

		if svc.Image == "" && svc.Build == nil {
			return fmt.Errorf("service %s needs an image or a build context", name)
		}

		for _, dep := range svc.DependsOn {
			if _, ok := p.Services[dep]; !ok {
				return fmt.Errorf("service %s depends on undeclared service %s", name, dep)
			}
		}

		for _, port := range svc.Ports {
			hosts, err := hostPorts(port)
			if err != nil {
				return fmt.Errorf("service %s: %w", name, err)
			}
			for _, host := range hosts {
				if other, clash := published[host]; clash {
					return fmt.Errorf("services %s and %s both publish host port %s", other, name, host)
				}
				published[host] = name
			}
		}

		for _, vol := range svc.Volumes {
			source := strings.SplitN(vol, ":", 2)[0]
			if isNamedVolume(source) {
				if _, ok := p.Volumes[source]; !ok {
					return fmt.Errorf("service %s mounts undeclared volume %s", name, source)
				}
			}
		}

		for _, network := range svc.Networks {
			if _, ok := p.Networks[network]; !ok {
				return fmt.Errorf("service %s joins undeclared network %s", name, network)
			}
		}
	}

	return nil
}

// hostPorts returns the host ports a mapping publishes. Mappings follow the
// docker syntax: "5000:5000", "127.0.0.1:8080:80", "6379" (container only),
// with an optional protocol suffix like "6379/udp".
func hostPorts(mapping string) ([]string, error) {
	specs, err := nat.ParsePortSpec(mapping)
	if err != nil {
		return nil, fmt.Errorf("invalid port mapping %q: %w", mapping, err)
	}

	var hosts []string
	for _, spec := range specs {
		if spec.Binding.HostPort != "" {
			hosts = append(hosts, spec.Binding.HostPort)
		}
	}
	return hosts, nil
}

func isNamedVolume(source string) bool {
	return source != "" && !strings.HasPrefix(source, "/") && !strings.HasPrefix(source, ".") && !strings.HasPrefix(source, "~")
}
