package userdata

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"text/template"

	"github.com/williamokano/web_deployer/pkg/assets"
)

// Kind selects which bootstrap script is rendered
type Kind string

const (
	// KindApache installs httpd and writes a static landing page
	KindApache Kind = "apache"
	// KindDocker installs docker and optionally runs the app container
	KindDocker Kind = "docker"
)

// MaxBytes is the EC2 limit on raw user data
const MaxBytes = 16 * 1024

var templates = map[Kind]*template.Template{
	KindApache: assets.MustTemplate("userdata_apache.sh.tmpl"),
	KindDocker: assets.MustTemplate("userdata_docker.sh.tmpl"),
}

// Content fills the bootstrap script templates
type Content struct {
	SiteTitle     string   // apache: page title
	Message       string   // apache: page heading
	AppImage      string   // docker: image to run on boot (skipped when empty)
	AppPort       int      // docker: container port published on host port 80
	User          string   // docker: user added to the docker group
	ExtraPackages []string // additional dnf packages
	EnableOnBoot  bool     // enable the service so it survives reboots
}

// DefaultContent returns the bootstrap content used when the task options
// leave the page and container settings alone
func DefaultContent(project string) Content {
	return Content{
		SiteTitle:    project,
		Message:      "Hello from " + project + "!",
		AppPort:      5000,
		User:         "ec2-user",
		EnableOnBoot: true,
	}
}

// ParseKind validates a bootstrap kind from config
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindApache, KindDocker:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown bootstrap kind %q (want apache or docker)", s)
	}
}

// Render produces the bootstrap script for an instance
func Render(kind Kind, content Content) ([]byte, error) {
	t, ok := templates[kind]
	if !ok {
		return nil, fmt.Errorf("unknown user data kind %q", kind)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, content); err != nil {
		return nil, fmt.Errorf("failed to render user data: %w", err)
	}

	if buf.Len() > MaxBytes {
		return nil, fmt.Errorf("user data is %d bytes, above the %d byte limit", buf.Len(), MaxBytes)
	}

	return buf.Bytes(), nil
}

// RenderBase64 renders and encodes the script the way RunInstances expects
func RenderBase64(kind Kind, content Content) (string, error) {
	raw, err := Render(kind, content)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
