package dockerfile

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/williamokano/web_deployer/pkg/assets"
)

// Variant selects the Dockerfile shape
type Variant string

const (
	// VariantSingle builds and runs inside one image
	VariantSingle Variant = "single"
	// VariantMulti builds in a toolchain stage and copies the binary into a
	// minimal runtime stage
	VariantMulti Variant = "multi"
)

const (
	DefaultBaseImage    = "golang:1.24-alpine"
	DefaultRuntimeImage = "alpine:3.21"
	DefaultPort         = 5000
)

var templates = map[Variant]*template.Template{
	VariantSingle: assets.MustTemplate("Dockerfile.single.tmpl"),
	VariantMulti:  assets.MustTemplate("Dockerfile.multi.tmpl"),
}

// Params fills the Dockerfile templates
type Params struct {
	BaseImage    string   // build stage image
	RuntimeImage string   // final stage image, multi-stage only
	BinaryName   string   // name of the built binary
	Port         int      // port the app listens on
	Entrypoint   []string // exec-form entrypoint
}

// DefaultParams returns the parameters for building the named binary from
// the repository root
func DefaultParams(binary string) Params {
	return Params{
		BaseImage:    DefaultBaseImage,
		RuntimeImage: DefaultRuntimeImage,
		BinaryName:   binary,
		Port:         DefaultPort,
		Entrypoint:   []string{"/usr/local/bin/" + binary},
	}
}

// ParseVariant validates a variant string from config
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantSingle, VariantMulti:
		return Variant(s), nil
	default:
		return "", fmt.Errorf("unknown dockerfile variant %q (want single or multi)", s)
	}
}

// Render produces Dockerfile text for a variant. Zero-valued params fall
// back to the course defaults, and the output is linted before it is
// returned.
func Render(variant Variant, params Params) ([]byte, error) {
	t, ok := templates[variant]
	if !ok {
		return nil, fmt.Errorf("unknown dockerfile variant %q", variant)
	}

	applyDefaults(&params)

	var buf bytes.Buffer
	if err := t.Execute(&buf, params); err != nil {
		return nil, fmt.Errorf("failed to render dockerfile: %w", err)
	}

	if err := Lint(buf.Bytes()); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func applyDefaults(p *Params) {
	if p.BaseImage == "" {
		p.BaseImage = DefaultBaseImage
	}
	if p.RuntimeImage == "" {
		p.RuntimeImage = DefaultRuntimeImage
	}
	if p.BinaryName == "" {
		p.BinaryName = "app"
	}
	if p.Port == 0 {
		p.Port = DefaultPort
	}
	if len(p.Entrypoint) == 0 {
		p.Entrypoint = []string{"/usr/local/bin/" + p.BinaryName}
	}
}
