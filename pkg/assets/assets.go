package assets

import (
	"embed"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

//go:embed templates
var files embed.FS

// MustTemplate parses a named template from the embedded set with sprig
// helpers available. Panics on a missing or malformed template, which is a
// build defect rather than a runtime condition.
func MustTemplate(name string) *template.Template {
	content, err := files.ReadFile("templates/" + name)
	if err != nil {
		panic(fmt.Errorf("missing embedded template %s: %w", name, err))
	}

	t, err := template.New(name).Funcs(sprig.HermeticTxtFuncMap()).Parse(string(content))
	if err != nil {
		panic(fmt.Errorf("failed to parse template %s: %w", name, err))
	}

	return t
}
