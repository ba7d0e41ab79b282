package assets

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

var (
	indexTemplate = MustTemplate("index.html.tmpl")
	errorTemplate = MustTemplate("error.html.tmpl")
)

// SiteParams fills the static site index page
type SiteParams struct {
	Title   string
	Heading string
	Message string
}

// DefaultSiteParams returns the landing page content used when a project
// deploys the built-in site
func DefaultSiteParams(project string) SiteParams {
	return SiteParams{
		Title:   project,
		Heading: "It works!",
		Message: "Served from an S3 bucket configured for static website hosting.",
	}
}

// RenderSite writes index.html and error.html into dir, returning the
// written paths
func RenderSite(dir string, params SiteParams) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create site directory: %w", err)
	}

	pages := []struct {
		name   string
		render func() ([]byte, error)
	}{
		{"index.html", func() ([]byte, error) { return execute(indexTemplate, params) }},
		{"error.html", func() ([]byte, error) { return execute(errorTemplate, nil) }},
	}

	var written []string
	for _, page := range pages {
		content, err := page.render()
		if err != nil {
			return nil, err
		}

		path := filepath.Join(dir, page.name)
		if err := os.WriteFile(path, content, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", page.name, err)
		}
		written = append(written, path)
	}

	return written, nil
}

func execute(t *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}
	return buf.Bytes(), nil
}
