package server

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"os"

	"github.com/verte-zerg/gapdash/internal/dashboard"
)

//go:embed templates/index.html.tmpl
var templateFS embed.FS

const (
	bootstrapCSS = "https://cdn.jsdelivr.net/npm/bootstrap@5.3.1/dist/css/bootstrap.min.css"
	plotlyJS     = "https://cdn.plot.ly/plotly-2.35.2.min.js"
)

type pageData struct {
	Layout       dashboard.Layout
	LayoutJSON   template.JS
	Session      string
	BootstrapCSS string
	PlotlyJS     string
}

const pageTemplate = "index.html.tmpl"

// templateSource returns the directory templates are read from: dir on
// disk when set, the compiled-in copy otherwise.
func templateSource(dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded templates: %w", err)
	}
	return sub, nil
}

func parsePage(fsys fs.FS) (*template.Template, error) {
	tmpl, err := template.New(pageTemplate).Funcs(template.FuncMap{
		"optionValue": func(v any) string { return fmt.Sprint(v) },
		"selected":    func(a, b any) bool { return fmt.Sprint(a) == fmt.Sprint(b) },
		"isNumber":    isNumber,
	}).ParseFS(fsys, pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}
	return tmpl, nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int64, float64:
		return true
	}
	return false
}

func newPageData(layout dashboard.Layout, session string) (pageData, error) {
	raw, err := json.Marshal(layout)
	if err != nil {
		return pageData{}, err
	}
	return pageData{
		Layout:       layout,
		LayoutJSON:   template.JS(raw),
		Session:      session,
		BootstrapCSS: bootstrapCSS,
		PlotlyJS:     plotlyJS,
	}, nil
}
