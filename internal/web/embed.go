package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed templates
var TemplatesFS embed.FS

//go:embed static
var StaticFS embed.FS

// Page template names.
const (
	PageHome     = "home.html"
	PageLogin    = "login.html"
	PageRegister = "register.html"
	PageError    = "error.html"
)

// Templates maps a page file name to its parsed template set.
type Templates map[string]*template.Template

// LoadTemplates parses every page under templates/pages. Pages get separate
// sets so their "content" blocks do not overwrite each other.
func LoadTemplates() (Templates, error) {
	baseContent, err := fs.ReadFile(TemplatesFS, "templates/layouts/base.html")
	if err != nil {
		return nil, err
	}
	formContent, err := fs.ReadFile(TemplatesFS, "templates/partials/form.html")
	if err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(TemplatesFS, "templates/pages")
	if err != nil {
		return nil, err
	}

	pages := make(Templates, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		pageContent, err := fs.ReadFile(TemplatesFS, "templates/pages/"+entry.Name())
		if err != nil {
			return nil, err
		}

		// Base first, then the partials and the page, which fill its blocks.
		pageTmpl := template.New(entry.Name())
		for _, content := range [][]byte{baseContent, formContent, pageContent} {
			if _, err := pageTmpl.Parse(string(content)); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", entry.Name(), err)
			}
		}
		pages[entry.Name()] = pageTmpl
	}

	return pages, nil
}

// GetStaticFS returns the static file system for serving static files
func GetStaticFS() (fs.FS, error) {
	return fs.Sub(StaticFS, "static")
}

// Renderer executes page templates into a buffer so a failing template never
// leaves a half-written page behind.
type Renderer struct {
	templates Templates
}

func NewRenderer(templates Templates) *Renderer {
	return &Renderer{templates: templates}
}

func (r *Renderer) Render(w http.ResponseWriter, status int, name string, page Page) error {
	tmpl, ok := r.templates[name]
	if !ok {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return fmt.Errorf("unknown page %q", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, page); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return fmt.Errorf("rendering %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
