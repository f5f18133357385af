package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templatesFS embed.FS

// HTML renders view models with the embedded grid and detail templates.
type HTML struct {
	tmpl *template.Template
}

// NewHTML parses the embedded templates.
func NewHTML() (*HTML, error) {
	tmpl, err := template.New("").ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("render: parse templates: %w", err)
	}
	return &HTML{tmpl: tmpl}, nil
}

// Grid writes the grid fragment.
func (h *HTML) Grid(w io.Writer, v GridView) error {
	if err := h.tmpl.ExecuteTemplate(w, "grid.html", v); err != nil {
		return fmt.Errorf("render: grid: %w", err)
	}
	return nil
}

// Detail writes the detail fragment.
func (h *HTML) Detail(w io.Writer, v DetailView) error {
	if err := h.tmpl.ExecuteTemplate(w, "detail.html", v); err != nil {
		return fmt.Errorf("render: detail: %w", err)
	}
	return nil
}

// GridHTML renders the grid fragment for embedding in a page.
func (h *HTML) GridHTML(v GridView) (template.HTML, error) {
	var buf bytes.Buffer
	if err := h.Grid(&buf, v); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
