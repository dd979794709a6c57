package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Renderer renders view trees to HTML. It is safe for concurrent use.
type Renderer struct {
	tmpl         *template.Template
	denomination string
	decimals     uint8
}

// NewRenderer creates a renderer that shows fees in the given
// denomination, converting from base units with decimals.
func NewRenderer(denomination string, decimals uint8) (*Renderer, error) {
	r := &Renderer{
		denomination: denomination,
		decimals:     decimals,
	}
	tmpl, err := template.New("view").Funcs(template.FuncMap{
		"render":    r.renderHTML,
		"amount":    r.amount,
		"timestamp": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	}).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

// Render writes node as an HTML fragment.
func (r *Renderer) Render(w io.Writer, node Node) error {
	if node == nil {
		return fmt.Errorf("render: nil node")
	}
	if r.tmpl.Lookup(node.Kind()) == nil {
		return fmt.Errorf("render: no template for view %s", node.Kind())
	}
	return r.tmpl.ExecuteTemplate(w, node.Kind(), node)
}

// RenderPage writes a complete HTML document with node as its body.
func (r *Renderer) RenderPage(w io.Writer, title string, node Node) error {
	return r.tmpl.ExecuteTemplate(w, "page", struct {
		Title string
		Root  Node
	}{title, node})
}

// renderHTML renders a child node from inside a template.
func (r *Renderer) renderHTML(node Node) (template.HTML, error) {
	var b bytes.Buffer
	if err := r.Render(&b, node); err != nil {
		return "", err
	}
	//nolint:gosec // Output of html/template, already escaped.
	return template.HTML(b.String()), nil
}

func (r *Renderer) amount(baseUnits string) string {
	if baseUnits == "" {
		return ""
	}
	amount := FormatAmount(baseUnits, r.decimals)
	if r.denomination == "" {
		return amount
	}
	return amount + " " + r.denomination
}
