// Package views renders the HTML pages of the dashboard.
package views

import (
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
)

type TemplateRenderer struct {
	templates *template.Template
}

func (tr *TemplateRenderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	return tr.templates.ExecuteTemplate(w, name, data)
}

func (tr *TemplateRenderer) Register(e *echo.Echo) {
	e.Renderer = tr
}

func NewTemplateRenderer() (*TemplateRenderer, error) {
	templates, err := getTemplates()
	if err != nil {
		return nil, err
	}
	return &TemplateRenderer{templates}, nil
}
