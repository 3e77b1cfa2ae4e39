// Package engine compiles and executes document templates. The default
// engine is text/template with the sprig function library; alternative
// engines plug in through the interfaces package.
package engine

import (
	"errors"
	"fmt"
	"io"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/ghostwriter/ghostwriter/pkg/interfaces"
	"github.com/ghostwriter/ghostwriter/pkg/logger"
	"github.com/ghostwriter/ghostwriter/pkg/render"
)

// ErrTemplateFailed indicates a template that could not be compiled or
// executed. The wrapped message names the template.
var ErrTemplateFailed = errors.New("template failed")

// GoTemplateEngine renders text/template sources with the sprig function
// library. Missing map keys and unknown fields are execution errors, so a
// template never silently drops data it asked for.
type GoTemplateEngine struct {
	log logger.Logger
}

// NewGoTemplateEngine creates the default template engine
func NewGoTemplateEngine(log logger.Logger) *GoTemplateEngine {
	return &GoTemplateEngine{log: log}
}

// Name identifies the engine
func (e *GoTemplateEngine) Name() string {
	return "go-template"
}

// Compile parses a template source. The returned template is safe for
// concurrent Execute calls.
func (e *GoTemplateEngine) Compile(name string, source []byte) (interfaces.CompiledTemplate, error) {
	tmpl := template.New(name).
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Funcs(template.FuncMap{
			// Placeholder so sources referencing asset parse; rebound
			// to the active recorder on every execution.
			"asset": func(path string) string { return path },
		})

	parsed, err := tmpl.Parse(string(source))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateFailed, name, err)
	}

	return &compiledTemplate{name: name, tmpl: parsed}, nil
}

var _ interfaces.Engine = (*GoTemplateEngine)(nil)

type compiledTemplate struct {
	name string
	tmpl *template.Template
}

// Execute renders into w against the shared context. The template is cloned
// per execution so concurrent jobs can bind their own asset recorders.
func (t *compiledTemplate) Execute(w io.Writer, ctx *render.TemplateContext, assets *render.AssetRecorder) error {
	tmpl, err := t.tmpl.Clone()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTemplateFailed, t.name, err)
	}

	tmpl.Funcs(template.FuncMap{
		"asset": func(path string) string {
			if assets != nil {
				return assets.Record(path)
			}
			return path
		},
	})

	if err := tmpl.Execute(w, ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTemplateFailed, t.name, err)
	}

	return nil
}
