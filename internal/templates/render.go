// Package templates renders the HTML fragments sent in Datastar patches.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"sync"
)

var funcMap = template.FuncMap{
	// dict builds a map from key/value pairs for nested templates.
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			if key, ok := values[i].(string); ok {
				m[key] = values[i+1]
			}
		}
		return m
	},
}

// Renderer executes the named fragments found in a filesystem.
type Renderer struct {
	fsys    fs.FS
	pattern string
	// live re-parses before every render, for fragments edited on disk.
	live bool

	mu   sync.RWMutex
	tmpl *template.Template
}

type Option func(*Renderer)

// Live makes the renderer pick up template edits without a restart.
func Live() Option {
	return func(r *Renderer) { r.live = true }
}

// New parses the templates in fsys matching pattern, e.g.
// "templates/fragments/*.html".
func New(fsys fs.FS, pattern string, opts ...Option) (*Renderer, error) {
	r := &Renderer{fsys: fsys, pattern: pattern}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-parses the templates.
func (r *Renderer) Reload() error {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(r.fsys, r.pattern)
	if err != nil {
		return fmt.Errorf("parse templates %s: %w", r.pattern, err)
	}
	r.mu.Lock()
	r.tmpl = tmpl
	r.mu.Unlock()
	return nil
}

// Execute writes the named template to w.
func (r *Renderer) Execute(w io.Writer, name string, data any) error {
	if r.live {
		if err := r.Reload(); err != nil {
			return err
		}
	}
	r.mu.RLock()
	tmpl := r.tmpl
	r.mu.RUnlock()
	return tmpl.ExecuteTemplate(w, name, data)
}

// RenderToBuffer appends the named template to buf.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	return r.Execute(buf, name, data)
}
