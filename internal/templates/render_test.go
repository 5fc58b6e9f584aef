package templates

import (
	"bytes"
	"testing"
	"testing/fstest"
)

func render(r *Renderer, name string, data any) (string, error) {
	var buf bytes.Buffer
	err := r.RenderToBuffer(&buf, name, data)
	return buf.String(), err
}

func TestRenderer(t *testing.T) {
	fsys := fstest.MapFS{
		"fragments/card.html": {Data: []byte(`{{define "card"}}<b>{{.Name}}</b>{{end}}`)},
		"fragments/pair.html": {Data: []byte(`{{define "pair"}}{{template "card" (dict "Name" .)}}{{end}}`)},
	}
	r, err := New(fsys, "fragments/*.html")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data any
		want string
	}{
		{"card", map[string]string{"Name": "<x>"}, "<b>&lt;x&gt;</b>"},
		{"pair", "y", "<b>y</b>"},
	}
	for _, tt := range tests {
		got, err := render(r, tt.name, tt.data)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, got, tt.want)
		}
	}
	if _, err := render(r, "missing", nil); err == nil {
		t.Error("expected error for missing template")
	}

	fsys["fragments/card.html"] = &fstest.MapFile{Data: []byte(`{{define "card"}}<i>{{.Name}}</i>{{end}}`)}
	if got, _ := render(r, "card", map[string]string{"Name": "z"}); got != "<b>z</b>" {
		t.Errorf("picked up edit without reload: %q", got)
	}
	if err := r.Reload(); err != nil {
		t.Fatal(err)
	}
	if got, _ := render(r, "card", map[string]string{"Name": "z"}); got != "<i>z</i>" {
		t.Errorf("after reload = %q", got)
	}
}

func TestLive(t *testing.T) {
	fsys := fstest.MapFS{
		"a.html": {Data: []byte(`{{define "a"}}one{{end}}`)},
	}
	r, err := New(fsys, "*.html", Live())
	if err != nil {
		t.Fatal(err)
	}
	fsys["a.html"] = &fstest.MapFile{Data: []byte(`{{define "a"}}two{{end}}`)}
	if got, _ := render(r, "a", nil); got != "two" {
		t.Errorf("live render = %q", got)
	}

	fsys["a.html"] = &fstest.MapFile{Data: []byte(`{{define "a"}}{{end`)}
	if _, err := render(r, "a", nil); err == nil {
		t.Error("expected parse error")
	}
}

func TestNewNoMatch(t *testing.T) {
	if _, err := New(fstest.MapFS{}, "*.html"); err == nil {
		t.Error("expected error")
	}
}
