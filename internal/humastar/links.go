package humastar

import (
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// EntryPoint is the path whose links describe the whole API. The page root
// reuses them.
const EntryPoint = "/health"

// Links holds RFC 8288 Link headers derived from the OpenAPI document,
// keyed by operation path.
type Links struct {
	mu     sync.RWMutex
	byPath map[string][]string
}

func NewLinks() *Links {
	return &Links{byPath: map[string][]string{}}
}

// Build derives the links of every REST operation of api. Editor (SSE)
// operations get none. Call after all routes are registered.
func (l *Links) Build(api huma.API) {
	oapi := api.OpenAPI()
	byPath := map[string][]string{}
	add := func(from, to, rel string) {
		v := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
		if !slices.Contains(byPath[from], v) {
			byPath[from] = append(byPath[from], v)
		}
	}

	var paths []string
	for _, p := range slices.Sorted(maps.Keys(oapi.Paths)) {
		if !hasTag(primaryTags(oapi.Paths[p]), "editor") {
			paths = append(paths, p)
		}
	}
	registered := func(p string) bool { return slices.Contains(paths, p) }

	for _, p := range paths {
		parent := ancestor(p, registered)
		switch {
		case p == EntryPoint:
		case parent == "":
			add(p, EntryPoint, "up")
			if !isTemplate(p) {
				add(EntryPoint, p, lastSegment(p))
			}
		case isTemplate(p) && !isTemplate(parent):
			// /layers/{id} is an item of /layers.
			add(p, parent, "collection")
			add(p, parent, "up")
			add(parent, p, "item")
		default:
			add(p, parent, "up")
			add(parent, p, lastSegment(p))
		}
	}

	add(EntryPoint, "/openapi.json", "describedby")
	add(EntryPoint, "/openapi.json", "service-desc")
	add(EntryPoint, "/docs", "service-doc")
	if registered("/api/v1/query") {
		add(EntryPoint, "/api/v1/query", "search")
	}

	for _, p := range paths {
		if ref := responseSchema(oapi.Paths[p]); ref != "" {
			add(p, "/openapi.json#/components/schemas/"+ref, "describedby")
		}
		for _, op := range operationsOf(oapi.Paths[p]) {
			if op != nil {
				documentLinks(op, byPath[p])
			}
		}
	}

	l.mu.Lock()
	l.byPath = byPath
	l.mu.Unlock()
}

// For returns the links of an operation path.
func (l *Links) For(p string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byPath[p]
}

// Transformer adds the derived links, a self link on templated paths and
// the actions of Actor bodies to every response.
func (l *Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}
		for _, link := range l.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}
		if isTemplate(op.Path) {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}
		return v, nil
	}
}

// ancestor returns the closest registered path above p, or "".
func ancestor(p string, registered func(string) bool) string {
	for dir := path.Dir(p); dir != "/" && dir != "."; dir = path.Dir(dir) {
		if registered(dir) {
			return dir
		}
	}
	return ""
}

func isTemplate(p string) bool { return strings.HasSuffix(p, "}") }

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func hasTag(tags []string, tag string) bool {
	return slices.Contains(tags, tag)
}

func lastSegment(p string) string {
	return path.Base(p)
}

// documentLinks records the links on the operation's success response so
// the OpenAPI document carries them too.
func documentLinks(op *huma.Operation, headers []string) {
	var resp *huma.Response
	for _, code := range slices.Sorted(maps.Keys(op.Responses)) {
		if strings.HasPrefix(code, "2") {
			resp = op.Responses[code]
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		if rel, href := parseLink(h); rel != "" {
			resp.Links[rel] = &huma.Link{OperationRef: href, Description: "Related: " + rel}
		}
	}
}

func responseSchema(pi *huma.PathItem) string {
	if pi.Get == nil {
		return ""
	}
	for code, resp := range pi.Get.Responses {
		if !strings.HasPrefix(code, "2") {
			continue
		}
		for _, mt := range resp.Content {
			if mt.Schema != nil && mt.Schema.Ref != "" {
				return path.Base(mt.Schema.Ref)
			}
		}
	}
	return ""
}

// parseLink splits a `<href>; rel="name"` value.
func parseLink(h string) (rel, href string) {
	target, params, ok := strings.Cut(h, ";")
	if !ok {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(target), "<>")
	rel = strings.TrimSpace(params)
	if !strings.HasPrefix(rel, `rel="`) {
		return "", href
	}
	return strings.Trim(rel[len("rel="):], `"`), href
}
