// Package humastar runs Datastar server-sent events on top of Huma
// operations: handlers return a [huma.StreamResponse] built by
// [Handler.Stream] and talk to the page through [SSE]. It also derives
// RFC 8288 links for the REST side of the API (see [Links]).
package humastar

import (
	"bytes"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-geoview/internal/templates"
)

// Handler is embedded by Huma handlers that answer with Datastar events.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream wraps fn in a streaming response.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(ctx huma.Context) {
			fn(NewSSE(ctx))
		},
	}
}

// SSE is a Datastar event generator bound to one response.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE starts an event stream on the response of ctx.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Patch replaces the inner HTML of selector.
func (s SSE) Patch(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
		datastar.WithViewTransitions(),
	)
}

// Error shows msg in the page's error toast.
func (s SSE) Error(msg string) {
	s.MarshalAndPatchSignals(map[string]any{"error": msg})
}

// Success shows msg in the page's success toast.
func (s SSE) Success(msg string) {
	s.MarshalAndPatchSignals(map[string]any{"success": msg})
}

func (s SSE) Signals(signals map[string]any) {
	s.MarshalAndPatchSignals(signals)
}

// Event dispatches a CustomEvent named name on document, with detail
// encoded as JSON.
func (s SSE) Event(name string, detail any) {
	s.DispatchCustomEvent(name, detail)
}

// EmptyInput is the input of operations without parameters.
type EmptyInput struct{}

// RenderList renders tmpl once per item, or the empty-state fragment when
// there are no items.
func RenderList(r *templates.Renderer, tmpl string, items []any, emptyTitle, emptyMsg string) string {
	var buf bytes.Buffer
	if len(items) == 0 {
		r.RenderToBuffer(&buf, "empty-state", map[string]string{
			"Title": emptyTitle, "Message": emptyMsg,
		})
		return buf.String()
	}
	for _, item := range items {
		r.RenderToBuffer(&buf, tmpl, item)
	}
	return buf.String()
}
