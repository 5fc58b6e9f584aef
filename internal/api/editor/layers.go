// Package editor contains the Datastar SSE handlers driving the viewer page:
// the layer list, the style dialog, exports, drops and the viewport.
package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoview/internal/api"
	"github.com/joeblew999/plat-geoview/internal/humastar"
	"github.com/joeblew999/plat-geoview/internal/mapview"
	"github.com/joeblew999/plat-geoview/internal/service"
	"github.com/joeblew999/plat-geoview/internal/templates"
)

// Custom DOM events consumed by viewer.js.
const (
	EventLayers   = "geoview-layers"
	EventAnimate  = "geoview-animate"
	EventDownload = "geoview-download"
)

// LayerHandler serves the layer list and the per-layer actions.
type LayerHandler struct {
	humastar.Handler
	session   *mapview.Session
	downloads *service.Downloads
	bus       *service.EventBus
}

func NewLayerHandler(session *mapview.Session, downloads *service.Downloads, bus *service.EventBus, renderer *templates.Renderer) *LayerHandler {
	return &LayerHandler{
		Handler:   humastar.Handler{Renderer: renderer},
		session:   session,
		downloads: downloads,
		bus:       bus,
	}
}

func (h *LayerHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/editor/layers", h.ListLayers, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/layers/{id}/style", h.ShowStyle, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/layers/{id}/export", h.Export, huma.OperationTags("editor"))
	huma.Delete(api, "/api/v1/editor/layers/{id}", h.DeleteLayer, huma.OperationTags("editor"))
}

type LayerInput struct {
	ID string `path:"id" doc:"Layer ID"`
}

func (h *LayerHandler) ListLayers(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(h.renderLayerList(h.session.Layers()), "#layer-list")
	}), nil
}

func (h *LayerHandler) ShowStyle(ctx context.Context, input *LayerInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		l, err := h.session.Layer(input.ID)
		if err != nil {
			sse.Error(userError(err))
			return
		}
		view, err := h.session.ShowLayerStyle(input.ID)
		if err != nil {
			sse.Error(userError(err))
			return
		}
		sse.Patch(h.renderStyleView(l.Name, view), "#style-view")
		sse.Signals(map[string]any{"_styleOpen": true, "error": ""})
	}), nil
}

func (h *LayerHandler) Export(ctx context.Context, input *LayerInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		exp, err := h.session.ExportLayer(input.ID)
		if err != nil {
			sse.Error(userError(err))
			return
		}
		d := h.downloads.Add(exp.Filename, exp.ContentType, exp.Data)
		h.bus.Publish(service.Event{Resource: service.ResourceDownload, Action: "ready", ID: d.Token, Data: d})

		sse.Event(EventDownload, map[string]any{"url": d.URL(), "filename": d.Filename})
		sse.Success(fmt.Sprintf("Exported %s (%s)", d.Filename, d.Size))
	}), nil
}

func (h *LayerHandler) DeleteLayer(ctx context.Context, input *LayerInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		l, err := h.session.Layer(input.ID)
		if err != nil {
			sse.Error(userError(err))
			return
		}
		if err := h.session.RemoveLayer(input.ID); err != nil {
			sse.Error(userError(err))
			return
		}
		sse.RemoveElementByID("layer-" + input.ID)
		sse.Success(fmt.Sprintf("Layer '%s' removed", l.Name))
	}), nil
}

// LayerCardData feeds the layer-card template.
type LayerCardData struct {
	ID           string
	Name         string
	Source       string
	FeatureCount int
	Buttons      []humastar.Action
}

func (h *LayerHandler) renderLayerList(layers []mapview.LayerInfo) string {
	return renderLayerList(h.Renderer, layers)
}

func renderLayerList(r *templates.Renderer, layers []mapview.LayerInfo) string {
	items := make([]any, 0, len(layers))
	// Topmost layer first, like the map draws them.
	for _, l := range slices.Backward(layers) {
		items = append(items, LayerCardData{
			ID: l.ID, Name: l.Name, Source: l.Source, FeatureCount: l.FeatureCount,
			Buttons: humastar.Buttons(humastar.ActionsFor(l.ID, api.LayerActions)),
		})
	}
	return humastar.RenderList(r, "layer-card", items,
		"No layers", "Drop a KML file on the map to add one.")
}

// StyleEntry is one feature of the style dialog.
type StyleEntry struct {
	Name string
	JSON string
}

func (h *LayerHandler) renderStyleView(layer string, view mapview.StyleView) string {
	names := make([]string, 0, len(view))
	for name := range view {
		names = append(names, name)
	}
	slices.Sort(names)

	entries := make([]StyleEntry, 0, len(names))
	for _, name := range names {
		data, err := json.MarshalIndent(view[name], "", "  ")
		if err != nil {
			continue
		}
		entries = append(entries, StyleEntry{Name: name, JSON: string(data)})
	}

	var buf bytes.Buffer
	h.Renderer.RenderToBuffer(&buf, "style-view", map[string]any{
		"Layer": layer, "Entries": entries,
	})
	return buf.String()
}

// userError turns session errors into short messages for the error toast.
func userError(err error) string {
	switch {
	case errors.Is(err, mapview.ErrDataLayerRemoved):
		return "The data layer has been removed"
	case errors.Is(err, mapview.ErrLayerNotFound):
		return "Layer not found"
	}
	msg := err.Error()
	if i := strings.Index(msg, "\n"); i >= 0 {
		msg = msg[:i]
	}
	return msg
}
