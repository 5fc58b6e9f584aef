package editor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-geoview/internal/humastar"
	"github.com/joeblew999/plat-geoview/internal/logging"
	"github.com/joeblew999/plat-geoview/internal/mapview"
	"github.com/joeblew999/plat-geoview/internal/templates"
)

// ViewHandler handles file drops and the viewport.
type ViewHandler struct {
	humastar.Handler
	session *mapview.Session
}

func NewViewHandler(session *mapview.Session, renderer *templates.Renderer) *ViewHandler {
	return &ViewHandler{
		Handler: humastar.Handler{Renderer: renderer},
		session: session,
	}
}

func (h *ViewHandler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/editor/drop", h.Drop, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/fly", h.Fly, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/viewport", h.Viewport, huma.OperationTags("editor"))
}

// Drop loads the files of the page's file input signal.
func (h *ViewHandler) Drop(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.Decode()
	if err != nil {
		return nil, err
	}
	files, err := signals.Files("files")
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid file data: " + err.Error())
	}

	return h.Stream(func(sse humastar.SSE) {
		if len(files) == 0 {
			sse.Error("Choose a KML file first")
			return
		}
		dropped := make([]mapview.DroppedFile, 0, len(files))
		for _, f := range files {
			dropped = append(dropped, mapview.DroppedFile{Name: f.Name, Body: bytes.NewReader(f.Data)})
		}

		added, err := h.session.OnFilesDropped(ctx, dropped)
		if err != nil {
			logging.FromContext(ctx).Warn("drop failed", "err", err)
			sse.Error(userError(err))
			return
		}
		reset := map[string]any{"files": []string{}, "filesNames": []string{}, "error": ""}
		if len(added) == 0 {
			reset["error"] = "No KML files in the selection"
		} else {
			reset["success"] = fmt.Sprintf("Loaded %d layer(s)", len(added))
		}
		sse.Signals(reset)
	}), nil
}

// Fly animates every connected page to the data layer.
func (h *ViewHandler) Fly(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		if _, err := h.session.FlyToDataLayer(); err != nil {
			sse.Error(userError(err))
			return
		}
		sse.Signals(map[string]any{"error": ""})
	}), nil
}

// Viewport records the page's map size in pixels and, after pans and zooms,
// its center and resolution.
func (h *ViewHandler) Viewport(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.Decode()
	if err != nil {
		return nil, err
	}
	size := mapview.Size{
		Width:  signals.Float("viewportWidth"),
		Height: signals.Float("viewportHeight"),
	}
	if size.Width <= 0 || size.Height <= 0 {
		return nil, huma.Error422UnprocessableEntity("viewportWidth and viewportHeight must be positive")
	}
	h.session.SetViewportSize(size)
	if center := signals.Floats("center"); len(center) == 2 {
		h.session.SetView(orb.Point{center[0], center[1]}, signals.Float("resolution"))
	}
	return h.Stream(func(humastar.SSE) {}), nil
}
