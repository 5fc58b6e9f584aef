package editor

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoview/internal/humastar"
	"github.com/joeblew999/plat-geoview/internal/logging"
	"github.com/joeblew999/plat-geoview/internal/mapview"
	"github.com/joeblew999/plat-geoview/internal/service"
	"github.com/joeblew999/plat-geoview/internal/templates"
)

// EventHandler streams session changes to the Datastar UI via SSE.
type EventHandler struct {
	humastar.Handler
	session *mapview.Session
	bus     *service.EventBus
}

// NewEventHandler creates a new event handler.
func NewEventHandler(session *mapview.Session, bus *service.EventBus, renderer *templates.Renderer) *EventHandler {
	return &EventHandler{
		Handler: humastar.Handler{Renderer: renderer},
		session: session,
		bus:     bus,
	}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/editor/events", h.Events,
		huma.OperationTags("editor"),
	)
}

// Events sends the current layer list, then follows the bus until the
// client goes away. Style and download events stay on the stream of the
// request that caused them.
func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		ch := h.bus.Subscribe()
		defer h.bus.Unsubscribe(ch)

		logger := logging.FromContext(ctx)
		logger.Debug("event stream opened", "subscribers", h.bus.Subscribers())
		defer logger.Debug("event stream closed")

		h.sendLayers(sse, h.session.Layers())
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				h.dispatch(sse, ev, logger)
			}
		}
	}), nil
}

func (h *EventHandler) dispatch(sse humastar.SSE, ev service.Event, logger *log.Logger) {
	switch ev.Resource {
	case service.ResourceLayers:
		layers, ok := ev.Data.([]mapview.LayerInfo)
		if !ok {
			layers = h.session.Layers()
		}
		h.sendLayers(sse, layers)
	case service.ResourceView:
		if frame, ok := ev.Data.(mapview.Frame); ok {
			sse.Event(EventAnimate, frame)
		}
	default:
		logger.Debug("event not streamed", "resource", ev.Resource, "action", ev.Action)
	}
}

func (h *EventHandler) sendLayers(sse humastar.SSE, layers []mapview.LayerInfo) {
	sse.Patch(renderLayerList(h.Renderer, layers), "#layer-list")
	sse.Event(EventLayers, map[string]any{"layers": layers})
}
