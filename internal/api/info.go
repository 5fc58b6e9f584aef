package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	svc *Services
}

func NewInfoHandler(svc *Services) *InfoHandler {
	return &InfoHandler{svc: svc}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name        string   `json:"name" doc:"Service name"`
	Version     string   `json:"version" doc:"Service version"`
	DB          bool     `json:"db" doc:"Whether the feature catalog is available"`
	Indexed     int      `json:"indexed" doc:"Features mirrored into the catalog"`
	Layers      int      `json:"layers" doc:"Number of visible layers"`
	Downloads   int      `json:"downloads" doc:"Exports waiting to be fetched"`
	Subscribers int      `json:"subscribers" doc:"Connected event streams"`
	Features    []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	body := InfoBody{
		Name:     "geoview",
		Version:  Version,
		DB:       h.svc.Catalog != nil,
		Layers:   len(h.svc.Session.Layers()),
		Features: []string{"kml", "geojson", "datastar", "duckdb"},
	}
	if h.svc.Catalog != nil {
		n, err := h.svc.Catalog.Count(ctx, "")
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to count features", err)
		}
		body.Indexed = n
	}
	if h.svc.Downloads != nil {
		body.Downloads = h.svc.Downloads.Len()
	}
	if h.svc.Bus != nil {
		body.Subscribers = h.svc.Bus.Subscribers()
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}
