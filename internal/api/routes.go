// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-geoview/internal/db"
	"github.com/joeblew999/plat-geoview/internal/humastar"
	"github.com/joeblew999/plat-geoview/internal/kml"
	"github.com/joeblew999/plat-geoview/internal/mapview"
	"github.com/joeblew999/plat-geoview/internal/service"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the dependencies of the API handlers.
type Services struct {
	Session   *mapview.Session
	Downloads *service.Downloads
	Bus       *service.EventBus
	Catalog   *db.Catalog
}

// LayerActions are the per-layer hypermedia actions. Those with an editor
// endpoint are also the layer card buttons.
var LayerActions = []humastar.ActionDef{
	{Rel: "features", Pattern: "/api/v1/layers/%s/features", Method: "GET", Title: "Features"},
	{Rel: "style", Pattern: "/api/v1/layers/%s/style", Method: "GET", Title: "View style",
		Label: "Style", Editor: "/api/v1/editor/layers/%s/style"},
	{Rel: "export", Pattern: "/api/v1/layers/%s/export", Method: "GET", Title: "Export KML",
		Label: "Export", Editor: "/api/v1/editor/layers/%s/export"},
	{Rel: "delete", Pattern: "/api/v1/layers/%s", Method: "DELETE", Title: "Remove layer",
		Label: "Remove", Editor: "/api/v1/editor/layers/%s", EditorMethod: "DELETE"},
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Layer ID" example:"data"`
}

// LayerBody is a layer with its action links.
type LayerBody struct {
	mapview.LayerInfo
}

func (b LayerBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.ID, LayerActions)
}

type LayerOutput struct {
	Body LayerBody
}

type LayersInput struct {
	All bool `query:"all" doc:"Include the base tile layer"`
}

type LayersBody struct {
	Layers []mapview.LayerInfo `json:"layers" doc:"Layers, bottom first"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

type StyleBody struct {
	Layer  string            `json:"layer" doc:"Layer name"`
	Styles mapview.StyleView `json:"styles" doc:"Style snapshots keyed by feature name"`
}

// FileOutput is a downloadable file.
type FileOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

type UploadInput struct {
	RawBody multipart.Form
}

type UploadBody struct {
	Layers []mapview.LayerInfo `json:"layers" doc:"Layers added by the upload"`
}

// ViewBody is the viewport in both projections.
type ViewBody struct {
	Center     orb.Point    `json:"center" doc:"Center in EPSG:3857"`
	LonLat     orb.Point    `json:"lonLat" doc:"Center in EPSG:4326"`
	Resolution float64      `json:"resolution" doc:"Map units per pixel"`
	Zoom       float64      `json:"zoom" doc:"Fractional zoom level"`
	Size       mapview.Size `json:"size" doc:"Viewport size"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every REST route.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
	NewInfoHandler(svc).RegisterRoutes(api)
	if svc.Catalog != nil {
		NewDBHandler(svc.Catalog).RegisterRoutes(api)
	}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterLayers registers layer routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/layers/upload", h.Upload, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, huma.OperationTags("layers"))
	huma.Delete(api, "/api/v1/layers/{id}", h.DeleteLayer, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}/features", h.GetFeatures, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}/style", h.GetStyle, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}/export", h.Export, huma.OperationTags("layers"))
}

// RegisterView registers viewport routes.
func (h *APIHandler) RegisterView(api huma.API) {
	huma.Get(api, "/api/v1/view", h.GetView, huma.OperationTags("view"))
	huma.Post(api, "/api/v1/view/fly-to-data", h.FlyToData, huma.OperationTags("view"))
}

// RegisterDownloads registers the download route for exported files.
func (h *APIHandler) RegisterDownloads(api huma.API) {
	huma.Get(api, "/downloads/{token}", h.GetDownload, huma.OperationTags("downloads"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *LayersInput) (*struct{ Body LayersBody }, error) {
	layers := h.svc.Session.Layers()
	if input.All {
		layers = h.svc.Session.AllLayers()
	}
	return &struct{ Body LayersBody }{Body: LayersBody{Layers: layers}}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *IDInput) (*LayerOutput, error) {
	l, err := h.svc.Session.Layer(input.ID)
	if err != nil {
		return nil, Problem(err)
	}
	return &LayerOutput{Body: LayerBody{l.Info()}}, nil
}

func (h *APIHandler) DeleteLayer(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Session.RemoveLayer(input.ID); err != nil {
		return nil, Problem(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Layer removed"}}, nil
}

func (h *APIHandler) GetFeatures(ctx context.Context, input *IDInput) (*struct{ Body *geojson.FeatureCollection }, error) {
	fc, err := h.svc.Session.FeatureCollection(input.ID)
	if err != nil {
		return nil, Problem(err)
	}
	return &struct{ Body *geojson.FeatureCollection }{Body: fc}, nil
}

func (h *APIHandler) GetStyle(ctx context.Context, input *IDInput) (*struct{ Body StyleBody }, error) {
	l, err := h.svc.Session.Layer(input.ID)
	if err != nil {
		return nil, Problem(err)
	}
	view, err := h.svc.Session.ShowLayerStyle(input.ID)
	if err != nil {
		return nil, Problem(err)
	}
	return &struct{ Body StyleBody }{Body: StyleBody{Layer: l.Name, Styles: view}}, nil
}

func (h *APIHandler) Export(ctx context.Context, input *IDInput) (*FileOutput, error) {
	exp, err := h.svc.Session.ExportLayer(input.ID)
	if err != nil {
		return nil, Problem(err)
	}
	return &FileOutput{
		ContentType:        exp.ContentType,
		ContentDisposition: Attachment(exp.Filename),
		Body:               exp.Data,
	}, nil
}

func (h *APIHandler) Upload(ctx context.Context, input *UploadInput) (*struct{ Body UploadBody }, error) {
	headers := input.RawBody.File["files"]
	if len(headers) == 0 {
		return nil, huma.Error400BadRequest("No files provided")
	}

	files := make([]mapview.DroppedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, huma.Error400BadRequest("Failed to open uploaded file " + fh.Filename)
		}
		defer f.Close()
		files = append(files, mapview.DroppedFile{Name: fh.Filename, Body: f})
	}

	added, err := h.svc.Session.OnFilesDropped(ctx, files)
	if err != nil {
		return nil, Problem(err)
	}
	infos := []mapview.LayerInfo{}
	for _, l := range added {
		infos = append(infos, l.Info())
	}
	return &struct{ Body UploadBody }{Body: UploadBody{Layers: infos}}, nil
}

func (h *APIHandler) GetView(ctx context.Context, input *struct{}) (*struct{ Body ViewBody }, error) {
	return &struct{ Body ViewBody }{Body: NewViewBody(h.svc.Session.View())}, nil
}

func (h *APIHandler) FlyToData(ctx context.Context, input *struct{}) (*struct{ Body mapview.Frame }, error) {
	a, err := h.svc.Session.FlyToDataLayer()
	if err != nil {
		return nil, Problem(err)
	}
	return &struct{ Body mapview.Frame }{Body: a.Frame()}, nil
}

type DownloadInput struct {
	Token string `path:"token" doc:"Download token"`
}

func (h *APIHandler) GetDownload(ctx context.Context, input *DownloadInput) (*FileOutput, error) {
	d, err := h.svc.Downloads.Get(input.Token)
	if err != nil {
		return nil, Problem(err)
	}
	return &FileOutput{
		ContentType:        d.ContentType,
		ContentDisposition: Attachment(d.Filename),
		Body:               d.Data,
	}, nil
}

// NewViewBody describes v.
func NewViewBody(v mapview.View) ViewBody {
	return ViewBody{
		Center:     v.Center,
		LonLat:     v.CenterLonLat(),
		Resolution: v.Resolution,
		Zoom:       v.Zoom(),
		Size:       v.Size,
	}
}

// Attachment formats a Content-Disposition header for a download.
func Attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}

// Problem maps domain errors to HTTP problems.
func Problem(err error) error {
	switch {
	case errors.Is(err, mapview.ErrLayerNotFound), errors.Is(err, service.ErrDownloadNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, mapview.ErrDataLayerRemoved):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, mapview.ErrNotInitialized):
		return huma.Error503ServiceUnavailable(err.Error())
	case errors.Is(err, mapview.ErrEmptyExtent), errors.Is(err, kml.ErrNoFeatures), errors.Is(err, kml.ErrInvalid):
		return huma.Error422UnprocessableEntity(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}
