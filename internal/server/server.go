// Package server wires the map session, its services and the HTTP surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/paulmach/orb/project"

	"github.com/joeblew999/plat-geoview/internal/api"
	"github.com/joeblew999/plat-geoview/internal/api/editor"
	"github.com/joeblew999/plat-geoview/internal/db"
	"github.com/joeblew999/plat-geoview/internal/humastar"
	"github.com/joeblew999/plat-geoview/internal/logging"
	"github.com/joeblew999/plat-geoview/internal/mapview"
	"github.com/joeblew999/plat-geoview/internal/service"
	"github.com/joeblew999/plat-geoview/internal/templates"
	"github.com/joeblew999/plat-geoview/web"
)

// Config holds the server configuration.
type Config struct {
	Host string
	Port string
	// DataURL fetches the data layer over HTTP instead of the embedded asset.
	DataURL     string
	Viewport    mapview.Size
	BaseTiles   string
	DownloadTTL time.Duration
	// WebDir serves pages, fragments and static files from disk instead of
	// the embedded copy.
	WebDir string
	// NoCatalog skips the DuckDB feature catalog.
	NoCatalog bool
}

// Server is the geoview HTTP server.
type Server struct {
	config    Config
	mux       *http.ServeMux
	handler   http.Handler
	humaAPI   huma.API
	links     *humastar.Links
	log       *log.Logger
	web       fs.FS
	renderer  *templates.Renderer
	session   *mapview.Session
	bus       *service.EventBus
	downloads *service.Downloads
	catalog   *db.Catalog
}

// New creates the server and initializes its map session.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Default()
	}
	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("geoview API", api.Version)
	humaConfig.Info.Description = "Map viewer API: KML layers, style inspection, export and the static data layer."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	links := humastar.NewLinks()
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	s := &Server{
		config:    cfg,
		mux:       mux,
		humaAPI:   humago.New(mux, humaConfig),
		links:     links,
		log:       logger,
		bus:       service.NewEventBus(),
		downloads: service.NewDownloads(cfg.DownloadTTL),
	}

	s.web = web.FS
	var renderOpts []templates.Option
	if cfg.WebDir != "" {
		s.web = os.DirFS(cfg.WebDir)
		renderOpts = append(renderOpts, templates.Live())
		logger.Info("serving web assets from disk", "dir", cfg.WebDir)
	}
	renderer, err := templates.New(s.web, web.FragmentPattern, renderOpts...)
	if err != nil {
		return nil, err
	}
	s.renderer = renderer

	if !cfg.NoCatalog {
		catalog, err := db.Open(ctx, db.Config{Project: project.Mercator.ToWGS84})
		if err != nil {
			// The viewer works without SQL access.
			logger.Warn("feature catalog unavailable", "err", err)
		} else {
			s.catalog = catalog
		}
	}

	s.session = mapview.New(s.sessionConfig(),
		mapview.WithLogger(logger.WithPrefix("map")),
		mapview.WithPresenter(busPresenter{bus: s.bus}),
	)
	s.session.OnLayersChanged(s.layersChanged)
	if err := s.session.Initialize(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("initialize map: %w", err)
	}

	s.routes()
	s.handler = logging.Middleware(logger, mux)
	return s, nil
}

func (s *Server) sessionConfig() mapview.Config {
	cfg := mapview.DefaultConfig()
	if s.config.Viewport.Width > 0 && s.config.Viewport.Height > 0 {
		cfg.ViewportSize = s.config.Viewport
	}
	if s.config.BaseTiles != "" {
		cfg.BaseTiles = s.config.BaseTiles
	}
	if s.config.DataURL != "" {
		cfg.DataAsset = mapview.HTTPAsset{URL: s.config.DataURL}
	} else {
		cfg.DataAsset = fsAsset{fsys: s.web, name: web.DataAsset}
	}
	return cfg
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Session returns the map session.
func (s *Server) Session() *mapview.Session {
	return s.session
}

// Close closes server resources.
func (s *Server) Close() error {
	s.downloads.Close()
	if s.catalog != nil {
		return s.catalog.Close()
	}
	return nil
}

func (s *Server) routes() {
	services := &api.Services{
		Session:   s.session,
		Downloads: s.downloads,
		Bus:       s.bus,
		Catalog:   s.catalog,
	}

	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, services)

	// Register viewer SSE routes using Huma + Datastar SDK
	editor.NewEventHandler(s.session, s.bus, s.renderer).RegisterRoutes(s.humaAPI)
	editor.NewLayerHandler(s.session, s.downloads, s.bus, s.renderer).RegisterRoutes(s.humaAPI)
	editor.NewViewHandler(s.session, s.renderer).RegisterRoutes(s.humaAPI)

	s.links.Build(s.humaAPI)

	// Static files
	if static, err := fs.Sub(s.web, "static"); err == nil {
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	}

	// Page routes
	s.mux.HandleFunc("/viewer", s.handleViewer)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links.For(humastar.EntryPoint) {
		w.Header().Add("Link", link)
	}
	s.handleViewer(w, r)
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	page, err := fs.ReadFile(s.web, "templates/viewer.html")
	if err != nil {
		http.Error(w, "viewer page missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// layersChanged fans the new layer list out to event streams and mirrors
// the layers into the catalog.
func (s *Server) layersChanged(infos []mapview.LayerInfo) {
	s.bus.Publish(service.Event{Resource: service.ResourceLayers, Action: "changed", Data: infos})
	if s.catalog == nil {
		return
	}

	layers := make([]db.Layer, 0, len(infos))
	for _, info := range infos {
		l, err := s.session.Layer(info.ID)
		if err != nil {
			continue
		}
		fc := l.FeatureCollection()
		layers = append(layers, db.Layer{ID: l.ID, Name: l.Name, Features: fc.Features})
	}
	if err := s.catalog.Sync(context.Background(), layers); err != nil {
		s.log.Error("catalog sync failed", "err", err)
	}
}

// busPresenter publishes what the session wants shown.
type busPresenter struct {
	bus *service.EventBus
}

func (p busPresenter) Animate(layer mapview.LayerInfo, a mapview.Animation) {
	p.bus.Publish(service.Event{Resource: service.ResourceView, Action: "animate", ID: layer.ID, Data: a.Frame()})
}

func (p busPresenter) ShowStyle(layer mapview.LayerInfo, v mapview.StyleView) {
	p.bus.Publish(service.Event{Resource: service.ResourceStyle, Action: "show", ID: layer.ID, Data: v})
}

// fsAsset loads the data layer from the web filesystem.
type fsAsset struct {
	fsys fs.FS
	name string
}

func (a fsAsset) Load(context.Context) ([]byte, error) { return fs.ReadFile(a.fsys, a.name) }
func (a fsAsset) Location() string                     { return "/" + strings.TrimPrefix(a.name, "/") }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		// Event streams end with ctx.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
