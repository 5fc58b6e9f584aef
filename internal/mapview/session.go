// Package mapview owns the map session: the viewport, the base and overlay
// layers, file drops, style inspection and layer export.
package mapview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"github.com/joeblew999/plat-geoview/internal/kml"
	"github.com/joeblew999/plat-geoview/internal/style"
)

var (
	ErrLayerNotFound    = errors.New("layer not found")
	ErrDataLayerRemoved = errors.New("data layer has been removed")
	ErrNotInitialized   = errors.New("session not initialized")
)

const (
	BaseLayerID = "base"
	DataLayerID = "data"

	KMLContentType = "application/xml"
)

// Config holds the fixed parameters of a session.
type Config struct {
	Center        orb.Point // WGS84
	Zoom          float64
	ViewportSize  Size
	BaseTiles     string
	DataLayerName string
	DataAsset     AssetLoader
	Presets       style.PresetSet

	DropFit FitOptions
	DataFit FitOptions
}

// DefaultConfig returns the standard viewer configuration. DataAsset is left
// for the caller.
func DefaultConfig() Config {
	return Config{
		Center:        orb.Point{104.06455993652344, 30.660359565846754},
		Zoom:          8,
		ViewportSize:  Size{Width: 1280, Height: 800},
		BaseTiles:     "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		DataLayerName: "data",
		Presets:       style.Presets(),
		DropFit:       FitOptions{Padding: [4]float64{50, 50, 50, 50}, Duration: time.Second},
		DataFit:       FitOptions{Padding: [4]float64{100, 100, 100, 100}, Duration: time.Second},
	}
}

// Presenter receives what a session wants shown: viewport animations and
// style dialogs.
type Presenter interface {
	Animate(layer LayerInfo, a Animation)
	ShowStyle(layer LayerInfo, data StyleView)
}

// StyleView maps feature names to plain copies of their style snapshots.
type StyleView map[string]any

// DroppedFile is one file of a drop.
type DroppedFile struct {
	Name string
	Body io.Reader
}

// Export is a serialized layer ready for download.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithPresenter sets where animations and style dialogs go.
func WithPresenter(p Presenter) Option {
	return func(s *Session) { s.presenter = p }
}

// WithClock overrides the clock used for fallback export names.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session is one map: its view and its ordered layers, bottom first.
type Session struct {
	mu        sync.RWMutex
	cfg       Config
	view      View
	layers    []*Layer
	dataLayer *Layer
	ready     bool

	// notifyMu orders layer list deliveries: the last one delivered is
	// always computed after the last change.
	notifyMu  sync.Mutex
	listeners []func([]LayerInfo)
	presenter Presenter
	log       *log.Logger
	now       func() time.Time
}

// New creates an empty session. Call Initialize before use.
func New(cfg Config, opts ...Option) *Session {
	s := &Session{
		cfg:       cfg,
		presenter: nopPresenter{},
		log:       log.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize sets up the view, the base tile layer and the data layer loaded
// from the static asset.
func (s *Session) Initialize(ctx context.Context) error {
	view := NewView(s.cfg.Center, s.cfg.Zoom, s.cfg.ViewportSize)
	base := &Layer{ID: BaseLayerID, Kind: KindTile, Source: s.cfg.BaseTiles}

	var data *Layer
	if s.cfg.DataAsset != nil {
		fc, err := loadCollection(ctx, s.cfg.DataAsset)
		if err != nil {
			return fmt.Errorf("data layer: %w", err)
		}
		data = &Layer{
			ID:     DataLayerID,
			Name:   s.cfg.DataLayerName,
			Kind:   KindVector,
			Source: s.cfg.DataAsset.Location(),
			Style:  s.cfg.Presets.Function(),
		}
		for _, gf := range fc.Features {
			if gf.Geometry != nil {
				gf.Geometry = project.Geometry(gf.Geometry, project.WGS84.ToMercator)
			}
			data.Features = append(data.Features, &Feature{Feature: gf})
		}
		if err := attachSnapshots(data, view.Resolution); err != nil {
			return fmt.Errorf("data layer: %w", err)
		}
	}

	s.mu.Lock()
	s.view = view
	s.layers = []*Layer{base}
	if data != nil {
		s.layers = append(s.layers, data)
	}
	s.dataLayer = data
	s.ready = true
	s.mu.Unlock()

	s.log.Info("map session ready", "center", s.cfg.Center, "zoom", s.cfg.Zoom, "layers", len(s.layers))
	s.notifyLayers()
	return nil
}

// OnLayersChanged registers fn to receive the visible layer list whenever
// the number of layers changes.
func (s *Session) OnLayersChanged(fn func([]LayerInfo)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// View returns the current viewport.
func (s *Session) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// SetViewportSize records the client's map size, used by later fits.
func (s *Session) SetViewportSize(size Size) {
	if size.Width <= 0 || size.Height <= 0 {
		return
	}
	s.mu.Lock()
	s.view.Size = size
	s.mu.Unlock()
}

// SetView replaces the viewport after the client pans or zooms.
func (s *Session) SetView(center orb.Point, resolution float64) {
	if !(resolution > 0) {
		return
	}
	s.mu.Lock()
	s.view.Center = center
	s.view.Resolution = resolution
	s.mu.Unlock()
}

// Layers returns the visible layer list: named vector layers, bottom first.
func (s *Session) Layers() []LayerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visibleLocked()
}

func (s *Session) visibleLocked() []LayerInfo {
	infos := []LayerInfo{}
	for _, l := range s.layers {
		if l.Visible() {
			infos = append(infos, l.Info())
		}
	}
	return infos
}

// AllLayers returns every layer including the base tiles.
func (s *Session) AllLayers() []LayerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]LayerInfo, 0, len(s.layers))
	for _, l := range s.layers {
		infos = append(infos, l.Info())
	}
	return infos
}

// Layer returns a visible layer by ID.
func (s *Session) Layer(id string) (*Layer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layerLocked(id)
}

func (s *Session) layerLocked(id string) (*Layer, error) {
	for _, l := range s.layers {
		if l.ID == id && l.Visible() {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, id)
}

// OnFilesDropped loads every KML file of a drop into its own layer, named
// after the file or, for unnamed files, after the layer ID. Other files are ignored. Each feature gets its style
// snapshots attached at the current resolution. The drop is all or nothing:
// on error no layer is added.
func (s *Session) OnFilesDropped(ctx context.Context, files []DroppedFile) ([]*Layer, error) {
	s.mu.RLock()
	ready, resolution := s.ready, s.view.Resolution
	s.mu.RUnlock()
	if !ready {
		return nil, ErrNotInitialized
	}

	var added []*Layer
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		layer, err := s.readDroppedFile(file, resolution)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file.Name, err)
		}
		if layer != nil {
			added = append(added, layer)
		}
	}
	if len(added) == 0 {
		return nil, nil
	}

	type flight struct {
		info LayerInfo
		anim Animation
	}
	var flights []flight
	s.mu.Lock()
	for _, l := range added {
		s.layers = append(s.layers, l)
		if a, ok := s.fitLocked(l, s.cfg.DropFit); ok {
			flights = append(flights, flight{l.Info(), a})
		}
	}
	s.mu.Unlock()

	for _, l := range added {
		s.log.Info("layer added", "name", l.Name, "features", len(l.Features))
	}
	for _, f := range flights {
		s.presenter.Animate(f.info, f.anim)
	}
	s.notifyLayers()
	return added, nil
}

func (s *Session) readDroppedFile(file DroppedFile, resolution float64) (*Layer, error) {
	data, err := io.ReadAll(file.Body)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if !kml.Sniff(file.Name, data) {
		s.log.Debug("ignoring dropped file", "name", file.Name)
		return nil, nil
	}

	placemarks, err := kml.Decode(bytes.NewReader(data), kml.DecodeOptions{Project: project.WGS84.ToMercator})
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	name := strings.TrimSpace(file.Name)
	if name == "" {
		name = "layer-" + id[:8]
	}
	layer := &Layer{
		ID:     id,
		Name:   name,
		Kind:   KindVector,
		Source: name,
	}
	for _, pm := range placemarks {
		layer.Features = append(layer.Features, &Feature{Feature: pm.Feature, Style: pm.StyleFunction()})
	}
	if err := attachSnapshots(layer, resolution); err != nil {
		return nil, err
	}
	return layer, nil
}

// attachSnapshots stores each feature's style snapshots under StyleProperty
// and their text outline widths under HaloProperty.
func attachSnapshots(l *Layer, resolution float64) error {
	for _, f := range l.Features {
		fn := l.StyleFunction(f)
		if fn == nil {
			continue
		}
		styles, err := style.Resolve(f.Feature, fn, resolution)
		if err != nil {
			return fmt.Errorf("feature %q: %w", f.Name(), err)
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		f.Properties[StyleProperty] = style.SerializeAll(styles)
		f.Properties[HaloProperty] = style.HaloWidths(styles)
	}
	return nil
}

// fitLocked moves the view onto l and returns the animation to play.
func (s *Session) fitLocked(l *Layer, opts FitOptions) (Animation, bool) {
	extent, ok := l.Extent()
	if !ok {
		return Animation{}, false
	}
	to, err := s.view.Fit(extent, opts)
	if err != nil {
		return Animation{}, false
	}
	a := Animation{From: s.view, To: to, Extent: extent, Padding: opts.Padding, Duration: opts.Duration}
	s.view = to
	return a, true
}

// LayerStyles maps each feature name to the snapshots attached when the
// layer was loaded. Features sharing a name keep the last one.
func (s *Session) LayerStyles(id string) (map[string][]style.Snapshot, error) {
	l, err := s.Layer(id)
	if err != nil {
		return nil, err
	}
	return layerStyles(l), nil
}

func layerStyles(l *Layer) map[string][]style.Snapshot {
	out := make(map[string][]style.Snapshot, len(l.Features))
	for _, f := range l.Features {
		snaps, _ := f.Snapshots()
		out[f.Name()] = snaps
	}
	return out
}

// ShowLayerStyle builds the style view of a layer, as plain data detached
// from the layer, and asks the presenter to display it.
func (s *Session) ShowLayerStyle(id string) (StyleView, error) {
	l, err := s.Layer(id)
	if err != nil {
		return nil, err
	}
	view, err := plainCopy(layerStyles(l))
	if err != nil {
		return nil, fmt.Errorf("copy styles: %w", err)
	}
	s.presenter.ShowStyle(l.Info(), view)
	return view, nil
}

func plainCopy(v any) (StyleView, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := StyleView{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportLayer writes a layer as KML in WGS84. The file is named after the
// layer, or after the current time when the layer has no name.
func (s *Session) ExportLayer(id string) (Export, error) {
	s.mu.RLock()
	l, err := s.layerLocked(id)
	resolution := s.view.Resolution
	s.mu.RUnlock()
	if err != nil {
		return Export{}, err
	}

	placemarks := make([]kml.Placemark, 0, len(l.Features))
	for _, f := range l.Features {
		pm := kml.Placemark{Feature: f.Feature}
		if fn := l.StyleFunction(f); fn != nil {
			styles, err := fn(f.Feature, resolution)
			if err != nil {
				return Export{}, fmt.Errorf("export %s: feature %q: %w", l.Name, f.Name(), err)
			}
			if len(styles) > 0 {
				pm.Style = styles[0]
			}
		}
		placemarks = append(placemarks, pm)
	}

	var buf bytes.Buffer
	err = kml.Encode(&buf, placemarks, kml.EncodeOptions{
		Name:    l.Name,
		Project: project.Mercator.ToWGS84,
		Skip:    []string{StyleProperty, HaloProperty},
	})
	if err != nil {
		return Export{}, fmt.Errorf("export %s: %w", l.Name, err)
	}
	return Export{
		Filename:    ExportFilename(l.Name, s.now()),
		ContentType: KMLContentType,
		Data:        buf.Bytes(),
	}, nil
}

// ExportFilename names a download after the layer, or after now in unix
// milliseconds when the layer is unnamed.
func ExportFilename(layerName string, now time.Time) string {
	if layerName != "" {
		return "download-" + layerName
	}
	return fmt.Sprintf("download-%d.kml", now.UnixMilli())
}

// RemoveLayer drops a layer from the map. There is no undo.
func (s *Session) RemoveLayer(id string) error {
	s.mu.Lock()
	idx := slices.IndexFunc(s.layers, func(l *Layer) bool { return l.ID == id && l.Visible() })
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	removed := s.layers[idx]
	s.layers = slices.Delete(s.layers, idx, idx+1)
	s.mu.Unlock()

	s.log.Info("layer removed", "name", removed.Name)
	s.notifyLayers()
	return nil
}

// FlyToDataLayer fits the view to the static data layer. It fails with
// ErrDataLayerRemoved once that layer is gone.
func (s *Session) FlyToDataLayer() (Animation, error) {
	s.mu.Lock()
	if s.dataLayer == nil || !slices.Contains(s.layers, s.dataLayer) {
		s.mu.Unlock()
		return Animation{}, ErrDataLayerRemoved
	}
	a, ok := s.fitLocked(s.dataLayer, s.cfg.DataFit)
	info := s.dataLayer.Info()
	s.mu.Unlock()
	if !ok {
		return Animation{}, ErrEmptyExtent
	}

	s.presenter.Animate(info, a)
	return a, nil
}

// FeatureCollection returns a visible layer's features.
func (s *Session) FeatureCollection(id string) (*geojson.FeatureCollection, error) {
	l, err := s.Layer(id)
	if err != nil {
		return nil, err
	}
	return l.FeatureCollection(), nil
}

func (s *Session) notifyLayers() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.RLock()
	infos := s.visibleLocked()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(infos)
	}
}

type nopPresenter struct{}

func (nopPresenter) Animate(LayerInfo, Animation)   {}
func (nopPresenter) ShowStyle(LayerInfo, StyleView) {}
