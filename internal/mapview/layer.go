package mapview

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-geoview/internal/style"
)

// StyleProperty is the feature attribute holding the feature's style
// snapshots, computed when the feature was loaded.
const StyleProperty = "style_"

// HaloProperty holds the text outline width of each style snapshot, which
// the snapshots themselves leave out.
const HaloProperty = "halo_"

// LayerKind separates the base tiles from vector overlays.
type LayerKind int

const (
	KindTile LayerKind = iota
	KindVector
)

func (k LayerKind) String() string {
	if k == KindTile {
		return "tile"
	}
	return "vector"
}

// Feature is a geometry with attributes and an optional style function of
// its own.
type Feature struct {
	*geojson.Feature
	Style style.Function
}

// Name returns the feature's name attribute.
func (f *Feature) Name() string {
	return f.Properties.MustString("name", "")
}

// Snapshots returns the attached style snapshots, if any.
func (f *Feature) Snapshots() ([]style.Snapshot, bool) {
	s, ok := f.Properties[StyleProperty].([]style.Snapshot)
	return s, ok
}

// Layer is a collection of features rendered together. Tile layers have no
// features and are drawn from Source.
type Layer struct {
	ID       string
	Name     string
	Kind     LayerKind
	Source   string
	Features []*Feature
	// Style is used by features that have no style function of their own.
	Style style.Function
}

// StyleFunction returns the style function that applies to f.
func (l *Layer) StyleFunction(f *Feature) style.Function {
	if f.Style != nil {
		return f.Style
	}
	return l.Style
}

// Extent is the bounding box of all features. ok is false for a layer with
// no geometry.
func (l *Layer) Extent() (orb.Bound, bool) {
	var b orb.Bound
	ok := false
	for _, f := range l.Features {
		if f.Geometry == nil {
			continue
		}
		fb := f.Geometry.Bound()
		if !ok {
			b, ok = fb, true
			continue
		}
		b = b.Union(fb)
	}
	return b, ok
}

// Visible reports whether the layer belongs in the layer list: named vector
// layers only.
func (l *Layer) Visible() bool {
	return l.Kind == KindVector && l.Name != ""
}

// LayerInfo is the list view of a layer.
type LayerInfo struct {
	ID           string `json:"id" doc:"Layer identifier"`
	Name         string `json:"name" doc:"Layer name"`
	Kind         string `json:"kind" doc:"tile or vector" enum:"tile,vector"`
	Source       string `json:"source,omitempty" doc:"File name or URL the layer was loaded from"`
	FeatureCount int    `json:"featureCount" doc:"Number of features"`
}

// Info summarizes the layer.
func (l *Layer) Info() LayerInfo {
	return LayerInfo{
		ID:           l.ID,
		Name:         l.Name,
		Kind:         l.Kind.String(),
		Source:       l.Source,
		FeatureCount: len(l.Features),
	}
}

// FeatureCollection returns the layer's features as GeoJSON in EPSG:3857,
// including their style snapshots.
func (l *Layer) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range l.Features {
		fc.Append(f.Feature)
	}
	return fc
}
