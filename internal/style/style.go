// Package style models the visual style of map features and serializes it
// into plain snapshots for inspection.
package style

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Style is a composite of optional fill, image, stroke and text sub-styles.
type Style struct {
	Fill   *Fill   `yaml:"fill,omitempty"`
	Image  Image   `yaml:"-"`
	Stroke *Stroke `yaml:"stroke,omitempty"`
	Text   *Text   `yaml:"text,omitempty"`
	ZIndex *int    `yaml:"zIndex,omitempty"`
}

// Fill paints the interior of polygons and text glyphs.
// A nil Color was never configured; a transparent black one was.
type Fill struct {
	Color *Color `yaml:"color,omitempty"`
}

// Stroke outlines geometries. A zero Width is unset.
type Stroke struct {
	Color          *Color    `yaml:"color,omitempty"`
	Width          float64   `yaml:"width,omitempty"`
	LineCap        string    `yaml:"lineCap,omitempty"`
	LineJoin       string    `yaml:"lineJoin,omitempty"`
	LineDash       []float64 `yaml:"lineDash,omitempty"`
	LineDashOffset float64   `yaml:"lineDashOffset,omitempty"`
	MiterLimit     *float64  `yaml:"miterLimit,omitempty"`
}

// Image is the point symbol of a style. It is a closed set: *Icon or *Circle.
type Image interface {
	isImage()
}

// Icon renders an image from a source URL.
type Icon struct {
	Src            string    `yaml:"src"`
	Anchor         []float64 `yaml:"anchor,omitempty"`
	AnchorOrigin   string    `yaml:"anchorOrigin,omitempty"`
	AnchorXUnits   string    `yaml:"anchorXUnits,omitempty"`
	AnchorYUnits   string    `yaml:"anchorYUnits,omitempty"`
	Color          *Color    `yaml:"color,omitempty"`
	CrossOrigin    string    `yaml:"crossOrigin,omitempty"`
	Offset         []float64 `yaml:"offset,omitempty"`
	OffsetOrigin   string    `yaml:"offsetOrigin,omitempty"`
	Displacement   []float64 `yaml:"displacement,omitempty"`
	Opacity        float64   `yaml:"opacity,omitempty"`
	Scale          float64   `yaml:"scale,omitempty"`
	RotateWithView bool      `yaml:"rotateWithView,omitempty"`
	Rotation       float64   `yaml:"rotation,omitempty"`
	Size           []float64 `yaml:"size,omitempty"`
	ImgSize        []float64 `yaml:"imgSize,omitempty"`
}

// Circle renders a filled circle. It has no snapshot form.
type Circle struct {
	Radius float64 `yaml:"radius"`
	Fill   *Fill   `yaml:"fill,omitempty"`
	Stroke *Stroke `yaml:"stroke,omitempty"`
}

func (*Icon) isImage()   {}
func (*Circle) isImage() {}

// NewIcon returns an icon with full opacity and unit scale.
func NewIcon(src string) *Icon {
	return &Icon{Src: src, Opacity: 1, Scale: 1}
}

// Text labels a feature. Text without content is never rendered.
type Text struct {
	Text             *string   `yaml:"text,omitempty"`
	Font             string    `yaml:"font,omitempty"`
	MaxAngle         *float64  `yaml:"maxAngle,omitempty"`
	OffsetX          float64   `yaml:"offsetX,omitempty"`
	OffsetY          float64   `yaml:"offsetY,omitempty"`
	Overflow         bool      `yaml:"overflow,omitempty"`
	Placement        string    `yaml:"placement,omitempty"`
	Scale            float64   `yaml:"scale,omitempty"`
	RotateWithView   bool      `yaml:"rotateWithView,omitempty"`
	Rotation         float64   `yaml:"rotation,omitempty"`
	TextAlign        string    `yaml:"textAlign,omitempty"`
	TextBaseline     string    `yaml:"textBaseline,omitempty"`
	Padding          []float64 `yaml:"padding,omitempty"`
	Fill             *Fill     `yaml:"fill,omitempty"`
	Stroke           *Stroke   `yaml:"stroke,omitempty"`
	BackgroundFill   *Fill     `yaml:"backgroundFill,omitempty"`
	BackgroundStroke *Stroke   `yaml:"backgroundStroke,omitempty"`
}

// Content returns the label text and whether it is set.
func (t *Text) Content() (string, bool) {
	if t == nil || t.Text == nil {
		return "", false
	}
	return *t.Text, true
}

// String returns a pointer to s, for Text.Text.
func String(s string) *string {
	return &s
}

// Float returns a pointer to v, for settings whose default is not zero.
func Float(v float64) *float64 {
	return &v
}

// Function resolves the styles a feature renders with at a view resolution.
// A feature may render with several styles at once.
type Function func(f *geojson.Feature, resolution float64) ([]Style, error)

// Static returns a Function that always resolves to styles.
func Static(styles ...Style) Function {
	return func(*geojson.Feature, float64) ([]Style, error) {
		return styles, nil
	}
}

// GeometryKind is the rendering class of a geometry.
type GeometryKind int

const (
	KindNone GeometryKind = iota
	KindPoint
	KindLine
	KindPolygon
)

func (k GeometryKind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindLine:
		return "line"
	case KindPolygon:
		return "polygon"
	}
	return "none"
}

// KindOf classifies g. Multi-geometries take the kind of their members;
// collections and nil have no kind.
func KindOf(g orb.Geometry) GeometryKind {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return KindPoint
	case orb.LineString, orb.MultiLineString:
		return KindLine
	case orb.Polygon, orb.MultiPolygon, orb.Ring, orb.Bound:
		return KindPolygon
	}
	return KindNone
}
