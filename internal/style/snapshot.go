package style

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb/geojson"
)

// Documented defaults. A serialized field equal to its default is absent.
var (
	DefaultIconAnchor       = []float64{0.5, 0.5}
	DefaultIconOffset       = []float64{0, 0}
	DefaultIconDisplacement = []float64{0, 0}
	DefaultTextPadding      = []float64{0, 0, 0, 0}
	DefaultTextMaxAngle     = math.Pi / 4
	DefaultMiterLimit       = 10.0
	DefaultLineCap          = "round"
	DefaultLineJoin         = "round"
	DefaultOrigin           = "top-left"
	DefaultUnits            = "fraction"
	DefaultTextPlacement    = "point"
	DefaultTextBaseline     = "middle"
)

var (
	ErrInvalidResolution = errors.New("resolution must be positive")
	ErrNoStyleFunction   = errors.New("feature has no style function")
)

// Snapshot is the plain form of one resolved Style.
type Snapshot struct {
	Fill   Field[FillSnapshot]   `json:"fill,omitzero"`
	Icon   Field[IconSnapshot]   `json:"icon,omitzero"`
	Stroke Field[StrokeSnapshot] `json:"stroke,omitzero"`
	Text   Field[TextSnapshot]   `json:"text,omitzero"`
	ZIndex Field[int]            `json:"zIndex,omitzero"`
}

// FillSnapshot carries a colour. Text strokes reuse it as well.
type FillSnapshot struct {
	Color Field[Color] `json:"color,omitzero"`
}

type StrokeSnapshot struct {
	Color          Field[Color]     `json:"color,omitzero"`
	LineCap        Field[string]    `json:"lineCap,omitzero"`
	LineJoin       Field[string]    `json:"lineJoin,omitzero"`
	LineDash       Field[[]float64] `json:"lineDash,omitzero"`
	LineDashOffset Field[float64]   `json:"lineDashOffset,omitzero"`
	MiterLimit     Field[float64]   `json:"miterLimit,omitzero"`
	Width          Field[float64]   `json:"width,omitzero"`
}

type IconSnapshot struct {
	Anchor         Field[[]float64] `json:"anchor,omitzero"`
	AnchorOrigin   Field[string]    `json:"anchorOrigin,omitzero"`
	AnchorXUnits   Field[string]    `json:"anchorXUnits,omitzero"`
	AnchorYUnits   Field[string]    `json:"anchorYUnits,omitzero"`
	Color          Field[Color]     `json:"color,omitzero"`
	CrossOrigin    Field[string]    `json:"crossOrigin,omitzero"`
	Offset         Field[[]float64] `json:"offset,omitzero"`
	Displacement   Field[[]float64] `json:"displacement,omitzero"`
	OffsetOrigin   Field[string]    `json:"offsetOrigin,omitzero"`
	Opacity        Field[float64]   `json:"opacity,omitzero"`
	Scale          Field[float64]   `json:"scale,omitzero"`
	RotateWithView Field[bool]      `json:"rotateWithView,omitzero"`
	Rotation       Field[float64]   `json:"rotation,omitzero"`
	Size           Field[[]float64] `json:"size,omitzero"`
	ImgSize        Field[[]float64] `json:"imgSize,omitzero"`
	Src            Field[string]    `json:"src,omitzero"`
}

type TextSnapshot struct {
	Font             Field[string]       `json:"font,omitzero"`
	MaxAngle         Field[float64]      `json:"maxAngle,omitzero"`
	OffsetX          Field[float64]      `json:"offsetX,omitzero"`
	OffsetY          Field[float64]      `json:"offsetY,omitzero"`
	Overflow         Field[bool]         `json:"overflow,omitzero"`
	Placement        Field[string]       `json:"placement,omitzero"`
	Scale            Field[float64]      `json:"scale,omitzero"`
	RotateWithView   Field[bool]         `json:"rotateWithView,omitzero"`
	Rotation         Field[float64]      `json:"rotation,omitzero"`
	Text             Field[string]       `json:"text,omitzero"`
	TextAlign        Field[string]       `json:"textAlign,omitzero"`
	TextBaseline     Field[string]       `json:"textBaseline,omitzero"`
	Padding          Field[[]float64]    `json:"padding,omitzero"`
	Fill             Field[FillSnapshot] `json:"fill,omitzero"`
	Stroke           Field[FillSnapshot] `json:"stroke,omitzero"`
	BackgroundFill   Field[FillSnapshot] `json:"backgroundFill,omitzero"`
	BackgroundStroke Field[FillSnapshot] `json:"backgroundStroke,omitzero"`
}

// Resolve runs fn for f at resolution.
func Resolve(f *geojson.Feature, fn Function, resolution float64) ([]Style, error) {
	if fn == nil {
		return nil, ErrNoStyleFunction
	}
	if !(resolution > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResolution, resolution)
	}
	styles, err := fn(f, resolution)
	if err != nil {
		return nil, fmt.Errorf("resolve style: %w", err)
	}
	return styles, nil
}

// FeatureSnapshots resolves f's styles at resolution and serializes each one,
// in resolution order.
func FeatureSnapshots(f *geojson.Feature, fn Function, resolution float64) ([]Snapshot, error) {
	styles, err := Resolve(f, fn, resolution)
	if err != nil {
		return nil, err
	}
	return SerializeAll(styles), nil
}

// SerializeAll serializes styles in order.
func SerializeAll(styles []Style) []Snapshot {
	snapshots := make([]Snapshot, 0, len(styles))
	for _, s := range styles {
		snapshots = append(snapshots, Serialize(s))
	}
	return snapshots
}

// HaloWidths returns the width of each style's text outline, 0 where there
// is none. Snapshots keep only the outline colour.
func HaloWidths(styles []Style) []float64 {
	widths := make([]float64, len(styles))
	for i, s := range styles {
		if s.Text != nil && s.Text.Stroke != nil {
			widths[i] = s.Text.Stroke.Width
		}
	}
	return widths
}

// Serialize converts s into its snapshot.
func Serialize(s Style) Snapshot {
	snap := Snapshot{
		Fill:   SerializeFill(s.Fill),
		Icon:   SerializeImage(s.Image),
		Stroke: SerializeStroke(s.Stroke),
		Text:   SerializeText(s.Text),
	}
	if s.ZIndex != nil {
		snap.ZIndex = Some(*s.ZIndex)
	}
	return snap
}

func SerializeFill(f *Fill) Field[FillSnapshot] {
	if f == nil {
		return Absent[FillSnapshot]()
	}
	return Some(FillSnapshot{Color: OptionalRef(f.Color)})
}

// serializeStrokeColor gives text strokes the same shape as fills.
func serializeStrokeColor(s *Stroke) Field[FillSnapshot] {
	if s == nil {
		return Absent[FillSnapshot]()
	}
	return Some(FillSnapshot{Color: OptionalRef(s.Color)})
}

// SerializeImage serializes icons; any other image kind is absent.
func SerializeImage(img Image) Field[IconSnapshot] {
	switch img := img.(type) {
	case *Icon:
		return SerializeIcon(img)
	case *Circle, nil:
		return Absent[IconSnapshot]()
	}
	return Absent[IconSnapshot]()
}

func SerializeIcon(i *Icon) Field[IconSnapshot] {
	if i == nil {
		return Absent[IconSnapshot]()
	}
	return Some(IconSnapshot{
		Anchor:         ExcludeSlice(i.Anchor, DefaultIconAnchor),
		AnchorOrigin:   ExcludeName(i.AnchorOrigin, DefaultOrigin),
		AnchorXUnits:   ExcludeName(i.AnchorXUnits, DefaultUnits),
		AnchorYUnits:   ExcludeName(i.AnchorYUnits, DefaultUnits),
		Color:          OptionalRef(i.Color),
		CrossOrigin:    Optional(i.CrossOrigin),
		Offset:         ExcludeSlice(i.Offset, DefaultIconOffset),
		Displacement:   ExcludeSlice(i.Displacement, DefaultIconDisplacement),
		OffsetOrigin:   ExcludeName(i.OffsetOrigin, DefaultOrigin),
		Opacity:        Some(i.Opacity),
		Scale:          Some(i.Scale),
		RotateWithView: Some(i.RotateWithView),
		Rotation:       Some(i.Rotation),
		Size:           OptionalSlice(i.Size),
		ImgSize:        OptionalSlice(i.ImgSize),
		Src:            Optional(i.Src),
	})
}

func SerializeStroke(s *Stroke) Field[StrokeSnapshot] {
	if s == nil {
		return Absent[StrokeSnapshot]()
	}
	return Some(StrokeSnapshot{
		Color:          OptionalRef(s.Color),
		LineCap:        ExcludeName(s.LineCap, DefaultLineCap),
		LineJoin:       ExcludeName(s.LineJoin, DefaultLineJoin),
		LineDash:       OptionalSlice(s.LineDash),
		LineDashOffset: Exclude(s.LineDashOffset, 0),
		MiterLimit:     ExcludeRef(s.MiterLimit, DefaultMiterLimit),
		Width:          Optional(s.Width),
	})
}

// SerializeText is absent when the label has no content, whatever else is set.
func SerializeText(t *Text) Field[TextSnapshot] {
	content, ok := t.Content()
	if !ok {
		return Absent[TextSnapshot]()
	}
	return Some(TextSnapshot{
		Font:             Optional(t.Font),
		MaxAngle:         ExcludeRef(t.MaxAngle, DefaultTextMaxAngle),
		OffsetX:          Exclude(t.OffsetX, 0),
		OffsetY:          Exclude(t.OffsetY, 0),
		Overflow:         Exclude(t.Overflow, false),
		Placement:        ExcludeName(t.Placement, DefaultTextPlacement),
		Scale:            Optional(t.Scale),
		RotateWithView:   Exclude(t.RotateWithView, false),
		Rotation:         Exclude(t.Rotation, 0),
		Text:             Some(content),
		TextAlign:        Optional(t.TextAlign),
		TextBaseline:     ExcludeName(t.TextBaseline, DefaultTextBaseline),
		Padding:          ExcludeSlice(t.Padding, DefaultTextPadding),
		Fill:             SerializeFill(t.Fill),
		Stroke:           serializeStrokeColor(t.Stroke),
		BackgroundFill:   SerializeFill(t.BackgroundFill),
		BackgroundStroke: serializeStrokeColor(t.BackgroundStroke),
	})
}
