package kml

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/joeblew999/plat-geoview/internal/style"
)

// Defaults applied to placemarks whose style leaves a sub-style out.
const (
	DefaultIconSrc    = "https://maps.google.com/mapfiles/kml/pushpin/ylw-pushpin.png"
	DefaultLabelFont  = "bold 16px Helvetica"
	defaultIconScale  = 0.5
	defaultLabelScale = 0.8
)

var (
	defaultIconAnchor = []float64{20, 2}
	defaultIconSize   = []float64{64, 64}
	white             = style.RGBA(255, 255, 255, 1)
	labelHalo         = style.RGBA(51, 51, 51, 1)
)

// ParseColor reads a KML aabbggrr colour.
func ParseColor(s string) (style.Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 8 {
		return style.Color{}, fmt.Errorf("kml color %q: want 8 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return style.Color{}, fmt.Errorf("kml color %q: %w", s, err)
	}
	a := uint8(v >> 24)
	b := uint8(v >> 16)
	g := uint8(v >> 8)
	r := uint8(v)
	return style.RGBA(r, g, b, float64(a)/255), nil
}

// FormatColor writes c as aabbggrr.
func FormatColor(c style.Color) string {
	a := uint8(math.Round(math.Max(0, math.Min(1, c.Alpha())) * 255))
	hex := c.Hex()
	return fmt.Sprintf("%02x%s%s%s", a, hex[5:7], hex[3:5], hex[1:3])
}

// formatColorRef leaves an unset colour out of the document.
func formatColorRef(c *style.Color) string {
	if c == nil {
		return ""
	}
	return FormatColor(*c)
}

func colorOr(s string, def *style.Color) *style.Color {
	if s == "" {
		return def
	}
	c, err := ParseColor(s)
	if err != nil {
		return def
	}
	return &c
}

// toStyle converts a KML style to a feature style. Missing sub-styles fall
// back to the KML defaults; labels are only drawn for named points.
func toStyle(xs xmlStyle, name string, kind style.GeometryKind) style.Style {
	var s style.Style

	fill := &style.Fill{Color: style.RGBA(255, 255, 255, 0.75).Ptr()}
	stroke := &style.Stroke{Color: white.Ptr(), Width: 1}
	if ps := xs.PolyStyle; ps != nil {
		fill.Color = colorOr(ps.Color, fill.Color)
		if ps.Fill != nil && *ps.Fill == 0 {
			fill = nil
		}
		if ps.Outline != nil && *ps.Outline == 0 && kind == style.KindPolygon {
			stroke = nil
		}
	}
	if ls := xs.LineStyle; ls != nil && stroke != nil {
		stroke.Color = colorOr(ls.Color, stroke.Color)
		if ls.Width != nil {
			stroke.Width = *ls.Width
		}
	}

	switch kind {
	case style.KindPoint:
		s.Image = toIcon(xs.IconStyle)
	case style.KindLine:
		s.Stroke = stroke
	case style.KindPolygon:
		s.Fill = fill
		s.Stroke = stroke
	case style.KindNone:
		s.Fill = fill
		s.Stroke = stroke
		s.Image = toIcon(xs.IconStyle)
	}

	if name != "" && kind == style.KindPoint {
		text := &style.Text{
			Text:   style.String(name),
			Font:   DefaultLabelFont,
			Scale:  defaultLabelScale,
			Fill:   &style.Fill{Color: white.Ptr()},
			Stroke: &style.Stroke{Color: labelHalo.Ptr(), Width: 2},
		}
		if lbl := xs.LabelStyle; lbl != nil {
			text.Fill.Color = colorOr(lbl.Color, white.Ptr())
			if lbl.Scale != nil {
				text.Scale = *lbl.Scale
			}
		}
		s.Text = text
	}
	return s
}

func toIcon(is *xmlIconStyle) *style.Icon {
	icon := style.NewIcon(DefaultIconSrc)
	icon.Anchor = defaultIconAnchor
	icon.AnchorOrigin = "bottom-left"
	icon.AnchorXUnits = "pixels"
	icon.AnchorYUnits = "pixels"
	icon.Size = defaultIconSize
	icon.Scale = defaultIconScale
	if is == nil {
		return icon
	}

	if is.Icon != nil && is.Icon.Href != "" {
		icon.Src = is.Icon.Href
		icon.Size = nil
		icon.Anchor = []float64{0.5, 0.5}
		icon.AnchorXUnits = "fraction"
		icon.AnchorYUnits = "fraction"
	}
	if hs := is.HotSpot; hs != nil {
		icon.Anchor = []float64{hs.X, hs.Y}
		icon.AnchorXUnits = units(hs.XUnits)
		icon.AnchorYUnits = units(hs.YUnits)
	}
	if is.Scale != nil {
		icon.Scale = *is.Scale * defaultIconScale
	}
	if is.Heading != 0 {
		icon.Rotation = is.Heading * math.Pi / 180
	}
	if is.Color != "" {
		icon.Color = colorOr(is.Color, nil)
	}
	return icon
}

func units(u string) string {
	switch u {
	case "pixels", "insetPixels":
		return "pixels"
	}
	return "fraction"
}

// fromStyle writes the KML form of a feature style.
func fromStyle(s style.Style) *xmlStyle {
	var xs xmlStyle
	empty := true

	if icon, ok := s.Image.(*style.Icon); ok && icon != nil {
		is := &xmlIconStyle{Icon: &xmlIcon{Href: icon.Src}}
		if icon.Scale != 0 {
			scale := icon.Scale / defaultIconScale
			is.Scale = &scale
		}
		if icon.Rotation != 0 {
			is.Heading = icon.Rotation * 180 / math.Pi
		}
		if icon.Color != nil {
			is.Color = FormatColor(*icon.Color)
		}
		if len(icon.Anchor) == 2 && icon.AnchorOrigin == "bottom-left" {
			xu, yu := icon.AnchorXUnits, icon.AnchorYUnits
			if xu == "" {
				xu = "fraction"
			}
			if yu == "" {
				yu = "fraction"
			}
			is.HotSpot = &xmlHotSpot{X: icon.Anchor[0], Y: icon.Anchor[1], XUnits: xu, YUnits: yu}
		}
		xs.IconStyle = is
		empty = false
	}
	if s.Stroke != nil {
		width := s.Stroke.Width
		xs.LineStyle = &xmlLineStyle{Color: formatColorRef(s.Stroke.Color), Width: &width}
		empty = false
	}
	if s.Fill != nil || s.Stroke != nil {
		ps := &xmlPolyStyle{}
		if s.Fill != nil {
			ps.Color = formatColorRef(s.Fill.Color)
		} else {
			zero := 0
			ps.Fill = &zero
		}
		if s.Stroke == nil {
			zero := 0
			ps.Outline = &zero
		}
		xs.PolyStyle = ps
		empty = false
	}
	if s.Text != nil && s.Text.Fill != nil {
		ls := &xmlLabelStyle{Color: formatColorRef(s.Text.Fill.Color)}
		if s.Text.Scale != 0 {
			scale := s.Text.Scale
			ls.Scale = &scale
		}
		xs.LabelStyle = ls
		empty = false
	}
	if empty {
		return nil
	}
	return &xs
}
