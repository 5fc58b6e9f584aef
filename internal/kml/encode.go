package kml

import (
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/joeblew999/plat-geoview/internal/style"
)

// EncodeOptions controls encoding.
type EncodeOptions struct {
	// Name is the Document name.
	Name string
	// Project, when set, is applied to a copy of every geometry before
	// writing. Output coordinates must be WGS84 longitude/latitude.
	Project orb.Projection
	// Skip lists attributes that are never written as ExtendedData.
	Skip []string
}

// Encode writes placemarks as a KML 2.2 document. The name and description
// attributes become elements; every other plain attribute is written as
// ExtendedData.
func Encode(w io.Writer, placemarks []Placemark, opts EncodeOptions) error {
	doc := xmlContainer{Name: opts.Name}
	for i, pm := range placemarks {
		xpm, err := encodePlacemark(pm, opts)
		if err != nil {
			return fmt.Errorf("kml: placemark %d: %w", i, err)
		}
		doc.Placemarks = append(doc.Placemarks, xpm)
	}
	root := xmlRoot{Xmlns: Namespace}
	root.Documents = []xmlContainer{doc}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("kml: encode: %w", err)
	}
	return enc.Close()
}

func encodePlacemark(pm Placemark, opts EncodeOptions) (xmlPlacemark, error) {
	f := pm.Feature
	if f == nil || f.Geometry == nil {
		return xmlPlacemark{}, fmt.Errorf("feature has no geometry")
	}
	geom := f.Geometry
	if opts.Project != nil {
		geom = project.Geometry(orb.Clone(geom), opts.Project)
	}

	xpm := xmlPlacemark{Style: fromStyle(pm.Style)}
	if id, ok := f.ID.(string); ok {
		xpm.ID = id
	}
	var err error
	if xpm.xmlGeometries, err = encodeGeometry(geom); err != nil {
		return xmlPlacemark{}, err
	}

	keys := make([]string, 0, len(f.Properties))
	for k := range f.Properties {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var data []xmlData
	for _, k := range keys {
		if slices.Contains(opts.Skip, k) {
			continue
		}
		v, ok := plain(f.Properties[k])
		if !ok {
			continue
		}
		switch k {
		case "name":
			xpm.Name = v
		case "description":
			xpm.Description = v
		default:
			data = append(data, xmlData{Name: k, Value: v})
		}
	}
	if len(data) > 0 {
		xpm.ExtendedData = &xmlExtendedData{Data: data}
	}
	return xpm, nil
}

// plain formats scalar attribute values. Maps, slices and other structured
// values have no KML form and are left out.
func plain(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case fmt.Stringer:
		return v.String(), true
	}
	return "", false
}

func encodeGeometry(g orb.Geometry) (xmlGeometries, error) {
	var out xmlGeometries
	switch g := g.(type) {
	case orb.Point:
		out.Points = []xmlPoint{{Coordinates: formatCoordinates([]orb.Point{g})}}
	case orb.LineString:
		out.LineStrings = []xmlCoordinates{{Coordinates: formatCoordinates(g)}}
	case orb.Ring:
		out.Polygons = []xmlPolygon{encodePolygon(orb.Polygon{g})}
	case orb.Polygon:
		out.Polygons = []xmlPolygon{encodePolygon(g)}
	case orb.Bound:
		out.Polygons = []xmlPolygon{encodePolygon(g.ToPolygon())}
	case orb.MultiPoint, orb.MultiLineString, orb.MultiPolygon, orb.Collection:
		var mg xmlMultiGeometry
		for _, member := range members(g) {
			sub, err := encodeGeometry(member)
			if err != nil {
				return xmlGeometries{}, err
			}
			mg.Points = append(mg.Points, sub.Points...)
			mg.LineStrings = append(mg.LineStrings, sub.LineStrings...)
			mg.Polygons = append(mg.Polygons, sub.Polygons...)
			mg.MultiGeometry = append(mg.MultiGeometry, sub.MultiGeometry...)
		}
		out.MultiGeometry = []xmlMultiGeometry{mg}
	default:
		return xmlGeometries{}, fmt.Errorf("unsupported geometry %T", g)
	}
	return out, nil
}

func members(g orb.Geometry) []orb.Geometry {
	var out []orb.Geometry
	switch g := g.(type) {
	case orb.MultiPoint:
		for _, p := range g {
			out = append(out, p)
		}
	case orb.MultiLineString:
		for _, ls := range g {
			out = append(out, ls)
		}
	case orb.MultiPolygon:
		for _, p := range g {
			out = append(out, p)
		}
	case orb.Collection:
		out = append(out, g...)
	}
	return out
}

func encodePolygon(p orb.Polygon) xmlPolygon {
	var xp xmlPolygon
	for i, ring := range p {
		b := xmlBoundary{LinearRing: xmlCoordinates{Coordinates: formatCoordinates(ring)}}
		if i == 0 {
			xp.Outer = b
		} else {
			xp.Inner = append(xp.Inner, b)
		}
	}
	return xp
}

func formatCoordinates(pts []orb.Point) string {
	var b strings.Builder
	for i, p := range pts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(p[0], 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p[1], 'f', -1, 64))
	}
	return b.String()
}

// StyleFunction returns a style function resolving to the placemark's
// declared style.
func (p Placemark) StyleFunction() style.Function {
	return style.Static(p.Style)
}
