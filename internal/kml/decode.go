package kml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
	"golang.org/x/net/html/charset"

	"github.com/joeblew999/plat-geoview/internal/style"
)

var (
	ErrNoFeatures = errors.New("kml: document has no placemarks")
	ErrInvalid    = errors.New("kml: invalid document")
)

// Placemark is a decoded feature together with the style it declares.
type Placemark struct {
	Feature *geojson.Feature
	Style   style.Style
}

// DecodeOptions controls decoding.
type DecodeOptions struct {
	// Project, when set, is applied to every decoded geometry. Coordinates
	// are read as WGS84 longitude/latitude.
	Project orb.Projection
}

// Sniff reports whether a file looks like KML, by extension or by its root
// element.
func Sniff(filename string, head []byte) bool {
	if strings.EqualFold(filepath.Ext(filename), ".kml") {
		return true
	}
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(head, []byte("<kml"))
}

// Decode reads every placemark in the document, walking nested Document and
// Folder elements. Placemarks without geometry are skipped.
func Decode(r io.Reader, opts DecodeOptions) ([]Placemark, error) {
	var root xmlRoot
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	d := decoder{
		opts:      opts,
		styles:    map[string]xmlStyle{},
		styleMaps: map[string]xmlStyleMap{},
	}
	d.collectStyles(root.xmlContainer)

	var out []Placemark
	var err error
	d.walk(root.xmlContainer, func(pm xmlPlacemark) {
		if err != nil {
			return
		}
		var p Placemark
		var ok bool
		p, ok, err = d.placemark(pm)
		if ok {
			out = append(out, p)
		}
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoFeatures
	}
	return out, nil
}

type decoder struct {
	opts      DecodeOptions
	styles    map[string]xmlStyle
	styleMaps map[string]xmlStyleMap
}

func (d *decoder) collectStyles(c xmlContainer) {
	for _, s := range c.Styles {
		if s.ID != "" {
			d.styles[s.ID] = s
		}
	}
	for _, m := range c.StyleMaps {
		if m.ID != "" {
			d.styleMaps[m.ID] = m
		}
	}
	for _, f := range c.Folders {
		d.collectStyles(f)
	}
	for _, doc := range c.Documents {
		d.collectStyles(doc)
	}
}

func (d *decoder) walk(c xmlContainer, fn func(xmlPlacemark)) {
	for _, pm := range c.Placemarks {
		fn(pm)
	}
	for _, f := range c.Folders {
		d.walk(f, fn)
	}
	for _, doc := range c.Documents {
		d.walk(doc, fn)
	}
}

func (d *decoder) placemark(pm xmlPlacemark) (Placemark, bool, error) {
	geom, err := geometry(pm.xmlGeometries)
	if err != nil {
		return Placemark{}, false, fmt.Errorf("%w: placemark %q: %w", ErrInvalid, pm.Name, err)
	}
	if geom == nil {
		return Placemark{}, false, nil
	}
	if d.opts.Project != nil {
		geom = project.Geometry(geom, d.opts.Project)
	}

	f := geojson.NewFeature(geom)
	if pm.ID != "" {
		f.ID = pm.ID
	}
	if pm.Name != "" {
		f.Properties["name"] = pm.Name
	}
	if pm.Description != "" {
		f.Properties["description"] = strings.TrimSpace(pm.Description)
	}
	if ed := pm.ExtendedData; ed != nil {
		for _, data := range ed.Data {
			f.Properties[data.Name] = strings.TrimSpace(data.Value)
		}
		for _, sd := range ed.SchemaData {
			for _, simple := range sd.SimpleData {
				f.Properties[simple.Name] = strings.TrimSpace(simple.Value)
			}
		}
	}

	return Placemark{Feature: f, Style: d.resolveStyle(pm, geom)}, true, nil
}

// resolveStyle merges the referenced shared style with the inline one, the
// inline style taking precedence per sub-style.
func (d *decoder) resolveStyle(pm xmlPlacemark, geom orb.Geometry) style.Style {
	var merged xmlStyle
	if pm.StyleURL != "" {
		if s, ok := d.lookup(pm.StyleURL, 0); ok {
			merged = s
		}
	}
	if pm.Style != nil {
		merged = overlay(merged, *pm.Style)
	}
	return toStyle(merged, pm.Name, style.KindOf(geom))
}

func (d *decoder) lookup(url string, depth int) (xmlStyle, bool) {
	if depth > 4 {
		return xmlStyle{}, false
	}
	id := url
	if i := strings.LastIndexByte(url, '#'); i >= 0 {
		id = url[i+1:]
	}
	if s, ok := d.styles[id]; ok {
		return s, true
	}
	if m, ok := d.styleMaps[id]; ok {
		for _, pair := range m.Pairs {
			if pair.Key != "normal" {
				continue
			}
			if pair.Style != nil {
				return *pair.Style, true
			}
			return d.lookup(pair.StyleURL, depth+1)
		}
	}
	return xmlStyle{}, false
}

func overlay(base, top xmlStyle) xmlStyle {
	if top.IconStyle != nil {
		base.IconStyle = top.IconStyle
	}
	if top.LabelStyle != nil {
		base.LabelStyle = top.LabelStyle
	}
	if top.LineStyle != nil {
		base.LineStyle = top.LineStyle
	}
	if top.PolyStyle != nil {
		base.PolyStyle = top.PolyStyle
	}
	return base
}

func geometry(g xmlGeometries) (orb.Geometry, error) {
	var geoms []orb.Geometry
	for _, p := range g.Points {
		pts, err := parseCoordinates(p.Coordinates)
		if err != nil {
			return nil, err
		}
		if len(pts) == 0 {
			return nil, errors.New("point without coordinates")
		}
		geoms = append(geoms, pts[0])
	}
	for _, ls := range g.LineStrings {
		pts, err := parseCoordinates(ls.Coordinates)
		if err != nil {
			return nil, err
		}
		geoms = append(geoms, orb.LineString(pts))
	}
	for _, lr := range g.LinearRings {
		pts, err := parseCoordinates(lr.Coordinates)
		if err != nil {
			return nil, err
		}
		geoms = append(geoms, orb.Polygon{orb.Ring(pts)})
	}
	for _, poly := range g.Polygons {
		outer, err := parseCoordinates(poly.Outer.LinearRing.Coordinates)
		if err != nil {
			return nil, err
		}
		p := orb.Polygon{orb.Ring(outer)}
		for _, inner := range poly.Inner {
			pts, err := parseCoordinates(inner.LinearRing.Coordinates)
			if err != nil {
				return nil, err
			}
			p = append(p, orb.Ring(pts))
		}
		geoms = append(geoms, p)
	}
	for _, mg := range g.MultiGeometry {
		sub, err := geometry(mg.xmlGeometries)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			geoms = append(geoms, sub)
		}
	}

	switch len(geoms) {
	case 0:
		return nil, nil
	case 1:
		return geoms[0], nil
	}
	return homogenize(geoms), nil
}

// homogenize turns a list of same-typed geometries into the matching multi
// geometry, and anything mixed into a collection.
func homogenize(geoms []orb.Geometry) orb.Geometry {
	switch geoms[0].(type) {
	case orb.Point:
		mp := make(orb.MultiPoint, 0, len(geoms))
		for _, g := range geoms {
			p, ok := g.(orb.Point)
			if !ok {
				return orb.Collection(geoms)
			}
			mp = append(mp, p)
		}
		return mp
	case orb.LineString:
		mls := make(orb.MultiLineString, 0, len(geoms))
		for _, g := range geoms {
			ls, ok := g.(orb.LineString)
			if !ok {
				return orb.Collection(geoms)
			}
			mls = append(mls, ls)
		}
		return mls
	case orb.Polygon:
		mp := make(orb.MultiPolygon, 0, len(geoms))
		for _, g := range geoms {
			p, ok := g.(orb.Polygon)
			if !ok {
				return orb.Collection(geoms)
			}
			mp = append(mp, p)
		}
		return mp
	}
	return orb.Collection(geoms)
}

// parseCoordinates reads whitespace separated "lon,lat[,alt]" tuples.
// Altitude is dropped.
func parseCoordinates(s string) ([]orb.Point, error) {
	fields := strings.Fields(s)
	pts := make([]orb.Point, 0, len(fields))
	for _, tuple := range fields {
		vals := strings.Split(tuple, ",")
		if len(vals) < 2 {
			return nil, fmt.Errorf("bad coordinate tuple %q", tuple)
		}
		lon, err := strconv.ParseFloat(vals[0], 64)
		if err != nil {
			return nil, fmt.Errorf("bad longitude in %q: %w", tuple, err)
		}
		lat, err := strconv.ParseFloat(vals[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad latitude in %q: %w", tuple, err)
		}
		pts = append(pts, orb.Point{lon, lat})
	}
	return pts, nil
}
