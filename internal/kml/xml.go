// Package kml reads and writes KML 2.2 documents as orb geometries with
// their declared styles.
package kml

import "encoding/xml"

const Namespace = "http://www.opengis.net/kml/2.2"

// xmlRoot is the <kml> element. Features may sit directly under it or in
// any depth of Document and Folder containers.
type xmlRoot struct {
	XMLName xml.Name `xml:"kml"`
	Xmlns   string   `xml:"xmlns,attr,omitempty"`
	xmlContainer
}

type xmlContainer struct {
	Name       string         `xml:"name,omitempty"`
	Styles     []xmlStyle     `xml:"Style"`
	StyleMaps  []xmlStyleMap  `xml:"StyleMap"`
	Placemarks []xmlPlacemark `xml:"Placemark"`
	Folders    []xmlContainer `xml:"Folder"`
	Documents  []xmlContainer `xml:"Document"`
}

type xmlPlacemark struct {
	ID           string           `xml:"id,attr,omitempty"`
	Name         string           `xml:"name,omitempty"`
	Description  string           `xml:"description,omitempty"`
	StyleURL     string           `xml:"styleUrl,omitempty"`
	Style        *xmlStyle        `xml:"Style"`
	ExtendedData *xmlExtendedData `xml:"ExtendedData"`
	xmlGeometries
}

// xmlGeometries is shared by Placemark and MultiGeometry.
type xmlGeometries struct {
	Points        []xmlPoint         `xml:"Point"`
	LineStrings   []xmlCoordinates   `xml:"LineString"`
	LinearRings   []xmlCoordinates   `xml:"LinearRing"`
	Polygons      []xmlPolygon       `xml:"Polygon"`
	MultiGeometry []xmlMultiGeometry `xml:"MultiGeometry"`
}

type xmlMultiGeometry struct {
	xmlGeometries
}

type xmlPoint struct {
	Coordinates string `xml:"coordinates"`
}

type xmlCoordinates struct {
	Tessellate  int    `xml:"tessellate,omitempty"`
	Coordinates string `xml:"coordinates"`
}

type xmlPolygon struct {
	Outer xmlBoundary   `xml:"outerBoundaryIs"`
	Inner []xmlBoundary `xml:"innerBoundaryIs"`
}

type xmlBoundary struct {
	LinearRing xmlCoordinates `xml:"LinearRing"`
}

type xmlExtendedData struct {
	Data       []xmlData       `xml:"Data"`
	SchemaData []xmlSchemaData `xml:"SchemaData"`
}

type xmlData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

type xmlSchemaData struct {
	SchemaURL  string          `xml:"schemaUrl,attr,omitempty"`
	SimpleData []xmlSimpleData `xml:"SimpleData"`
}

type xmlSimpleData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlStyle struct {
	ID         string         `xml:"id,attr,omitempty"`
	IconStyle  *xmlIconStyle  `xml:"IconStyle"`
	LabelStyle *xmlLabelStyle `xml:"LabelStyle"`
	LineStyle  *xmlLineStyle  `xml:"LineStyle"`
	PolyStyle  *xmlPolyStyle  `xml:"PolyStyle"`
}

type xmlStyleMap struct {
	ID    string    `xml:"id,attr"`
	Pairs []xmlPair `xml:"Pair"`
}

type xmlPair struct {
	Key      string    `xml:"key"`
	StyleURL string    `xml:"styleUrl"`
	Style    *xmlStyle `xml:"Style"`
}

type xmlIconStyle struct {
	Color   string      `xml:"color,omitempty"`
	Scale   *float64    `xml:"scale"`
	Heading float64     `xml:"heading,omitempty"`
	Icon    *xmlIcon    `xml:"Icon"`
	HotSpot *xmlHotSpot `xml:"hotSpot"`
}

type xmlIcon struct {
	Href string `xml:"href"`
}

type xmlHotSpot struct {
	X      float64 `xml:"x,attr"`
	Y      float64 `xml:"y,attr"`
	XUnits string  `xml:"xunits,attr"`
	YUnits string  `xml:"yunits,attr"`
}

type xmlLabelStyle struct {
	Color string   `xml:"color,omitempty"`
	Scale *float64 `xml:"scale"`
}

type xmlLineStyle struct {
	Color string   `xml:"color,omitempty"`
	Width *float64 `xml:"width"`
}

type xmlPolyStyle struct {
	Color   string `xml:"color,omitempty"`
	Fill    *int   `xml:"fill"`
	Outline *int   `xml:"outline"`
}
