package mapview

import (
	"errors"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// MaxResolution is the resolution of zoom 0 for 256px spherical mercator tiles.
const MaxResolution = 156543.03392804097

// DefaultMaxZoom caps fits to a degenerate (single point) extent.
const DefaultMaxZoom = 28

var ErrEmptyExtent = errors.New("extent is empty")

// Size is a viewport size in pixels.
type Size struct {
	Width  float64 `json:"width" doc:"Viewport width in pixels"`
	Height float64 `json:"height" doc:"Viewport height in pixels"`
}

// View is the viewport state. Center is in EPSG:3857.
type View struct {
	Center     orb.Point `json:"center" doc:"Center in EPSG:3857"`
	Resolution float64   `json:"resolution" doc:"Map units per pixel"`
	Size       Size      `json:"size" doc:"Viewport size"`
}

// NewView centers a view on lon/lat at zoom.
func NewView(lonLat orb.Point, zoom float64, size Size) View {
	return View{
		Center:     project.Point(lonLat, project.WGS84.ToMercator),
		Resolution: ZoomResolution(zoom),
		Size:       size,
	}
}

// ZoomResolution converts a zoom level to a resolution.
func ZoomResolution(zoom float64) float64 {
	return MaxResolution / math.Pow(2, zoom)
}

// Zoom returns the fractional zoom level of the view.
func (v View) Zoom() float64 {
	return math.Log2(MaxResolution / v.Resolution)
}

// CenterLonLat returns the center in WGS84.
func (v View) CenterLonLat() orb.Point {
	return project.Point(v.Center, project.Mercator.ToWGS84)
}

// FitOptions configures View.Fit. Padding is top, right, bottom, left in pixels.
type FitOptions struct {
	Padding  [4]float64
	Duration time.Duration
	MaxZoom  float64
}

// Animation is a viewport transition. It is fire-and-forget: nothing waits
// for it and it cannot be cancelled.
type Animation struct {
	From     View          `json:"from"`
	To       View          `json:"to"`
	Extent   orb.Bound     `json:"extent"`
	Padding  [4]float64    `json:"padding"`
	Duration time.Duration `json:"duration"`
}

// Fit returns the view that shows extent inside the padded viewport.
func (v View) Fit(extent orb.Bound, opts FitOptions) (View, error) {
	if extent.IsEmpty() {
		return View{}, ErrEmptyExtent
	}

	pad := opts.Padding
	w := math.Max(v.Size.Width-pad[1]-pad[3], 1)
	h := math.Max(v.Size.Height-pad[0]-pad[2], 1)

	res := math.Max((extent.Max[0]-extent.Min[0])/w, (extent.Max[1]-extent.Min[1])/h)
	maxZoom := opts.MaxZoom
	if maxZoom == 0 {
		maxZoom = DefaultMaxZoom
	}
	res = math.Max(res, ZoomResolution(maxZoom))

	center := extent.Center()
	center[0] += (pad[1] - pad[3]) / 2 * res
	center[1] += (pad[0] - pad[2]) / 2 * res

	return View{Center: center, Resolution: res, Size: v.Size}, nil
}

// Frame is the wire form of an animation target.
type Frame struct {
	Center     orb.Point  `json:"center" doc:"Target center in EPSG:3857"`
	Resolution float64    `json:"resolution" doc:"Target resolution"`
	Zoom       float64    `json:"zoom" doc:"Target zoom level"`
	Extent     orb.Bound  `json:"extent" doc:"Fitted extent in EPSG:3857"`
	Padding    [4]float64 `json:"padding" doc:"Padding in pixels: top, right, bottom, left"`
	Duration   int64      `json:"duration" doc:"Duration in milliseconds"`
}

// Frame returns the animation's target for clients.
func (a Animation) Frame() Frame {
	return Frame{
		Center:     a.To.Center,
		Resolution: a.To.Resolution,
		Zoom:       a.To.Zoom(),
		Extent:     a.Extent,
		Padding:    a.Padding,
		Duration:   a.Duration.Milliseconds(),
	}
}
