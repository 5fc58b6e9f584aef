package mapview

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Abs(b))
}

func TestNewView(t *testing.T) {
	v := NewView(orb.Point{0, 0}, 0, Size{Width: 256, Height: 256})
	if v.Center != (orb.Point{0, 0}) || v.Resolution != MaxResolution {
		t.Errorf("view = %+v", v)
	}
	if got := ZoomResolution(8); !near(got, MaxResolution/256) {
		t.Errorf("ZoomResolution(8) = %v", got)
	}
	if z := NewView(orb.Point{10, 10}, 5.5, Size{}).Zoom(); !near(z, 5.5) {
		t.Errorf("zoom = %v", z)
	}
}

func TestFit(t *testing.T) {
	v := View{Size: Size{Width: 300, Height: 200}, Resolution: 1}
	extent := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1000, 500}}

	tests := []struct {
		name    string
		padding [4]float64
		res     float64
		center  orb.Point
	}{
		{"no padding", [4]float64{}, 1000.0 / 300, orb.Point{500, 250}},
		{"uniform padding", [4]float64{50, 50, 50, 50}, 1000.0 / 200, orb.Point{500, 250}},
		// right padding 100: the extent sits left of the view center.
		{"uneven padding", [4]float64{0, 100, 0, 0}, 1000.0 / 200, orb.Point{500 + 50*1000.0/200, 250}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Fit(extent, FitOptions{Padding: tt.padding})
			if err != nil {
				t.Fatal(err)
			}
			if !near(got.Resolution, tt.res) {
				t.Errorf("resolution = %v, want %v", got.Resolution, tt.res)
			}
			if !near(got.Center[0], tt.center[0]) || !near(got.Center[1], tt.center[1]) {
				t.Errorf("center = %v, want %v", got.Center, tt.center)
			}
			if got.Size != v.Size {
				t.Errorf("size changed: %+v", got.Size)
			}
		})
	}
}

func TestFitPointCapsZoom(t *testing.T) {
	v := View{Size: Size{Width: 100, Height: 100}, Resolution: 1}
	p := orb.Point{5, 5}

	got, err := v.Fit(p.Bound(), FitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !near(got.Resolution, ZoomResolution(DefaultMaxZoom)) || got.Center != p {
		t.Errorf("view = %+v", got)
	}

	got, _ = v.Fit(p.Bound(), FitOptions{MaxZoom: 10})
	if !near(got.Resolution, ZoomResolution(10)) {
		t.Errorf("resolution = %v", got.Resolution)
	}
}

func TestFitEmpty(t *testing.T) {
	empty := orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{0, 0}}
	if _, err := (View{}).Fit(empty, FitOptions{}); !errors.Is(err, ErrEmptyExtent) {
		t.Errorf("err = %v", err)
	}
}

func TestAnimationFrame(t *testing.T) {
	a := Animation{
		To:       View{Center: orb.Point{1, 2}, Resolution: MaxResolution / 4},
		Padding:  [4]float64{50, 50, 50, 50},
		Duration: time.Second,
	}
	f := a.Frame()
	if f.Center != (orb.Point{1, 2}) || f.Duration != 1000 || !near(f.Zoom, 2) || f.Padding != a.Padding {
		t.Errorf("frame = %+v", f)
	}
}

func TestAssets(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "data.geojson")
	if err := os.WriteFile(path, []byte(dataGeoJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data.geojson" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(dataGeoJSON))
	}))
	defer srv.Close()

	loaders := []AssetLoader{
		BytesAsset{Name: "mem", Data: []byte(dataGeoJSON)},
		FileAsset(path),
		HTTPAsset{URL: srv.URL + "/data.geojson"},
	}
	for _, a := range loaders {
		fc, err := loadCollection(ctx, a)
		if err != nil {
			t.Errorf("%s: %v", a.Location(), err)
			continue
		}
		if len(fc.Features) != 2 {
			t.Errorf("%s: %d features", a.Location(), len(fc.Features))
		}
	}

	if _, err := loadCollection(ctx, HTTPAsset{URL: srv.URL + "/missing"}); err == nil {
		t.Error("expected error for 404")
	}
	if _, err := loadCollection(ctx, FileAsset(filepath.Join(t.TempDir(), "nope"))); err == nil {
		t.Error("expected error for missing file")
	}
}
