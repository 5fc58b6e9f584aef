package style

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func TestSerializeStrokeLineCap(t *testing.T) {
	tests := []struct {
		name    string
		lineCap string
		want    Field[string]
	}{
		{"default round omitted", "round", Absent[string]()},
		{"square kept", "square", Some("square")},
		{"unset omitted", "", Absent[string]()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := SerializeStroke(&Stroke{Color: RGBA(0, 0, 0, 1).Ptr(), Width: 2, LineCap: tt.lineCap})
			got := snap.Value().LineCap
			if got != tt.want {
				t.Errorf("lineCap = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSerializeIconAnchor(t *testing.T) {
	icon := NewIcon("pin.png")
	icon.Anchor = []float64{0.5, 0.5}
	if a := SerializeIcon(icon).Value().Anchor; a.Present() {
		t.Errorf("anchor [0.5 0.5] should be absent, got %v", a.Value())
	}

	icon.Anchor = []float64{0.2, 0.8}
	a, ok := SerializeIcon(icon).Value().Anchor.Get()
	if !ok {
		t.Fatal("anchor [0.2 0.8] should be present")
	}
	if len(a) != 2 || a[0] != 0.2 || a[1] != 0.8 {
		t.Errorf("anchor = %v, want [0.2 0.8]", a)
	}

	icon.Anchor = []float64{0.5, 0.5, 0.5}
	if !SerializeIcon(icon).Value().Anchor.Present() {
		t.Error("anchor of different length should be present")
	}
}

func TestSerializeTextWithoutContent(t *testing.T) {
	text := &Text{
		Font:     "12px serif",
		OffsetX:  4,
		Overflow: true,
		Fill:     &Fill{Color: RGBA(1, 2, 3, 1).Ptr()},
	}
	if snap := Serialize(Style{Text: text}); snap.Text.Present() {
		t.Errorf("text without content should be absent, got %+v", snap.Text.Value())
	}

	text.Text = String("")
	snap := Serialize(Style{Text: text})
	if !snap.Text.Present() {
		t.Fatal("text with empty content should be present")
	}
	if got := snap.Text.Value().OffsetX.Value(); got != 4 {
		t.Errorf("offsetX = %v, want 4", got)
	}
}

func TestSerializeFillOnly(t *testing.T) {
	snap := Serialize(Style{Fill: &Fill{Color: RGBA(255, 0, 0, 1).Ptr()}})

	if snap.Icon.Present() || snap.Stroke.Present() || snap.Text.Present() || snap.ZIndex.Present() {
		t.Errorf("expected only fill, got %+v", snap)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"fill":{"color":[255,0,0,1]}}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestSerializeEmptyFillIsPresent(t *testing.T) {
	data, err := json.Marshal(Serialize(Style{Fill: &Fill{}}))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"fill":{}}` {
		t.Errorf("json = %s, want an empty fill mapping", data)
	}
}

func TestSerializeZIndex(t *testing.T) {
	z := 0
	snap := Serialize(Style{ZIndex: &z})
	if v, ok := snap.ZIndex.Get(); !ok || v != 0 {
		t.Errorf("zIndex = %v,%v, want 0,true", v, ok)
	}
}

func TestSerializeTextNestedColors(t *testing.T) {
	snap := Serialize(Style{Text: &Text{
		Text:   String("A"),
		Stroke: &Stroke{Color: RGBA(255, 255, 255, 1).Ptr(), Width: 4},
	}}).Text.Value()

	c, ok := snap.Stroke.Value().Color.Get()
	if !ok || c != RGBA(255, 255, 255, 1) {
		t.Errorf("text stroke color = %v,%v", c, ok)
	}
	if snap.BackgroundFill.Present() {
		t.Error("background fill should be absent")
	}
}

func TestSerializeStrokeDefaults(t *testing.T) {
	s := SerializeStroke(&Stroke{
		Color:      RGBA(0x92, 0x54, 0xde, 1).Ptr(),
		Width:      10,
		LineJoin:   "round",
		MiterLimit: Float(10),
		LineDash:   []float64{5, 20},
	}).Value()

	if s.LineJoin.Present() || s.MiterLimit.Present() || s.LineDashOffset.Present() {
		t.Errorf("defaults should be omitted: %+v", s)
	}
	if w := s.Width.Value(); w != 10 {
		t.Errorf("width = %v, want 10", w)
	}
	if d := s.LineDash.Value(); len(d) != 2 {
		t.Errorf("lineDash = %v", d)
	}
}

func TestSerializeCircleImage(t *testing.T) {
	snap := Serialize(Style{Image: &Circle{Radius: 5}})
	if snap.Icon.Present() {
		t.Error("circle images have no icon snapshot")
	}
}

func TestFeatureSnapshots(t *testing.T) {
	f := geojson.NewFeature(orb.Point{1, 2})

	t.Run("multiple styles keep order", func(t *testing.T) {
		fn := Static(
			Style{Fill: &Fill{Color: RGBA(1, 1, 1, 1).Ptr()}},
			Style{Stroke: &Stroke{Width: 3}},
		)
		snaps, err := FeatureSnapshots(f, fn, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(snaps) != 2 || !snaps[0].Fill.Present() || !snaps[1].Stroke.Present() {
			t.Errorf("unexpected snapshots %+v", snaps)
		}
	})

	t.Run("invalid resolution", func(t *testing.T) {
		_, err := FeatureSnapshots(f, Static(), 0)
		if !errors.Is(err, ErrInvalidResolution) {
			t.Errorf("err = %v, want ErrInvalidResolution", err)
		}
	})

	t.Run("nil function", func(t *testing.T) {
		_, err := FeatureSnapshots(f, nil, 1)
		if !errors.Is(err, ErrNoStyleFunction) {
			t.Errorf("err = %v, want ErrNoStyleFunction", err)
		}
	})

	t.Run("function error is wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		fn := func(*geojson.Feature, float64) ([]Style, error) { return nil, boom }
		_, err := FeatureSnapshots(f, fn, 1)
		if !errors.Is(err, boom) {
			t.Errorf("err = %v, want wrapped boom", err)
		}
	})
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	in := Serialize(Style{
		Stroke: &Stroke{Color: RGBA(9, 8, 7, 0.5).Ptr(), LineCap: "butt", Width: 1},
	})
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Snapshot
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Stroke.Value().LineCap.Value() != "butt" || out.Fill.Present() {
		t.Errorf("round trip lost data: %s", data)
	}
}

func TestSerializeExplicitZeroSettings(t *testing.T) {
	tests := []struct {
		name string
		in   Style
		want string
	}{
		{
			"max angle zero kept",
			Style{Text: &Text{Text: String("a"), MaxAngle: Float(0)}},
			`{"text":{"maxAngle":0,"text":"a"}}`,
		},
		{
			"max angle default omitted",
			Style{Text: &Text{Text: String("a"), MaxAngle: Float(DefaultTextMaxAngle)}},
			`{"text":{"text":"a"}}`,
		},
		{
			"miter limit zero kept",
			Style{Stroke: &Stroke{Color: RGBA(0, 0, 0, 1).Ptr(), Width: 1, MiterLimit: Float(0)}},
			`{"stroke":{"color":[0,0,0,1],"miterLimit":0,"width":1}}`,
		},
		{
			"transparent black fill kept",
			Style{Fill: &Fill{Color: &Color{}}},
			`{"fill":{"color":[0,0,0,0]}}`,
		},
		{
			"unset fill colour omitted",
			Style{Fill: &Fill{}},
			`{"fill":{}}`,
		},
		{
			"transparent black text stroke kept",
			Style{Text: &Text{Text: String("a"), Stroke: &Stroke{Color: &Color{}}}},
			`{"text":{"text":"a","stroke":{"color":[0,0,0,0]}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(Serialize(tt.in))
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != tt.want {
				t.Errorf("json = %s, want %s", data, tt.want)
			}
		})
	}
}

func TestHaloWidths(t *testing.T) {
	styles := []Style{
		{Text: &Text{Text: String("a"), Stroke: &Stroke{Color: RGBA(255, 255, 255, 1).Ptr(), Width: 4}}},
		{Text: &Text{Text: String("b")}},
		{Fill: &Fill{}},
	}
	got := HaloWidths(styles)
	if len(got) != 3 || got[0] != 4 || got[1] != 0 || got[2] != 0 {
		t.Errorf("HaloWidths = %v", got)
	}

	// The snapshot keeps the colour only.
	data, err := json.Marshal(SerializeAll(styles[:1]))
	if err != nil {
		t.Fatal(err)
	}
	if want := `[{"text":{"text":"a","stroke":{"color":[255,255,255,1]}}}]`; string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}
