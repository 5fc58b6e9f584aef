package style

import (
	_ "embed"
	"fmt"

	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

// Preset is a Style as written in YAML, where the image is spelled out as
// either an icon or a circle.
type Preset struct {
	Style  `yaml:",inline"`
	Icon   *Icon   `yaml:"icon,omitempty"`
	Circle *Circle `yaml:"circle,omitempty"`
}

// Resolve returns the Style with its image variant set.
func (p Preset) Resolve() (Style, error) {
	s := p.Style
	switch {
	case p.Icon != nil && p.Circle != nil:
		return Style{}, fmt.Errorf("preset sets both icon and circle")
	case p.Icon != nil:
		s.Image = p.Icon
	case p.Circle != nil:
		s.Image = p.Circle
	}
	return s, nil
}

// PresetSet maps each geometry kind to exactly one style.
type PresetSet struct {
	Point   Style
	Line    Style
	Polygon Style
}

// ParsePresets decodes a YAML preset document with point, line and polygon keys.
func ParsePresets(data []byte) (PresetSet, error) {
	var raw struct {
		Point   Preset `yaml:"point"`
		Line    Preset `yaml:"line"`
		Polygon Preset `yaml:"polygon"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return PresetSet{}, fmt.Errorf("decode presets: %w", err)
	}
	var set PresetSet
	var err error
	if set.Point, err = raw.Point.Resolve(); err != nil {
		return PresetSet{}, fmt.Errorf("point: %w", err)
	}
	if set.Line, err = raw.Line.Resolve(); err != nil {
		return PresetSet{}, fmt.Errorf("line: %w", err)
	}
	if set.Polygon, err = raw.Polygon.Resolve(); err != nil {
		return PresetSet{}, fmt.Errorf("polygon: %w", err)
	}
	return set, nil
}

// Presets returns the built-in treatments for the static data layer.
func Presets() PresetSet {
	set, err := ParsePresets(presetsYAML)
	if err != nil {
		panic(err)
	}
	return set
}

// Function styles features by geometry kind. Points are labelled with their
// name attribute.
func (p PresetSet) Function() Function {
	return func(f *geojson.Feature, _ float64) ([]Style, error) {
		switch KindOf(f.Geometry) {
		case KindPoint:
			s := p.Point
			if s.Text != nil {
				label := *s.Text
				if name, ok := f.Properties["name"]; ok && name != nil {
					label.Text = String(fmt.Sprint(name))
				}
				s.Text = &label
			}
			return []Style{s}, nil
		case KindLine:
			return []Style{p.Line}, nil
		case KindPolygon:
			return []Style{p.Polygon}, nil
		case KindNone:
			return nil, nil
		}
		return nil, nil
	}
}
