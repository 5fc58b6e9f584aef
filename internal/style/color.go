package style

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// Color is an RGBA quadruple: red, green and blue in 0..255, alpha in 0..1.
// Styles hold a *Color; nil means no colour was configured.
type Color [4]float64

// RGBA builds a Color from channel values.
func RGBA(r, g, b uint8, a float64) Color {
	return Color{float64(r), float64(g), float64(b), a}
}

// ParseColor parses "#rgb", "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	alpha := 1.0
	if len(s) == 9 && s[0] == '#' {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("parse color %q: %w", s, err)
		}
		alpha = float64(a) / 255
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return RGBA(r, g, b, alpha), nil
}

// Ptr returns a pointer to a copy of c.
func (c Color) Ptr() *Color {
	return &c
}

// Hex returns the colour as "#rrggbb", dropping alpha.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", clamp255(c[0]), clamp255(c[1]), clamp255(c[2]))
}

// Alpha returns the alpha channel.
func (c Color) Alpha() float64 {
	return c[3]
}

func (c Color) String() string {
	return fmt.Sprintf("rgba(%g,%g,%g,%g)", c[0], c[1], c[2], c[3])
}

func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseColor(s)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	var parts []float64
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("color must be a hex string or an array: %w", err)
	}
	return c.fromSlice(parts)
}

func (c *Color) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		parsed, err := ParseColor(value.Value)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	var parts []float64
	if err := value.Decode(&parts); err != nil {
		return fmt.Errorf("line %d: color must be a hex string or a sequence: %w", value.Line, err)
	}
	return c.fromSlice(parts)
}

func (c *Color) fromSlice(parts []float64) error {
	switch len(parts) {
	case 3:
		*c = Color{parts[0], parts[1], parts[2], 1}
	case 4:
		*c = Color{parts[0], parts[1], parts[2], parts[3]}
	default:
		return fmt.Errorf("color needs 3 or 4 components, got %d", len(parts))
	}
	return nil
}

func clamp255(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v + 0.5)
}
