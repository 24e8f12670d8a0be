// Package palette generates and parses category colors.
package palette

import (
	"fmt"
	"image/color"
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// Fallback is used for categories without an assigned color.
const Fallback = "#1f77b4"

const goldenRatio = 0.618033988749895

// Distinct returns n visually distinct colors by rotating the hue by the
// golden ratio and alternating saturation and value.
func Distinct(n int) []string {
	colors := make([]string, n)
	for i := 0; i < n; i++ {
		hue := math.Mod(float64(i)*goldenRatio, 1.0)
		saturation := 0.7 + float64(i%3)*0.1
		value := 0.8 + float64(i%2)*0.15

		r, g, b := HSVToRGB(hue, saturation, value)
		colors[i] = Hex(r, g, b)
	}
	return colors
}

// Random returns n random, reasonably saturated colors.
func Random(n int, rng *rand.Rand) []string {
	colors := make([]string, n)
	for i := range colors {
		hue := rng.Float64()
		saturation := 0.6 + rng.Float64()*0.4
		value := 0.7 + rng.Float64()*0.3

		r, g, b := HSVToRGB(hue, saturation, value)
		colors[i] = Hex(r, g, b)
	}
	return colors
}

// Assign pairs categories with colors in order. Extra categories get Fallback.
func Assign(categories, colors []string) map[string]string {
	out := make(map[string]string, len(categories))
	for i, cat := range categories {
		if i < len(colors) {
			out[cat] = colors[i]
		} else {
			out[cat] = Fallback
		}
	}
	return out
}

// HSVToRGB converts hue, saturation and value in [0, 1] to RGB in [0, 1].
func HSVToRGB(h, s, v float64) (float64, float64, float64) {
	if s == 0 {
		return v, v, v
	}
	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	switch int(i) % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}

// Hex formats RGB channels in [0, 1] as #rrggbb. Channels are truncated, not rounded.
func Hex(r, g, b float64) string {
	return fmt.Sprintf("#%02x%02x%02x", channel(r), channel(g), channel(b))
}

func channel(c float64) int {
	n := int(c * 255)
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return n
}

// ParseHex parses #rgb or #rrggbb.
func ParseHex(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// Normalize returns the canonical lower-case #rrggbb spelling of s.
func Normalize(s string) (string, error) {
	c, err := ParseHex(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B), nil
}
