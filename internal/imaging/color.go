package imaging

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// LegacyWhiteHex is what the legacy encoder reports for any color with a
// zero channel.
const LegacyWhiteHex = "#FFFFFF"

// RGBColor represents an RGB color with 8-bit components.
type RGBColor struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
}

// RGBA returns the color as an opaque color.RGBA.
func (c RGBColor) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// HasZeroChannel reports whether any of the three channels is exactly 0.
func (c RGBColor) HasZeroChannel() bool {
	return c.R == 0 || c.G == 0 || c.B == 0
}

// HexColor encodes c as "#rrggbb" with each channel zero-padded to two
// lowercase hex digits.
//
// Parameters:
//   - c: The color to encode.
//   - zeroChannelWhite: Reproduce the legacy encoder's zero-channel rule.
//
// Returns:
//   - string: A 7-character hex string, or LegacyWhiteHex.
//
// When zeroChannelWhite is set the legacy encoder is reproduced: a color with
// any channel equal to 0 (pure black, pure red, ...) is reported as
// LegacyWhiteHex instead of its true value.
func HexColor(c RGBColor, zeroChannelWhite bool) string {
	if zeroChannelWhite && c.HasZeroChannel() {
		return LegacyWhiteHex
	}
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}.Hex()
}

// ParseHexColor parses a hex color string like "#FF0000", "ff0000" or
// "#FF000080". Digits are case-insensitive; alpha defaults to 255.
func ParseHexColor(hex string) (color.RGBA, error) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length %d", len(hex))
	}

	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}
