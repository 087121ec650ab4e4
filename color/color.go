// Package color parses CSS color notations and converts between RGB and HSV.
package color

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"nightcss/common"
)

// RGB is a color with 8 bit channels.
type RGB struct {
	R, G, B uint8
}

// Hex returns the color as lowercase "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Uint32 returns the 24 bit 0xRRGGBB value of the color.
func (c RGB) Uint32() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// Halve divides every channel by two rounding half up.
func (c RGB) Halve() RGB {
	half := func(v uint8) uint8 {
		return uint8((uint16(v) + 1) / 2)
	}
	return RGB{R: half(c.R), G: half(c.G), B: half(c.B)}
}

// HSV returns the color in HSV space.
func (c RGB) HSV() HSV {
	return RGBToHSV(c)
}

var (
	hexPattern = regexp.MustCompile(`#([0-9a-fA-F]+)`)
	rgbPattern = regexp.MustCompile(`(?i)rgb\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*\)`)
)

// ParseHex decodes "#rgb" or "#rrggbb" (leading '#' is optional).
func ParseHex(s string) (RGB, bool) {
	s = strings.TrimPrefix(s, "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6:
	default:
		return RGB{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, true
}

// Parse finds a color in a raw CSS value. Hex notation is tried first, then
// rgb() and finally named colors, regardless of where in the value each one
// occurs. When a '#' run is present but is neither 3 nor 6 digits long the
// value is treated as having no color at all.
func Parse(raw string, mode common.MatchMode) (RGB, bool) {
	if m := hexPattern.FindStringSubmatch(raw); m != nil {
		return ParseHex(m[1])
	}
	if m := rgbPattern.FindStringSubmatch(raw); m != nil {
		return RGB{R: channel(m[1]), G: channel(m[2]), B: channel(m[3])}, true
	}
	return findNamed(raw, mode)
}

// channel converts decimal digits to a channel value, clamping at 255.
func channel(digits string) uint8 {
	v, err := strconv.Atoi(digits)
	if err != nil || v > math.MaxUint8 {
		// only overflow can fail here, pattern guarantees digits
		return math.MaxUint8
	}
	return uint8(v)
}
