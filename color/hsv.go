package color

import "math"

// HSV holds hue, saturation and value, each in [0, 1].
type HSV struct {
	H, S, V float64
}

// RGBToHSV converts using the usual hexcone formulas. Achromatic colors get
// zero hue.
func RGBToHSV(c RGB) HSV {
	r, g, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
	maxc, minc := math.Max(r, math.Max(g, b)), math.Min(r, math.Min(g, b))
	d := maxc - minc

	hsv := HSV{V: maxc}
	if maxc != 0 {
		hsv.S = d / maxc
	}
	if maxc == minc {
		return hsv
	}

	switch maxc {
	case r:
		hsv.H = (g - b) / d
		if g < b {
			hsv.H += 6
		}
	case g:
		hsv.H = (b-r)/d + 2
	case b:
		hsv.H = (r-g)/d + 4
	}
	hsv.H /= 6
	return hsv
}

// HSVToRGB is the inverse of RGBToHSV. Channels are returned unrounded in
// [0, 255].
func HSVToRGB(c HSV) (r, g, b float64) {
	i := math.Floor(c.H * 6)
	f := c.H*6 - i
	p := c.V * (1 - c.S)
	q := c.V * (1 - f*c.S)
	t := c.V * (1 - (1-f)*c.S)

	switch int(i) % 6 {
	case 0:
		r, g, b = c.V, t, p
	case 1:
		r, g, b = q, c.V, p
	case 2:
		r, g, b = p, c.V, t
	case 3:
		r, g, b = p, q, c.V
	case 4:
		r, g, b = t, p, c.V
	case 5:
		r, g, b = c.V, p, q
	}
	return r * 255, g * 255, b * 255
}

// RGB converts back to 8 bit channels rounding to nearest.
func (c HSV) RGB() RGB {
	r, g, b := HSVToRGB(c)
	return RGB{R: round8(r), G: round8(g), B: round8(b)}
}

// ValuePercent is V scaled to 0..100 and rounded half up.
func (c HSV) ValuePercent() int {
	return int(math.Floor(c.V*100 + 0.5))
}

func round8(v float64) uint8 {
	v = math.Floor(v + 0.5)
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}
