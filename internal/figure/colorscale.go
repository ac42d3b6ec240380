package figure

import (
	"fmt"
	"image/color"
	"math"
	"strconv"

	"github.com/aclements/go-gg/palette"
	"github.com/aclements/go-moremath/scale"
)

// viridis holds the control points of the perceptual Viridis color map.
var viridis = palette.RGBGradient{Colors: []color.RGBA{
	{0x44, 0x01, 0x54, 0xff},
	{0x48, 0x28, 0x78, 0xff},
	{0x3e, 0x49, 0x89, 0xff},
	{0x31, 0x68, 0x8e, 0xff},
	{0x26, 0x82, 0x8e, 0xff},
	{0x1f, 0x9e, 0x89, 0xff},
	{0x35, 0xb7, 0x79, 0xff},
	{0x6e, 0xce, 0x58, 0xff},
	{0xb5, 0xde, 0x2b, 0xff},
	{0xfd, 0xe7, 0x25, 0xff},
}}

const (
	colorScaleStops = 11
	maxColorBarTick = 6
)

// qualitative colors cycle across bars, one per country.
var qualitative = []string{
	"#636efa", "#EF553B", "#00cc96", "#ab63fa", "#FFA15A",
	"#19d3f3", "#FF6692", "#B6E880", "#FF97FF", "#FECB52",
}

// ViridisScale samples the Viridis gradient into evenly spaced stops.
func ViridisScale() []Stop {
	stops := make([]Stop, colorScaleStops)
	for i := range stops {
		pos := float64(i) / float64(colorScaleStops-1)
		stops[i] = Stop{Position: pos, Color: hexColor(viridis.Map(pos))}
	}
	return stops
}

// Shade maps v within [lo, hi] to a Viridis color. A degenerate range maps
// to the low end of the scale.
func Shade(v, lo, hi float64) string {
	if !(hi > lo) || !finite(lo) || !finite(hi) || math.IsNaN(v) {
		return hexColor(viridis.Map(0))
	}
	s := scale.Linear{Min: lo, Max: hi, Clamp: true}
	return hexColor(viridis.Map(s.Map(v)))
}

// colorBarTicks picks round tick values covering [lo, hi].
func colorBarTicks(lo, hi float64, format func(float64) string) ([]float64, []string) {
	// Ticks sizes its result from the range, so an infinite bound panics.
	if !(hi > lo) || !finite(lo) || !finite(hi) {
		return nil, nil
	}
	s := scale.Linear{Min: lo, Max: hi, Base: 10}
	major, _ := s.Ticks(scale.TickOptions{Max: maxColorBarTick})
	vals := make([]float64, 0, len(major))
	labels := make([]string, 0, len(major))
	for _, v := range major {
		if v < lo || v > hi {
			continue
		}
		vals = append(vals, v)
		labels = append(labels, format(v))
	}
	return vals, labels
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func hexColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}

// compactNumber renders large values with a metric suffix for tick labels.
func compactNumber(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e9:
		return strconv.FormatFloat(v/1e9, 'g', 4, 64) + "B"
	case abs >= 1e6:
		return strconv.FormatFloat(v/1e6, 'g', 4, 64) + "M"
	case abs >= 1e3:
		return strconv.FormatFloat(v/1e3, 'g', 4, 64) + "k"
	default:
		return strconv.FormatFloat(v, 'g', 4, 64)
	}
}
