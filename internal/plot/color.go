package plot

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// ColorTheme represents a predefined color scheme for power visualization.
type ColorTheme string

const (
	ClassicTheme   ColorTheme = "classic"   // Blue to red transition
	GrayscaleTheme ColorTheme = "grayscale" // Black to white transition
	JungleTheme    ColorTheme = "jungle"    // Dark green to yellow transition
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white
	MarineTheme    ColorTheme = "marine"    // Deep blue to cyan to white
	EnhancedTheme  ColorTheme = "enhanced"  // Black to blue to cyan to yellow to red

	DefaultColorMapSize = 256 // Default number of colors in the map
)

var themes = map[ColorTheme]func(float64) color.Color{
	ClassicTheme:   classic,
	GrayscaleTheme: grayscale,
	JungleTheme:    jungle,
	ThermalTheme:   thermal,
	MarineTheme:    marine,
	EnhancedTheme:  enhanced,
}

// ParseColorTheme returns the theme with the given name. An empty name
// selects EnhancedTheme.
func ParseColorTheme(name string) (ColorTheme, error) {
	if name == "" {
		return EnhancedTheme, nil
	}
	if _, ok := themes[ColorTheme(name)]; !ok {
		return "", fmt.Errorf("unknown color theme '%s'", name)
	}
	return ColorTheme(name), nil
}

// ColorMapper maps power in dB to a color of a pre-computed gradient.
type ColorMapper struct {
	colorMap    []color.Color
	themeName   ColorTheme
	size        int
	boundsMin   float64
	boundsRange float64
}

// NewColorMapper creates a color mapper with the default gradient size.
func NewColorMapper(theme ColorTheme, bounds PowerBounds) *ColorMapper {
	return NewColorMapperWithSize(theme, bounds, DefaultColorMapSize)
}

// NewColorMapperWithSize creates a color mapper whose gradient holds size
// colors. Unknown themes fall back to EnhancedTheme.
func NewColorMapperWithSize(theme ColorTheme, bounds PowerBounds, size int) *ColorMapper {
	if size < 2 {
		size = DefaultColorMapSize
	}

	fn, ok := themes[theme]
	if !ok {
		theme, fn = EnhancedTheme, enhanced
	}

	cm := &ColorMapper{
		colorMap:  make([]color.Color, size),
		themeName: theme,
		size:      size,
	}
	for i := range cm.colorMap {
		cm.colorMap[i] = fn(float64(i) / float64(size-1))
	}

	cm.UpdateBounds(bounds)
	return cm
}

// UpdateBounds sets the power range spanned by the gradient.
func (cm *ColorMapper) UpdateBounds(bounds PowerBounds) {
	cm.boundsMin = bounds.Min
	cm.boundsRange = bounds.Max - bounds.Min
}

// GetColor returns the color for power in dB. Values outside the bounds are
// clamped to the ends of the gradient.
func (cm *ColorMapper) GetColor(power float64) color.Color {
	if cm.boundsRange <= 0 || math.IsNaN(power) {
		return cm.colorMap[0]
	}

	index := int((power - cm.boundsMin) / cm.boundsRange * float64(cm.size-1))
	switch {
	case index < 0:
		return cm.colorMap[0]
	case index >= cm.size:
		return cm.colorMap[cm.size-1]
	}
	return cm.colorMap[index]
}

// ThemeName returns the current color theme name
func (cm *ColorMapper) ThemeName() ColorTheme {
	return cm.themeName
}

// Size returns the color map size
func (cm *ColorMapper) Size() int {
	return cm.size
}

func hsv(h, s, v float64) color.Color {
	return colorful.Hsv(math.Mod(h+360, 360), clamp01(s), clamp01(v)).Clamped()
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func classic(power float64) color.Color {
	return hsv(240-(power*240), 0.9+(power*0.1), math.Pow(power, 0.7))
}

func grayscale(power float64) color.Color {
	v := math.Pow(power, 0.7)
	return colorful.Color{R: v, G: v, B: v}
}

func jungle(power float64) color.Color {
	return hsv(120-(power*60), 1.0, 0.3+(math.Pow(power, 0.6)*0.7))
}

func thermal(power float64) color.Color {
	switch {
	case power < 1.0/3:
		return colorful.Color{R: power * 3}
	case power < 2.0/3:
		return colorful.Color{R: 1, G: (power - 1.0/3) * 3}
	default:
		return colorful.Color{R: 1, G: 1, B: clamp01((power - 2.0/3) * 3)}
	}
}

func marine(power float64) color.Color {
	return hsv(240-(power*60), 1.0-(power*0.8), 0.3+(math.Pow(power, 0.6)*0.7))
}

func enhanced(power float64) color.Color {
	power = clamp01(power)
	boosted := math.Pow(power, 0.7)

	switch {
	case power < 0.25:
		return hsv(240, 1.0, boosted*4)
	case power < 0.5:
		return hsv(240-((power-0.25)*240), 1.0, boosted*1.5)
	case power < 0.75:
		p := (power - 0.5) * 4
		return hsv(180-(p*120), 1.0, boosted*1.5)
	default:
		p := (power - 0.75) * 4
		return hsv(60-(p*60), 1.0, 1.0)
	}
}
