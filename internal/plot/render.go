// Package plot renders spectrograms and Doppler tracks as annotated images.
package plot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"

	"github.com/roman-kulish/cw-radar/internal/doppler"
)

const (
	// Default border sizes in pixels
	defaultTopBorder    = 36
	defaultLeftBorder   = 90
	defaultBottomBorder = 44
	defaultRightBorder  = 24

	// Short captures and narrow frequency limits are stretched to at least
	// this size
	minPlotWidth  = 640
	minPlotHeight = 320

	powerFloor = 1e-12
)

var (
	// ErrEmptyGrid is returned when there is nothing to draw
	ErrEmptyGrid = errors.New("empty spectrogram")

	trackColor = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// BorderConfig defines the sizes of white space around the spectrogram
type BorderConfig struct {
	Top    int // Space for the information bar
	Left   int // Space for the frequency scale
	Bottom int // Space for the time scale
	Right  int // Right padding
}

// RenderConfig holds all configuration options for spectrogram visualization
type RenderConfig struct {
	// Visual configuration
	FontSize     float64    // Font size in points
	ColorTheme   ColorTheme // Color scheme for power values
	ColorMapSize int        // Number of colors in gradient (0 for default)

	// Layout configuration
	MaxFrequency  float64 // Hz, limits the frequency axis to ±MaxFrequency, 0 draws the whole grid
	ColumnWidth   int     // pixels per spectrogram column, 0 scales short captures up
	RowHeight     int     // pixels per frequency bin, 0 scales narrow bands up
	NoTrack       bool    // do not overlay the dominant Doppler track
	NoAnnotations bool    // do not draw scales and the information bar

	// Border configuration
	BorderConfig BorderConfig
}

// Renderer draws a Doppler spectrogram with time on the horizontal axis and
// frequency on the vertical axis, zero Doppler in the middle.
type Renderer struct {
	config RenderConfig
}

// NewRenderer creates a new renderer with the given configuration
func NewRenderer(config RenderConfig) *Renderer {
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.ColorTheme == "" {
		config.ColorTheme = EnhancedTheme
	}

	switch {
	case config.NoAnnotations:
		config.BorderConfig = BorderConfig{}
	default:
		if config.BorderConfig.Top == 0 {
			config.BorderConfig.Top = defaultTopBorder
		}
		if config.BorderConfig.Left == 0 {
			config.BorderConfig.Left = defaultLeftBorder
		}
		if config.BorderConfig.Bottom == 0 {
			config.BorderConfig.Bottom = defaultBottomBorder
		}
		if config.BorderConfig.Right == 0 {
			config.BorderConfig.Right = defaultRightBorder
		}
	}

	return &Renderer{config: config}
}

// layout describes where and what the renderer draws.
type layout struct {
	area       image.Rectangle
	colWidth   int
	rowHeight  int
	firstBin   int // index of the lowest drawn frequency bin
	bins       int
	freqMin    float64 // Hz, lower edge of the lowest bin
	freqMax    float64 // Hz, upper edge of the highest bin
	timeMin    float64 // s, start of the first window
	timeMax    float64 // s, end of the last window
	bounds     PowerBounds
	track      *doppler.Track
	trackShown bool
}

// Render creates an image of the spectrogram with an optional overlay of the
// dominant track. track may be nil.
func (r *Renderer) Render(grid *doppler.Grid, track *doppler.Track) (*image.RGBA, error) {
	if grid == nil || len(grid.Power) == 0 || len(grid.Freqs) == 0 {
		return nil, ErrEmptyGrid
	}

	l, err := r.layout(grid, track)
	if err != nil {
		return nil, err
	}

	b := r.config.BorderConfig
	img := image.NewRGBA(image.Rect(0, 0, l.area.Max.X+b.Right, l.area.Max.Y+b.Bottom))

	// Fill with white background
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	db := powerDB(grid, l.firstBin, l.bins)
	l.bounds = PercentileBounds(flatten(db))

	r.renderSpectrogram(img, l, db)
	if l.trackShown {
		r.renderTrack(img, l, grid)
	}

	if !r.config.NoAnnotations {
		ann, err := newAnnotator(r.config.FontSize)
		if err != nil {
			return nil, fmt.Errorf("creating annotator: %w", err)
		}
		defer ann.Close()

		if err = ann.annotate(img, l); err != nil {
			return nil, fmt.Errorf("drawing annotations: %w", err)
		}
	}

	return img, nil
}

func (r *Renderer) layout(grid *doppler.Grid, track *doppler.Track) (layout, error) {
	freqs := grid.Freqs

	first, last := 0, len(freqs)
	if limit := r.config.MaxFrequency; limit > 0 {
		first = sort.SearchFloat64s(freqs, -limit)
		last = sort.Search(len(freqs), func(i int) bool { return freqs[i] > limit })
	}
	if last-first < 1 {
		return layout{}, fmt.Errorf("frequency limit %g Hz leaves no bins to draw", r.config.MaxFrequency)
	}

	binWidth := 1.0
	if len(freqs) > 1 {
		binWidth = freqs[1] - freqs[0]
	}

	columns := len(grid.Power)
	bins := last - first

	colWidth := r.config.ColumnWidth
	if colWidth <= 0 {
		colWidth = max(1, int(math.Ceil(float64(minPlotWidth)/float64(columns))))
	}
	rowHeight := r.config.RowHeight
	if rowHeight <= 0 {
		rowHeight = max(1, int(math.Ceil(float64(minPlotHeight)/float64(bins))))
	}

	hop := 2 * grid.Times[0]
	if len(grid.Times) > 1 {
		hop = grid.Times[1] - grid.Times[0]
	}

	b := r.config.BorderConfig
	return layout{
		area:       image.Rect(b.Left, b.Top, b.Left+columns*colWidth, b.Top+bins*rowHeight),
		colWidth:   colWidth,
		rowHeight:  rowHeight,
		firstBin:   first,
		bins:       bins,
		freqMin:    freqs[first] - binWidth/2,
		freqMax:    freqs[last-1] + binWidth/2,
		timeMin:    grid.Times[0] - hop/2,
		timeMax:    grid.Times[columns-1] + hop/2,
		track:      track,
		trackShown: track != nil && !r.config.NoTrack && len(track.Times) == columns,
	}, nil
}

// renderSpectrogram draws the power of every cell using the color map
func (r *Renderer) renderSpectrogram(img *image.RGBA, l layout, db [][]float64) {
	colorMap := NewColorMapperWithSize(r.config.ColorTheme, l.bounds, r.config.ColorMapSize)

	for t, col := range db {
		for k, power := range col {
			fillCell(img, l, t, k, colorMap.GetColor(power))
		}
	}
}

// renderTrack marks the strongest bin of every column that passed the gate
func (r *Renderer) renderTrack(img *image.RGBA, l layout, grid *doppler.Grid) {
	for t := range l.track.Times {
		if l.track.PeakDB[t] < l.track.Threshold {
			continue
		}

		k := sort.SearchFloat64s(grid.Freqs, l.track.Frequency[t]) - l.firstBin
		if k < 0 || k >= l.bins {
			continue
		}
		fillCell(img, l, t, k, trackColor)
	}
}

// fillCell paints column t, bin k. Higher frequencies are drawn on top.
func fillCell(img *image.RGBA, l layout, t, k int, c color.Color) {
	x0 := l.area.Min.X + t*l.colWidth
	y0 := l.area.Max.Y - (k+1)*l.rowHeight

	for y := y0; y < y0+l.rowHeight; y++ {
		for x := x0; x < x0+l.colWidth; x++ {
			img.Set(x, y, c)
		}
	}
}

func powerDB(grid *doppler.Grid, first, bins int) [][]float64 {
	db := make([][]float64, len(grid.Power))
	for t, col := range grid.Power {
		db[t] = make([]float64, bins)
		for k := range bins {
			db[t][k] = 10 * math.Log10(col[first+k]+powerFloor)
		}
	}
	return db
}

func flatten(m [][]float64) []float64 {
	var n int
	for _, row := range m {
		n += len(row)
	}

	out := make([]float64, 0, n)
	for _, row := range m {
		out = append(out, row...)
	}
	return out
}
