package plot

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi            = 96.0
	fontSize       = 10.0
	tickMarkLength = 5
	labelPadding   = 4

	// Approximate spacing between scale labels
	pixelsPerFreqLabel = 60.0
	pixelsPerTimeLabel = 110.0
)

type annotator struct {
	context  *freetype.Context
	fontFace font.Face
}

func newAnnotator(size float64) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(size)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    size,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, l layout) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, layout) error
	}{
		{"drawing frequency scale", a.drawFrequencyScale},
		{"drawing time scale", a.drawTimeScale},
		{"drawing info bar", a.drawInfoBar},
	}
	for _, op := range ops {
		if err := op.fn(img, l); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *annotator) drawFrequencyScale(img *image.RGBA, l layout) error {
	height := l.area.Dy()
	span := l.freqMax - l.freqMin
	step := niceStep(span, float64(height)/pixelsPerFreqLabel)

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	for i := math.Ceil(l.freqMin / step); i*step <= l.freqMax; i++ {
		freq := i * step
		y := l.area.Max.Y - int((freq-l.freqMin)/span*float64(height))

		// Draw tick mark
		for x := l.area.Min.X - tickMarkLength; x < l.area.Min.X; x++ {
			img.Set(x, y, color.Black)
		}

		label := humanHz(freq)
		width := font.MeasureString(a.fontFace, label).Round()
		pt := freetype.Pt(l.area.Min.X-tickMarkLength-labelPadding-width, y+fontHeight/2-metrics.Descent.Round())
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing frequency label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, l layout) error {
	width := l.area.Dx()
	span := l.timeMax - l.timeMin
	step := niceStep(span, float64(width)/pixelsPerTimeLabel)

	metrics := a.fontFace.Metrics()
	textY := l.area.Max.Y + tickMarkLength + labelPadding + metrics.Ascent.Round()

	for i := math.Ceil(l.timeMin / step); i*step <= l.timeMax; i++ {
		t := i * step
		x := l.area.Min.X + int((t-l.timeMin)/span*float64(width))

		// Draw tick mark
		for y := l.area.Max.Y; y < l.area.Max.Y+tickMarkLength; y++ {
			img.Set(x, y, color.Black)
		}

		label := humanize.FtoaWithDigits(t, 3) + " s"
		labelWidth := font.MeasureString(a.fontFace, label).Round()
		if _, err := a.context.DrawString(label, freetype.Pt(x-labelWidth/2, textY)); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, l layout) error {
	var sb strings.Builder

	if l.trackShown {
		peak := l.track.Peak()
		fmt.Fprintf(&sb, "Peak: %s m/s at %s s; ",
			humanize.FtoaWithDigits(math.Abs(l.track.Velocity[peak]), 3),
			humanize.FtoaWithDigits(l.track.Times[peak], 3))
		fmt.Fprintf(&sb, "Gate: %.1f dB; ", l.track.Threshold)
	}

	fmt.Fprintf(&sb, "Power: %.0f to %.0f dB; ", l.bounds.Min, l.bounds.Max)

	freqPerPixel := (l.freqMax - l.freqMin) / float64(l.area.Dy())
	timePerPixel := (l.timeMax - l.timeMin) / float64(l.area.Dx())
	fmt.Fprintf(&sb, "1px = %s x %s",
		humanize.SIWithDigits(freqPerPixel, 2, "Hz"),
		humanize.SIWithDigits(timePerPixel, 2, "s"))

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	// Center text vertically in the top border
	textY := (l.area.Min.Y-fontHeight)/2 + metrics.Ascent.Round()

	if _, err := a.context.DrawString(sb.String(), freetype.Pt(l.area.Min.X, textY)); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

// niceStep returns a 1-2-5 step splitting span into about labels intervals.
func niceStep(span, labels float64) float64 {
	if labels < 1 {
		labels = 1
	}

	rough := span / labels
	magnitude := math.Pow(10, math.Floor(math.Log10(rough)))
	for _, m := range []float64{1, 2, 5} {
		if m*magnitude >= rough {
			return m * magnitude
		}
	}
	return 10 * magnitude
}

func humanHz(hz float64) string {
	value, prefix := humanize.ComputeSI(hz)
	return fmt.Sprintf("%0.2f %sHz", value, prefix)
}
