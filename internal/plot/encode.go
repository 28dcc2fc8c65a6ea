package plot

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"

	jpegQuality = 98
)

type ImageFormat string

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

// ParseImageFormat accepts "png", "jpeg" and "jpg" in any case.
func ParseImageFormat(s string) (ImageFormat, error) {
	format := ImageFormat(strings.ToLower(s))
	if format == "jpg" {
		format = ImageJPEG
	}
	if _, ok := validImageFormats[format]; !ok {
		return "", fmt.Errorf("invalid image format: %s", s)
	}
	return format, nil
}

// FormatFromPath picks the format from the file extension, PNG unless the
// extension names JPEG.
func FormatFromPath(path string) ImageFormat {
	if format, err := ParseImageFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return format
	}
	return ImagePNG
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format ImageFormat) error {
	switch format {
	case ImagePNG:
		return png.Encode(w, img)
	case ImageJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	default:
		return fmt.Errorf("invalid image format: %s", format)
	}
}

// WriteFile encodes img into the file at path, replacing it if it exists.
func WriteFile(path string, img image.Image, format ImageFormat) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	if err = Encode(out, img, format); err != nil {
		return fmt.Errorf("encoding %s: %w", format, err)
	}
	return nil
}
