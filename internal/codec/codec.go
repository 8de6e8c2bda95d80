// Package codec decodes uploaded photographs into RGBA buffers and encodes
// pipeline artefacts back into bytes.
package codec

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"texswap/internal/raster"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 90

// SupportedExtensions lists the file suffixes Load accepts.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Decode decodes an encoded image, applying EXIF orientation when present.
// Empty input and zero-size images return raster.ErrEmptyImage.
func Decode(data []byte) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(raster.ErrEmptyImage, "no image data")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}
	if err := raster.CheckImage(img); err != nil {
		return nil, err
	}
	return raster.ToRGBA(img), nil
}

// Load reads and decodes the image at path.
func Load(path string) (*image.RGBA, error) {
	if !IsSupported(path) {
		return nil, errors.Errorf("unsupported image format: %s", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image")
	}
	img, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", filepath.Base(path))
	}
	return img, nil
}

// IsSupported reports whether path has a decodable image extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// EncodeJPEG encodes img as JPEG. Quality is clamped to [1,100].
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, errors.Wrap(err, "failed to encode jpeg")
	}
	return buf.Bytes(), nil
}

// EncodePNG encodes img losslessly.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, errors.Wrap(err, "failed to encode png")
	}
	return buf.Bytes(), nil
}

// FitWithin downscales img so neither side exceeds maxSize, keeping the
// aspect ratio. Images already within bounds are returned as-is.
func FitWithin(img *image.RGBA, maxSize int) *image.RGBA {
	b := img.Bounds()
	if maxSize <= 0 || (b.Dx() <= maxSize && b.Dy() <= maxSize) {
		return img
	}
	return raster.ToRGBA(imaging.Fit(img, maxSize, maxSize, imaging.Lanczos))
}

// Save writes img to path, choosing the format from the extension.
func Save(path string, img image.Image, quality int) error {
	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}
