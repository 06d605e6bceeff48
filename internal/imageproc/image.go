// Package imageproc decodes and prepares uploaded photos for the face
// pipeline: format and size validation, down-scaling, grayscale conversion
// and the sharpness measurement used by the quality gate.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png" // registered for image.Decode

	xdraw "golang.org/x/image/draw"
)

// Decoding failure classes. These are input errors (the user can retry with
// a better photo), distinct from dependency errors raised by the extractor.
var (
	ErrTooLarge          = errors.New("image exceeds the maximum allowed size")
	ErrUnsupportedFormat = errors.New("unsupported image format (expected JPEG or PNG)")
	ErrDecode            = errors.New("failed to decode image")
)

// Limits bounds the accepted input images.
type Limits struct {
	// MaxBytes is the maximum encoded size in bytes.
	MaxBytes int
	// MaxDimension is the longest allowed side after decoding; larger images
	// are down-scaled preserving aspect ratio before detection.
	MaxDimension int
}

// DefaultLimits returns the production input bounds: 5 MB encoded, longest
// side 800 px.
func DefaultLimits() Limits {
	return Limits{MaxBytes: 5 << 20, MaxDimension: 800}
}

// Image is a decoded, validated and possibly down-scaled photo.
type Image struct {
	RGBA   *image.RGBA
	Format string
}

// Decode validates and decodes raw image bytes, down-scaling the result so
// that neither side exceeds limits.MaxDimension.
func Decode(data []byte, limits Limits) (*Image, error) {
	if limits.MaxBytes > 0 && len(data) > limits.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedFormat
		}
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if format != "jpeg" && format != "png" {
		return nil, ErrUnsupportedFormat
	}

	rgba := toRGBA(src)
	if limits.MaxDimension > 0 {
		rgba = scaleDown(rgba, limits.MaxDimension)
	}

	return &Image{RGBA: rgba, Format: format}, nil
}

// EncodeJPEG re-encodes the decoded image as JPEG, the only input format the
// dlib recognizer accepts.
func EncodeJPEG(img *Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img.RGBA, &jpeg.Options{Quality: 92}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// GrayscaleCrop extracts the given region as a grayscale image. The region
// is clamped to the image bounds.
func GrayscaleCrop(img *Image, region image.Rectangle) *image.Gray {
	region = region.Intersect(img.RGBA.Bounds())
	gray := image.NewGray(region)
	draw.Draw(gray, region, img.RGBA, region.Min, draw.Src)
	return gray
}

// toRGBA normalizes any decoded image to *image.RGBA.
func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba
	}
	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	return rgba
}

// scaleDown resizes the image so its longest side is at most maxDim,
// preserving aspect ratio. Images already within bounds are returned as-is.
func scaleDown(src *image.RGBA, maxDim int) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}

	scale := float64(maxDim) / float64(w)
	if h > w {
		scale = float64(maxDim) / float64(h)
	}
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}
