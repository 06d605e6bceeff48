// Package mock provides a fake Extractor for tests. Instead of running a
// biometric model it derives a deterministic descriptor from the mean color
// of the image, so tests can craft "faces" by painting images: photos of the
// same synthetic person produce nearby vectors, photos of different people
// produce distant ones.
package mock

import (
	"bytes"
	"image"
	_ "image/jpeg" // registered for image.Decode
	_ "image/png"
	"sync"

	"github.com/glasslink/faceid/internal/extract"
	"github.com/glasslink/faceid/internal/identity"
)

// Extractor is a color-driven fake implementing extract.Extractor.
type Extractor struct {
	mu sync.Mutex

	// FaceCount overrides the number of faces reported: -1 (default via
	// NewExtractor) reports exactly one face; 0 simulates "no face"; values
	// >1 simulate group photos. All reported faces share the same box and
	// descriptor.
	FaceCount int

	// Box overrides the reported bounding box. When zero, a box inset 10px
	// from the image bounds is used.
	Box image.Rectangle

	// Err, when set, is returned by every Detect call.
	Err error

	// Calls counts Detect invocations.
	Calls int
}

// NewExtractor creates a fake extractor reporting one face per image.
func NewExtractor() *Extractor {
	return &Extractor{FaceCount: -1}
}

// Detect decodes the JPEG and builds a descriptor from its mean color.
func (m *Extractor) Detect(jpegData []byte) ([]extract.Face, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++

	if m.Err != nil {
		return nil, m.Err
	}

	img, _, err := image.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return nil, err
	}

	count := m.FaceCount
	if count == -1 {
		count = 1
	}
	if count == 0 {
		return nil, nil
	}

	box := m.Box
	if box.Empty() {
		box = img.Bounds().Inset(10)
	}

	desc := DescriptorFor(img)
	faces := make([]extract.Face, count)
	for i := range faces {
		faces[i] = extract.Face{Box: box, Descriptor: desc.Clone()}
	}
	return faces, nil
}

// Close is a no-op.
func (m *Extractor) Close() {}

// DescriptorFor computes the deterministic descriptor the fake assigns to an
// image: mean R/G/B scaled to [0,1] in the first three components, zeros in
// the rest. Exposed so tests can predict distances.
func DescriptorFor(img image.Image) identity.Vector {
	b := img.Bounds()
	var sumR, sumG, sumB, n uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			sumR += uint64(r >> 8)
			sumG += uint64(g >> 8)
			sumB += uint64(bl >> 8)
			n++
		}
	}

	vec := make(identity.Vector, identity.Dim)
	if n == 0 {
		return vec
	}
	vec[0] = float32(sumR/n) / 255.0
	vec[1] = float32(sumG/n) / 255.0
	vec[2] = float32(sumB/n) / 255.0
	return vec
}
