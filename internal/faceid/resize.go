package faceid

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// maxUploadSize bounds the longer image edge before upload. Detection
// accuracy does not improve past this size and big captures slow the face
// server down.
const maxUploadSize = 1024

// prepareUpload downscales the image to fit within maxUploadSize while
// keeping aspect ratio. Images already small enough pass through untouched.
func prepareUpload(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxUploadSize && height <= maxUploadSize {
		return data, nil
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxUploadSize
		newHeight = int(float64(height) * float64(maxUploadSize) / float64(width))
	} else {
		newHeight = maxUploadSize
		newWidth = int(float64(width) * float64(maxUploadSize) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return buf.Bytes(), nil
}
