// Package quality scores face captures for enrollment suitability.
package quality

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/facegate/facegate/internal/config"
)

// Images larger than this are downscaled before analysis. The metrics are
// statistical, they do not need full resolution.
const maxAnalysisSize = 512

// Report holds the quality metrics of a single image, all in [0, 1].
type Report struct {
	Score      float64 `json:"score"`
	Sharpness  float64 `json:"sharpness"`
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
}

// Assessor computes quality reports under a fixed policy.
type Assessor struct {
	policy config.QualityPolicy
}

func NewAssessor(policy config.QualityPolicy) *Assessor {
	return &Assessor{policy: policy}
}

// Assess scores raw image bytes. It never fails: an undecodable image gets
// the neutral report so one broken upload cannot abort a batch. Callers that
// need to distinguish broken images decode first.
func (a *Assessor) Assess(imageData []byte) Report {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return Report{Score: 0.5}
	}
	return a.AssessImage(img)
}

// AssessImage scores an already-decoded image.
func (a *Assessor) AssessImage(img image.Image) Report {
	luma := toLuma(downscale(img, maxAnalysisSize))

	sharpness := clamp01(laplacianVariance(luma) / a.policy.SharpnessCeiling)

	mean, std := lumaStats(luma)
	brightness := mean / 255
	contrast := clamp01(std / 128)

	// Mid-range brightness scores highest; both under- and overexposure
	// are penalized symmetrically.
	brightnessScore := clamp01(1 - 2*math.Abs(brightness-0.5))

	w := a.policy.Weights
	score := w.Sharpness*sharpness + w.Brightness*brightnessScore + w.Contrast*contrast

	return Report{
		Score:      clamp01(score),
		Sharpness:  sharpness,
		Brightness: brightness,
		Contrast:   contrast,
	}
}

// downscale fits the image within maxSize, keeping aspect ratio. Images
// already small enough are converted to RGBA without scaling.
func downscale(img image.Image, maxSize int) *image.RGBA {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	newWidth, newHeight := width, height
	if width > maxSize || height > maxSize {
		if width > height {
			newWidth = maxSize
			newHeight = int(float64(height) * float64(maxSize) / float64(width))
		} else {
			newHeight = maxSize
			newWidth = int(float64(width) * float64(maxSize) / float64(height))
		}
		if newWidth < 1 {
			newWidth = 1
		}
		if newHeight < 1 {
			newHeight = 1
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// toLuma converts an image to a 2D array of luma values (0-255).
func toLuma(img *image.RGBA) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	luma := make([][]float64, width)
	for x := range width {
		luma[x] = make([]float64, height)
		for y := range height {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			luma[x][y] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}

	return luma
}

// laplacianVariance measures focus as the variance of the 4-neighbor
// Laplacian over the luma plane. Blurry images have weak local contrast and
// score near zero.
func laplacianVariance(luma [][]float64) float64 {
	width := len(luma)
	if width < 3 {
		return 0
	}
	height := len(luma[0])
	if height < 3 {
		return 0
	}

	n := (width - 2) * (height - 2)
	responses := make([]float64, 0, n)
	var sum float64
	for x := 1; x < width-1; x++ {
		for y := 1; y < height-1; y++ {
			v := luma[x-1][y] + luma[x+1][y] + luma[x][y-1] + luma[x][y+1] - 4*luma[x][y]
			responses = append(responses, v)
			sum += v
		}
	}

	mean := sum / float64(n)
	var variance float64
	for _, v := range responses {
		d := v - mean
		variance += d * d
	}
	return variance / float64(n)
}

// lumaStats returns the mean and population standard deviation of the plane.
func lumaStats(luma [][]float64) (mean, std float64) {
	width := len(luma)
	if width == 0 {
		return 0, 0
	}
	height := len(luma[0])
	n := float64(width * height)

	var sum float64
	for x := range width {
		for y := range height {
			sum += luma[x][y]
		}
	}
	mean = sum / n

	var variance float64
	for x := range width {
		for y := range height {
			d := luma[x][y] - mean
			variance += d * d
		}
	}
	return mean, math.Sqrt(variance / n)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
