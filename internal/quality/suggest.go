package quality

// Per-metric levels below which the capture is worth a retake hint. These
// sit above the hard rejection gate so users get guidance before hitting it.
const (
	lowSharpness = 0.2
	darkLimit    = 0.25
	brightLimit  = 0.75
	lowContrast  = 0.25
)

// Evaluation is the user-facing verdict on a capture.
type Evaluation struct {
	Suitable    bool     `json:"suitable"`
	Report      Report   `json:"metrics"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Evaluate judges a report against the enrollment quality gate and attaches
// actionable retake suggestions for whatever dragged the score down.
func Evaluate(report Report, minQuality float64) Evaluation {
	var suggestions []string
	if report.Sharpness < lowSharpness {
		suggestions = append(suggestions, "image is blurry, hold the camera steady")
	}
	if report.Brightness < darkLimit {
		suggestions = append(suggestions, "image is too dark, add more light")
	}
	if report.Brightness > brightLimit {
		suggestions = append(suggestions, "image is overexposed, reduce lighting")
	}
	if report.Contrast < lowContrast {
		suggestions = append(suggestions, "image has low contrast, avoid flat lighting")
	}

	return Evaluation{
		Suitable:    report.Score >= minQuality,
		Report:      report,
		Suggestions: suggestions,
	}
}
