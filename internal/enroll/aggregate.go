// Package enroll turns a batch of captures into one enrollment embedding.
package enroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/facegate/facegate/internal/faceid"
	"github.com/facegate/facegate/internal/quality"
	"github.com/facegate/facegate/internal/vecindex"
)

// ErrInsufficientSamples means no image in the batch produced a usable
// embedding. The per-image reports explain what went wrong with each one.
var ErrInsufficientSamples = errors.New("no usable face samples in batch")

// Image statuses in an ImageReport.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
	StatusError    = "error"
)

// ImageReport is the per-image outcome of an enrollment batch.
type ImageReport struct {
	Index   int            `json:"index"`
	Status  string         `json:"status"`
	Reason  string         `json:"reason,omitempty"`
	Quality quality.Report `json:"quality"`
}

// Embedder extracts the embedding of the dominant face in an image.
type Embedder interface {
	Embed(ctx context.Context, imageData []byte) ([]float32, error)
}

// Aggregator screens enrollment captures and folds the survivors into a
// single reference embedding.
type Aggregator struct {
	assessor   *quality.Assessor
	embedder   Embedder
	minQuality float64
}

func NewAggregator(assessor *quality.Assessor, embedder Embedder, minQuality float64) *Aggregator {
	return &Aggregator{assessor: assessor, embedder: embedder, minQuality: minQuality}
}

// Aggregate processes each image independently: quality gate first, face
// embedding second. One bad image never aborts the batch. Accepted
// embeddings are averaged element-wise and re-normalized to unit norm.
// When nothing survives, it returns ErrInsufficientSamples together with
// the full report list so the caller can tell the user why.
func (a *Aggregator) Aggregate(ctx context.Context, images [][]byte) ([]float32, []ImageReport, error) {
	reports := make([]ImageReport, 0, len(images))
	var accepted [][]float32

	for i, img := range images {
		report := ImageReport{Index: i, Quality: a.assessor.Assess(img)}

		if report.Quality.Score < a.minQuality {
			report.Status = StatusRejected
			report.Reason = fmt.Sprintf("quality %.2f below minimum %.2f", report.Quality.Score, a.minQuality)
			reports = append(reports, report)
			continue
		}

		embedding, err := a.embedder.Embed(ctx, img)
		switch {
		case err == nil:
			report.Status = StatusAccepted
			accepted = append(accepted, embedding)
		case errors.Is(err, faceid.ErrNoFace):
			report.Status = StatusRejected
			report.Reason = "no face detected"
		case errors.Is(err, faceid.ErrLowConfidence):
			report.Status = StatusRejected
			report.Reason = "face detection confidence too low"
		default:
			report.Status = StatusError
			report.Reason = err.Error()
		}
		reports = append(reports, report)
	}

	if len(accepted) == 0 {
		return nil, reports, ErrInsufficientSamples
	}

	mean, err := meanEmbedding(accepted)
	if err != nil {
		return nil, reports, err
	}
	return mean, reports, nil
}

// meanEmbedding averages the embeddings element-wise and re-normalizes the
// result to unit norm. All inputs must share one dimension.
func meanEmbedding(embeddings [][]float32) ([]float32, error) {
	dim := len(embeddings[0])
	sum := make([]float32, dim)
	for _, e := range embeddings {
		if len(e) != dim {
			return nil, fmt.Errorf("embedding dimension mismatch: %d vs %d", len(e), dim)
		}
		for i, v := range e {
			sum[i] += v
		}
	}

	n := float32(len(embeddings))
	for i := range sum {
		sum[i] /= n
	}

	out, ok := vecindex.Normalize(sum)
	if !ok {
		// Opposing embeddings can cancel to zero; nothing sensible to enroll.
		return nil, ErrInsufficientSamples
	}
	return out, nil
}
