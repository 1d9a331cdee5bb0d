package domain

import (
	"fmt"
	"math"
	"strings"
)

// DefaultHighConfidenceThreshold is the confidence above which a result is
// rendered as a high-confidence diagnosis.
const DefaultHighConfidenceThreshold = 0.8

// RawPrediction is the inference service response as decoded from JSON,
// before validation. Pointer fields distinguish "absent" from zero values.
type RawPrediction struct {
	TumorClass *string  `json:"tumor_class"`
	Confidence *float64 `json:"confidence"`
	Image      string   `json:"image,omitempty"`
}

// PredictionResult is an immutable, validated classification.
type PredictionResult struct {
	TumorClass     string  `json:"tumor_class"`
	Confidence     float64 `json:"confidence"`
	AnnotatedImage string  `json:"annotated_image,omitempty"`
}

func NewPredictionResult(tumorClass string, confidence float64, annotatedImage string) (PredictionResult, error) {
	if strings.TrimSpace(tumorClass) == "" {
		return PredictionResult{}, fmt.Errorf("%w: tumor_class is empty", ErrMalformedResponse)
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return PredictionResult{}, fmt.Errorf("%w: confidence %v outside [0,1]", ErrMalformedResponse, confidence)
	}
	return PredictionResult{
		TumorClass:     tumorClass,
		Confidence:     confidence,
		AnnotatedImage: NormalizeAnnotatedImage(annotatedImage),
	}, nil
}

// ParsePrediction validates a decoded response into a PredictionResult.
// All validation failures wrap ErrMalformedResponse.
func ParsePrediction(raw RawPrediction) (PredictionResult, error) {
	if raw.TumorClass == nil {
		return PredictionResult{}, fmt.Errorf("%w: tumor_class is missing", ErrMalformedResponse)
	}
	if raw.Confidence == nil {
		return PredictionResult{}, fmt.Errorf("%w: confidence is missing", ErrMalformedResponse)
	}
	return NewPredictionResult(*raw.TumorClass, *raw.Confidence, raw.Image)
}

func (r PredictionResult) HasAnnotatedImage() bool {
	return r.AnnotatedImage != ""
}

func (r PredictionResult) IsHighConfidence(threshold float64) bool {
	return r.Confidence > threshold
}
