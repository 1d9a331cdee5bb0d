package domain

import (
	"errors"
	"math"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func TestNormalizeAnnotatedImageRawBase64(t *testing.T) {
	got := NormalizeAnnotatedImage("aGVsbG8=")
	want := "data:image/jpeg;base64,aGVsbG8="
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNormalizeAnnotatedImageStripsExistingMarker(t *testing.T) {
	got := NormalizeAnnotatedImage("data:image/jpeg;base64,aGVsbG8=")
	want := "data:image/jpeg;base64,aGVsbG8="
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNormalizeAnnotatedImageStripsOtherMarker(t *testing.T) {
	got := NormalizeAnnotatedImage("data:image/png;base64,aGVsbG8=")
	if got != "data:image/jpeg;base64,aGVsbG8=" {
		t.Fatalf("unexpected normalized form %q", got)
	}
}

func TestNormalizeAnnotatedImageEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "data:image/jpeg;base64,", "data:broken"} {
		if got := NormalizeAnnotatedImage(raw); got != "" {
			t.Fatalf("expected empty result for %q, got %q", raw, got)
		}
	}
}

func TestParsePredictionValid(t *testing.T) {
	result, err := ParsePrediction(RawPrediction{
		TumorClass: ptr("glioma"),
		Confidence: ptr(0.93),
	})
	if err != nil {
		t.Fatalf("ParsePrediction() error = %v", err)
	}
	if result.TumorClass != "glioma" || result.Confidence != 0.93 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.HasAnnotatedImage() {
		t.Fatalf("expected no annotated image")
	}
}

func TestParsePredictionAcceptsBounds(t *testing.T) {
	for _, c := range []float64{0, 1} {
		if _, err := ParsePrediction(RawPrediction{TumorClass: ptr("meningioma"), Confidence: ptr(c)}); err != nil {
			t.Fatalf("confidence %v should be valid, got %v", c, err)
		}
	}
}

func TestParsePredictionRejectsInvalid(t *testing.T) {
	cases := map[string]RawPrediction{
		"missing class":      {Confidence: ptr(0.5)},
		"empty class":        {TumorClass: ptr(""), Confidence: ptr(0.5)},
		"blank class":        {TumorClass: ptr("  "), Confidence: ptr(0.5)},
		"missing confidence": {TumorClass: ptr("glioma")},
		"above one":          {TumorClass: ptr("glioma"), Confidence: ptr(1.4)},
		"negative":           {TumorClass: ptr("glioma"), Confidence: ptr(-0.1)},
		"nan":                {TumorClass: ptr("glioma"), Confidence: ptr(math.NaN())},
	}
	for name, raw := range cases {
		_, err := ParsePrediction(raw)
		if !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("%s: expected ErrMalformedResponse, got %v", name, err)
		}
	}
}

func TestIsHighConfidenceIsStrict(t *testing.T) {
	r := PredictionResult{TumorClass: "pituitary", Confidence: 0.8}
	if r.IsHighConfidence(DefaultHighConfidenceThreshold) {
		t.Fatalf("0.8 must not be high confidence")
	}
	r.Confidence = 0.81
	if !r.IsHighConfidence(DefaultHighConfidenceThreshold) {
		t.Fatalf("0.81 must be high confidence")
	}
}

func TestClassifyFailure(t *testing.T) {
	if got := ClassifyFailure(WrapError(ErrMalformedResponse, "decode", errors.New("x"))); got != FailureMalformed {
		t.Fatalf("expected malformed, got %s", got)
	}
	if got := ClassifyFailure(WrapError(ErrTransport, "post", errors.New("x"))); got != FailureTransport {
		t.Fatalf("expected transport, got %s", got)
	}
}
