package ports

import (
	"context"
	"time"

	"github.com/kirillkom/neurovision/internal/core/domain"
)

// ImageInferenceService submits one image for classification. Transport
// problems wrap domain.ErrTransport, undecodable bodies wrap
// domain.ErrMalformedResponse.
type ImageInferenceService interface {
	Predict(ctx context.Context, image domain.SelectedImage) (domain.RawPrediction, error)
}

// PreviewStore issues and releases displayable preview handles.
type PreviewStore interface {
	Acquire(ctx context.Context, image domain.SelectedImage) (domain.PreviewHandle, error)
	Release(ctx context.Context, handle domain.PreviewHandle) error
}

// OutcomePublisher announces settled attempts.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, outcome domain.Outcome) error
}

// SessionObserver receives attempt telemetry.
type SessionObserver interface {
	AttemptStarted()
	AttemptFinished(outcome string, duration time.Duration)
	PreviewAcquired()
	PreviewReleased()
}
