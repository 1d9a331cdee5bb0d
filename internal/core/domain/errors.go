package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrTransport          = errors.New("transport failure")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrTemporary          = errors.New("temporary failure")
	ErrPreviewUnavailable = errors.New("preview unavailable")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// FailureKind labels why an attempt ended in the Failed state.
type FailureKind string

const (
	FailureTransport FailureKind = "transport"
	FailureMalformed FailureKind = "malformed_response"
)

// ClassifyFailure maps an inference error onto the failure taxonomy.
// Anything that is not a malformed response counts as a transport failure.
func ClassifyFailure(err error) FailureKind {
	if IsKind(err, ErrMalformedResponse) {
		return FailureMalformed
	}
	return FailureTransport
}

// CommunicationFailureMessage is the only error text a presentation layer sees.
const CommunicationFailureMessage = "Communication failure with the inference service."
