package geminiservice

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned when no API key was injected.
	ErrNotConfigured = errors.New("server is not configured for AI features")

	// ErrCapabilityListUnavailable wraps any failure of the model listing call.
	// Callers never see it from Candidates; it only surfaces from ListModels.
	ErrCapabilityListUnavailable = errors.New("model capability list unavailable")

	// ErrUpstreamExhausted matches every *ExhaustedError.
	ErrUpstreamExhausted = errors.New("all candidate models failed")
)

// CandidateError records why a single candidate model was rejected.
type CandidateError struct {
	Model string
	Err   error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("candidate %s rejected: %v", e.Model, e.Err)
}

func (e *CandidateError) Unwrap() error { return e.Err }

// ExhaustedError is returned when no candidate produced usable text.
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	if e.LastErr == nil {
		return fmt.Sprintf("%s after %d attempts", ErrUpstreamExhausted, e.Attempts)
	}
	return fmt.Sprintf("%s after %d attempts: %v", ErrUpstreamExhausted, e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

func (e *ExhaustedError) Is(target error) bool { return target == ErrUpstreamExhausted }
