package service

import (
	"errors"
	"fmt"

	"github.com/arjunpratapdas/contractiq/pkg/metrics"
)

var (
	// ErrSessionNotFound is returned for unknown or expired session IDs
	ErrSessionNotFound = errors.New("session not found")
	// ErrOperationInProgress is returned when the same operation is already running for a session
	ErrOperationInProgress = errors.New("operation already in progress")
	// ErrStoreFull is returned when the store is at capacity and nothing can be evicted
	ErrStoreFull = errors.New("session store is full")
	// ErrGeneratorNotConfigured is returned by tools built without a generation provider
	ErrGeneratorNotConfigured = errors.New("generation provider not configured")
)

// ValidationError is a precondition failure detected before any network call
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// GenerationServiceError means the generation provider was unreachable or answered non-2xx.
// StatusCode is 0 when no response arrived.
type GenerationServiceError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *GenerationServiceError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s generation request failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s generation service returned status %d: %s", e.Provider, e.StatusCode, truncate(e.Body, 200))
}

func (e *GenerationServiceError) Unwrap() error { return e.Err }

// MalformedResponseError means the upstream answered but not with the expected envelope
type MalformedResponseError struct {
	Service string
	Reason  string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed %s response: %s", e.Service, e.Reason)
}

// DefaultAnalysisDetail is reported when the analysis back end gives no detail
const DefaultAnalysisDetail = "Document analysis failed"

// AnalysisError is a failure reported by, or reaching, the analysis back end.
// Err is set when the request never got a response.
type AnalysisError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis request failed: %v", e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("analysis failed with status %d: %s", e.StatusCode, e.Detail)
	}
	return "analysis failed: " + e.Detail
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Error kinds reported to clients
const (
	KindValidation  = "validation"
	KindBusy        = "busy"
	KindNotFound    = "not_found"
	KindTransport   = "transport"
	KindMalformed   = "malformed_response"
	KindServer      = "server_reported"
	KindInternal    = "internal"
	KindUnavailable = "unavailable"
)

// Classify maps an error to its client-facing kind and whether retrying can help
func Classify(err error) (kind string, retryable bool) {
	var (
		validationErr *ValidationError
		generationErr *GenerationServiceError
		malformedErr  *MalformedResponseError
		analysisErr   *AnalysisError
	)
	switch {
	case errors.As(err, &validationErr):
		return KindValidation, false
	case errors.Is(err, ErrOperationInProgress):
		return KindBusy, true
	case errors.Is(err, ErrSessionNotFound):
		return KindNotFound, false
	case errors.Is(err, ErrStoreFull):
		return KindUnavailable, true
	case errors.Is(err, ErrGeneratorNotConfigured):
		return KindUnavailable, false
	case errors.As(err, &malformedErr):
		return KindMalformed, false
	case errors.As(err, &generationErr):
		return KindTransport, true
	case errors.As(err, &analysisErr):
		if analysisErr.Err != nil {
			return KindTransport, true
		}
		return KindServer, true
	}
	return KindInternal, false
}

func outcomeFor(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	switch kind, _ := Classify(err); kind {
	case KindValidation:
		return metrics.OutcomeRejected
	case KindBusy:
		return metrics.OutcomeBusy
	case KindMalformed:
		return metrics.OutcomeMalformed
	case KindServer:
		return metrics.OutcomeServer
	}
	return metrics.OutcomeTransport
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
