package models

import "fmt"

// Pipeline stages, used for error context and metrics labels.
const (
	StageFetch     = "fetch"
	StageSummarize = "summarize"
	StageImage     = "image"
	StagePublish   = "publish"
)

// ProviderError wraps a failed call to an external provider with enough
// context to diagnose which stage broke without stopping the worker.
type ProviderError struct {
	Provider   string
	Stage      string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s failed with status %d: %v", e.Provider, e.Stage, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Provider, e.Stage, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a ProviderError. statusCode is 0 when the failure
// happened before an HTTP status was available.
func NewProviderError(provider, stage string, statusCode int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Stage: stage, StatusCode: statusCode, Err: err}
}
