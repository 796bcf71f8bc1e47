package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	// Fatal to a run: discovery transport failed, nothing was extracted.
	ErrCodeSearchTransport = "SEARCH_TRANSPORT"
	// Fatal to a run: search succeeded but zero URLs survived filtering.
	ErrCodeNoResults = "NO_RESULTS"
	// Fatal to a run: the result artifact could not be written.
	ErrCodePersistence = "PERSISTENCE_FAILED"
	// Fatal to a run: invalid configuration caught before any invocation.
	ErrCodeConfiguration = "CONFIGURATION_INVALID"

	// Recoverable: logged and counted, the run continues.
	ErrCodeIdentityRotation = "IDENTITY_ROTATION_FAILED"
	ErrCodeDownloadFailed   = "DOWNLOAD_FAILED"

	// API-surface error codes.
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeQueueFull      = "QUEUE_FULL"
	ErrCodeJobNotFound    = "JOB_NOT_FOUND"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CollectError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type CollectError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *CollectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CollectError) Unwrap() error {
	return e.Err
}

// NewCollectError creates a new CollectError.
func NewCollectError(code, message string, err error) *CollectError {
	return &CollectError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *CollectError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// IsFatal reports whether the error code terminates a run early.
// Rotation and download failures are absorbed into the outcome instead.
func (e *CollectError) IsFatal() bool {
	switch e.Code {
	case ErrCodeSearchTransport, ErrCodeNoResults, ErrCodePersistence, ErrCodeConfiguration:
		return true
	}
	return false
}
