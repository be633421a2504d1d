package speech

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failed transcription. The set is closed; transports
// map provider responses onto it so callers never see raw provider errors.
type ErrorCode int

const (
	// ErrUnknown covers failures with no more specific classification.
	ErrUnknown ErrorCode = iota
	// ErrAudioTooShort rejects input below the provider's minimum duration
	// floor before any network activity.
	ErrAudioTooShort
	// ErrNoSpeechDetected marks an empty final transcript.
	ErrNoSpeechDetected
	// ErrUploadFailed marks a failed media upload step.
	ErrUploadFailed
	// ErrCreateTranscriptFailed marks a failed job-creation step.
	ErrCreateTranscriptFailed
	// ErrTranscriptionTimeout marks poll-budget or stream-deadline expiry.
	ErrTranscriptionTimeout
	// ErrTranscriptionError marks a provider-reported job failure.
	ErrTranscriptionError
	// ErrRecognitionFailed marks a provider-reported recognition failure.
	ErrRecognitionFailed
	// ErrNetwork marks transport-level failures after retries.
	ErrNetwork
)

var errorCodeNames = map[ErrorCode]string{
	ErrUnknown:                "UNKNOWN",
	ErrAudioTooShort:          "AUDIO_TOO_SHORT",
	ErrNoSpeechDetected:       "NO_SPEECH_DETECTED",
	ErrUploadFailed:           "UPLOAD_FAILED",
	ErrCreateTranscriptFailed: "CREATE_TRANSCRIPT_FAILED",
	ErrTranscriptionTimeout:   "TRANSCRIPTION_TIMEOUT",
	ErrTranscriptionError:     "TRANSCRIPTION_ERROR",
	ErrRecognitionFailed:      "RECOGNITION_FAILED",
	ErrNetwork:                "NETWORK_ERROR",
}

// String returns the stable wire name of the code.
func (c ErrorCode) String() string {
	if s, ok := errorCodeNames[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// Error is the structured failure every gateway operation returns. It always
// carries a stable code and a human-readable message; Detail holds the raw
// provider payload when one exists.
type Error struct {
	Code    ErrorCode
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the ErrorCode from any error returned by the gateway;
// non-gateway errors report ErrUnknown.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrUnknown
}

// Result is a successful transcription.
type Result struct {
	Text     string
	Language string
	Provider string
	Model    string
}

// ValidationCode classifies credential-validation failures.
type ValidationCode int

const (
	// ValidationUnknown covers unclassified validation failures.
	ValidationUnknown ValidationCode = iota
	// ValidationInvalidCredentials means the provider rejected the secrets.
	ValidationInvalidCredentials
	// ValidationWrongEndpointOrRegion means the account exists but the
	// configured region or service URL does not.
	ValidationWrongEndpointOrRegion
	// ValidationRateLimited means the probe hit a quota wall.
	ValidationRateLimited
	// ValidationProviderUnavailable means the provider returned a 5xx.
	ValidationProviderUnavailable
	// ValidationNetworkError means the probe never reached the provider.
	ValidationNetworkError
	// ValidationTimeout means the probe exceeded its deadline.
	ValidationTimeout
)

var validationCodeNames = map[ValidationCode]string{
	ValidationUnknown:               "UNKNOWN",
	ValidationInvalidCredentials:    "INVALID_CREDENTIALS",
	ValidationWrongEndpointOrRegion: "WRONG_ENDPOINT_OR_REGION",
	ValidationRateLimited:           "RATE_LIMITED",
	ValidationProviderUnavailable:   "PROVIDER_UNAVAILABLE",
	ValidationNetworkError:          "NETWORK_ERROR",
	ValidationTimeout:               "TIMEOUT",
}

// String returns the stable wire name of the code.
func (c ValidationCode) String() string {
	if s, ok := validationCodeNames[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// ValidationError reports why ValidateCredentials failed.
type ValidationError struct {
	Code    ValidationCode
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func newValidationError(code ValidationCode, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ValidationCodeOf extracts the ValidationCode from a validation failure;
// non-gateway errors report ValidationUnknown.
func ValidationCodeOf(err error) ValidationCode {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ValidationUnknown
}

// MapStatus is the fixed HTTP status → validation code mapping shared by
// every REST-backed provider.
func MapStatus(status int) ValidationCode {
	switch {
	case status == 401 || status == 403:
		return ValidationInvalidCredentials
	case status == 404:
		return ValidationWrongEndpointOrRegion
	case status == 429:
		return ValidationRateLimited
	case status >= 500 && status <= 599:
		return ValidationProviderUnavailable
	default:
		return ValidationUnknown
	}
}
