package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrQuotaExceeded signals that a user hit the monthly query ceiling.
	// It is an expected business outcome, not a fault.
	ErrQuotaExceeded = errors.New("monthly query quota exceeded")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConfigurationMissing signals that a course lacks required
	// configuration (assistant binding, vector store, deployment).
	ErrConfigurationMissing = errors.New("configuration missing")
	// ErrUnsupportedFileType signals a file extension outside the allow-list.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrInvalidAssertion signals a launch token that failed verification.
	ErrInvalidAssertion = errors.New("invalid launch assertion")
	// ErrNoResponse signals a run that finished without an assistant turn.
	ErrNoResponse = errors.New("no response received")
	// ErrRunTimedOut signals that a remote run outlived the configured
	// maximum poll duration. Distinct from a remote failure so callers can
	// tell "still slow" from "broken".
	ErrRunTimedOut = errors.New("assistant run timed out")
)
