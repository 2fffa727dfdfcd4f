package models

import "errors"

// Error taxonomy of the pipeline. Callers wrap these with fmt.Errorf("...: %w")
// and test with errors.Is. None of them escapes the orchestrator.
var (
	// ErrValidation marks empty or malformed input.
	ErrValidation = errors.New("validation failure")
	// ErrProvider marks an embedding or generative-model call that failed or timed out.
	ErrProvider = errors.New("provider failure")
	// ErrStore marks a document, rule or log store access error.
	ErrStore = errors.New("store failure")
	// ErrLogging marks a message log write that could not be completed.
	ErrLogging = errors.New("logging failure")
	// ErrNotFound is returned by stores for missing records.
	ErrNotFound = errors.New("not found")
)
