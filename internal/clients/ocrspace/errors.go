package ocrspace

import "fmt"

// ProviderError is returned when the provider flags a processing failure in its response.
type ProviderError struct {
	ExitCode int
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("OCR provider processing error (exit code %d): %s", e.ExitCode, e.Message)
}

// TransportError is returned when the provider could not be reached or answered unreadably.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("OCR transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
