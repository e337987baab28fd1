package whatsapp

import (
	"errors"
	"fmt"
)

var errMissingURL = errors.New("metadata response has no url")

// MetadataFetchError is returned when media metadata cannot be resolved.
type MetadataFetchError struct {
	MediaID    string
	StatusCode int
	Err        error
}

func (e *MetadataFetchError) Error() string {
	return fmt.Sprintf("resolve media %s: %v", e.MediaID, e.Err)
}

func (e *MetadataFetchError) Unwrap() error {
	return e.Err
}

// DownloadError is returned when the media bytes cannot be fetched.
type DownloadError struct {
	MediaID    string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download media %s: %v", e.MediaID, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// SendError is returned when the platform rejects an outbound message.
type SendError struct {
	StatusCode int
	Err        error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send message: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
