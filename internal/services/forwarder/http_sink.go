package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/DIMO-Network/server-garage/pkg/richerrors"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/models"
)

const (
	// SinkFailureCode is the code returned when the remote sink caused an error
	SinkFailureCode = -1

	// Maximum response body size to read for error logging
	maxResponseBodySize = 1024
)

// HTTPSink posts records as JSON to a webhook, typically a spreadsheet script.
type HTTPSink struct {
	targetURL string
	client    *http.Client
}

// NewHTTPSink creates a new HTTPSink.
func NewHTTPSink(targetURL string, client *http.Client) *HTTPSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSink{
		targetURL: targetURL,
		client:    client,
	}
}

func (s *HTTPSink) Name() string {
	return "http"
}

// Send posts record. Any non-2xx response is an error.
func (s *HTTPSink) Send(ctx context.Context, record models.ForwardRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal forward record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.targetURL, bytes.NewReader(body))
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return richerrors.Error{
				Code: SinkFailureCode,
				Err:  fmt.Errorf("invalid URL: %w", err),
			}
		}
		return fmt.Errorf("failed to create forward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return richerrors.Error{
			Code: SinkFailureCode,
			Err:  fmt.Errorf("failed to POST to sink: %w", err),
		}
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
		return richerrors.Error{
			Code: SinkFailureCode,
			Err:  fmt.Errorf("sink returned status code %d: %s", resp.StatusCode, string(respBody)),
		}
	}
	return nil
}
