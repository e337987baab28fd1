package ocrspace

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DIMO-Network/wa-ocr-webhook/internal/config"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/models"
)

const (
	parsePath        = "/parse/image"
	maxErrorBodySize = 1024
)

// Client for the OCR.space parse API.
type Client struct {
	endpoint   string
	apiKey     string
	language   string
	submitMode string
	timeout    time.Duration
	httpClient *http.Client
}

// parseResponse is the subset of the OCR.space response this service reads.
type parseResponse struct {
	ParsedResults []struct {
		ParsedText        string `json:"ParsedText"`
		FileParseExitCode int    `json:"FileParseExitCode"`
		ErrorMessage      string `json:"ErrorMessage"`
	} `json:"ParsedResults"`
	OCRExitCode           int             `json:"OCRExitCode"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// New creates a new Client.
func New(settings *config.Settings, httpClient *http.Client) (*Client, error) {
	parsedURL, err := url.Parse(settings.OCRAPIURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OCR API URL: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint:   strings.TrimSuffix(parsedURL.String(), "/") + parsePath,
		apiKey:     settings.OCRAPIKey,
		language:   settings.OCRLanguage,
		submitMode: settings.SubmitMode,
		timeout:    settings.OCRTimeout,
		httpClient: httpClient,
	}, nil
}

// Recognize submits an image and returns the first parsed text, trimmed.
// An empty string with a nil error means the provider found no text.
func (c *Client) Recognize(ctx context.Context, img models.Image) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, contentType, err := c.buildForm(img)
	if err != nil {
		return "", &TransportError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", &TransportError{Err: fmt.Errorf("failed to create OCR request: %w", err)}
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Err: fmt.Errorf("failed to POST to OCR provider: %w", err)}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("OCR provider returned status code %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var parsed parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &TransportError{Err: fmt.Errorf("failed to decode OCR response: %w", err)}
	}
	if parsed.IsErroredOnProcessing {
		return "", &ProviderError{ExitCode: parsed.OCRExitCode, Message: providerMessage(parsed.ErrorMessage)}
	}
	if len(parsed.ParsedResults) == 0 {
		return "", nil
	}
	return strings.TrimSpace(parsed.ParsedResults[0].ParsedText), nil
}

func (c *Client) buildForm(img models.Image) (io.Reader, string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	fields := [][2]string{}
	if c.submitMode == config.SubmitModeURL {
		if img.URL == "" {
			return nil, "", fmt.Errorf("url submit mode requires a media url")
		}
		fields = append(fields, [2]string{"url", img.URL})
	} else {
		if len(img.Data) == 0 {
			return nil, "", fmt.Errorf("no image data to submit")
		}
		fields = append(fields, [2]string{"base64Image", DataURI(img.MimeType, img.Data)})
	}
	fields = append(fields,
		[2]string{"language", c.language},
		[2]string{"isTable", "true"},
		[2]string{"scale", "true"},
		[2]string{"OCREngine", "2"},
	)
	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", f[0], err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return &buf, form.FormDataContentType(), nil
}

// DataURI encodes data as a base64 data URI.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// providerMessage flattens ErrorMessage, which the provider sends as a string or a list of strings.
func providerMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return strings.Join(many, "; ")
	}
	return string(raw)
}
