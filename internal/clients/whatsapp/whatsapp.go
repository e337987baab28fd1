package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DIMO-Network/wa-ocr-webhook/internal/config"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/models"
)

const (
	// maximum response body size to read for error messages
	maxErrorBodySize = 1024
	mediaFields      = "url,mime_type,sha256,file_size,id"
)

// Client for the WhatsApp Cloud (Graph) API.
type Client struct {
	baseURL         string
	accessToken     string
	phoneNumberID   string
	maxMediaBytes   int64
	metadataTimeout time.Duration
	downloadTimeout time.Duration
	sendTimeout     time.Duration
	httpClient      *http.Client
}

// New creates a new Client.
func New(settings *config.Settings, httpClient *http.Client) (*Client, error) {
	parsedURL, err := url.Parse(settings.GraphAPIURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse graph API URL: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:         strings.TrimSuffix(parsedURL.String(), "/"),
		accessToken:     settings.WhatsAppToken,
		phoneNumberID:   settings.PhoneNumberID,
		maxMediaBytes:   settings.MaxMediaBytes,
		metadataTimeout: settings.MetadataTimeout,
		downloadTimeout: settings.DownloadTimeout,
		sendTimeout:     settings.SendTimeout,
		httpClient:      httpClient,
	}, nil
}

// ResolveMeta fetches the signed URL and MIME type of a media object.
func (c *Client) ResolveMeta(ctx context.Context, mediaID string) (models.MediaMeta, error) {
	ctx, cancel := withTimeout(ctx, c.metadataTimeout)
	defer cancel()

	endpoint := c.baseURL + "/" + url.PathEscape(mediaID) + "?fields=" + url.QueryEscape(mediaFields)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.MediaMeta{}, &MetadataFetchError{MediaID: mediaID, Err: fmt.Errorf("failed to create metadata request: %w", err)}
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.MediaMeta{}, &MetadataFetchError{MediaID: mediaID, Err: fmt.Errorf("failed to fetch media metadata: %w", err)}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.MediaMeta{}, &MetadataFetchError{MediaID: mediaID, StatusCode: resp.StatusCode, Err: statusError(resp)}
	}

	var meta models.MediaMeta
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return models.MediaMeta{}, &MetadataFetchError{MediaID: mediaID, Err: fmt.Errorf("failed to decode media metadata: %w", err)}
	}
	if meta.URL == "" {
		return models.MediaMeta{}, &MetadataFetchError{MediaID: mediaID, Err: errMissingURL}
	}
	if meta.ID == "" {
		meta.ID = mediaID
	}
	return meta, nil
}

// Download fetches the media bytes behind a signed URL.
func (c *Client) Download(ctx context.Context, meta models.MediaMeta) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, c.downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, &DownloadError{MediaID: meta.ID, Err: fmt.Errorf("failed to create download request: %w", err)}
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &DownloadError{MediaID: meta.ID, Err: fmt.Errorf("failed to download media: %w", err)}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DownloadError{MediaID: meta.ID, StatusCode: resp.StatusCode, Err: statusError(resp)}
	}

	var body io.Reader = resp.Body
	if c.maxMediaBytes > 0 {
		body = io.LimitReader(resp.Body, c.maxMediaBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &DownloadError{MediaID: meta.ID, Err: fmt.Errorf("failed to read media body: %w", err)}
	}
	if c.maxMediaBytes > 0 && int64(len(data)) > c.maxMediaBytes {
		return nil, &DownloadError{MediaID: meta.ID, Err: fmt.Errorf("media exceeds %d bytes", c.maxMediaBytes)}
	}
	return data, nil
}

// SendText sends a plain text message to a recipient.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	return c.postMessage(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "text",
		"text": map[string]any{
			"preview_url": false,
			"body":        body,
		},
	})
}

// MarkRead marks an inbound message as read.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	return c.postMessage(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	})
}

func (c *Client) postMessage(ctx context.Context, payload map[string]any) error {
	ctx, cancel := withTimeout(ctx, c.sendTimeout)
	defer cancel()

	reqBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	endpoint := c.baseURL + "/" + url.PathEscape(c.phoneNumberID) + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create message request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &SendError{StatusCode: resp.StatusCode, Err: statusError(resp)}
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
}

func statusError(resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	return fmt.Errorf("graph API returned status code %d: %s", resp.StatusCode, string(respBody))
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
