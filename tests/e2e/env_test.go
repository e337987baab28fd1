package e2e_test

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/DIMO-Network/wa-ocr-webhook/internal/app"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/config"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/controllers/webhook"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testVerifyToken = "verify-me"
	testGraphToken  = "graph-token"
	testOCRKey      = "ocr-key"
)

// testEnv is one running app wired to its own fake Graph, OCR and sheet servers.
type testEnv struct {
	App      *fiber.App
	Settings *config.Settings
	Graph    *mockGraphServer
	OCR      *mockOCRServer
	Sheets   *WebhookReceiver
}

func newTestEnv(t *testing.T, configure func(*config.Settings)) *testEnv {
	t.Helper()
	env := &testEnv{
		Graph:  setupGraphServer(testGraphToken),
		OCR:    setupOCRServer(testOCRKey),
		Sheets: NewWebhookReceiver(),
	}
	t.Cleanup(env.Graph.Close)
	t.Cleanup(env.OCR.Close)
	t.Cleanup(env.Sheets.Close)

	env.Settings = &config.Settings{
		VerifyToken:   testVerifyToken,
		WhatsAppToken: testGraphToken,
		PhoneNumberID: "PNID",
		GraphAPIURL:   env.Graph.URL(),
		OCRAPIKey:     testOCRKey,
		OCRAPIURL:     env.OCR.URL(),
		SheetsWebhook: env.Sheets.URL(),
	}
	if configure != nil {
		configure(env.Settings)
	}
	env.Settings.ApplyDefaults()

	fiberApp, shutdown, err := app.CreateServers(env.Settings, zerolog.New(os.Stdout).Level(zerolog.WarnLevel))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdown(ctx)
	})
	env.App = fiberApp
	return env
}

// Post delivers body to the webhook, signing it when an app secret is configured.
func (e *testEnv) Post(t *testing.T, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, "/webhook", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if e.Settings.AppSecret != "" {
		req.Header.Set(webhook.SignatureHeader, webhook.Sign(e.Settings.AppSecret, body))
	}
	resp, err := e.App.Test(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
