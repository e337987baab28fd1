package e2e_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/DIMO-Network/wa-ocr-webhook/internal/models"
)

// WebhookReceiver is a mock spreadsheet webhook that records forwarded records.
type WebhookReceiver struct {
	server   *httptest.Server
	received []models.ForwardRecord
	mu       sync.RWMutex
}

func NewWebhookReceiver() *WebhookReceiver {
	wr := &WebhookReceiver{}

	wr.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var record models.ForwardRecord
		if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		wr.mu.Lock()
		wr.received = append(wr.received, record)
		wr.mu.Unlock()

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status": "success"}`))
	}))
	return wr
}

func (wr *WebhookReceiver) URL() string {
	return wr.server.URL
}

func (wr *WebhookReceiver) GetReceivedRecords() []models.ForwardRecord {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	result := make([]models.ForwardRecord, len(wr.received))
	copy(result, wr.received)
	return result
}

func (wr *WebhookReceiver) Close() {
	wr.server.Close()
}
