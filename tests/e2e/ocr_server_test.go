package e2e_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// mockOCRServer answers the parse endpoint with text keyed by the submitted image.
type mockOCRServer struct {
	server  *httptest.Server
	apiKey  string
	mu      sync.RWMutex
	results map[string]string
	calls   int
}

func setupOCRServer(apiKey string) *mockOCRServer {
	o := &mockOCRServer{
		apiKey:  apiKey,
		results: make(map[string]string),
	}
	o.server = httptest.NewServer(http.HandlerFunc(o.handleParse))
	return o
}

func (o *mockOCRServer) URL() string {
	return o.server.URL
}

func (o *mockOCRServer) Close() {
	o.server.Close()
}

// SetResult makes submissions of the given base64Image field value return text.
func (o *mockOCRServer) SetResult(base64Image, text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results[base64Image] = text
}

func (o *mockOCRServer) Calls() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.calls
}

func (o *mockOCRServer) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/parse/image" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if r.Header.Get("apikey") != o.apiKey {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"OCRExitCode":           99,
			"IsErroredOnProcessing": true,
			"ErrorMessage":          []string{"invalid api key"},
		})
		return
	}
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	o.mu.Lock()
	o.calls++
	text := o.results[r.FormValue("base64Image")]
	o.mu.Unlock()

	_ = json.NewEncoder(w).Encode(map[string]any{
		"ParsedResults": []map[string]any{{
			"ParsedText":        text,
			"FileParseExitCode": 1,
		}},
		"OCRExitCode":           1,
		"IsErroredOnProcessing": false,
	})
}
