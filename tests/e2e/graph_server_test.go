package e2e_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// SentMessage is a message the service posted to the messages endpoint.
type SentMessage struct {
	To     string
	Type   string
	Body   string
	Status string
}

type media struct {
	mimeType string
	data     []byte
}

// mockGraphServer plays the platform's media and messages endpoints.
type mockGraphServer struct {
	server *httptest.Server
	token  string
	mu     sync.RWMutex
	media  map[string]media
	sent   []SentMessage
}

func setupGraphServer(token string) *mockGraphServer {
	g := &mockGraphServer{
		token: token,
		media: make(map[string]media),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{phone}/messages", g.handleMessages)
	mux.HandleFunc("GET /files/{id}", g.handleDownload)
	mux.HandleFunc("GET /{id}", g.handleMeta)
	g.server = httptest.NewServer(g.authorize(mux))
	return g
}

func (g *mockGraphServer) URL() string {
	return g.server.URL
}

func (g *mockGraphServer) Close() {
	g.server.Close()
}

// AddMedia registers a media object served under id.
func (g *mockGraphServer) AddMedia(id, mimeType string, data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.media[id] = media{mimeType: mimeType, data: data}
}

func (g *mockGraphServer) SentMessages() []SentMessage {
	g.mu.RLock()
	defer g.mu.RUnlock()
	result := make([]SentMessage, len(g.sent))
	copy(result, g.sent)
	return result
}

// SentTexts returns only the text replies.
func (g *mockGraphServer) SentTexts() []SentMessage {
	var texts []SentMessage
	for _, m := range g.SentMessages() {
		if m.Type == "text" {
			texts = append(texts, m)
		}
	}
	return texts
}

func (g *mockGraphServer) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+g.token {
			http.Error(w, `{"error":{"message":"invalid token"}}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *mockGraphServer) handleMeta(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	g.mu.RLock()
	m, ok := g.media[id]
	g.mu.RUnlock()
	if !ok {
		http.Error(w, `{"error":{"message":"unknown media"}}`, http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":        id,
		"url":       g.server.URL + "/files/" + id,
		"mime_type": m.mimeType,
		"file_size": len(m.data),
	})
}

func (g *mockGraphServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	g.mu.RLock()
	m, ok := g.media[r.PathValue("id")]
	g.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", m.mimeType)
	_, _ = w.Write(m.data)
}

func (g *mockGraphServer) handleMessages(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		To     string `json:"to"`
		Type   string `json:"type"`
		Status string `json:"status"`
		Text   struct {
			Body string `json:"body"`
		} `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	g.mu.Lock()
	g.sent = append(g.sent, SentMessage{To: payload.To, Type: payload.Type, Body: payload.Text.Body, Status: payload.Status})
	count := len(g.sent)
	g.mu.Unlock()
	if strings.EqualFold(payload.Status, "read") {
		_, _ = fmt.Fprint(w, `{"success":true}`)
		return
	}
	_, _ = fmt.Fprintf(w, `{"messages":[{"id":"wamid.out.%d"}]}`, count)
}
