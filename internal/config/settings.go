package config

import (
	"time"
)

const (
	// SubmitModeBase64 sends the downloaded image inline to the OCR provider.
	SubmitModeBase64 = "base64"
	// SubmitModeURL hands the signed media URL to the OCR provider.
	SubmitModeURL = "url"
)

// Settings contains the application config
type Settings struct {
	Port        int    `env:"PORT"`
	MonPort     int    `env:"MON_PORT"`
	EnablePprof bool   `env:"ENABLE_PPROF"`
	LogLevel    string `env:"LOG_LEVEL"`
	ServiceName string `env:"SERVICE_NAME"`

	// Platform (WhatsApp Cloud API)
	VerifyToken   string `env:"VERIFY_TOKEN"`
	WhatsAppToken string `env:"WHATSAPP_TOKEN"`
	PhoneNumberID string `env:"PHONE_NUMBER_ID"`
	AppSecret     string `env:"APP_SECRET"`
	GraphAPIURL   string `env:"GRAPH_API_URL"`
	MarkAsRead    bool   `env:"MARK_AS_READ"`

	// OCR provider
	OCRAPIKey   string `env:"OCR_API_KEY"`
	OCRAPIURL   string `env:"OCR_API_URL"`
	OCRLanguage string `env:"OCR_LANGUAGE"`
	SubmitMode  string `env:"SUBMIT_MODE"`

	// Forwarding sinks
	SheetsWebhook    string `env:"SHEETS_WEBHOOK"`
	ForwardCondition string `env:"FORWARD_CONDITION"`
	KafkaBrokers     string `env:"KAFKA_BROKERS"`
	ForwardTopic     string `env:"FORWARD_TOPIC"`

	// Dispatch behaviour
	AckBeforeProcessing *bool         `env:"ACK_BEFORE_PROCESSING"`
	DedupeTTL           *time.Duration `env:"DEDUPE_TTL"`
	MaxMediaBytes       int64         `env:"MAX_MEDIA_BYTES"`

	MetadataTimeout time.Duration `env:"METADATA_TIMEOUT"`
	SendTimeout     time.Duration `env:"SEND_TIMEOUT"`
	DownloadTimeout time.Duration `env:"DOWNLOAD_TIMEOUT"`
	OCRTimeout      time.Duration `env:"OCR_TIMEOUT"`
	ForwardTimeout  time.Duration `env:"FORWARD_TIMEOUT"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
}

// ApplyDefaults fills every unset field with its default value.
func (s *Settings) ApplyDefaults() {
	if s.Port == 0 {
		s.Port = 3000
	}
	if s.MonPort == 0 {
		s.MonPort = 8888
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.ServiceName == "" {
		s.ServiceName = "wa-ocr-webhook"
	}
	if s.GraphAPIURL == "" {
		s.GraphAPIURL = "https://graph.facebook.com/v21.0"
	}
	if s.OCRAPIURL == "" {
		s.OCRAPIURL = "https://api.ocr.space"
	}
	if s.OCRLanguage == "" {
		s.OCRLanguage = "por"
	}
	if s.SubmitMode == "" {
		s.SubmitMode = SubmitModeBase64
	}
	if s.AckBeforeProcessing == nil {
		ack := true
		s.AckBeforeProcessing = &ack
	}
	if s.DedupeTTL == nil {
		ttl := 10 * time.Minute
		s.DedupeTTL = &ttl
	}
	if s.MaxMediaBytes == 0 {
		s.MaxMediaBytes = 15 << 20
	}
	if s.MetadataTimeout == 0 {
		s.MetadataTimeout = 15 * time.Second
	}
	if s.SendTimeout == 0 {
		s.SendTimeout = 15 * time.Second
	}
	if s.DownloadTimeout == 0 {
		s.DownloadTimeout = 25 * time.Second
	}
	if s.OCRTimeout == 0 {
		s.OCRTimeout = 60 * time.Second
	}
	if s.ForwardTimeout == 0 {
		s.ForwardTimeout = 15 * time.Second
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 2 * time.Minute
	}
}

// AckFirst reports whether deliveries are acknowledged before they are processed.
func (s *Settings) AckFirst() bool {
	return s.AckBeforeProcessing == nil || *s.AckBeforeProcessing
}

// DedupeWindow returns how long a message id is remembered. Zero disables de-duplication.
func (s *Settings) DedupeWindow() time.Duration {
	if s.DedupeTTL == nil {
		return 0
	}
	return *s.DedupeTTL
}
