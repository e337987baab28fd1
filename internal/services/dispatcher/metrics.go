package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ocrOutcomeText           = "text"
	ocrOutcomeEmpty          = "empty"
	ocrOutcomeProviderError  = "provider_error"
	ocrOutcomeTransportError = "transport_error"
)

var (
	inboundEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wa_ocr_webhook",
		Name:      "inbound_events_total",
		Help:      "Webhook deliveries by event kind and message type.",
	}, []string{"kind", "type"})

	ocrOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wa_ocr_webhook",
		Name:      "ocr_results_total",
		Help:      "Text recognition outcomes.",
	}, []string{"outcome"})

	sendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wa_ocr_webhook",
		Name:      "reply_failures_total",
		Help:      "Replies the platform did not accept.",
	})
)
