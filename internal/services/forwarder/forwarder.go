package forwarder

import (
	"context"
	"time"

	"github.com/DIMO-Network/wa-ocr-webhook/internal/celcondition"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/models"
	"github.com/google/cel-go/cel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var forwardOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wa_ocr_webhook",
	Name:      "forwarded_records_total",
	Help:      "Forwarded records by sink and outcome.",
}, []string{"sink", "outcome"})

// Sink is a destination for forwarded records.
type Sink interface {
	Name() string
	Send(ctx context.Context, record models.ForwardRecord) error
}

// Forwarder relays records to every configured sink, best effort.
type Forwarder struct {
	sinks     []Sink
	condition cel.Program
	timeout   time.Duration
}

// New creates a new Forwarder. An empty condition forwards every record.
func New(condition string, timeout time.Duration, sinks ...Sink) (*Forwarder, error) {
	f := &Forwarder{
		sinks:   sinks,
		timeout: timeout,
	}
	if condition != "" {
		prg, err := celcondition.PrepareCondition(condition)
		if err != nil {
			return nil, err
		}
		f.condition = prg
	}
	return f, nil
}

// Forward sends record to each sink in turn. Failures are logged and never returned.
func (f *Forwarder) Forward(ctx context.Context, record models.ForwardRecord) {
	if len(f.sinks) == 0 {
		return
	}
	logger := zerolog.Ctx(ctx)

	if f.condition != nil {
		ok, err := celcondition.EvaluateCondition(f.condition, record)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to evaluate forward condition")
			return
		}
		if !ok {
			for _, sink := range f.sinks {
				forwardOutcomes.WithLabelValues(sink.Name(), "filtered").Inc()
			}
			return
		}
	}

	for _, sink := range f.sinks {
		if err := f.send(ctx, sink, record); err != nil {
			forwardOutcomes.WithLabelValues(sink.Name(), "error").Inc()
			logger.Error().Err(err).Str("sink", sink.Name()).Msg("Failed to forward record")
			continue
		}
		forwardOutcomes.WithLabelValues(sink.Name(), "ok").Inc()
	}
}

func (f *Forwarder) send(ctx context.Context, sink Sink, record models.ForwardRecord) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	return sink.Send(ctx, record)
}
