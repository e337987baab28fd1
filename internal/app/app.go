package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/DIMO-Network/server-garage/pkg/fibercommon"
	_ "github.com/DIMO-Network/wa-ocr-webhook/docs" // Import Swagger docs
	"github.com/DIMO-Network/wa-ocr-webhook/internal/clients/ocrspace"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/clients/whatsapp"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/config"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/controllers/webhook"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/kafka"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/services/deliverycache"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/services/dispatcher"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/services/forwarder"
	"github.com/IBM/sarama"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/rs/zerolog"
)

// ShutdownFunc waits for deliveries still processing in the background and then releases the
// forward publisher. Call it once the fiber app has stopped accepting requests.
type ShutdownFunc func(ctx context.Context) error

func CreateServers(settings *config.Settings, logger zerolog.Logger) (*fiber.App, ShutdownFunc, error) {
	warnMissingSettings(logger, settings)
	httpClient := &http.Client{}

	waClient, err := whatsapp.New(settings, httpClient)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create whatsapp client: %w", err)
	}
	ocrClient, err := ocrspace.New(settings, httpClient)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OCR client: %w", err)
	}

	sinks := []forwarder.Sink{}
	if settings.SheetsWebhook != "" {
		sinks = append(sinks, forwarder.NewHTTPSink(settings.SheetsWebhook, httpClient))
	}
	var publisher io.Closer
	if settings.KafkaBrokers != "" && settings.ForwardTopic != "" {
		kafkaPublisher, err := startForwardPublisher(settings)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start forward publisher: %w", err)
		}
		publisher = kafkaPublisher
		sinks = append(sinks, forwarder.NewKafkaSink(kafkaPublisher, settings.ServiceName))
	}
	fwd, err := forwarder.New(settings.ForwardCondition, settings.ForwardTimeout, sinks...)
	if err != nil {
		closeQuietly(logger, publisher)
		return nil, nil, fmt.Errorf("failed to prepare forward condition: %w", err)
	}

	var cache webhook.DeliveryCache
	if ttl := settings.DedupeWindow(); ttl > 0 {
		cache = deliverycache.New(ttl)
	}

	disp := dispatcher.New(settings, waClient, ocrClient, waClient, fwd)
	webhookController := webhook.NewWebhookController(settings, disp, cache)

	return CreateFiberApp(logger, webhookController), newShutdownFunc(webhookController, publisher), nil
}

type inflightWaiter interface {
	Wait()
}

func newShutdownFunc(waiter inflightWaiter, publisher io.Closer) ShutdownFunc {
	return func(ctx context.Context) error {
		drained := make(chan struct{})
		go func() {
			waiter.Wait()
			close(drained)
		}()

		var drainErr error
		select {
		case <-drained:
		case <-ctx.Done():
			drainErr = fmt.Errorf("background deliveries still running: %w", ctx.Err())
		}

		if publisher == nil {
			return drainErr
		}
		if err := publisher.Close(); err != nil {
			return errors.Join(drainErr, fmt.Errorf("failed to close forward publisher: %w", err))
		}
		return drainErr
	}
}

func closeQuietly(logger zerolog.Logger, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close forward publisher")
	}
}

// CreateFiberApp sets up the API routes.
func CreateFiberApp(logger zerolog.Logger, webhookController *webhook.WebhookController) *fiber.App {
	logger.Info().Msg("Starting WhatsApp OCR webhook...")

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return fibercommon.ErrorHandler(c, err)
		},
		DisableStartupMessage: true,
		BodyLimit:             15 * 1024 * 1024,
	})
	app.Use(fibercommon.ContextLoggerMiddleware)

	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"data": "Server is up and running",
		})
	})

	app.Get("/webhook", webhookController.VerifyWebhook)
	app.Post("/webhook", webhookController.ReceiveWebhook)

	return app
}

// startForwardPublisher connects the Kafka publisher used by the forward sink.
func startForwardPublisher(settings *config.Settings) (*kafka.Publisher, error) {
	clusterConfig := sarama.NewConfig()
	clusterConfig.Version = sarama.V2_8_1_0

	return kafka.NewPublisher(&kafka.Config{
		ClusterConfig:   clusterConfig,
		BrokerAddresses: strings.Split(settings.KafkaBrokers, ","),
		Topic:           settings.ForwardTopic,
		PublishTimeout:  settings.ForwardTimeout,
	})
}

func warnMissingSettings(logger zerolog.Logger, settings *config.Settings) {
	required := map[string]string{
		"VERIFY_TOKEN":    settings.VerifyToken,
		"WHATSAPP_TOKEN":  settings.WhatsAppToken,
		"PHONE_NUMBER_ID": settings.PhoneNumberID,
		"OCR_API_KEY":     settings.OCRAPIKey,
	}
	for name, value := range required {
		if value == "" {
			logger.Warn().Str("setting", name).Msg("Setting is empty, the related calls will be rejected")
		}
	}
}
