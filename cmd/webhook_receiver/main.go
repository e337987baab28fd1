// Command webhook_receiver is a local stand-in for the forward sinks. It logs every record
// posted to /webhook and, when brokers are given, every record published to the forward topic.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/DIMO-Network/cloudevent"
	"github.com/DIMO-Network/server-garage/pkg/logging"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/kafka"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/models"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

func main() {
	logger := logging.GetAndSetDefaultLogger("webhook-receiver")
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	addr := flag.String("addr", ":8081", "listen address")
	brokers := flag.String("kafka-brokers", "", "comma separated brokers to tail the forward topic")
	topic := flag.String("topic", "wa-ocr-forward", "forward topic")
	flag.Parse()

	if *brokers != "" {
		consumer, err := kafka.NewConsumer(&kafka.Config{
			BrokerAddresses: strings.Split(*brokers, ","),
			Topic:           *topic,
			GroupID:         "webhook-receiver",
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create consumer")
		}
		defer consumer.Close() //nolint:errcheck
		if err := consumer.Start(ctx, func(messages <-chan *message.Message) { logEvents(logger, messages) }); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start consumer")
		}
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Post("/webhook", func(c *fiber.Ctx) error {
		var record models.ForwardRecord
		if err := json.Unmarshal(c.Body(), &record); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid payload")
		}
		logger.Info().Interface("record", record).Msg("Webhook received")
		return c.SendStatus(fiber.StatusOK)
	})

	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	logger.Info().Str("addr", *addr).Msg("Webhook receiver listening")
	if err := app.Listen(*addr); err != nil {
		logger.Fatal().Err(err).Msg("Receiver failed")
	}
}

func logEvents(logger zerolog.Logger, messages <-chan *message.Message) {
	for msg := range messages {
		var event cloudevent.CloudEvent[models.ForwardRecord]
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			logger.Warn().Err(err).Msg("Skipping undecodable event")
		} else {
			logger.Info().Str("eventId", event.ID).Interface("record", event.Data).Msg("Event received")
		}
		msg.Ack()
	}
}
