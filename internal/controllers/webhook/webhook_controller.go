package webhook

import (
	"context"
	"sync"

	"github.com/DIMO-Network/server-garage/pkg/richerrors"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/config"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Dispatcher routes a decoded delivery to the business logic.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.ParsedEvent)
}

// DeliveryCache remembers message ids that were already accepted.
type DeliveryCache interface {
	Seen(messageID string) bool
}

// WebhookController receives platform deliveries.
type WebhookController struct {
	dispatcher  Dispatcher
	cache       DeliveryCache
	verifyToken string
	appSecret   string
	ackFirst    bool
	inflight    sync.WaitGroup
}

// NewWebhookController creates a new WebhookController. cache may be nil to disable de-duplication.
func NewWebhookController(settings *config.Settings, dispatcher Dispatcher, cache DeliveryCache) *WebhookController {
	return &WebhookController{
		dispatcher:  dispatcher,
		cache:       cache,
		verifyToken: settings.VerifyToken,
		appSecret:   settings.AppSecret,
		ackFirst:    settings.AckFirst(),
	}
}

// VerifyWebhook godoc
// @Summary      Verify the webhook subscription
// @Description  Answers the platform's subscription handshake by echoing hub.challenge when hub.verify_token matches.
// @Tags         Webhook
// @Produce      plain
// @Param        hub.mode          query  string  true  "Subscription mode, must be subscribe"
// @Param        hub.verify_token  query  string  true  "Verification token"
// @Param        hub.challenge     query  string  true  "Challenge to echo"
// @Success      200  {string}  string  "The challenge"
// @Failure      403  "Verification token mismatch"
// @Router       /webhook [get]
func (w *WebhookController) VerifyWebhook(c *fiber.Ctx) error {
	challenge, err := VerifyChallenge(c.Query("hub.mode"), c.Query("hub.verify_token"), c.Query("hub.challenge"), w.verifyToken)
	if err != nil {
		return richerrors.Error{
			ExternalMsg: "Forbidden",
			Err:         err,
			Code:        fiber.StatusForbidden,
		}
	}
	zerolog.Ctx(c.UserContext()).Info().Msg("Webhook subscription verified")
	return c.Status(fiber.StatusOK).SendString(challenge)
}

// ReceiveWebhook godoc
// @Summary      Receive a webhook delivery
// @Description  Accepts a platform notification. The delivery is always acknowledged with 200 unless its signature is invalid.
// @Tags         Webhook
// @Accept       json
// @Param        X-Hub-Signature-256  header  string  false  "sha256= HMAC of the body, required when an app secret is configured"
// @Success      200  "Delivery acknowledged"
// @Failure      401  "Invalid signature"
// @Router       /webhook [post]
func (w *WebhookController) ReceiveWebhook(c *fiber.Ctx) error {
	logger := zerolog.Ctx(c.UserContext())

	// The signature covers the bytes on the wire, before any Content-Encoding is undone.
	if err := VerifySignature(w.appSecret, c.Request().Body(), c.Get(SignatureHeader)); err != nil {
		return richerrors.Error{
			ExternalMsg: "Invalid signature",
			Err:         err,
			Code:        fiber.StatusUnauthorized,
		}
	}

	// fasthttp reuses the request buffer once the handler returns.
	body := append([]byte(nil), c.Body()...)

	event, err := ParseEvent(body)
	if err != nil {
		logger.Warn().Err(err).Msg("Ignoring malformed webhook delivery")
		return c.SendStatus(fiber.StatusOK)
	}

	if event.Kind == models.EventKindMessage && w.isDuplicate(event.Message.MessageID) {
		logger.Info().Str("messageId", event.Message.MessageID).Msg("Skipping duplicate delivery")
		return c.SendStatus(fiber.StatusOK)
	}

	if !w.ackFirst {
		w.dispatcher.Dispatch(c.UserContext(), event)
		return c.SendStatus(fiber.StatusOK)
	}

	ctx := context.WithoutCancel(c.UserContext())
	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()
		w.dispatcher.Dispatch(ctx, event)
	}()
	return c.SendStatus(fiber.StatusOK)
}

// Wait blocks until every delivery accepted in the background has been processed.
func (w *WebhookController) Wait() {
	w.inflight.Wait()
}

func (w *WebhookController) isDuplicate(messageID string) bool {
	if w.cache == nil || messageID == "" {
		return false
	}
	return w.cache.Seen(messageID)
}
