package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DIMO-Network/wa-ocr-webhook/internal/clients/ocrspace"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/config"
	"github.com/DIMO-Network/wa-ocr-webhook/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Replies sent to the sender.
const (
	ReplyGreetingFormat     = "Olá, %s! 👋 Recebi sua mensagem: “%s”."
	ReplyMetadataFailed     = "Não consegui baixar a imagem. Pode reenviar como *Foto/Imagem*?"
	ReplyNotAnImage         = "Esse arquivo não parece ser uma imagem. Envie como *Foto/Imagem*."
	ReplyDownloadFailed     = "Não consegui baixar a imagem. Tente enviar novamente."
	ReplyNoTextFound        = "Não consegui identificar texto. Pode enviar um print mais nítido?"
	ReplyRecognizedFormat   = "🧾 *Texto reconhecido:*\n\n%s"
	ReplyUnsupportedMessage = "Tipo de mensagem não suportado. Envie uma *Foto/Imagem*."
)

const (
	// PreviewLimit is the number of characters of recognized text echoed to the sender.
	PreviewLimit  = 3000
	previewSuffix = "…"
)

// ErrUnsupportedMedia is returned when a media object is not an image.
var ErrUnsupportedMedia = errors.New("media is not an image")

type MediaResolver interface {
	ResolveMeta(ctx context.Context, mediaID string) (models.MediaMeta, error)
	Download(ctx context.Context, meta models.MediaMeta) ([]byte, error)
}

type OCRClient interface {
	Recognize(ctx context.Context, img models.Image) (string, error)
}

type Messenger interface {
	SendText(ctx context.Context, to, body string) error
	MarkRead(ctx context.Context, messageID string) error
}

type Forwarder interface {
	Forward(ctx context.Context, record models.ForwardRecord)
}

// Dispatcher runs the reply and forward pipeline for one decoded delivery.
type Dispatcher struct {
	resolver   MediaResolver
	ocr        OCRClient
	messenger  Messenger
	forwarder  Forwarder
	submitURL  bool
	markAsRead bool
	now        func() time.Time
}

// New creates a new Dispatcher.
func New(settings *config.Settings, resolver MediaResolver, ocr OCRClient, messenger Messenger, forwarder Forwarder) *Dispatcher {
	return &Dispatcher{
		resolver:   resolver,
		ocr:        ocr,
		messenger:  messenger,
		forwarder:  forwarder,
		submitURL:  settings.SubmitMode == config.SubmitModeURL,
		markAsRead: settings.MarkAsRead,
		now:        time.Now,
	}
}

// Dispatch handles a decoded delivery. It never returns an error: every failure is logged
// and, where the sender can act on it, answered with a guidance message.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.ParsedEvent) {
	logger := zerolog.Ctx(ctx).With().Str("deliveryId", uuid.NewString()).Logger()
	ctx = logger.WithContext(ctx)

	switch event.Kind {
	case models.EventKindStatus:
		inboundEvents.WithLabelValues(event.Kind.String(), "").Inc()
		logger.Info().Str("status", event.Status.Status).Str("messageId", event.Status.ID).Msg("Delivery status received")
		return
	case models.EventKindMessage:
	default:
		inboundEvents.WithLabelValues(event.Kind.String(), "").Inc()
		return
	}

	msg := event.Message
	inboundEvents.WithLabelValues(event.Kind.String(), string(msg.Type)).Inc()
	logger = logger.With().Str("from", msg.SenderID).Str("messageId", msg.MessageID).Logger()
	ctx = logger.WithContext(ctx)
	logger.Info().Str("type", msg.RawType).Msg("Message received")

	if d.markAsRead && msg.MessageID != "" {
		if err := d.messenger.MarkRead(ctx, msg.MessageID); err != nil {
			logger.Debug().Err(err).Msg("Failed to mark message as read")
		}
	}

	switch msg.Type {
	case models.MessageTypeText:
		d.handleText(ctx, msg)
	case models.MessageTypeImage:
		d.handleImage(ctx, msg)
	case models.MessageTypeDocument:
		if msg.MediaMimeType.Valid && !isImageMime(msg.MediaMimeType.String) {
			d.reply(ctx, msg.SenderID, ReplyNotAnImage)
			return
		}
		d.handleImage(ctx, msg)
	default:
		d.reply(ctx, msg.SenderID, ReplyUnsupportedMessage)
	}
}

func (d *Dispatcher) handleText(ctx context.Context, msg *models.InboundEvent) {
	body := msg.TextBody.String
	d.reply(ctx, msg.SenderID, fmt.Sprintf(ReplyGreetingFormat, msg.SenderName, body))
	d.forward(ctx, models.ForwardRecord{
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Text:       body,
	})
}

func (d *Dispatcher) handleImage(ctx context.Context, msg *models.InboundEvent) {
	logger := zerolog.Ctx(ctx)
	mediaID := msg.MediaID.String

	if mediaID == "" {
		logger.Warn().Msg("Media message without media id")
		d.reply(ctx, msg.SenderID, ReplyMetadataFailed)
		return
	}

	meta, err := d.resolver.ResolveMeta(ctx, mediaID)
	if err != nil {
		logger.Error().Err(err).Str("mediaId", mediaID).Msg("Failed to resolve media metadata")
		d.reply(ctx, msg.SenderID, ReplyMetadataFailed)
		return
	}
	if !isImageMime(meta.MimeType) {
		logger.Info().Err(ErrUnsupportedMedia).Str("mimeType", meta.MimeType).Msg("Rejecting media")
		d.reply(ctx, msg.SenderID, ReplyNotAnImage)
		return
	}

	img := models.Image{MimeType: meta.MimeType, URL: meta.URL}
	if !d.submitURL {
		img.Data, err = d.resolver.Download(ctx, meta)
		if err != nil {
			logger.Error().Err(err).Str("mediaId", mediaID).Msg("Failed to download media")
			d.reply(ctx, msg.SenderID, ReplyDownloadFailed)
			return
		}
	}

	result := d.recognize(ctx, img)
	if result.Text == "" {
		d.reply(ctx, msg.SenderID, ReplyNoTextFound)
	} else {
		d.reply(ctx, msg.SenderID, fmt.Sprintf(ReplyRecognizedFormat, Preview(result.Text)))
	}
	d.forward(ctx, models.ForwardRecord{
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Text:       result.Text,
		MediaURL:   meta.URL,
		MediaID:    mediaID,
	})
}

// recognize collapses every OCR failure into an empty result. The failure kind is still logged and counted.
func (d *Dispatcher) recognize(ctx context.Context, img models.Image) models.OCRResult {
	text, err := d.ocr.Recognize(ctx, img)
	if err != nil {
		var providerErr *ocrspace.ProviderError
		outcome := ocrOutcomeTransportError
		if errors.As(err, &providerErr) {
			outcome = ocrOutcomeProviderError
		}
		ocrOutcomes.WithLabelValues(outcome).Inc()
		zerolog.Ctx(ctx).Warn().Err(err).Str("outcome", outcome).Msg("Text recognition failed")
		return models.OCRResult{}
	}
	if text == "" {
		ocrOutcomes.WithLabelValues(ocrOutcomeEmpty).Inc()
		return models.OCRResult{}
	}
	ocrOutcomes.WithLabelValues(ocrOutcomeText).Inc()
	return models.OCRResult{Text: text}
}

func (d *Dispatcher) reply(ctx context.Context, to, body string) {
	if err := d.messenger.SendText(ctx, to, body); err != nil {
		sendFailures.Inc()
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to send reply")
	}
}

func (d *Dispatcher) forward(ctx context.Context, record models.ForwardRecord) {
	record.Timestamp = d.now().UnixMilli()
	d.forwarder.Forward(ctx, record)
}

// Preview shortens text to PreviewLimit characters, marking the cut with an ellipsis.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewLimit {
		return text
	}
	return string(runes[:PreviewLimit]) + previewSuffix
}

func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
