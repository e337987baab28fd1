package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/DIMO-Network/wa-ocr-webhook/internal/models"
	"github.com/aarondl/null/v8"
)

// DefaultSenderName is used when the delivery carries no contact profile.
const DefaultSenderName = "Contato"

// MalformedEventError is returned when a delivery body cannot be decoded.
type MalformedEventError struct {
	Err error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed webhook event: %v", e.Err)
}

func (e *MalformedEventError) Unwrap() error {
	return e.Err
}

// Envelope is the notification body posted by the platform.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one business account entry of an Envelope.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is a single field change within an Entry.
type Change struct {
	Field string       `json:"field"`
	Value *ChangeValue `json:"value"`
}

// ChangeValue holds the messages, statuses and contacts of a change.
type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
	Statuses         []Status  `json:"statuses"`
}

// Contact identifies the sender of a message.
type Contact struct {
	WaID    string          `json:"wa_id"`
	Profile *ContactProfile `json:"profile"`
}

// ContactProfile is the public profile of a Contact.
type ContactProfile struct {
	Name string `json:"name"`
}

// Message is an inbound user message.
type Message struct {
	From      string     `json:"from"`
	ID        string     `json:"id"`
	Timestamp string     `json:"timestamp"`
	Type      string     `json:"type"`
	Text      *TextBody  `json:"text"`
	Image     *MediaBody `json:"image"`
	Document  *MediaBody `json:"document"`
}

// TextBody is the payload of a text message.
type TextBody struct {
	Body string `json:"body"`
}

// MediaBody is the payload of an image or document message.
type MediaBody struct {
	ID       string  `json:"id"`
	MimeType *string `json:"mime_type"`
	SHA256   string  `json:"sha256"`
	Caption  *string `json:"caption"`
	Filename string  `json:"filename"`
}

// Status is a delivery status notification for an outbound message.
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// ParseEvent decodes a delivery body. Only the first entry, change, message, status and
// contact are considered, and any of them may be absent.
func ParseEvent(raw []byte) (models.ParsedEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.ParsedEvent{}, &MalformedEventError{Err: err}
	}
	if len(env.Entry) == 0 || len(env.Entry[0].Changes) == 0 || env.Entry[0].Changes[0].Value == nil {
		return models.ParsedEvent{Kind: models.EventKindNone}, nil
	}
	value := env.Entry[0].Changes[0].Value

	if len(value.Statuses) > 0 {
		status := value.Statuses[0]
		return models.ParsedEvent{
			Kind: models.EventKindStatus,
			Status: &models.StatusNotice{
				ID:          status.ID,
				Status:      status.Status,
				RecipientID: status.RecipientID,
			},
		}, nil
	}
	if len(value.Messages) == 0 {
		return models.ParsedEvent{Kind: models.EventKindNone}, nil
	}

	msg := value.Messages[0]
	event := &models.InboundEvent{
		MessageID:  msg.ID,
		SenderID:   msg.From,
		SenderName: senderName(value.Contacts),
		Type:       models.ParseMessageType(msg.Type),
		RawType:    msg.Type,
		Timestamp:  parseUnixSeconds(msg.Timestamp),
	}
	switch event.Type {
	case models.MessageTypeText:
		if msg.Text != nil {
			event.TextBody = null.StringFrom(msg.Text.Body)
		}
	case models.MessageTypeImage:
		applyMedia(event, msg.Image)
	case models.MessageTypeDocument:
		applyMedia(event, msg.Document)
	}
	return models.ParsedEvent{Kind: models.EventKindMessage, Message: event}, nil
}

func senderName(contacts []Contact) string {
	if len(contacts) == 0 || contacts[0].Profile == nil || contacts[0].Profile.Name == "" {
		return DefaultSenderName
	}
	return contacts[0].Profile.Name
}

func applyMedia(event *models.InboundEvent, media *MediaBody) {
	if media == nil {
		return
	}
	if media.ID != "" {
		event.MediaID = null.StringFrom(media.ID)
	}
	event.MediaMimeType = null.StringFromPtr(media.MimeType)
	event.Caption = null.StringFromPtr(media.Caption)
}

func parseUnixSeconds(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
