// Package models holds the values that flow through a single webhook delivery.
// None of them outlive the request that created them.
package models

import (
	"time"

	"github.com/aarondl/null/v8"
)

// MessageType is the kind of an inbound platform message.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeDocument MessageType = "document"
	MessageTypeStatus   MessageType = "status"
	MessageTypeOther    MessageType = "other"
)

// ParseMessageType maps the platform's type string onto a MessageType.
func ParseMessageType(s string) MessageType {
	switch MessageType(s) {
	case MessageTypeText, MessageTypeImage, MessageTypeDocument, MessageTypeStatus:
		return MessageType(s)
	default:
		return MessageTypeOther
	}
}

// EventKind tags which variant of a ParsedEvent is populated.
type EventKind int

const (
	// EventKindNone is a delivery that carries neither a message nor a status.
	EventKindNone EventKind = iota
	// EventKindMessage carries an InboundEvent.
	EventKindMessage
	// EventKindStatus carries a StatusNotice.
	EventKindStatus
)

func (k EventKind) String() string {
	switch k {
	case EventKindMessage:
		return "message"
	case EventKindStatus:
		return "status"
	default:
		return "none"
	}
}

// ParsedEvent is the decoded form of one webhook delivery.
type ParsedEvent struct {
	Kind    EventKind
	Message *InboundEvent
	Status  *StatusNotice
}

// InboundEvent is a message sent by a user to the business number.
type InboundEvent struct {
	MessageID  string
	SenderID   string
	SenderName string
	Type       MessageType
	// RawType is the platform type string, kept for logging when Type is MessageTypeOther.
	RawType       string
	TextBody      null.String
	MediaID       null.String
	MediaMimeType null.String
	Caption       null.String
	Timestamp     time.Time
}

// StatusNotice is a delivery/read status update for a message the business sent.
type StatusNotice struct {
	ID          string
	Status      string
	RecipientID string
}

// MediaMeta describes a media object. URL is short lived and must not be cached.
type MediaMeta struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	FileSize int64  `json:"file_size"`
}

// Image is the payload submitted for text recognition.
type Image struct {
	Data     []byte
	MimeType string
	// URL is the signed media URL, used when the provider fetches the image itself.
	URL string
}

// OCRResult is the outcome of text recognition. An empty Text means nothing was found.
type OCRResult struct {
	Text string
}

// ForwardRecord is the audit entry relayed to the logging sinks.
type ForwardRecord struct {
	SenderID   string `json:"from"`
	SenderName string `json:"name"`
	Text       string `json:"text"`
	MediaURL   string `json:"mediaUrl"`
	MediaID    string `json:"mediaId"`
	Timestamp  int64  `json:"ts"`
}

// HasMedia reports whether the record references a media object.
func (r ForwardRecord) HasMedia() bool {
	return r.MediaID != ""
}
