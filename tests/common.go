package tests

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/DIMO-Network/wa-ocr-webhook/internal/controllers/webhook"
	"github.com/stretchr/testify/require"
)

// TextDelivery builds a notification body carrying one text message.
func TextDelivery(t *testing.T, messageID, from, name, body string) []byte {
	t.Helper()
	return delivery(t, name, webhook.Message{
		From:      from,
		ID:        messageID,
		Timestamp: strconv.FormatInt(time.Now().Unix(), 10),
		Type:      "text",
		Text:      &webhook.TextBody{Body: body},
	})
}

// ImageDelivery builds a notification body carrying one image message.
func ImageDelivery(t *testing.T, messageID, from, name, mediaID, mimeType string) []byte {
	t.Helper()
	return delivery(t, name, webhook.Message{
		From:      from,
		ID:        messageID,
		Timestamp: strconv.FormatInt(time.Now().Unix(), 10),
		Type:      "image",
		Image:     &webhook.MediaBody{ID: mediaID, MimeType: &mimeType},
	})
}

func delivery(t *testing.T, name string, msg webhook.Message) []byte {
	t.Helper()
	value := &webhook.ChangeValue{
		MessagingProduct: "whatsapp",
		Messages:         []webhook.Message{msg},
	}
	if name != "" {
		value.Contacts = []webhook.Contact{{WaID: msg.From, Profile: &webhook.ContactProfile{Name: name}}}
	}
	body, err := json.Marshal(webhook.Envelope{
		Object: "whatsapp_business_account",
		Entry: []webhook.Entry{{
			ID:      "WABA_ID",
			Changes: []webhook.Change{{Field: "messages", Value: value}},
		}},
	})
	require.NoError(t, err)
	return body
}
