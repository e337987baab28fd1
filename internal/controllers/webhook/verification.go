package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const (
	subscribeMode   = "subscribe"
	signaturePrefix = "sha256="
	// SignatureHeader carries the HMAC of the raw delivery body.
	SignatureHeader = "X-Hub-Signature-256"
)

var (
	// ErrChallengeRejected is returned when a subscription challenge does not match the configured token.
	ErrChallengeRejected = errors.New("webhook verification challenge rejected")
	// ErrInvalidSignature is returned when a delivery signature is missing or wrong.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// VerifyChallenge returns the challenge to echo when mode and token match the subscription handshake.
// An empty expected token never matches.
func VerifyChallenge(mode, token, challenge, expectedToken string) (string, error) {
	if mode != subscribeMode || expectedToken == "" || token != expectedToken {
		return "", ErrChallengeRejected
	}
	return challenge, nil
}

// VerifySignature checks header against the HMAC-SHA256 of body keyed with secret.
// Verification is skipped when secret is empty.
func VerifySignature(secret string, body []byte, header string) error {
	if secret == "" {
		return nil
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return ErrInvalidSignature
	}
	expected := Sign(secret, body)
	if !hmac.Equal([]byte(expected), []byte(header)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
