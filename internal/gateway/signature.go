package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// SignatureVerifier checks the x-signature header the gateway attaches to webhooks.
// The header looks like "ts=1704908010,v1=<hex hmac-sha256>".
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

// Enabled is false when no secret is configured; every request is accepted then.
func (v *SignatureVerifier) Enabled() bool {
	return len(v.secret) > 0
}

func (v *SignatureVerifier) Verify(header, requestID, dataID string) error {
	if !v.Enabled() {
		return nil
	}

	ts, sig := parseSignatureHeader(header)
	if ts == "" || sig == "" {
		return ErrMissingSignature
	}

	expected, err := hex.DecodeString(sig)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(expected, v.mac(manifest(dataID, requestID, ts))) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign builds the header value the gateway would send for these inputs.
func (v *SignatureVerifier) Sign(ts, requestID, dataID string) string {
	return "ts=" + ts + ",v1=" + hex.EncodeToString(v.mac(manifest(dataID, requestID, ts)))
}

func (v *SignatureVerifier) mac(msg string) []byte {
	h := hmac.New(sha256.New, v.secret)
	h.Write([]byte(msg))
	return h.Sum(nil)
}

// alphanumeric ids are signed lowercased; absent parts are left out of the manifest
func manifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		b.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	if ts != "" {
		b.WriteString("ts:" + ts + ";")
	}
	return b.String()
}

func parseSignatureHeader(header string) (ts, sig string) {
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			sig = strings.TrimSpace(value)
		}
	}
	return ts, sig
}
