package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"payment-service/pkg/utils"

	"go.uber.org/zap"
)

const (
	SignatureHeader = "X-Signature"

	maxWebhookBody = 64 << 10
)

type SignatureVerifier interface {
	Verify(header, requestID, dataID string) error
}

// WebhookSignature checks the gateway's x-signature before the handler runs.
// Unverified deliveries are still answered 200 "OK" so the gateway stops retrying them,
// they just never reach next.
func WebhookSignature(verifier SignatureVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
			if err != nil {
				logger.Warn("Failed to read webhook body", zap.Error(err))
				utils.ResponseText(w, http.StatusOK, "OK")
				return
			}
			r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestID := r.Header.Get(RequestIDHeader)
			dataID := webhookDataID(r, body)

			if err := verifier.Verify(r.Header.Get(SignatureHeader), requestID, dataID); err != nil {
				logger.Warn("Webhook signature rejected",
					zap.Error(err),
					zap.String("request_id", requestID),
					zap.String("data_id", dataID),
				)
				utils.ResponseText(w, http.StatusOK, "OK")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// webhookDataID prefers the data.id query parameter the gateway signs, then the body.
func webhookDataID(r *http.Request, body []byte) string {
	query := r.URL.Query()
	if id := query.Get("data.id"); id != "" {
		return id
	}
	if id := query.Get("id"); id != "" {
		return id
	}

	var envelope struct {
		Data struct {
			ID json.RawMessage `json:"id"`
		} `json:"data"`
	}
	if len(body) == 0 || json.Unmarshal(body, &envelope) != nil {
		return ""
	}

	raw := envelope.Data.ID
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}
