package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const NotificationTypePayment = "payment"

// FlexibleID accepts the gateway's ids either as JSON strings or numbers.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = FlexibleID(n.String())
	return nil
}

func (f FlexibleID) String() string { return string(f) }

type WebhookData struct {
	ID FlexibleID `json:"id"`
}

// WebhookNotification is the envelope the gateway posts on payment changes.
type WebhookNotification struct {
	ID       FlexibleID  `json:"id"`
	Type     string      `json:"type"`
	Topic    string      `json:"topic,omitempty"`
	Action   string      `json:"action"`
	LiveMode bool        `json:"live_mode"`
	Data     WebhookData `json:"data"`
}

// EventType prefers type over the legacy topic field.
func (n *WebhookNotification) EventType() string {
	if n.Type != "" {
		return n.Type
	}
	return n.Topic
}

func (n *WebhookNotification) IsPayment() bool {
	return n.EventType() == NotificationTypePayment && n.Data.ID != ""
}

// NotificationFromQuery reads the query-string form: ?type=payment&data.id=1 or ?topic=payment&id=1.
func NotificationFromQuery(q url.Values) (*WebhookNotification, bool) {
	n := &WebhookNotification{
		Type:  strings.TrimSpace(q.Get("type")),
		Topic: strings.TrimSpace(q.Get("topic")),
	}

	id := q.Get("data.id")
	if id == "" && n.Type == "" {
		id = q.Get("id")
	}
	n.Data.ID = FlexibleID(strings.TrimSpace(id))

	if n.EventType() == "" {
		return nil, false
	}
	return n, true
}
