package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"estirar/internal/domain/messaging"
)

// SignatureHeader carries the HMAC of the webhook body keyed by the app secret.
const SignatureHeader = "X-Hub-Signature-256"

// VerifyWebhook answers the subscription handshake.
func VerifyWebhook(mode, token, verifyToken string) bool {
	return mode == "subscribe" && verifyToken != "" && hmac.Equal([]byte(token), []byte(verifyToken))
}

// ValidateSignature checks a "sha256=<hex>" header against body. An empty secret disables the check.
func ValidateSignature(appSecret string, body []byte, header string) bool {
	if appSecret == "" {
		return true
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the header value ValidateSignature accepts for body.
func Sign(appSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string       `json:"field"`
			Value webhookValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookValue struct {
	Contacts []struct {
		WaID    string `json:"wa_id"`
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	} `json:"contacts"`
	Messages []struct {
		From      string `json:"from"`
		ID        string `json:"id"`
		Timestamp string `json:"timestamp"`
		Type      string `json:"type"`
		Text      struct {
			Body string `json:"body"`
		} `json:"text"`
	} `json:"messages"`
	Statuses []struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		Timestamp   string `json:"timestamp"`
		RecipientID string `json:"recipient_id"`
	} `json:"statuses"`
}

// Events is everything a webhook delivery carried that the service cares about.
type Events struct {
	Messages []messaging.InboundMessage
	Statuses []messaging.StatusUpdate
}

// ParseWebhook extracts user text messages and delivery statuses from a webhook body.
// Non-text messages (images, reactions, buttons) are ignored.
func ParseWebhook(body []byte) (*Events, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	events := &Events{}
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			v := change.Value
			names := make(map[string]string, len(v.Contacts))
			for _, c := range v.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range v.Messages {
				if m.Type != "text" {
					continue
				}
				name := names[m.From]
				if name == "" {
					name = "Unknown"
				}
				events.Messages = append(events.Messages, messaging.InboundMessage{
					MessageID:   m.ID,
					From:        m.From,
					Text:        m.Text.Body,
					Timestamp:   parseUnix(m.Timestamp),
					ContactName: name,
				})
			}
			for _, s := range v.Statuses {
				events.Statuses = append(events.Statuses, messaging.StatusUpdate{
					MessageID: s.ID,
					Status:    s.Status,
					Timestamp: parseUnix(s.Timestamp),
				})
			}
		}
	}
	return events, nil
}

// parseUnix reads the seconds-since-epoch strings of the webhook; zero when absent.
func parseUnix(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
