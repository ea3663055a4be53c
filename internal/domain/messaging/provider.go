package messaging

import (
	"context"
	"time"

	"estirar/internal/domain/senior"
)

// Template is a pre-approved provider template with positional body parameters.
type Template struct {
	Name       string
	Language   senior.Language
	Parameters []string
}

// Provider defines the outbound side of the messaging channel.
// This keeps the application logic decoupled from the provider's HTTP API.
type Provider interface {
	SendText(ctx context.Context, to string, body string) (messageID string, err error)
	SendTemplate(ctx context.Context, to string, tmpl Template) (messageID string, err error)
}

// InboundMessage is a user text message delivered by the provider webhook.
type InboundMessage struct {
	MessageID   string
	From        string
	Text        string
	Timestamp   time.Time
	ContactName string
}

// StatusUpdate is a delivery receipt for a message we sent.
type StatusUpdate struct {
	MessageID string
	Status    string // provider wording: sent, delivered, read, failed
	Timestamp time.Time
}
