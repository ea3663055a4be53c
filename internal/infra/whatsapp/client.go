// internal/infra/whatsapp/client.go
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"estirar/internal/domain/messaging"
	"estirar/internal/domain/senior"
)

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v18.0"
	defaultTimeout    = 15 * time.Second
)

// HTTPDoer describes the HTTP client used to reach the Cloud API.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the Cloud API credentials.
type Config struct {
	BaseURL       string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
}

// APIError is a non-2xx answer of the Cloud API.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("whatsapp api returned %d", e.StatusCode)
	}
	return fmt.Sprintf("whatsapp api returned %d (code %d): %s", e.StatusCode, e.Code, e.Message)
}

// Client sends messages through the WhatsApp Cloud API. It implements messaging.Provider.
type Client struct {
	messagesURL string
	accessToken string
	client      HTTPDoer
}

func NewClient(cfg Config, client HTTPDoer) *Client {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		version = DefaultAPIVersion
	}
	return &Client{
		messagesURL: fmt.Sprintf("%s/%s/%s/messages", baseURL, version, cfg.PhoneNumberID),
		accessToken: cfg.AccessToken,
		client:      client,
	}
}

// TemplateLanguageCode maps a senior language to the locale the templates were approved in.
func TemplateLanguageCode(lang senior.Language) string {
	if lang == senior.LanguageSpanish {
		return "es_PA"
	}
	return "en_US"
}

type textBody struct {
	Body string `json:"body"`
}

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type templateBody struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type outboundMessage struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *textBody     `json:"text,omitempty"`
	Template         *templateBody `json:"template,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText sends a free-form text message and returns the provider message id.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	return c.send(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		To:               recipient(to),
		Type:             "text",
		Text:             &textBody{Body: body},
	})
}

// SendTemplate sends a pre-approved template with positional body parameters.
func (c *Client) SendTemplate(ctx context.Context, to string, tmpl messaging.Template) (string, error) {
	tb := &templateBody{
		Name:     tmpl.Name,
		Language: templateLanguage{Code: TemplateLanguageCode(tmpl.Language)},
	}
	if len(tmpl.Parameters) > 0 {
		params := make([]templateParameter, 0, len(tmpl.Parameters))
		for _, p := range tmpl.Parameters {
			params = append(params, templateParameter{Type: "text", Text: p})
		}
		tb.Components = []templateComponent{{Type: "body", Parameters: params}}
	}
	return c.send(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		To:               recipient(to),
		Type:             "template",
		Template:         tb,
	})
}

func (c *Client) send(ctx context.Context, msg outboundMessage) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode whatsapp %s message: %w", msg.Type, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send whatsapp %s message: %w", msg.Type, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read whatsapp response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(body, &er) == nil {
			apiErr.Code = er.Error.Code
			apiErr.Message = er.Error.Message
		}
		return "", apiErr
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("decode whatsapp response: %w", err)
	}
	if len(sr.Messages) == 0 || sr.Messages[0].ID == "" {
		return "", fmt.Errorf("whatsapp response carried no message id")
	}
	return sr.Messages[0].ID, nil
}

// recipient strips the '+' of a stored phone number; the API expects bare digits.
func recipient(phone string) string {
	return strings.TrimPrefix(strings.TrimSpace(phone), "+")
}
