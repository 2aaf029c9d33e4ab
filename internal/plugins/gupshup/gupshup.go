package gupshup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"chatrelay/internal/config"
	"chatrelay/internal/core/domain"
)

// Client forwards outbound messages to the Gupshup WhatsApp API.
type Client struct {
	url     string
	apiKey  string
	appName string
	http    *http.Client
}

func NewClient(cfg config.GupshupConfig) *Client {
	return &Client{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		appName: cfg.AppName,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// wireMessage is the provider's message envelope: the declared type plus
// the type-specific fields inlined.
func wireMessage(msg *domain.Message) (string, error) {
	body := map[string]any{"type": string(msg.Type)}
	var fields map[string]any
	if err := json.Unmarshal(msg.Payload, &fields); err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	for k, v := range fields {
		body[k] = v
	}
	// Text goes out under the provider's "text" field name.
	if msg.Type == domain.TypeText {
		delete(body, "body")
		var p domain.TextPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return "", fmt.Errorf("encode payload: %w", err)
		}
		body["text"] = p.Body
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Client) Send(ctx context.Context, msg *domain.Message) error {
	encoded, err := wireMessage(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSendFailed, err)
	}
	form := url.Values{}
	form.Set("channel", "whatsapp")
	form.Set("source", msg.FromNumber)
	form.Set("destination", msg.ToNumber)
	form.Set("message", encoded)
	form.Set("src.name", c.appName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSendFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSendFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: status %d: %s", domain.ErrSendFailed, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
