package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/danielthames360/baby-spa-sub004/pkg/logging"
)

// WhatsAppClient sends messages through the clinic's WhatsApp gateway.
type WhatsAppClient struct {
	endpoint string
	token    string
	http     *http.Client
	logger   *logging.Logger
}

// NewWhatsAppClient creates a WhatsApp sender. Returns nil when no
// endpoint is configured.
func NewWhatsAppClient(endpoint, token string, logger *logging.Logger) *WhatsAppClient {
	if endpoint == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WhatsAppClient{
		endpoint: endpoint,
		token:    token,
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

type whatsAppMessage struct {
	Phone string `json:"phone"`
	Body  string `json:"body"`
}

// Send posts one message to the gateway.
func (c *WhatsAppClient) Send(ctx context.Context, phone, body string) error {
	payload, err := json.Marshal(whatsAppMessage{Phone: phone, Body: body})
	if err != nil {
		return fmt.Errorf("notify: marshal whatsapp message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: build whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("notify: whatsapp send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.logger.Error("whatsapp gateway returned error status", "status", resp.StatusCode, "phone", phone)
		return fmt.Errorf("notify: whatsapp gateway returned status %d", resp.StatusCode)
	}

	c.logger.Info("whatsapp message sent", "phone", phone)
	return nil
}

var _ WhatsAppSender = (*WhatsAppClient)(nil)
