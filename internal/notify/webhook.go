package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// WebhookChannel delivers signed JSON events to a vendor-registered
// URL.
type WebhookChannel struct {
	url    string
	secret string
	http   *http.Client
}

func NewWebhookChannel(url, secret string, timeout time.Duration) *WebhookChannel {
	return &WebhookChannel{
		url:    url,
		secret: secret,
		http:   &http.Client{Timeout: timeout},
	}
}

func (c *WebhookChannel) Name() string { return "webhook:" + c.url }

type webhookLine struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type webhookPayload struct {
	Event        string        `json:"event"`
	OrderID      string        `json:"order_id"`
	BuyerEmail   string        `json:"buyer_email"`
	BuyerContact string        `json:"buyer_contact"`
	TotalCents   int64         `json:"total_cents"`
	Products     []webhookLine `json:"products"`
	StoreName    string        `json:"store_name"`
	Timestamp    string        `json:"timestamp"`
}

func (c *WebhookChannel) Send(ctx context.Context, ev Event) error {
	if c.url == "" {
		return nil
	}
	if ev.Order == nil {
		return nil
	}

	payload := webhookPayload{
		Event:        ev.Type,
		OrderID:      ev.Order.ID,
		BuyerEmail:   ev.Order.BuyerEmail,
		BuyerContact: ev.Order.BuyerContact,
		TotalCents:   ev.Order.TotalCents,
		StoreName:    ev.StoreName,
		Timestamp:    ev.OccurredAt.Format(time.RFC3339),
	}
	for _, it := range ev.Order.Items {
		payload.Products = append(payload.Products, webhookLine{
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.PriceCents,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(ev.OccurredAt.Unix(), 10))
	if c.secret != "" {
		// Signature covers the exact bytes on the wire.
		req.Header.Set("X-Webhook-Signature", signBody(body, c.secret))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook target returned %d", resp.StatusCode)
	}
	return nil
}

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
