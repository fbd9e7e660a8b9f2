package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// AlertChannel notifies operators about anomalies that need manual
// resolution: amount mismatches, exhausted stock on paid orders.
type AlertChannel struct {
	url        string
	configured bool
	http       *http.Client
}

func NewAlertChannel(url string, timeout time.Duration) *AlertChannel {
	return &AlertChannel{
		url:        url,
		configured: url != "",
		http:       &http.Client{Timeout: timeout},
	}
}

func (c *AlertChannel) Name() string { return "operator-alert" }

type alertPayload struct {
	Level   string `json:"level"`
	Event   string `json:"event"`
	OrderID string `json:"order_id"`
	Message string `json:"message"`
	At      string `json:"at"`
}

func (c *AlertChannel) Send(ctx context.Context, ev Event) error {
	// Operators only care about anomalies.
	if ev.Type != EventFulfillmentFailed && ev.Type != EventAmountMismatch {
		return nil
	}
	if !c.configured {
		log.Printf("[Alert] not configured, anomaly for order %s: %s (%s)", orderID(ev), ev.Type, ev.Detail)
		return nil
	}

	body, err := json.Marshal(alertPayload{
		Level:   "warning",
		Event:   ev.Type,
		OrderID: orderID(ev),
		Message: ev.Detail,
		At:      ev.OccurredAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert channel returned %d", resp.StatusCode)
	}
	return nil
}
