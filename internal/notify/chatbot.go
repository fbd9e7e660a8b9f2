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

// Embed colors by outcome.
const (
	colorNewOrder  = 0x3498db // blue: new customer
	colorPaid      = 0x2ecc71 // green: paid purchase
	colorAttention = 0xe74c3c // red: needs operator attention
	colorStatus    = 0x95a5a6 // grey: other status change
)

// ChatBotChannel posts structured alerts to a pre-shared chat channel
// URL. The configured-or-not state is decided at construction: without
// a URL the channel degrades to a log-only no-op instead of erroring.
type ChatBotChannel struct {
	url        string
	configured bool
	http       *http.Client
}

func NewChatBotChannel(url string, timeout time.Duration) *ChatBotChannel {
	return &ChatBotChannel{
		url:        url,
		configured: url != "",
		http:       &http.Client{Timeout: timeout},
	}
}

func (c *ChatBotChannel) Name() string { return "chatbot" }

type chatField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type chatEmbed struct {
	Title  string      `json:"title"`
	Color  int         `json:"color"`
	Fields []chatField `json:"fields"`
}

type chatMessage struct {
	Embeds []chatEmbed `json:"embeds"`
}

func (c *ChatBotChannel) Send(ctx context.Context, ev Event) error {
	if !c.configured {
		log.Printf("[ChatBot] not configured, skipping %s for order %s", ev.Type, orderID(ev))
		return nil
	}
	if ev.Order == nil {
		return nil
	}

	embed := chatEmbed{
		Title: titleFor(ev.Type),
		Color: colorFor(ev.Type),
		Fields: []chatField{
			{Name: "Order", Value: ev.Order.ID, Inline: true},
			{Name: "Amount", Value: formatCents(ev.Order.TotalCents), Inline: true},
			{Name: "Buyer", Value: ev.Order.BuyerEmail, Inline: true},
		},
	}
	for _, it := range ev.Order.Items {
		embed.Fields = append(embed.Fields, chatField{Name: "Product", Value: it.Name, Inline: false})
	}
	if ev.Detail != "" {
		embed.Fields = append(embed.Fields, chatField{Name: "Detail", Value: ev.Detail, Inline: false})
	}

	body, err := json.Marshal(chatMessage{Embeds: []chatEmbed{embed}})
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
		return fmt.Errorf("chat channel returned %d", resp.StatusCode)
	}
	return nil
}

func titleFor(eventType string) string {
	switch eventType {
	case EventOrderCreated:
		return "New order"
	case EventOrderPaid:
		return "Payment confirmed"
	case EventOrderFulfilled:
		return "Order fulfilled"
	case EventFulfillmentFailed:
		return "Fulfillment failed"
	case EventAmountMismatch:
		return "Amount mismatch"
	default:
		return "Order update"
	}
}

func colorFor(eventType string) int {
	switch eventType {
	case EventOrderCreated:
		return colorNewOrder
	case EventOrderPaid, EventOrderFulfilled:
		return colorPaid
	case EventFulfillmentFailed, EventAmountMismatch:
		return colorAttention
	default:
		return colorStatus
	}
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
