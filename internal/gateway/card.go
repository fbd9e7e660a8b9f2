package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/domain/order"
)

// cardPaidStates enumerates every terminal success state the card
// processor reports. Matching one literal is not enough: providers have
// renamed these across API versions.
var cardPaidStates = map[string]bool{
	"paid":      true,
	"completed": true,
	"confirmed": true,
	"approved":  true,
	"active":    true,
}

// CardGateway adapts the card/subscription processor.
type CardGateway struct {
	apiKey        string
	webhookSecret string
	baseURL       string
	http          *http.Client
}

func NewCardGateway(apiKey, webhookSecret, baseURL string, timeout time.Duration) *CardGateway {
	if baseURL == "" {
		baseURL = "https://api.cardbilling.example"
	}
	return &CardGateway{
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &http.Client{Timeout: timeout},
	}
}

func (g *CardGateway) Kind() Kind              { return KindCard }
func (g *CardGateway) SignatureHeader() string { return "X-Signature" }

func (g *CardGateway) VerifySignature(body []byte, header string) bool {
	return VerifyHMAC(body, header, g.webhookSecret, EncodingHex)
}

type cardWebhook struct {
	Event string `json:"event"`
	Data  struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Amount   int64  `json:"amount"`
		Metadata struct {
			OrderID string `json:"order_id"`
		} `json:"metadata"`
		Reference string `json:"reference"`
	} `json:"data"`
}

func (g *CardGateway) Normalize(body []byte) (*PaymentEvent, error) {
	var wh cardWebhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, fmt.Errorf("card: decode webhook: %w", err)
	}
	if wh.Data.ID == "" {
		return nil, nil
	}

	orderID := wh.Data.Metadata.OrderID
	if orderID == "" {
		// Older charges carry the correlation as "order-<id>".
		orderID = strings.TrimPrefix(wh.Data.Reference, "order-")
		if orderID == wh.Data.Reference {
			orderID = ""
		}
	}
	if orderID == "" {
		return nil, nil
	}

	return &PaymentEvent{
		Gateway:     KindCard,
		ExternalID:  wh.Data.ID,
		OrderID:     orderID,
		Paid:        cardPaidStates[strings.ToLower(wh.Data.Status)],
		AmountCents: wh.Data.Amount,
	}, nil
}

type cardChargeRequest struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
	Email     string `json:"customer_email"`
	Metadata  struct {
		OrderID string `json:"order_id"`
	} `json:"metadata"`
}

type cardChargeResponse struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkout_url"`
}

func (g *CardGateway) CreateCharge(ctx context.Context, o *order.Order) (*Charge, error) {
	reqBody := cardChargeRequest{
		Amount:    o.TotalCents,
		Reference: "order-" + o.ID,
		Email:     o.BuyerEmail,
	}
	reqBody.Metadata.OrderID = o.ID

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/billing", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	// The reference doubles as idempotency key: a retried request for
	// the same order must not create a second charge.
	req.Header.Set("Idempotency-Key", "order-"+o.ID)

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: card gateway returned %d: %s", ErrChargeFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out cardChargeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("card: decode charge response: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: missing charge id", ErrChargeFailed)
	}

	return &Charge{ExternalID: out.ID, PayerInstructions: out.CheckoutURL}, nil
}
