package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/domain/order"
)

// instantPaidStates covers the delegated processor's settlement
// vocabulary, which differs between its payment and transfer APIs.
var instantPaidStates = map[string]bool{
	"approved":   true,
	"accredited": true,
	"paid":       true,
	"settled":    true,
}

// InstantGateway adapts the OAuth-delegated instant-payment processor.
// Vendor credentials are delegated: every API call runs under an access
// token minted from the vendor's stored refresh token.
type InstantGateway struct {
	tokens        *TokenSource
	webhookSecret string
	baseURL       string
	notifyURL     string
	http          *http.Client
}

func NewInstantGateway(tokens *TokenSource, webhookSecret, baseURL, notifyURL string, timeout time.Duration) *InstantGateway {
	if baseURL == "" {
		baseURL = "https://api.instantpay.example"
	}
	return &InstantGateway{
		tokens:        tokens,
		webhookSecret: webhookSecret,
		baseURL:       strings.TrimRight(baseURL, "/"),
		notifyURL:     notifyURL,
		http:          &http.Client{Timeout: timeout},
	}
}

func (g *InstantGateway) Kind() Kind              { return KindInstant }
func (g *InstantGateway) SignatureHeader() string { return "X-Hub-Signature" }

func (g *InstantGateway) VerifySignature(body []byte, header string) bool {
	return VerifyHMAC(body, header, g.webhookSecret, EncodingBase64)
}

type instantPayment struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	TransactionAmount float64 `json:"transaction_amount"`
	ExternalReference string  `json:"external_reference"`
}

type instantWebhook struct {
	Type string         `json:"type"`
	Data instantPayment `json:"data"`
}

func (g *InstantGateway) Normalize(body []byte) (*PaymentEvent, error) {
	var wh instantWebhook
	if err := json.Unmarshal(body, &wh); err != nil {
		return nil, fmt.Errorf("instant: decode webhook: %w", err)
	}
	if wh.Type != "" && wh.Type != "payment" {
		return nil, nil
	}
	return normalizeInstantPayment(wh.Data)
}

func normalizeInstantPayment(p instantPayment) (*PaymentEvent, error) {
	if p.ID == 0 {
		return nil, nil
	}
	orderID := strings.TrimPrefix(p.ExternalReference, "order-")
	if orderID == "" || orderID == p.ExternalReference {
		return nil, nil
	}
	return &PaymentEvent{
		Gateway:     KindInstant,
		ExternalID:  fmt.Sprintf("%d", p.ID),
		OrderID:     orderID,
		Paid:        instantPaidStates[strings.ToLower(p.Status)],
		AmountCents: int64(math.Round(p.TransactionAmount * 100)),
	}, nil
}

type instantChargeRequest struct {
	TransactionAmount float64 `json:"transaction_amount"`
	Description       string  `json:"description"`
	PaymentMethodID   string  `json:"payment_method_id"`
	ExternalReference string  `json:"external_reference"`
	NotificationURL   string  `json:"notification_url,omitempty"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
}

type instantChargeResponse struct {
	ID                 int64  `json:"id"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode string `json:"qr_code"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

func (g *InstantGateway) CreateCharge(ctx context.Context, o *order.Order) (*Charge, error) {
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	reqBody := instantChargeRequest{
		TransactionAmount: float64(o.TotalCents) / 100,
		Description:       "order " + o.ID,
		PaymentMethodID:   "pix",
		ExternalReference: "order-" + o.ID,
		NotificationURL:   g.notifyURL,
	}
	reqBody.Payer.Email = o.BuyerEmail

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/payments", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Idempotency-Key", "order-"+o.ID)

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: charge rejected with %d", ErrAuthExpired, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: instant gateway returned %d: %s", ErrChargeFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out instantChargeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("instant: decode charge response: %w", err)
	}
	if out.ID == 0 {
		return nil, fmt.Errorf("%w: missing payment id", ErrChargeFailed)
	}

	return &Charge{
		ExternalID:        fmt.Sprintf("%d", out.ID),
		PayerInstructions: out.PointOfInteraction.TransactionData.QRCode,
	}, nil
}

// PollStatus fetches the current payment state. A timeout here is not a
// failure: it only means "not yet confirmed", and callers retry later.
func (g *InstantGateway) PollStatus(ctx context.Context, externalID string) (*PaymentEvent, error) {
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/payments/"+externalID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: poll rejected with %d", ErrAuthExpired, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("instant: poll returned %d", resp.StatusCode)
	}

	var p instantPayment
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("instant: decode poll response: %w", err)
	}
	return normalizeInstantPayment(p)
}
