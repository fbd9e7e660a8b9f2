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

var pixPaidStates = map[string]bool{
	"paid":      true,
	"completed": true,
	"confirmed": true,
}

// PixGateway adapts the PIX-QR processor. Settlement arrives via
// webhook but is not guaranteed, so it also supports polling.
type PixGateway struct {
	apiKey        string
	webhookSecret string
	baseURL       string
	http          *http.Client
}

func NewPixGateway(apiKey, webhookSecret, baseURL string, timeout time.Duration) *PixGateway {
	if baseURL == "" {
		baseURL = "https://api.pixqr.example"
	}
	return &PixGateway{
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &http.Client{Timeout: timeout},
	}
}

func (g *PixGateway) Kind() Kind              { return KindPix }
func (g *PixGateway) SignatureHeader() string { return "X-Pix-Signature" }

func (g *PixGateway) VerifySignature(body []byte, header string) bool {
	return VerifyHMAC(body, header, g.webhookSecret, EncodingHex)
}

type pixCharge struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	ValueCents int64  `json:"value"`
	Reference  string `json:"reference"`
	QRCode     string `json:"qr_code"`
	QRCodeText string `json:"qr_code_text"`
}

func (g *PixGateway) Normalize(body []byte) (*PaymentEvent, error) {
	var p pixCharge
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("pix: decode webhook: %w", err)
	}
	return normalizePixCharge(p)
}

func normalizePixCharge(p pixCharge) (*PaymentEvent, error) {
	if p.ID == "" || p.Reference == "" {
		return nil, nil
	}
	orderID := strings.TrimPrefix(p.Reference, "order-")
	if orderID == "" || orderID == p.Reference {
		return nil, nil
	}
	return &PaymentEvent{
		Gateway:     KindPix,
		ExternalID:  p.ID,
		OrderID:     orderID,
		Paid:        pixPaidStates[strings.ToLower(p.Status)],
		AmountCents: p.ValueCents,
	}, nil
}

func (g *PixGateway) CreateCharge(ctx context.Context, o *order.Order) (*Charge, error) {
	reqBody := map[string]any{
		"value":     o.TotalCents,
		"reference": "order-" + o.ID,
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/pix/charges", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Idempotency-Key", "order-"+o.ID)

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: pix gateway returned %d: %s", ErrChargeFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out pixCharge
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("pix: decode charge response: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: missing charge id", ErrChargeFailed)
	}

	instructions := out.QRCodeText
	if instructions == "" {
		instructions = out.QRCode
	}
	return &Charge{ExternalID: out.ID, PayerInstructions: instructions}, nil
}

func (g *PixGateway) PollStatus(ctx context.Context, externalID string) (*PaymentEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/pix/charges/"+externalID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pix: poll returned %d", resp.StatusCode)
	}

	var p pixCharge
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("pix: decode poll response: %w", err)
	}
	return normalizePixCharge(p)
}
