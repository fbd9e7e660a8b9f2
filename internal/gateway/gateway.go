package gateway

import (
	"context"
	"errors"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/domain/order"
)

// Kind identifies a payment processor. Gateway-specific payload shapes
// never leak past the adapter that carries this tag.
type Kind string

const (
	KindCard    Kind = "card"
	KindInstant Kind = "instant"
	KindPix     Kind = "pix"
)

var (
	// ErrAuthExpired means the stored OAuth credentials can no longer be
	// refreshed. Callers should prompt re-authorization, not treat this
	// as a payment failure.
	ErrAuthExpired = errors.New("gateway authorization expired")

	ErrChargeFailed = errors.New("gateway charge creation failed")
)

// PaymentEvent is the normalized result of a gateway webhook or poll.
// Produced by an adapter, consumed exactly once by the reconciler.
type PaymentEvent struct {
	Gateway     Kind   `json:"gateway"`
	ExternalID  string `json:"external_id"`
	OrderID     string `json:"order_id"`
	Paid        bool   `json:"paid"`
	AmountCents int64  `json:"amount_cents"`
}

// Charge is the result of creating a charge on a gateway.
type Charge struct {
	ExternalID string `json:"external_id"`
	// PayerInstructions is whatever the buyer needs to complete payment:
	// a checkout URL or a PIX copy-and-paste code.
	PayerInstructions string `json:"payer_instructions"`
}

// Gateway adapts one payment processor to the normalized event model.
type Gateway interface {
	Kind() Kind

	// SignatureHeader names the HTTP header carrying the webhook digest.
	SignatureHeader() string

	// VerifySignature authenticates the raw webhook body. It must run
	// on the exact bytes received, before any JSON parsing.
	VerifySignature(body []byte, header string) bool

	// Normalize translates a gateway payload into a PaymentEvent.
	// (nil, nil) means the event is valid but unusable here (unknown
	// correlation, uninteresting event type); the caller acknowledges
	// it without side effects so the gateway stops retrying.
	Normalize(body []byte) (*PaymentEvent, error)

	// CreateCharge registers a charge for the order. Implementations
	// derive their idempotency reference from the order id so network
	// retries never create duplicate charges.
	CreateCharge(ctx context.Context, o *order.Order) (*Charge, error)
}

// StatusPoller is implemented by gateways whose webhooks are not
// guaranteed and must be polled for settlement.
type StatusPoller interface {
	PollStatus(ctx context.Context, externalID string) (*PaymentEvent, error)
}
