package order

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFulfilled Status = "fulfilled"
	StatusCancelled Status = "cancelled"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrInvalidStatus    = errors.New("invalid order status transition")
	ErrOrderAlreadyPaid = errors.New("order is already paid")
	ErrOrderNotPaid     = errors.New("order must be paid before fulfillment")
	ErrOrderFulfilled   = errors.New("cannot cancel fulfilled order")
	ErrOrderCancelled   = errors.New("order is already cancelled")
	ErrSecretAlreadySet = errors.New("order item already has allocated content")
)

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusFulfilled},
	StatusFulfilled: {}, // terminal state
	StatusCancelled: {}, // terminal state
}

type Order struct {
	ID           string      `json:"id"`
	BuyerEmail   string      `json:"buyer_email"`
	BuyerContact string      `json:"buyer_contact"`
	TotalCents   int64       `json:"total_cents"`
	Status       Status      `json:"status"`
	Items        []OrderItem `json:"items"`

	// Gateway is set together with ExternalRef when a charge is created.
	Gateway     string `json:"gateway,omitempty"`
	ExternalRef string `json:"external_ref,omitempty"`

	// FulfillmentError records stock exhaustion for operator follow-up.
	FulfillmentError string `json:"fulfillment_error,omitempty"`
	// Flagged marks anomalies (amount mismatch) requiring manual review.
	Flagged bool `json:"flagged,omitempty"`

	Viewed    bool       `json:"viewed"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

type OrderItem struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	VariantID  string `json:"variant_id,omitempty"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`

	// AllocatedSecret holds the stock lines bound to this item at
	// fulfillment time. Set at most once, never overwritten.
	AllocatedSecret string `json:"allocated_secret,omitempty"`
}

// StockKey returns the allocation key for the item. Variant products
// allocate against the variant, everything else against the product.
func (i OrderItem) StockKey() string {
	if i.VariantID != "" {
		return i.VariantID
	}
	return i.ProductID
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// TransitionError returns an appropriate error for an invalid transition
func (o *Order) TransitionError(target Status) error {
	switch {
	case o.Status == StatusCancelled:
		return ErrOrderCancelled
	case o.Status == StatusFulfilled && target == StatusCancelled:
		return ErrOrderFulfilled
	case (o.Status == StatusPaid || o.Status == StatusFulfilled) && target == StatusPaid:
		return ErrOrderAlreadyPaid
	case o.Status == StatusPending && target == StatusFulfilled:
		return ErrOrderNotPaid
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, o.Status, target)
	}
}

// PublicStatus is the buyer-facing view of the order status. A paid
// order that could not yet be fulfilled presents as "processing", never
// as a silent success with missing content.
func (o *Order) PublicStatus() string {
	if o.Status == StatusPaid {
		return "processing"
	}
	return string(o.Status)
}
