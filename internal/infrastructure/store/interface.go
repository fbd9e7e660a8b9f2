package store

import (
	"context"
	"time"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/domain/order"
)

// OrderStore persists orders and their financial lifecycle.
type OrderStore interface {
	CreateOrder(ctx context.Context, o *order.Order) error
	GetOrder(ctx context.Context, id string) (*order.Order, error)

	// AttachCharge records the gateway's external reference for an
	// order, set once a charge has been created.
	AttachCharge(ctx context.Context, orderID, gateway, externalRef string) error

	// MarkPaid records the (gateway, externalID) event in the ledger
	// and transitions pending -> paid with a compare-and-set on the
	// status column, both in one transaction: either the event is
	// consumed and the order is paid, or neither happened. Returns
	// false when the event was already consumed or the order was no
	// longer pending, so duplicates settle on exactly one winner. A
	// failed transition never leaves a ledger entry behind, keeping
	// the event retryable.
	MarkPaid(ctx context.Context, orderID, gateway, externalID string, paidAt time.Time) (bool, error)

	// MarkFulfilled binds allocated secrets to the order items and
	// transitions paid -> fulfilled in one transaction. An item whose
	// secret is already set is never overwritten.
	MarkFulfilled(ctx context.Context, orderID string, items []order.OrderItem) error

	// MarkCancelled transitions pending -> cancelled. Only reachable
	// through explicit administrative action.
	MarkCancelled(ctx context.Context, orderID string) (bool, error)

	// RecordFulfillmentError keeps a paid order's failed fulfillment
	// visible for manual operator resolution.
	RecordFulfillmentError(ctx context.Context, orderID, message string) error

	// FlagOrder marks an anomaly (amount mismatch) for manual review.
	FlagOrder(ctx context.Context, orderID string) error

	MarkViewed(ctx context.Context, orderID string) error
}

// StockStore reads and rewrites the newline-delimited stock text for a
// product or variant key. Callers serialize access per key; the store
// itself only guarantees that a single Get/Set is consistent.
type StockStore interface {
	GetStock(ctx context.Context, key string) (string, error)
	SetStock(ctx context.Context, key, text string) error
}

// Store is the full persistence surface the engine needs.
type Store interface {
	OrderStore
	StockStore
}
