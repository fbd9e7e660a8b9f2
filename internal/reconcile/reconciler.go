package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/domain/order"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/gateway"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/inventory"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/notify"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/infrastructure/store"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/syncx"
)

// Result classifies how a payment event was applied.
type Result int

const (
	// ResultIgnored: the event was valid but unusable (no correlation,
	// not a settlement). Acknowledged so the gateway stops retrying.
	ResultIgnored Result = iota
	// ResultDuplicate: the event had already caused a transition. The
	// second application is a no-op that still acknowledges.
	ResultDuplicate
	// ResultFulfilled: the order was paid and its inventory bound.
	ResultFulfilled
	// ResultPaidUnfulfilled: payment applied but stock ran out; the
	// order stays paid for manual operator resolution.
	ResultPaidUnfulfilled
	// ResultAmountMismatch: the paid amount differs from the order
	// total; the order stays pending and is flagged.
	ResultAmountMismatch
)

func (r Result) String() string {
	switch r {
	case ResultDuplicate:
		return "duplicate"
	case ResultFulfilled:
		return "fulfilled"
	case ResultPaidUnfulfilled:
		return "paid_unfulfilled"
	case ResultAmountMismatch:
		return "amount_mismatch"
	default:
		return "ignored"
	}
}

// EventPublisher matches the Kafka producer. Publishing is best-effort:
// failures are logged, never propagated.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Deduper is an optional fast duplicate-suppression cache in front of
// the durable ledger. Entries are only written after a transition has
// committed, so a positive answer is always safe to trust.
type Deduper interface {
	Seen(ctx context.Context, gateway, externalID string) (bool, error)
	Mark(ctx context.Context, gateway, externalID string) error
}

// Envelope is the payment-event record published to Kafka after a
// reconciliation commits.
type Envelope struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	OrderID     string    `json:"order_id"`
	Gateway     string    `json:"gateway"`
	ExternalID  string    `json:"external_id"`
	AmountCents int64     `json:"amount_cents"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Reconciler applies normalized payment events to orders: exactly one
// pending -> paid transition per (gateway, externalID), inventory bound
// atomically, notifications fanned out after the transaction commits.
type Reconciler struct {
	store     store.Store
	allocator *inventory.Allocator
	fanout    *notify.Fanout
	producer  EventPublisher
	dedupe    Deduper
	gateways  map[gateway.Kind]gateway.Gateway
	storeName string

	// orderLocks serializes reconciliation per order. Webhooks for two
	// different orders never block each other, and idle orders retain
	// no lock.
	orderLocks *syncx.KeyMutex
}

type Options struct {
	Producer  EventPublisher
	Dedupe    Deduper
	StoreName string
}

func New(st store.Store, alloc *inventory.Allocator, fanout *notify.Fanout, gateways []gateway.Gateway, opts Options) *Reconciler {
	byKind := make(map[gateway.Kind]gateway.Gateway, len(gateways))
	for _, g := range gateways {
		byKind[g.Kind()] = g
	}
	return &Reconciler{
		store:      st,
		allocator:  alloc,
		fanout:     fanout,
		producer:   opts.Producer,
		dedupe:     opts.Dedupe,
		gateways:   byKind,
		storeName:  opts.StoreName,
		orderLocks: syncx.NewKeyMutex(),
	}
}

// Gateway returns the adapter registered for a kind.
func (r *Reconciler) Gateway(kind gateway.Kind) (gateway.Gateway, bool) {
	g, ok := r.gateways[kind]
	return g, ok
}

// Apply runs the state machine for one normalized payment event.
func (r *Reconciler) Apply(ctx context.Context, ev *gateway.PaymentEvent) (Result, error) {
	if ev == nil || ev.OrderID == "" {
		return ResultIgnored, nil
	}
	if !ev.Paid {
		log.Printf("[Reconciler] gateway=%s external=%s not a settlement, ignored", ev.Gateway, ev.ExternalID)
		return ResultIgnored, nil
	}

	if r.dedupe != nil {
		seen, err := r.dedupe.Seen(ctx, string(ev.Gateway), ev.ExternalID)
		if err != nil {
			log.Printf("[Reconciler] dedupe cache unavailable: %v", err)
		} else if seen {
			log.Printf("[Reconciler] gateway=%s external=%s duplicate (cache)", ev.Gateway, ev.ExternalID)
			return ResultDuplicate, nil
		}
	}

	r.orderLocks.Lock(ev.OrderID)
	defer r.orderLocks.Unlock(ev.OrderID)

	o, err := r.store.GetOrder(ctx, ev.OrderID)
	if errors.Is(err, order.ErrOrderNotFound) {
		log.Printf("[Reconciler] gateway=%s external=%s references unknown order %s, ignored", ev.Gateway, ev.ExternalID, ev.OrderID)
		return ResultIgnored, nil
	}
	if err != nil {
		return ResultIgnored, err
	}

	switch o.Status {
	case order.StatusPaid, order.StatusFulfilled:
		log.Printf("[Reconciler] order=%s already %s, duplicate event gateway=%s external=%s", o.ID, o.Status, ev.Gateway, ev.ExternalID)
		return ResultDuplicate, nil
	case order.StatusCancelled:
		log.Printf("[Reconciler] order=%s is cancelled, payment event gateway=%s external=%s needs operator review", o.ID, ev.Gateway, ev.ExternalID)
		return ResultIgnored, nil
	}

	if ev.AmountCents != o.TotalCents {
		if err := r.store.FlagOrder(ctx, o.ID); err != nil {
			return ResultIgnored, err
		}
		detail := fmt.Sprintf("event amount %d does not match order total %d", ev.AmountCents, o.TotalCents)
		log.Printf("[Reconciler] order=%s amount mismatch: %s", o.ID, detail)
		r.fanout.DispatchAsync(notify.Event{
			Type:      notify.EventAmountMismatch,
			Order:     o,
			StoreName: r.storeName,
			Detail:    detail,
		})
		return ResultAmountMismatch, nil
	}

	// The ledger consume and the pending -> paid flip commit together
	// inside the store. An infrastructure failure here leaves the
	// event unconsumed, so the gateway's retry can still settle it.
	paidAt := time.Now().UTC()
	won, err := r.store.MarkPaid(ctx, o.ID, string(ev.Gateway), ev.ExternalID, paidAt)
	if err != nil {
		return ResultIgnored, err
	}
	if !won {
		log.Printf("[Reconciler] gateway=%s external=%s duplicate (ledger)", ev.Gateway, ev.ExternalID)
		return ResultDuplicate, nil
	}
	o.Status = order.StatusPaid
	o.PaidAt = &paidAt

	if r.dedupe != nil {
		if err := r.dedupe.Mark(ctx, string(ev.Gateway), ev.ExternalID); err != nil {
			log.Printf("[Reconciler] dedupe cache mark failed: %v", err)
		}
	}
	r.publish(ctx, notify.EventOrderPaid, o, ev)
	r.fanout.DispatchAsync(notify.Event{Type: notify.EventOrderPaid, Order: o, StoreName: r.storeName})

	return r.fulfill(ctx, o, ev)
}

// fulfill binds one stock line per item unit to the paid order. A stock
// shortage never cancels a paid order: the money was received, so the
// failure is recorded for operator follow-up instead.
func (r *Reconciler) fulfill(ctx context.Context, o *order.Order, ev *gateway.PaymentEvent) (Result, error) {
	type allocation struct {
		key   string
		lines []string
	}
	var done []allocation

	rollback := func() {
		for _, al := range done {
			if err := r.allocator.Restore(ctx, al.key, al.lines); err != nil {
				log.Printf("[Reconciler] order=%s failed to restore %d lines to %s: %v", o.ID, len(al.lines), al.key, err)
			}
		}
	}

	for i := range o.Items {
		it := &o.Items[i]
		lines, err := r.allocator.Allocate(ctx, it.StockKey(), it.Quantity)
		if errors.Is(err, inventory.ErrInsufficientStock) {
			rollback()
			detail := fmt.Sprintf("stock exhausted for %s", it.StockKey())
			if rerr := r.store.RecordFulfillmentError(ctx, o.ID, detail); rerr != nil {
				log.Printf("[Reconciler] order=%s failed to record fulfillment error: %v", o.ID, rerr)
			}
			log.Printf("[Reconciler] order=%s paid but unfulfilled: %s", o.ID, detail)
			r.publish(ctx, notify.EventFulfillmentFailed, o, ev)
			r.fanout.DispatchAsync(notify.Event{
				Type:      notify.EventFulfillmentFailed,
				Order:     o,
				StoreName: r.storeName,
				Detail:    detail,
			})
			return ResultPaidUnfulfilled, nil
		}
		if err != nil {
			rollback()
			return ResultPaidUnfulfilled, err
		}
		done = append(done, allocation{key: it.StockKey(), lines: lines})
		it.AllocatedSecret = strings.Join(lines, "\n")
	}

	if err := r.store.MarkFulfilled(ctx, o.ID, o.Items); err != nil {
		rollback()
		return ResultPaidUnfulfilled, err
	}
	o.Status = order.StatusFulfilled

	r.publish(ctx, notify.EventOrderFulfilled, o, ev)
	r.fanout.DispatchAsync(notify.Event{Type: notify.EventOrderFulfilled, Order: o, StoreName: r.storeName})
	return ResultFulfilled, nil
}

func (r *Reconciler) publish(ctx context.Context, eventType string, o *order.Order, ev *gateway.PaymentEvent) {
	if r.producer == nil {
		return
	}
	env := Envelope{
		EventID:     uuid.New().String(),
		EventType:   eventType,
		OrderID:     o.ID,
		OccurredAt:  time.Now().UTC(),
		AmountCents: o.TotalCents,
	}
	if ev != nil {
		env.Gateway = string(ev.Gateway)
		env.ExternalID = ev.ExternalID
	}
	if err := r.producer.Publish(ctx, o.ID, env); err != nil {
		log.Printf("[Reconciler] publish %s for order %s failed: %v", eventType, o.ID, err)
	}
}

// CreateOrder registers a new pending order.
func (r *Reconciler) CreateOrder(ctx context.Context, o *order.Order) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	for i := range o.Items {
		if o.Items[i].ID == "" {
			o.Items[i].ID = uuid.New().String()
		}
	}
	now := time.Now().UTC()
	o.Status = order.StatusPending
	o.CreatedAt = now
	o.UpdatedAt = now

	if err := r.store.CreateOrder(ctx, o); err != nil {
		return err
	}
	r.fanout.DispatchAsync(notify.Event{Type: notify.EventOrderCreated, Order: o, StoreName: r.storeName})
	return nil
}

// CreateCharge creates a charge on the chosen gateway and persists its
// external reference. A timeout leaves the order pending with no
// reference committed, so a retry can safely create a new attempt.
func (r *Reconciler) CreateCharge(ctx context.Context, orderID string, kind gateway.Kind) (*gateway.Charge, error) {
	g, ok := r.gateways[kind]
	if !ok {
		return nil, fmt.Errorf("unknown gateway %q", kind)
	}

	o, err := r.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusPending {
		return nil, o.TransitionError(order.StatusPaid)
	}

	charge, err := g.CreateCharge(ctx, o)
	if err != nil {
		return nil, err
	}
	if err := r.store.AttachCharge(ctx, o.ID, string(kind), charge.ExternalID); err != nil {
		return nil, err
	}
	return charge, nil
}

// Poll asks the order's gateway for its charge status and applies the
// result through the same reconciliation path webhooks use.
func (r *Reconciler) Poll(ctx context.Context, orderID string) (Result, error) {
	o, err := r.store.GetOrder(ctx, orderID)
	if err != nil {
		return ResultIgnored, err
	}
	if o.ExternalRef == "" {
		return ResultIgnored, fmt.Errorf("order %s has no charge to poll", orderID)
	}
	g, ok := r.gateways[gateway.Kind(o.Gateway)]
	if !ok {
		return ResultIgnored, fmt.Errorf("unknown gateway %q", o.Gateway)
	}
	poller, ok := g.(gateway.StatusPoller)
	if !ok {
		return ResultIgnored, fmt.Errorf("gateway %q does not support polling", o.Gateway)
	}

	ev, err := poller.PollStatus(ctx, o.ExternalRef)
	if err != nil {
		return ResultIgnored, err
	}
	return r.Apply(ctx, ev)
}

// Cancel moves a pending order to cancelled. Explicit administrative
// action is the only path here; webhooks never cancel.
func (r *Reconciler) Cancel(ctx context.Context, orderID string) error {
	r.orderLocks.Lock(orderID)
	defer r.orderLocks.Unlock(orderID)

	o, err := r.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !o.CanTransitionTo(order.StatusCancelled) {
		return o.TransitionError(order.StatusCancelled)
	}

	won, err := r.store.MarkCancelled(ctx, orderID)
	if err != nil {
		return err
	}
	if !won {
		return o.TransitionError(order.StatusCancelled)
	}
	return nil
}
