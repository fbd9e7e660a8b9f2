package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/domain/order"
)

// Event types dispatched to outbound channels.
const (
	EventOrderCreated      = "order.created"
	EventOrderPaid         = "order.paid"
	EventOrderFulfilled    = "order.fulfilled"
	EventFulfillmentFailed = "fulfillment.failed"
	EventAmountMismatch    = "payment.amount_mismatch"
)

// Event is the internal notification handed to every channel.
type Event struct {
	Type       string
	Order      *order.Order
	StoreName  string
	Detail     string
	OccurredAt time.Time
}

// Outcome records one channel's delivery attempt. It feeds logging
// only; nothing retries off it within the same request.
type Outcome struct {
	Channel string `json:"channel"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// Channel is one outbound notification target.
type Channel interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Fanout dispatches an event to every configured channel. Channels run
// concurrently and fail independently: a channel error never prevents
// the others from being attempted and never reaches the caller as an
// error.
type Fanout struct {
	channels []Channel
	timeout  time.Duration
}

func NewFanout(timeout time.Duration, channels ...Channel) *Fanout {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Fanout{channels: channels, timeout: timeout}
}

// Dispatch delivers ev to all channels and returns per-channel
// outcomes.
func (f *Fanout) Dispatch(ev Event) []Outcome {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	outcomes := make([]Outcome, len(f.channels))
	var wg sync.WaitGroup
	for i, ch := range f.channels {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
			defer cancel()

			err := ch.Send(ctx, ev)
			outcomes[i] = Outcome{Channel: ch.Name(), OK: err == nil}
			if err != nil {
				outcomes[i].Error = err.Error()
				log.Printf("[Fanout] channel=%s event=%s order=%s delivery failed: %v",
					ch.Name(), ev.Type, orderID(ev), err)
			}
		}(i, ch)
	}
	wg.Wait()
	return outcomes
}

// DispatchAsync runs Dispatch on its own goroutine. The core
// transaction is already durable by the time this is called, so nothing
// waits on the result.
func (f *Fanout) DispatchAsync(ev Event) {
	go f.Dispatch(ev)
}

func orderID(ev Event) string {
	if ev.Order == nil {
		return ""
	}
	return ev.Order.ID
}
