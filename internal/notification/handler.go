package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/infrastructure/store"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/notify"
	"github.com/DIEGOMDK12/netexv1-sub001/internal/reconcile"
)

// Handler consumes payment-event envelopes from Kafka and drives the
// channels that should not run inside the webhook request, currently
// buyer email delivery over SMTP.
type Handler struct {
	fanout    *notify.Fanout
	orders    store.OrderStore
	storeName string
}

func NewHandler(fanout *notify.Fanout, orders store.OrderStore, storeName string) *Handler {
	return &Handler{fanout: fanout, orders: orders, storeName: storeName}
}

// HandleEvent processes one message from Kafka.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var env reconcile.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		log.Printf("[Notifier] failed to unmarshal envelope: %v", err)
		return err
	}

	switch env.EventType {
	case notify.EventOrderFulfilled, notify.EventFulfillmentFailed:
	default:
		return nil
	}

	o, err := h.orders.GetOrder(ctx, env.OrderID)
	if err != nil {
		log.Printf("[Notifier] order %s not loadable: %v", env.OrderID, err)
		return nil
	}

	log.Printf("[Notifier] processing %s for order %s", env.EventType, o.ID)
	h.fanout.Dispatch(notify.Event{
		Type:       env.EventType,
		Order:      o,
		StoreName:  h.storeName,
		OccurredAt: env.OccurredAt,
	})
	return nil
}
