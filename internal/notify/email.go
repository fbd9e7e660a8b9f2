package notify

import (
	"context"
	"log"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/email"
)

// EmailChannel delivers purchased content to the buyer by mail.
type EmailChannel struct {
	svc *email.Service
}

func NewEmailChannel(svc *email.Service) *EmailChannel {
	return &EmailChannel{svc: svc}
}

func (c *EmailChannel) Name() string { return "buyer-email" }

func (c *EmailChannel) Send(ctx context.Context, ev Event) error {
	if ev.Order == nil || ev.Order.BuyerEmail == "" {
		return nil
	}
	if !c.svc.Configured() {
		log.Printf("[Email] not configured, skipping %s for order %s", ev.Type, ev.Order.ID)
		return nil
	}

	switch ev.Type {
	case EventOrderFulfilled:
		var items []email.DeliveredItem
		for _, it := range ev.Order.Items {
			if it.AllocatedSecret == "" {
				continue
			}
			items = append(items, email.DeliveredItem{Name: it.Name, Content: it.AllocatedSecret})
		}
		if len(items) == 0 {
			return nil
		}
		return c.svc.SendOrderDelivery(ev.Order.BuyerEmail, ev.Order.ID, items)
	case EventFulfillmentFailed:
		return c.svc.SendProcessingNotice(ev.Order.BuyerEmail, ev.Order.ID)
	default:
		return nil
	}
}
