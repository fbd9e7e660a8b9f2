package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/domain/order"
)

// MemoryStore is an in-memory Store used by tests and local runs.
type MemoryStore struct {
	mu        sync.RWMutex
	orders    map[string]*order.Order
	processed map[string]bool
	stock     map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:    make(map[string]*order.Order),
		processed: make(map[string]bool),
		stock:     make(map[string]string),
	}
}

func (m *MemoryStore) CreateOrder(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	cp := *o
	cp.Items = append([]order.OrderItem(nil), o.Items...)
	m.orders[o.ID] = &cp
	return nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := *o
	cp.Items = append([]order.OrderItem(nil), o.Items...)
	return &cp, nil
}

func (m *MemoryStore) AttachCharge(ctx context.Context, orderID, gateway, externalRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return order.ErrOrderNotFound
	}
	if o.ExternalRef != "" {
		return fmt.Errorf("order %s: external reference already attached", orderID)
	}
	o.Gateway = gateway
	o.ExternalRef = externalRef
	o.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) MarkPaid(ctx context.Context, orderID, gateway, externalID string, paidAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return false, order.ErrOrderNotFound
	}
	key := gateway + ":" + externalID
	if m.processed[key] {
		return false, nil
	}
	if o.Status != order.StatusPending {
		return false, nil
	}
	m.processed[key] = true
	o.Status = order.StatusPaid
	o.PaidAt = &paidAt
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) MarkFulfilled(ctx context.Context, orderID string, items []order.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return order.ErrOrderNotFound
	}
	if o.Status != order.StatusPaid {
		return fmt.Errorf("order %s: %w", orderID, order.ErrOrderNotPaid)
	}
	for _, it := range items {
		if it.AllocatedSecret == "" {
			continue
		}
		for i := range o.Items {
			if o.Items[i].ID != it.ID {
				continue
			}
			if o.Items[i].AllocatedSecret != "" {
				return fmt.Errorf("item %s: %w", it.ID, order.ErrSecretAlreadySet)
			}
			o.Items[i].AllocatedSecret = it.AllocatedSecret
		}
	}
	o.Status = order.StatusFulfilled
	o.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) MarkCancelled(ctx context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return false, order.ErrOrderNotFound
	}
	if o.Status != order.StatusPending {
		return false, nil
	}
	o.Status = order.StatusCancelled
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) RecordFulfillmentError(ctx context.Context, orderID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.FulfillmentError = message
	o.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) FlagOrder(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.Flagged = true
	return nil
}

func (m *MemoryStore) MarkViewed(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.Viewed = true
	return nil
}

func (m *MemoryStore) GetStock(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stock[key], nil
}

func (m *MemoryStore) SetStock(ctx context.Context, key, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[key] = text
	return nil
}
