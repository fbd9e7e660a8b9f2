package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/domain/order"
)

func seedPending(t *testing.T, m *MemoryStore, id string) {
	t.Helper()
	require.NoError(t, m.CreateOrder(context.Background(), &order.Order{
		ID:     id,
		Status: order.StatusPending,
		Items:  []order.OrderItem{{ID: id + "-item", ProductID: "prod-1", Quantity: 1}},
	}))
}

func TestMemoryStore_MarkPaid_CAS(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	seedPending(t, m, "ord-1")

	won, err := m.MarkPaid(ctx, "ord-1", "pix", "ext-1", time.Now())
	require.NoError(t, err)
	assert.True(t, won)

	// Only the first transition wins, even for a fresh event.
	won, err = m.MarkPaid(ctx, "ord-1", "pix", "ext-2", time.Now())
	require.NoError(t, err)
	assert.False(t, won)
}

func TestMemoryStore_MarkFulfilled_RequiresPaid(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	seedPending(t, m, "ord-1")

	err := m.MarkFulfilled(ctx, "ord-1", nil)
	assert.ErrorIs(t, err, order.ErrOrderNotPaid)
}

func TestMemoryStore_MarkFulfilled_SecretSetOnce(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	seedPending(t, m, "ord-1")

	_, err := m.MarkPaid(ctx, "ord-1", "pix", "ext-1", time.Now())
	require.NoError(t, err)

	items := []order.OrderItem{{ID: "ord-1-item", AllocatedSecret: "LINE-1"}}
	require.NoError(t, m.MarkFulfilled(ctx, "ord-1", items))

	got, err := m.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusFulfilled, got.Status)
	assert.Equal(t, "LINE-1", got.Items[0].AllocatedSecret)
}

func TestMemoryStore_MarkCancelled_OnlyPending(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	seedPending(t, m, "ord-1")

	_, err := m.MarkPaid(ctx, "ord-1", "pix", "ext-1", time.Now())
	require.NoError(t, err)

	won, err := m.MarkCancelled(ctx, "ord-1")
	require.NoError(t, err)
	assert.False(t, won)
}

func TestMemoryStore_MarkPaid_EventConsumedOnce(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	seedPending(t, m, "ord-1")
	seedPending(t, m, "ord-2")

	won, err := m.MarkPaid(ctx, "ord-1", "pix", "ext-1", time.Now())
	require.NoError(t, err)
	assert.True(t, won)

	// The same event cannot settle a second order.
	won, err = m.MarkPaid(ctx, "ord-2", "pix", "ext-1", time.Now())
	require.NoError(t, err)
	assert.False(t, won)

	got, err := m.GetOrder(ctx, "ord-2")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.Status)

	// A different gateway with the same external id is a new event.
	won, err = m.MarkPaid(ctx, "ord-2", "card", "ext-1", time.Now())
	require.NoError(t, err)
	assert.True(t, won)
}

func TestMemoryStore_AttachCharge_Once(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	seedPending(t, m, "ord-1")

	require.NoError(t, m.AttachCharge(ctx, "ord-1", "pix", "ext-1"))
	assert.Error(t, m.AttachCharge(ctx, "ord-1", "pix", "ext-2"))
}

func TestMemoryStore_GetOrder_ReturnsCopy(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	seedPending(t, m, "ord-1")

	a, err := m.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	a.Status = order.StatusPaid
	a.Items[0].AllocatedSecret = "tampered"

	b, err := m.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, b.Status)
	assert.Empty(t, b.Items[0].AllocatedSecret)
}

func TestMemoryStore_GetOrder_NotFound(t *testing.T) {
	m := NewMemoryStore()
	_, err := m.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}
