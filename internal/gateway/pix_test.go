package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/domain/order"
)

func TestPixGateway_Normalize_Paid(t *testing.T) {
	g := NewPixGateway("key", "secret", "", 5*time.Second)

	body := []byte(`{"id":"pix_1","status":"COMPLETED","value":1500,"reference":"order-ord-3"}`)
	ev, err := g.Normalize(body)

	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, KindPix, ev.Gateway)
	assert.Equal(t, "pix_1", ev.ExternalID)
	assert.Equal(t, "ord-3", ev.OrderID)
	assert.True(t, ev.Paid)
	assert.Equal(t, int64(1500), ev.AmountCents)
}

func TestPixGateway_Normalize_NotSettled(t *testing.T) {
	g := NewPixGateway("key", "secret", "", 5*time.Second)

	ev, err := g.Normalize([]byte(`{"id":"pix_1","status":"waiting","value":1500,"reference":"order-ord-3"}`))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.False(t, ev.Paid)
}

func TestPixGateway_Normalize_MissingReference(t *testing.T) {
	g := NewPixGateway("key", "secret", "", 5*time.Second)

	ev, err := g.Normalize([]byte(`{"id":"pix_1","status":"paid","value":1500}`))
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestPixGateway_Normalize_ForeignReference(t *testing.T) {
	g := NewPixGateway("key", "secret", "", 5*time.Second)

	// A reference this engine did not mint carries no order id.
	ev, err := g.Normalize([]byte(`{"id":"pix_1","status":"paid","value":1500,"reference":"invoice-55"}`))
	require.NoError(t, err)
	assert.Nil(t, ev)

	ev, err = g.Normalize([]byte(`{"id":"pix_2","status":"paid","value":1500,"reference":"order-"}`))
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestPixGateway_CreateCharge_PrefersCopyPasteCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "order-ord-1", r.Header.Get("Idempotency-Key"))
		_ = json.NewEncoder(w).Encode(pixCharge{
			ID:         "pix_new",
			QRCode:     "img-data",
			QRCodeText: "00020126BR.GOV.BCB.PIX",
		})
	}))
	defer srv.Close()

	g := NewPixGateway("key", "secret", srv.URL, 5*time.Second)
	charge, err := g.CreateCharge(context.Background(), &order.Order{ID: "ord-1", TotalCents: 1500})

	require.NoError(t, err)
	assert.Equal(t, "pix_new", charge.ExternalID)
	assert.Equal(t, "00020126BR.GOV.BCB.PIX", charge.PayerInstructions)
}

func TestPixGateway_PollStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/pix/charges/pix_1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(pixCharge{ID: "pix_1", Status: "paid", ValueCents: 1500, Reference: "order-ord-3"})
	}))
	defer srv.Close()

	g := NewPixGateway("key", "secret", srv.URL, 5*time.Second)
	ev, err := g.PollStatus(context.Background(), "pix_1")

	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.True(t, ev.Paid)
	assert.Equal(t, "ord-3", ev.OrderID)
}
