package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/domain/order"
)

func TestCardGateway_VerifySignature(t *testing.T) {
	g := NewCardGateway("key", "secret", "", 5*time.Second)
	body := []byte(`{"event":"charge.paid"}`)

	assert.True(t, g.VerifySignature(body, hexDigest(body, "secret")))
	assert.False(t, g.VerifySignature(body, hexDigest(body, "wrong")))
	assert.False(t, g.VerifySignature(body, ""))
}

func TestCardGateway_Normalize_Paid(t *testing.T) {
	g := NewCardGateway("key", "secret", "", 5*time.Second)

	body := []byte(`{"event":"charge.updated","data":{"id":"ch_1","status":"Completed","amount":4990,"metadata":{"order_id":"ord-1"}}}`)
	ev, err := g.Normalize(body)

	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, KindCard, ev.Gateway)
	assert.Equal(t, "ch_1", ev.ExternalID)
	assert.Equal(t, "ord-1", ev.OrderID)
	assert.True(t, ev.Paid)
	assert.Equal(t, int64(4990), ev.AmountCents)
}

func TestCardGateway_Normalize_PaidStates(t *testing.T) {
	g := NewCardGateway("key", "secret", "", 5*time.Second)

	for _, status := range []string{"paid", "completed", "confirmed", "approved", "active"} {
		body := []byte(fmt.Sprintf(`{"data":{"id":"ch_1","status":%q,"amount":100,"metadata":{"order_id":"o"}}}`, status))
		ev, err := g.Normalize(body)
		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.True(t, ev.Paid, "status %q should settle", status)
	}

	for _, status := range []string{"pending", "failed", "refunded", "chargeback"} {
		body := []byte(fmt.Sprintf(`{"data":{"id":"ch_1","status":%q,"amount":100,"metadata":{"order_id":"o"}}}`, status))
		ev, err := g.Normalize(body)
		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.False(t, ev.Paid, "status %q must not settle", status)
	}
}

func TestCardGateway_Normalize_ReferenceFallback(t *testing.T) {
	g := NewCardGateway("key", "secret", "", 5*time.Second)

	body := []byte(`{"data":{"id":"ch_2","status":"paid","amount":500,"reference":"order-ord-9"}}`)
	ev, err := g.Normalize(body)

	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "ord-9", ev.OrderID)
}

func TestCardGateway_Normalize_NoCorrelation(t *testing.T) {
	g := NewCardGateway("key", "secret", "", 5*time.Second)

	// Valid but unusable: no order reference anywhere. Normalize must
	// return (nil, nil) so the caller acknowledges without effects.
	body := []byte(`{"data":{"id":"ch_3","status":"paid","amount":500,"reference":"sub_abc"}}`)
	ev, err := g.Normalize(body)

	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestCardGateway_Normalize_Malformed(t *testing.T) {
	g := NewCardGateway("key", "secret", "", 5*time.Second)

	ev, err := g.Normalize([]byte(`{not json`))
	assert.Error(t, err)
	assert.Nil(t, ev)
}

func TestCardGateway_CreateCharge(t *testing.T) {
	var gotIdempotency, gotAuth string
	var gotReq cardChargeRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdempotency = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(cardChargeResponse{ID: "ch_new", CheckoutURL: "https://pay.example/c/1"})
	}))
	defer srv.Close()

	g := NewCardGateway("sk_test", "secret", srv.URL, 5*time.Second)
	o := &order.Order{ID: "ord-1", BuyerEmail: "buyer@example.com", TotalCents: 4990}

	charge, err := g.CreateCharge(context.Background(), o)

	require.NoError(t, err)
	assert.Equal(t, "ch_new", charge.ExternalID)
	assert.Equal(t, "https://pay.example/c/1", charge.PayerInstructions)
	assert.Equal(t, "order-ord-1", gotIdempotency)
	assert.Equal(t, "Bearer sk_test", gotAuth)
	assert.Equal(t, int64(4990), gotReq.Amount)
	assert.Equal(t, "ord-1", gotReq.Metadata.OrderID)
}

func TestCardGateway_CreateCharge_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "card declined", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	g := NewCardGateway("sk_test", "secret", srv.URL, 5*time.Second)
	_, err := g.CreateCharge(context.Background(), &order.Order{ID: "ord-1"})

	assert.ErrorIs(t, err, ErrChargeFailed)
}
