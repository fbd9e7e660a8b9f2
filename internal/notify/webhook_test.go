package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookChannel_Send_SignsBody(t *testing.T) {
	var gotBody []byte
	var gotSig, gotTimestamp string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Webhook-Signature")
		gotTimestamp = r.Header.Get("X-Webhook-Timestamp")
	}))
	defer srv.Close()

	c := NewWebhookChannel(srv.URL, "vendor-secret", time.Second)
	occurred := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ev := Event{Type: EventOrderPaid, Order: testOrder(), StoreName: "Test Store", OccurredAt: occurred}

	require.NoError(t, c.Send(context.Background(), ev))

	// The signature covers the exact bytes sent.
	mac := hmac.New(sha256.New, []byte("vendor-secret"))
	mac.Write(gotBody)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSig)
	assert.Equal(t, strconv.FormatInt(occurred.Unix(), 10), gotTimestamp)

	var payload webhookPayload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, EventOrderPaid, payload.Event)
	assert.Equal(t, "ord-1", payload.OrderID)
	assert.Equal(t, "buyer@example.com", payload.BuyerEmail)
	assert.Equal(t, int64(1500), payload.TotalCents)
	assert.Equal(t, "Test Store", payload.StoreName)
	require.Len(t, payload.Products, 1)
	assert.Equal(t, "License", payload.Products[0].Name)
}

func TestWebhookChannel_Send_TargetError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewWebhookChannel(srv.URL, "secret", time.Second)
	err := c.Send(context.Background(), Event{Type: EventOrderPaid, Order: testOrder()})
	assert.Error(t, err)
}

func TestWebhookChannel_Send_Unconfigured(t *testing.T) {
	c := NewWebhookChannel("", "secret", time.Second)
	assert.NoError(t, c.Send(context.Background(), Event{Type: EventOrderPaid, Order: testOrder()}))
}
